// Package admission decides whether a check-in request is allowed to
// proceed. Evaluation is a pure function over the request and an occupancy
// snapshot; business denials are values, not errors, so the caller renders
// them rather than catching them.
package admission

import (
	"errors"
	"fmt"
	"time"

	"github.com/courtsidehq/courtside/internal/geo"
	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/occupancy"
	"github.com/courtsidehq/courtside/internal/sport"
)

// Verdict tags the outcome of a check-in evaluation.
type Verdict string

const (
	Admit Verdict = "admit"
	Deny  Verdict = "deny"
	// WarnThenAdmit means the caller should confirm with the user before
	// proceeding; re-evaluating with an override proceeds as Admit.
	WarnThenAdmit Verdict = "warn"
)

// Reason codes carried on denials and warnings.
type Reason string

const (
	OutOfRange        Reason = "OUT_OF_RANGE"
	LowGPSAccuracy    Reason = "LOW_GPS_ACCURACY"
	FacilityReserved  Reason = "FACILITY_RESERVED"
	EventStartingSoon Reason = "EVENT_STARTING_SOON"
	EventSoon         Reason = "EVENT_SOON"
	GroupNotFound     Reason = "GROUP_NOT_FOUND"
	CourtUnavailable  Reason = "COURT_UNAVAILABLE"
)

// Detail carries the structured facts behind a denial or warning so the
// caller can render a message. The engine never formats user-facing text.
type Detail struct {
	DistanceMiles  float64   `json:"distanceMiles,omitempty"`
	AccuracyMeters float64   `json:"accuracyMeters,omitempty"`
	BlockTitle     string    `json:"blockTitle,omitempty"`
	BlockStart     time.Time `json:"blockStart,omitempty"`
	BlockEnd       time.Time `json:"blockEnd,omitempty"`
}

// Warning is a non-blocking condition the caller may let the user override.
type Warning struct {
	Reason Reason `json:"reason"`
	Detail Detail `json:"detail"`
}

// Decision is the tagged result of evaluating one check-in.
type Decision struct {
	Verdict Verdict
	// Reason is set on Deny.
	Reason Reason
	Detail Detail
	// Warnings accompany a WarnThenAdmit verdict.
	Warnings []Warning

	// Admission placement, set on Admit and WarnThenAdmit.
	CourtNumber   int
	GroupID       string
	SessionStatus string
}

// Config tunes the admission thresholds. Zero values take the defaults.
type Config struct {
	GeofenceRadiusMiles float64
	AccuracyWarnMeters  float64
	BlockDenyWindow     time.Duration
	BlockWarnWindow     time.Duration
}

// Default thresholds.
const (
	DefaultGeofenceRadiusMiles = 0.25
	DefaultAccuracyWarnMeters  = 100.0
	DefaultBlockDenyWindow     = 30 * time.Minute
	DefaultBlockWarnWindow     = 2 * time.Hour
)

func (c Config) withDefaults() Config {
	if c.GeofenceRadiusMiles <= 0 {
		c.GeofenceRadiusMiles = DefaultGeofenceRadiusMiles
	}
	if c.AccuracyWarnMeters <= 0 {
		c.AccuracyWarnMeters = DefaultAccuracyWarnMeters
	}
	if c.BlockDenyWindow <= 0 {
		c.BlockDenyWindow = DefaultBlockDenyWindow
	}
	if c.BlockWarnWindow <= 0 {
		c.BlockWarnWindow = DefaultBlockWarnWindow
	}
	return c
}

// Checker evaluates check-in requests against occupancy snapshots.
type Checker struct {
	cfg Config
}

func NewChecker(cfg Config) *Checker {
	return &Checker{cfg: cfg.withDefaults()}
}

var errNoTotalCourts = errors.New("facility has no courts configured")

// Evaluate runs the admission sequence against a fresh snapshot. The checks
// short-circuit in a fixed order; later checks assume earlier ones passed.
// The returned error covers malformed input only, never a business denial.
func (c *Checker) Evaluate(req models.CheckInRequest, snap occupancy.Snapshot) (Decision, error) {
	if snap.Facility.TotalCourts < 1 {
		return Decision{}, errNoTotalCourts
	}
	if err := geo.ValidateFix(req.Fix); err != nil {
		return Decision{}, err
	}
	rules, err := sport.RulesFor(req.Sport)
	if err != nil {
		return Decision{}, err
	}
	if req.GroupID == "" && !rules.PoolingEnabled {
		if req.CourtNumber < 1 || req.CourtNumber > snap.Facility.TotalCourts {
			return Decision{}, fmt.Errorf("court number %d out of range 1..%d", req.CourtNumber, snap.Facility.TotalCourts)
		}
	}

	// 1. Geofence. Uniform for all users, no bypass.
	distance := geo.DistanceMiles(
		req.Fix.Latitude, req.Fix.Longitude,
		snap.Facility.Latitude, snap.Facility.Longitude,
	)
	if distance > c.cfg.GeofenceRadiusMiles {
		return Decision{
			Verdict: Deny,
			Reason:  OutOfRange,
			Detail:  Detail{DistanceMiles: distance, AccuracyMeters: req.Fix.AccuracyMeters},
		}, nil
	}

	// 2. GPS quality. Non-blocking on its own.
	var warnings []Warning
	if req.Fix.AccuracyMeters > c.cfg.AccuracyWarnMeters {
		warnings = append(warnings, Warning{
			Reason: LowGPSAccuracy,
			Detail: Detail{DistanceMiles: distance, AccuracyMeters: req.Fix.AccuracyMeters},
		})
	}

	// 3. Full-facility block.
	if snap.FullyBlocked {
		detail := Detail{}
		if b, ok := reservingBlock(snap); ok {
			detail.BlockTitle = b.Title
			detail.BlockStart = b.StartTime
			detail.BlockEnd = b.EndTime
		}
		return Decision{Verdict: Deny, Reason: FacilityReserved, Detail: detail}, nil
	}

	// 4. Imminent whole-facility block.
	for _, b := range occupancy.UpcomingBlocks(snap.Facility, snap.Blocks, snap.Now, c.cfg.BlockWarnWindow) {
		if !b.AllCourts() {
			continue
		}
		detail := Detail{BlockTitle: b.Title, BlockStart: b.StartTime, BlockEnd: b.EndTime}
		if b.StartTime.Sub(snap.Now) <= c.cfg.BlockDenyWindow {
			return Decision{Verdict: Deny, Reason: EventStartingSoon, Detail: detail}, nil
		}
		warnings = append(warnings, Warning{Reason: EventSoon, Detail: detail})
		break
	}

	// 5. Capacity and court selection.
	placement, denied := c.place(req, rules, snap)
	if denied != nil {
		return *denied, nil
	}

	if len(warnings) > 0 {
		placement.Verdict = WarnThenAdmit
		placement.Warnings = warnings
		return placement, nil
	}
	placement.Verdict = Admit
	return placement, nil
}

// place resolves which court (or the waitlist) an otherwise-admissible
// request lands on. Returns a non-nil denial when no placement exists.
func (c *Checker) place(req models.CheckInRequest, rules sport.Rules, snap occupancy.Snapshot) (Decision, *Decision) {
	if req.GroupID != "" && rules.GroupJoinEnabled {
		group := snap.GroupSessions(req.GroupID)
		if len(group) == 0 {
			return Decision{}, &Decision{Verdict: Deny, Reason: GroupNotFound}
		}
		court := group[0].CourtNumber
		if _, blocked := snap.BlockedCourts[court]; blocked {
			b, _ := blockForCourt(snap, court)
			return Decision{}, &Decision{
				Verdict: Deny,
				Reason:  CourtUnavailable,
				Detail:  Detail{BlockTitle: b.Title, BlockStart: b.StartTime, BlockEnd: b.EndTime},
			}
		}
		return Decision{
			CourtNumber:   court,
			GroupID:       req.GroupID,
			SessionStatus: models.SessionStatusActive,
		}, nil
	}

	if rules.PoolingEnabled {
		availableCourts := snap.Facility.TotalCourts - len(snap.BlockedCourts)
		maxWithoutWait := availableCourts * rules.PlayersPerCourt
		if snap.ActivePlayerCount() < maxWithoutWait {
			court := nextPooledCourt(snap, rules.PlayersPerCourt)
			return Decision{
				CourtNumber:   court,
				SessionStatus: models.SessionStatusActive,
			}, nil
		}
		// Pool is full: join the waitlist rather than denying.
		return Decision{SessionStatus: models.SessionStatusWaiting}, nil
	}

	if _, blocked := snap.BlockedCourts[req.CourtNumber]; blocked {
		b, _ := blockForCourt(snap, req.CourtNumber)
		return Decision{}, &Decision{
			Verdict: Deny,
			Reason:  CourtUnavailable,
			Detail:  Detail{BlockTitle: b.Title, BlockStart: b.StartTime, BlockEnd: b.EndTime},
		}
	}
	if _, occupied := snap.OccupiedCourts[req.CourtNumber]; occupied {
		return Decision{}, &Decision{Verdict: Deny, Reason: CourtUnavailable}
	}
	return Decision{
		CourtNumber:   req.CourtNumber,
		SessionStatus: models.SessionStatusActive,
	}, nil
}

// nextPooledCourt picks the lowest-numbered unblocked court with headroom.
func nextPooledCourt(snap occupancy.Snapshot, playersPerCourt int) int {
	for n := 1; n <= snap.Facility.TotalCourts; n++ {
		if _, blocked := snap.BlockedCourts[n]; blocked {
			continue
		}
		if snap.CourtPlayerCount(n) < playersPerCourt {
			return n
		}
	}
	// All unblocked courts are at headcount; spill onto the lowest one.
	for n := 1; n <= snap.Facility.TotalCourts; n++ {
		if _, blocked := snap.BlockedCourts[n]; !blocked {
			return n
		}
	}
	return 0
}

// reservingBlock picks the block to name on a FACILITY_RESERVED denial,
// preferring an all-courts block.
func reservingBlock(snap occupancy.Snapshot) (models.Block, bool) {
	active := occupancy.ActiveBlocks(snap.Facility, snap.Blocks, snap.Now)
	for _, b := range active {
		if b.AllCourts() {
			return b, true
		}
	}
	if len(active) > 0 {
		return active[0], true
	}
	return models.Block{}, false
}

func blockForCourt(snap occupancy.Snapshot, court int) (models.Block, bool) {
	for _, b := range occupancy.ActiveBlocks(snap.Facility, snap.Blocks, snap.Now) {
		if b.AllCourts() || b.CourtNumber == court {
			return b, true
		}
	}
	return models.Block{}, false
}
