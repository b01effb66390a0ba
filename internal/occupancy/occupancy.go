// Package occupancy computes the point-in-time view of which courts at a
// facility are free, occupied by a session, or reserved by a block.
//
// Everything here is pure: callers fetch block and session records, supply
// the current instant, and get values back. Blocks are authored in
// facility-local wall-clock time, so the current instant is localized to
// the facility's timezone before any window comparison.
package occupancy

import (
	"sort"
	"time"

	"github.com/courtsidehq/courtside/internal/models"
)

// CourtState is the display status of one physical court.
type CourtState string

const (
	CourtAvailable CourtState = "available"
	CourtOccupied  CourtState = "occupied"
	CourtReserved  CourtState = "reserved"
)

// Horizons for upcoming-block queries.
const (
	WarnHorizon    = 2 * time.Hour
	DisplayHorizon = 24 * time.Hour
)

// Availability is the aggregate availability of a facility at one instant.
type Availability struct {
	BlockedCourts  map[int]struct{}
	OccupiedCourts map[int]struct{}
	AvailableCount int
	FullyBlocked   bool
}

// Snapshot bundles the records and derived availability the admission
// checker evaluates against. Build one with Resolve just before each
// check-in decision; never reuse a stale snapshot across requests.
type Snapshot struct {
	Facility models.Facility
	Now      time.Time
	// Blocks holds every non-cancelled block for the facility, active or not.
	Blocks []models.Block
	// Sessions holds open sessions whose estimated end is still ahead of Now.
	Sessions []models.Session

	Availability
}

// Resolve builds a Snapshot from raw facility records.
func Resolve(facility models.Facility, blocks []models.Block, sessions []models.Session, now time.Time) Snapshot {
	live := liveSessions(sessions, now)
	return Snapshot{
		Facility:     facility,
		Now:          now,
		Blocks:       blocks,
		Sessions:     live,
		Availability: Aggregate(facility, blocks, live, now),
	}
}

// ActiveBlocks returns the blocks whose window contains now, after
// localizing now to the facility's timezone. Cancelled blocks are always
// excluded.
func ActiveBlocks(facility models.Facility, blocks []models.Block, now time.Time) []models.Block {
	local := now.In(facility.Location())
	var active []models.Block
	for _, b := range blocks {
		if b.Status == models.BlockStatusCancelled {
			continue
		}
		if !b.StartTime.After(local) && !b.EndTime.Before(local) {
			active = append(active, b)
		}
	}
	return active
}

// UpcomingBlocks returns non-cancelled blocks starting in (now, now+horizon],
// sorted ascending by start time.
func UpcomingBlocks(facility models.Facility, blocks []models.Block, now time.Time, horizon time.Duration) []models.Block {
	local := now.In(facility.Location())
	cutoff := local.Add(horizon)
	var upcoming []models.Block
	for _, b := range blocks {
		if b.Status == models.BlockStatusCancelled {
			continue
		}
		if b.StartTime.After(local) && !b.StartTime.After(cutoff) {
			upcoming = append(upcoming, b)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartTime.Before(upcoming[j].StartTime)
	})
	return upcoming
}

// CourtStatus reports the display state of one court number. A reserving
// block takes precedence over an occupying session since it signals an
// administrative override.
func CourtStatus(facility models.Facility, blocks []models.Block, sessions []models.Session, courtNumber int, now time.Time) CourtState {
	for _, b := range ActiveBlocks(facility, blocks, now) {
		if b.AllCourts() || b.CourtNumber == courtNumber {
			return CourtReserved
		}
	}
	for _, s := range liveSessions(sessions, now) {
		if s.Status == models.SessionStatusActive && s.CourtNumber == courtNumber {
			return CourtOccupied
		}
	}
	return CourtAvailable
}

// Aggregate computes facility-wide availability. An all-courts block marks
// every court number blocked; the sets dedupe overlap between an all-courts
// block and concurrent per-court blocks.
func Aggregate(facility models.Facility, blocks []models.Block, sessions []models.Session, now time.Time) Availability {
	blocked := make(map[int]struct{})
	for _, b := range ActiveBlocks(facility, blocks, now) {
		if b.AllCourts() {
			for n := 1; n <= facility.TotalCourts; n++ {
				blocked[n] = struct{}{}
			}
			continue
		}
		blocked[b.CourtNumber] = struct{}{}
	}

	occupied := make(map[int]struct{})
	for _, s := range liveSessions(sessions, now) {
		if s.Status == models.SessionStatusActive {
			occupied[s.CourtNumber] = struct{}{}
		}
	}

	unavailable := len(blocked)
	for n := range occupied {
		if _, ok := blocked[n]; !ok {
			unavailable++
		}
	}
	available := facility.TotalCourts - unavailable
	if available < 0 {
		available = 0
	}

	return Availability{
		BlockedCourts:  blocked,
		OccupiedCourts: occupied,
		AvailableCount: available,
		FullyBlocked:   len(blocked) >= facility.TotalCourts,
	}
}

// ActivePlayerCount is the number of players currently playing, used by
// pooled-capacity admission.
func (s Snapshot) ActivePlayerCount() int {
	count := 0
	for _, sess := range s.Sessions {
		if sess.Status == models.SessionStatusActive {
			count++
		}
	}
	return count
}

// WaitingCount is the number of players on the waitlist.
func (s Snapshot) WaitingCount() int {
	count := 0
	for _, sess := range s.Sessions {
		if sess.Status == models.SessionStatusWaiting {
			count++
		}
	}
	return count
}

// GroupSessions returns the live sessions belonging to a group.
func (s Snapshot) GroupSessions(groupID string) []models.Session {
	if groupID == "" {
		return nil
	}
	var group []models.Session
	for _, sess := range s.Sessions {
		if sess.GroupID == groupID {
			group = append(group, sess)
		}
	}
	return group
}

// CourtPlayerCount is the number of active players on one court number.
func (s Snapshot) CourtPlayerCount(courtNumber int) int {
	count := 0
	for _, sess := range s.Sessions {
		if sess.Status == models.SessionStatusActive && sess.CourtNumber == courtNumber {
			count++
		}
	}
	return count
}

// liveSessions filters to open sessions whose estimated end is still
// ahead of now. A session past its estimated end counts as completed for
// occupancy purposes even if the backing record has not been updated yet.
func liveSessions(sessions []models.Session, now time.Time) []models.Session {
	var live []models.Session
	for _, s := range sessions {
		if !s.Open() {
			continue
		}
		if !s.EstimatedEndTime.After(now) {
			continue
		}
		live = append(live, s)
	}
	return live
}
