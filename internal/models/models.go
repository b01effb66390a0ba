// Package models holds the plain data records exchanged between the
// engine, the store, and the API layer.
package models

import "time"

// AllCourts is the sentinel court number for a block that reserves every
// court at a facility. Real court numbers are 1-based.
const AllCourts = 0

// DefaultTimezone is used when a facility row carries no IANA timezone.
const DefaultTimezone = "America/New_York"

// Facility is read-only reference data from the entity store.
type Facility struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	TotalCourts int     `json:"totalCourts"`
	Sports      string  `json:"sports"`
}

// Location returns the facility's IANA timezone, falling back to
// DefaultTimezone when the row carries none or an unknown name.
func (f Facility) Location() *time.Location {
	name := f.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		loc, _ = time.LoadLocation(DefaultTimezone)
	}
	return loc
}

// Block statuses.
const (
	BlockStatusActive    = "active"
	BlockStatusCancelled = "cancelled"
)

// Block is an administratively scheduled reservation on one court (or all
// courts, CourtNumber == AllCourts) for a time window. The engine only
// reads blocks; administrators create and cancel them.
type Block struct {
	ID          int64     `json:"id"`
	PublicID    string    `json:"publicId"`
	FacilityID  int64     `json:"facilityId"`
	CourtNumber int       `json:"courtNumber"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Title       string    `json:"title"`
	Reason      string    `json:"reason"`
	Status      string    `json:"status"`
}

// AllCourts reports whether the block reserves every court at the facility.
func (b Block) AllCourts() bool { return b.CourtNumber == AllCourts }

// Session statuses.
const (
	SessionStatusActive    = "active"
	SessionStatusWaiting   = "waiting"
	SessionStatusCompleted = "completed"
)

// Session records one player occupying (or waiting for) a court.
// Sessions are created at check-in, completed at checkout or expiry, and
// never deleted.
type Session struct {
	ID               int64      `json:"id"`
	PublicID         string     `json:"publicId"`
	FacilityID       int64      `json:"facilityId"`
	PlayerID         int64      `json:"playerId"`
	CourtNumber      int        `json:"courtNumber"`
	Sport            string     `json:"sport"`
	Status           string     `json:"status"`
	StartTime        time.Time  `json:"startTime"`
	EstimatedEndTime time.Time  `json:"estimatedEndTime"`
	ActualEndTime    *time.Time `json:"actualEndTime,omitempty"`
	GroupID          string     `json:"groupId,omitempty"`
	IsOrganizer      bool       `json:"isOrganizer"`
}

// Open reports whether the session still holds (or waits for) a court.
func (s Session) Open() bool {
	return s.Status == SessionStatusActive || s.Status == SessionStatusWaiting
}

// GpsFix is a device location reading supplied with a check-in request.
type GpsFix struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracyMeters"`
}

// CheckInRequest is the ephemeral input to admission evaluation. It is
// never persisted.
type CheckInRequest struct {
	PlayerID    int64
	FacilityID  int64
	CourtNumber int
	GroupID     string
	Fix         GpsFix
	Sport       string
	Timestamp   time.Time
}

// RecurringBlock is an administrator-authored schedule from which concrete
// blocks are materialized ahead of time. Schedule is a standard cron
// expression evaluated in the facility's timezone.
type RecurringBlock struct {
	ID              int64  `json:"id"`
	FacilityID      int64  `json:"facilityId"`
	CourtNumber     int    `json:"courtNumber"`
	Schedule        string `json:"schedule"`
	DurationMinutes int    `json:"durationMinutes"`
	Title           string `json:"title"`
	Reason          string `json:"reason"`
}
