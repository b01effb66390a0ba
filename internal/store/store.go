// Package store is the persistence boundary for facility, block, and
// session records. The engine packages never touch it; callers fetch
// records here, hand them to the engine, and persist the results.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/courtsidehq/courtside/internal/models"
)

var (
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable reports an infrastructure failure that survived the
	// bounded retries. Distinct from business denials so callers can offer
	// "try again" instead of a rule message.
	ErrUnavailable = errors.New("store unavailable")
)

// Store is the generic CRUD surface the engine's callers depend on. An
// in-memory fake satisfies it in tests.
type Store interface {
	GetFacility(ctx context.Context, id int64) (models.Facility, error)
	ListFacilities(ctx context.Context) ([]models.Facility, error)
	CreateFacility(ctx context.Context, f models.Facility) (models.Facility, error)

	// ListBlocks returns all non-cancelled blocks for a facility.
	ListBlocks(ctx context.Context, facilityID int64) ([]models.Block, error)
	CreateBlock(ctx context.Context, b models.Block) (models.Block, error)
	CancelBlock(ctx context.Context, publicID string) error
	// BlockExistsAt reports whether a block already covers the exact
	// window, used to keep recurring materialization idempotent.
	BlockExistsAt(ctx context.Context, facilityID int64, courtNumber int, start time.Time) (bool, error)

	// ListOpenSessions returns active and waiting sessions for a facility.
	ListOpenSessions(ctx context.Context, facilityID int64) ([]models.Session, error)
	ListOpenSessionsByPlayer(ctx context.Context, playerID int64) ([]models.Session, error)
	GetSession(ctx context.Context, publicID string) (models.Session, error)
	CreateSession(ctx context.Context, s models.Session) (models.Session, error)
	// CompleteSession is idempotent; completing a completed session is a
	// no-op.
	CompleteSession(ctx context.Context, publicID string, endTime time.Time) error
	// CompleteOpenSessionsForPlayer closes every active/waiting session a
	// player holds and returns how many were closed.
	CompleteOpenSessionsForPlayer(ctx context.Context, playerID int64, endTime time.Time) (int64, error)
	// ExpireSessions completes open sessions whose estimated end has
	// passed. Returns how many were closed.
	ExpireSessions(ctx context.Context, now time.Time) (int64, error)

	ListRecurringBlocks(ctx context.Context) ([]models.RecurringBlock, error)
	CreateRecurringBlock(ctx context.Context, rb models.RecurringBlock) (models.RecurringBlock, error)
}
