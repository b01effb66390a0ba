// Package session owns the state transitions of play sessions: opening
// them on an admitted check-in, closing them on checkout, and estimating
// waits. The manager persists through the store; the wait math is pure.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/occupancy"
	"github.com/courtsidehq/courtside/internal/sport"
	"github.com/courtsidehq/courtside/internal/store"
)

// Manager drives session lifecycle against the store.
type Manager struct {
	store store.Store
}

func NewManager(st store.Store) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("session manager requires a store")
	}
	return &Manager{store: st}, nil
}

// StartRequest describes an admitted check-in to open a session for.
type StartRequest struct {
	PlayerID    int64
	Facility    models.Facility
	CourtNumber int
	Sport       string
	Status      string // active or waiting, from the admission decision
	GroupID     string
	IsOrganizer bool
}

// Start closes every open session the player holds, then creates the new
// one. The close is persisted before the create so a player never holds
// two courts at once; if the create fails afterward the player is simply
// checked out everywhere and can retry.
func (m *Manager) Start(ctx context.Context, req StartRequest, now time.Time) (models.Session, error) {
	rules, err := sport.RulesFor(req.Sport)
	if err != nil {
		return models.Session{}, err
	}
	status := req.Status
	if status == "" {
		status = models.SessionStatusActive
	}
	if status != models.SessionStatusActive && status != models.SessionStatusWaiting {
		return models.Session{}, fmt.Errorf("invalid session status %q", status)
	}

	closed, err := m.store.CompleteOpenSessionsForPlayer(ctx, req.PlayerID, now)
	if err != nil {
		return models.Session{}, fmt.Errorf("close prior sessions: %w", err)
	}
	if closed > 0 {
		log.Ctx(ctx).Info().
			Int64("player_id", req.PlayerID).
			Int64("closed_sessions", closed).
			Msg("Auto-checked out prior sessions")
	}

	groupID := req.GroupID
	if groupID == "" && rules.GroupJoinEnabled && req.IsOrganizer {
		groupID = uuid.New().String()
	}

	sess := models.Session{
		FacilityID:       req.Facility.ID,
		PlayerID:         req.PlayerID,
		CourtNumber:      req.CourtNumber,
		Sport:            rules.Name,
		Status:           status,
		StartTime:        now,
		EstimatedEndTime: now.Add(rules.SessionDuration),
		GroupID:          groupID,
		IsOrganizer:      req.IsOrganizer,
	}

	created, err := m.store.CreateSession(ctx, sess)
	if err != nil {
		// The player is now checked out everywhere and checked in nowhere.
		// Accepted failure mode; the caller offers a retry of this step.
		log.Ctx(ctx).Error().Err(err).
			Int64("player_id", req.PlayerID).
			Int64("facility_id", req.Facility.ID).
			Msg("Failed to create session after auto-checkout")
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

// End completes a session. Ending an already-completed session is a no-op.
func (m *Manager) End(ctx context.Context, publicID string, now time.Time) error {
	if err := m.store.CompleteSession(ctx, publicID, now); err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return nil
}

// EstimateWaitMinutes predicts how long a new arrival waits for a court.
//
// Pooled sports: zero while the pool has headroom, otherwise the number of
// waiting groups spread over the unblocked courts times the average game
// length. Per-court sports: minutes until the soonest estimated end on the
// target court, floored at zero.
func EstimateWaitMinutes(snap occupancy.Snapshot, rules sport.Rules, courtNumber int) int {
	if rules.PoolingEnabled {
		availableCourts := snap.Facility.TotalCourts - len(snap.BlockedCourts)
		if availableCourts <= 0 {
			availableCourts = 1
		}
		capacity := availableCourts * rules.PlayersPerCourt
		if snap.ActivePlayerCount() < capacity {
			return 0
		}
		waitingGroups := ceilDiv(snap.WaitingCount(), rules.PlayersPerCourt)
		if waitingGroups == 0 {
			waitingGroups = 1
		}
		return ceilDiv(waitingGroups, availableCourts) * int(sport.GameDuration.Minutes())
	}

	var soonest time.Time
	for _, sess := range snap.Sessions {
		if sess.Status != models.SessionStatusActive || sess.CourtNumber != courtNumber {
			continue
		}
		if soonest.IsZero() || sess.EstimatedEndTime.Before(soonest) {
			soonest = sess.EstimatedEndTime
		}
	}
	if soonest.IsZero() {
		return 0
	}
	minutes := int(soonest.Sub(snap.Now).Minutes())
	if minutes < 0 {
		return 0
	}
	return minutes
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
