// internal/api/checkin/handlers.go
package checkin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/internal/admission"
	"github.com/courtsidehq/courtside/internal/api/apiutil"
	"github.com/courtsidehq/courtside/internal/api/courts"
	"github.com/courtsidehq/courtside/internal/geo"
	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/occupancy"
	"github.com/courtsidehq/courtside/internal/ratelimit"
	"github.com/courtsidehq/courtside/internal/session"
	"github.com/courtsidehq/courtside/internal/store"
)

const checkinQueryTimeout = 5 * time.Second

var (
	deps     *handlerDeps
	depsOnce sync.Once
)

type handlerDeps struct {
	store   store.Store
	checker *admission.Checker
	manager *session.Manager
	limiter *ratelimit.Limiter
}

type checkinBody struct {
	PlayerID    int64         `json:"playerId"`
	FacilityID  int64         `json:"facilityId"`
	CourtNumber int           `json:"courtNumber"`
	GroupID     string        `json:"groupId"`
	Sport       string        `json:"sport"`
	Fix         models.GpsFix `json:"fix"`
	// AcceptWarnings proceeds past a warn-then-admit decision.
	AcceptWarnings bool `json:"acceptWarnings"`
}

type checkoutBody struct {
	SessionID string `json:"sessionId"`
}

type decisionResponse struct {
	Status   string              `json:"status"`
	Reason   admission.Reason    `json:"reason,omitempty"`
	Detail   *admission.Detail   `json:"detail,omitempty"`
	Warnings []admission.Warning `json:"warnings,omitempty"`
	Session  *models.Session     `json:"session,omitempty"`
}

// InitHandlers must be called during server startup before handling requests.
// A nil limiter disables rate limiting.
func InitHandlers(st store.Store, checker *admission.Checker, manager *session.Manager, limiter *ratelimit.Limiter) {
	if st == nil || checker == nil || manager == nil {
		return
	}
	depsOnce.Do(func() {
		deps = &handlerDeps{store: st, checker: checker, manager: manager, limiter: limiter}
	})
}

func loadDeps() *handlerDeps {
	return deps
}

// /api/v1/checkin
func HandleCheckin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Check-in handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var body checkinBody
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.PlayerID <= 0 {
		http.Error(w, "Player ID is required", http.StatusBadRequest)
		return
	}
	if body.FacilityID <= 0 {
		http.Error(w, "Facility ID is required", http.StatusBadRequest)
		return
	}

	if d.limiter != nil {
		ip := ratelimit.GetClientIP(r, false)
		if res := d.limiter.CheckAttempt(body.PlayerID, ip); !res.Allowed {
			ratelimit.LogRateLimitExceeded(body.PlayerID, ip, res.Reason)
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			http.Error(w, "Too many check-in attempts", http.StatusTooManyRequests)
			return
		}
		d.limiter.RecordAttempt(body.PlayerID, ip)
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	now := time.Now().UTC()

	facility, err := d.store.GetFacility(ctx, body.FacilityID)
	if err != nil {
		respondStoreError(w, r, err, "Facility not found")
		return
	}

	// Admission always evaluates against fresh session and block records,
	// never the display cache.
	blocks, err := d.store.ListBlocks(ctx, facility.ID)
	if err != nil {
		respondStoreError(w, r, err, "Failed to load blocks")
		return
	}
	sessions, err := d.store.ListOpenSessions(ctx, facility.ID)
	if err != nil {
		respondStoreError(w, r, err, "Failed to load sessions")
		return
	}

	snap := occupancy.Resolve(facility, blocks, sessions, now)
	req := models.CheckInRequest{
		PlayerID:    body.PlayerID,
		FacilityID:  body.FacilityID,
		CourtNumber: body.CourtNumber,
		GroupID:     body.GroupID,
		Fix:         body.Fix,
		Sport:       body.Sport,
		Timestamp:   now,
	}

	decision, err := d.checker.Evaluate(req, snap)
	if err != nil {
		if errors.Is(err, geo.ErrMissingFix) || errors.Is(err, geo.ErrInvalidFix) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch decision.Verdict {
	case admission.Deny:
		respondDecision(w, r, http.StatusConflict, decisionResponse{
			Status: "denied",
			Reason: decision.Reason,
			Detail: &decision.Detail,
		})
		return
	case admission.WarnThenAdmit:
		if !body.AcceptWarnings {
			respondDecision(w, r, http.StatusConflict, decisionResponse{
				Status:   "confirmation_required",
				Warnings: decision.Warnings,
			})
			return
		}
	}

	created, err := d.manager.Start(ctx, session.StartRequest{
		PlayerID:    body.PlayerID,
		Facility:    facility,
		CourtNumber: decision.CourtNumber,
		Sport:       body.Sport,
		Status:      decision.SessionStatus,
		GroupID:     decision.GroupID,
		IsOrganizer: body.GroupID == "",
	}, now)
	if err != nil {
		respondStoreError(w, r, err, "Failed to create session")
		return
	}

	courts.InvalidateAvailability(facility.ID)
	logger.Info().
		Int64("player_id", body.PlayerID).
		Int64("facility_id", facility.ID).
		Int("court_number", created.CourtNumber).
		Str("session_status", created.Status).
		Msg("Player checked in")

	respondDecision(w, r, http.StatusCreated, decisionResponse{
		Status:   "admitted",
		Warnings: decision.Warnings,
		Session:  &created,
	})
}

// /api/v1/checkout
func HandleCheckout(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Check-in handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var body checkoutBody
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.SessionID == "" {
		http.Error(w, "Session ID is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context())
	defer cancel()

	sess, err := d.store.GetSession(ctx, body.SessionID)
	if err != nil {
		respondStoreError(w, r, err, "Session not found")
		return
	}

	if err := d.manager.End(ctx, body.SessionID, time.Now().UTC()); err != nil {
		respondStoreError(w, r, err, "Failed to check out")
		return
	}

	courts.InvalidateAvailability(sess.FacilityID)
	logger.Info().Str("session_id", body.SessionID).Msg("Player checked out")
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "completed"}); err != nil {
		logger.Error().Err(err).Msg("Failed to write checkout response")
	}
}

func respondDecision(w http.ResponseWriter, r *http.Request, status int, resp decisionResponse) {
	if err := apiutil.WriteJSON(w, status, resp); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write check-in decision")
	}
}

// respondStoreError separates infrastructure failures (retryable, 503) from
// missing records so the UI can offer "try again" instead of a rule message.
func respondStoreError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logger := log.Ctx(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, message, http.StatusNotFound)
	case errors.Is(err, store.ErrUnavailable):
		logger.Error().Err(err).Msg("Store unavailable")
		http.Error(w, "Service temporarily unavailable, please retry", http.StatusServiceUnavailable)
	default:
		logger.Error().Err(err).Msg(message)
		http.Error(w, message, http.StatusInternalServerError)
	}
}

func contextWithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, checkinQueryTimeout)
}
