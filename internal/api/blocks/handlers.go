// internal/api/blocks/handlers.go
package blocks

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/internal/api/apiutil"
	"github.com/courtsidehq/courtside/internal/api/courts"
	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/store"
)

const blocksQueryTimeout = 5 * time.Second

var (
	st     store.Store
	stOnce sync.Once
)

// cronParser accepts the standard five-field cron format for recurring
// block schedules.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

type createBlockBody struct {
	FacilityID  int64     `json:"facilityId"`
	CourtNumber int       `json:"courtNumber"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Title       string    `json:"title"`
	Reason      string    `json:"reason"`
}

type cancelBlockBody struct {
	BlockID string `json:"blockId"`
}

type recurringBlockBody struct {
	FacilityID      int64  `json:"facilityId"`
	CourtNumber     int    `json:"courtNumber"`
	Schedule        string `json:"schedule"`
	DurationMinutes int    `json:"durationMinutes"`
	Title           string `json:"title"`
	Reason          string `json:"reason"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(s store.Store) {
	if s == nil {
		return
	}
	stOnce.Do(func() {
		st = s
	})
}

// /api/v1/blocks
func HandleCreateBlock(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if st == nil {
		logger.Error().Msg("Block handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var body createBlockBody
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.FacilityID <= 0 {
		http.Error(w, "Facility ID is required", http.StatusBadRequest)
		return
	}
	if !body.StartTime.Before(body.EndTime) {
		http.Error(w, "Block start must be before end", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blocksQueryTimeout)
	defer cancel()

	facility, err := st.GetFacility(ctx, body.FacilityID)
	if err != nil {
		respondStoreError(w, r, err, "Facility not found")
		return
	}
	if body.CourtNumber < 0 || body.CourtNumber > facility.TotalCourts {
		http.Error(w, "Court number out of range", http.StatusBadRequest)
		return
	}

	block, err := st.CreateBlock(ctx, models.Block{
		FacilityID:  body.FacilityID,
		CourtNumber: body.CourtNumber,
		StartTime:   body.StartTime,
		EndTime:     body.EndTime,
		Title:       body.Title,
		Reason:      body.Reason,
	})
	if err != nil {
		respondStoreError(w, r, err, "Failed to create block")
		return
	}

	courts.InvalidateAvailability(body.FacilityID)
	logger.Info().
		Int64("facility_id", body.FacilityID).
		Int("court_number", body.CourtNumber).
		Time("start_time", body.StartTime).
		Msg("Block created")

	if err := apiutil.WriteJSON(w, http.StatusCreated, block); err != nil {
		logger.Error().Err(err).Msg("Failed to write block response")
	}
}

// /api/v1/blocks/cancel
func HandleCancelBlock(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if st == nil {
		logger.Error().Msg("Block handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var body cancelBlockBody
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.BlockID == "" {
		http.Error(w, "Block ID is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blocksQueryTimeout)
	defer cancel()

	if err := st.CancelBlock(ctx, body.BlockID); err != nil {
		respondStoreError(w, r, err, "Block not found")
		return
	}

	logger.Info().Str("block_id", body.BlockID).Msg("Block cancelled")
	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"}); err != nil {
		logger.Error().Err(err).Msg("Failed to write cancel response")
	}
}

// /api/v1/blocks/recurring
func HandleCreateRecurringBlock(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if st == nil {
		logger.Error().Msg("Block handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var body recurringBlockBody
	if err := apiutil.DecodeJSON(r, &body); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if body.FacilityID <= 0 {
		http.Error(w, "Facility ID is required", http.StatusBadRequest)
		return
	}
	if body.DurationMinutes <= 0 {
		http.Error(w, "Duration must be positive", http.StatusBadRequest)
		return
	}
	if _, err := cronParser.Parse(body.Schedule); err != nil {
		http.Error(w, "Invalid cron schedule", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), blocksQueryTimeout)
	defer cancel()

	if _, err := st.GetFacility(ctx, body.FacilityID); err != nil {
		respondStoreError(w, r, err, "Facility not found")
		return
	}

	recurring, err := st.CreateRecurringBlock(ctx, models.RecurringBlock{
		FacilityID:      body.FacilityID,
		CourtNumber:     body.CourtNumber,
		Schedule:        body.Schedule,
		DurationMinutes: body.DurationMinutes,
		Title:           body.Title,
		Reason:          body.Reason,
	})
	if err != nil {
		respondStoreError(w, r, err, "Failed to create recurring block")
		return
	}

	logger.Info().
		Int64("facility_id", body.FacilityID).
		Str("schedule", body.Schedule).
		Msg("Recurring block created")

	if err := apiutil.WriteJSON(w, http.StatusCreated, recurring); err != nil {
		logger.Error().Err(err).Msg("Failed to write recurring block response")
	}
}

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
