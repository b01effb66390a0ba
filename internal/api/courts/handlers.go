// internal/api/courts/handlers.go
package courts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/internal/api/apiutil"
	"github.com/courtsidehq/courtside/internal/cache"
	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/occupancy"
	"github.com/courtsidehq/courtside/internal/request"
	"github.com/courtsidehq/courtside/internal/session"
	"github.com/courtsidehq/courtside/internal/sport"
	"github.com/courtsidehq/courtside/internal/store"
)

const courtsQueryTimeout = 5 * time.Second

var (
	deps     *handlerDeps
	depsOnce sync.Once
)

type handlerDeps struct {
	store store.Store
	cache *cache.TTL
}

type courtView struct {
	CourtNumber int                  `json:"courtNumber"`
	Status      occupancy.CourtState `json:"status"`
}

type availabilityResponse struct {
	FacilityID     int64          `json:"facilityId"`
	AsOf           time.Time      `json:"asOf"`
	Courts         []courtView    `json:"courts"`
	BlockedCourts  []int          `json:"blockedCourts"`
	OccupiedCourts []int          `json:"occupiedCourts"`
	AvailableCount int            `json:"availableCount"`
	FullyBlocked   bool           `json:"fullyBlocked"`
	UpcomingBlocks []models.Block `json:"upcomingBlocks"`
}

type waitResponse struct {
	FacilityID  int64  `json:"facilityId"`
	CourtNumber int    `json:"courtNumber,omitempty"`
	Sport       string `json:"sport"`
	WaitMinutes int    `json:"waitMinutes"`
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(st store.Store, availabilityCache *cache.TTL) {
	if st == nil {
		return
	}
	depsOnce.Do(func() {
		deps = &handlerDeps{store: st, cache: availabilityCache}
	})
}

func loadDeps() *handlerDeps {
	return deps
}

// /api/v1/courts/availability
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Courts handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, ok := request.ParseFacilityID(r.URL.Query().Get("facility_id"))
	if !ok {
		http.Error(w, "Facility ID is required", http.StatusBadRequest)
		return
	}

	// Display availability may be served slightly stale from the cache;
	// check-in never reads it.
	cacheKey := fmt.Sprintf("availability:%d", facilityID)
	if d.cache != nil {
		if cached, ok := d.cache.Get(cacheKey); ok {
			if resp, ok := cached.(availabilityResponse); ok {
				writeAvailability(w, r, resp)
				return
			}
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	snap, err := resolveSnapshot(ctx, d.store, facilityID, now)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	courts := make([]courtView, 0, snap.Facility.TotalCourts)
	for n := 1; n <= snap.Facility.TotalCourts; n++ {
		courts = append(courts, courtView{
			CourtNumber: n,
			Status:      occupancy.CourtStatus(snap.Facility, snap.Blocks, snap.Sessions, n, now),
		})
	}

	resp := availabilityResponse{
		FacilityID:     facilityID,
		AsOf:           now,
		Courts:         courts,
		BlockedCourts:  sortedKeys(snap.BlockedCourts),
		OccupiedCourts: sortedKeys(snap.OccupiedCourts),
		AvailableCount: snap.AvailableCount,
		FullyBlocked:   snap.FullyBlocked,
		UpcomingBlocks: occupancy.UpcomingBlocks(snap.Facility, snap.Blocks, now, occupancy.DisplayHorizon),
	}

	if d.cache != nil {
		d.cache.Set(cacheKey, resp)
	}
	writeAvailability(w, r, resp)
}

// /api/v1/courts/wait
func HandleWaitEstimate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Courts handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, ok := request.ParseFacilityID(r.URL.Query().Get("facility_id"))
	if !ok {
		http.Error(w, "Facility ID is required", http.StatusBadRequest)
		return
	}
	rules, err := sport.RulesFor(r.URL.Query().Get("sport"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	courtNumber := 0
	if !rules.PoolingEnabled {
		courtNumber, ok = request.ParseCourtNumber(r.URL.Query().Get("court"))
		if !ok || courtNumber < 1 {
			http.Error(w, "Court number is required", http.StatusBadRequest)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	now := time.Now().UTC()
	snap, err := resolveSnapshot(ctx, d.store, facilityID, now)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	resp := waitResponse{
		FacilityID:  facilityID,
		CourtNumber: courtNumber,
		Sport:       rules.Name,
		WaitMinutes: session.EstimateWaitMinutes(snap, rules, courtNumber),
	}
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		logger.Error().Err(err).Msg("Failed to write wait estimate response")
	}
}

// /api/v1/courts/roster
func HandleRoster(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	d := loadDeps()
	if d == nil {
		logger.Error().Msg("Courts handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	facilityID, ok := request.ParseFacilityID(r.URL.Query().Get("facility_id"))
	if !ok {
		http.Error(w, "Facility ID is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), courtsQueryTimeout)
	defer cancel()

	sessions, err := d.store.ListOpenSessions(ctx, facilityID)
	if err != nil {
		respondStoreError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, map[string]any{
		"facilityId": facilityID,
		"sessions":   sessions,
	}); err != nil {
		logger.Error().Err(err).Msg("Failed to write roster response")
	}
}

// InvalidateAvailability drops the cached availability view for a facility
// after a write changes it.
func InvalidateAvailability(facilityID int64) {
	d := loadDeps()
	if d == nil || d.cache == nil {
		return
	}
	d.cache.Invalidate(fmt.Sprintf("availability:%d", facilityID))
}

func resolveSnapshot(ctx context.Context, st store.Store, facilityID int64, now time.Time) (occupancy.Snapshot, error) {
	facility, err := st.GetFacility(ctx, facilityID)
	if err != nil {
		return occupancy.Snapshot{}, err
	}
	blocks, err := st.ListBlocks(ctx, facilityID)
	if err != nil {
		return occupancy.Snapshot{}, err
	}
	sessions, err := st.ListOpenSessions(ctx, facilityID)
	if err != nil {
		return occupancy.Snapshot{}, err
	}
	return occupancy.Resolve(facility, blocks, sessions, now), nil
}

func respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Facility not found", http.StatusNotFound)
	case errors.Is(err, store.ErrUnavailable):
		logger.Error().Err(err).Msg("Store unavailable")
		http.Error(w, "Service temporarily unavailable, please retry", http.StatusServiceUnavailable)
	default:
		logger.Error().Err(err).Msg("Failed to load availability")
		http.Error(w, "Failed to load availability", http.StatusInternalServerError)
	}
}

func writeAvailability(w http.ResponseWriter, r *http.Request, resp availabilityResponse) {
	if err := apiutil.WriteJSON(w, http.StatusOK, resp); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to write availability response")
	}
}

func sortedKeys(set map[int]struct{}) []int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
