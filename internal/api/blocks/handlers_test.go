package blocks

// NOTE: Tests cannot use t.Parallel() due to shared package state.

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/store"
	"github.com/courtsidehq/courtside/internal/testutil"
)

func setupBlocksTest(t *testing.T) (store.Store, models.Facility) {
	t.Helper()

	s := testutil.NewTestStore(t)
	facility, err := s.CreateFacility(context.Background(), models.Facility{
		Name:        "Bond Park",
		Latitude:    35.7321,
		Longitude:   -78.8503,
		Timezone:    "America/New_York",
		TotalCourts: 4,
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}

	st = nil
	stOnce = sync.Once{}
	InitHandlers(s)

	t.Cleanup(func() {
		st = nil
		stOnce = sync.Once{}
	})

	return s, facility
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleCreateBlock(t *testing.T) {
	s, facility := setupBlocksTest(t)
	now := time.Now().UTC().Truncate(time.Second)

	rec := postJSON(t, HandleCreateBlock, "/api/v1/blocks", map[string]any{
		"facilityId":  facility.ID,
		"courtNumber": 2,
		"startTime":   now.Add(time.Hour),
		"endTime":     now.Add(2 * time.Hour),
		"title":       "Lessons",
		"reason":      "instruction",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var created models.Block
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.PublicID == "" || created.Title != "Lessons" {
		t.Errorf("created = %+v", created)
	}

	blocks, err := s.ListBlocks(context.Background(), facility.ID)
	if err != nil {
		t.Fatalf("list blocks: %v", err)
	}
	if len(blocks) != 1 {
		t.Errorf("persisted blocks = %d, want 1", len(blocks))
	}
}

func TestHandleCreateBlockValidation(t *testing.T) {
	_, facility := setupBlocksTest(t)
	now := time.Now().UTC()

	tests := []struct {
		name     string
		body     map[string]any
		wantCode int
	}{
		{
			"inverted window",
			map[string]any{
				"facilityId": facility.ID, "courtNumber": 1,
				"startTime": now.Add(2 * time.Hour), "endTime": now.Add(time.Hour),
			},
			http.StatusBadRequest,
		},
		{
			"court out of range",
			map[string]any{
				"facilityId": facility.ID, "courtNumber": 9,
				"startTime": now, "endTime": now.Add(time.Hour),
			},
			http.StatusBadRequest,
		},
		{
			"unknown facility",
			map[string]any{
				"facilityId": 9999, "courtNumber": 1,
				"startTime": now, "endTime": now.Add(time.Hour),
			},
			http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, HandleCreateBlock, "/api/v1/blocks", tt.body)
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body.String())
			}
		})
	}
}

func TestHandleCancelBlock(t *testing.T) {
	s, facility := setupBlocksTest(t)
	now := time.Now().UTC()

	block, err := s.CreateBlock(context.Background(), models.Block{
		FacilityID:  facility.ID,
		CourtNumber: 1,
		StartTime:   now,
		EndTime:     now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create block: %v", err)
	}

	rec := postJSON(t, HandleCancelBlock, "/api/v1/blocks/cancel", map[string]any{"blockId": block.PublicID})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, HandleCancelBlock, "/api/v1/blocks/cancel", map[string]any{"blockId": "missing"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing block status = %d, want 404", rec.Code)
	}
}

func TestHandleCreateRecurringBlock(t *testing.T) {
	_, facility := setupBlocksTest(t)

	rec := postJSON(t, HandleCreateRecurringBlock, "/api/v1/blocks/recurring", map[string]any{
		"facilityId":      facility.ID,
		"courtNumber":     0,
		"schedule":        "0 9 * * 1",
		"durationMinutes": 120,
		"title":           "Monday Clinic",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, HandleCreateRecurringBlock, "/api/v1/blocks/recurring", map[string]any{
		"facilityId":      facility.ID,
		"schedule":        "not a cron",
		"durationMinutes": 60,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid schedule status = %d, want 400", rec.Code)
	}
}
