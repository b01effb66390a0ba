package session

import (
	"context"
	"testing"
	"time"

	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/occupancy"
	"github.com/courtsidehq/courtside/internal/sport"
	"github.com/courtsidehq/courtside/internal/store"
	"github.com/courtsidehq/courtside/internal/testutil"
)

var testNow = time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)

func setupManager(t *testing.T) (*Manager, store.Store) {
	t.Helper()
	st := testutil.NewTestStore(t)
	manager, err := NewManager(st)
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	return manager, st
}

func createFacility(t *testing.T, st store.Store, name string) models.Facility {
	t.Helper()
	facility, err := st.CreateFacility(context.Background(), models.Facility{
		Name:        name,
		Latitude:    35.7321,
		Longitude:   -78.8503,
		Timezone:    "America/New_York",
		TotalCourts: 4,
	})
	if err != nil {
		t.Fatalf("create facility: %v", err)
	}
	return facility
}

func TestStartSetsDurationBySport(t *testing.T) {
	manager, st := setupManager(t)
	facility := createFacility(t, st, "Bond Park")

	tests := []struct {
		sportName string
		want      time.Duration
	}{
		{sport.Basketball, 60 * time.Minute},
		{sport.Tennis, 90 * time.Minute},
		{sport.Pickleball, 20 * time.Minute},
	}

	for i, tt := range tests {
		t.Run(tt.sportName, func(t *testing.T) {
			sess, err := manager.Start(context.Background(), StartRequest{
				PlayerID:    int64(100 + i),
				Facility:    facility,
				CourtNumber: 1,
				Sport:       tt.sportName,
			}, testNow)
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if got := sess.EstimatedEndTime.Sub(sess.StartTime); got != tt.want {
				t.Errorf("duration = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStartClosesPriorSessionsFirst(t *testing.T) {
	manager, st := setupManager(t)
	facilityA := createFacility(t, st, "Facility A")
	facilityB := createFacility(t, st, "Facility B")
	ctx := context.Background()

	first, err := manager.Start(ctx, StartRequest{
		PlayerID:    7,
		Facility:    facilityA,
		CourtNumber: 1,
		Sport:       sport.Tennis,
	}, testNow)
	if err != nil {
		t.Fatalf("first Start() error = %v", err)
	}

	later := testNow.Add(10 * time.Minute)
	second, err := manager.Start(ctx, StartRequest{
		PlayerID:    7,
		Facility:    facilityB,
		CourtNumber: 2,
		Sport:       sport.Tennis,
	}, later)
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}

	// The Facility A session is completed with the new check-in's time.
	closed, err := st.GetSession(ctx, first.PublicID)
	if err != nil {
		t.Fatalf("get first session: %v", err)
	}
	if closed.Status != models.SessionStatusCompleted {
		t.Errorf("prior session status = %q, want completed", closed.Status)
	}
	if closed.ActualEndTime == nil || !closed.ActualEndTime.Equal(later) {
		t.Errorf("prior session ActualEndTime = %v, want %v", closed.ActualEndTime, later)
	}

	// At most one open session per player.
	open, err := st.ListOpenSessionsByPlayer(ctx, 7)
	if err != nil {
		t.Fatalf("list open sessions: %v", err)
	}
	if len(open) != 1 || open[0].PublicID != second.PublicID {
		t.Errorf("open sessions = %d, want exactly the new one", len(open))
	}
}

func TestStartEndRoundTrip(t *testing.T) {
	manager, st := setupManager(t)
	facility := createFacility(t, st, "Bond Park")
	ctx := context.Background()

	sess, err := manager.Start(ctx, StartRequest{
		PlayerID:    9,
		Facility:    facility,
		CourtNumber: 3,
		Sport:       sport.Basketball,
	}, testNow)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	end := testNow.Add(45 * time.Minute)
	if err := manager.End(ctx, sess.PublicID, end); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	got, err := st.GetSession(ctx, sess.PublicID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != models.SessionStatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.ActualEndTime == nil || got.ActualEndTime.Before(got.StartTime) {
		t.Errorf("ActualEndTime = %v, want ≥ start %v", got.ActualEndTime, got.StartTime)
	}
}

func TestEndIsIdempotent(t *testing.T) {
	manager, st := setupManager(t)
	facility := createFacility(t, st, "Bond Park")
	ctx := context.Background()

	sess, err := manager.Start(ctx, StartRequest{
		PlayerID:    9,
		Facility:    facility,
		CourtNumber: 1,
		Sport:       sport.Tennis,
	}, testNow)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	firstEnd := testNow.Add(30 * time.Minute)
	if err := manager.End(ctx, sess.PublicID, firstEnd); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	// A second checkout later must not move the end time or error.
	if err := manager.End(ctx, sess.PublicID, firstEnd.Add(time.Hour)); err != nil {
		t.Fatalf("second End() error = %v", err)
	}

	got, err := st.GetSession(ctx, sess.PublicID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ActualEndTime == nil || !got.ActualEndTime.Equal(firstEnd) {
		t.Errorf("ActualEndTime = %v, want unchanged %v", got.ActualEndTime, firstEnd)
	}
}

func TestStartOrganizerGetsGroup(t *testing.T) {
	manager, st := setupManager(t)
	facility := createFacility(t, st, "Bond Park")

	sess, err := manager.Start(context.Background(), StartRequest{
		PlayerID:    12,
		Facility:    facility,
		CourtNumber: 1,
		Sport:       sport.Tennis,
		IsOrganizer: true,
	}, testNow)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sess.GroupID == "" {
		t.Error("organizer tennis session has no group ID")
	}
}

func TestStartRejectsBadStatus(t *testing.T) {
	manager, st := setupManager(t)
	facility := createFacility(t, st, "Bond Park")

	_, err := manager.Start(context.Background(), StartRequest{
		PlayerID:    12,
		Facility:    facility,
		CourtNumber: 1,
		Sport:       sport.Tennis,
		Status:      "paused",
	}, testNow)
	if err == nil {
		t.Error("expected error for invalid status")
	}
}

func pooledSnapshot(totalCourts, active, waiting int) occupancy.Snapshot {
	facility := models.Facility{ID: 1, TotalCourts: totalCourts, Timezone: "UTC"}
	sessions := make([]models.Session, 0, active+waiting)
	for i := 0; i < active; i++ {
		sessions = append(sessions, models.Session{
			PlayerID:         int64(i + 1),
			CourtNumber:      i%totalCourts + 1,
			Status:           models.SessionStatusActive,
			EstimatedEndTime: testNow.Add(time.Hour),
		})
	}
	for i := 0; i < waiting; i++ {
		sessions = append(sessions, models.Session{
			PlayerID:         int64(100 + i),
			Status:           models.SessionStatusWaiting,
			EstimatedEndTime: testNow.Add(time.Hour),
		})
	}
	return occupancy.Resolve(facility, nil, sessions, testNow)
}

func TestEstimateWaitMinutesPooled(t *testing.T) {
	rules, err := sport.RulesFor(sport.Pickleball)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}

	tests := []struct {
		name                    string
		courts, active, waiting int
		want                    int
	}{
		{"empty facility", 2, 0, 0, 0},
		{"under capacity", 2, 6, 0, 0},
		{"just under capacity", 2, 7, 0, 0},
		{"full with one waiting", 2, 8, 1, 20},
		{"full with five waiting", 2, 8, 5, 20},
		{"full with nine waiting", 2, 8, 9, 40},
		{"full with empty waitlist", 2, 8, 0, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := pooledSnapshot(tt.courts, tt.active, tt.waiting)
			if got := EstimateWaitMinutes(snap, rules, 0); got != tt.want {
				t.Errorf("EstimateWaitMinutes() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestEstimateWaitMinutesPerCourt(t *testing.T) {
	rules, err := sport.RulesFor(sport.Tennis)
	if err != nil {
		t.Fatalf("rules: %v", err)
	}
	facility := models.Facility{ID: 1, TotalCourts: 2, Timezone: "UTC"}
	sessions := []models.Session{
		{PlayerID: 1, CourtNumber: 1, Status: models.SessionStatusActive, EstimatedEndTime: testNow.Add(40 * time.Minute)},
		{PlayerID: 2, CourtNumber: 1, Status: models.SessionStatusActive, EstimatedEndTime: testNow.Add(80 * time.Minute)},
	}
	snap := occupancy.Resolve(facility, nil, sessions, testNow)

	if got := EstimateWaitMinutes(snap, rules, 1); got != 40 {
		t.Errorf("wait for court 1 = %d, want 40 (soonest estimated end)", got)
	}
	if got := EstimateWaitMinutes(snap, rules, 2); got != 0 {
		t.Errorf("wait for empty court 2 = %d, want 0", got)
	}
}
