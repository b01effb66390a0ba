package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/internal/models"
	"github.com/courtsidehq/courtside/internal/store"
)

// recurringParser matches the five-field format accepted at the API
// boundary when the schedule was created.
var recurringParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// MaterializeRecurringBlocks writes concrete block rows for every recurring
// schedule's occurrences within (now, now+horizon]. Schedules are evaluated
// in the owning facility's timezone. Already-materialized occurrences are
// skipped, so the sweep is safe to rerun.
func MaterializeRecurringBlocks(ctx context.Context, st store.Store, now time.Time, horizon time.Duration) error {
	if st == nil {
		return fmt.Errorf("block materialization requires a store")
	}

	recurring, err := st.ListRecurringBlocks(ctx)
	if err != nil {
		return fmt.Errorf("list recurring blocks: %w", err)
	}

	logger := log.Ctx(ctx)
	for _, rb := range recurring {
		schedule, err := recurringParser.Parse(rb.Schedule)
		if err != nil {
			logger.Error().Err(err).
				Int64("recurring_block_id", rb.ID).
				Str("schedule", rb.Schedule).
				Msg("Skipping recurring block with invalid schedule")
			continue
		}

		facility, err := st.GetFacility(ctx, rb.FacilityID)
		if err != nil {
			logger.Error().Err(err).
				Int64("recurring_block_id", rb.ID).
				Int64("facility_id", rb.FacilityID).
				Msg("Skipping recurring block for missing facility")
			continue
		}

		// Occurrences are computed in facility-local wall-clock time and
		// stored as UTC instants.
		cursor := now.In(facility.Location())
		cutoff := cursor.Add(horizon)
		for {
			next := schedule.Next(cursor)
			if next.IsZero() || next.After(cutoff) {
				break
			}
			cursor = next

			start := next.UTC()
			exists, err := st.BlockExistsAt(ctx, rb.FacilityID, rb.CourtNumber, start)
			if err != nil {
				return fmt.Errorf("check existing block: %w", err)
			}
			if exists {
				continue
			}

			_, err = st.CreateBlock(ctx, models.Block{
				FacilityID:  rb.FacilityID,
				CourtNumber: rb.CourtNumber,
				StartTime:   start,
				EndTime:     start.Add(time.Duration(rb.DurationMinutes) * time.Minute),
				Title:       rb.Title,
				Reason:      rb.Reason,
			})
			if err != nil {
				return fmt.Errorf("materialize block for schedule %d: %w", rb.ID, err)
			}
			logger.Info().
				Int64("recurring_block_id", rb.ID).
				Int64("facility_id", rb.FacilityID).
				Time("start_time", start).
				Msg("Materialized recurring block")
		}
	}
	return nil
}
