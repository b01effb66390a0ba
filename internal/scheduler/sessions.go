package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courtsidehq/courtside/internal/store"
)

// ExpireSessions completes every open session whose estimated end has
// passed. The occupancy resolver already ignores such sessions; this sweep
// converges the stored records with that view.
func ExpireSessions(ctx context.Context, st store.Store, now time.Time) error {
	if st == nil {
		return fmt.Errorf("session expiry requires a store")
	}

	closed, err := st.ExpireSessions(ctx, now)
	if err != nil {
		return fmt.Errorf("expire sessions: %w", err)
	}
	if closed > 0 {
		log.Ctx(ctx).Info().
			Int64("closed_sessions", closed).
			Time("as_of", now).
			Msg("Expired sessions past estimated end")
	}
	return nil
}
