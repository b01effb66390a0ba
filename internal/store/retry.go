package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const (
	maxAttempts  = 3
	backoffStep  = 250 * time.Millisecond
	retryContext = "store_retry"
)

// withRetry runs op up to maxAttempts times with linear backoff, retrying
// only transient infrastructure failures. Business results and validation
// errors pass through on the first attempt. Exhausted retries surface as
// ErrUnavailable wrapping the last failure.
func withRetry(ctx context.Context, name string, op func() error) error {
	var last error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		last = err
		log.Ctx(ctx).Warn().
			Err(err).
			Str("component", retryContext).
			Str("operation", name).
			Int("attempt", attempt).
			Msg("Transient store failure")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoffStep * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, name, last)
}

// isTransient classifies failures worth retrying: lock contention on the
// local database and network-class errors. Everything else (constraint
// violations, missing rows, bad SQL) is permanent.
func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, driver.ErrBadConn)
}
