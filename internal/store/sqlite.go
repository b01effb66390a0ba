package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/courtsidehq/courtside/internal/db"
	"github.com/courtsidehq/courtside/internal/models"
)

// SQLite implements Store on the embedded SQLite database.
type SQLite struct {
	db *db.DB
}

func NewSQLite(database *db.DB) (*SQLite, error) {
	if database == nil {
		return nil, errors.New("store requires a database")
	}
	return &SQLite{db: database}, nil
}

func (s *SQLite) GetFacility(ctx context.Context, id int64) (models.Facility, error) {
	var f models.Facility
	err := withRetry(ctx, "get_facility", func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT id, name, latitude, longitude, timezone, total_courts, sports
			FROM facilities WHERE id = ?`, id)
		return scanFacility(row, &f)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Facility{}, ErrNotFound
	}
	return f, err
}

func (s *SQLite) ListFacilities(ctx context.Context) ([]models.Facility, error) {
	var facilities []models.Facility
	err := withRetry(ctx, "list_facilities", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, name, latitude, longitude, timezone, total_courts, sports
			FROM facilities ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()

		facilities = facilities[:0]
		for rows.Next() {
			var f models.Facility
			if err := scanFacility(rows, &f); err != nil {
				return err
			}
			facilities = append(facilities, f)
		}
		return rows.Err()
	})
	return facilities, err
}

func (s *SQLite) CreateFacility(ctx context.Context, f models.Facility) (models.Facility, error) {
	if f.TotalCourts < 1 {
		return models.Facility{}, fmt.Errorf("facility must have at least one court")
	}
	if f.Timezone == "" {
		f.Timezone = models.DefaultTimezone
	}
	err := withRetry(ctx, "create_facility", func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO facilities (name, latitude, longitude, timezone, total_courts, sports)
			VALUES (?, ?, ?, ?, ?, ?)`,
			f.Name, f.Latitude, f.Longitude, f.Timezone, f.TotalCourts, f.Sports)
		if err != nil {
			return err
		}
		f.ID, err = result.LastInsertId()
		return err
	})
	return f, err
}

func (s *SQLite) ListBlocks(ctx context.Context, facilityID int64) ([]models.Block, error) {
	var blocks []models.Block
	err := withRetry(ctx, "list_blocks", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, public_id, facility_id, court_number, start_time, end_time, title, reason, status
			FROM blocks
			WHERE facility_id = ? AND status != ?
			ORDER BY start_time`, facilityID, models.BlockStatusCancelled)
		if err != nil {
			return err
		}
		defer rows.Close()

		blocks = blocks[:0]
		for rows.Next() {
			var b models.Block
			if err := rows.Scan(&b.ID, &b.PublicID, &b.FacilityID, &b.CourtNumber,
				&b.StartTime, &b.EndTime, &b.Title, &b.Reason, &b.Status); err != nil {
				return err
			}
			b.StartTime = b.StartTime.UTC()
			b.EndTime = b.EndTime.UTC()
			blocks = append(blocks, b)
		}
		return rows.Err()
	})
	return blocks, err
}

func (s *SQLite) CreateBlock(ctx context.Context, b models.Block) (models.Block, error) {
	if !b.StartTime.Before(b.EndTime) {
		return models.Block{}, fmt.Errorf("block start must be before end")
	}
	if b.PublicID == "" {
		b.PublicID = uuid.New().String()
	}
	if b.Status == "" {
		b.Status = models.BlockStatusActive
	}
	err := withRetry(ctx, "create_block", func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO blocks (public_id, facility_id, court_number, start_time, end_time, title, reason, status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			b.PublicID, b.FacilityID, b.CourtNumber,
			b.StartTime.UTC(), b.EndTime.UTC(), b.Title, b.Reason, b.Status)
		if err != nil {
			return err
		}
		b.ID, err = result.LastInsertId()
		return err
	})
	return b, err
}

func (s *SQLite) CancelBlock(ctx context.Context, publicID string) error {
	return withRetry(ctx, "cancel_block", func() error {
		result, err := s.db.ExecContext(ctx,
			`UPDATE blocks SET status = ? WHERE public_id = ?`,
			models.BlockStatusCancelled, publicID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *SQLite) BlockExistsAt(ctx context.Context, facilityID int64, courtNumber int, start time.Time) (bool, error) {
	var exists bool
	err := withRetry(ctx, "block_exists_at", func() error {
		return s.db.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM blocks
				WHERE facility_id = ? AND court_number = ? AND start_time = ? AND status != ?
			)`,
			facilityID, courtNumber, start.UTC(), models.BlockStatusCancelled).Scan(&exists)
	})
	return exists, err
}

func (s *SQLite) ListOpenSessions(ctx context.Context, facilityID int64) ([]models.Session, error) {
	return s.querySessions(ctx, "list_open_sessions", `
		SELECT `+sessionColumns+` FROM sessions
		WHERE facility_id = ? AND status IN (?, ?)
		ORDER BY start_time`,
		facilityID, models.SessionStatusActive, models.SessionStatusWaiting)
}

func (s *SQLite) ListOpenSessionsByPlayer(ctx context.Context, playerID int64) ([]models.Session, error) {
	return s.querySessions(ctx, "list_open_sessions_by_player", `
		SELECT `+sessionColumns+` FROM sessions
		WHERE player_id = ? AND status IN (?, ?)
		ORDER BY start_time`,
		playerID, models.SessionStatusActive, models.SessionStatusWaiting)
}

func (s *SQLite) GetSession(ctx context.Context, publicID string) (models.Session, error) {
	var sess models.Session
	err := withRetry(ctx, "get_session", func() error {
		row := s.db.QueryRowContext(ctx, `
			SELECT `+sessionColumns+` FROM sessions WHERE public_id = ?`, publicID)
		return scanSession(row, &sess)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrNotFound
	}
	return sess, err
}

func (s *SQLite) CreateSession(ctx context.Context, sess models.Session) (models.Session, error) {
	if sess.PublicID == "" {
		sess.PublicID = uuid.New().String()
	}
	err := withRetry(ctx, "create_session", func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO sessions (public_id, facility_id, player_id, court_number, sport,
				status, start_time, estimated_end_time, group_id, is_organizer)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.PublicID, sess.FacilityID, sess.PlayerID, sess.CourtNumber, sess.Sport,
			sess.Status, sess.StartTime.UTC(), sess.EstimatedEndTime.UTC(),
			sess.GroupID, sess.IsOrganizer)
		if err != nil {
			return err
		}
		sess.ID, err = result.LastInsertId()
		return err
	})
	return sess, err
}

func (s *SQLite) CompleteSession(ctx context.Context, publicID string, endTime time.Time) error {
	return withRetry(ctx, "complete_session", func() error {
		_, err := s.db.ExecContext(ctx, `
			UPDATE sessions
			SET status = ?, actual_end_time = ?
			WHERE public_id = ? AND status != ?`,
			models.SessionStatusCompleted, endTime.UTC(), publicID, models.SessionStatusCompleted)
		return err
	})
}

func (s *SQLite) CompleteOpenSessionsForPlayer(ctx context.Context, playerID int64, endTime time.Time) (int64, error) {
	var closed int64
	err := withRetry(ctx, "complete_open_sessions_for_player", func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE sessions
			SET status = ?, actual_end_time = ?
			WHERE player_id = ? AND status IN (?, ?)`,
			models.SessionStatusCompleted, endTime.UTC(), playerID,
			models.SessionStatusActive, models.SessionStatusWaiting)
		if err != nil {
			return err
		}
		closed, err = result.RowsAffected()
		return err
	})
	return closed, err
}

func (s *SQLite) ExpireSessions(ctx context.Context, now time.Time) (int64, error) {
	var closed int64
	err := withRetry(ctx, "expire_sessions", func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE sessions
			SET status = ?, actual_end_time = estimated_end_time
			WHERE status IN (?, ?) AND estimated_end_time <= ?`,
			models.SessionStatusCompleted,
			models.SessionStatusActive, models.SessionStatusWaiting, now.UTC())
		if err != nil {
			return err
		}
		closed, err = result.RowsAffected()
		return err
	})
	return closed, err
}

func (s *SQLite) ListRecurringBlocks(ctx context.Context) ([]models.RecurringBlock, error) {
	var recurring []models.RecurringBlock
	err := withRetry(ctx, "list_recurring_blocks", func() error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, facility_id, court_number, schedule, duration_minutes, title, reason
			FROM recurring_blocks ORDER BY id`)
		if err != nil {
			return err
		}
		defer rows.Close()

		recurring = recurring[:0]
		for rows.Next() {
			var rb models.RecurringBlock
			if err := rows.Scan(&rb.ID, &rb.FacilityID, &rb.CourtNumber,
				&rb.Schedule, &rb.DurationMinutes, &rb.Title, &rb.Reason); err != nil {
				return err
			}
			recurring = append(recurring, rb)
		}
		return rows.Err()
	})
	return recurring, err
}

func (s *SQLite) CreateRecurringBlock(ctx context.Context, rb models.RecurringBlock) (models.RecurringBlock, error) {
	if rb.DurationMinutes <= 0 {
		return models.RecurringBlock{}, fmt.Errorf("recurring block duration must be positive")
	}
	err := withRetry(ctx, "create_recurring_block", func() error {
		result, err := s.db.ExecContext(ctx, `
			INSERT INTO recurring_blocks (facility_id, court_number, schedule, duration_minutes, title, reason)
			VALUES (?, ?, ?, ?, ?, ?)`,
			rb.FacilityID, rb.CourtNumber, rb.Schedule, rb.DurationMinutes, rb.Title, rb.Reason)
		if err != nil {
			return err
		}
		rb.ID, err = result.LastInsertId()
		return err
	})
	return rb, err
}

const sessionColumns = `id, public_id, facility_id, player_id, court_number, sport,
	status, start_time, estimated_end_time, actual_end_time, group_id, is_organizer`

func (s *SQLite) querySessions(ctx context.Context, name, query string, args ...any) ([]models.Session, error) {
	var sessions []models.Session
	err := withRetry(ctx, name, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		sessions = sessions[:0]
		for rows.Next() {
			var sess models.Session
			if err := scanSession(rows, &sess); err != nil {
				return err
			}
			sessions = append(sessions, sess)
		}
		return rows.Err()
	})
	return sessions, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFacility(row scanner, f *models.Facility) error {
	return row.Scan(&f.ID, &f.Name, &f.Latitude, &f.Longitude, &f.Timezone, &f.TotalCourts, &f.Sports)
}

func scanSession(row scanner, sess *models.Session) error {
	var actualEnd sql.NullTime
	if err := row.Scan(&sess.ID, &sess.PublicID, &sess.FacilityID, &sess.PlayerID,
		&sess.CourtNumber, &sess.Sport, &sess.Status,
		&sess.StartTime, &sess.EstimatedEndTime, &actualEnd,
		&sess.GroupID, &sess.IsOrganizer); err != nil {
		return err
	}
	sess.StartTime = sess.StartTime.UTC()
	sess.EstimatedEndTime = sess.EstimatedEndTime.UTC()
	if actualEnd.Valid {
		t := actualEnd.Time.UTC()
		sess.ActualEndTime = &t
	}
	return nil
}
