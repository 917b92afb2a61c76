package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository using SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewSessionRepository creates a new SQLite class-session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const sessionColumns = `id, class_id, rule_id, studio, title, start_at, end_at,
	capacity, booked_count, status, source, created_at, updated_at`

// UpsertSession inserts the session or, when a row already exists for the
// (class_id, studio, start_at) identity, refreshes only the display fields.
// booked_count, status, and capacity survive re-materialization untouched.
// The returned bool reports whether a new row was created.
func (r *SessionRepository) UpsertSession(ctx context.Context, session persistence.ClassSession) (persistence.ClassSession, bool, error) {
	if session.ID == "" || session.ClassID == "" {
		return persistence.ClassSession{}, false, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	var (
		out     persistence.ClassSession
		created bool
	)

	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var existingID string
		err := r.helper.QueryRowTx(tx, `
			SELECT id FROM class_sessions WHERE class_id = ? AND studio = ? AND start_at = ?`,
			session.ClassID, session.Studio, formatTime(session.StartAt)).Scan(&existingID)

		switch {
		case err == sql.ErrNoRows:
			created = true
			session.CreatedAt = now
			session.UpdatedAt = now
			if session.Status == "" {
				session.Status = persistence.SessionScheduled
			}
			_, err = r.helper.ExecTx(tx, `
				INSERT INTO class_sessions (`+sessionColumns+`)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				session.ID,
				session.ClassID,
				nullString(session.RuleID),
				session.Studio,
				session.Title,
				formatTime(session.StartAt),
				formatTime(session.EndAt),
				session.Capacity,
				session.BookedCount,
				session.Status,
				session.Source,
				formatTime(session.CreatedAt),
				formatTime(session.UpdatedAt),
			)
			if err != nil {
				return err
			}
			out = session
			return nil
		case err != nil:
			return err
		}

		_, err = r.helper.ExecTx(tx, `
			UPDATE class_sessions
			SET title = ?, end_at = ?, rule_id = ?, source = ?, updated_at = ?
			WHERE id = ?`,
			session.Title,
			formatTime(session.EndAt),
			nullString(session.RuleID),
			session.Source,
			formatTime(now),
			existingID,
		)
		if err != nil {
			return err
		}
		out, err = r.getSessionTx(tx, existingID)
		return err
	})
	if err != nil {
		return persistence.ClassSession{}, false, r.mapper.MapError(err)
	}
	return out, created, nil
}

// GetSession fetches a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.ClassSession, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+sessionColumns+` FROM class_sessions WHERE id = ?`, id)
	return r.scanSession(row)
}

// ListSessions returns sessions matching the filter ordered by start time.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.ClassSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM class_sessions`
	conditions := make([]string, 0, 4)
	args := make([]any, 0, 4)

	if filter.From != nil {
		conditions = append(conditions, "start_at >= ?")
		args = append(args, formatTime(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "start_at < ?")
		args = append(args, formatTime(*filter.To))
	}
	if filter.Studio != "" {
		conditions = append(conditions, "studio = ?")
		args = append(args, filter.Studio)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, "class_id = ?")
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_at, studio"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	sessions := make([]persistence.ClassSession, 0)
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ReserveSeats claims seats on a session with a single conditional update.
// The claim fails without side effects when it would exceed capacity or when
// the session is cancelled or missing.
func (r *SessionRepository) ReserveSeats(ctx context.Context, sessionID string, seats int) error {
	if seats <= 0 {
		return persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE class_sessions
		SET booked_count = booked_count + ?,
			status = CASE WHEN booked_count + ? >= capacity THEN ? ELSE ? END,
			updated_at = ?
		WHERE id = ? AND status <> ? AND booked_count + ? <= capacity`,
		seats, seats,
		persistence.SessionFull, persistence.SessionScheduled,
		formatTime(time.Now().UTC()),
		sessionID, persistence.SessionCancelled, seats,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Distinguish a full session from a missing or cancelled one.
	var status string
	err = r.helper.QueryRow(ctx, `SELECT status FROM class_sessions WHERE id = ?`, sessionID).Scan(&status)
	if err == sql.ErrNoRows {
		return persistence.ErrNotFound
	}
	if err != nil {
		return r.mapper.MapError(err)
	}
	if status == persistence.SessionCancelled {
		return persistence.ErrNotFound
	}
	return persistence.ErrCapacityExceeded
}

// ReleaseSeats returns seats to a session, flooring booked_count at zero and
// restoring the scheduled status when room opens up.
func (r *SessionRepository) ReleaseSeats(ctx context.Context, sessionID string, seats int) error {
	if seats <= 0 {
		return persistence.ErrConstraintViolation
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE class_sessions
		SET booked_count = MAX(0, booked_count - ?),
			status = CASE
				WHEN status = ? THEN status
				WHEN MAX(0, booked_count - ?) < capacity THEN ?
				ELSE ?
			END,
			updated_at = ?
		WHERE id = ?`,
		seats,
		persistence.SessionCancelled,
		seats, persistence.SessionScheduled, persistence.SessionFull,
		formatTime(time.Now().UTC()),
		sessionID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) getSessionTx(tx *sql.Tx, id string) (persistence.ClassSession, error) {
	row := r.helper.QueryRowTx(tx, `SELECT `+sessionColumns+` FROM class_sessions WHERE id = ?`, id)
	return r.scanSession(row)
}

func (r *SessionRepository) scanSession(row rowScanner) (persistence.ClassSession, error) {
	var (
		session   persistence.ClassSession
		ruleID    sql.NullString
		startAt   string
		endAt     string
		createdAt string
		updatedAt string
	)
	err := row.Scan(
		&session.ID,
		&session.ClassID,
		&ruleID,
		&session.Studio,
		&session.Title,
		&startAt,
		&endAt,
		&session.Capacity,
		&session.BookedCount,
		&session.Status,
		&session.Source,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.ClassSession{}, r.mapper.MapError(err)
	}

	session.RuleID = stringPtr(ruleID)
	if session.StartAt, err = parseTime(startAt); err != nil {
		return persistence.ClassSession{}, err
	}
	if session.EndAt, err = parseTime(endAt); err != nil {
		return persistence.ClassSession{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.ClassSession{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.ClassSession{}, err
	}
	return session, nil
}
