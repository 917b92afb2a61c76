package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository and
// persistence.AuthSessionRepository using SQLite.
type UserRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository.
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const userColumns = `id, email, display_name, password_hash, is_admin, created_at, updated_at`

// CreateUser inserts a new user account.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) (persistence.User, error) {
	if user.ID == "" || user.Email == "" {
		return persistence.User{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.helper.Exec(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash,
		boolToInt(user.IsAdmin), formatTime(user.CreatedAt), formatTime(user.UpdatedAt))
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}
	return user, nil
}

// GetUser fetches a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return r.scanUser(row)
}

// GetUserByEmail fetches a user by email (case-insensitive).
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)))
	return r.scanUser(row)
}

// CountUsers returns the number of user accounts.
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.helper.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

const authSessionColumns = `id, user_id, token, expires_at, created_at, updated_at, revoked_at`

// CreateAuthSession inserts an issued session token.
func (r *UserRepository) CreateAuthSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	if session.ID == "" || session.Token == "" || session.UserID == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO auth_sessions (`+authSessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.UserID, session.Token,
		formatTime(session.ExpiresAt), formatTime(session.CreatedAt), formatTime(session.UpdatedAt),
		nullTime(session.RevokedAt))
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}
	return session, nil
}

// GetAuthSession fetches a session by token.
func (r *UserRepository) GetAuthSession(ctx context.Context, token string) (persistence.AuthSession, error) {
	row := r.helper.QueryRow(ctx, `SELECT `+authSessionColumns+` FROM auth_sessions WHERE token = ?`, token)

	var (
		session   persistence.AuthSession
		expiresAt string
		createdAt string
		updatedAt string
		revokedAt sql.NullString
	)
	err := row.Scan(&session.ID, &session.UserID, &session.Token, &expiresAt, &createdAt, &updatedAt, &revokedAt)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}

	if session.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.RevokedAt, err = timePtr(revokedAt); err != nil {
		return persistence.AuthSession{}, err
	}
	return session, nil
}

// RevokeAuthSession stamps a session as revoked.
func (r *UserRepository) RevokeAuthSession(ctx context.Context, token string, revokedAt time.Time) (persistence.AuthSession, error) {
	result, err := r.helper.Exec(ctx, `
		UPDATE auth_sessions SET revoked_at = ?, updated_at = ? WHERE token = ?`,
		formatTime(revokedAt), formatTime(revokedAt), token)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.AuthSession{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	return r.GetAuthSession(ctx, token)
}

// DeleteExpiredAuthSessions prunes sessions that expired before reference.
func (r *UserRepository) DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error {
	_, err := r.helper.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at < ?`, formatTime(reference))
	if err != nil {
		return r.mapper.MapError(err)
	}
	return nil
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var (
		user      persistence.User
		isAdmin   int
		createdAt string
		updatedAt string
	)
	err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &isAdmin, &createdAt, &updatedAt)
	if err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	user.IsAdmin = isAdmin != 0
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}
