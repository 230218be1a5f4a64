package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// Store implements goGuard.CredentialStore, goGuard.PasswordHistoryStore and
// goGuard.AuditStore.
type Store struct {
	db *sqlx.DB
}

var (
	_ goGuard.CredentialStore      = (*Store)(nil)
	_ goGuard.PasswordHistoryStore = (*Store)(nil)
	_ goGuard.AuditStore           = (*Store)(nil)
)

func New(db *sqlx.DB) *Store { return &Store{db: db} }

// PoolConfig sizes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return db, nil
}

type userRow struct {
	ID                  string     `db:"id"`
	Email               string     `db:"email"`
	PasswordHash        string     `db:"password_hash"`
	FailedCount         int        `db:"failed_count"`
	LockoutEnd          *time.Time `db:"lockout_end"`
	TwoFactorEnabled    bool       `db:"two_factor_enabled"`
	TwoFactorSecret     string     `db:"two_factor_secret"`
	SessionToken        *string    `db:"session_token"`
	PasswordChangedAt   *time.Time `db:"password_changed_at"`
	PasswordResetExpiry *time.Time `db:"password_reset_expiry"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	CreatedAt           time.Time  `db:"created_at"`
}

func (r *userRow) toUser() *goGuard.User {
	return &goGuard.User{
		ID:                  r.ID,
		Email:               r.Email,
		PasswordHash:        r.PasswordHash,
		FailedCount:         r.FailedCount,
		LockoutEnd:          r.LockoutEnd,
		TwoFactorEnabled:    r.TwoFactorEnabled,
		TwoFactorSecret:     r.TwoFactorSecret,
		SessionToken:        r.SessionToken,
		PasswordChangedAt:   r.PasswordChangedAt,
		PasswordResetExpiry: r.PasswordResetExpiry,
		LastLoginAt:         r.LastLoginAt,
		CreatedAt:           r.CreatedAt,
	}
}

const userColumns = `id, email, password_hash, failed_count, lockout_end, two_factor_enabled,
	two_factor_secret, session_token, password_changed_at, password_reset_expiry,
	last_login_at, created_at`

func (s *Store) FindByEmail(ctx context.Context, email string) (*goGuard.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
}

func (s *Store) FindByID(ctx context.Context, id string) (*goGuard.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, goGuard.ErrUserNotFound
	}
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*goGuard.User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goGuard.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return row.toUser(), nil
}

// CreateUser inserts the user and the first history entry in one transaction.
func (s *Store) CreateUser(ctx context.Context, nu goGuard.NewUser) (*goGuard.User, error) {
	created := nu.CreatedAt.UTC()
	if nu.CreatedAt.IsZero() {
		created = time.Now().UTC()
	}
	u := &goGuard.User{
		ID:                uuid.NewString(),
		Email:             strings.ToLower(strings.TrimSpace(nu.Email)),
		PasswordHash:      nu.PasswordHash,
		PasswordChangedAt: &created,
		CreatedAt:         created,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, password_changed_at, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.PasswordHash, created, created)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, goGuard.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO password_history (user_id, password_hash, created_at) VALUES ($1, $2, $3)`,
		u.ID, u.PasswordHash, created)
	if err != nil {
		return nil, fmt.Errorf("insert password history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit user: %w", err)
	}
	return u, nil
}

func (s *Store) IncrementFailedCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowxContext(ctx,
		`UPDATE users SET failed_count = failed_count + 1 WHERE id = $1 RETURNING failed_count`,
		userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, goGuard.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment failed count: %w", err)
	}
	return count, nil
}

func (s *Store) ResetFailedCount(ctx context.Context, userID string) error {
	return s.execOne(ctx, `UPDATE users SET failed_count = 0 WHERE id = $1`, userID)
}

func (s *Store) SetLockoutEnd(ctx context.Context, userID string, end *time.Time) error {
	return s.execOne(ctx, `UPDATE users SET lockout_end = $2 WHERE id = $1`, userID, end)
}

func (s *Store) SetSessionToken(ctx context.Context, userID, token string, loginAt time.Time) error {
	return s.execOne(ctx, `UPDATE users SET session_token = $2, last_login_at = $3 WHERE id = $1`,
		userID, token, loginAt.UTC())
}

func (s *Store) ClearSessionToken(ctx context.Context, userID string) error {
	return s.execOne(ctx, `UPDATE users SET session_token = NULL WHERE id = $1`, userID)
}

func (s *Store) SetPasswordResetExpiry(ctx context.Context, userID string, expiry *time.Time) error {
	return s.execOne(ctx, `UPDATE users SET password_reset_expiry = $2 WHERE id = $1`, userID, expiry)
}

func (s *Store) SetTwoFactor(ctx context.Context, userID string, enabled bool, secret string) error {
	return s.execOne(ctx, `UPDATE users SET two_factor_enabled = $2, two_factor_secret = $3 WHERE id = $1`,
		userID, enabled, secret)
}

func (s *Store) SetPasswordHash(ctx context.Context, userID, hash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if n == 0 {
		return goGuard.ErrUserNotFound
	}
	return nil
}
