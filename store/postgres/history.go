package postgres

import (
	"context"
	"fmt"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

type historyRow struct {
	UserID       string    `db:"user_id"`
	PasswordHash string    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
}

func (s *Store) RecentPasswordHashes(ctx context.Context, userID string, limit int) ([]goGuard.PasswordHistoryEntry, error) {
	var rows []historyRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT user_id, password_hash, created_at FROM password_history
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select password history: %w", err)
	}
	out := make([]goGuard.PasswordHistoryEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, goGuard.PasswordHistoryEntry{
			UserID:       r.UserID,
			PasswordHash: r.PasswordHash,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

// CommitPasswordChange updates the hash, inserts history and trims it to the
// newest KeepHistory rows in one transaction.
func (s *Store) CommitPasswordChange(ctx context.Context, change goGuard.PasswordChange) error {
	changedAt := change.ChangedAt.UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, password_changed_at = $3,
		password_reset_expiry = CASE WHEN $4 THEN NULL ELSE password_reset_expiry END
		WHERE id = $1`,
		change.UserID, change.NewHash, changedAt, change.ClearResetExpiry)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return goGuard.ErrUserNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO password_history (user_id, password_hash, created_at) VALUES ($1, $2, $3)`,
		change.UserID, change.NewHash, changedAt); err != nil {
		return fmt.Errorf("insert password history: %w", err)
	}

	if change.KeepHistory > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM password_history WHERE user_id = $1 AND id NOT IN (
				SELECT id FROM password_history WHERE user_id = $1
				ORDER BY created_at DESC, id DESC LIMIT $2)`,
			change.UserID, change.KeepHistory); err != nil {
			return fmt.Errorf("trim password history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit password change: %w", err)
	}
	return nil
}
