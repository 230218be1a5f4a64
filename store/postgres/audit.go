package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/google/uuid"
)

type auditRow struct {
	ID        string         `db:"id"`
	UserID    sql.NullString `db:"user_id"`
	Action    string         `db:"action"`
	Detail    string         `db:"detail"`
	Score     *float64       `db:"score"`
	IP        string         `db:"ip"`
	UserAgent string         `db:"user_agent"`
	Success   bool           `db:"success"`
	CreatedAt time.Time      `db:"created_at"`
}

// AppendAudit inserts one event. Events without a user are stored with a NULL
// user_id.
func (s *Store) AppendAudit(ctx context.Context, ev goGuard.AuditEvent) error {
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	ts := ev.Timestamp.UTC()
	if ev.Timestamp.IsZero() {
		ts = time.Now().UTC()
	}
	var userID sql.NullString
	if ev.UserID != "" {
		userID = sql.NullString{String: ev.UserID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_logs (id, user_id, action, detail, score, ip, user_agent, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, userID, ev.Action, ev.Detail, ev.Score, ev.IP, ev.UserAgent, ev.Success, ts)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s *Store) ListAuditByUser(ctx context.Context, userID string, limit int) ([]goGuard.AuditEvent, error) {
	var rows []auditRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, action, detail, score, ip, user_agent, success, created_at
		FROM audit_logs WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit logs: %w", err)
	}
	out := make([]goGuard.AuditEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, goGuard.AuditEvent{
			ID:        r.ID,
			Timestamp: r.CreatedAt,
			Action:    r.Action,
			Success:   r.Success,
			UserID:    r.UserID.String,
			Detail:    r.Detail,
			Score:     r.Score,
			IP:        r.IP,
			UserAgent: r.UserAgent,
		})
	}
	return out, nil
}
