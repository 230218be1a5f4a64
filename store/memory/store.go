package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/google/uuid"
)

// Store keeps users, password history and audit events in maps guarded by one
// mutex. Returned records are copies.
type Store struct {
	mu      sync.Mutex
	users   map[string]*goGuard.User
	byEmail map[string]string
	history map[string][]goGuard.PasswordHistoryEntry
	audit   []goGuard.AuditEvent
}

var (
	_ goGuard.CredentialStore      = (*Store)(nil)
	_ goGuard.PasswordHistoryStore = (*Store)(nil)
	_ goGuard.AuditStore           = (*Store)(nil)
)

func New() *Store {
	return &Store{
		users:   make(map[string]*goGuard.User),
		byEmail: make(map[string]string),
		history: make(map[string][]goGuard.PasswordHistoryEntry),
	}
}

func (s *Store) FindByEmail(_ context.Context, email string) (*goGuard.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, goGuard.ErrUserNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *Store) FindByID(_ context.Context, id string) (*goGuard.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, goGuard.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) CreateUser(_ context.Context, nu goGuard.NewUser) (*goGuard.User, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	created := nu.CreatedAt.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[email]; taken {
		return nil, goGuard.ErrEmailTaken
	}
	u := &goGuard.User{
		ID:                uuid.NewString(),
		Email:             email,
		PasswordHash:      nu.PasswordHash,
		PasswordChangedAt: &created,
		CreatedAt:         created,
	}
	s.users[u.ID] = u
	s.byEmail[email] = u.ID
	s.history[u.ID] = []goGuard.PasswordHistoryEntry{{
		UserID:       u.ID,
		PasswordHash: nu.PasswordHash,
		CreatedAt:    created,
	}}
	return cloneUser(u), nil
}

func (s *Store) IncrementFailedCount(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return 0, goGuard.ErrUserNotFound
	}
	u.FailedCount++
	return u.FailedCount, nil
}

func (s *Store) ResetFailedCount(ctx context.Context, userID string) error {
	return s.update(userID, func(u *goGuard.User) { u.FailedCount = 0 })
}

func (s *Store) SetLockoutEnd(_ context.Context, userID string, end *time.Time) error {
	return s.update(userID, func(u *goGuard.User) { u.LockoutEnd = cloneTime(end) })
}

func (s *Store) SetSessionToken(_ context.Context, userID, token string, loginAt time.Time) error {
	return s.update(userID, func(u *goGuard.User) {
		u.SessionToken = &token
		at := loginAt.UTC()
		u.LastLoginAt = &at
	})
}

func (s *Store) ClearSessionToken(_ context.Context, userID string) error {
	return s.update(userID, func(u *goGuard.User) { u.SessionToken = nil })
}

func (s *Store) SetPasswordResetExpiry(_ context.Context, userID string, expiry *time.Time) error {
	return s.update(userID, func(u *goGuard.User) { u.PasswordResetExpiry = cloneTime(expiry) })
}

func (s *Store) SetTwoFactor(_ context.Context, userID string, enabled bool, secret string) error {
	return s.update(userID, func(u *goGuard.User) {
		u.TwoFactorEnabled = enabled
		u.TwoFactorSecret = secret
	})
}

func (s *Store) SetPasswordHash(_ context.Context, userID, hash string) error {
	return s.update(userID, func(u *goGuard.User) {
		u.PasswordHash = hash
	})
}

func (s *Store) RecentPasswordHashes(_ context.Context, userID string, limit int) ([]goGuard.PasswordHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.history[userID]
	if limit > len(entries) || limit <= 0 {
		limit = len(entries)
	}
	out := make([]goGuard.PasswordHistoryEntry, limit)
	copy(out, entries[:limit])
	return out, nil
}

// CommitPasswordChange applies the change under the store lock, which makes
// it atomic with respect to every other store call.
func (s *Store) CommitPasswordChange(_ context.Context, change goGuard.PasswordChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[change.UserID]
	if !ok {
		return goGuard.ErrUserNotFound
	}
	at := change.ChangedAt.UTC()
	u.PasswordHash = change.NewHash
	u.PasswordChangedAt = &at
	if change.ClearResetExpiry {
		u.PasswordResetExpiry = nil
	}

	entries := append([]goGuard.PasswordHistoryEntry{{
		UserID:       u.ID,
		PasswordHash: change.NewHash,
		CreatedAt:    at,
	}}, s.history[u.ID]...)
	if change.KeepHistory > 0 && len(entries) > change.KeepHistory {
		entries = entries[:change.KeepHistory]
	}
	s.history[u.ID] = entries
	return nil
}

func (s *Store) AppendAudit(_ context.Context, event goGuard.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, event)
	return nil
}

func (s *Store) ListAuditByUser(_ context.Context, userID string, limit int) ([]goGuard.AuditEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []goGuard.AuditEvent
	for _, ev := range s.audit {
		if ev.UserID == userID {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AuditEvents returns every stored event in insertion order.
func (s *Store) AuditEvents() []goGuard.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]goGuard.AuditEvent, len(s.audit))
	copy(out, s.audit)
	return out
}

func (s *Store) update(userID string, fn func(*goGuard.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return goGuard.ErrUserNotFound
	}
	fn(u)
	return nil
}

func cloneUser(u *goGuard.User) *goGuard.User {
	c := *u
	c.LockoutEnd = cloneTime(u.LockoutEnd)
	c.PasswordChangedAt = cloneTime(u.PasswordChangedAt)
	c.PasswordResetExpiry = cloneTime(u.PasswordResetExpiry)
	c.LastLoginAt = cloneTime(u.LastLoginAt)
	if u.SessionToken != nil {
		tok := *u.SessionToken
		c.SessionToken = &tok
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
