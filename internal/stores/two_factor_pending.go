package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingRecordVersion1 = 1

	pendingFlagRememberMe = 1 << 0
	pendingFlagHasScore   = 1 << 1
)

var (
	ErrPendingLoginNotFound = errors.New("pending login not found")
	ErrPendingLoginExpired  = errors.New("pending login expired")
	ErrPendingLoginBackend  = errors.New("pending login backend unavailable")
)

// PendingLogin is a login suspended after the password stage, waiting for a
// second factor. Score carries the human check result of the password step.
type PendingLogin struct {
	UserID     string
	ExpiresAt  int64
	RememberMe bool
	HasScore   bool
	Score      float64
}

// ScorePtr returns the recorded human check score, or nil when none was taken.
func (p *PendingLogin) ScorePtr() *float64 {
	if p == nil || !p.HasScore {
		return nil
	}
	s := p.Score
	return &s
}

type TwoFactorPendingStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewTwoFactorPendingStore(redisClient redis.UniversalClient, prefix string) *TwoFactorPendingStore {
	if prefix == "" {
		prefix = "g2fa"
	}
	return &TwoFactorPendingStore{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

// WithClock sets the clock ExpiresAt is compared against.
func (s *TwoFactorPendingStore) WithClock(now func() time.Time) *TwoFactorPendingStore {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *TwoFactorPendingStore) key(continuation string) string {
	return s.prefix + ":" + continuation
}

func (s *TwoFactorPendingStore) Save(ctx context.Context, continuation string, record *PendingLogin, ttl time.Duration) error {
	encoded, err := encodePendingLogin(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(continuation), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrPendingLoginBackend, err)
	}
	return nil
}

// Get loads a pending login. A record past ExpiresAt is removed and returned
// together with ErrPendingLoginExpired so the caller still knows whose it was.
func (s *TwoFactorPendingStore) Get(ctx context.Context, continuation string) (*PendingLogin, error) {
	data, err := s.redis.Get(ctx, s.key(continuation)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPendingLoginNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrPendingLoginBackend, err)
	}

	record, err := decodePendingLogin(data)
	if err != nil {
		return nil, err
	}
	if s.now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(continuation)).Result()
		return record, ErrPendingLoginExpired
	}
	return record, nil
}

// Delete removes the continuation and reports whether this call removed it.
// Exactly one of two racing completions observes true.
func (s *TwoFactorPendingStore) Delete(ctx context.Context, continuation string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(continuation)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPendingLoginBackend, err)
	}
	return n > 0, nil
}

func encodePendingLogin(record *PendingLogin) ([]byte, error) {
	if record == nil {
		return nil, errors.New("nil pending login")
	}
	if len(record.UserID) > 65535 {
		return nil, errors.New("pending login user id too long")
	}

	var flags byte
	if record.RememberMe {
		flags |= pendingFlagRememberMe
	}
	if record.HasScore {
		flags |= pendingFlagHasScore
	}

	var buf bytes.Buffer
	buf.WriteByte(pendingRecordVersion1)
	buf.WriteByte(flags)
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.Score); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)

	return buf.Bytes(), nil
}

func decodePendingLogin(data []byte) (*PendingLogin, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != pendingRecordVersion1 {
		return nil, errors.New("invalid pending login version")
	}
	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &PendingLogin{
		RememberMe: flags&pendingFlagRememberMe != 0,
		HasScore:   flags&pendingFlagHasScore != 0,
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.Score); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	return record, nil
}
