package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

const (
	sessionTokenSize = 32
	continuationSize = 24
)

// NewSessionToken returns 256 random bits encoded as unpadded base64url.
func NewSessionToken() (string, error) {
	return randomString(sessionTokenSize)
}

// NewContinuationID returns an opaque id for a suspended two-factor login.
func NewContinuationID() (string, error) {
	return randomString(continuationSize)
}

// ValidContinuationID reports whether id has the shape NewContinuationID
// produces. It lets callers reject junk before touching Redis.
func ValidContinuationID(id string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	return err == nil && len(raw) == continuationSize
}

func randomString(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Join(errors.New("random source unavailable"), err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
