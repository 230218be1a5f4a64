package session

import (
	"crypto/subtle"

	"github.com/MrEthical07/goGuard/internal"
)

// Verdict is the outcome of comparing a presented token with the recorded one.
type Verdict uint8

const (
	// VerdictNotEnforced means there was nothing to compare: the user has no
	// recorded session or the request carried no session token.
	VerdictNotEnforced Verdict = iota
	// VerdictOK means the presented token is the recorded one.
	VerdictOK
	// VerdictMismatch means the presented token was displaced by a newer login.
	VerdictMismatch
)

func (v Verdict) String() string {
	switch v {
	case VerdictOK:
		return "ok"
	case VerdictMismatch:
		return "mismatch"
	default:
		return "not_enforced"
	}
}

// Allowed reports whether the request may proceed.
func (v Verdict) Allowed() bool { return v != VerdictMismatch }

// Check compares presented against the recorded token for a user.
func Check(recorded *string, presented string) Verdict {
	if recorded == nil || *recorded == "" || presented == "" {
		return VerdictNotEnforced
	}
	if subtle.ConstantTimeCompare([]byte(*recorded), []byte(presented)) == 1 {
		return VerdictOK
	}
	return VerdictMismatch
}

// NewToken returns a fresh opaque session token with 256 bits of entropy.
func NewToken() (string, error) {
	return internal.NewSessionToken()
}
