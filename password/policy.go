package password

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrWeakPassword is the sentinel wrapped by every *PolicyError.
var ErrWeakPassword = errors.New("password does not meet strength requirements")

const specialCharacters = "!@#$%^&*()_+-=[]{};':\"\\|,.<>/?~`"

// Policy describes the composition rules a new password must satisfy.
type Policy struct {
	MinLength      int  `toml:"min_length"`
	RequireUpper   bool `toml:"require_upper"`
	RequireLower   bool `toml:"require_lower"`
	RequireDigit   bool `toml:"require_digit"`
	RequireSpecial bool `toml:"require_special"`
}

// StrongPolicy is the reference policy: 12 characters with upper, lower,
// digit and special.
func StrongPolicy() Policy {
	return Policy{
		MinLength:      12,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// PolicyError lists every rule a candidate password broke.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	return strings.Join(e.Violations, ". ")
}

func (e *PolicyError) Unwrap() error { return ErrWeakPassword }

// Check returns nil or a *PolicyError naming each violation.
func (p Policy) Check(candidate string) error {
	if candidate == "" {
		return &PolicyError{Violations: []string{"Password is required"}}
	}

	var upper, lower, digit, special bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(specialCharacters, r):
			special = true
		}
	}

	var violations []string
	if p.MinLength > 0 && len([]rune(candidate)) < p.MinLength {
		violations = append(violations, fmt.Sprintf("Password must be at least %d characters long", p.MinLength))
	}
	if p.RequireUpper && !upper {
		violations = append(violations, "Password must contain at least one uppercase letter")
	}
	if p.RequireLower && !lower {
		violations = append(violations, "Password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !digit {
		violations = append(violations, "Password must contain at least one digit")
	}
	if p.RequireSpecial && !special {
		violations = append(violations, "Password must contain at least one special character")
	}
	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
