package goGuard_test

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
)

func (f *fixture) requestReset(t *testing.T) (userID, token string) {
	t.Helper()
	if err := f.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	sent := f.mail.all()
	if len(sent) == 0 {
		t.Fatal("expected a reset email")
	}
	link, err := url.Parse(sent[len(sent)-1].link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	q := link.Query()
	return q.Get("userId"), q.Get("token")
}

func TestPasswordResetRoundTrip(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, testEmail, testPassword)

	userID, token := f.requestReset(t)
	if userID != id || token == "" {
		t.Fatalf("unexpected link parameters %q %q", userID, token)
	}
	if sent := f.mail.all(); sent[0].address != testEmail {
		t.Fatalf("mail went to %q", sent[0].address)
	}
	if u := f.user(t, id); u.PasswordResetExpiry == nil || !u.PasswordResetExpiry.Equal(f.clock.Now().Add(time.Hour)) {
		t.Fatalf("unexpected reset expiry %v", u.PasswordResetExpiry)
	}

	if err := f.engine.ConfirmPasswordReset(context.Background(), userID, token, "Reset-Password-4d"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}
	if u := f.user(t, id); u.PasswordResetExpiry != nil {
		t.Fatal("reset expiry should be cleared")
	}
	if _, err := f.login("Reset-Password-4d"); err != nil {
		t.Fatalf("Login with reset password: %v", err)
	}
	if got := len(f.events(goGuard.ActionPasswordResetRequested)); got != 1 {
		t.Fatalf("expected one request entry, got %d", got)
	}
	if got := len(f.events(goGuard.ActionPasswordReset)); got != 1 {
		t.Fatalf("expected one reset entry, got %d", got)
	}

	err := f.engine.ConfirmPasswordReset(context.Background(), userID, token, "Another-Reset-5e")
	if !errors.Is(err, goGuard.ErrPasswordResetExpired) {
		t.Fatalf("a used link must be rejected, got %v", err)
	}
}

func TestPasswordResetIgnoresMinimumAgeByDefault(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)
	userID, token := f.requestReset(t)

	if err := f.engine.ConfirmPasswordReset(context.Background(), userID, token, "Reset-Password-4d"); err != nil {
		t.Fatalf("fresh account should be able to reset: %v", err)
	}
}

func TestPasswordResetEnforcesMinimumAgeWhenConfigured(t *testing.T) {
	f := newFixture(t, func(cfg *goGuard.Config) {
		cfg.PasswordPolicy.EnforceMinAgeOnReset = true
	})
	f.register(t, testEmail, testPassword)
	userID, token := f.requestReset(t)

	err := f.engine.ConfirmPasswordReset(context.Background(), userID, token, "Reset-Password-4d")
	if !errors.Is(err, goGuard.ErrPasswordTooNew) {
		t.Fatalf("expected ErrPasswordTooNew, got %v", err)
	}
}

func TestPasswordResetLinkExpires(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)
	userID, token := f.requestReset(t)

	f.clock.Advance(time.Hour + time.Minute)
	err := f.engine.ConfirmPasswordReset(context.Background(), userID, token, "Reset-Password-4d")
	if !errors.Is(err, goGuard.ErrPasswordResetExpired) {
		t.Fatalf("expected ErrPasswordResetExpired, got %v", err)
	}
	if pe := policyError(t, err); pe.Message != "This password reset link has expired. Please request a new one." {
		t.Fatalf("unexpected message %q", pe.Message)
	}
}

func TestPasswordResetTokenBoundToUser(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)
	other := f.register(t, "bob@example.com", testPassword)
	_, token := f.requestReset(t)
	if err := f.engine.RequestPasswordReset(context.Background(), "bob@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset(bob): %v", err)
	}

	err := f.engine.ConfirmPasswordReset(context.Background(), other, token, "Reset-Password-4d")
	if !errors.Is(err, goGuard.ErrPasswordResetInvalid) {
		t.Fatalf("expected ErrPasswordResetInvalid, got %v", err)
	}
	if pe := policyError(t, err); pe.Message != "Invalid password reset link." {
		t.Fatalf("unexpected message %q", pe.Message)
	}
}

func TestPasswordResetRejectsRecentPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)
	userID, token := f.requestReset(t)

	err := f.engine.ConfirmPasswordReset(context.Background(), userID, token, testPassword)
	if !errors.Is(err, goGuard.ErrPasswordReused) {
		t.Fatalf("expected ErrPasswordReused, got %v", err)
	}
	if err := f.engine.ConfirmPasswordReset(context.Background(), userID, token, "Reset-Password-4d"); err != nil {
		t.Fatalf("a rejected attempt must not consume the link: %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	if err := f.engine.RequestPasswordReset(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}
	if got := len(f.mail.all()); got != 0 {
		t.Fatalf("expected no mail, got %d", got)
	}
}

func TestPasswordResetMailerFailureStaysGeneric(t *testing.T) {
	f := newFixture(t)
	f.register(t, testEmail, testPassword)
	f.mail.err = errors.New("smtp: connection refused")

	if err := f.engine.RequestPasswordReset(context.Background(), testEmail); err != nil {
		t.Fatalf("delivery failures must not surface, got %v", err)
	}
	if got := len(f.events(goGuard.ActionPasswordResetRequested)); got != 0 {
		t.Fatalf("undelivered reset must not be audited as sent, got %d", got)
	}
}
