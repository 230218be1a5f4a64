package humancheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordedCall struct {
	action  string
	subject string
	result  Result
}

type memRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (m *memRecorder) RecordHumanCheck(_ context.Context, action, subject string, r Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{action, subject, r})
}

type panicRecorder struct{}

func (panicRecorder) RecordHumanCheck(context.Context, string, string, Result) {
	panic("audit store offline")
}

func configuredFor(endpoint string) Config {
	cfg := DefaultConfig()
	cfg.SiteKey = "site"
	cfg.SecretKey = "secret"
	cfg.Endpoint = endpoint
	return cfg
}

func jsonServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("secret") != "secret" || r.PostForm.Get("response") == "" {
			t.Errorf("unexpected form: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifySkippedWhenUnconfigured(t *testing.T) {
	rec := &memRecorder{}
	cases := []Config{
		{Enabled: true},
		{Enabled: true, SiteKey: "YOUR_RECAPTCHA_V3_SITE_KEY", SecretKey: "s"},
		{Enabled: true, SiteKey: "k", SecretKey: "YOUR_RECAPTCHA_V3_SECRET_KEY"},
		{Enabled: false, SiteKey: "k", SecretKey: "s"},
	}
	for i, cfg := range cases {
		r := New(cfg, WithRecorder(rec)).Verify(context.Background(), "", "login", "a@b.c")
		if !r.Valid || !r.Skipped {
			t.Fatalf("case %d: expected skipped pass, got %+v", i, r)
		}
	}
	if len(rec.calls) != len(cases) {
		t.Fatalf("expected every skipped call to be recorded, got %d", len(rec.calls))
	}
}

func TestVerifyMissingTokenMakesNoCall(t *testing.T) {
	var hits atomic.Int32
	srv := jsonServer(t, 200, `{"success":true,"score":0.9,"action":"login"}`, &hits)

	r := New(configuredFor(srv.URL)).Verify(context.Background(), "", "login", "")
	if r.Valid || r.ErrorCode != CodeMissingToken {
		t.Fatalf("expected MISSING_TOKEN, got %+v", r)
	}
	if hits.Load() != 0 {
		t.Fatal("expected no network call for an empty token")
	}
}

func TestVerifySuccess(t *testing.T) {
	srv := jsonServer(t, 200, `{"success":true,"score":0.9,"action":"LOGIN","challenge_ts":"2026-10-16T10:00:00Z","hostname":"example.com"}`, nil)
	rec := &memRecorder{}

	r := New(configuredFor(srv.URL), WithRecorder(rec)).Verify(context.Background(), "tok", "login", "a@b.c")
	if !r.Valid || r.Skipped || r.ErrorCode != "" {
		t.Fatalf("expected valid result, got %+v", r)
	}
	if r.ScorePtr() == nil || *r.ScorePtr() != 0.9 || r.Hostname != "example.com" {
		t.Fatalf("unexpected result fields: %+v", r)
	}
	if r.ChallengeTS.IsZero() {
		t.Fatal("expected challenge timestamp to be parsed")
	}
	if len(rec.calls) != 1 || rec.calls[0].subject != "a@b.c" || rec.calls[0].action != "login" {
		t.Fatalf("expected one recorded call, got %+v", rec.calls)
	}
}

func TestVerifySameTokenTwiceIsNotSingleUse(t *testing.T) {
	srv := jsonServer(t, 200, `{"success":true,"score":0.9,"action":"login"}`, nil)
	rec := &memRecorder{}
	v := New(configuredFor(srv.URL), WithRecorder(rec))

	first := v.Verify(context.Background(), "same", "login", "")
	second := v.Verify(context.Background(), "same", "login", "")
	if !first.Valid || !second.Valid {
		t.Fatal("expected both verifications to pass")
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected two audit mirrors, got %d", len(rec.calls))
	}
}

func TestVerifyFailureCodes(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		code   string
		scored bool
	}{
		{"http error", 503, `oops`, "HTTP_503", false},
		{"not json", 200, `<html>`, CodeInvalidResponse, false},
		{"missing success", 200, `{"score":0.9}`, CodeInvalidResponse, false},
		{"success without score", 200, `{"success":true,"action":"login"}`, CodeInvalidResponse, false},
		{"score out of range", 200, `{"success":true,"score":1.5,"action":"login"}`, CodeInvalidResponse, false},
		{"bad timestamp", 200, `{"success":true,"score":0.9,"action":"login","challenge_ts":"yesterday"}`, CodeInvalidResponse, false},
		{"verifier rejected", 200, `{"success":false,"error-codes":["timeout-or-duplicate","bad-request"]}`, "timeout-or-duplicate,bad-request", false},
		{"verifier rejected without codes", 200, `{"success":false}`, CodeVerificationFailed, false},
		{"action mismatch", 200, `{"success":true,"score":0.9,"action":"register"}`, CodeActionMismatch, true},
		{"low score", 200, `{"success":true,"score":0.3,"action":"login"}`, CodeLowScore, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := jsonServer(t, tc.status, tc.body, nil)
			r := New(configuredFor(srv.URL)).Verify(context.Background(), "tok", "login", "")
			if r.Valid || r.ErrorCode != tc.code {
				t.Fatalf("expected %s, got %+v", tc.code, r)
			}
			if r.Scored != tc.scored {
				t.Fatalf("expected scored=%v, got %+v", tc.scored, r)
			}
			if r.Message == "" {
				t.Fatal("expected a user-facing message")
			}
		})
	}
}

func TestVerifyActionMismatchWinsOverLowScore(t *testing.T) {
	srv := jsonServer(t, 200, `{"success":true,"score":0.1,"action":"register"}`, nil)
	r := New(configuredFor(srv.URL)).Verify(context.Background(), "tok", "login", "")
	if r.ErrorCode != CodeActionMismatch {
		t.Fatalf("expected first failing check to win, got %s", r.ErrorCode)
	}
}

func TestVerifyLowScoreMessage(t *testing.T) {
	srv := jsonServer(t, 200, `{"success":true,"score":0.3,"action":"login"}`, nil)
	r := New(configuredFor(srv.URL)).Verify(context.Background(), "tok", "login", "")
	if r.Message != "Suspicious activity detected (Score: 0.30). Please try again." {
		t.Fatalf("unexpected message: %q", r.Message)
	}
}

func TestVerifyTimeoutMapsToNetworkError(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	cfg := configuredFor(srv.URL)
	cfg.Timeout = 50 * time.Millisecond

	start := time.Now()
	r := New(cfg).Verify(context.Background(), "tok", "login", "")
	if r.Valid || r.ErrorCode != CodeNetworkError {
		t.Fatalf("expected NETWORK_ERROR, got %+v", r)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("expected the timeout to bound the call")
	}
}

func TestVerifyUnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r := New(configuredFor(url)).Verify(context.Background(), "tok", "login", "")
	if r.ErrorCode != CodeNetworkError {
		t.Fatalf("expected NETWORK_ERROR, got %+v", r)
	}
}

func TestRecorderPanicDoesNotFailVerification(t *testing.T) {
	srv := jsonServer(t, 200, `{"success":true,"score":0.9,"action":"login"}`, nil)
	r := New(configuredFor(srv.URL), WithRecorder(panicRecorder{})).Verify(context.Background(), "tok", "login", "")
	if !r.Valid {
		t.Fatalf("expected verification to pass despite recorder panic, got %+v", r)
	}
}

func TestConfigured(t *testing.T) {
	if (Config{SiteKey: "a"}).Configured() {
		t.Fatal("missing secret must not count as configured")
	}
	if !strings.Contains(DefaultEndpoint, "siteverify") {
		t.Fatal("unexpected default endpoint")
	}
}
