package humancheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultEndpoint     = "https://www.google.com/recaptcha/api/siteverify"
	DefaultMinimumScore = 0.5
	DefaultTimeout      = 5 * time.Second

	placeholderSiteKey   = "YOUR_RECAPTCHA_V3_SITE_KEY"
	placeholderSecretKey = "YOUR_RECAPTCHA_V3_SECRET_KEY"

	maxResponseBytes = 64 << 10
)

// Error codes reported in Result.ErrorCode.
const (
	CodeMissingToken       = "MISSING_TOKEN"
	CodeNetworkError       = "NETWORK_ERROR"
	CodeInvalidResponse    = "INVALID_RESPONSE"
	CodeActionMismatch     = "ACTION_MISMATCH"
	CodeLowScore           = "LOW_SCORE"
	CodeVerificationFailed = "VERIFICATION_FAILED"
)

// Config controls the verifier.
type Config struct {
	Enabled      bool          `toml:"enabled"`
	SiteKey      string        `toml:"site_key"`
	SecretKey    string        `toml:"secret_key"`
	MinimumScore float64       `toml:"minimum_score"`
	Endpoint     string        `toml:"endpoint"`
	Timeout      time.Duration `toml:"timeout"`
}

// DefaultConfig returns an enabled verifier with no keys; it will skip every
// check until keys are supplied.
func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MinimumScore: DefaultMinimumScore,
		Endpoint:     DefaultEndpoint,
		Timeout:      DefaultTimeout,
	}
}

// Configured reports whether real keys are present.
func (c Config) Configured() bool {
	return c.SiteKey != "" && c.SecretKey != "" &&
		c.SiteKey != placeholderSiteKey && c.SecretKey != placeholderSecretKey
}

// Result is the normalized outcome of one verification.
type Result struct {
	Valid   bool
	Skipped bool
	// Scored is true when the verifier returned a score, including on
	// failures after a well-formed reply.
	Scored      bool
	Score       float64
	Action      string
	Hostname    string
	ChallengeTS time.Time
	ErrorCode   string
	Message     string
}

// ScorePtr returns the score or nil when none was received.
func (r Result) ScorePtr() *float64 {
	if !r.Scored {
		return nil
	}
	s := r.Score
	return &s
}

// Recorder mirrors verification calls into the audit trail.
type Recorder interface {
	RecordHumanCheck(ctx context.Context, action, subjectHint string, result Result)
}

// Verifier performs human verification calls. It is safe for concurrent use.
type Verifier struct {
	cfg      Config
	client   *http.Client
	recorder Recorder
	logger   *zap.Logger
}

// Option customizes a Verifier.
type Option func(*Verifier)

// WithHTTPClient replaces the default client. The client's own Timeout is
// kept if set.
func WithHTTPClient(c *http.Client) Option {
	return func(v *Verifier) {
		if c != nil {
			v.client = c
		}
	}
}

// WithRecorder sets the audit mirror.
func WithRecorder(r Recorder) Option {
	return func(v *Verifier) { v.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(v *Verifier) {
		if l != nil {
			v.logger = l
		}
	}
}

// New builds a Verifier, filling zero config fields with defaults.
func New(cfg Config, opts ...Option) *Verifier {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	v := &Verifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if !cfg.Configured() && cfg.Enabled {
		v.logger.Warn("human verification keys not configured; checks will be skipped")
	}
	return v
}

// Config returns the verifier configuration.
func (v *Verifier) Config() Config { return v.cfg }

type siteverifyResponse struct {
	Success     *bool    `json:"success"`
	Score       *float64 `json:"score"`
	Action      *string  `json:"action"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verify checks token for the declared action. subjectHint (usually the
// submitted email) is only passed to the Recorder and logs.
func (v *Verifier) Verify(ctx context.Context, token, action, subjectHint string) Result {
	result := v.verify(ctx, token, action)
	v.record(ctx, action, subjectHint, result)
	return result
}

func (v *Verifier) verify(ctx context.Context, token, action string) Result {
	if !v.cfg.Enabled || !v.cfg.Configured() {
		return Result{Valid: true, Skipped: true}
	}
	if token == "" {
		return failure(CodeMissingToken, "Human verification token is missing.")
	}

	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	form := url.Values{}
	form.Set("secret", v.cfg.SecretKey)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		v.logger.Error("human verification request build failed", zap.Error(err))
		return failure(CodeNetworkError, "Network error during verification. Please try again.")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Warn("human verification transport failure", zap.String("action", action), zap.Error(err))
		return failure(CodeNetworkError, "Network error during verification. Please try again.")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		v.logger.Warn("human verification http failure", zap.String("action", action), zap.Int("status", resp.StatusCode))
		return failure("HTTP_"+strconv.Itoa(resp.StatusCode), "Failed to verify with the human verification service.")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return failure(CodeNetworkError, "Network error during verification. Please try again.")
	}

	var parsed siteverifyResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Success == nil {
		return failure(CodeInvalidResponse, "Invalid response from the human verification service.")
	}

	result := Result{Hostname: parsed.Hostname}
	if parsed.ChallengeTS != "" {
		ts, err := time.Parse(time.RFC3339, parsed.ChallengeTS)
		if err != nil {
			return failure(CodeInvalidResponse, "Invalid response from the human verification service.")
		}
		result.ChallengeTS = ts
	}
	if parsed.Score != nil {
		if *parsed.Score < 0 || *parsed.Score > 1 {
			return failure(CodeInvalidResponse, "Invalid response from the human verification service.")
		}
		result.Scored = true
		result.Score = *parsed.Score
	}
	if parsed.Action != nil {
		result.Action = *parsed.Action
	}

	if !*parsed.Success {
		result.ErrorCode = strings.Join(parsed.ErrorCodes, ",")
		if result.ErrorCode == "" {
			result.ErrorCode = CodeVerificationFailed
		}
		result.Message = "Human verification failed. Please try again."
		v.logger.Info("human verification rejected by verifier", zap.String("action", action), zap.Strings("error_codes", parsed.ErrorCodes))
		return result
	}
	if parsed.Score == nil || parsed.Action == nil {
		return failure(CodeInvalidResponse, "Invalid response from the human verification service.")
	}

	if !strings.EqualFold(result.Action, action) {
		result.ErrorCode = CodeActionMismatch
		result.Message = "Human verification failed. Please try again."
		return result
	}
	if result.Score < v.cfg.MinimumScore {
		result.ErrorCode = CodeLowScore
		result.Message = fmt.Sprintf("Suspicious activity detected (Score: %.2f). Please try again.", result.Score)
		return result
	}

	result.Valid = true
	return result
}

func (v *Verifier) record(ctx context.Context, action, subjectHint string, result Result) {
	if v.recorder == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("human verification audit mirror panicked", zap.Any("panic", r))
		}
	}()
	v.recorder.RecordHumanCheck(ctx, action, subjectHint, result)
}

func failure(code, message string) Result {
	return Result{ErrorCode: code, Message: message}
}
