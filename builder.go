package goGuard

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/humancheck"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/stores"
	"github.com/MrEthical07/goGuard/jwt"
	"github.com/MrEthical07/goGuard/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const dummyPassword = "goGuard timing equalizer"

// Builder assembles an Engine. A Builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users    CredentialStore
	history  PasswordHistoryStore
	auditLog AuditStore
	sinks    []AuditSink
	mailer   Mailer
	hasher   PasswordHasher
	logger   *zap.Logger
	client   *http.Client
	now      func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing pending two-factor logins.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the user store. When the same value also
// implements PasswordHistoryStore or AuditStore it is used for those too,
// unless they were set explicitly.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithPasswordHistory(store PasswordHistoryStore) *Builder {
	b.history = store
	return b
}

// WithAuditStore sets the persistent audit trail. Emitted events are written
// to it and AuditHistory reads from it.
func (b *Builder) WithAuditStore(store AuditStore) *Builder {
	b.auditLog = store
	return b
}

// WithAuditSink adds a sink next to the audit store, e.g. a message broker
// publisher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	if sink != nil {
		b.sinks = append(b.sinks, sink)
	}
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithPasswordHasher replaces the argon2id hasher built from Config.Hashing.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithHTTPClient sets the client used for human verification calls.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.client = c
	return b
}

// WithClock overrides time.Now. Intended for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("credential store required")
	}

	history := b.history
	if history == nil {
		h, ok := b.users.(PasswordHistoryStore)
		if !ok {
			return nil, errors.New("password history store required")
		}
		history = h
	}
	auditLog := b.auditLog
	if auditLog == nil {
		if a, ok := b.users.(AuditStore); ok {
			auditLog = a
		}
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:   cfg,
		users:    b.users,
		history:  history,
		auditLog: auditLog,
		mailer:   b.mailer,
		strength: cfg.PasswordPolicy.Strength,
		pending:  stores.NewTwoFactorPendingStore(b.redis, cfg.TwoFactor.RedisPrefix).WithClock(now),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		now:      now,
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewArgon2(password.Config(cfg.Hashing))
		if err != nil {
			return nil, err
		}
		hasher = ph
	}
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}
	engine.hasher = hasher
	engine.dummyHash = dummy

	// -------- TOKENS --------
	tokenCfg := jwt.Config{
		SigningMethod: jwt.SigningMethod(strings.ToLower(cfg.Tokens.SigningMethod)),
		Issuer:        cfg.Tokens.Issuer,
		Audience:      cfg.Tokens.Audience,
		Leeway:        cfg.Tokens.Leeway,
	}
	if tokenCfg.SigningMethod == jwt.MethodHS256 {
		tokenCfg.PrivateKey = []byte(cfg.Tokens.Secret)
	} else {
		tokenCfg.PrivateKey = []byte(cfg.Tokens.PrivateKey)
		tokenCfg.PublicKey = []byte(cfg.Tokens.PublicKey)
	}
	jm, err := jwt.NewManager(tokenCfg)
	if err != nil {
		return nil, err
	}
	engine.tokens = jm.WithClock(now)

	// -------- HUMAN CHECK --------
	opts := []humancheck.Option{
		humancheck.WithRecorder(humanCheckAudit{engine: engine}),
		humancheck.WithLogger(logger),
	}
	if b.client != nil {
		opts = append(opts, humancheck.WithHTTPClient(b.client))
	}
	engine.human = humancheck.New(cfg.HumanCheck, opts...)

	// -------- AUDIT --------
	// built last so no error return leaves its worker running
	sinks := make(audit.MultiSink, 0, len(b.sinks)+1)
	if auditLog != nil {
		sinks = append(sinks, audit.NewStoreSink(auditLog, logger))
	}
	sinks = append(sinks, b.sinks...)
	var sink AuditSink = NoOpSink{}
	switch len(sinks) {
	case 0:
	case 1:
		sink = sinks[0]
	default:
		sink = sinks
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		Synchronous: cfg.Audit.Synchronous,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
	}, sink, logger)

	b.built = true

	return engine, nil
}
