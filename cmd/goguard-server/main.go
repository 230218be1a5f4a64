// Command goguard-server runs the goGuard JSON API.
//
// Infrastructure comes from the environment (a .env file is loaded when
// present); security policy comes from an optional TOML file:
//
//	goguard-server -config goguard.toml
//
// Without GOGUARD_POSTGRES_DSN users live in memory, and without
// GOGUARD_REDIS_ADDR an embedded miniredis is started. Both are for local
// development only.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/MrEthical07/goGuard/auditsink"
	"github.com/MrEthical07/goGuard/httpapi"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/mailer"
	"github.com/MrEthical07/goGuard/metrics/export/prometheus"
	"github.com/MrEthical07/goGuard/middleware"
	"github.com/MrEthical07/goGuard/store/memory"
	"github.com/MrEthical07/goGuard/store/postgres"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to the goGuard TOML policy file")
	flag.Parse()

	// best-effort: no .env means real environment only
	_ = godotenv.Load()

	env := loadServerEnv()
	logger, err := logging.New(env.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, env, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(configPath string, env serverEnv, logger *zap.Logger) error {
	cfg := goGuard.DefaultConfig()
	if configPath != "" {
		loaded, err := goGuard.LoadConfigFile(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := goGuard.ApplyEnv(&cfg, nil); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// -------- REDIS --------
	redisAddr := env.RedisAddr
	if redisAddr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		redisAddr = mr.Addr()
		logger.Warn("GOGUARD_REDIS_ADDR not set; using embedded miniredis")
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr, Password: env.RedisPass})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	builder := goGuard.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithLogger(logger)

	// -------- STORE --------
	if env.PostgresDSN != "" {
		db, err := postgres.Open(ctx, env.PostgresDSN, env.Pool)
		if err != nil {
			return err
		}
		defer db.Close()
		store := postgres.New(db)
		if env.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				return fmt.Errorf("ensure schema: %w", err)
			}
		}
		builder.WithCredentialStore(store)
	} else {
		logger.Warn("GOGUARD_POSTGRES_DSN not set; users are kept in memory")
		builder.WithCredentialStore(memory.New())
	}

	// -------- MAIL --------
	if env.SMTP.Host != "" {
		m, err := mailer.NewSMTP(env.SMTP)
		if err != nil {
			return err
		}
		builder.WithMailer(m)
	} else {
		logger.Warn("GOGUARD_SMTP_HOST not set; password reset emails are not delivered")
		builder.WithMailer(logMailer{logger: logger, reveal: env.Log.Development})
	}

	// -------- AUDIT SINKS --------
	if env.AMQP.URL != "" {
		sink, err := auditsink.Dial(env.AMQP, logger)
		if err != nil {
			return err
		}
		defer sink.Close()
		builder.WithAuditSink(sink)
	}
	if env.AuditStdout {
		builder.WithAuditSink(goGuard.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	// -------- HTTP --------
	if !env.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	cookies := middleware.DefaultOptions()
	cookies.Secure = env.CookieSecure
	cookies.LoginPath = env.LoginPath

	srv := &http.Server{
		Addr: env.Listen,
		Handler: httpapi.NewRouter(engine, httpapi.Options{
			Cookies: cookies,
			Metrics: prometheus.New(engine).Handler(),
			Logger:  logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", env.Listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	return nil
}

// logMailer stands in for SMTP. The link carries a live token, so it is only
// printed in development mode.
type logMailer struct {
	logger *zap.Logger
	reveal bool
}

func (m logMailer) SendPasswordResetEmail(_ context.Context, address, link string) error {
	if !m.reveal {
		return errors.New("no mail transport configured")
	}
	m.logger.Info("password reset link", zap.String("to", address), zap.String("link", link))
	return nil
}
