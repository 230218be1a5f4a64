package main

import (
	"os"
	"strconv"
	"strings"

	"github.com/MrEthical07/goGuard/auditsink"
	"github.com/MrEthical07/goGuard/internal/logging"
	"github.com/MrEthical07/goGuard/mailer"
	"github.com/MrEthical07/goGuard/store/postgres"
)

// serverEnv holds infrastructure settings. Security policy lives in the TOML
// file passed with -config.
type serverEnv struct {
	Listen       string
	Log          logging.Config
	RedisAddr    string
	RedisPass    string
	PostgresDSN  string
	AutoMigrate  bool
	Pool         postgres.PoolConfig
	SMTP         mailer.Config
	AMQP         auditsink.Config
	AuditStdout  bool
	CookieSecure bool
	LoginPath    string
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func loadServerEnv() serverEnv {
	smtp := mailer.DefaultConfig()
	smtp.Host = envString("GOGUARD_SMTP_HOST", "")
	smtp.Port = envInt("GOGUARD_SMTP_PORT", smtp.Port)
	smtp.Username = envString("GOGUARD_SMTP_USERNAME", "")
	smtp.Password = envString("GOGUARD_SMTP_PASSWORD", "")
	smtp.From = envString("GOGUARD_SMTP_FROM", "")

	return serverEnv{
		Listen: envString("GOGUARD_LISTEN", "0.0.0.0:8080"),
		Log: logging.Config{
			Level:       envString("GOGUARD_LOG_LEVEL", "info"),
			Development: envBool("GOGUARD_LOG_DEV", false),
			Service:     "goguard",
		},
		RedisAddr:   envString("GOGUARD_REDIS_ADDR", ""),
		RedisPass:   envString("GOGUARD_REDIS_PASSWORD", ""),
		PostgresDSN: envString("GOGUARD_POSTGRES_DSN", ""),
		AutoMigrate: envBool("GOGUARD_POSTGRES_AUTOMIGRATE", false),
		Pool: postgres.PoolConfig{
			MaxOpenConns: envInt("GOGUARD_POSTGRES_MAX_OPEN", 20),
			MaxIdleConns: envInt("GOGUARD_POSTGRES_MAX_IDLE", 5),
		},
		SMTP: smtp,
		AMQP: auditsink.Config{
			URL:   envString("GOGUARD_AMQP_URL", ""),
			Queue: envString("GOGUARD_AMQP_QUEUE", auditsink.DefaultQueue),
		},
		AuditStdout:  envBool("GOGUARD_AUDIT_STDOUT", false),
		CookieSecure: envBool("GOGUARD_COOKIE_SECURE", true),
		LoginPath:    envString("GOGUARD_LOGIN_PATH", "/login"),
	}
}
