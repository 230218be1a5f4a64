package goGuard

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Environment variables read by ApplyEnv.
const (
	EnvHumanCheckSiteKey   = "GOGUARD_RECAPTCHA_SITE_KEY"
	EnvHumanCheckSecretKey = "GOGUARD_RECAPTCHA_SECRET"
	EnvHumanCheckEnabled   = "GOGUARD_RECAPTCHA_ENABLED"
	EnvHumanCheckMinScore  = "GOGUARD_RECAPTCHA_MIN_SCORE"
	EnvTokenSecret         = "GOGUARD_TOKEN_SECRET"
	EnvResetURL            = "GOGUARD_RESET_URL"
	EnvLockoutThreshold    = "GOGUARD_LOCKOUT_THRESHOLD"
	EnvLockoutDuration     = "GOGUARD_LOCKOUT_DURATION"
)

// LoadConfigFile decodes the TOML file at path over DefaultConfig. Keys
// missing from the file keep their default values.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return Config{}, fmt.Errorf("decode %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ApplyEnv overlays environment values on cfg. lookup is usually
// os.LookupEnv; a nil lookup uses it.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvHumanCheckSiteKey); ok {
		cfg.HumanCheck.SiteKey = v
	}
	if v, ok := lookup(EnvHumanCheckSecretKey); ok {
		cfg.HumanCheck.SecretKey = v
	}
	if v, ok := lookup(EnvHumanCheckEnabled); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHumanCheckEnabled, err)
		}
		cfg.HumanCheck.Enabled = b
	}
	if v, ok := lookup(EnvHumanCheckMinScore); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvHumanCheckMinScore, err)
		}
		cfg.HumanCheck.MinimumScore = f
	}
	if v, ok := lookup(EnvTokenSecret); ok {
		cfg.Tokens.Secret = v
	}
	if v, ok := lookup(EnvResetURL); ok {
		cfg.PasswordReset.ResetURL = v
	}
	if v, ok := lookup(EnvLockoutThreshold); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLockoutThreshold, err)
		}
		cfg.Lockout.Threshold = n
	}
	if v, ok := lookup(EnvLockoutDuration); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLockoutDuration, err)
		}
		cfg.Lockout.Duration = d
	}
	return nil
}
