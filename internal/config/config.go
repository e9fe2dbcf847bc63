package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	RedisURL string `env:"REDIS_URL"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Pairing policy knobs. The code space may be tiny (a 3-digit
	// numeric alphabet has 1000 values); operators choosing a small
	// space must keep the TTL short.
	PairingTTLSeconds     int    `env:"PAIRING_TTL_SECONDS" envDefault:"600"`
	CodeLength            int    `env:"CODE_LENGTH" envDefault:"6"`
	CodeAlphabet          string `env:"CODE_ALPHABET" envDefault:"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"`
	ReaperIntervalSeconds int    `env:"REAPER_INTERVAL_SECONDS" envDefault:"60"`
	MaxCodeAttempts       int    `env:"MAX_CODE_ATTEMPTS" envDefault:"100"`

	// Upstream Xtream proxy.
	XtreamUserAgent      string `env:"XTREAM_USER_AGENT" envDefault:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"`
	XtreamTimeoutSeconds int    `env:"XTREAM_TIMEOUT_SECONDS" envDefault:"10"`
}

func (c *Config) PairingTTL() time.Duration {
	return time.Duration(c.PairingTTLSeconds) * time.Second
}

func (c *Config) ReaperInterval() time.Duration {
	return time.Duration(c.ReaperIntervalSeconds) * time.Second
}

func (c *Config) XtreamTimeout() time.Duration {
	return time.Duration(c.XtreamTimeoutSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.PairingTTLSeconds <= 0 {
		return fmt.Errorf("PAIRING_TTL_SECONDS must be positive")
	}
	if c.CodeLength < 3 || c.CodeLength > 8 {
		return fmt.Errorf("CODE_LENGTH must be between 3 and 8")
	}
	if len(c.CodeAlphabet) < 2 {
		return fmt.Errorf("CODE_ALPHABET must contain at least 2 characters")
	}
	// Codes are normalized to upper case on entry and shape-checked
	// against [A-Z0-9], so the alphabet must stay inside that set. This
	// also keeps the byte-wise generator and duplicate scan correct.
	for i := 0; i < len(c.CodeAlphabet); i++ {
		ch := c.CodeAlphabet[i]
		if !(ch >= 'A' && ch <= 'Z' || ch >= '0' && ch <= '9') {
			return fmt.Errorf("CODE_ALPHABET may only contain A-Z and 0-9")
		}
		if strings.ContainsRune(c.CodeAlphabet[i+1:], rune(ch)) {
			return fmt.Errorf("CODE_ALPHABET contains duplicate character %q", rune(ch))
		}
	}
	if c.MaxCodeAttempts <= 0 {
		return fmt.Errorf("MAX_CODE_ATTEMPTS must be positive")
	}
	if c.ReaperIntervalSeconds <= 0 {
		return fmt.Errorf("REAPER_INTERVAL_SECONDS must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
