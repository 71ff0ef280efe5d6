package fieldd

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the vault daemon's runtime configuration, the daemon-level
// counterpart to native/field.Config's on-ledger governance record. Loaded
// from environment variables with an optional YAML file overlay, mirroring
// the deleted services/lending/config.go's own env-first, file-overlay
// ergonomics.
type Config struct {
	ListenAddr      string `yaml:"listen_addr"`
	MetricsAddr     string `yaml:"metrics_addr"`
	Environment     string `yaml:"environment"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
	JWTHMACSecret   string `yaml:"jwt_hmac_secret"`
	OTLPEndpoint    string `yaml:"otlp_endpoint"`
}

// DefaultConfig matches services/lending/config.go's own defaults: a
// loopback listen address and a conservative rate limit. JWTHMACSecret has
// no default, so Validate rejects the defaults until a secret is supplied by
// file or FIELDD_JWT_HMAC_SECRET.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8545",
		MetricsAddr:     "127.0.0.1:9090",
		Environment:     "development",
		RateLimitPerMin: 120,
	}
}

// LoadConfig builds a Config starting from DefaultConfig, overlaying an
// optional YAML file at path (if non-empty and present), then overlaying
// environment variables, matching the precedence order
// defaults < file < env that services/lending/config.go used.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("fieldd: reading config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("fieldd: parsing config file: %w", err)
		}
	}

	applyEnvOverlay(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverlay(cfg *Config) {
	if v := os.Getenv("FIELDD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("FIELDD_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("FIELDD_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("FIELDD_RATE_LIMIT_PER_MIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMin = n
		}
	}
	if v := os.Getenv("FIELDD_JWT_HMAC_SECRET"); v != "" {
		cfg.JWTHMACSecret = v
	}
	if v := os.Getenv("FIELDD_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
}

// Validate checks the config is internally consistent before the daemon
// starts listening.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("fieldd: listen address required")
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("fieldd: rate limit must be non-negative")
	}
	if c.JWTHMACSecret == "" {
		return fmt.Errorf("fieldd: jwt hmac secret required")
	}
	return nil
}

// Sanitized returns a copy of c with its secret redacted, safe to log.
func (c Config) Sanitized() Config {
	out := c
	if out.JWTHMACSecret != "" {
		out.JWTHMACSecret = "***"
	}
	return out
}
