package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "vigil/pkg/platform/strings"
)

// Config is the full process configuration, built from the environment.
type Config struct {
	Server     Server
	Governance Governance
	Database   DatabaseConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
	TTL        TTLConfig
	LogLevel   string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
}

// Governance carries the raw mode signals. They are resolved by the mode
// package; config does not interpret them.
type Governance struct {
	Mode       string // GOVERNANCE_MODE
	LegacyMode string // APP_MODE
	NoNetwork  bool
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	URL         string
	PoolSize    int
	DialTimeout time.Duration
}

type KafkaConfig struct {
	Brokers    []string
	AuditTopic string
}

type TTLConfig struct {
	Scan                time.Duration
	Override            time.Duration
	ExportRequest       time.Duration
	AuditVerifyInterval time.Duration
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return fromLookup(os.LookupEnv)
}

func fromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []error
	duration := func(key string, def time.Duration) time.Duration {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}

	noNetwork := false
	if raw := get("NO_NETWORK", ""); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			// an unreadable kill switch is treated as engaged
			b = true
		}
		noNetwork = b
	}

	cfg := Config{
		Server: Server{
			Addr:          get("VIGIL_ADDR", ":8080"),
			JWTSigningKey: get("JWT_SIGNING_KEY", devSigningKey),
		},
		Governance: Governance{
			Mode:       get("GOVERNANCE_MODE", ""),
			LegacyMode: get("APP_MODE", ""),
			NoNetwork:  noNetwork,
		},
		Database: DatabaseConfig{URL: get("DATABASE_URL", "")},
		Redis: RedisConfig{
			URL:         get("REDIS_URL", ""),
			PoolSize:    10,
			DialTimeout: 5 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers:    pstrings.SplitList(get("KAFKA_BROKERS", "")),
			AuditTopic: get("AUDIT_TOPIC", "vigil.audit.entries"),
		},
		TTL: TTLConfig{
			Scan:                duration("SCAN_TTL", time.Hour),
			Override:            duration("OVERRIDE_TTL", 24*time.Hour),
			ExportRequest:       duration("EXPORT_REQUEST_TTL", 72*time.Hour),
			AuditVerifyInterval: duration("AUDIT_VERIFY_INTERVAL", 5*time.Minute),
		},
		LogLevel: get("LOG_LEVEL", "info"),
	}

	if cfg.TTL.Scan == 0 {
		errs = append(errs, errors.New("SCAN_TTL must be positive"))
	}
	if cfg.TTL.Override == 0 {
		errs = append(errs, errors.New("OVERRIDE_TTL must be positive"))
	}
	if len(cfg.Server.JWTSigningKey) < 16 {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be at least 16 bytes"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// UsingDevSigningKey reports whether the built-in development key is active.
func (c Config) UsingDevSigningKey() bool {
	return c.Server.JWTSigningKey == devSigningKey
}
