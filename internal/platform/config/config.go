package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// DevSigningKey authenticates requests when no key is configured in mock
// mode. It is publicly known, so any other transport mode refuses to start
// with it.
const DevSigningKey = "dev-secret-key-change-in-production"

// TransportMode selects how documents reach the regulator.
type TransportMode string

const (
	// TransportMock keeps everything in-process; used for development and tests.
	TransportMock TransportMode = "mock"
	// TransportLive uploads over SFTP to the regulator's gateway.
	TransportLive TransportMode = "live"
)

// Environment selects which regulator endpoint a live transport targets.
type Environment string

const (
	EnvSandbox    Environment = "sandbox"
	EnvProduction Environment = "production"
)

// SFTP captures connection settings for the live transport. Credentials are
// only ever read from the environment; nothing here is persisted or logged.
type SFTP struct {
	Host           string
	Port           int
	User           string
	Password       string
	PrivateKeyPEM  string
	KnownHostKey   string // base64 host key; empty skips verification (sandbox only)
	DialTimeout    time.Duration
	InboundDir     string
	OutboundDir    string
}

// Config is the full configuration surface, built once in main and passed to
// components at construction time. Nothing reads ambient state at call time.
type Config struct {
	Addr          string
	DatabaseURL   string // empty means in-memory stores
	RedisURL      string // empty means no cross-replica poll lock
	JWTSigningKey string

	TransportMode TransportMode
	Environment   Environment
	SFTP          SFTP

	MaxUploadAttempts  int
	PollInterval       time.Duration
	PollConcurrency    int
	PollTimeout        time.Duration
	FirstPollDelay     time.Duration
	PollBackoffInitial time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean. It
// fails rather than falling back to the development signing key anywhere a
// real regulator could be reached.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          envOr("REFILER_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("REFILER_DATABASE_URL"),
		RedisURL:      os.Getenv("REFILER_REDIS_URL"),
		JWTSigningKey: os.Getenv("REFILER_JWT_SIGNING_KEY"),

		TransportMode: TransportMode(envOr("REFILER_TRANSPORT_MODE", string(TransportMock))),
		Environment:   Environment(envOr("REFILER_ENVIRONMENT", string(EnvSandbox))),
		SFTP: SFTP{
			Host:          os.Getenv("REFILER_SFTP_HOST"),
			Port:          envInt("REFILER_SFTP_PORT", 22),
			User:          os.Getenv("REFILER_SFTP_USER"),
			Password:      os.Getenv("REFILER_SFTP_PASSWORD"),
			PrivateKeyPEM: os.Getenv("REFILER_SFTP_PRIVATE_KEY"),
			KnownHostKey:  os.Getenv("REFILER_SFTP_HOST_KEY"),
			DialTimeout:   envDuration("REFILER_SFTP_DIAL_TIMEOUT", 30*time.Second),
			InboundDir:    envOr("REFILER_SFTP_INBOUND_DIR", "submissions"),
			OutboundDir:   envOr("REFILER_SFTP_OUTBOUND_DIR", "acknowledgements"),
		},

		MaxUploadAttempts:  envInt("REFILER_MAX_UPLOAD_ATTEMPTS", 3),
		PollInterval:       envDuration("REFILER_POLL_INTERVAL", time.Minute),
		PollConcurrency:    envInt("REFILER_POLL_CONCURRENCY", 4),
		PollTimeout:        envDuration("REFILER_POLL_TIMEOUT", 2*time.Minute),
		FirstPollDelay:     envDuration("REFILER_FIRST_POLL_DELAY", time.Hour),
		PollBackoffInitial: envDuration("REFILER_POLL_BACKOFF_INITIAL", 500*time.Millisecond),
	}

	if cfg.JWTSigningKey == "" && cfg.TransportMode == TransportMock {
		cfg.JWTSigningKey = DevSigningKey
	}
	if cfg.TransportMode != TransportMock {
		if cfg.JWTSigningKey == "" {
			return Config{}, errors.New("REFILER_JWT_SIGNING_KEY must be set when REFILER_TRANSPORT_MODE is not mock")
		}
		if cfg.JWTSigningKey == DevSigningKey {
			return Config{}, errors.New("REFILER_JWT_SIGNING_KEY is the development key; set a real one for live transport")
		}
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
