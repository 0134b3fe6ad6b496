package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	commonerrors "github.com/tsogoevz/gymdesk/backend/internal/common/errors"

	"github.com/tsogoevz/gymdesk/backend/internal/common/constants"
)

type SessionConfig struct {
	HTTPPort                string
	DatabaseURL             string
	JWTSecret               string
	AccessTokenTTL          time.Duration
	RefreshTokenTTL         time.Duration
	RecordRetention         time.Duration
	CleanupInterval         time.Duration
	RequestTimeout          time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	CircuitBreakerReset     time.Duration
}

func LoadSessionConfig() (SessionConfig, error) {
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return SessionConfig{}, err
	}

	if err := validateJWTSecret(jwtSecret); err != nil {
		return SessionConfig{}, err
	}

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		HTTPPort:                getEnv("SESSION_HTTP_PORT", constants.DefaultSessionHTTPPort),
		DatabaseURL:             databaseURL,
		JWTSecret:               jwtSecret,
		AccessTokenTTL:          getDurationEnv("SESSION_ACCESS_TOKEN_TTL", constants.DefaultAccessTokenTTL),
		RefreshTokenTTL:         getDurationEnv("SESSION_REFRESH_TOKEN_TTL", constants.DefaultRefreshTokenTTL),
		RecordRetention:         getDurationEnv("SESSION_RECORD_RETENTION", constants.DefaultRecordRetention),
		CleanupInterval:         getDurationEnv("SESSION_CLEANUP_INTERVAL", constants.DefaultCleanupInterval),
		RequestTimeout:          getDurationEnv("SESSION_REQUEST_TIMEOUT", constants.DefaultSessionReqTimeout),
		CircuitBreakerThreshold: getIntEnv("SESSION_CB_THRESHOLD", constants.DefaultCBThreshold),
		CircuitBreakerTimeout:   getDurationEnv("SESSION_CB_TIMEOUT", constants.DefaultCBTimeout),
		CircuitBreakerReset:     getDurationEnv("SESSION_CB_RESET", constants.DefaultCBReset),
	}, nil
}

func validateJWTSecret(secret string) error {
	if len(secret) < constants.JWTSecretMinLength {
		return commonerrors.ErrInvalidJWTSecret.WithCause(fmt.Errorf("got %d bytes", len(secret)))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func mustEnv(key string) (string, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", commonerrors.ErrMissingRequiredEnv.WithCause(fmt.Errorf("%s", key))
	}
	return v, nil
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getIntEnv(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
