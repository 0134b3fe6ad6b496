package constants

import "time"

const (
	UsernameMinLength  = 3
	UsernameMaxLength  = 32
	PasswordMinLength  = 8
	PasswordMaxLength  = 72
	JWTSecretMinLength = 32

	DefaultMaxRequestSize = 1 << 20

	DBPoolMaxOpenConns   = 25
	DBPoolMinOpenConns   = 5
	DBPoolConnMaxLife    = time.Hour
	DBPoolConnMaxIdle    = 30 * time.Minute
	DBPoolHealthCheck    = time.Minute
	DBPoolConnectTimeout = 5 * time.Second
	DBPoolMaxAttempts    = 10
	DBPoolRetryDelay     = time.Second
	DBQueryTimeout       = 30 * time.Second

	ServerReadHeaderTimeout = 10 * time.Second
	ServerReadTimeout       = 30 * time.Second
	ServerWriteTimeout      = 30 * time.Second
	ServerIdleTimeout       = 120 * time.Second

	ShutdownTimeout = 30 * time.Second
	DrainTimeout    = 10 * time.Second

	DefaultSessionHTTPPort   = "8081"
	DefaultSessionReqTimeout = 5 * time.Second
	DefaultAccessTokenTTL    = 2 * time.Hour
	DefaultRefreshTokenTTL   = 7 * 24 * time.Hour
	DefaultRecordRetention   = 30 * 24 * time.Hour
	DefaultCleanupInterval   = time.Hour
	DefaultNotifyQueueSize   = 256
	DefaultNotifySendTimeout = 3 * time.Second
	DefaultCBThreshold       = 500
	DefaultCBTimeout         = 15 * time.Second
	DefaultCBReset           = 10 * time.Second

	RateLimitCleanupInterval = 5 * time.Minute

	RateLimitLoginRequestsPerSecond    = 1
	RateLimitLoginBurst                = 5
	RateLimitRegisterRequestsPerSecond = 0.5
	RateLimitRegisterBurst             = 3
	RateLimitRefreshRequestsPerSecond  = 2
	RateLimitRefreshBurst              = 10
	RateLimitLogoutRequestsPerSecond   = 1
	RateLimitLogoutBurst               = 5
	RateLimitGeneralRequestsPerSecond  = 10
	RateLimitGeneralBurst              = 20

	LoggerMaxSize    = 100
	LoggerMaxBackups = 3
	LoggerMaxAge     = 28
)

type TraceIDKeyType string

const TraceIDKey TraceIDKeyType = "trace_id"
