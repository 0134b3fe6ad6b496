package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AccessTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_access_tokens_issued_total",
			Help: "Total number of access tokens issued",
		},
	)

	RefreshTokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_refresh_tokens_issued_total",
			Help: "Total number of refresh tokens issued",
		},
	)

	RefreshTokensRotated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_refresh_tokens_rotated_total",
			Help: "Total number of refresh tokens rotated",
		},
	)

	FamiliesRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_families_revoked_total",
			Help: "Total number of token families revoked, by reason",
		},
		[]string{"reason"},
	)

	RefreshRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_refresh_rejected_total",
			Help: "Total number of rejected refresh attempts, by internal reason",
		},
		[]string{"reason"},
	)

	ReuseDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_reuse_detected_total",
			Help: "Total number of refresh token reuse detections",
		},
	)

	RecordsCleanupDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "session_records_cleanup_deleted_total",
			Help: "Total number of stale refresh token records purged by housekeeping",
		},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_logins_total",
			Help: "Total number of login attempts by outcome",
		},
		[]string{"outcome"},
	)

	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_registrations_total",
			Help: "Total number of registration attempts by outcome",
		},
		[]string{"outcome"},
	)
)
