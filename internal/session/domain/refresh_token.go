package domain

import "time"

type RevokeReason string

const (
	ReasonRotated       RevokeReason = "rotated"
	ReasonExpired       RevokeReason = "expired"
	ReasonRevoked       RevokeReason = "revoked"
	ReasonReuseDetected RevokeReason = "reuse-detected"
)

// RefreshTokenRecord is one row per issued refresh token. A token family
// groups every token descending from one login or registration through
// rotation; jti identifies this specific token inside the family.
type RefreshTokenRecord struct {
	ID            string
	UserID        string
	TokenFamily   string
	JTI           string
	TokenHash     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	RevokedAt     *time.Time
	RevokedReason RevokeReason
	ReplacedBy    string
	IP            string
	UserAgent     string
}

// Live reports whether the record can still be presented for rotation.
func (r RefreshTokenRecord) Live(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}
