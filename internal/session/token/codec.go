package token

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	accountdomain "github.com/tsogoevz/gymdesk/backend/internal/account/domain"
	"github.com/tsogoevz/gymdesk/backend/internal/common/clock"
)

// ErrInvalidToken covers every verification failure: bad signature, wrong
// algorithm, malformed payload, expiry, missing claims. Callers never
// learn which one so the outcome can not be probed from outside.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims is what a verified access token asserts about the caller.
type AccessClaims struct {
	UserID   string
	Role     string
	Name     string
	Email    string
	Username string
}

// RefreshClaims is the self-describing part of a refresh token. It is only
// trusted for family revocation after the signature checks out.
type RefreshClaims struct {
	UserID      string
	TokenFamily string
	JTI         string
}

// Codec signs and verifies both token kinds with a shared HMAC secret.
// All time arithmetic goes through the injected clock.
type Codec struct {
	secret     []byte
	clock      clock.Clock
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewCodec(secret string, clk clock.Clock, accessTTL, refreshTTL time.Duration) *Codec {
	return &Codec{
		secret:     []byte(secret),
		clock:      clk,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (c *Codec) IssueAccessToken(account accountdomain.Account) (string, error) {
	now := c.clock.Now()
	claims := jwt.MapClaims{
		"id":       string(account.ID),
		"role":     string(account.Role),
		"name":     account.Name,
		"email":    account.Email,
		"username": account.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(c.accessTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// IssueRefreshToken mints a refresh token carrying its family and jti and
// returns the signed string together with its expiry for the store record.
func (c *Codec) IssueRefreshToken(userID, tokenFamily, jti string) (string, time.Time, error) {
	now := c.clock.Now()
	expiresAt := now.Add(c.refreshTTL)
	claims := jwt.MapClaims{
		"id":          userID,
		"tokenFamily": tokenFamily,
		"jti":         jti,
		"iat":         now.Unix(),
		"exp":         expiresAt.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

func (c *Codec) VerifyAccessToken(tokenString string) (AccessClaims, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return AccessClaims{}, ErrInvalidToken
	}

	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return AccessClaims{}, ErrInvalidToken
	}
	role, ok := claims["role"].(string)
	if !ok || role == "" {
		return AccessClaims{}, ErrInvalidToken
	}

	name, _ := claims["name"].(string)
	email, _ := claims["email"].(string)
	username, _ := claims["username"].(string)

	return AccessClaims{
		UserID:   userID,
		Role:     role,
		Name:     name,
		Email:    email,
		Username: username,
	}, nil
}

func (c *Codec) VerifyRefreshToken(tokenString string) (RefreshClaims, error) {
	claims, err := c.parse(tokenString)
	if err != nil {
		return RefreshClaims{}, ErrInvalidToken
	}

	userID, ok := claims["id"].(string)
	if !ok || userID == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	tokenFamily, ok := claims["tokenFamily"].(string)
	if !ok || tokenFamily == "" {
		return RefreshClaims{}, ErrInvalidToken
	}
	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return RefreshClaims{}, ErrInvalidToken
	}

	return RefreshClaims{
		UserID:      userID,
		TokenFamily: tokenFamily,
		JTI:         jti,
	}, nil
}

func (c *Codec) parse(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(
		tokenString,
		func(t *jwt.Token) (interface{}, error) {
			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Hash produces the hex sha256 digest under which refresh tokens are
// stored, so the database never holds a usable token.
func Hash(tokenString string) string {
	sum := sha256.Sum256([]byte(tokenString))
	return hex.EncodeToString(sum[:])
}
