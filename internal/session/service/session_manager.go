package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"

	accountdomain "github.com/tsogoevz/gymdesk/backend/internal/account/domain"
	accountrepo "github.com/tsogoevz/gymdesk/backend/internal/account/repository"
	"github.com/tsogoevz/gymdesk/backend/internal/common/clock"
	"github.com/tsogoevz/gymdesk/backend/internal/common/crypto"
	commonerrors "github.com/tsogoevz/gymdesk/backend/internal/common/errors"
	"github.com/tsogoevz/gymdesk/backend/internal/common/logger"
	"github.com/tsogoevz/gymdesk/backend/internal/common/resilience"
	"github.com/tsogoevz/gymdesk/backend/internal/observability/metrics"
	sessiondomain "github.com/tsogoevz/gymdesk/backend/internal/session/domain"
	"github.com/tsogoevz/gymdesk/backend/internal/session/repository"
	"github.com/tsogoevz/gymdesk/backend/internal/session/token"
)

// TokenCodec is the signing surface the manager needs from the token layer.
type TokenCodec interface {
	IssueAccessToken(account accountdomain.Account) (string, error)
	IssueRefreshToken(userID, tokenFamily, jti string) (string, time.Time, error)
	VerifyRefreshToken(tokenString string) (token.RefreshClaims, error)
}

type LoginInput struct {
	Identifier string `validate:"required"`
	Password   string `validate:"required"`
}

type RegisterInput struct {
	Name     string `validate:"required,min=2,max=100"`
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=30,alphanum"`
	Password string `validate:"required,min=8,max=72"`
	Role     string `validate:"omitempty,oneof=member trainer"`
}

// RequestMeta carries diagnostic request context persisted on the refresh
// record. Purely informational, never part of any decision.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type AccountSummary struct {
	ID       string `json:"id"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type SessionResult struct {
	AccessToken  string
	RefreshToken string
	Account      AccountSummary
}

// SessionManager runs the session protocol: credential login, registration,
// refresh token rotation with family-wide reuse revocation, and logout.
// It holds no mutable state of its own; all coordination lives in the store.
type SessionManager struct {
	accounts accountrepo.Repository
	store    repository.RefreshTokenStore
	codec    TokenCodec
	hasher   crypto.PasswordHasher
	ids      crypto.IDGenerator
	clock    clock.Clock
	breaker  resilience.CircuitBreakerInterface
	notifier Notifier
	log      *logger.Logger
	validate *validator.Validate
}

type Deps struct {
	Accounts accountrepo.Repository
	Store    repository.RefreshTokenStore
	Codec    TokenCodec
	Hasher   crypto.PasswordHasher
	IDs      crypto.IDGenerator
	Clock    clock.Clock
	Breaker  resilience.CircuitBreakerInterface
	Notifier Notifier
	Logger   *logger.Logger
}

func NewSessionManager(deps Deps) *SessionManager {
	return &SessionManager{
		accounts: deps.Accounts,
		store:    deps.Store,
		codec:    deps.Codec,
		hasher:   deps.Hasher,
		ids:      deps.IDs,
		clock:    deps.Clock,
		breaker:  deps.Breaker,
		notifier: deps.Notifier,
		log:      deps.Logger,
		validate: validator.New(),
	}
}

func (m *SessionManager) Login(ctx context.Context, input LoginInput, meta RequestMeta) (SessionResult, error) {
	if err := m.validate.Struct(input); err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return SessionResult{}, ErrInvalidCredentials
	}

	account, err := m.accounts.FindByIdentifier(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			return SessionResult{}, ErrInvalidCredentials
		}
		return SessionResult{}, m.asTransient(err)
	}

	if err := m.hasher.Compare(account.PasswordHash, input.Password); err != nil {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return SessionResult{}, ErrInvalidCredentials
	}

	if account.Status == accountdomain.StatusSuspended {
		metrics.LoginsTotal.WithLabelValues("suspended").Inc()
		return SessionResult{}, ErrAccountSuspended
	}

	result, err := m.issueSession(ctx, account, meta)
	if err != nil {
		return SessionResult{}, err
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	m.notifier.AccountLoggedIn(account, m.clock.Now())
	m.log.WithFields(ctx, logger.Fields{"user_id": string(account.ID)}).Info("login succeeded")
	return result, nil
}

func (m *SessionManager) Register(ctx context.Context, input RegisterInput, meta RequestMeta) (SessionResult, error) {
	if err := m.validate.Struct(input); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("failure").Inc()
		return SessionResult{}, ErrValidation.WithCause(err)
	}

	role := accountdomain.Role(input.Role)
	if role == "" {
		role = accountdomain.RoleMember
	}

	passwordHash, err := m.hasher.Hash(input.Password)
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	id, err := m.ids.NewID()
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	account := accountdomain.Account{
		ID:           accountdomain.ID(id),
		Role:         role,
		Status:       accountdomain.StatusActive,
		Name:         input.Name,
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: passwordHash,
		CreatedAt:    m.clock.Now(),
	}

	if err := m.accounts.Create(ctx, account); err != nil {
		switch {
		case errors.Is(err, accountrepo.ErrEmailTaken):
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return SessionResult{}, commonerrors.ErrEmailAlreadyExists
		case errors.Is(err, accountrepo.ErrUsernameTaken):
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return SessionResult{}, commonerrors.ErrUsernameAlreadyExists
		default:
			return SessionResult{}, m.asTransient(err)
		}
	}

	result, err := m.issueSession(ctx, account, meta)
	if err != nil {
		return SessionResult{}, err
	}

	metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	m.notifier.AccountRegistered(account)
	m.log.WithFields(ctx, logger.Fields{"user_id": string(account.ID)}).Info("registration succeeded")
	return result, nil
}

// Refresh runs the rotation state machine. Every failure is surfaced to the
// caller as the same unauthorized outcome; the distinguishing reason only
// reaches logs and counters.
func (m *SessionManager) Refresh(ctx context.Context, refreshToken string, meta RequestMeta) (SessionResult, error) {
	claims, err := m.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		m.reject(ctx, rejectInvalidSignature, "", "")
		return SessionResult{}, ErrInvalidRefreshToken
	}

	record, err := m.store.FindByTokenHash(ctx, token.Hash(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			// A well-signed token with no record was either rotated away
			// and purged, or never issued by us. Both read as compromise:
			// nuke the family named by the token's own claims.
			metrics.ReuseDetected.Inc()
			m.revokeFamily(ctx, claims.UserID, claims.TokenFamily, sessiondomain.ReasonReuseDetected)
			m.reject(ctx, rejectNotFound, claims.UserID, claims.TokenFamily)
			return SessionResult{}, ErrInvalidRefreshToken
		}
		return SessionResult{}, m.asTransient(err)
	}

	now := m.clock.Now()
	if record.RevokedAt != nil {
		metrics.ReuseDetected.Inc()
		m.revokeFamily(ctx, record.UserID, record.TokenFamily, sessiondomain.ReasonReuseDetected)
		m.reject(ctx, rejectAlreadyRevoked, record.UserID, record.TokenFamily)
		return SessionResult{}, ErrInvalidRefreshToken
	}
	if !now.Before(record.ExpiresAt) {
		m.revokeFamily(ctx, record.UserID, record.TokenFamily, sessiondomain.ReasonExpired)
		m.reject(ctx, rejectExpired, record.UserID, record.TokenFamily)
		return SessionResult{}, ErrInvalidRefreshToken
	}

	// Identity comes from the persisted record, never from the token's
	// claims.
	account, err := m.accounts.FindByID(ctx, accountdomain.ID(record.UserID))
	if err != nil {
		if errors.Is(err, accountrepo.ErrAccountNotFound) {
			m.revokeFamily(ctx, record.UserID, record.TokenFamily, sessiondomain.ReasonRevoked)
			m.reject(ctx, rejectAccountSuspended, record.UserID, record.TokenFamily)
			return SessionResult{}, ErrInvalidRefreshToken
		}
		return SessionResult{}, m.asTransient(err)
	}
	if !account.Status.CanRefresh() {
		m.revokeFamily(ctx, record.UserID, record.TokenFamily, sessiondomain.ReasonRevoked)
		m.reject(ctx, rejectAccountSuspended, record.UserID, record.TokenFamily)
		return SessionResult{}, ErrInvalidRefreshToken
	}

	newJTI, err := m.ids.NewID()
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	if err := m.store.MarkRotated(ctx, record.ID, newJTI); err != nil {
		if errors.Is(err, repository.ErrAlreadyRotated) {
			// Lost the race: another request rotated this record between
			// our lookup and now. Same treatment as presenting an
			// already-revoked token.
			metrics.ReuseDetected.Inc()
			m.revokeFamily(ctx, record.UserID, record.TokenFamily, sessiondomain.ReasonReuseDetected)
			m.reject(ctx, rejectAlreadyRevoked, record.UserID, record.TokenFamily)
			return SessionResult{}, ErrInvalidRefreshToken
		}
		return SessionResult{}, m.asTransient(err)
	}

	result, err := m.issueRotated(ctx, account, record.TokenFamily, newJTI, meta)
	if err != nil {
		return SessionResult{}, err
	}

	metrics.RefreshTokensRotated.Inc()
	m.log.WithFields(ctx, logger.Fields{
		"user_id": record.UserID,
		"family":  record.TokenFamily,
	}).Info("refresh token rotated")
	return result, nil
}

// Logout revokes the whole family behind the presented refresh token, so
// every device holding a descendant of this login chain is signed out.
func (m *SessionManager) Logout(ctx context.Context, refreshToken string) error {
	claims, err := m.codec.VerifyRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidRefreshToken
	}

	err = m.breaker.Call(ctx, func(callCtx context.Context) error {
		revoked, err := m.store.RevokeFamily(callCtx, claims.UserID, claims.TokenFamily, sessiondomain.ReasonRevoked)
		if err != nil {
			return err
		}
		if revoked > 0 {
			metrics.FamiliesRevoked.WithLabelValues(string(sessiondomain.ReasonRevoked)).Inc()
		}
		return nil
	})
	if err != nil {
		return m.asTransient(err)
	}

	m.log.WithFields(ctx, logger.Fields{
		"user_id": claims.UserID,
		"family":  claims.TokenFamily,
	}).Info("logout revoked token family")
	return nil
}

// issueSession mints a fresh token family for a newly authenticated
// account and persists its first refresh record.
func (m *SessionManager) issueSession(ctx context.Context, account accountdomain.Account, meta RequestMeta) (SessionResult, error) {
	family, err := m.ids.NewID()
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}
	jti, err := m.ids.NewID()
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}
	return m.issueRotated(ctx, account, family, jti, meta)
}

// issueRotated is the shared issuance tail: sign both tokens and persist
// the refresh record under the given family and jti.
func (m *SessionManager) issueRotated(ctx context.Context, account accountdomain.Account, family, jti string, meta RequestMeta) (SessionResult, error) {
	accessToken, err := m.codec.IssueAccessToken(account)
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	refreshToken, expiresAt, err := m.codec.IssueRefreshToken(string(account.ID), family, jti)
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	recordID, err := m.ids.NewID()
	if err != nil {
		return SessionResult{}, commonerrors.ErrInternalError.WithCause(err)
	}

	record := sessiondomain.RefreshTokenRecord{
		ID:          recordID,
		UserID:      string(account.ID),
		TokenFamily: family,
		JTI:         jti,
		TokenHash:   token.Hash(refreshToken),
		IssuedAt:    m.clock.Now(),
		ExpiresAt:   expiresAt,
		IP:          meta.IP,
		UserAgent:   meta.UserAgent,
	}

	err = m.breaker.Call(ctx, func(callCtx context.Context) error {
		return m.store.Create(callCtx, record)
	})
	if err != nil {
		return SessionResult{}, m.asTransient(err)
	}

	metrics.AccessTokensIssued.Inc()
	metrics.RefreshTokensIssued.Inc()

	return SessionResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Account: AccountSummary{
			ID:       string(account.ID),
			Role:     string(account.Role),
			Status:   string(account.Status),
			Name:     account.Name,
			Email:    account.Email,
			Username: account.Username,
		},
	}, nil
}

// revokeFamily is best-effort inside a rejection path: the reject stands
// even if the store write fails, so errors are only logged.
func (m *SessionManager) revokeFamily(ctx context.Context, userID, family string, reason sessiondomain.RevokeReason) {
	revoked, err := m.store.RevokeFamily(ctx, userID, family, reason)
	if err != nil {
		m.log.WithFields(ctx, logger.Fields{
			"user_id": userID,
			"family":  family,
			"reason":  string(reason),
		}).Errorf("family revocation failed: %v", err)
		return
	}
	if revoked > 0 {
		metrics.FamiliesRevoked.WithLabelValues(string(reason)).Inc()
	}
}

func (m *SessionManager) reject(ctx context.Context, reason, userID, family string) {
	metrics.RefreshRejected.WithLabelValues(reason).Inc()
	fields := logger.Fields{"reason": reason}
	if userID != "" {
		fields["user_id"] = userID
	}
	if family != "" {
		fields["family"] = family
	}
	m.log.WithFields(ctx, fields).Warn("refresh rejected")
}

// asTransient maps store and breaker failures to a retryable outcome.
// They are never reported as an invalid token.
func (m *SessionManager) asTransient(err error) error {
	if errors.Is(err, commonerrors.ErrCircuitOpen) {
		return commonerrors.ErrCircuitOpen
	}
	return ErrServiceUnavailable.WithCause(err)
}
