package service

import (
	"net/http"

	commonerrors "github.com/tsogoevz/gymdesk/backend/internal/common/errors"
)

var (
	ErrValidation = commonerrors.NewDomainError(
		"VALIDATION_ERROR",
		commonerrors.CategoryValidation,
		http.StatusBadRequest,
		"invalid request",
	)

	// ErrInvalidCredentials covers wrong password, unknown identifier and
	// empty input alike, so login failures can not be used to enumerate
	// accounts.
	ErrInvalidCredentials = commonerrors.NewDomainError(
		"INVALID_CREDENTIALS",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"invalid credentials",
	)

	// ErrInvalidRefreshToken is the single client-visible outcome for every
	// refresh failure. The internal reason lands in logs and metrics only.
	ErrInvalidRefreshToken = commonerrors.NewDomainError(
		"INVALID_REFRESH_TOKEN",
		commonerrors.CategoryUnauthorized,
		http.StatusUnauthorized,
		"unauthorized, please log in again",
	)

	ErrAccountSuspended = commonerrors.NewDomainError(
		"ACCOUNT_SUSPENDED",
		commonerrors.CategoryUnauthorized,
		http.StatusForbidden,
		"account is suspended",
	)

	ErrServiceUnavailable = commonerrors.NewDomainError(
		"SERVICE_UNAVAILABLE",
		commonerrors.CategoryExternal,
		http.StatusServiceUnavailable,
		"service temporarily unavailable",
	)
)

// Internal refresh rejection reasons. Never returned to clients.
const (
	rejectInvalidSignature = "invalid-signature"
	rejectNotFound         = "not-found"
	rejectExpired          = "expired"
	rejectAlreadyRevoked   = "already-revoked"
	rejectReuseDetected    = "reuse-detected"
	rejectAccountSuspended = "account-suspended"
)
