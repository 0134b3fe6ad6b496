package http

import (
	"context"
	"net/http"
	"time"

	commonhttp "github.com/tsogoevz/gymdesk/backend/internal/common/http"
	"github.com/tsogoevz/gymdesk/backend/internal/common/logger"
	"github.com/tsogoevz/gymdesk/backend/internal/session/service"
)

const refreshCookieName = "refresh_token"

// SessionService is the protocol surface the HTTP layer drives.
type SessionService interface {
	Login(ctx context.Context, input service.LoginInput, meta service.RequestMeta) (service.SessionResult, error)
	Register(ctx context.Context, input service.RegisterInput, meta service.RequestMeta) (service.SessionResult, error)
	Refresh(ctx context.Context, refreshToken string, meta service.RequestMeta) (service.SessionResult, error)
	Logout(ctx context.Context, refreshToken string) error
}

type Handler struct {
	sessions      SessionService
	errorHandler  *commonhttp.ErrorHandler
	log           *logger.Logger
	limiter       *commonhttp.StrictRateLimiter
	timeout       time.Duration
	refreshTTL    time.Duration
	secureCookies bool
}

type Config struct {
	Sessions       SessionService
	Logger         *logger.Logger
	Limiter        *commonhttp.StrictRateLimiter
	RequestTimeout time.Duration
	RefreshTTL     time.Duration
	SecureCookies  bool
}

func NewHandler(cfg Config) *Handler {
	return &Handler{
		sessions:      cfg.Sessions,
		errorHandler:  commonhttp.NewErrorHandler(cfg.Logger),
		log:           cfg.Logger,
		limiter:       cfg.Limiter,
		timeout:       cfg.RequestTimeout,
		refreshTTL:    cfg.RefreshTTL,
		secureCookies: cfg.SecureCookies,
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("/api/auth/register", h.route("/api/auth/register", h.handleRegister))
	mux.Handle("/api/auth/login", h.route("/api/auth/login", h.handleLogin))
	mux.Handle("/api/auth/refresh", h.route("/api/auth/refresh", h.handleRefresh))
	mux.Handle("/api/auth/logout", h.route("/api/auth/logout", h.handleLogout))
	mux.HandleFunc("/health", commonhttp.HealthHandler(h.log))
}

func (h *Handler) route(path string, fn http.HandlerFunc) http.Handler {
	wrapped := commonhttp.RequireMethod(http.MethodPost)(commonhttp.WithTimeout(h.timeout)(fn))
	if h.limiter != nil {
		return h.limiter.MiddlewareForPath(path)(wrapped)
	}
	return http.Handler(wrapped)
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	Token        string                 `json:"token"`
	RefreshToken string                 `json:"refreshToken"`
	Account      service.AccountSummary `json:"account"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid request body", nil, "")
		return
	}

	result, err := h.sessions.Login(r.Context(), service.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	}, h.requestMeta(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeSession(w, result)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeInvalidJSON, "invalid request body", nil, "")
		return
	}

	result, err := h.sessions.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	}, h.requestMeta(r))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeSession(w, result)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.extractRefreshToken(r)
	if refreshToken == "" {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeMissingRefreshToken, "refresh token required", nil, "")
		return
	}

	result, err := h.sessions.Refresh(r.Context(), refreshToken, h.requestMeta(r))
	if err != nil {
		h.clearRefreshCookie(w)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.writeSession(w, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	refreshToken := h.extractRefreshToken(r)
	if refreshToken == "" {
		commonhttp.WriteErrorEnvelope(w, http.StatusBadRequest, commonhttp.CodeMissingRefreshToken, "refresh token required", nil, "")
		return
	}

	if err := h.sessions.Logout(r.Context(), refreshToken); err != nil {
		h.clearRefreshCookie(w)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.clearRefreshCookie(w)
	commonhttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// extractRefreshToken prefers the HttpOnly cookie set on issuance and
// falls back to a JSON body for non-browser clients.
func (h *Handler) extractRefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	var req refreshRequest
	if err := commonhttp.DecodeJSON(r, &req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func (h *Handler) requestMeta(r *http.Request) service.RequestMeta {
	return service.RequestMeta{
		IP:        commonhttp.GetClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

func (h *Handler) writeSession(w http.ResponseWriter, result service.SessionResult) {
	h.setRefreshCookie(w, result.RefreshToken)
	commonhttp.WriteJSON(w, http.StatusOK, sessionResponse{
		Token:        result.AccessToken,
		RefreshToken: result.RefreshToken,
		Account:      result.Account,
	})
}

func (h *Handler) setRefreshCookie(w http.ResponseWriter, refreshToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/api/auth",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/api/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}
