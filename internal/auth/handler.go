package auth

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/platform/httpx"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/shared"
)

// verificationTokenTTL bounds the email-verification link lifetime.
const verificationTokenTTL = 24 * time.Hour

// Mailer hands verification and reset tokens to the delivery pipeline. A
// nil mailer skips delivery; the endpoints answer the same either way.
type Mailer interface {
	SendEmailVerification(ctx context.Context, to, token string) error
	SendPasswordReset(ctx context.Context, to, token string) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	mailer         Mailer
	validator      *validator.Validate
	devMode        bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, mailer Mailer, devMode bool) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		mailer:         mailer,
		validator:      validator.New(),
		devMode:        devMode,
	}
}

// RouteLimits carries the per-endpoint rate-limit middlewares the router
// attaches to credential flows. Nil entries mean unlimited; tests use that.
type RouteLimits struct {
	Auth              func(http.Handler) http.Handler
	PasswordReset     func(http.Handler) http.Handler
	EmailVerification func(http.Handler) http.Handler
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router, limits RouteLimits) {
	r.With(orNoop(limits.EmailVerification)).Post("/register", h.handleRegister)
	r.With(orNoop(limits.Auth)).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.With(orNoop(limits.PasswordReset)).Post("/password-reset", h.handlePasswordReset)
	r.With(orNoop(limits.EmailVerification)).Post("/verify-email", h.handleVerifyEmail)
}

func orNoop(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}

type registerPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2,max=120"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var payload registerPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", validationContext(err))
		return
	}
	user, err := h.service.Register(r.Context(), RegisterParams{
		Email:    payload.Email,
		Name:     payload.Name,
		Password: payload.Password,
	})
	if err != nil {
		if errors.Is(err, shared.ErrDuplicate) {
			// Same body as success: registration never confirms whether an
			// email is already taken.
			httpx.OK(w, http.StatusAccepted, map[string]any{"message": "verification email sent"})
			return
		}
		h.serverError(w, "register", err)
		return
	}
	h.logger.Info("account registered", slog.Int64("user_id", user.ID))
	if h.mailer != nil {
		token, _, err := h.service.Tokens().SignPurpose(user.ID, PurposeEmailVerify, verificationTokenTTL)
		if err == nil {
			err = h.mailer.SendEmailVerification(r.Context(), user.Email, token)
		}
		if err != nil {
			// The account exists; the user can re-request verification.
			h.logger.Warn("queue verification email", slog.Any("error", err))
		}
	}
	httpx.OK(w, http.StatusAccepted, map[string]any{"message": "verification email sent"})
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", validationContext(err))
		return
	}

	user, err := h.service.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		var locked *AccountLockedError
		switch {
		case errors.As(err, &locked):
			httpx.Fail(w, http.StatusLocked, "account temporarily locked", map[string]any{
				"lockUntil":  locked.Until.UTC().Format(time.RFC3339),
				"retryAfter": int(math.Ceil(locked.Remaining.Seconds())),
			})
		case errors.Is(err, shared.ErrInvalidCredentials):
			httpx.Fail(w, http.StatusUnauthorized, "invalid email or password", nil)
		default:
			h.serverError(w, "login", err)
		}
		return
	}

	token, expiresAt, err := h.service.IssueToken(user)
	if err != nil {
		h.serverError(w, "issue token", err)
		return
	}

	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.SetUser(strconv.FormatInt(user.ID, 10))
		sess.Set(SessionTokenKey, token)
	}

	httpx.OK(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
		"user": map[string]any{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  string(user.Role),
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		h.sessionManager.Destroy(sess)
	}
	httpx.OK(w, http.StatusOK, map[string]any{"message": "logged out"})
}

type passwordResetPayload struct {
	Email string `json:"email" validate:"required,email"`
}

func (h *Handler) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	var payload passwordResetPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", validationContext(err))
		return
	}
	token, err := h.service.RequestPasswordReset(r.Context(), payload.Email)
	if err != nil {
		h.serverError(w, "password reset", err)
		return
	}
	if token != "" {
		// The token goes to the mail queue, never into the response body.
		if h.mailer != nil {
			if err := h.mailer.SendPasswordReset(r.Context(), payload.Email, token); err != nil {
				h.logger.Warn("queue password reset email", slog.Any("error", err))
			}
		}
		h.logger.Info("password reset token issued")
	}
	httpx.OK(w, http.StatusAccepted, map[string]any{"message": "if the account exists, a reset email has been sent"})
}

type verifyEmailPayload struct {
	Token string `json:"token" validate:"required"`
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var payload verifyEmailPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", validationContext(err))
		return
	}
	if err := h.service.VerifyEmailToken(r.Context(), payload.Token); err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) || errors.Is(err, shared.ErrNotFound) {
			httpx.Fail(w, http.StatusUnauthorized, "invalid or expired verification token", nil)
			return
		}
		h.serverError(w, "verify email", err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"message": "email verified"})
}

// HandleRefresh issues a fresh access token for an authenticated request.
// Mounted behind RequireAuth by the router.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}
	token, expiresAt, err := h.service.tokens.Sign(principal.ID)
	if err != nil {
		h.serverError(w, "refresh token", err)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.Set(SessionTokenKey, token)
	}
	httpx.OK(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
	})
}

func (h *Handler) serverError(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	if h.devMode {
		httpx.Fail(w, http.StatusInternalServerError, "internal error", map[string]any{"detail": err.Error()})
		return
	}
	httpx.Fail(w, http.StatusInternalServerError, "internal error", nil)
}

func validationContext(err error) map[string]any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return map[string]any{"fields": fields}
}
