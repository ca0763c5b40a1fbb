package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/authz"
	"github.com/doctorpentagon/enhanced-awibi-medtech-sub000/internal/platform/httpx"
)

// Handler wires HTTP endpoints for account management.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	engine    *authz.Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, engine *authz.Engine) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		engine:    engine,
		validator: validator.New(),
	}
}

// MountRoutes registers user routes on the provided router. Authentication
// is applied by the caller; authorization is attached per route here.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.me)
	r.With(h.engine.RequirePermission(authz.PermUsersView)).Get("/", h.list)
	r.With(h.engine.RequireUserResourceAccess("userID")).Get("/{userID}", h.get)
	r.With(h.engine.RequirePermission(authz.PermUsersManage)).Patch("/{userID}/role", h.changeRole)
	r.With(h.engine.RequireMinRole(authz.RoleAdmin)).Delete("/{userID}", h.deactivate)
}

type userView struct {
	ID            int64      `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	Role          string     `json:"role"`
	IsActive      bool       `json:"isActive"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	LockUntil     *time.Time `json:"lockUntil,omitempty"`
}

func toView(u *User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		Role:          string(u.Role),
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LockUntil:     u.LockUntil,
	}
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}
	user, err := h.service.Get(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("load current user", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toView(user))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]userView, 0, len(list))
	for i := range list {
		views = append(views, toView(&list[i]))
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toView(user))
}

type changeRolePayload struct {
	Role string `json:"role" validate:"required"`
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	var payload changeRolePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "role is required", nil)
		return
	}
	if !authz.KnownRole(authz.Role(payload.Role)) {
		httpx.Fail(w, http.StatusBadRequest, "unknown role", map[string]any{"role": payload.Role})
		return
	}
	if err := h.service.ChangeRole(r.Context(), id, authz.Role(payload.Role)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "role": payload.Role})
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	if err := h.service.Deactivate(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"id": id, "isActive": false})
}
