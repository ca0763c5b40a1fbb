package badges

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

// Handler wires HTTP endpoints for badges.
type Handler struct {
	logger    *slog.Logger
	repo      Repository
	engine    *authz.Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository, engine *authz.Engine) *Handler {
	return &Handler{logger: logger, repo: repo, engine: engine, validator: validator.New()}
}

// MountPublicRoutes registers unauthenticated badge reads.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/", h.list)
}

// MountProtectedRoutes registers badge management and awarding.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.With(h.engine.RequirePermission(authz.PermBadgesManage)).Post("/", h.create)
	r.With(h.engine.RequireUserResourceAccess("userID")).Get("/users/{userID}", h.awardsForUser)
	r.With(h.engine.RequirePermission(authz.PermBadgesAward)).Post("/{badgeID}/award/{userID}", h.award)
	r.With(h.engine.RequirePermission(authz.PermBadgesManage)).Delete("/{badgeID}/award/{userID}", h.revoke)
}

type badgeView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

type badgePayload struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("list badges", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]badgeView, 0, len(list))
	for _, b := range list {
		views = append(views, badgeView{ID: b.ID, Name: b.Name, Description: b.Description, CreatedAt: b.CreatedAt})
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload badgePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", nil)
		return
	}
	b, err := h.repo.Create(r.Context(), payload.Name, payload.Description)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, badgeView{ID: b.ID, Name: b.Name, Description: b.Description, CreatedAt: b.CreatedAt})
}

func (h *Handler) awardsForUser(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid user id", nil)
		return
	}
	awards, err := h.repo.AwardsForUser(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	views := make([]map[string]any, 0, len(awards))
	for _, a := range awards {
		views = append(views, map[string]any{
			"badgeId":   a.BadgeID,
			"awardedBy": a.AwardedBy,
			"awardedAt": a.AwardedAt,
		})
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) award(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	badgeID, err1 := strconv.ParseInt(chi.URLParam(r, "badgeID"), 10, 64)
	userID, err2 := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.repo.Grant(r.Context(), badgeID, userID, principal.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"badgeId": badgeID, "userId": userID})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	badgeID, err1 := strconv.ParseInt(chi.URLParam(r, "badgeID"), 10, 64)
	userID, err2 := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.repo.Revoke(r.Context(), badgeID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"badgeId": badgeID, "userId": userID})
}
