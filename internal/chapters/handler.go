package chapters

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

// Handler wires HTTP endpoints for chapters.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	engine    *authz.Engine
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, engine *authz.Engine) *Handler {
	return &Handler{logger: logger, service: service, engine: engine, validator: validator.New()}
}

// MountPublicRoutes registers the unauthenticated chapter reads.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{chapterID}", h.get)
}

// MountProtectedRoutes registers chapter management. Authentication is
// applied by the caller; delegation scoping is attached per route here.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.With(h.engine.RequirePermission(authz.PermChaptersCreate)).Post("/", h.create)
	r.With(h.engine.RequireChapterDelegate("chapterID")).Patch("/{chapterID}", h.update)
	r.Post("/{chapterID}/join", h.join)
	r.With(h.engine.RequireMinRole(authz.RoleAdmin)).Post("/{chapterID}/delegates/{userID}", h.addDelegate)
	r.With(h.engine.RequireMinRole(authz.RoleAdmin)).Delete("/{chapterID}/delegates/{userID}", h.removeDelegate)
}

type chapterView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Region      string    `json:"region"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	Joined      bool      `json:"joined,omitempty"`
}

func toView(ch *Chapter) chapterView {
	return chapterView{
		ID:          ch.ID,
		Name:        ch.Name,
		Region:      ch.Region,
		Description: ch.Description,
		CreatedAt:   ch.CreatedAt,
	}
}

type chapterPayload struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	Region      string `json:"region" validate:"required,min=2,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list chapters", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	// Anonymized reads stay as-is; a resolved principal gets its
	// memberships flagged on each entry.
	var joined map[int64]bool
	if p := authz.PrincipalFromContext(r.Context()); p != nil {
		ids, merr := h.service.MembershipIDs(r.Context(), p.ID)
		if merr != nil {
			h.logger.Warn("chapter memberships", slog.Any("error", merr))
		} else {
			joined = make(map[int64]bool, len(ids))
			for _, id := range ids {
				joined[id] = true
			}
		}
	}
	views := make([]chapterView, 0, len(list))
	for i := range list {
		v := toView(&list[i])
		v.Joined = joined[v.ID]
		views = append(views, v)
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid chapter id", nil)
		return
	}
	ch, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toView(ch))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload chapterPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", nil)
		return
	}
	ch, err := h.service.Create(r.Context(), UpdateParams{
		Name:        payload.Name,
		Region:      payload.Region,
		Description: payload.Description,
	})
	if err != nil {
		h.logger.Error("create chapter", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toView(ch))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid chapter id", nil)
		return
	}
	var payload chapterPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", nil)
		return
	}
	ch, err := h.service.Update(r.Context(), id, UpdateParams{
		Name:        payload.Name,
		Region:      payload.Region,
		Description: payload.Description,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toView(ch))
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid chapter id", nil)
		return
	}
	if err := h.service.Join(r.Context(), id, principal.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"chapterId": id, "userId": principal.ID})
}

func (h *Handler) addDelegate(w http.ResponseWriter, r *http.Request) {
	chapterID, err1 := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	userID, err2 := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.service.AddDelegate(r.Context(), chapterID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"chapterId": chapterID, "userId": userID})
}

func (h *Handler) removeDelegate(w http.ResponseWriter, r *http.Request) {
	chapterID, err1 := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	userID, err2 := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err1 != nil || err2 != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid id", nil)
		return
	}
	if err := h.service.RemoveDelegate(r.Context(), chapterID, userID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"chapterId": chapterID, "userId": userID})
}
