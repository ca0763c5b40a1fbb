package events

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

// Handler wires HTTP endpoints for events.
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

// MountChapterRoutes registers the event routes nested under the chapter
// tree. Creation is scoped by chapter delegation.
func (h *Handler) MountChapterRoutes(pub, priv chi.Router) {
	pub.Get("/{chapterID}/events", h.listByChapter)
	priv.With(h.engine.RequireChapterDelegate("chapterID")).Post("/{chapterID}/events", h.create)
}

// MountPublicRoutes registers unauthenticated event reads.
func (h *Handler) MountPublicRoutes(r chi.Router) {
	r.Get("/{eventID}", h.get)
}

// MountProtectedRoutes registers event management. Updates allow the creator
// or an admin.
func (h *Handler) MountProtectedRoutes(r chi.Router) {
	r.With(h.engine.RequireOwnerOrRoles(h.eventOwner, authz.GlobalAdminRoles...)).Patch("/{eventID}", h.update)
	r.Post("/{eventID}/rsvp", h.rsvp)
}

// eventOwner resolves the creator of the addressed event for the ownership
// check.
func (h *Handler) eventOwner(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		return 0, err
	}
	ev, err := h.repo.Get(r.Context(), id)
	if err != nil {
		return 0, err
	}
	return ev.CreatedBy, nil
}

type eventView struct {
	ID          int64     `json:"id"`
	ChapterID   int64     `json:"chapterId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	StartsAt    time.Time `json:"startsAt"`
	CreatedBy   int64     `json:"createdBy"`
}

func toView(ev *Event) eventView {
	return eventView{
		ID:          ev.ID,
		ChapterID:   ev.ChapterID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		StartsAt:    ev.StartsAt,
		CreatedBy:   ev.CreatedBy,
	}
}

type eventPayload struct {
	Title       string    `json:"title" validate:"required,min=2,max=200"`
	Description string    `json:"description" validate:"max=4000"`
	Location    string    `json:"location" validate:"max=300"`
	StartsAt    time.Time `json:"startsAt" validate:"required"`
}

func (h *Handler) listByChapter(w http.ResponseWriter, r *http.Request) {
	chapterID, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid chapter id", nil)
		return
	}
	list, err := h.repo.ListByChapter(r.Context(), chapterID)
	if err != nil {
		h.logger.Error("list events", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]eventView, 0, len(list))
	for i := range list {
		views = append(views, toView(&list[i]))
	}
	httpx.OK(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid event id", nil)
		return
	}
	ev, err := h.repo.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toView(ev))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	chapterID, err := strconv.ParseInt(chi.URLParam(r, "chapterID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid chapter id", nil)
		return
	}
	var payload eventPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", nil)
		return
	}
	ev, err := h.repo.Create(r.Context(), chapterID, principal.ID, Params{
		Title:       payload.Title,
		Description: payload.Description,
		Location:    payload.Location,
		StartsAt:    payload.StartsAt,
	})
	if err != nil {
		h.logger.Error("create event", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusCreated, toView(ev))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid event id", nil)
		return
	}
	var payload eventPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.validator.Struct(payload); err != nil {
		httpx.Fail(w, http.StatusBadRequest, "validation failed", nil)
		return
	}
	ev, err := h.repo.Update(r.Context(), id, Params{
		Title:       payload.Title,
		Description: payload.Description,
		Location:    payload.Location,
		StartsAt:    payload.StartsAt,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, toView(ev))
}

func (h *Handler) rsvp(w http.ResponseWriter, r *http.Request) {
	principal := authz.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Fail(w, http.StatusUnauthorized, "authentication required", nil)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "eventID"), 10, 64)
	if err != nil {
		httpx.Fail(w, http.StatusBadRequest, "invalid event id", nil)
		return
	}
	if _, err := h.repo.Get(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.repo.RSVP(r.Context(), id, principal.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.OK(w, http.StatusOK, map[string]any{"eventId": id, "userId": principal.ID})
}
