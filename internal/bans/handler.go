package bans

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/majestrate/infinity-next/internal/perms"
	"github.com/majestrate/infinity-next/internal/platform/httpx"
	"github.com/majestrate/infinity-next/internal/shared"
)

// Handler manages ban endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        perms.Middleware
	audit     *shared.AuditLogger
	validator *validator.Validate
}

// NewHandler builds a Handler instance. audit may be nil.
func NewHandler(logger *slog.Logger, service *Service, mw perms.Middleware, audit *shared.AuditLogger) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, audit: audit, validator: validator.New()}
}

// MountRoutes registers ban routes. Both routes are board scoped so the
// permission check picks up board-level moderator grants.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{board}/bans", func(r chi.Router) {
		r.With(h.mw.Require(perms.PermBanFree)).Post("/", h.createBan)
		r.With(h.mw.Require(perms.PermUnban)).Delete("/{id}", h.liftBan)
	})
}

// BanView is the public shape of a ban in responses.
type BanView struct {
	ID        int64      `json:"id"`
	CIDR      string     `json:"cidr"`
	BoardURI  string     `json:"board_uri,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// View renders the public shape of a ban.
func View(b *Ban) BanView {
	return BanView{ID: b.ID, CIDR: b.Prefix.String(), BoardURI: b.BoardURI, Reason: b.Reason, ExpiresAt: b.ExpiresAt}
}

type createForm struct {
	Target   string `json:"target" validate:"required"`
	Reason   string `json:"reason" validate:"max=2048"`
	Days     int    `json:"days"`
	Sitewide bool   `json:"sitewide"`
}

func (h *Handler) createBan(w http.ResponseWriter, r *http.Request) {
	var form createForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	boardURI := chi.URLParam(r, "board")
	if form.Sitewide {
		boardURI = ""
	}
	actor, _ := perms.ActorFromContext(r.Context())
	ban, err := h.service.Create(r.Context(), actor, CreateInput{
		Target:   form.Target,
		BoardURI: boardURI,
		Reason:   form.Reason,
		Days:     form.Days,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrBadCIDR), errors.Is(err, ErrTooLong), errors.Is(err, ErrSubnetsDisabled):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Ban", err.Error())
		case errors.Is(err, ErrReasonNotAllowed):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
		default:
			h.logger.Error("create ban", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}
	h.recordAudit(r, actor.UserID, "ban.create", ban.ID, map[string]any{
		"cidr":  ban.Prefix.String(),
		"board": ban.BoardURI,
	})
	httpx.JSON(w, http.StatusCreated, View(ban))
}

func (h *Handler) liftBan(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "ban id must be numeric")
		return
	}
	actor, _ := perms.ActorFromContext(r.Context())
	if err := h.service.Lift(r.Context(), actor, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("lift ban", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.recordAudit(r, actor.UserID, "ban.lift", id, nil)
	httpx.JSON(w, http.StatusOK, map[string]any{"lifted": id})
}

func (h *Handler) recordAudit(r *http.Request, actorID int64, action string, banID int64, meta map[string]any) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(r.Context(), shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "ban",
		EntityID: strconv.FormatInt(banID, 10),
		Meta:     meta,
	})
	if err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
	}
}
