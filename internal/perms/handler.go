package perms

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/majestrate/infinity-next/internal/platform/httpx"
)

// Handler manages role and permission administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	mw      Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw}
}

// MountRoutes registers administration routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(PermSysRoles))
		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Put("/roles/{id}", h.updateRole)
		r.Delete("/roles/{id}", h.deleteRole)
		r.Put("/roles/{id}/permissions/{permission}", h.setOverride)
		r.Delete("/roles/{id}/permissions/{permission}", h.clearOverride)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(PermSysUsers))
		r.Post("/users/{id}/roles", h.assignRole)
		r.Delete("/users/{id}/roles/{role}", h.removeRole)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(PermSysCache))
		r.Post("/cache/clear", h.clearCache)
	})
	r.With(h.mw.WithActor).Get("/permissions", h.resolveAll)
}

type roleForm struct {
	Slug      string `json:"slug"`
	BoardURI  string `json:"board_uri"`
	Caste     string `json:"caste"`
	Name      string `json:"name"`
	Capcode   string `json:"capcode"`
	InheritID int64  `json:"inherit_id"`
}

type roleView struct {
	ID        int64  `json:"role_id"`
	Slug      string `json:"slug"`
	BoardURI  string `json:"board_uri,omitempty"`
	Caste     string `json:"caste,omitempty"`
	Name      string `json:"name"`
	Capcode   string `json:"capcode,omitempty"`
	InheritID int64  `json:"inherit_id,omitempty"`
	IsSystem  bool   `json:"is_system"`
}

func toRoleView(r Role) roleView {
	return roleView{
		ID: r.ID, Slug: r.Slug, BoardURI: r.BoardURI, Caste: r.Caste,
		Name: r.Name, Capcode: r.Capcode, InheritID: r.InheritID, IsSystem: r.IsSystem,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toRoleView(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": views})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var form roleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), Role{
		Slug: form.Slug, BoardURI: form.BoardURI, Caste: form.Caste,
		Name: form.Name, Capcode: form.Capcode, InheritID: form.InheritID,
	})
	if err != nil {
		if errors.Is(err, ErrWouldCycle) || errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Role", err.Error())
			return
		}
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleView(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var form roleForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	role, err := h.service.UpdateRole(r.Context(), Role{
		ID: id, Name: form.Name, Capcode: form.Capcode, Caste: form.Caste, InheritID: form.InheritID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrSystemRole), errors.Is(err, ErrWouldCycle):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Role", err.Error())
		default:
			h.fail(w, "update role", err)
		}
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleView(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		case errors.Is(err, ErrSystemRole):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Role", err.Error())
		default:
			h.fail(w, "delete role", err)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type overrideForm struct {
	Value bool `json:"value"`
}

func (h *Handler) setOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var form overrideForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	o := Override{RoleID: id, PermissionID: chi.URLParam(r, "permission"), Value: form.Value}
	if err := h.service.SetOverride(r.Context(), o); err != nil {
		var integrity *IntegrityError
		if errors.As(err, &integrity) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Unknown Permission", err.Error())
			return
		}
		h.fail(w, "set override", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearOverride(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.ClearOverride(r.Context(), id, chi.URLParam(r, "permission")); err != nil {
		h.fail(w, "clear override", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignForm struct {
	RoleID int64 `json:"role_id"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var form assignForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, form.RoleID); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	roleID, err := pathID(r, "role")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCache(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Invalidate(r.Context()); err != nil {
		h.fail(w, "clear cache", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// resolveAll reports every effective permission for the requesting actor,
// for bulk UI rendering. Board scope comes from the ?board query.
func (h *Handler) resolveAll(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFromContext(r.Context())
	all, err := h.service.ResolveAll(r.Context(), actor, r.URL.Query().Get("board"))
	if err != nil && all == nil {
		h.fail(w, "resolve all", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": all})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func pathID(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
