package boards

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/majestrate/infinity-next/internal/perms"
	"github.com/majestrate/infinity-next/internal/platform/httpx"
	"github.com/majestrate/infinity-next/internal/shared"
)

// Handler manages board endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	mw        perms.Middleware
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, mw perms.Middleware) *Handler {
	return &Handler{logger: logger, service: service, mw: mw, validator: validator.New()}
}

// MountRoutes registers board routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listBoards)
	r.With(h.mw.Require(perms.PermBoardCreate)).Post("/", h.createBoard)
	r.Get("/{board}", h.showBoard)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.Require(perms.PermBoardConfig))
		r.Get("/{board}/config", h.showConfig)
		r.Put("/{board}/config", h.updateConfig)
	})
}

type boardView struct {
	URI         string `json:"uri"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	IsIndexed   bool   `json:"is_indexed"`
	IsWorksafe  bool   `json:"is_worksafe"`
}

func toBoardView(b Board) boardView {
	return boardView{URI: b.URI, Title: b.Title, Description: b.Description, IsIndexed: b.IsIndexed, IsWorksafe: b.IsWorksafe}
}

func (h *Handler) listBoards(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListBoards(r.Context(), true)
	if err != nil {
		h.fail(w, "list boards", err)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := shared.NewPagination(page, perPage, len(list))
	start := (pagination.Page - 1) * pagination.PerPage
	if start > len(list) {
		start = len(list)
	}
	end := start + pagination.PerPage
	if end > len(list) {
		end = len(list)
	}

	views := make([]boardView, 0, end-start)
	for _, b := range list[start:end] {
		views = append(views, toBoardView(b))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"boards": views, "pagination": pagination})
}

type createForm struct {
	URI         string `json:"uri" validate:"required,lowercase,alphanum,max=32"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=255"`
	IsIndexed   bool   `json:"is_indexed"`
	IsWorksafe  bool   `json:"is_worksafe"`
}

func (h *Handler) createBoard(w http.ResponseWriter, r *http.Request) {
	var form createForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}
	actor, _ := perms.ActorFromContext(r.Context())
	board, err := h.service.CreateBoard(r.Context(), actor, CreateInput{
		URI: form.URI, Title: form.Title, Description: form.Description,
		IsIndexed: form.IsIndexed, IsWorksafe: form.IsWorksafe,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrURIInvalid), errors.Is(err, ErrURIBanned):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Invalid Board", err.Error())
		case errors.Is(err, ErrURITaken):
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
		default:
			h.fail(w, "create board", err)
		}
		return
	}
	httpx.JSON(w, http.StatusCreated, toBoardView(*board))
}

func (h *Handler) showBoard(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.GetBoard(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.fail(w, "get board", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toBoardView(*board))
}

func (h *Handler) showConfig(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.GetBoard(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.fail(w, "get board", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"settings":        board.Settings,
		"inconsistencies": h.service.Config().Inconsistencies(board),
	})
}

func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.GetBoard(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.fail(w, "get board", err)
		return
	}
	var values map[string]string
	if err := httpx.DecodeJSON(r, &values); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	ruleErrs, err := h.service.UpdateConfig(r.Context(), board, values)
	if err != nil {
		h.fail(w, "update config", err)
		return
	}
	if len(ruleErrs) > 0 {
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": ruleErrs})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"settings": board.Settings})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}
