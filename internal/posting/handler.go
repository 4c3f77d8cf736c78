package posting

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/majestrate/infinity-next/internal/bans"
	"github.com/majestrate/infinity-next/internal/boards"
	"github.com/majestrate/infinity-next/internal/perms"
	"github.com/majestrate/infinity-next/internal/platform/httpx"
)

// Handler exposes the admission pipeline over HTTP.
type Handler struct {
	logger   *slog.Logger
	pipeline *Pipeline
	boards   *boards.Service
	mw       perms.Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, pipeline *Pipeline, boardsSvc *boards.Service, mw perms.Middleware) *Handler {
	return &Handler{logger: logger, pipeline: pipeline, boards: boardsSvc, mw: mw}
}

// MountRoutes registers the posting route.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.mw.Require(perms.PermPostCreate)).Post("/{board}/posts", h.createPost)
}

type submissionForm struct {
	ThreadID     int64            `json:"thread_id"`
	Subject      string           `json:"subject"`
	Name         string           `json:"name"`
	Body         string           `json:"body"`
	CaptchaToken string           `json:"captcha_token"`
	CapcodeRole  int64            `json:"capcode_role"`
	Attachments  []attachmentForm `json:"attachments"`
}

type attachmentForm struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type postView struct {
	ID       int64  `json:"id"`
	BoardURI string `json:"board_uri"`
	ThreadID int64  `json:"thread_id,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Name     string `json:"name,omitempty"`
	Body     string `json:"body"`
	Capcode  string `json:"capcode,omitempty"`
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	board, err := h.boards.GetBoard(r.Context(), chi.URLParam(r, "board"))
	if err != nil {
		if errors.Is(err, boards.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
			return
		}
		h.logger.Error("get board", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	var form submissionForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}

	ip, err := clientAddr(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Address", "could not determine client address")
		return
	}

	sub := Submission{
		IP:           ip,
		ThreadID:     form.ThreadID,
		Subject:      form.Subject,
		Name:         form.Name,
		Body:         form.Body,
		CaptchaToken: form.CaptchaToken,
		CapcodeRole:  form.CapcodeRole,
	}
	for _, att := range form.Attachments {
		ref, err := uuid.Parse(att.Ref)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "attachment ref must be a uuid")
			return
		}
		sub.Attachments = append(sub.Attachments, Attachment{Ref: ref, Name: att.Name, Size: att.Size})
	}

	actor, _ := perms.ActorFromContext(r.Context())
	decision, err := h.pipeline.Admit(r.Context(), actor, board, sub)
	if err != nil {
		h.logger.Error("admit post", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	switch decision.Outcome {
	case OutcomeAdmitted:
		p := decision.Post
		httpx.JSON(w, http.StatusCreated, postView{
			ID: p.ID, BoardURI: p.BoardURI, ThreadID: p.ThreadID,
			Subject: p.Subject, Name: p.Name, Body: p.Body, Capcode: p.Capcode,
		})
	case OutcomeBanned:
		// The ban document replaces the response wholesale.
		httpx.JSON(w, http.StatusForbidden, map[string]any{"ban": bans.View(decision.Ban)})
	default:
		httpx.JSON(w, http.StatusUnprocessableEntity, map[string]any{"errors": decision.FieldErrors})
	}
}

// clientAddr extracts the remote address, already rewritten by the RealIP
// middleware when the request came through a proxy.
func clientAddr(r *http.Request) (netip.Addr, error) {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}
