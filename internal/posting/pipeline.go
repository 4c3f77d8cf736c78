package posting

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/majestrate/infinity-next/internal/bans"
	"github.com/majestrate/infinity-next/internal/boards"
	"github.com/majestrate/infinity-next/internal/observability"
	"github.com/majestrate/infinity-next/internal/perms"
)

// Body length limits used when the board declares no option value.
const (
	fallbackBodyMax     = 65534
	fallbackAttachments = 1
)

// allowedExtensions is the attachment extension allowlist.
var allowedExtensions = map[string]bool{
	"jpeg": true, "jpg": true, "gif": true, "png": true, "svg": true,
	"pdf": true, "epub": true, "webm": true, "mp4": true, "ogg": true,
}

// Pipeline runs a submission through the ordered admission gates: ban,
// flood, captcha, shape, integrity. No side effect happens before every
// gate has passed; the flood reservation and the database write form the
// commit step.
type Pipeline struct {
	repo    Repository
	cfg     *boards.Config
	perms   *perms.Service
	bans    *bans.Service
	storage Storage
	captcha Verifier
	flood   *FloodGuard
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPipeline constructs a Pipeline. flood may be nil in single-node test
// setups; the reservation step is skipped then. captcha may be nil when no
// verifier is configured; captcha-bound submissions are then rejected.
func NewPipeline(
	repo Repository,
	cfg *boards.Config,
	permsSvc *perms.Service,
	bansSvc *bans.Service,
	storage Storage,
	captcha Verifier,
	flood *FloodGuard,
	metrics *observability.Metrics,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		repo:    repo,
		cfg:     cfg,
		perms:   permsSvc,
		bans:    bansSvc,
		storage: storage,
		captcha: captcha,
		flood:   flood,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Admit runs the gates in order and either persists the post or explains
// the rejection. The returned error covers infrastructure failures only;
// policy failures are a Decision.
func (p *Pipeline) Admit(ctx context.Context, actor perms.Actor, board *boards.Board, sub Submission) (Decision, error) {
	decision, err := p.admit(ctx, actor, board, sub)
	if err == nil {
		p.metrics.RecordAdmission(board.URI, decision.Outcome.String())
	}
	return decision, err
}

func (p *Pipeline) admit(ctx context.Context, actor perms.Actor, board *boards.Board, sub Submission) (Decision, error) {
	// Gate 1: ban.
	ban, err := p.bans.FindActiveBan(ctx, sub.IP, board.URI)
	if err != nil {
		return Decision{}, err
	}
	if ban != nil {
		return banned(ban), nil
	}

	captchaRequired := p.cfg.BoardBool(board, boards.OptCaptchaEnabled, false) &&
		!p.perms.Resolve(ctx, actor, board.URI, perms.PermPostNoCaptcha)
	canAdminConfig := p.perms.Resolve(ctx, actor, board.URI, perms.PermSysConfig)

	// Gate 2: flood. Skipped for config admins and for captcha-bound
	// posters, whose throughput the captcha already limits.
	floodApplies := !canAdminConfig && !captchaRequired
	window := time.Duration(p.cfg.SiteInt(boards.OptPostFloodTime, 30)) * time.Second
	if floodApplies && window > 0 {
		last, err := p.repo.LastPostTime(ctx, sub.IP.String())
		if err != nil {
			return Decision{}, err
		}
		if !last.IsZero() {
			if elapsed := p.now().Sub(last); elapsed < window {
				return rejected(floodError(window - elapsed)), nil
			}
		}
	}

	// Gate 3: captcha. A verifier outage rejects, it never admits; the
	// same holds when no verifier is configured at all.
	if captchaRequired {
		if sub.CaptchaToken == "" || p.captcha == nil {
			return rejected(FieldError{Field: "captcha", Code: "captcha"}), nil
		}
		if err := p.captcha.Verify(ctx, sub.CaptchaToken, sub.IP.String()); err != nil {
			p.logger.Warn("captcha verification failed", slog.Any("error", err))
			return rejected(FieldError{Field: "captcha", Code: "captcha"}), nil
		}
	}

	// Gate 4: shape. All violations are reported together.
	sub.Body = norm.NFC.String(sub.Body)
	if errs := p.shapeErrors(ctx, actor, board, sub); len(errs) > 0 {
		return rejected(errs...), nil
	}

	// Gate 5: integrity. Each missing artifact is reported by index; the
	// stored size replaces whatever the client claimed.
	var integrity []FieldError
	for i := range sub.Attachments {
		att := &sub.Attachments[i]
		size, err := p.storage.Stat(ctx, att.Ref)
		if err != nil {
			integrity = append(integrity, FieldError{
				Field:  fmt.Sprintf("files.%d", i),
				Code:   "file_corrupt",
				Detail: att.Name,
			})
			continue
		}
		att.Size = size
	}
	if len(integrity) > 0 {
		return rejected(integrity...), nil
	}

	// Commit: the conditional reservation closes the race between two
	// submissions that both passed the flood gate.
	if floodApplies && window > 0 && p.flood != nil {
		ok, remaining, err := p.flood.Reserve(ctx, sub.IP.String(), window)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return rejected(floodError(remaining)), nil
		}
	}

	post := &Post{
		BoardURI:    board.URI,
		ThreadID:    sub.ThreadID,
		AuthorID:    actor.UserID,
		Subject:     strings.TrimSpace(sub.Subject),
		Name:        strings.TrimSpace(sub.Name),
		Body:        sub.Body,
		AuthorIP:    sub.IP,
		Attachments: sub.Attachments,
	}
	if sub.CapcodeRole != 0 {
		if snap, err := p.perms.Snapshot(ctx); err == nil {
			if capcode, ok := snap.Capcode(actor, sub.CapcodeRole); ok {
				post.Capcode = capcode
			}
		}
	}

	if err := p.repo.CreatePost(ctx, post); err != nil {
		if floodApplies && window > 0 && p.flood != nil {
			_ = p.flood.Release(ctx, sub.IP.String())
		}
		return Decision{}, err
	}

	p.logger.Info("post admitted",
		slog.Int64("post_id", post.ID),
		slog.String("board", board.URI),
		slog.Int("attachments", len(post.Attachments)))
	return admitted(post), nil
}

// shapeErrors validates body and attachment shape against board policy.
func (p *Pipeline) shapeErrors(ctx context.Context, actor perms.Actor, board *boards.Board, sub Submission) []FieldError {
	var errs []FieldError
	bodyLen := utf8.RuneCountInString(sub.Body)
	canAttach := p.perms.Resolve(ctx, actor, board.URI, perms.PermPostAttach)

	if !canAttach {
		if len(sub.Attachments) > 0 {
			errs = append(errs, FieldError{Field: "files", Code: "max:0"})
		}
		if sub.Body == "" {
			errs = append(errs, FieldError{Field: "body", Code: "required"})
		}
	} else if sub.Body == "" && len(sub.Attachments) == 0 {
		errs = append(errs, FieldError{Field: "body", Code: "required"})
	}

	if minLen := p.cfg.BoardInt(board, boards.OptPostMinLength, 0); minLen > 0 && sub.Body != "" && bodyLen < minLen {
		errs = append(errs, FieldError{Field: "body", Code: fmt.Sprintf("min:%d", minLen)})
	}
	if maxLen := p.cfg.BoardInt(board, boards.OptPostMaxLength, fallbackBodyMax); bodyLen > maxLen {
		errs = append(errs, FieldError{Field: "body", Code: fmt.Sprintf("max:%d", maxLen)})
	}

	if canAttach {
		if maxFiles := p.cfg.BoardInt(board, boards.OptPostAttachmentsMax, fallbackAttachments); len(sub.Attachments) > maxFiles {
			errs = append(errs, FieldError{Field: "files", Code: fmt.Sprintf("max:%d", maxFiles)})
		}
		sizeLimit := int64(p.cfg.SiteInt(boards.OptAttachmentFilesize, 1024)) * 1024
		for i, att := range sub.Attachments {
			if !allowedExtensions[extension(att.Name)] {
				errs = append(errs, FieldError{Field: fmt.Sprintf("files.%d", i), Code: "mimes", Detail: att.Name})
			}
			if att.Size > sizeLimit {
				errs = append(errs, FieldError{Field: fmt.Sprintf("files.%d", i), Code: "max", Detail: att.Name})
			}
		}
	}
	return errs
}

func floodError(remaining time.Duration) FieldError {
	secs := int(remaining.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return FieldError{Field: "body", Code: "post_flood", Detail: strconv.Itoa(secs)}
}

func extension(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
