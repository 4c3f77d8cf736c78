package boards

import (
	"context"
	"log/slog"
	"strings"

	"github.com/majestrate/infinity-next/internal/perms"
)

// Service orchestrates board lifecycle and configuration writes.
type Service struct {
	repo   Repository
	cfg    *Config
	perms  *perms.Service
	logger *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, cfg *Config, permsSvc *perms.Service, logger *slog.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, perms: permsSvc, logger: logger}
}

// Config exposes the option resolver.
func (s *Service) Config() *Config { return s.cfg }

// GetBoard fetches a board with its stored settings.
func (s *Service) GetBoard(ctx context.Context, uri string) (*Board, error) {
	return s.repo.GetBoard(ctx, strings.ToLower(uri))
}

// ListBoards returns boards, optionally only those shown on the index.
func (s *Service) ListBoards(ctx context.Context, indexedOnly bool) ([]Board, error) {
	return s.repo.ListBoards(ctx, indexedOnly)
}

// CreateInput carries the fields for a new board.
type CreateInput struct {
	URI         string
	Title       string
	Description string
	IsIndexed   bool
	IsWorksafe  bool
}

// CreateBoard validates and creates a board, its board-scoped owner role,
// and (for authenticated creators) the owner assignment.
func (s *Service) CreateBoard(ctx context.Context, actor perms.Actor, input CreateInput) (*Board, error) {
	uri := strings.ToLower(strings.TrimSpace(input.URI))
	if !ValidURI(uri) {
		return nil, ErrURIInvalid
	}
	for _, banned := range strings.FieldsFunc(s.cfg.SiteString(OptBoardUriBanned, ""), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n'
	}) {
		if uri == banned {
			return nil, ErrURIBanned
		}
	}

	board := Board{
		URI:         uri,
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   actor.UserID,
		OperatedBy:  actor.UserID,
		IsIndexed:   input.IsIndexed,
		IsWorksafe:  input.IsWorksafe,
	}
	created, err := s.repo.CreateBoard(ctx, board)
	if err != nil {
		return nil, err
	}

	ownerRole, err := s.perms.CreateBoardOwnerRole(ctx, uri)
	if err != nil {
		return nil, err
	}
	if !actor.Anonymous {
		if err := s.perms.AssignRole(ctx, actor.UserID, ownerRole.ID); err != nil {
			return nil, err
		}
	}
	return created, nil
}

// UpdateConfig validates and stores board option values. Rule violations
// are returned together; nothing is written when any value fails. After a
// successful write any stored cross-field inconsistency is flagged to
// operators rather than masked.
func (s *Service) UpdateConfig(ctx context.Context, board *Board, values map[string]string) ([]RuleError, error) {
	candidate := make(map[string]string, len(board.Settings)+len(values))
	for k, v := range board.Settings {
		candidate[k] = v
	}
	for k, v := range values {
		if v == "" {
			delete(candidate, k)
			continue
		}
		candidate[k] = v
	}

	siblings := func(name string) (string, bool) {
		v, ok := candidate[name]
		return v, ok
	}

	var errs []RuleError
	for name, raw := range values {
		opt, declared := s.cfg.Declared(name)
		if !declared || opt.Scope != ScopeBoard {
			errs = append(errs, RuleError{Option: name, Code: "undeclared"})
			continue
		}
		if raw == "" {
			continue
		}
		errs = append(errs, ValidateValue(opt, raw, siblings)...)
	}
	if len(errs) > 0 {
		return errs, nil
	}

	if err := s.repo.ReplaceSettings(ctx, board.URI, candidate); err != nil {
		return nil, err
	}
	board.Settings = candidate

	if leftover := s.cfg.Inconsistencies(board); len(leftover) > 0 && s.logger != nil {
		for _, inc := range leftover {
			s.logger.Warn("board config inconsistency",
				slog.String("board", board.URI),
				slog.String("option", inc.Option),
				slog.String("code", inc.Code))
		}
	}
	return nil, nil
}

// ReloadSiteSettings refreshes the sitewide option values from storage.
func (s *Service) ReloadSiteSettings(ctx context.Context) error {
	values, err := s.repo.SiteSettings(ctx)
	if err != nil {
		return err
	}
	s.cfg.PutSiteValues(values)
	return nil
}

// PutSiteSetting validates and stores one sitewide option value.
func (s *Service) PutSiteSetting(ctx context.Context, name, value string) ([]RuleError, error) {
	opt, declared := s.cfg.Declared(name)
	if !declared || opt.Scope != ScopeSite {
		return []RuleError{{Option: name, Code: "undeclared"}}, nil
	}
	if errs := ValidateValue(opt, value, nil); len(errs) > 0 {
		return errs, nil
	}
	if err := s.repo.PutSiteSetting(ctx, name, value); err != nil {
		return nil, err
	}
	return nil, s.ReloadSiteSettings(ctx)
}
