package bans

import (
	"context"
	"log/slog"
	"net/netip"
	"sort"
	"strings"
	"time"

	"github.com/majestrate/infinity-next/internal/boards"
	"github.com/majestrate/infinity-next/internal/perms"
)

// Service enforces ban policy: precedence between overlapping ranges,
// sitewide length caps and the subnet-ban switch.
type Service struct {
	repo   Repository
	cfg    *boards.Config
	perms  *perms.Service
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, cfg *boards.Config, permsSvc *perms.Service, logger *slog.Logger) *Service {
	return &Service{repo: repo, cfg: cfg, perms: permsSvc, logger: logger, now: time.Now}
}

// FindActiveBan returns the ban in force for the address on the board, or
// nil. When several ranges match, the most specific prefix wins; on equal
// prefix length a board-scoped ban beats a sitewide one, then the newest.
func (s *Service) FindActiveBan(ctx context.Context, ip netip.Addr, boardURI string) (*Ban, error) {
	candidates, err := s.repo.ActiveCandidates(ctx, boardURI, s.now())
	if err != nil {
		return nil, err
	}

	var matched []Ban
	for _, b := range candidates {
		if b.Matches(ip) {
			matched = append(matched, b)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.Prefix.Bits() != b.Prefix.Bits() {
			return a.Prefix.Bits() > b.Prefix.Bits()
		}
		aScoped, bScoped := a.BoardURI != "", b.BoardURI != ""
		if aScoped != bScoped {
			return aScoped
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
	return &matched[0], nil
}

// CreateInput carries the fields for a new ban.
type CreateInput struct {
	Target   string
	BoardURI string
	Reason   string
	Days     int
}

// Create validates and stores a ban issued by the actor. Zero or negative
// days means permanent, subject to the sitewide banMaxLength cap. Custom
// reasons require the ban.reason grant on the target board.
func (s *Service) Create(ctx context.Context, actor perms.Actor, input CreateInput) (*Ban, error) {
	prefix, err := ParseTarget(strings.TrimSpace(input.Target))
	if err != nil {
		return nil, err
	}
	if !prefix.IsSingleIP() && !s.cfg.SiteBool(boards.OptBanSubnets, true) {
		return nil, ErrSubnetsDisabled
	}

	// A non-positive banMaxLength disables the cap; otherwise both overly
	// long and permanent bans are rejected.
	days := input.Days
	if maxDays := s.cfg.SiteInt(boards.OptBanMaxLength, 30); maxDays > 0 {
		if days <= 0 || days > maxDays {
			return nil, ErrTooLong
		}
	}

	reason := strings.TrimSpace(input.Reason)
	if reason != "" {
		if ok := s.perms.Resolve(ctx, actor, input.BoardURI, perms.PermBanReason); !ok {
			return nil, ErrReasonNotAllowed
		}
	}

	ban := Ban{
		Prefix:    prefix,
		BoardURI:  strings.ToLower(input.BoardURI),
		Reason:    reason,
		CreatedBy: actor.UserID,
	}
	if days > 0 {
		expires := s.now().Add(time.Duration(days) * 24 * time.Hour)
		ban.ExpiresAt = &expires
	}

	created, err := s.repo.Create(ctx, ban)
	if err != nil {
		return nil, err
	}
	s.logger.Info("ban created",
		slog.Int64("ban_id", created.ID),
		slog.String("cidr", created.Prefix.String()),
		slog.String("board", created.BoardURI),
		slog.Int64("by", actor.UserID))
	return created, nil
}

// Lift marks a ban as no longer in force.
func (s *Service) Lift(ctx context.Context, actor perms.Actor, id int64) error {
	ban, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Lift(ctx, id, s.now()); err != nil {
		return err
	}
	s.logger.Info("ban lifted",
		slog.Int64("ban_id", ban.ID),
		slog.String("cidr", ban.Prefix.String()),
		slog.Int64("by", actor.UserID))
	return nil
}

// Get fetches one ban.
func (s *Service) Get(ctx context.Context, id int64) (*Ban, error) {
	return s.repo.Get(ctx, id)
}

// SweepExpired removes bans past their expiry. Run from the job worker.
func (s *Service) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired bans swept", slog.Int64("count", n))
	}
	return n, nil
}
