package users

import (
	"context"
	"log/slog"
	"net/netip"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/majestrate/infinity-next/internal/perms"
)

// Classifier decides whether an anonymous address is unaccountable, e.g.
// a known proxy or Tor exit. Unaccountable posters get the reduced role.
type Classifier interface {
	IsUnaccountable(ctx context.Context, addr netip.Addr) bool
}

// CIDRClassifier marks addresses inside configured ranges as unaccountable.
type CIDRClassifier struct {
	prefixes []netip.Prefix
}

// NewCIDRClassifier parses a comma-separated CIDR list. Invalid entries
// are skipped.
func NewCIDRClassifier(ranges string) *CIDRClassifier {
	var prefixes []netip.Prefix
	for _, raw := range strings.Split(ranges, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if p, err := netip.ParsePrefix(raw); err == nil {
			prefixes = append(prefixes, p.Masked())
		}
	}
	return &CIDRClassifier{prefixes: prefixes}
}

var _ Classifier = (*CIDRClassifier)(nil)

// IsUnaccountable implements Classifier.
func (c *CIDRClassifier) IsUnaccountable(_ context.Context, addr netip.Addr) bool {
	for _, p := range c.prefixes {
		if p.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

// Service manages accounts and builds the permission actor for requests.
type Service struct {
	repo       Repository
	perms      *perms.Service
	classifier Classifier
	logger     *slog.Logger
}

// NewService constructs a Service. classifier may be nil; anonymous
// posters then never receive the unaccountable role.
func NewService(repo Repository, permsSvc *perms.Service, classifier Classifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, perms: permsSvc, classifier: classifier, logger: logger}
}

// RegisterInput carries the fields for a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Register creates an account with a bcrypt password hash.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	username := strings.TrimSpace(input.Username)
	if !ValidUsername(username) {
		return nil, ErrUsernameInvalid
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.Create(ctx, User{
		Username:     username,
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: string(hash),
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("username", user.Username))
	return user, nil
}

// GetByID fetches one account.
func (s *Service) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// ActorForUser builds the permission actor for an authenticated user from
// their assigned roles.
func (s *Service) ActorForUser(ctx context.Context, userID int64) (perms.Actor, error) {
	roles, err := s.perms.RolesForUser(ctx, userID)
	if err != nil {
		return perms.Actor{}, err
	}
	return perms.Actor{UserID: userID, Roles: roles}, nil
}

// AnonymousActor builds the actor for an unauthenticated request. The
// anonymous role always applies; unaccountable addresses additionally get
// the reduced proxy role.
func (s *Service) AnonymousActor(ctx context.Context, addr netip.Addr) perms.Actor {
	actor := perms.Actor{Anonymous: true}
	snap, err := s.perms.Snapshot(ctx)
	if err != nil {
		s.logger.Error("permission snapshot unavailable", slog.Any("error", err))
		return actor
	}
	if role, ok := snap.RoleByID(perms.RoleAnonymous); ok {
		actor.Roles = append(actor.Roles, role)
	}
	if s.classifier != nil && s.classifier.IsUnaccountable(ctx, addr) {
		if role, ok := snap.RoleByID(perms.RoleUnaccountable); ok {
			actor.Roles = append(actor.Roles, role)
		}
	}
	return actor
}
