package bans

import (
	"context"
	"errors"
	"net/netip"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines persistence operations for bans.
type Repository interface {
	Create(ctx context.Context, ban Ban) (*Ban, error)
	Get(ctx context.Context, id int64) (*Ban, error)
	// ActiveCandidates returns unexpired, unlifted bans scoped to the board
	// or sitewide. Prefix matching against the client address happens in
	// the service, the set per board is small.
	ActiveCandidates(ctx context.Context, boardURI string, now time.Time) ([]Ban, error)
	Lift(ctx context.Context, id int64, at time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PGRepository implements Repository using PostgreSQL. The banned range is
// stored as CIDR text and parsed on read.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const banColumns = `id, cidr, COALESCE(board_uri, ''), reason, created_by, created_at, expires_at, lifted_at`

func scanBan(row pgx.Row) (*Ban, error) {
	var b Ban
	var cidr string
	if err := row.Scan(&b.ID, &cidr, &b.BoardURI, &b.Reason, &b.CreatedBy, &b.CreatedAt, &b.ExpiresAt, &b.LiftedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return nil, err
	}
	b.Prefix = prefix
	return &b, nil
}

// Create inserts a ban row.
func (r *PGRepository) Create(ctx context.Context, ban Ban) (*Ban, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bans (cidr, board_uri, reason, created_by, created_at, expires_at)
		VALUES ($1, NULLIF($2, ''), $3, $4, now(), $5)
		RETURNING id, created_at`,
		ban.Prefix.String(), ban.BoardURI, ban.Reason, ban.CreatedBy, ban.ExpiresAt).
		Scan(&ban.ID, &ban.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ban, nil
}

// Get fetches one ban by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (*Ban, error) {
	return scanBan(r.pool.QueryRow(ctx, `SELECT `+banColumns+` FROM bans WHERE id = $1`, id))
}

// ActiveCandidates returns in-force bans for the board plus sitewide ones.
func (r *PGRepository) ActiveCandidates(ctx context.Context, boardURI string, now time.Time) ([]Ban, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+banColumns+` FROM bans
		WHERE (board_uri = $1 OR board_uri IS NULL)
		  AND lifted_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC, id DESC`, boardURI, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ban
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// Lift marks a ban as lifted without deleting the audit trail.
func (r *PGRepository) Lift(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE bans SET lifted_at = $2 WHERE id = $1 AND lifted_at IS NULL`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteExpired removes bans whose expiry has passed.
func (r *PGRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bans WHERE expires_at IS NOT NULL AND expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
