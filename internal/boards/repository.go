package boards

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/majestrate/infinity-next/internal/platform/db"
)

// Repository defines persistence operations for boards and option values.
type Repository interface {
	GetBoard(ctx context.Context, uri string) (*Board, error)
	ListBoards(ctx context.Context, indexedOnly bool) ([]Board, error)
	CreateBoard(ctx context.Context, board Board) (*Board, error)
	ReplaceSettings(ctx context.Context, boardURI string, values map[string]string) error
	SiteSettings(ctx context.Context) (map[string]string, error)
	PutSiteSetting(ctx context.Context, name, value string) error
}

// PGRepository implements Repository using PostgreSQL. Board option
// overrides live in settings rows keyed by (board_uri, option_name);
// sitewide values use a NULL board_uri.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// GetBoard fetches a board and its stored settings.
func (r *PGRepository) GetBoard(ctx context.Context, uri string) (*Board, error) {
	var b Board
	err := r.pool.QueryRow(ctx, `
		SELECT board_uri, title, description, created_by, operated_by, is_indexed, is_worksafe, created_at, updated_at
		FROM boards WHERE board_uri = $1`, uri).
		Scan(&b.URI, &b.Title, &b.Description, &b.CreatedBy, &b.OperatedBy, &b.IsIndexed, &b.IsWorksafe, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT option_name, value FROM settings WHERE board_uri = $1`, uri)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	b.Settings = make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		b.Settings[name] = value
	}
	return &b, rows.Err()
}

// ListBoards returns boards ordered by URI.
func (r *PGRepository) ListBoards(ctx context.Context, indexedOnly bool) ([]Board, error) {
	query := `SELECT board_uri, title, description, created_by, operated_by, is_indexed, is_worksafe, created_at, updated_at FROM boards`
	if indexedOnly {
		query += ` WHERE is_indexed`
	}
	query += ` ORDER BY board_uri`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Board
	for rows.Next() {
		var b Board
		if err := rows.Scan(&b.URI, &b.Title, &b.Description, &b.CreatedBy, &b.OperatedBy, &b.IsIndexed, &b.IsWorksafe, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// CreateBoard inserts a new board row.
func (r *PGRepository) CreateBoard(ctx context.Context, board Board) (*Board, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO boards (board_uri, title, description, created_by, operated_by, is_indexed, is_worksafe, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING created_at, updated_at`,
		board.URI, board.Title, board.Description, board.CreatedBy, board.OperatedBy, board.IsIndexed, board.IsWorksafe).
		Scan(&board.CreatedAt, &board.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrURITaken
		}
		return nil, err
	}
	board.Settings = map[string]string{}
	return &board, nil
}

// ReplaceSettings atomically replaces a board's stored option values.
// A single transaction keeps partially written settings invisible.
func (r *PGRepository) ReplaceSettings(ctx context.Context, boardURI string, values map[string]string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM settings WHERE board_uri = $1`, boardURI); err != nil {
			return err
		}
		for name, value := range values {
			if _, err := tx.Exec(ctx, `
				INSERT INTO settings (board_uri, option_name, value) VALUES ($1, $2, $3)`,
				boardURI, name, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// SiteSettings returns the stored sitewide option values.
func (r *PGRepository) SiteSettings(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT option_name, value FROM settings WHERE board_uri IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// PutSiteSetting upserts one sitewide option value.
func (r *PGRepository) PutSiteSetting(ctx context.Context, name, value string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO settings (board_uri, option_name, value) VALUES (NULL, $1, $2)
		ON CONFLICT (board_uri, option_name) DO UPDATE SET value = EXCLUDED.value`,
		name, value)
	return err
}
