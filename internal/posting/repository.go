package posting

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/majestrate/infinity-next/internal/platform/db"
)

// Repository defines persistence operations for posts.
type Repository interface {
	// CreatePost persists the post and its attachments in one transaction.
	CreatePost(ctx context.Context, post *Post) error
	// LastPostTime returns the newest post time for the address, or the
	// zero time when the address has never posted.
	LastPostTime(ctx context.Context, ip string) (time.Time, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

// CreatePost inserts the post row and its attachment rows atomically. A
// cancelled context rolls back, leaving no partial post behind.
func (r *PGRepository) CreatePost(ctx context.Context, post *Post) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO posts (board_uri, thread_id, author_id, subject, name, body, capcode, author_ip, created_at)
			VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6, $7, $8, now())
			RETURNING id, created_at`,
			post.BoardURI, post.ThreadID, post.AuthorID, post.Subject, post.Name, post.Body, post.Capcode, post.AuthorIP.String()).
			Scan(&post.ID, &post.CreatedAt)
		if err != nil {
			return err
		}

		for _, att := range post.Attachments {
			if _, err := tx.Exec(ctx, `
				INSERT INTO post_attachments (post_id, ref, file_name, file_size)
				VALUES ($1, $2, $3, $4)`,
				post.ID, att.Ref, att.Name, att.Size); err != nil {
				return err
			}
		}
		return nil
	})
}

// LastPostTime reads the newest post time for the address.
func (r *PGRepository) LastPostTime(ctx context.Context, ip string) (time.Time, error) {
	var at time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT created_at FROM posts WHERE author_ip = $1
		ORDER BY created_at DESC LIMIT 1`, ip).Scan(&at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return at, nil
}
