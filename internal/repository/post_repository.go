package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/instaflow/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	ListStaleScheduled(ctx context.Context, before time.Time, limit int) ([]*models.Post, error)
	MarkPublished(ctx context.Context, postID, instagramPostID string, publishedAt time.Time, errNote string) error
	MarkFailed(ctx context.Context, postID, errMsg string) error
	UpdateTwitterStatus(ctx context.Context, postID string, status models.TwitterStatus, twitterPostID, twitterURL, errMsg string) error
	ResetForRetry(ctx context.Context, postID string, userID int64) (bool, error)
	Stats(ctx context.Context, userID int64) (*models.PostStats, error)
	Remove(ctx context.Context, postID string, userID int64) (bool, error)
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, account_id, images, image_public_ids, caption, hashtags, thumbnail_url,
	media_type, scheduled_time, status, instagram_post_id, error, published_at, apply_watermark,
	share_to_twitter, twitter_status, twitter_post_id, twitter_url, twitter_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var post models.Post
	var publishedAt sql.NullTime
	err := row.Scan(
		&post.ID, &post.UserID, &post.AccountID,
		pq.Array(&post.Images), pq.Array(&post.ImagePublicIDs),
		&post.Caption, pq.Array(&post.Hashtags), &post.ThumbnailURL,
		&post.MediaType, &post.ScheduledTime, &post.Status, &post.InstagramPostID, &post.Error,
		&publishedAt, &post.ApplyWatermark, &post.ShareToTwitter,
		&post.TwitterStatus, &post.TwitterPostID, &post.TwitterURL, &post.TwitterError,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		post.PublishedAt = &t
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, account_id, images, image_public_ids, caption, hashtags,
			thumbnail_url, media_type, scheduled_time, status, apply_watermark, share_to_twitter)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		post.ID,
		post.UserID,
		post.AccountID,
		pq.Array(post.Images),
		pq.Array(post.ImagePublicIDs),
		post.Caption,
		pq.Array(post.Hashtags),
		post.ThumbnailURL,
		post.MediaType,
		post.ScheduledTime,
		post.Status,
		post.ApplyWatermark,
		post.ShareToTwitter,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, userID)
}

func (r *postRepository) ListStaleScheduled(ctx context.Context, before time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_time < $2 ORDER BY scheduled_time LIMIT $3`
	return r.list(ctx, query, models.PostStatusScheduled, before, limit)
}

func (r *postRepository) list(ctx context.Context, query string, args ...any) ([]*models.Post, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) MarkPublished(ctx context.Context, postID, instagramPostID string, publishedAt time.Time, errNote string) error {
	query := `
		UPDATE posts
		SET status = $1,
			instagram_post_id = $2,
			published_at = $3,
			error = $4,
			updated_at = $5
		WHERE id = $6
	`
	return r.exec(ctx, query, models.PostStatusPublished, instagramPostID, publishedAt, errNote, time.Now(), postID)
}

func (r *postRepository) MarkFailed(ctx context.Context, postID, errMsg string) error {
	query := `
		UPDATE posts
		SET status = $1,
			error = $2,
			updated_at = $3
		WHERE id = $4
	`
	return r.exec(ctx, query, models.PostStatusFailed, errMsg, time.Now(), postID)
}

func (r *postRepository) UpdateTwitterStatus(ctx context.Context, postID string, status models.TwitterStatus, twitterPostID, twitterURL, errMsg string) error {
	query := `
		UPDATE posts
		SET twitter_status = $1,
			twitter_post_id = $2,
			twitter_url = $3,
			twitter_error = $4,
			updated_at = $5
		WHERE id = $6
	`
	return r.exec(ctx, query, status, twitterPostID, twitterURL, errMsg, time.Now(), postID)
}

func (r *postRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected != 1 {
		return errors.New("no rows affected; post may not exist")
	}
	return nil
}

// ResetForRetry moves a FAILED post back to SCHEDULED so it can be enqueued again.
func (r *postRepository) ResetForRetry(ctx context.Context, postID string, userID int64) (bool, error) {
	query := `
		UPDATE posts
		SET status = $1,
			error = '',
			scheduled_time = $2,
			updated_at = $2
		WHERE id = $3 AND user_id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, models.PostStatusScheduled, time.Now(), postID, userID, models.PostStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) Stats(ctx context.Context, userID int64) (*models.PostStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE status = $3),
			COUNT(*) FILTER (WHERE status = $4)
		FROM posts
		WHERE user_id = $1
	`

	var stats models.PostStats
	err := r.db.QueryRowContext(ctx, query, userID,
		models.PostStatusScheduled, models.PostStatusPublished, models.PostStatusFailed,
	).Scan(&stats.Total, &stats.Scheduled, &stats.Published, &stats.Failed)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &stats, nil
}

// Remove deletes a post that has not been published yet.
func (r *postRepository) Remove(ctx context.Context, postID string, userID int64) (bool, error) {
	query := `DELETE FROM posts WHERE id = $1 AND user_id = $2 AND status <> $3`

	result, err := r.db.ExecContext(ctx, query, postID, userID, models.PostStatusPublished)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}
