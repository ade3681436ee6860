package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var postRowColumns = []string{
	"id", "user_id", "account_id", "images", "image_public_ids", "caption", "hashtags", "thumbnail_url",
	"media_type", "scheduled_time", "status", "instagram_post_id", "error", "published_at", "apply_watermark",
	"share_to_twitter", "twitter_status", "twitter_post_id", "twitter_url", "twitter_error", "created_at", "updated_at",
}

func TestNewPostRepository(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	require.NotNil(t, repo)
}

func TestPostRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	now := time.Now()
	post := &models.Post{
		ID:             "V1StGXR8_Z5jdHi6B-myT",
		UserID:         7,
		AccountID:      3,
		Images:         []string{"https://img/1.jpg", "https://img/2.jpg"},
		ImagePublicIDs: []string{"posts/1", "posts/2"},
		Caption:        "two rooms",
		MediaType:      models.MediaTypeCarousel,
		ScheduledTime:  now,
		Status:         models.PostStatusScheduled,
	}

	mock.ExpectQuery("INSERT INTO posts").
		WithArgs(post.ID, int64(7), int64(3), sqlmock.AnyArg(), sqlmock.AnyArg(), "two rooms", sqlmock.AnyArg(),
			"", "CAROUSEL", now, "SCHEDULED", false, false).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	err = repo.Create(context.Background(), post)
	require.NoError(t, err)
	assert.Equal(t, now, post.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID_Found(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM posts WHERE id = \\$1").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(postRowColumns).AddRow(
			"p1", 7, 3, "{https://img/1.jpg,https://img/2.jpg}", "{posts/1,posts/2}", "hi", "{#home,#rent}", "",
			"CAROUSEL", now, "SCHEDULED", "", "", nil, true,
			false, "", "", "", "", now, now,
		))

	post, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, []string{"https://img/1.jpg", "https://img/2.jpg"}, post.Images)
	assert.Equal(t, []string{"posts/1", "posts/2"}, post.ImagePublicIDs)
	assert.Equal(t, []string{"#home", "#rent"}, post.Hashtags)
	assert.Equal(t, models.MediaTypeCarousel, post.MediaType)
	assert.Equal(t, models.PostStatusScheduled, post.Status)
	assert.True(t, post.ApplyWatermark)
	assert.Nil(t, post.PublishedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_GetByID_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM posts WHERE id = \\$1").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	post, err := repo.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, post)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_MarkPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	publishedAt := time.Now()

	mock.ExpectExec("UPDATE posts").
		WithArgs("PUBLISHED", "1790001", publishedAt, "Recovered from error: boom", sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.MarkPublished(context.Background(), "p1", "1790001", publishedAt, "Recovered from error: boom")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_MarkFailed_NoRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)

	mock.ExpectExec("UPDATE posts").
		WithArgs("FAILED", "timeout", sqlmock.AnyArg(), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.MarkFailed(context.Background(), "gone", "timeout")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_UpdateTwitterStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)

	mock.ExpectExec("UPDATE posts").
		WithArgs("FAILED", "", "", "rate limited", sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpdateTwitterStatus(context.Background(), "p1", models.TwitterStatusFailed, "", "", "rate limited")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ResetForRetry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)

	mock.ExpectExec("UPDATE posts").
		WithArgs("SCHEDULED", sqlmock.AnyArg(), "p1", int64(7), "FAILED").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.ResetForRetry(context.Background(), "p1", 7)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM posts").
		WithArgs(int64(7), "SCHEDULED", "PUBLISHED", "FAILED").
		WillReturnRows(sqlmock.NewRows([]string{"total", "scheduled", "published", "failed"}).AddRow(10, 3, 6, 1))

	stats, err := repo.Stats(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, &models.PostStats{Total: 10, Scheduled: 3, Published: 6, Failed: 1}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_Remove(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)

	mock.ExpectExec("DELETE FROM posts").
		WithArgs("p1", int64(7), "PUBLISHED").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Remove(context.Background(), "p1", 7)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ListStaleScheduled_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewPostRepository(db)
	before := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM posts WHERE status").
		WithArgs("SCHEDULED", before, 50).
		WillReturnError(errors.New("connection reset"))

	posts, err := repo.ListStaleScheduled(context.Background(), before, 50)
	assert.Error(t, err)
	assert.Nil(t, posts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
