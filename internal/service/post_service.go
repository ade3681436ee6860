package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const scheduledTimeLayout = "2006-01-02T15:04"

var (
	ErrPostNotFound    = errors.New("post doesn't exist")
	ErrPostNotRetry    = errors.New("only failed posts can be retried")
	ErrAccountNotFound = errors.New("social account doesn't exist")
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, time.Duration, error)
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID string, userID int64) (*models.Post, error)
	History(ctx context.Context, postID string, userID int64) ([]*models.PublishHistory, error)
	Remove(ctx context.Context, userID int64, postID string) error
	Stats(ctx context.Context, userID int64) (*models.PostStats, error)
	Retry(ctx context.Context, userID int64, postID string) (*models.Post, error)
}

type postService struct {
	pr  repository.PostRepository
	ac  repository.SocialAccountRepository
	ph  repository.PublishHistoryRepository
	now func() time.Time
}

func NewPostService(
	pr repository.PostRepository,
	ac repository.SocialAccountRepository,
	ph repository.PublishHistoryRepository) PostService {
	return &postService{
		pr:  pr,
		ac:  ac,
		ph:  ph,
		now: time.Now,
	}
}

// CreatePost stores a SCHEDULED post and returns how long the publish task
// should wait. Enqueueing is left to the caller.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.Post, time.Duration, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return nil, 0, err
	}
	if userID == 0 {
		err := errors.New("user is not valid")
		slog.Info(err.Error())
		return nil, 0, err
	}

	images := compact(pc.Images)
	if len(images) == 0 {
		err := errors.New("no media provided for the post")
		slog.Info(err.Error())
		return nil, 0, err
	}
	if len(pc.ImagePublicIDs) > 0 && len(pc.ImagePublicIDs) != len(images) {
		err := fmt.Errorf("expected %d image public ids, got %d", len(images), len(pc.ImagePublicIDs))
		slog.Info(err.Error())
		return nil, 0, err
	}

	mediaType, err := resolveMediaType(pc.MediaType, images)
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	now := s.now()
	scheduledTime, err := parseScheduledTime(pc.ScheduledTime, now)
	if err != nil {
		slog.Info(err.Error())
		return nil, 0, err
	}

	account, err := s.ac.GetByID(ctx, pc.AccountID)
	if err != nil {
		return nil, 0, fmt.Errorf("error getting social account: %w", err)
	}
	if account == nil || account.UserID != userID {
		slog.Info(ErrAccountNotFound.Error(), "account_id", pc.AccountID, "user_id", userID)
		return nil, 0, ErrAccountNotFound
	}
	if !account.IsActive() {
		err := errors.New("social account is disconnected")
		slog.Info(err.Error(), "account_id", pc.AccountID)
		return nil, 0, err
	}

	postID, err := gonanoid.New()
	if err != nil {
		return nil, 0, fmt.Errorf("error generating post id: %w", err)
	}

	post := &models.Post{
		ID:             postID,
		UserID:         userID,
		AccountID:      account.ID,
		Images:         images,
		ImagePublicIDs: pc.ImagePublicIDs,
		Caption:        pc.Caption,
		Hashtags:       pc.Hashtags,
		ThumbnailURL:   pc.ThumbnailURL,
		MediaType:      mediaType,
		ScheduledTime:  scheduledTime,
		Status:         models.PostStatusScheduled,
		ApplyWatermark: pc.ApplyWatermark,
		ShareToTwitter: pc.ShareToTwitter,
	}
	if post.ImagePublicIDs == nil {
		post.ImagePublicIDs = []string{}
	}
	if post.Hashtags == nil {
		post.Hashtags = []string{}
	}

	if err := s.pr.Create(ctx, post); err != nil {
		return nil, 0, fmt.Errorf("error creating post: %w", err)
	}

	delay := scheduledTime.Sub(now)
	if delay < 0 {
		delay = 0
	}

	return post, delay, nil
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// resolveMediaType honours an explicit type and otherwise infers one from the
// media URLs: any video makes the post a reel, several images a carousel.
func resolveMediaType(requested string, images []string) (models.MediaType, error) {
	if requested != "" {
		mt := models.MediaType(strings.ToUpper(requested))
		if !mt.Valid() {
			return "", fmt.Errorf("unsupported media type %q", requested)
		}
		return mt, nil
	}

	for _, image := range images {
		if isVideoURL(image) {
			return models.MediaTypeReels, nil
		}
	}
	if len(images) > 1 {
		return models.MediaTypeCarousel, nil
	}
	return models.MediaTypeImage, nil
}

func isVideoURL(rawURL string) bool {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(rawURL)), ".")
	if ext == "" {
		return false
	}
	return filetype.GetType(ext).MIME.Type == "video"
}

func parseScheduledTime(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return now, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(scheduledTimeLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid scheduled time format: %w", err)
	}
	return t, nil
}

func (s *postService) PostInfo(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	var err error

	if userID == 0 {
		err = errors.New("user is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	if postID == "" {
		err = errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting post info: %w", err)
	}
	if post == nil || post.UserID != userID {
		slog.Info(ErrPostNotFound.Error(), "post_id", postID)
		return nil, ErrPostNotFound
	}

	return post, nil
}

// History lists the worker attempts recorded for a post, oldest first.
func (s *postService) History(ctx context.Context, postID string, userID int64) ([]*models.PublishHistory, error) {
	if _, err := s.PostInfo(ctx, postID, userID); err != nil {
		return nil, err
	}

	history, err := s.ph.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("error getting publish history: %w", err)
	}
	if history == nil {
		history = []*models.PublishHistory{}
	}
	return history, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting posts: %w", err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return posts, nil
}

func (s *postService) Stats(ctx context.Context, userID int64) (*models.PostStats, error) {
	stats, err := s.pr.Stats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting post stats: %w", err)
	}
	return stats, nil
}

// Remove deletes a post that has not been published. A pending publish task
// for it finds no post and stops without retrying.
func (s *postService) Remove(ctx context.Context, userID int64, postID string) error {
	var err error

	if userID == 0 {
		err = errors.New("user is not valid")
		slog.Info(err.Error())
		return err
	}

	if postID == "" {
		err = errors.New("post_id is not valid")
		slog.Info(err.Error())
		return err
	}

	removed, err := s.pr.Remove(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("error removing post: %w", err)
	}
	if !removed {
		err = errors.New("post doesn't exist or is already published")
		slog.Info(err.Error(), "post_id", postID)
		return err
	}

	return nil
}

// Retry moves a FAILED post back to SCHEDULED for immediate publishing.
func (s *postService) Retry(ctx context.Context, userID int64, postID string) (*models.Post, error) {
	post, err := s.PostInfo(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if post.Status != models.PostStatusFailed {
		return nil, ErrPostNotRetry
	}

	ok, err := s.pr.ResetForRetry(ctx, postID, userID)
	if err != nil {
		return nil, fmt.Errorf("error resetting post: %w", err)
	}
	if !ok {
		return nil, ErrPostNotRetry
	}

	post.Status = models.PostStatusScheduled
	post.Error = ""
	return post, nil
}
