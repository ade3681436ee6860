package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/internal/transfer"
)

var (
	ErrPostNotFound     = errors.New("post not found")
	ErrAccountInactive  = errors.New("instagram account not found or inactive")
	ErrTokenDecrypt     = errors.New("unable to decrypt access token")
	ErrNoMedia          = errors.New("no media found for post")
	ErrContainerFailed  = errors.New("container failed")
	ErrContainerTimeout = errors.New("container processing timeout")
)

const recoveredPrefix = "Recovered from error: "

// IsFatal reports errors that no retry can fix.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPostNotFound) ||
		errors.Is(err, ErrAccountInactive) ||
		errors.Is(err, ErrTokenDecrypt) ||
		errors.Is(err, ErrNoMedia)
}

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload SchedulePostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	err := q.PublishPost(ctx, payload)
	if err != nil && IsFatal(err) {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}

// attempt carries what one run has loaded so far. Verification needs both the
// account and the decrypted token.
type attempt struct {
	post        *models.Post
	account     *models.SocialAccount
	accessToken string
}

// PublishPost runs one attempt for a post: SCHEDULED -> PUBLISHED | FAILED.
// A post that is already PUBLISHED is left untouched.
func (q *Queue) PublishPost(ctx context.Context, payload SchedulePostPayload) error {
	post, err := q.pr.GetByID(ctx, payload.PostID)
	if err != nil {
		return fmt.Errorf("error loading post %s: %w", payload.PostID, err)
	}
	if post == nil || (payload.UserID != 0 && post.UserID != payload.UserID) {
		slog.Error("post not found", "post_id", payload.PostID, "user_id", payload.UserID)
		return fmt.Errorf("%w: %s", ErrPostNotFound, payload.PostID)
	}

	if post.Status == models.PostStatusPublished {
		slog.Info("post already published, skipping", "post_id", post.ID)
		return nil
	}

	at := &attempt{post: post}

	if err := q.load(ctx, at); err != nil {
		return q.handleFailure(ctx, at, err)
	}

	if q.isRerun(post) {
		match, err := q.findEarlierPublish(ctx, at)
		if err != nil {
			return q.handleFailure(ctx, at, err)
		}
		if match != nil {
			slog.Warn("post already live on instagram, not publishing again", "post_id", post.ID, "media_id", match.ID)
			q.complete(ctx, at, match.ID, q.mediaTime(match), models.PublishOutcomeRecovered)
			return nil
		}
	}

	mediaID, err := q.publish(ctx, at)
	if err != nil {
		return q.handleFailure(ctx, at, err)
	}

	q.complete(ctx, at, mediaID, q.now(), models.PublishOutcomePublished)
	return nil
}

// complete records a live media and fans out to twitter. A store failure
// here is logged, not returned: the post stays SCHEDULED and a later run
// finds the media through findEarlierPublish instead of publishing again.
func (q *Queue) complete(ctx context.Context, at *attempt, mediaID string, publishedAt time.Time, outcome string) {
	post := at.post

	if err := q.markPublished(ctx, post.ID, mediaID, publishedAt, ""); err != nil {
		slog.Error("unable to mark post published", "post_id", post.ID, "media_id", mediaID, "error", err)
		return
	}
	q.recordHistory(ctx, at, outcome, "")
	slog.Info("post published to instagram", "post_id", post.ID, "media_id", mediaID, "outcome", outcome)

	if post.ShareToTwitter {
		q.shareToTwitter(ctx, post)
	}
}

func (q *Queue) markPublished(ctx context.Context, postID, mediaID string, publishedAt time.Time, note string) error {
	backoff := markPublishedBackoff

	var err error
	for i := 0; i < markPublishedAttempts; i++ {
		if err = q.pr.MarkPublished(ctx, postID, mediaID, publishedAt, note); err == nil {
			return nil
		}
		if i == markPublishedAttempts-1 {
			break
		}
		slog.Warn("retrying mark published", "post_id", postID, "attempt", i+1, "error", err)
		if serr := q.sleep(ctx, backoff); serr != nil {
			return err
		}
		backoff *= 2
	}
	return err
}

// isRerun reports a run that starts well after the post was due, which is
// how the stale post job redelivers work.
func (q *Queue) isRerun(post *models.Post) bool {
	if post.ScheduledTime.IsZero() {
		return false
	}
	return q.now().Sub(post.ScheduledTime) > RerunAfter
}

// findEarlierPublish looks for media with the post's caption created no
// earlier than the post was due.
func (q *Queue) findEarlierPublish(ctx context.Context, at *attempt) (*transfer.InstagramMedia, error) {
	media, err := q.ig.ListRecentMedia(ctx, at.accessToken, at.account.AccountID, VerificationLimit)
	if err != nil {
		return nil, err
	}

	due := at.post.ScheduledTime.Add(-scheduleSkew)
	for i := range media {
		m := media[i]
		if m.Caption != at.post.Caption {
			continue
		}
		ts, err := service.ParseGraphTime(m.Timestamp)
		if err != nil {
			continue
		}
		if !ts.Before(due) {
			return &m, nil
		}
	}
	return nil, nil
}

func (q *Queue) mediaTime(m *transfer.InstagramMedia) time.Time {
	if ts, err := service.ParseGraphTime(m.Timestamp); err == nil {
		return ts
	}
	return q.now()
}

func (q *Queue) load(ctx context.Context, at *attempt) error {
	post := at.post

	account, err := q.ac.GetByID(ctx, post.AccountID)
	if err != nil {
		return fmt.Errorf("error loading account %d: %w", post.AccountID, err)
	}
	if account == nil || !account.IsActive() {
		return ErrAccountInactive
	}
	at.account = account

	accessToken, err := q.codec.Decrypt(account.AccessToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenDecrypt, err)
	}
	at.accessToken = accessToken
	return nil
}

func (q *Queue) publish(ctx context.Context, at *attempt) (string, error) {
	post := at.post
	igUserID := at.account.AccountID

	switch {
	case post.MediaType.IsVideo():
		return q.publishVideo(ctx, at, igUserID)
	case len(post.Images) > 1:
		return q.publishCarousel(ctx, at, igUserID)
	default:
		return q.publishImage(ctx, at, igUserID)
	}
}

func (q *Queue) publishVideo(ctx context.Context, at *attempt, igUserID string) (string, error) {
	post := at.post
	if len(post.Images) == 0 || post.Images[0] == "" {
		return "", ErrNoMedia
	}

	containerID, err := q.ig.CreateVideoContainer(ctx, at.accessToken, igUserID, post.Images[0], post.Caption, post.ThumbnailURL)
	if err != nil {
		return "", err
	}

	if err := q.waitForContainer(ctx, at.accessToken, containerID, "video", q.VideoPoll); err != nil {
		return "", err
	}

	return q.ig.PublishMedia(ctx, at.accessToken, igUserID, containerID)
}

// publishCarousel creates the children one by one so the carousel keeps the
// order of post.Images.
func (q *Queue) publishCarousel(ctx context.Context, at *attempt, igUserID string) (string, error) {
	post := at.post

	childIDs := make([]string, 0, len(post.Images))
	for i, image := range post.Images {
		imageURL := q.resolve(at, image, i)
		childID, err := q.ig.CreateMediaContainer(ctx, at.accessToken, igUserID, imageURL, "", true)
		if err != nil {
			return "", fmt.Errorf("error creating carousel item %d: %w", i, err)
		}
		childIDs = append(childIDs, childID)
	}

	containerID, err := q.ig.CreateCarouselContainer(ctx, at.accessToken, igUserID, childIDs, post.Caption)
	if err != nil {
		return "", err
	}

	if err := q.waitForContainer(ctx, at.accessToken, containerID, "carousel", q.ImagePoll); err != nil {
		return "", err
	}

	return q.ig.PublishMedia(ctx, at.accessToken, igUserID, containerID)
}

func (q *Queue) publishImage(ctx context.Context, at *attempt, igUserID string) (string, error) {
	post := at.post
	if len(post.Images) == 0 || post.Images[0] == "" {
		return "", ErrNoMedia
	}

	imageURL := q.resolve(at, post.Images[0], 0)
	containerID, err := q.ig.CreateMediaContainer(ctx, at.accessToken, igUserID, imageURL, post.Caption, false)
	if err != nil {
		return "", err
	}

	if err := q.waitForContainer(ctx, at.accessToken, containerID, "media", q.ImagePoll); err != nil {
		return "", err
	}

	return q.ig.PublishMedia(ctx, at.accessToken, igUserID, containerID)
}

func (q *Queue) resolve(at *attempt, imageURL string, index int) string {
	var publicID string
	if index < len(at.post.ImagePublicIDs) {
		publicID = at.post.ImagePublicIDs[index]
	}
	return q.mr.Resolve(imageURL, publicID, at.post.ApplyWatermark, at.account.Watermark)
}

func (q *Queue) waitForContainer(ctx context.Context, accessToken, containerID, kind string, policy PollPolicy) error {
	for i := 0; i < policy.Attempts; i++ {
		status, err := q.ig.CheckContainerStatus(ctx, accessToken, containerID)
		if err != nil {
			return err
		}

		switch status.StatusCode {
		case transfer.ContainerFinished:
			return nil
		case transfer.ContainerError, transfer.ContainerExpired:
			return fmt.Errorf("%s %w: %s", kind, ErrContainerFailed, status.Status)
		}

		if err := q.sleep(ctx, policy.Interval); err != nil {
			return err
		}
	}

	slog.Warn("container not ready before poll ceiling", "container_id", containerID, "kind", kind,
		"attempts", policy.Attempts, "interval", policy.Interval)
	return fmt.Errorf("%s %w", kind, ErrContainerTimeout)
}

func (q *Queue) handleFailure(ctx context.Context, at *attempt, cause error) error {
	post := at.post
	detail := service.ErrorDetail(cause)

	slog.Error("failed to publish post", "post_id", post.ID, "fatal", IsFatal(cause),
		"timeout", errors.Is(cause, ErrContainerTimeout), "rate_limited", service.IsRateLimited(cause),
		"error", detail)

	if at.accessToken != "" && !IsFatal(cause) {
		if match := q.verify(ctx, at); match != nil {
			note := recoveredPrefix + detail
			if err := q.markPublished(ctx, post.ID, match.ID, q.mediaTime(match), note); err != nil {
				slog.Error("unable to mark recovered post published", "post_id", post.ID, "error", err)
				return cause
			}
			q.recordHistory(ctx, at, models.PublishOutcomeRecovered, detail)

			slog.Info("post found on instagram despite error", "post_id", post.ID, "media_id", match.ID)
			return nil
		}
	}

	if err := q.pr.MarkFailed(ctx, post.ID, detail); err != nil {
		slog.Error("unable to mark post failed", "post_id", post.ID, "error", err)
	}
	q.recordHistory(ctx, at, models.PublishOutcomeFailed, detail)

	return cause
}

// verify looks for the post among the account's latest media. It matches on
// the exact caption published within VerificationWindow.
func (q *Queue) verify(ctx context.Context, at *attempt) *transfer.InstagramMedia {
	if err := q.sleep(ctx, q.VerifyDelay); err != nil {
		return nil
	}

	media, err := q.ig.ListRecentMedia(ctx, at.accessToken, at.account.AccountID, VerificationLimit)
	if err != nil {
		slog.Error("verification failed", "post_id", at.post.ID, "error", service.ErrorDetail(err))
		return nil
	}

	now := q.now()
	for i := range media {
		m := media[i]
		if m.Caption != at.post.Caption {
			continue
		}
		ts, err := service.ParseGraphTime(m.Timestamp)
		if err != nil {
			continue
		}
		if now.Sub(ts) < VerificationWindow {
			return &m
		}
	}
	return nil
}

func (q *Queue) shareToTwitter(ctx context.Context, post *models.Post) {
	slog.Info("sharing post to twitter", "post_id", post.ID)

	result, err := q.tw.Share(ctx, post)
	if err != nil {
		slog.Error("twitter posting failed", "post_id", post.ID, "error", err)
		if err := q.pr.UpdateTwitterStatus(ctx, post.ID, models.TwitterStatusFailed, "", "", err.Error()); err != nil {
			slog.Error("unable to record twitter failure", "post_id", post.ID, "error", err)
		}
		return
	}

	if err := q.pr.UpdateTwitterStatus(ctx, post.ID, models.TwitterStatusPosted, result.PostID, result.URL, ""); err != nil {
		slog.Error("unable to record twitter post", "post_id", post.ID, "error", err)
		return
	}
	slog.Info("post shared to twitter", "post_id", post.ID, "url", result.URL)
}

func (q *Queue) recordHistory(ctx context.Context, at *attempt, outcome, errMsg string) {
	history := models.PublishHistory{
		UserID:       at.post.UserID,
		PostID:       at.post.ID,
		AccountID:    at.post.AccountID,
		Outcome:      outcome,
		ErrorMessage: errMsg,
	}
	if _, err := q.ph.Create(ctx, &history); err != nil {
		slog.Error("error saving publish history", "post_id", at.post.ID, "error", err)
	}
}
