package queue

import (
	"context"
	"time"

	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/pkg/utils"
)

const TaskTypePublishPost = "post:publish"

type SchedulePostPayload struct {
	PostID string `json:"post_id"`
	UserID int64  `json:"user_id"`
}

// PollPolicy bounds how long a container may stay IN_PROGRESS.
type PollPolicy struct {
	Interval time.Duration
	Attempts int
}

var (
	VideoPollPolicy = PollPolicy{Interval: 5 * time.Second, Attempts: 30}
	ImagePollPolicy = PollPolicy{Interval: 2 * time.Second, Attempts: 10}
)

const (
	VerificationDelay  = 10 * time.Second
	VerificationWindow = 10 * time.Minute
	VerificationLimit  = 5

	// RerunAfter is how far past scheduled_time a run must start before the
	// account is searched for an earlier publish that was never recorded.
	RerunAfter   = 15 * time.Minute
	scheduleSkew = time.Minute

	markPublishedAttempts = 3
	markPublishedBackoff  = time.Second
)

type Queue struct {
	pr    repository.PostRepository
	ac    repository.SocialAccountRepository
	ph    repository.PublishHistoryRepository
	ig    service.InstagramClient
	tw    service.TwitterService
	mr    *service.MediaResolver
	codec *utils.TokenCodec

	VideoPoll   PollPolicy
	ImagePoll   PollPolicy
	VerifyDelay time.Duration

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

func NewQueue(
	pr repository.PostRepository,
	ac repository.SocialAccountRepository,
	ph repository.PublishHistoryRepository,
	ig service.InstagramClient,
	tw service.TwitterService,
	mr *service.MediaResolver,
	codec *utils.TokenCodec) *Queue {
	return &Queue{
		pr:          pr,
		ac:          ac,
		ph:          ph,
		ig:          ig,
		tw:          tw,
		mr:          mr,
		codec:       codec,
		VideoPoll:   VideoPollPolicy,
		ImagePoll:   ImagePollPolicy,
		VerifyDelay: VerificationDelay,
		sleep:       sleepContext,
		now:         time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
