package job

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/instaflow/internal/queue"
	"github.com/maheshrc27/instaflow/internal/repository"
)

const (
	StalePostGrace = queue.RerunAfter
	stalePostBatch = 100
)

// StalePostJob re-enqueues SCHEDULED posts whose time has long passed, which
// happens when Redis lost the task or enqueueing failed after the insert.
type StalePostJob struct {
	pr        repository.PostRepository
	client    queue.Enqueuer
	inspector queue.TaskInspector
	now       func() time.Time
}

func NewStalePostJob(pr repository.PostRepository, client queue.Enqueuer, inspector queue.TaskInspector) *StalePostJob {
	return &StalePostJob{
		pr:        pr,
		client:    client,
		inspector: inspector,
		now:       time.Now,
	}
}

func (j *StalePostJob) Requeue() {
	ctx := context.Background()

	posts, err := j.pr.ListStaleScheduled(ctx, j.now().Add(-StalePostGrace), stalePostBatch)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	requeued := 0
	for _, post := range posts {
		payload := queue.SchedulePostPayload{PostID: post.ID, UserID: post.UserID}

		err := queue.RequeuePost(ctx, j.client, j.inspector, payload, 0)
		switch {
		case errors.Is(err, asynq.ErrTaskIDConflict):
			continue
		case err != nil:
			slog.Error("unable to requeue stale post", "post_id", post.ID, "error", err)
			continue
		}
		requeued++
	}

	if requeued > 0 {
		slog.Info("requeued stale posts", "count", requeued)
	}
}
