package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const (
	DefaultQueue = "default"

	// MaxAttempts counts the first run, so asynq gets MaxAttempts-1 retries.
	MaxAttempts    = 3
	RetryBaseDelay = time.Second
	maxRetryShift  = 16
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

func TaskID(postID string) string {
	return "post:" + postID
}

// EnqueuePost schedules the publish task. A post is enqueued at most once at a
// time; a second enqueue while the first is pending fails with
// asynq.ErrTaskIDConflict.
func EnqueuePost(ctx context.Context, client Enqueuer, payload SchedulePostPayload, delay time.Duration) error {
	taskPayload, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if delay < 0 {
		delay = 0
	}

	task := asynq.NewTask(TaskTypePublishPost, taskPayload)

	_, err = client.EnqueueContext(ctx, task,
		asynq.TaskID(TaskID(payload.PostID)),
		asynq.ProcessIn(delay),
		asynq.MaxRetry(MaxAttempts-1),
	)
	if err != nil {
		return fmt.Errorf("error enqueueing post %s: %w", payload.PostID, err)
	}

	slog.Info("task scheduled", "post_id", payload.PostID, "user_id", payload.UserID, "delay", delay)
	return nil
}

// TaskInspector is satisfied by *asynq.Inspector.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// RequeuePost enqueues a post that already went through the queue. An
// archived task left by exhausted retries is replaced; a task that is still
// pending, scheduled or retrying keeps ownership and asynq.ErrTaskIDConflict
// is returned.
func RequeuePost(ctx context.Context, client Enqueuer, inspector TaskInspector, payload SchedulePostPayload, delay time.Duration) error {
	err := EnqueuePost(ctx, client, payload, delay)
	if !errors.Is(err, asynq.ErrTaskIDConflict) {
		return err
	}

	info, ierr := inspector.GetTaskInfo(DefaultQueue, TaskID(payload.PostID))
	if ierr != nil {
		slog.Error("unable to inspect conflicting task", "post_id", payload.PostID, "error", ierr)
		return err
	}
	if info.State != asynq.TaskStateArchived {
		return err
	}

	if err := inspector.DeleteTask(DefaultQueue, info.ID); err != nil {
		return fmt.Errorf("error deleting archived task for post %s: %w", payload.PostID, err)
	}
	return EnqueuePost(ctx, client, payload, delay)
}

// ScheduleDelay is how long to wait from now until scheduled, never negative.
func ScheduleDelay(now, scheduled time.Time) time.Duration {
	delay := scheduled.Sub(now)
	if delay < 0 {
		return 0
	}
	return delay
}

// RetryDelay backs off exponentially from RetryBaseDelay; n is the number of
// retries already made.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 0 {
		n = 0
	}
	if n > maxRetryShift {
		n = maxRetryShift
	}
	return RetryBaseDelay << n
}
