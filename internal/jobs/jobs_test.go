package job

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/queue"
	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/internal/transfer"
	"github.com/maheshrc27/instaflow/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	repository.SocialAccountRepository

	mu       sync.Mutex
	expiring []*models.SocialAccount
	before   time.Time
	tokens   map[int64]string
	expires  map[int64]time.Time
}

func (f *fakeAccounts) ListExpiring(_ context.Context, before time.Time) ([]*models.SocialAccount, error) {
	f.before = before
	return f.expiring, nil
}

func (f *fakeAccounts) SetToken(_ context.Context, id int64, _, newAccessToken string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens[id] = newAccessToken
	f.expires[id] = expiresAt
	return nil
}

type fakeRefresher struct {
	service.InstagramClient
	fail map[string]bool
}

func (f *fakeRefresher) RefreshLongLivedToken(_ context.Context, accessToken string) (*transfer.InstagramToken, error) {
	if f.fail[accessToken] {
		return nil, errors.New("token revoked")
	}
	return &transfer.InstagramToken{AccessToken: accessToken + "-fresh"}, nil
}

func TestRefreshTokens(t *testing.T) {
	codec, err := utils.NewTokenCodec("0123456789abcdef")
	require.NoError(t, err)

	encA, err := codec.Encrypt("token-a")
	require.NoError(t, err)
	encB, err := codec.Encrypt("token-b")
	require.NoError(t, err)

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	accounts := &fakeAccounts{
		expiring: []*models.SocialAccount{
			{ID: 1, AccessToken: encA},
			{ID: 2, AccessToken: encB},
		},
		tokens:  map[int64]string{},
		expires: map[int64]time.Time{},
	}

	job := NewTokenRefreshJob(accounts, &fakeRefresher{fail: map[string]bool{"token-b": true}}, codec)
	job.now = func() time.Time { return now }

	job.RefreshTokens()

	assert.Equal(t, now.Add(TokenRefreshWindow), accounts.before)
	require.Contains(t, accounts.tokens, int64(1))
	assert.NotContains(t, accounts.tokens, int64(2))

	plain, err := codec.Decrypt(accounts.tokens[1])
	require.NoError(t, err)
	assert.Equal(t, "token-a-fresh", plain)
	assert.Equal(t, now.Add(refreshedTokenLifetime), accounts.expires[1])
}

type fakeStalePosts struct {
	repository.PostRepository
	posts  []*models.Post
	before time.Time
}

func (f *fakeStalePosts) ListStaleScheduled(_ context.Context, before time.Time, _ int) ([]*models.Post, error) {
	f.before = before
	return f.posts, nil
}

type fakeClient struct {
	conflicts map[string]bool
	enqueued  []string
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	for _, opt := range opts {
		if opt.Type() != asynq.TaskIDOpt {
			continue
		}
		id := opt.Value().(string)
		if f.conflicts[id] {
			return nil, asynq.ErrTaskIDConflict
		}
		f.enqueued = append(f.enqueued, id)
		return &asynq.TaskInfo{ID: id}, nil
	}
	return nil, errors.New("missing task id")
}

type fakeInspector struct{}

func (fakeInspector) GetTaskInfo(_, id string) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{ID: id, State: asynq.TaskStatePending}, nil
}

func (fakeInspector) DeleteTask(_, _ string) error { return nil }

func TestStalePostJob_Requeue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	posts := &fakeStalePosts{posts: []*models.Post{
		{ID: "lost", UserID: 7},
		{ID: "queued", UserID: 7},
	}}
	client := &fakeClient{conflicts: map[string]bool{queue.TaskID("queued"): true}}

	job := NewStalePostJob(posts, client, fakeInspector{})
	job.now = func() time.Time { return now }

	job.Requeue()

	assert.Equal(t, now.Add(-StalePostGrace), posts.before)
	assert.Equal(t, []string{"post:lost"}, client.enqueued)
}
