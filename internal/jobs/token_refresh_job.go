package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/pkg/utils"
)

const (
	TokenRefreshWindow      = 7 * 24 * time.Hour
	tokenRefreshConcurrency = 10
	refreshedTokenLifetime  = 60 * 24 * time.Hour
)

type TokenRefreshJob struct {
	sr    repository.SocialAccountRepository
	ig    service.InstagramClient
	codec *utils.TokenCodec
	now   func() time.Time
}

func NewTokenRefreshJob(
	sr repository.SocialAccountRepository,
	ig service.InstagramClient,
	codec *utils.TokenCodec) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr:    sr,
		ig:    ig,
		codec: codec,
		now:   time.Now,
	}
}

// RefreshTokens exchanges every active token that expires within
// TokenRefreshWindow for a fresh long-lived one.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	accounts, err := c.sr.ListExpiring(ctx, c.now().Add(TokenRefreshWindow))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, tokenRefreshConcurrency)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(acc *models.SocialAccount) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.refresh(ctx, acc); err != nil {
				slog.Info("unable to refresh instagram token", "account_id", acc.ID, "error", service.ErrorDetail(err))
			}
		}(acc)
	}

	wg.Wait()
}

func (c *TokenRefreshJob) refresh(ctx context.Context, acc *models.SocialAccount) error {
	accessToken, err := c.codec.Decrypt(acc.AccessToken)
	if err != nil {
		return err
	}

	token, err := c.ig.RefreshLongLivedToken(ctx, accessToken)
	if err != nil {
		return err
	}

	expiresAt := token.ExpiresAt
	if token.ExpiresIn <= 0 {
		expiresAt = c.now().Add(refreshedTokenLifetime)
	}

	encrypted, err := c.codec.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}

	if err := c.sr.SetToken(ctx, acc.ID, acc.AccessToken, encrypted, expiresAt); err != nil {
		return err
	}

	slog.Info("refreshed instagram token", "account_id", acc.ID, "expires_at", expiresAt)
	return nil
}
