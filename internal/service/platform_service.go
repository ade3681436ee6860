package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/repository"
	"github.com/maheshrc27/instaflow/internal/transfer"
	"github.com/maheshrc27/instaflow/pkg/utils"
)

const (
	PlatformInstagram = "instagram"

	// Long-lived Instagram tokens last 60 days.
	defaultTokenLifetime = 60 * 24 * time.Hour
)

type PlatformService interface {
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ConnectManual(ctx context.Context, userID int64, mc *transfer.ManualConnection) (*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
	UpdateWatermark(ctx context.Context, userID, accountID int64, wm models.Watermark) error
}

type platformService struct {
	sa    repository.SocialAccountRepository
	ig    InstagramClient
	codec *utils.TokenCodec
}

func NewPlatformService(sa repository.SocialAccountRepository, ig InstagramClient, codec *utils.TokenCodec) PlatformService {
	return &platformService{
		sa:    sa,
		ig:    ig,
		codec: codec,
	}
}

func (s *platformService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting social accounts: %w", err)
	}
	if accounts == nil {
		accounts = []*models.SocialAccount{}
	}

	return accounts, nil
}

// ConnectManual validates a pasted long-lived token against the Graph API
// and stores it encrypted.
func (s *platformService) ConnectManual(ctx context.Context, userID int64, mc *transfer.ManualConnection) (*models.SocialAccount, error) {
	if userID == 0 {
		err := errors.New("UserID is not valid")
		slog.Info(err.Error())
		return nil, err
	}
	if mc == nil || mc.AccountID == "" || mc.AccessToken == "" {
		err := errors.New("account id and access token are required")
		slog.Info(err.Error())
		return nil, err
	}

	profile, err := s.ig.GetAccountProfile(ctx, mc.AccessToken, mc.AccountID)
	if err != nil {
		slog.Info("instagram rejected manual connection", "account_id", mc.AccountID, "error", ErrorDetail(err))
		return nil, fmt.Errorf("unable to verify instagram account: %w", err)
	}

	encrypted, err := s.codec.Encrypt(mc.AccessToken)
	if err != nil {
		slog.Error(err.Error())
		return nil, fmt.Errorf("error encrypting access token: %w", err)
	}

	expiresAt := time.Now().Add(defaultTokenLifetime)
	if mc.ExpiresIn > 0 {
		expiresAt = GetExpiresAt(int(mc.ExpiresIn))
	}

	account := &models.SocialAccount{
		UserID:          userID,
		Platform:        PlatformInstagram,
		AccountID:       profile.ID,
		AccountUsername: profile.Username,
		ProfilePicture:  profile.ProfilePicture,
		AccessToken:     encrypted,
		TokenExpiresAt:  expiresAt,
		AccountStatus:   models.AccountStatusActive,
	}

	id, err := s.sa.Upsert(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("error saving social account: %w", err)
	}
	account.ID = id

	return account, nil
}

// Disconnect marks the account inactive. Its scheduled posts fail on their
// next attempt instead of publishing.
func (s *platformService) Disconnect(ctx context.Context, userID, accountID int64) error {
	if err := s.checkOwner(ctx, userID, accountID); err != nil {
		return err
	}

	if err := s.sa.SetStatus(ctx, accountID, models.AccountStatusInactive); err != nil {
		return fmt.Errorf("error disconnecting account: %w", err)
	}
	return nil
}

func (s *platformService) UpdateWatermark(ctx context.Context, userID, accountID int64, wm models.Watermark) error {
	if err := ValidateWatermark(wm); err != nil {
		slog.Info(err.Error())
		return err
	}
	if err := s.checkOwner(ctx, userID, accountID); err != nil {
		return err
	}

	if wm.Position == "" {
		wm.Position = models.WatermarkSouthEast
	}
	if wm.Opacity == 0 {
		wm.Opacity = defaultWatermarkOpacity
	}
	if wm.Scale == 0 {
		wm.Scale = defaultWatermarkScale
	}

	if err := s.sa.UpdateWatermark(ctx, accountID, wm); err != nil {
		return fmt.Errorf("error updating watermark: %w", err)
	}
	return nil
}

// ValidateWatermark accepts zero values, which mean "use the default".
func ValidateWatermark(wm models.Watermark) error {
	if wm.Position != "" && !slices.Contains(models.WatermarkPositions, wm.Position) {
		return fmt.Errorf("invalid watermark position %q", wm.Position)
	}
	if wm.Opacity < 0 || wm.Opacity > maxPercent {
		return fmt.Errorf("watermark opacity must be between 0 and %d", maxPercent)
	}
	if wm.Scale != 0 && (wm.Scale < minWatermarkScale || wm.Scale > maxPercent) {
		return fmt.Errorf("watermark scale must be between %d and %d", minWatermarkScale, maxPercent)
	}
	return nil
}

func (s *platformService) checkOwner(ctx context.Context, userID, accountID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return err
	}

	if accountID == 0 {
		err = errors.New("AccountID is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		slog.Info(ErrAccountNotFound.Error(), "account_id", accountID)
		return ErrAccountNotFound
	}
	return nil
}
