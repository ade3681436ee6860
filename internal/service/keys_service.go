package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/repository"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	MaxApiKeysPerUser = 5
	apiKeyLength      = 32
	apiKeyPrefixLen   = 6
	apiKeyAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

var (
	ErrApiKeyNotFound = errors.New("key doesn't exist")
	ErrApiKeyLimit    = fmt.Errorf("only %d API keys can be created", MaxApiKeysPerUser)
)

type ApiKeyService interface {
	Create(ctx context.Context, userID int64) (string, error)
	List(ctx context.Context, userID int64) ([]*models.ApiKey, error)
	GetUserID(ctx context.Context, apiKey string) (int64, error)
	RemoveAPIKey(ctx context.Context, userID, keyID int64) error
}

type apiKeyService struct {
	k repository.ApiKeyRepository
}

func NewApiKeyService(k repository.ApiKeyRepository) ApiKeyService {
	return &apiKeyService{
		k: k,
	}
}

func hashApiKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Create returns the new key in plain text. It cannot be shown again.
func (s *apiKeyService) Create(ctx context.Context, userID int64) (string, error) {
	keys, err := s.k.GetByUserID(ctx, userID)
	if err != nil {
		return "", err
	}

	if len(keys) >= MaxApiKeysPerUser {
		slog.Info(ErrApiKeyLimit.Error(), "user_id", userID)
		return "", ErrApiKeyLimit
	}

	key, err := gonanoid.Generate(apiKeyAlphabet, apiKeyLength)
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("error generating API key: %w", err)
	}

	apiKey := &models.ApiKey{
		UserID:  userID,
		KeyHash: hashApiKey(key),
		Prefix:  key[:apiKeyPrefixLen],
	}

	if _, err := s.k.Create(ctx, apiKey); err != nil {
		return "", fmt.Errorf("error saving API key: %w", err)
	}
	return key, nil
}

func (s *apiKeyService) GetUserID(ctx context.Context, apiKey string) (int64, error) {
	userID, exists, err := s.k.GetUserIDByHash(ctx, hashApiKey(apiKey))
	if err != nil {
		return 0, err
	}

	if !exists {
		return 0, ErrApiKeyNotFound
	}

	return userID, nil
}

func (s *apiKeyService) List(ctx context.Context, userID int64) ([]*models.ApiKey, error) {
	apiKeys, err := s.k.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting API keys: %w", err)
	}
	if apiKeys == nil {
		apiKeys = []*models.ApiKey{}
	}
	return apiKeys, nil
}

func (s *apiKeyService) RemoveAPIKey(ctx context.Context, userID, keyID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("UserID is not valid")
		slog.Info(err.Error())
		return err
	}

	if keyID == 0 {
		err = errors.New("KeyID is not valid")
		slog.Info(err.Error())
		return err
	}

	removed, err := s.k.Remove(ctx, keyID, userID)
	if err != nil {
		return err
	}

	if !removed {
		slog.Info(ErrApiKeyNotFound.Error(), "key_id", keyID)
		return ErrApiKeyNotFound
	}
	return nil
}
