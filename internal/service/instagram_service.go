package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	config "github.com/maheshrc27/instaflow/configs"
	"github.com/maheshrc27/instaflow/internal/transfer"
)

// InstagramClient wraps the Graph API calls used to publish content. It holds
// no per-account state; every call takes the decrypted access token.
type InstagramClient interface {
	CreateMediaContainer(ctx context.Context, accessToken, accountID, imageURL, caption string, isCarouselItem bool) (string, error)
	CreateCarouselContainer(ctx context.Context, accessToken, accountID string, childIDs []string, caption string) (string, error)
	CreateVideoContainer(ctx context.Context, accessToken, accountID, videoURL, caption, coverURL string) (string, error)
	CheckContainerStatus(ctx context.Context, accessToken, containerID string) (*transfer.ContainerStatus, error)
	PublishMedia(ctx context.Context, accessToken, accountID, containerID string) (string, error)
	ListRecentMedia(ctx context.Context, accessToken, accountID string, limit int) ([]transfer.InstagramMedia, error)
	GetAccountProfile(ctx context.Context, accessToken, accountID string) (*transfer.InstagramAccountProfile, error)
	RefreshLongLivedToken(ctx context.Context, accessToken string) (*transfer.InstagramToken, error)
}

type instagramClient struct {
	baseURL   string
	appID     string
	appSecret string
	http      *http.Client
}

func NewInstagramClient(cfg config.Config) InstagramClient {
	return &instagramClient{
		baseURL:   strings.TrimRight(cfg.Instagram.GraphURL, "/"),
		appID:     cfg.Instagram.AppID,
		appSecret: cfg.Instagram.AppSecret,
		http:      &http.Client{Timeout: cfg.Instagram.HTTPTimeout},
	}
}

func (c *instagramClient) CreateMediaContainer(ctx context.Context, accessToken, accountID, imageURL, caption string, isCarouselItem bool) (string, error) {
	params := url.Values{}
	params.Set("image_url", imageURL)
	params.Set("access_token", accessToken)
	if isCarouselItem {
		// children never carry a caption
		params.Set("is_carousel_item", "true")
	} else {
		params.Set("caption", caption)
	}

	return c.createContainer(ctx, "create media container", accountID, params)
}

func (c *instagramClient) CreateCarouselContainer(ctx context.Context, accessToken, accountID string, childIDs []string, caption string) (string, error) {
	if len(childIDs) == 0 {
		return "", errors.New("carousel container needs at least one child")
	}

	params := url.Values{}
	params.Set("media_type", "CAROUSEL")
	params.Set("children", strings.Join(childIDs, ","))
	params.Set("caption", caption)
	params.Set("access_token", accessToken)

	return c.createContainer(ctx, "create carousel container", accountID, params)
}

func (c *instagramClient) CreateVideoContainer(ctx context.Context, accessToken, accountID, videoURL, caption, coverURL string) (string, error) {
	params := url.Values{}
	params.Set("media_type", "REELS")
	params.Set("video_url", videoURL)
	params.Set("caption", caption)
	params.Set("access_token", accessToken)
	if coverURL != "" {
		params.Set("cover_url", coverURL)
	}

	return c.createContainer(ctx, "create video container", accountID, params)
}

func (c *instagramClient) createContainer(ctx context.Context, op, accountID string, params url.Values) (string, error) {
	var result transfer.InstagramIDResponse
	if err := c.do(ctx, op, http.MethodPost, "/"+accountID+"/media", params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("%s: no container ID returned from Instagram", op)
	}
	return result.ID, nil
}

func (c *instagramClient) CheckContainerStatus(ctx context.Context, accessToken, containerID string) (*transfer.ContainerStatus, error) {
	params := url.Values{}
	params.Set("fields", "status_code,status")
	params.Set("access_token", accessToken)

	var status transfer.ContainerStatus
	if err := c.do(ctx, "check container status", http.MethodGet, "/"+containerID, params, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *instagramClient) PublishMedia(ctx context.Context, accessToken, accountID, containerID string) (string, error) {
	params := url.Values{}
	params.Set("creation_id", containerID)
	params.Set("access_token", accessToken)

	var result transfer.InstagramIDResponse
	if err := c.do(ctx, "publish media", http.MethodPost, "/"+accountID+"/media_publish", params, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", errors.New("publish media: no media ID returned from Instagram")
	}

	slog.Info("instagram media published", "account_id", accountID, "container_id", containerID, "media_id", result.ID)
	return result.ID, nil
}

func (c *instagramClient) ListRecentMedia(ctx context.Context, accessToken, accountID string, limit int) ([]transfer.InstagramMedia, error) {
	params := url.Values{}
	params.Set("fields", "id,caption,timestamp")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("access_token", accessToken)

	var result transfer.InstagramMediaList
	if err := c.do(ctx, "list recent media", http.MethodGet, "/"+accountID+"/media", params, &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (c *instagramClient) GetAccountProfile(ctx context.Context, accessToken, accountID string) (*transfer.InstagramAccountProfile, error) {
	params := url.Values{}
	params.Set("fields", "id,username,profile_picture_url")
	params.Set("access_token", accessToken)

	var profile transfer.InstagramAccountProfile
	if err := c.do(ctx, "get account profile", http.MethodGet, "/"+accountID, params, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *instagramClient) RefreshLongLivedToken(ctx context.Context, accessToken string) (*transfer.InstagramToken, error) {
	params := url.Values{}
	params.Set("grant_type", "fb_exchange_token")
	params.Set("client_id", c.appID)
	params.Set("client_secret", c.appSecret)
	params.Set("fb_exchange_token", accessToken)

	var token transfer.InstagramToken
	if err := c.do(ctx, "refresh token", http.MethodGet, "/oauth/access_token", params, &token); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, errors.New("refresh token: empty access token in response")
	}
	token.ExpiresAt = GetExpiresAt(int(token.ExpiresIn))
	return &token, nil
}

// do sends a Graph API request. GET parameters go in the query string, POST
// parameters in a form-encoded body. Non-2xx responses become *PlatformError.
func (c *instagramClient) do(ctx context.Context, op, method, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path

	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: error creating request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: HTTP request error: %w", op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: error reading response body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := newPlatformError(op, resp.StatusCode, respBody)
		slog.Info(perr.Error())
		return perr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: error parsing response: %w", op, err)
	}
	return nil
}

// ParseGraphTime parses Graph API timestamps such as 2024-05-01T10:00:00+0000.
func ParseGraphTime(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05-0700", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
