package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	config "github.com/maheshrc27/instaflow/configs"
	"github.com/maheshrc27/instaflow/internal/models"
	"github.com/maheshrc27/instaflow/internal/transfer"
	"golang.org/x/oauth2"
)

const (
	TwitterCharLimit     = 280
	twitterCaptionBuffer = 10
	ellipsis             = "..."
)

var ErrTwitterNotConfigured = errors.New("TWITTER_BOT_API_KEY not configured")

// TwitterService cross-posts a published post to the Twitter bot.
type TwitterService interface {
	Share(ctx context.Context, post *models.Post) (*transfer.TwitterResult, error)
}

type twitterService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewTwitterService(cfg config.Config) TwitterService {
	s := &twitterService{
		baseURL: strings.TrimRight(cfg.TwitterBot.URL, "/"),
		apiKey:  cfg.TwitterBot.APIKey,
	}
	if s.apiKey != "" {
		token := &oauth2.Token{AccessToken: s.apiKey, TokenType: "Bearer"}
		s.client = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(token))
		s.client.Timeout = cfg.TwitterBot.HTTPTimeout
	}
	return s
}

func (s *twitterService) Share(ctx context.Context, post *models.Post) (*transfer.TwitterResult, error) {
	if s.client == nil {
		return nil, ErrTwitterNotConfigured
	}

	payload := transfer.TwitterPostRequest{
		Caption:   TruncateCaption(post.Caption, post.Hashtags),
		Hashtags:  post.Hashtags,
		MediaType: string(post.MediaType),
	}
	if payload.Hashtags == nil {
		payload.Hashtags = []string{}
	}
	if len(post.Images) > 0 {
		payload.MediaURL = post.Images[0]
	}
	if len(post.ImagePublicIDs) > 0 {
		payload.MediaPublicID = post.ImagePublicIDs[0]
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/external/post", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var result transfer.TwitterPostResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("twitter bot returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if !result.Success {
		if result.Error == "" {
			result.Error = "Twitter posting failed"
		}
		return nil, errors.New(result.Error)
	}

	tr := &transfer.TwitterResult{}
	if result.Result != nil {
		tr.URL = result.Result.URL
		tr.PostID = lastPathSegment(result.Result.URL)
	}

	slog.Info("post shared to twitter", "post_id", post.ID, "url", tr.URL)
	return tr, nil
}

// TruncateCaption keeps caption plus the appended hashtag block within the
// Twitter limit. A cut caption always ends with an ellipsis.
func TruncateCaption(caption string, hashtags []string) string {
	hashtagLength := 0
	if tags := strings.Join(hashtags, " "); tags != "" {
		hashtagLength = len([]rune(tags)) + 2 // "\n\n" separator
	}

	maxCaption := TwitterCharLimit - hashtagLength - twitterCaptionBuffer
	runes := []rune(caption)
	if len(runes) <= maxCaption {
		return caption
	}

	keep := max(maxCaption-len(ellipsis), 0)
	return string(runes[:keep]) + ellipsis
}

func lastPathSegment(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
