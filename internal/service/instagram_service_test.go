package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	config "github.com/maheshrc27/instaflow/configs"
	"github.com/maheshrc27/instaflow/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestInstagramClient(t *testing.T, handler http.HandlerFunc) InstagramClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return NewInstagramClient(config.Config{
		Instagram: config.Instagram{
			AppID:       "app",
			AppSecret:   "shh",
			GraphURL:    ts.URL + "/v21.0/",
			HTTPTimeout: 5 * time.Second,
		},
	})
}

func TestCreateMediaContainer_CarouselChildOmitsCaption(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v21.0/1784/media", r.URL.Path)
		assert.Equal(t, "https://img/1.jpg", r.PostForm.Get("image_url"))
		assert.Equal(t, "true", r.PostForm.Get("is_carousel_item"))
		_, hasCaption := r.PostForm["caption"]
		assert.False(t, hasCaption)
		assert.Equal(t, "tok", r.PostForm.Get("access_token"))
		_, _ = w.Write([]byte(`{"id":"c-1"}`))
	})

	id, err := client.CreateMediaContainer(context.Background(), "tok", "1784", "https://img/1.jpg", "ignored", true)
	require.NoError(t, err)
	assert.Equal(t, "c-1", id)
}

func TestCreateMediaContainer_SingleCarriesCaption(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "hello world", r.PostForm.Get("caption"))
		assert.Empty(t, r.PostForm.Get("is_carousel_item"))
		_, _ = w.Write([]byte(`{"id":"c-2"}`))
	})

	id, err := client.CreateMediaContainer(context.Background(), "tok", "1784", "https://img/1.jpg", "hello world", false)
	require.NoError(t, err)
	assert.Equal(t, "c-2", id)
}

func TestCreateCarouselContainer_JoinsChildrenInOrder(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "CAROUSEL", r.PostForm.Get("media_type"))
		assert.Equal(t, "c-3,c-1,c-2", r.PostForm.Get("children"))
		assert.Equal(t, "caption", r.PostForm.Get("caption"))
		_, _ = w.Write([]byte(`{"id":"car-1"}`))
	})

	id, err := client.CreateCarouselContainer(context.Background(), "tok", "1784", []string{"c-3", "c-1", "c-2"}, "caption")
	require.NoError(t, err)
	assert.Equal(t, "car-1", id)
}

func TestCreateVideoContainer_Cover(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "REELS", r.PostForm.Get("media_type"))
		assert.Equal(t, "https://vid/1.mp4", r.PostForm.Get("video_url"))
		assert.Equal(t, "https://img/cover.jpg", r.PostForm.Get("cover_url"))
		_, _ = w.Write([]byte(`{"id":"v-1"}`))
	})

	id, err := client.CreateVideoContainer(context.Background(), "tok", "1784", "https://vid/1.mp4", "reel", "https://img/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, "v-1", id)
}

func TestCheckContainerStatus(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v21.0/c-9", r.URL.Path)
		assert.Equal(t, "status_code,status", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"status_code":"ERROR","status":"Error: media could not be fetched","id":"c-9"}`))
	})

	status, err := client.CheckContainerStatus(context.Background(), "tok", "c-9")
	require.NoError(t, err)
	assert.Equal(t, transfer.ContainerError, status.StatusCode)
	assert.Equal(t, "Error: media could not be fetched", status.Status)
}

func TestPublishMedia(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/v21.0/1784/media_publish", r.URL.Path)
		assert.Equal(t, "c-1", r.PostForm.Get("creation_id"))
		_, _ = w.Write([]byte(`{"id":"1790001"}`))
	})

	id, err := client.PublishMedia(context.Background(), "tok", "1784", "c-1")
	require.NoError(t, err)
	assert.Equal(t, "1790001", id)
}

func TestListRecentMedia(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/1784/media", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "id,caption,timestamp", r.URL.Query().Get("fields"))
		_, _ = w.Write([]byte(`{"data":[{"id":"m1","caption":"hi","timestamp":"2026-10-18T09:00:00+0000"}]}`))
	})

	media, err := client.ListRecentMedia(context.Background(), "tok", "1784", 5)
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "m1", media[0].ID)

	ts, err := ParseGraphTime(media[0].Timestamp)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), ts.UTC())
}

func TestPlatformErrorPreservesPayload(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Application request limit reached","type":"OAuthException","code":4,"fbtrace_id":"AbC"}}`))
	})

	_, err := client.PublishMedia(context.Background(), "tok", "1784", "c-1")
	require.Error(t, err)

	var perr *PlatformError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusBadRequest, perr.StatusCode)
	assert.True(t, perr.RateLimited())
	assert.True(t, IsRateLimited(errors.Join(errors.New("publish attempt"), err)))
	assert.Contains(t, ErrorDetail(err), `"code":4`)
	assert.Contains(t, ErrorDetail(err), "Application request limit reached")
}

func TestPlatformErrorRawBody(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	})

	_, err := client.CheckContainerStatus(context.Background(), "tok", "c-1")
	require.Error(t, err)
	assert.Equal(t, "upstream unavailable", ErrorDetail(err))
	assert.False(t, IsRateLimited(err))
}

func TestRefreshLongLivedToken(t *testing.T) {
	client := newTestInstagramClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/v21.0/oauth/access_token", r.URL.Path)
		assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
		assert.Equal(t, "app", q.Get("client_id"))
		assert.Equal(t, "old", q.Get("fb_exchange_token"))
		_, _ = w.Write([]byte(`{"access_token":"new","token_type":"bearer","expires_in":5184000}`))
	})

	token, err := client.RefreshLongLivedToken(context.Background(), "old")
	require.NoError(t, err)
	assert.Equal(t, "new", token.AccessToken)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), token.ExpiresAt, time.Minute)
}
