package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	config "github.com/maheshrc27/instaflow/configs"
	"github.com/maheshrc27/instaflow/internal/service"
	"github.com/maheshrc27/instaflow/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubKeys struct {
	service.ApiKeyService
}

func (stubKeys) GetUserID(_ context.Context, apiKey string) (int64, error) {
	if apiKey == "good-key" {
		return 42, nil
	}
	return 0, errors.New("key doesn't exist")
}

func newTestApp() (*fiber.App, config.Config) {
	cfg := config.Config{JWTSecret: "jwt-secret", CookieName: "instaflow_session"}
	app := fiber.New()
	app.Use(NewAuthMiddleware(cfg, stubKeys{}).AuthMiddleware())
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("user_id").(string))
	})
	return app, cfg
}

func sessionToken(t *testing.T, secret, userID string) string {
	t.Helper()
	claims := utils.CustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAuthMiddleware_BearerToken(t *testing.T) {
	app, cfg := newTestApp()
	token := sessionToken(t, cfg.JWTSecret, "7")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "7", body(t, resp))
}

func TestAuthMiddleware_Cookie(t *testing.T) {
	app, cfg := newTestApp()
	token := sessionToken(t, cfg.JWTSecret, "8")

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: cfg.CookieName, Value: token})

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "8", body(t, resp))
}

func TestAuthMiddleware_ApiKey(t *testing.T) {
	app, _ := newTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami?api_key=good-key", nil))
	require.NoError(t, err)
	assert.Equal(t, "42", body(t, resp))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/whoami?api_key=bad-key", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	app, _ := newTestApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged := sessionToken(t, "other-secret", "7")
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+forged)

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
