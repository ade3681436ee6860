package config

import (
	"os"
	"strconv"
	"time"
)

type Instagram struct {
	AppID       string
	AppSecret   string
	GraphURL    string
	HTTPTimeout time.Duration
}

type TwitterBot struct {
	URL         string
	APIKey      string
	HTTPTimeout time.Duration
}

type Config struct {
	Instagram           Instagram
	TwitterBot          TwitterBot
	CloudinaryCloudName string
	PostgresURI         string
	RedisURI            string
	RedisPassword       string
	Port                string
	FrontendURL         string
	SecretKey           string
	JWTSecret           string
	CookieName          string
	LogLevel            string
	WorkerConcurrency   int
}

func LoadConfig() *Config {
	return &Config{
		Instagram: Instagram{
			AppID:       getEnv("INSTAGRAM_APP_ID", ""),
			AppSecret:   getEnv("INSTAGRAM_APP_SECRET", ""),
			GraphURL:    getEnv("INSTAGRAM_GRAPH_URL", "https://graph.facebook.com/v21.0"),
			HTTPTimeout: getEnvDuration("INSTAGRAM_HTTP_TIMEOUT", 30*time.Second),
		},
		TwitterBot: TwitterBot{
			URL:         getEnv("TWITTER_BOT_URL", "http://localhost:3000"),
			APIKey:      getEnv("TWITTER_BOT_API_KEY", ""),
			HTTPTimeout: getEnvDuration("TWITTER_BOT_HTTP_TIMEOUT", 60*time.Second),
		},
		CloudinaryCloudName: getEnv("CLOUDINARY_CLOUD_NAME", ""),
		PostgresURI:         getEnv("POSTGRES_URI", ""),
		RedisURI:            getEnv("REDIS_URI", "localhost:6379"),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		Port:                getEnv("PORT", "3000"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:5173"),
		SecretKey:           getEnv("SECRET_KEY", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		CookieName:          getEnv("COOKIE_NAME", "instaflow_session"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		WorkerConcurrency:   getEnvInt("WORKER_CONCURRENCY", 5),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}
