package config

import (
	"errors"
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr           string
	AppMode            string
	JWTIssuer          string
	JWTSecret          string
	JWTTTL             time.Duration
	AdminEmail         string
	InternalToken      string
	WebSocketOrigin    string
	FeedURL            string
	FeedTimeout        time.Duration
	FeedPollInterval   time.Duration
	CheckpointPath     string
	CheckpointInterval time.Duration
	DBDSN              string
}

func Load() (Config, error) {
	var c Config
	var missing []string

	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.AdminEmail = strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_EMAIL")))
	if c.AdminEmail == "" {
		missing = append(missing, "ADMIN_EMAIL")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}

	c.AppMode = strings.ToLower(strings.TrimSpace(os.Getenv("APP_MODE")))
	if c.AppMode == "" {
		c.AppMode = "development"
	}
	if c.AppMode != "development" && c.AppMode != "production" {
		return c, errors.New("invalid APP_MODE: use development or production")
	}

	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")

	c.FeedURL = os.Getenv("FEED_URL")
	var err error
	c.FeedTimeout, err = durationEnv("FEED_TIMEOUT", 5*time.Second)
	if err != nil {
		return c, err
	}
	c.FeedPollInterval, err = durationEnv("FEED_POLL_INTERVAL", time.Second)
	if err != nil {
		return c, err
	}

	c.CheckpointPath = os.Getenv("CHECKPOINT_PATH")
	if c.CheckpointPath == "" {
		c.CheckpointPath = "data/state.json"
	}
	c.CheckpointInterval, err = durationEnv("CHECKPOINT_INTERVAL", 30*time.Second)
	if err != nil {
		return c, err
	}

	c.DBDSN = os.Getenv("DB_DSN")

	if len(missing) > 0 {
		return c, errors.New("missing required env: " + strings.Join(missing, ","))
	}
	return c, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	if d <= 0 {
		return 0, errors.New(key + " must be positive")
	}
	return d, nil
}
