package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	LogLevel          string
	CORSAllowOrigins  string
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string
	EventsChannel     string
	GradebookCacheTTL time.Duration
	AuthMaxAttempts   int
	AuthAttemptWindow time.Duration
	APIRateLimit      int
	APIRateWindow     time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MATHLA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Mathla API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("events.channel", "mathla:submissions")
	v.SetDefault("gradebook.cache_ttl", "2m")
	v.SetDefault("auth.max_attempts", 5)
	v.SetDefault("auth.attempt_window", "5m")
	v.SetDefault("api.rate_limit", 120)
	v.SetDefault("api.rate_window", "1m")

	cacheTTL, err := parseDuration(v, "gradebook.cache_ttl")
	if err != nil {
		return Config{}, err
	}
	attemptWindow, err := parseDuration(v, "auth.attempt_window")
	if err != nil {
		return Config{}, err
	}
	rateWindow, err := parseDuration(v, "api.rate_window")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		LogLevel:          strings.ToLower(v.GetString("log.level")),
		CORSAllowOrigins:  v.GetString("cors.allow_origins"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		EventsChannel:     v.GetString("events.channel"),
		GradebookCacheTTL: cacheTTL,
		AuthMaxAttempts:   v.GetInt("auth.max_attempts"),
		AuthAttemptWindow: attemptWindow,
		APIRateLimit:      v.GetInt("api.rate_limit"),
		APIRateWindow:     rateWindow,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.AuthMaxAttempts <= 0 {
		cfg.AuthMaxAttempts = 5
	}

	if cfg.APIRateLimit <= 0 {
		cfg.APIRateLimit = 120
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return duration, nil
}
