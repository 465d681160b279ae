package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port           string
	Environment    string
	LogLevel       string
	AllowedOrigins []string
	JWTSecret      string
	SendBuffer     int
	Redis          RedisConfig
	Signaling      SignalingConfig
	ICE            ICEConfig
}

type RedisConfig struct {
	Enabled   bool
	Host      string
	Port      string
	Password  string
	DB        int
	KeyPrefix string
}

// SignalingConfig holds the call and chat timing knobs.
type SignalingConfig struct {
	RingTimeout           time.Duration
	PendingDeliveryWindow time.Duration
	PendingMaxAge         time.Duration
	PendingSweepInterval  time.Duration
	TypingStaleAfter      time.Duration
	TypingSweepInterval   time.Duration
}

// ICEConfig lists the STUN/TURN servers handed to clients. Media never
// flows through this process.
type ICEConfig struct {
	STUNURLs       []string
	TURNURLs       []string
	TURNUsername   string
	TURNCredential string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("SEND_BUFFER", 256)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "signaling:")

	v.SetDefault("RING_TIMEOUT", "30s")
	v.SetDefault("PENDING_DELIVERY_WINDOW", "30s")
	v.SetDefault("PENDING_MAX_AGE", "60s")
	v.SetDefault("PENDING_SWEEP_INTERVAL", "60s")
	v.SetDefault("TYPING_STALE_AFTER", "5s")
	v.SetDefault("TYPING_SWEEP_INTERVAL", "5s")

	v.SetDefault("STUN_URLS", "stun:stun.l.google.com:19302")
	v.SetDefault("TURN_URLS", "")
	v.SetDefault("TURN_USERNAME", "")
	v.SetDefault("TURN_CREDENTIAL", "")
}

// Load reads defaults, an optional signaling.yaml in the working
// directory, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("signaling")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:           v.GetString("PORT"),
		Environment:    v.GetString("ENVIRONMENT"),
		LogLevel:       v.GetString("LOG_LEVEL"),
		AllowedOrigins: splitList(v.GetString("ALLOWED_ORIGINS")),
		JWTSecret:      v.GetString("JWT_SECRET"),
		SendBuffer:     v.GetInt("SEND_BUFFER"),
		Redis: RedisConfig{
			Enabled:   v.GetBool("REDIS_ENABLED"),
			Host:      v.GetString("REDIS_HOST"),
			Port:      v.GetString("REDIS_PORT"),
			Password:  v.GetString("REDIS_PASSWORD"),
			DB:        v.GetInt("REDIS_DB"),
			KeyPrefix: v.GetString("REDIS_KEY_PREFIX"),
		},
		Signaling: SignalingConfig{
			RingTimeout:           v.GetDuration("RING_TIMEOUT"),
			PendingDeliveryWindow: v.GetDuration("PENDING_DELIVERY_WINDOW"),
			PendingMaxAge:         v.GetDuration("PENDING_MAX_AGE"),
			PendingSweepInterval:  v.GetDuration("PENDING_SWEEP_INTERVAL"),
			TypingStaleAfter:      v.GetDuration("TYPING_STALE_AFTER"),
			TypingSweepInterval:   v.GetDuration("TYPING_SWEEP_INTERVAL"),
		},
		ICE: ICEConfig{
			STUNURLs:       splitList(v.GetString("STUN_URLS")),
			TURNURLs:       splitList(v.GetString("TURN_URLS")),
			TURNUsername:   v.GetString("TURN_USERNAME"),
			TURNCredential: v.GetString("TURN_CREDENTIAL"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	durations := map[string]time.Duration{
		"RING_TIMEOUT":            c.Signaling.RingTimeout,
		"PENDING_DELIVERY_WINDOW": c.Signaling.PendingDeliveryWindow,
		"PENDING_MAX_AGE":         c.Signaling.PendingMaxAge,
		"PENDING_SWEEP_INTERVAL":  c.Signaling.PendingSweepInterval,
		"TYPING_STALE_AFTER":      c.Signaling.TypingStaleAfter,
		"TYPING_SWEEP_INTERVAL":   c.Signaling.TypingSweepInterval,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}
	if c.Signaling.PendingMaxAge < c.Signaling.PendingDeliveryWindow {
		return fmt.Errorf("PENDING_MAX_AGE (%s) is shorter than PENDING_DELIVERY_WINDOW (%s)",
			c.Signaling.PendingMaxAge, c.Signaling.PendingDeliveryWindow)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("SEND_BUFFER must be positive, got %d", c.SendBuffer)
	}
	if len(c.ICE.TURNURLs) > 0 && c.ICE.TURNUsername == "" {
		return errors.New("TURN_URLS requires TURN_USERNAME")
	}
	return nil
}

// RedisAddr returns host:port for the Redis client.
func (r RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
