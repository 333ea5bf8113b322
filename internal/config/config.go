package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
// A .env file in the working directory is loaded first when present.
type Config struct {
	DBPath          string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Surfline forecast API.
	SurflineBaseURL string
	SurflineTimeout time.Duration
	ForecastDays    int
	IntervalHours   int

	// Rewind scraper sidecar.
	ScraperBaseURL  string
	ScraperTimeout  time.Duration
	LookbackDays    int
	ScraperHeadless bool

	// Clip retrieval.
	VideoDir        string
	FFmpegPath      string
	VideoCRF        int
	MaxClipDuration time.Duration
	ClipEarlyWindow time.Duration

	// Optional forecast publishing. Empty KafkaBrokers disables it.
	KafkaBrokers   []string
	KafkaSinkTopic string

	// Serve-mode schedule.
	FetchInterval  time.Duration
	ScrapeInterval time.Duration
}

// PublishEnabled reports whether forecast records should also go to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from the environment, applying defaults where
// unset. A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:          envOrDefault("SQLITE_DB_PATH", "surf.db"),
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		SurflineBaseURL: envOrDefault("SURFLINE_BASE_URL", "https://services.surfline.com/kbyg/spots/forecasts"),
		ScraperBaseURL:  envOrDefault("SCRAPER_BASE_URL", "http://localhost:3000"),
		VideoDir:        envOrDefault("VIDEO_DIR", "videos"),
		FFmpegPath:      envOrDefault("FFMPEG_PATH", "ffmpeg"),
		KafkaBrokers:    parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic:  envOrDefault("KAFKA_SINK_TOPIC", "surf-forecasts"),
	}

	var err error
	if cfg.ShutdownTimeout, err = parseDuration("SHUTDOWN_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.SurflineTimeout, err = parseDuration("SURFLINE_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if cfg.ScraperTimeout, err = parseDuration("SCRAPER_TIMEOUT", "120s"); err != nil {
		return nil, err
	}
	if cfg.MaxClipDuration, err = parseDuration("MAX_CLIP_DURATION", "60s"); err != nil {
		return nil, err
	}
	if cfg.ClipEarlyWindow, err = parseDuration("CLIP_EARLY_WINDOW", "10m"); err != nil {
		return nil, err
	}
	if cfg.FetchInterval, err = parseDuration("FETCH_INTERVAL", "1h"); err != nil {
		return nil, err
	}
	if cfg.ScrapeInterval, err = parseDuration("SCRAPE_INTERVAL", "1h"); err != nil {
		return nil, err
	}

	if cfg.ForecastDays, err = parseInt("FORECAST_DAYS", 5); err != nil {
		return nil, err
	}
	if cfg.IntervalHours, err = parseInt("INTERVAL_HOURS", 1); err != nil {
		return nil, err
	}
	if cfg.LookbackDays, err = parseInt("LOOKBACK_DAYS", 1); err != nil {
		return nil, err
	}
	if cfg.VideoCRF, err = parseInt("VIDEO_CRF", 28); err != nil {
		return nil, err
	}

	cfg.ScraperHeadless = envOrDefault("SCRAPER_HEADLESS", "true") == "true"

	if cfg.ForecastDays > 16 {
		return nil, errors.New("FORECAST_DAYS must be at most 16")
	}
	if cfg.VideoCRF > 51 {
		return nil, errors.New("VIDEO_CRF must be at most 51")
	}
	if cfg.SurflineBaseURL == "" {
		return nil, errors.New("SURFLINE_BASE_URL is required")
	}
	if cfg.ScraperBaseURL == "" {
		return nil, errors.New("SCRAPER_BASE_URL is required")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", key)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
