package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration for both the service and the batch CLI.
// The core analysis engine takes no configuration; everything here belongs to
// the collaborators around it (provider, folders, HTTP, persistence).
type Config struct {
	// Transcription provider
	AssemblyAIAPIKey  string        `env:"ASSEMBLYAI_API_KEY"`
	AssemblyAIBaseURL string        `env:"ASSEMBLYAI_BASE_URL"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"3s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"2m"`
	FileTimeout       time.Duration `env:"FILE_TIMEOUT" envDefault:"15m"`
	LanguageCode      string        `env:"LANGUAGE_CODE" envDefault:"es"`

	// Folders
	AudioDir  string `env:"AUDIO_DIR" envDefault:"./audios"`
	OutputDir string `env:"OUTPUT_DIR" envDefault:"./outputs"`
	WatchDir  bool   `env:"WATCH_AUDIO_DIR" envDefault:"false"`

	// Batch execution
	Workers   int `env:"WORKERS" envDefault:"4"`
	QueueSize int `env:"QUEUE_SIZE" envDefault:"64"`

	// HTTP server
	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5m"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	MaxUploadMB  int64         `env:"MAX_UPLOAD_MB" envDefault:"512"`
	AuthToken    string        `env:"AUTH_TOKEN"`

	// Optional summary persistence
	DatabaseURL string `env:"DATABASE_URL"`

	S3 S3Config

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// S3Config configures the optional report archive bucket.
type S3Config struct {
	Bucket    string `env:"S3_BUCKET"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
	Prefix    string `env:"S3_PREFIX"`
}

// Enabled reports whether S3 archiving is configured.
func (c S3Config) Enabled() bool { return c.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile   string
	HTTPAddr  string
	LogLevel  string
	AudioDir  string
	OutputDir string
	Language  string
	Workers   int
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}
	if overrides.OutputDir != "" {
		cfg.OutputDir = overrides.OutputDir
	}
	if overrides.Language != "" {
		cfg.LanguageCode = overrides.Language
	}
	if overrides.Workers > 0 {
		cfg.Workers = overrides.Workers
	}

	if cfg.Workers < 1 {
		return nil, fmt.Errorf("WORKERS must be >= 1, got %d", cfg.Workers)
	}

	return cfg, nil
}

// RequireAPIKey returns an error naming the env var when no provider key is
// configured. Called at the points that actually reach the provider, so the
// service can still start (and serve health) without one.
func (c *Config) RequireAPIKey() error {
	if strings.TrimSpace(c.AssemblyAIAPIKey) == "" {
		return fmt.Errorf("ASSEMBLYAI_API_KEY is not set")
	}
	return nil
}
