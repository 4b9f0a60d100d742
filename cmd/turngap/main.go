package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/turngap/internal/api"
	"github.com/snarg/turngap/internal/batch"
	"github.com/snarg/turngap/internal/config"
	"github.com/snarg/turngap/internal/database"
	"github.com/snarg/turngap/internal/storage"
	"github.com/snarg/turngap/internal/transcribe"
)

var version = "dev"

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "audio folder to watch (overrides AUDIO_DIR)")
	flag.StringVar(&overrides.OutputDir, "output-dir", "", "report output folder (overrides OUTPUT_DIR)")
	flag.StringVar(&overrides.Language, "language", "", "transcription language code (overrides LANGUAGE_CODE)")
	flag.IntVar(&overrides.Workers, "workers", 0, "analysis worker count (overrides WORKERS)")
	flag.Parse()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	// Logger
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("turngap starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database (optional)
	var db *database.DB
	if cfg.DatabaseURL != "" {
		dbLog := log.With().Str("component", "database").Logger()
		db, err = database.Connect(ctx, cfg.DatabaseURL, dbLog)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
	} else {
		log.Info().Msg("DATABASE_URL not set, summary persistence disabled")
	}

	// Report store (local, optionally mirrored to S3)
	store, err := storage.New(cfg.S3, cfg.OutputDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize report storage")
	}
	log.Info().Str("type", store.Type()).Str("output_dir", cfg.OutputDir).Msg("report storage ready")

	// Transcription provider
	provider := transcribe.NewAssemblyAIClient(
		cfg.AssemblyAIBaseURL, cfg.AssemblyAIAPIKey,
		cfg.PollInterval, cfg.RequestTimeout,
	)
	log.Info().Str("provider", provider.Name()).Str("model", provider.Model()).Str("language", cfg.LanguageCode).Msg("transcription provider ready")
	if err := cfg.RequireAPIKey(); err != nil {
		log.Warn().Err(err).Msg("provider key missing, analysis requests will fail")
	}

	var sink batch.SummarySink
	if db != nil {
		sink = db
	}

	// Upload batches: summaries only, turn tables are not worth keeping for
	// ad hoc API calls.
	uploadRunner := batch.NewRunner(provider, nil, sink, batch.Options{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		Language:    cfg.LanguageCode,
		Source:      "upload",
		FileTimeout: cfg.FileTimeout,
	}, log.With().Str("component", "upload-runner").Logger())

	// Watch mode (optional): long-running pool fed by the folder watcher,
	// with full per-file turn tables.
	var watchRunner *batch.Runner
	var watcher *batch.Watcher
	if cfg.WatchDir {
		watchRunner = batch.NewRunner(provider, store, sink, batch.Options{
			Workers:       cfg.Workers,
			QueueSize:     cfg.QueueSize,
			Language:      cfg.LanguageCode,
			Source:        "watch",
			WriteTurnCSVs: true,
			FileTimeout:   cfg.FileTimeout,
		}, log.With().Str("component", "watch-runner").Logger())
		watchRunner.Start()

		watcher = batch.NewWatcher(watchRunner, cfg.AudioDir, log)
		if err := watcher.Start(); err != nil {
			log.Fatal().Err(err).Str("audio_dir", cfg.AudioDir).Msg("failed to start audio folder watcher")
		}
	}

	// HTTP server
	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, db, uploadRunner, watchRunner, watcher, version, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	if watcher != nil {
		watcher.Stop()
	}
	if watchRunner != nil {
		watchRunner.Stop()
	}

	log.Info().Msg("turngap stopped")
}
