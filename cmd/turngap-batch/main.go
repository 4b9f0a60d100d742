// Command turngap-batch analyzes every audio file in a folder and writes the
// per-file turn tables plus the batch summary table to the output folder.
package main

import (
	"bytes"
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/snarg/turngap/internal/batch"
	"github.com/snarg/turngap/internal/config"
	"github.com/snarg/turngap/internal/database"
	"github.com/snarg/turngap/internal/report"
	"github.com/snarg/turngap/internal/storage"
	"github.com/snarg/turngap/internal/transcribe"
)

const summaryReportName = "summary_all_audios.csv"

var version = "dev"

func main() {
	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file (default .env)")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "audio folder to analyze (overrides AUDIO_DIR)")
	flag.StringVar(&overrides.OutputDir, "output-dir", "", "report output folder (overrides OUTPUT_DIR)")
	flag.StringVar(&overrides.Language, "language", "", "transcription language code (overrides LANGUAGE_CODE)")
	flag.IntVar(&overrides.Workers, "workers", 0, "analysis worker count (overrides WORKERS)")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stderr).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Str("audio_dir", cfg.AudioDir).Msg("turngap-batch starting")

	if err := cfg.RequireAPIKey(); err != nil {
		log.Fatal().Err(err).Msg("transcription provider is not configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files, err := batch.ScanDir(cfg.AudioDir)
	if err != nil {
		log.Fatal().Err(err).Str("audio_dir", cfg.AudioDir).Msg("failed to scan audio folder")
	}
	if len(files) == 0 {
		log.Fatal().Str("audio_dir", cfg.AudioDir).Msg("no audio files found")
	}
	log.Info().Int("files", len(files)).Msg("audio files found")

	store, err := storage.New(cfg.S3, cfg.OutputDir, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize report storage")
	}

	var sink batch.SummarySink
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL, log.With().Str("component", "database").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer db.Close()
		sink = db
	}

	provider := transcribe.NewAssemblyAIClient(
		cfg.AssemblyAIBaseURL, cfg.AssemblyAIAPIKey,
		cfg.PollInterval, cfg.RequestTimeout,
	)
	log.Info().Str("provider", provider.Name()).Str("model", provider.Model()).Str("language", cfg.LanguageCode).Msg("transcription provider ready")

	runner := batch.NewRunner(provider, store, sink, batch.Options{
		Workers:       cfg.Workers,
		QueueSize:     cfg.QueueSize,
		Language:      cfg.LanguageCode,
		Source:        "batch",
		WriteTurnCSVs: true,
		FileTimeout:   cfg.FileTimeout,
	}, log)

	summaries, err := runner.Run(ctx, files)
	if err != nil {
		log.Fatal().Err(err).Msg("batch interrupted")
	}

	stats := runner.Stats()
	log.Info().
		Int64("completed", stats.Completed).
		Int64("failed", stats.Failed).
		Int64("skipped", stats.Skipped).
		Msg("batch finished")

	if len(summaries) == 0 {
		log.Fatal().Msg("no file produced a summary")
	}

	var buf bytes.Buffer
	if err := report.WriteSummaries(&buf, summaries); err != nil {
		log.Fatal().Err(err).Msg("failed to render summary table")
	}
	if err := store.Save(ctx, summaryReportName, buf.Bytes(), "text/csv"); err != nil {
		log.Fatal().Err(err).Msg("failed to save summary table")
	}
	log.Info().Str("path", store.LocalPath(summaryReportName)).Msg("summary table written")

	if stats.Failed > 0 {
		os.Exit(1)
	}
}
