package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/turngap/internal/config"
)

// ReportStore abstracts where rendered CSV reports land.
type ReportStore interface {
	// Save stores a rendered report under name (e.g. "call1_turns.csv").
	Save(ctx context.Context, name string, data []byte, contentType string) error

	// LocalPath returns the on-disk path for a report, or "" if the store
	// has no local copy.
	LocalPath(name string) string

	// Type returns "local", "s3", or "archive".
	Type() string
}

// New creates a ReportStore from config: a local output directory, mirrored
// to S3 when a bucket is configured. Returns an error if S3 is configured
// but unreachable.
func New(cfg config.S3Config, outputDir string, log zerolog.Logger) (ReportStore, error) {
	local := NewLocalStore(outputDir)
	if !cfg.Enabled() {
		return local, nil
	}

	s3store, err := NewS3Store(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("S3 init failed: %w", err)
	}

	// Startup validation: verify credentials and bucket access.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s3store.HeadBucket(ctx); err != nil {
		return nil, fmt.Errorf("S3 startup check failed (bucket=%q endpoint=%q): %w",
			cfg.Bucket, cfg.Endpoint, err)
	}
	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", cfg.Endpoint).Msg("S3 connection verified")

	return NewArchiveStore(local, s3store, log), nil
}

// ArchiveStore writes reports locally and mirrors them to S3. A failed
// mirror is logged, not fatal: the local copy is the source of truth.
type ArchiveStore struct {
	local *LocalStore
	s3    *S3Store
	log   zerolog.Logger
}

// NewArchiveStore creates a local-plus-S3 report store.
func NewArchiveStore(local *LocalStore, s3 *S3Store, log zerolog.Logger) *ArchiveStore {
	return &ArchiveStore{local: local, s3: s3, log: log.With().Str("component", "archive-store").Logger()}
}

func (s *ArchiveStore) Save(ctx context.Context, name string, data []byte, contentType string) error {
	if err := s.local.Save(ctx, name, data, contentType); err != nil {
		return err
	}
	if err := s.s3.Save(ctx, name, data, contentType); err != nil {
		s.log.Warn().Err(err).Str("name", name).Msg("S3 mirror failed, local copy kept")
	}
	return nil
}

func (s *ArchiveStore) LocalPath(name string) string { return s.local.LocalPath(name) }

func (s *ArchiveStore) Type() string { return "archive" }
