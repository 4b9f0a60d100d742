package database

import (
	"context"
	"fmt"
	"time"

	"github.com/snarg/turngap/internal/analysis"
)

// SummaryRow is a persisted per-file Summary Record with its run context.
type SummaryRow struct {
	ID               int64     `json:"id"`
	File             string    `json:"file"`
	Turns            int       `json:"turns"`
	SpeakerChanges   int       `json:"speaker_changes"`
	AvgGapMs         *float64  `json:"avg_gap_ms,omitempty"`
	MedianGapMs      *float64  `json:"median_gap_ms,omitempty"`
	P95GapMs         *float64  `json:"p95_gap_ms,omitempty"`
	OverlapRate      *float64  `json:"overlap_rate,omitempty"`
	AvgPositiveGapMs *float64  `json:"avg_positive_gap_ms,omitempty"`
	Source           string    `json:"source"` // "batch", "upload", "watch"
	CreatedAt        time.Time `json:"created_at"`
}

func (db *DB) ensureSchema(ctx context.Context) error {
	_, err := db.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS summaries (
			id                  BIGSERIAL PRIMARY KEY,
			file                TEXT NOT NULL,
			turns               INTEGER NOT NULL,
			speaker_changes     INTEGER NOT NULL,
			avg_gap_ms          DOUBLE PRECISION,
			median_gap_ms       DOUBLE PRECISION,
			p95_gap_ms          DOUBLE PRECISION,
			overlap_rate        DOUBLE PRECISION,
			avg_positive_gap_ms DOUBLE PRECISION,
			source              TEXT NOT NULL DEFAULT 'batch',
			created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS summaries_created_at_idx ON summaries (created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// InsertSummary persists one file's Summary Record.
func (db *DB) InsertSummary(ctx context.Context, s analysis.Summary, source string) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO summaries (
			file, turns, speaker_changes,
			avg_gap_ms, median_gap_ms, p95_gap_ms,
			overlap_rate, avg_positive_gap_ms, source
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		s.File, s.Turns, s.SpeakerChanges,
		s.AvgGapMs, s.MedianGapMs, s.P95GapMs,
		s.OverlapRate, s.AvgPositiveGapMs, source,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert summary: %w", err)
	}
	return id, nil
}

// ListSummaries returns the most recent persisted summaries, newest first.
func (db *DB) ListSummaries(ctx context.Context, limit int) ([]SummaryRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, file, turns, speaker_changes,
			avg_gap_ms, median_gap_ms, p95_gap_ms,
			overlap_rate, avg_positive_gap_ms,
			source, created_at
		FROM summaries
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SummaryRow
	for rows.Next() {
		var r SummaryRow
		if err := rows.Scan(
			&r.ID, &r.File, &r.Turns, &r.SpeakerChanges,
			&r.AvgGapMs, &r.MedianGapMs, &r.P95GapMs,
			&r.OverlapRate, &r.AvgPositiveGapMs,
			&r.Source, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if result == nil {
		result = []SummaryRow{}
	}
	return result, rows.Err()
}
