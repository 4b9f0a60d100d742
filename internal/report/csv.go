// Package report renders analysis records as CSV tables. The column orders
// are a compatibility contract with downstream consumers and must not change.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/snarg/turngap/internal/analysis"
)

// TurnHeader is the column order of the per-file turn table.
var TurnHeader = []string{
	"file", "turn_index", "speaker", "start_ms", "end_ms", "duration_ms",
	"text", "next_speaker", "next_start_ms", "gap_to_next_ms", "speaker_change",
}

// SummaryHeader is the column order of the batch summary table.
var SummaryHeader = []string{
	"file", "turns", "speaker_changes",
	"avg_gap_ms", "median_gap_ms", "p95_gap_ms",
	"overlap_rate", "avg_positive_gap_ms",
}

// WriteTurns writes one file's turn table, header included. Absent next_*
// fields and gaps serialize as empty strings; speaker_change as true/false.
func WriteTurns(w io.Writer, turns []analysis.Turn) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TurnHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, t := range turns {
		rec := []string{
			t.File,
			strconv.Itoa(t.TurnIndex),
			t.Speaker,
			strconv.FormatInt(t.StartMs, 10),
			strconv.FormatInt(t.EndMs, 10),
			strconv.FormatInt(t.DurationMs, 10),
			t.Text,
			stringOrEmpty(t.NextSpeaker),
			int64OrEmpty(t.NextStartMs),
			int64OrEmpty(t.GapToNextMs),
			strconv.FormatBool(t.SpeakerChange),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write turn %d: %w", t.TurnIndex, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteSummaries writes the batch summary table, header included. Absent
// statistics serialize as empty strings.
func WriteSummaries(w io.Writer, summaries []analysis.Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, s := range summaries {
		rec := []string{
			s.File,
			strconv.Itoa(s.Turns),
			strconv.Itoa(s.SpeakerChanges),
			floatOrEmpty(s.AvgGapMs),
			floatOrEmpty(s.MedianGapMs),
			floatOrEmpty(s.P95GapMs),
			floatOrEmpty(s.OverlapRate),
			floatOrEmpty(s.AvgPositiveGapMs),
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write summary for %s: %w", s.File, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func stringOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func int64OrEmpty(p *int64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(*p, 10)
}

func floatOrEmpty(p *float64) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}
