package batch

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/turngap/internal/analysis"
	"github.com/snarg/turngap/internal/metrics"
	"github.com/snarg/turngap/internal/report"
	"github.com/snarg/turngap/internal/storage"
	"github.com/snarg/turngap/internal/transcribe"
)

// SummarySink persists Summary Records as files complete. Nil-able; the
// database satisfies it when persistence is configured.
type SummarySink interface {
	InsertSummary(ctx context.Context, s analysis.Summary, source string) (int64, error)
}

// Options configures a batch Runner.
type Options struct {
	Workers       int
	QueueSize     int
	Language      string
	Source        string // metrics/persistence label: "batch", "upload", "watch"
	WriteTurnCSVs bool   // write per-file <stem>_turns.csv to the store
	FileTimeout   time.Duration
}

// QueueStats reports the state of the long-running analysis queue.
type QueueStats struct {
	Pending   int   `json:"pending"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Skipped   int64 `json:"skipped"`
}

// Runner executes the per-file pipeline: transcribe, normalize, build turns,
// summarize, emit reports. Files are fully independent; one failure never
// aborts the rest of a batch.
type Runner struct {
	provider transcribe.Provider
	store    storage.ReportStore // nil: no turn CSVs
	sink     SummarySink         // nil: no persistence
	opts     Options
	log      zerolog.Logger

	jobs   chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
}

// NewRunner creates a batch runner. store and sink may be nil.
func NewRunner(provider transcribe.Provider, store storage.ReportStore, sink SummarySink, opts Options, log zerolog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 64
	}
	if opts.Source == "" {
		opts.Source = "batch"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		provider: provider,
		store:    store,
		sink:     sink,
		opts:     opts,
		log:      log,
		jobs:     make(chan string, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the long-running worker goroutines for watch-mode ingestion.
// One-shot batches use Run instead and do not need Start.
func (r *Runner) Start() {
	for i := 0; i < r.opts.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.log.Info().Int("workers", r.opts.Workers).Int("queue_size", r.opts.QueueSize).Msg("analysis worker pool started")
}

// Stop drains the queue and waits for in-flight files to finish.
func (r *Runner) Stop() {
	close(r.jobs)
	r.wg.Wait()
	r.cancel()
	r.log.Info().
		Int64("completed", r.completed.Load()).
		Int64("failed", r.failed.Load()).
		Int64("skipped", r.skipped.Load()).
		Msg("analysis worker pool stopped")
}

// Enqueue adds a file to the queue. Returns false if the queue is full.
func (r *Runner) Enqueue(path string) bool {
	select {
	case r.jobs <- path:
		return true
	default:
		return false
	}
}

// Stats returns current queue statistics.
func (r *Runner) Stats() QueueStats {
	return QueueStats{
		Pending:   len(r.jobs),
		Completed: r.completed.Load(),
		Failed:    r.failed.Load(),
		Skipped:   r.skipped.Load(),
	}
}

func (r *Runner) worker(id int) {
	defer r.wg.Done()
	log := r.log.With().Int("worker", id).Logger()

	for path := range r.jobs {
		if _, err := r.processFile(r.ctx, log, path); err != nil {
			log.Warn().Err(err).Str("file", filepath.Base(path)).Msg("analysis failed")
		}
	}
}

// Run processes the given audio files with unrestricted parallelism (capped
// at Workers) and returns their summaries in input order. Files that fail or
// yield no utterances are logged, counted, and omitted from the result; Run
// itself only fails when ctx is canceled before all files are handled.
func (r *Runner) Run(ctx context.Context, files []string) ([]analysis.Summary, error) {
	results := make([]*analysis.Summary, len(files))

	type job struct {
		idx  int
		path string
	}
	work := make(chan job)
	var wg sync.WaitGroup

	workers := r.opts.Workers
	if workers > len(files) {
		workers = len(files)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range work {
				log := r.log.With().Str("file", filepath.Base(j.path)).Logger()
				sum, err := r.processFile(ctx, log, j.path)
				if err != nil {
					log.Warn().Err(err).Msg("analysis failed, continuing with remaining files")
					continue
				}
				results[j.idx] = sum
			}
		}()
	}

	var ctxErr error
	for i, f := range files {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
		case work <- job{idx: i, path: f}:
			continue
		}
		break
	}
	close(work)
	wg.Wait()

	summaries := make([]analysis.Summary, 0, len(files))
	for _, s := range results {
		if s != nil {
			summaries = append(summaries, *s)
		}
	}
	if ctxErr != nil {
		return summaries, fmt.Errorf("batch interrupted: %w", ctxErr)
	}
	return summaries, nil
}

// processFile runs one file end to end. A nil, nil return means the file was
// skipped (no utterances).
func (r *Runner) processFile(ctx context.Context, log zerolog.Logger, path string) (*analysis.Summary, error) {
	if r.opts.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.FileTimeout)
		defer cancel()
	}

	start := time.Now()
	res, err := r.provider.Transcribe(ctx, path, transcribe.Opts{Language: r.opts.Language})
	if err != nil {
		r.failed.Add(1)
		metrics.FilesFailedTotal.WithLabelValues(r.opts.Source).Inc()
		return nil, fmt.Errorf("%s: %w", r.provider.Name(), err)
	}
	metrics.TranscribeDuration.Observe(time.Since(start).Seconds())

	if !res.Completed() {
		r.failed.Add(1)
		metrics.FilesFailedTotal.WithLabelValues(r.opts.Source).Inc()
		return nil, fmt.Errorf("%s: transcription %s: %s", r.provider.Name(), res.Status, res.ErrorDetail)
	}

	if len(res.Utterances) == 0 {
		r.skipped.Add(1)
		metrics.FilesSkippedTotal.WithLabelValues(r.opts.Source).Inc()
		log.Info().Msg("no utterances in transcript, skipping file")
		return nil, nil
	}

	file := filepath.Base(path)
	turns, summary := analysis.Analyze(file, res.Utterances)
	metrics.TurnsTotal.Add(float64(len(turns)))

	if r.opts.WriteTurnCSVs && r.store != nil {
		var buf bytes.Buffer
		if err := report.WriteTurns(&buf, turns); err != nil {
			r.failed.Add(1)
			metrics.FilesFailedTotal.WithLabelValues(r.opts.Source).Inc()
			return nil, fmt.Errorf("render turn table: %w", err)
		}
		if err := r.store.Save(ctx, TurnReportName(path), buf.Bytes(), "text/csv"); err != nil {
			r.failed.Add(1)
			metrics.FilesFailedTotal.WithLabelValues(r.opts.Source).Inc()
			return nil, fmt.Errorf("save turn table: %w", err)
		}
	}

	if r.sink != nil {
		if _, err := r.sink.InsertSummary(ctx, summary, r.opts.Source); err != nil {
			// The analysis itself succeeded; keep the summary and move on.
			log.Warn().Err(err).Msg("summary persistence failed")
		}
	}

	r.completed.Add(1)
	metrics.FilesProcessedTotal.WithLabelValues(r.opts.Source).Inc()
	log.Debug().
		Int("turns", summary.Turns).
		Int("speaker_changes", summary.SpeakerChanges).
		Dur("elapsed", time.Since(start)).
		Msg("file analyzed")

	return &summary, nil
}
