package transcribe

import (
	"context"

	"github.com/snarg/turngap/internal/analysis"
)

// Provider is the interface for diarizing speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts Opts) (*Result, error)
	Name() string  // "assemblyai"
	Model() string // model identifier for logs
}

// Opts are per-request options for a transcription job.
type Opts struct {
	Language string // ISO-639 code; provider default when empty
}

// Status is the state of a transcription job as reported by the provider.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// Result is the common diarized transcription outcome from any provider.
// A transport-level problem is a Go error; a job the provider itself rejects
// comes back as a Result with StatusError and ErrorDetail set. Callers only
// consume Utterances when Completed reports true.
type Result struct {
	Status      Status
	Utterances  []analysis.Utterance
	ErrorDetail string
}

// Completed reports whether the job finished with a usable utterance list.
func (r *Result) Completed() bool {
	return r.Status == StatusCompleted
}
