package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/snarg/turngap/internal/analysis"
)

const defaultAssemblyAIBaseURL = "https://api.assemblyai.com"

// AssemblyAIClient calls the AssemblyAI transcript API with speaker
// diarization enabled. Implements the Provider interface.
//
// The API is asynchronous: upload the audio, create a transcript job, then
// poll until the job reaches a terminal status.
type AssemblyAIClient struct {
	baseURL      string
	apiKey       string
	pollInterval time.Duration
	client       *http.Client
}

// assemblyaiTranscriptRequest is the job-creation body.
type assemblyaiTranscriptRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
	LanguageCode  string `json:"language_code,omitempty"`
}

// assemblyaiTranscript is the transcript resource returned by the API.
type assemblyaiTranscript struct {
	ID         string                `json:"id"`
	Status     string                `json:"status"` // queued, processing, completed, error
	Error      string                `json:"error"`
	Utterances []assemblyaiUtterance `json:"utterances"`
}

// assemblyaiUtterance is one diarized speaker turn. Start and End are
// milliseconds.
type assemblyaiUtterance struct {
	Speaker string `json:"speaker"`
	Start   int64  `json:"start"`
	End     int64  `json:"end"`
	Text    string `json:"text"`
}

// NewAssemblyAIClient creates an AssemblyAI STT client. baseURL may be empty
// to use the public API; pollInterval controls how often job status is
// checked; timeout bounds each individual HTTP request, not the whole job.
func NewAssemblyAIClient(baseURL, apiKey string, pollInterval, timeout time.Duration) *AssemblyAIClient {
	if baseURL == "" {
		baseURL = defaultAssemblyAIBaseURL
	}
	if pollInterval <= 0 {
		pollInterval = 3 * time.Second
	}
	return &AssemblyAIClient{
		baseURL:      baseURL,
		apiKey:       apiKey,
		pollInterval: pollInterval,
		client:       &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (c *AssemblyAIClient) Name() string { return "assemblyai" }

// Model returns the model identifier.
func (c *AssemblyAIClient) Model() string { return "universal" }

// Transcribe uploads the audio file, submits a diarization job, and polls it
// to completion. A job the API marks "error" returns a Result with
// StatusError, not a Go error; the batch layer decides what to do with it.
func (c *AssemblyAIClient) Transcribe(ctx context.Context, audioPath string, opts Opts) (*Result, error) {
	audioURL, err := c.upload(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	id, err := c.submit(ctx, audioURL, opts)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}

	return c.poll(ctx, id)
}

// upload sends the raw audio bytes and returns the temporary audio URL.
func (c *AssemblyAIClient) upload(ctx context.Context, audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", f)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	var out struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.UploadURL == "" {
		return "", fmt.Errorf("upload response missing upload_url")
	}
	return out.UploadURL, nil
}

// submit creates the transcript job and returns its ID.
func (c *AssemblyAIClient) submit(ctx context.Context, audioURL string, opts Opts) (string, error) {
	body, err := json.Marshal(assemblyaiTranscriptRequest{
		AudioURL:      audioURL,
		SpeakerLabels: true,
		LanguageCode:  opts.Language,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	var out assemblyaiTranscript
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", fmt.Errorf("transcript response missing id")
	}
	return out.ID, nil
}

// poll checks job status until it is terminal or ctx is done.
func (c *AssemblyAIClient) poll(ctx context.Context, id string) (*Result, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/transcript/"+id, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", c.apiKey)

		var tr assemblyaiTranscript
		if err := c.do(req, &tr); err != nil {
			return nil, err
		}

		switch tr.Status {
		case "completed":
			return &Result{
				Status:     StatusCompleted,
				Utterances: convertUtterances(tr.Utterances),
			}, nil
		case "error":
			return &Result{Status: StatusError, ErrorDetail: tr.Error}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("transcript %s still %q: %w", id, tr.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}

// do executes req and decodes the JSON response into out.
func (c *AssemblyAIClient) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("assemblyai request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("assemblyai API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func convertUtterances(in []assemblyaiUtterance) []analysis.Utterance {
	if len(in) == 0 {
		return nil
	}
	out := make([]analysis.Utterance, len(in))
	for i, u := range in {
		out[i] = analysis.Utterance{
			Speaker: u.Speaker,
			StartMs: u.Start,
			EndMs:   u.End,
			Text:    u.Text,
		}
	}
	return out
}
