package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// fakeAssemblyAI serves the three-endpoint upload/submit/poll flow.
type fakeAssemblyAI struct {
	t          *testing.T
	finalJSON  string // transcript body once the job is terminal
	pollsUntil int32  // number of "processing" polls before the terminal body
	polls      atomic.Int32
	gotKey     atomic.Value // last Authorization header seen
}

func (f *fakeAssemblyAI) handler() http.Handler {
	// Method-qualified ServeMux patterns ("POST /v2/upload") need Go 1.22+;
	// check the method by hand so the fake also works on Go 1.21.
	requireMethod := func(method string, h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				http.NotFound(w, r)
				return
			}
			h(w, r)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/upload", requireMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		f.gotKey.Store(r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"upload_url": "https://cdn.test/audio/abc"})
	}))
	mux.HandleFunc("/v2/transcript", requireMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		var req assemblyaiTranscriptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			f.t.Errorf("decode submit body: %v", err)
		}
		if !req.SpeakerLabels {
			f.t.Error("submit request should enable speaker_labels")
		}
		if req.AudioURL != "https://cdn.test/audio/abc" {
			f.t.Errorf("audio_url = %q, want uploaded URL", req.AudioURL)
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "tr_123", "status": "queued"})
	}))
	mux.HandleFunc("/v2/transcript/tr_123", requireMethod(http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
		if f.polls.Add(1) <= f.pollsUntil {
			json.NewEncoder(w).Encode(map[string]string{"id": "tr_123", "status": "processing"})
			return
		}
		w.Write([]byte(f.finalJSON))
	}))
	return mux
}

func writeTempAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "call.mp3")
	if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAssemblyAI_CompletedJob(t *testing.T) {
	fake := &fakeAssemblyAI{
		t:          t,
		pollsUntil: 2,
		finalJSON: `{"id":"tr_123","status":"completed","utterances":[
			{"speaker":"A","start":0,"end":1000,"text":"hola"},
			{"speaker":"B","start":900,"end":1800,"text":"buenas"}
		]}`,
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewAssemblyAIClient(srv.URL, "test-key", 10*time.Millisecond, 5*time.Second)

	res, err := c.Transcribe(context.Background(), writeTempAudio(t), Opts{Language: "es"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if !res.Completed() {
		t.Fatalf("Status = %q, want completed", res.Status)
	}
	if len(res.Utterances) != 2 {
		t.Fatalf("utterances = %d, want 2", len(res.Utterances))
	}
	if u := res.Utterances[0]; u.Speaker != "A" || u.StartMs != 0 || u.EndMs != 1000 || u.Text != "hola" {
		t.Errorf("utterance 0 = %+v", u)
	}
	if got := fake.gotKey.Load(); got != "test-key" {
		t.Errorf("Authorization = %v, want test-key", got)
	}
	if fake.polls.Load() < 3 {
		t.Errorf("polls = %d, want at least 3", fake.polls.Load())
	}
}

func TestAssemblyAI_FailedJobIsResultNotError(t *testing.T) {
	fake := &fakeAssemblyAI{
		t:         t,
		finalJSON: `{"id":"tr_123","status":"error","error":"audio too short"}`,
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewAssemblyAIClient(srv.URL, "test-key", 10*time.Millisecond, 5*time.Second)

	res, err := c.Transcribe(context.Background(), writeTempAudio(t), Opts{})
	if err != nil {
		t.Fatalf("Transcribe: %v (provider failure should be a Result, not an error)", err)
	}
	if res.Completed() {
		t.Error("failed job reported as completed")
	}
	if res.Status != StatusError {
		t.Errorf("Status = %q, want error", res.Status)
	}
	if res.ErrorDetail != "audio too short" {
		t.Errorf("ErrorDetail = %q, want provider message", res.ErrorDetail)
	}
}

func TestAssemblyAI_PollRespectsContext(t *testing.T) {
	fake := &fakeAssemblyAI{
		t:          t,
		pollsUntil: 1 << 30, // never terminal
		finalJSON:  `{}`,
	}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewAssemblyAIClient(srv.URL, "test-key", 5*time.Millisecond, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Transcribe(ctx, writeTempAudio(t), Opts{})
	if err == nil {
		t.Fatal("expected error when job never completes before ctx deadline")
	}
}

func TestAssemblyAI_HTTPErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewAssemblyAIClient(srv.URL, "bogus", 10*time.Millisecond, 5*time.Second)

	_, err := c.Transcribe(context.Background(), writeTempAudio(t), Opts{})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
