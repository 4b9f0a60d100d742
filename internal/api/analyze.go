package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/hlog"
	"github.com/snarg/turngap/internal/batch"
	"github.com/snarg/turngap/internal/config"
	"github.com/snarg/turngap/internal/report"
)

// AnalyzeHandler accepts a multipart batch of audio files, runs the full
// pipeline on them, and returns the batch summary table.
type AnalyzeHandler struct {
	cfg    *config.Config
	runner *batch.Runner
}

func NewAnalyzeHandler(cfg *config.Config, runner *batch.Runner) *AnalyzeHandler {
	return &AnalyzeHandler{cfg: cfg, runner: runner}
}

// ServeHTTP handles POST /api/v1/analyze. Files are uploaded under the
// multipart field "files". The response is the summary table as a CSV
// attachment, or JSON records with ?format=json.
func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	maxBytes := h.cfg.MaxUploadMB << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteErrorDetail(w, http.StatusBadRequest, "invalid multipart request", err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		WriteError(w, http.StatusBadRequest, "no files uploaded, use multipart field 'files'")
		return
	}

	for _, fh := range headers {
		if !batch.IsSupportedAudio(fh.Filename) {
			WriteErrorDetail(w, http.StatusBadRequest,
				fmt.Sprintf("unsupported file type: %s", filepath.Base(fh.Filename)),
				"supported extensions: "+strings.Join(batch.SupportedExtensions(), ", "))
			return
		}
	}

	if err := h.cfg.RequireAPIKey(); err != nil {
		log.Error().Err(err).Msg("analyze request without provider credentials")
		WriteError(w, http.StatusInternalServerError, "transcription provider is not configured")
		return
	}

	dir, err := os.MkdirTemp("", "turngap-upload-*")
	if err != nil {
		log.Error().Err(err).Msg("create upload directory")
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer os.RemoveAll(dir)

	paths := make([]string, 0, len(headers))
	for _, fh := range headers {
		dst := filepath.Join(dir, filepath.Base(fh.Filename))
		if err := saveUpload(fh, dst); err != nil {
			log.Error().Err(err).Str("file", fh.Filename).Msg("spool upload")
			WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		paths = append(paths, dst)
	}

	summaries, err := h.runner.Run(r.Context(), paths)
	if err != nil {
		log.Warn().Err(err).Msg("analyze batch interrupted")
		WriteError(w, http.StatusServiceUnavailable, "analysis interrupted")
		return
	}
	if len(summaries) == 0 {
		WriteError(w, http.StatusBadRequest, "no valid audio data found in the uploaded files")
		return
	}

	log.Info().Int("files", len(paths)).Int("summaries", len(summaries)).Msg("batch analyzed")

	if r.URL.Query().Get("format") == "json" {
		WriteJSON(w, http.StatusOK, map[string]any{"summaries": summaries})
		return
	}

	var buf bytes.Buffer
	if err := report.WriteSummaries(&buf, summaries); err != nil {
		log.Error().Err(err).Msg("render summary table")
		WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="summary_all_audios.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
