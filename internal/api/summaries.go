package api

import (
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/snarg/turngap/internal/database"
)

// SummariesHandler lists persisted Summary Records, newest first.
type SummariesHandler struct {
	db *database.DB
}

func NewSummariesHandler(db *database.DB) *SummariesHandler {
	return &SummariesHandler{db: db}
}

// ServeHTTP handles GET /api/v1/summaries?limit=N.
func (h *SummariesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit, _ := QueryInt(r, "limit")

	rows, err := h.db.ListSummaries(r.Context(), limit)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list summaries")
		WriteError(w, http.StatusInternalServerError, "failed to list summaries")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"count":     len(rows),
		"summaries": rows,
	})
}
