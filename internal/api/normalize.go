package api

import (
	"errors"
	"net/http"

	"github.com/MikeSquared-Agency/kepler/internal/feedback"
	"github.com/MikeSquared-Agency/kepler/internal/normalize"
)

type normalizeRequest struct {
	Kind     string `json:"kind"`
	Format   string `json:"format"`
	SourceID string `json:"source_id"`
	Content  string `json:"content"`
}

// normalize handles POST /api/v1/feedback/normalize and returns the typed
// records without running an analysis.
func (s *Server) normalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	kind, err := feedback.ParseKind(req.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := normalize.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := normalize.Normalize([]byte(req.Content), format, kind, req.SourceID)
	var nerr *normalize.Error
	if errors.As(err, &nerr) {
		writeError(w, http.StatusUnprocessableEntity, nerr.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []feedback.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"kind":    kind,
		"count":   len(records),
		"records": records,
	})
}
