package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/dshills/docsearch/internal/documents"
)

// Error codes returned in the "code" field
const (
	codeValidation        = "validation_error"
	codeNotFound          = "not_found"
	codeEmbedding         = "embedding_unavailable"
	codePersistence       = "persistence_error"
	codeSearchUnavailable = "search_unavailable"
	codeUnauthorized      = "unauthorized"
	codeNotConfigured     = "auth_not_configured"
	codeConflict          = "backfill_running"
	codeBackfill          = "backfill_failed"
	codeRateLimited       = "rate_limited"
	codeInternal          = "internal_error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Path    string `json:"path"`
	ErrorID string `json:"error_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code, Path: r.URL.Path})
}

// writeServiceError maps document service sentinels onto HTTP statuses
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, documents.ErrValidation):
		writeError(w, r, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, documents.ErrNotFound):
		writeError(w, r, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, documents.ErrEmbeddingUnavailable):
		writeError(w, r, http.StatusInternalServerError, codeEmbedding, "embedding service unavailable")
	case errors.Is(err, documents.ErrPersistence):
		writeError(w, r, http.StatusInternalServerError, codePersistence, "failed to persist request")
	case errors.Is(err, documents.ErrSearchUnavailable):
		writeError(w, r, http.StatusInternalServerError, codeSearchUnavailable, "search unavailable")
	default:
		log.Printf("api: unexpected error on %s: %v", r.URL.Path, err)
		writeError(w, r, http.StatusInternalServerError, codeInternal, "internal server error")
	}
}
