package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/dshills/docsearch/internal/auth"
	"github.com/dshills/docsearch/internal/backfill"
)

type createDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id,omitempty"`
}

type fillEmbeddingsResponse struct {
	SuccessCount int     `json:"success_count"`
	FailedIDs    []int64 `json:"failed_ids"`
	Message      string  `json:"message"`
}

type componentHealth struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentHealth `json:"components"`
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doc, err := s.docs.Create(r.Context(), req.Title, req.Content)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, codeValidation, "document id must be a positive integer")
		return
	}

	doc, err := s.docs.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.docs.Search(r.Context(), req.Query, req.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFillEmbeddings(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Check(r.Header.Get(s.keyHeader)); err != nil {
		switch {
		case errors.Is(err, auth.ErrKeyNotConfigured):
			writeError(w, r, http.StatusServiceUnavailable, codeNotConfigured, err.Error())
		default:
			writeError(w, r, http.StatusUnauthorized, codeUnauthorized, err.Error())
		}
		return
	}

	limit, ok := queryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	batchSize, ok := queryInt(w, r, "batch_size", s.batchSize)
	if !ok {
		return
	}
	if batchSize <= 0 {
		writeError(w, r, http.StatusBadRequest, codeValidation, "batch_size must be positive")
		return
	}

	result, err := s.reconcile.TryReconcile(r.Context(), 0, batchSize, limit)
	if errors.Is(err, backfill.ErrPassRunning) {
		writeError(w, r, http.StatusConflict, codeConflict, err.Error())
		return
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, codeBackfill, err.Error())
		return
	}

	failed := result.FailedIDs
	if failed == nil {
		failed = []int64{}
	}
	writeJSON(w, http.StatusOK, fillEmbeddingsResponse{
		SuccessCount: result.SuccessCount,
		FailedIDs:    failed,
		Message:      result.Message(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := healthResponse{Status: "healthy", Components: map[string]componentHealth{}}

	resp.Components["database"] = check(func() error {
		if err := s.health.Ping(ctx); err != nil {
			return err
		}
		return s.health.CheckVectorOperator(ctx)
	})
	resp.Components["embedding"] = check(func() error {
		return s.checkEmbedding(ctx)
	})

	status := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != "healthy" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (s *Server) checkEmbedding(ctx context.Context) error {
	if s.embedder == nil {
		return errors.New("no embedder configured")
	}
	_, err := s.embedder.Embed(ctx, "health check")
	return err
}

func check(fn func() error) componentHealth {
	if err := fn(); err != nil {
		return componentHealth{Status: "unhealthy", Error: err.Error()}
	}
	return componentHealth{Status: "healthy"}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, http.StatusBadRequest, codeValidation, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, defaultValue int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return defaultValue, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, r, http.StatusBadRequest, codeValidation, key+" must be a non-negative integer")
		return 0, false
	}
	return v, true
}
