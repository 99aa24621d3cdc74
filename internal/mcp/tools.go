package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/docsearch/internal/auth"
	"github.com/dshills/docsearch/internal/backfill"
	"github.com/dshills/docsearch/internal/documents"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeNotFound             = -32001 // Document does not exist
	ErrorCodeBackfillRunning      = -32002 // Another backfill pass is already running
	ErrorCodeEmbeddingUnavailable = -32003 // Query could not be embedded
	ErrorCodeEmptyQuery           = -32004 // Query parameter is empty
	ErrorCodeUnauthorized         = -32005 // Missing or wrong API key
	ErrorCodeRateLimited          = -32006 // Caller exceeded the request window
	ErrorCodeAuthNotConfigured    = -32007 // Server has no API key configured
)

// handleCreateDocument handles the create_document tool invocation
func (s *Server) handleCreateDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	title := getStringDefault(args, "title", "")
	content := getStringDefault(args, "content", "")

	doc, err := s.docs.Create(ctx, title, content)
	if err != nil {
		return nil, serviceError(err)
	}

	response := map[string]interface{}{
		"id":            doc.ID,
		"title":         doc.Title,
		"content":       doc.Content,
		"has_embedding": doc.HasEmbedding,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := getStringDefault(args, "query", "")
	userID := getStringDefault(args, "user_id", "")

	resp, err := s.docs.Search(ctx, query, userID)
	if errors.Is(err, documents.ErrValidation) {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	if err != nil {
		return nil, serviceError(err)
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		item := map[string]interface{}{
			"id":      r.ID,
			"title":   r.Title,
			"content": r.Content,
		}
		if r.Score != nil {
			item["score"] = *r.Score
		}
		results[i] = item
	}

	response := map[string]interface{}{
		"results": results,
		"mode":    string(resp.Mode),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleFillEmbeddings handles the fill_embeddings tool invocation
func (s *Server) handleFillEmbeddings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	if err := s.auth.Check(getStringDefault(args, "api_key", "")); err != nil {
		if errors.Is(err, auth.ErrKeyNotConfigured) {
			return nil, newMCPError(ErrorCodeAuthNotConfigured, err.Error(), nil)
		}
		return nil, newMCPError(ErrorCodeUnauthorized, err.Error(), nil)
	}

	limit := getIntDefault(args, "limit", 0)
	if limit < 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be non-negative", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	batchSize := getIntDefault(args, "batch_size", s.batchSize)
	if batchSize < 1 {
		return nil, newMCPError(ErrorCodeInvalidParams, "batch_size must be positive", map[string]interface{}{
			"param": "batch_size",
			"value": batchSize,
		})
	}

	result, err := s.reconcile.TryReconcile(ctx, 0, batchSize, limit)
	if errors.Is(err, backfill.ErrPassRunning) {
		return nil, newMCPError(ErrorCodeBackfillRunning, "a backfill pass is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "backfill failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"success_count": result.SuccessCount,
		"failed_ids":    result.FailedIDs,
		"message":       result.Message(),
		"duration_ms":   result.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.stats.GetStats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"statistics": map[string]interface{}{
			"documents":          stats.Documents,
			"embedded_documents": stats.EmbeddedDocuments,
			"missing_embeddings": stats.MissingEmbeddings,
			"audit_logs":         stats.AuditLogs,
			"database_size_mb":   fmt.Sprintf("%.2f", stats.DatabaseSizeMB),
		},
		"schema_version": stats.SchemaVersion,
		"build_mode":     s.buildMode,
	}
	if s.embedder != nil {
		response["embedding"] = map[string]interface{}{
			"provider":  s.embedder.Provider(),
			"model":     s.embedder.Model(),
			"dimension": s.embedder.Dimension(),
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// serviceError maps document service failures to MCP errors
func serviceError(err error) error {
	switch {
	case errors.Is(err, documents.ErrValidation):
		return newMCPError(ErrorCodeInvalidParams, err.Error(), nil)
	case errors.Is(err, documents.ErrNotFound):
		return newMCPError(ErrorCodeNotFound, err.Error(), nil)
	case errors.Is(err, documents.ErrEmbeddingUnavailable):
		return newMCPError(ErrorCodeEmbeddingUnavailable, "embedding service unavailable", nil)
	default:
		return newMCPError(ErrorCodeInternalError, "request failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
