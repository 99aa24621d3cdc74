package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// createDocumentTool returns the tool definition for create_document
func createDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "create_document",
		Description: "Store a document and compute its embedding for semantic search",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Document title (1-512 characters)",
					"maxLength":   512,
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Document body text",
				},
			},
			Required: []string{"title", "content"},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Return the 3 documents closest to a natural language query, falling back to keyword matching when vector search is unavailable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "Optional caller identity, stored only as a keyed hash in the audit log",
				},
			},
			Required: []string{"query"},
		},
	}
}

// fillEmbeddingsTool returns the tool definition for fill_embeddings
func fillEmbeddingsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "fill_embeddings",
		Description: "Compute embeddings for documents stored without one (admin)",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"api_key": map[string]interface{}{
					"type":        "string",
					"description": "Admin API key",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of documents to process (0 for all)",
					"default":     0,
					"minimum":     0,
				},
				"batch_size": map[string]interface{}{
					"type":        "integer",
					"description": "Documents selected per batch",
					"minimum":     1,
				},
			},
			Required: []string{"api_key"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report document, embedding and audit counts plus provider details",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
