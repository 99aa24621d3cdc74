// Package mcp implements the Model Context Protocol (MCP) server for docsearch.
//
// The server exposes four tools over stdio:
//   - create_document: store a document and embed it
//   - search_documents: top-3 semantic search with keyword fallback
//   - fill_embeddings: backfill missing embeddings (requires api_key)
//   - get_status: corpus statistics and provider details
//
// Every call except get_status shares one rate-limit window keyed "stdio".
//
// # Tool: search_documents
//
//	Request:
//	{
//	  "name": "search_documents",
//	  "arguments": {"query": "machine learning", "user_id": "u-42"}
//	}
//
//	Response:
//	{
//	  "mode": "vector",
//	  "results": [
//	    {"id": 1, "title": "AI Overview", "content": "...", "score": 0.12}
//	  ]
//	}
//
// Results produced by keyword fallback carry "mode": "lexical" and no score.
//
// # Errors
//
// Failures are returned as *MCPError with JSON-RPC style codes. Codes below
// -32000 are application specific, see the ErrorCode constants.
package mcp
