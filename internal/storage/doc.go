// Package storage provides SQLite-based persistence for documents, their
// embeddings, and the search audit log.
//
// # Database Schema
//
// Tables:
//   - documents: Title, content, optional embedding blob, timestamps
//   - documents_fts: FTS5 index over content (porter stemming), kept in sync by triggers
//   - audit_logs: Append-only search audit entries; triggers reject UPDATE and DELETE
//   - schema_version: Applied migrations
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("docsearch.db", 1536)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	doc := &storage.Document{Title: "AI Overview", Content: content, Embedding: vector}
//	if err := db.CreateDocument(ctx, doc); err != nil {
//	    return err
//	}
//
// A document's row and embedding are written by a single INSERT, so a read
// after CreateDocument returns always observes the same embedding state.
//
// # Vector Storage
//
// Embeddings are stored as little-endian float32 blobs. Every write is
// checked against the configured dimension and rejected with
// ErrInvalidVector if it has the wrong length or a NaN/Inf component.
//
// # Search
//
// SearchVector orders documents by the vec_distance_cosine SQL function,
// which both build variants register on their driver before any connection
// is opened. Failures surface as ErrSearchExecution so callers can fall back.
//
// SearchText quotes each query term and matches them all against the FTS5
// index. Result order follows bm25 and is otherwise unspecified.
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags "sqlite_cgo sqlite_fts5" switches to github.com/mattn/go-sqlite3.
//
// # Migrations
//
// Schema changes are versioned with semantic versions and applied in order
// by ApplyMigrations, each inside a transaction. RollbackMigration reverts
// the most recent one.
package storage
