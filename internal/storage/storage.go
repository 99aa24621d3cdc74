package storage

import (
	"context"
	"time"
)

// Storage defines the interface for persisting documents and audit entries
type Storage interface {
	// Document operations
	CreateDocument(ctx context.Context, doc *Document) error
	GetDocument(ctx context.Context, id int64) (*Document, error)
	SetEmbedding(ctx context.Context, id int64, vector []float32) error
	ListMissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]*Document, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)

	// Audit operations
	InsertAuditLog(ctx context.Context, entry *AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]*AuditLog, error)

	// Status operations
	GetStats(ctx context.Context) (*Stats, error)
	Ping(ctx context.Context) error
	CheckVectorOperator(ctx context.Context) error

	// Database operations
	Close() error
}

// Document represents a stored document row
type Document struct {
	ID         int64
	Title      string
	Content    string
	Embedding  []float32 // Nil when absent
	CreatedAt  time.Time
	EmbeddedAt time.Time // Zero when no embedding is stored
}

// AuditLog represents one append-only audit entry
type AuditLog struct {
	ID          int64
	HashedActor string // Empty when the caller supplied no identifier
	Action      string
	Metadata    string // JSON object
	CreatedAt   time.Time
}

// VectorResult is a document ranked by cosine distance to a query vector
type VectorResult struct {
	DocumentID int64
	Title      string
	Content    string
	Distance   float64 // Lower is more similar
}

// TextResult is a document matched by full-text search
type TextResult struct {
	DocumentID int64
	Title      string
	Content    string
	BM25Score  float64 // Lower is better
}

// Stats summarizes table contents
type Stats struct {
	Documents         int
	EmbeddedDocuments int
	MissingEmbeddings int
	AuditLogs         int
	SchemaVersion     string
	DatabaseSizeMB    float64
}
