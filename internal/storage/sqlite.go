package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidVector is returned when a vector has the wrong length or a non-finite component
	ErrInvalidVector = errors.New("invalid vector")
	// ErrSearchExecution is returned when a search query fails to execute
	ErrSearchExecution = errors.New("search execution failed")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db        *sql.DB
	dimension int
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer; also keeps :memory: on one database
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance that accepts
// embeddings of exactly dimension components
func NewSQLiteStorage(dbPath string, dimension int) (*SQLiteStorage, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}

	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db, dimension: dimension}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Dimension returns the accepted embedding length
func (s *SQLiteStorage) Dimension() int {
	return s.dimension
}

// Document operations

// CreateDocument inserts the row and, if present, its embedding in one statement
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *Document) error {
	var blob []byte
	var embeddedAt sql.NullTime
	now := time.Now().UTC()

	if doc.Embedding != nil {
		if err := s.checkVector(doc.Embedding); err != nil {
			return err
		}
		blob = serializeVector(doc.Embedding)
		embeddedAt = sql.NullTime{Time: now, Valid: true}
	}

	query := `
		INSERT INTO documents (title, content, embedding, created_at, embedded_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, doc.Title, doc.Content, blob, now, embeddedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	doc.ID = id
	doc.CreatedAt = now
	if embeddedAt.Valid {
		doc.EmbeddedAt = now
	}
	return nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*Document, error) {
	query := `
		SELECT id, title, content, embedding, created_at, embedded_at
		FROM documents
		WHERE id = ?
	`
	var doc Document
	var blob []byte
	var embeddedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&doc.ID, &doc.Title, &doc.Content, &blob, &doc.CreatedAt, &embeddedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if blob != nil {
		doc.Embedding = deserializeVector(blob)
	}
	if embeddedAt.Valid {
		doc.EmbeddedAt = embeddedAt.Time
	}
	return &doc, nil
}

// SetEmbedding stores a vector for a document. Concurrent writers race with
// last-write-wins semantics.
func (s *SQLiteStorage) SetEmbedding(ctx context.Context, id int64, vector []float32) error {
	if err := s.checkVector(vector); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE documents SET embedding = ?, embedded_at = ? WHERE id = ?",
		serializeVector(vector), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set embedding: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMissingEmbeddings returns up to limit documents without an embedding
// whose id is greater than afterID, in insertion order
func (s *SQLiteStorage) ListMissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]*Document, error) {
	if limit <= 0 {
		return []*Document{}, nil
	}

	query := `
		SELECT id, title, content, created_at
		FROM documents
		WHERE embedding IS NULL AND id > ?
		ORDER BY id
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents missing embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*Document, 0, limit)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, vector []float32, limit int) ([]VectorResult, error) {
	return searchVector(ctx, s.db, vector, limit)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.db, query, limit)
}

// Audit operations

// InsertAuditLog appends an entry. Entries are never updated or deleted.
func (s *SQLiteStorage) InsertAuditLog(ctx context.Context, entry *AuditLog) error {
	if entry.Metadata == "" {
		entry.Metadata = "{}"
	}
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		"INSERT INTO audit_logs (hashed_actor, action, metadata, created_at) VALUES (?, ?, ?, ?)",
		entry.HashedActor, entry.Action, entry.Metadata, now)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	entry.ID = id
	entry.CreatedAt = now
	return nil
}

// ListAuditLogs returns the most recent entries, newest first
func (s *SQLiteStorage) ListAuditLogs(ctx context.Context, limit int) ([]*AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_actor, action, metadata, created_at
		FROM audit_logs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*AuditLog, 0)
	for rows.Next() {
		var e AuditLog
		if err := rows.Scan(&e.ID, &e.HashedActor, &e.Action, &e.Metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// Status operations

func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(embedding)
		FROM documents
	`).Scan(&stats.Documents, &stats.EmbeddedDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	stats.MissingEmbeddings = stats.Documents - stats.EmbeddedDocuments

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs").Scan(&stats.AuditLogs); err != nil {
		return nil, fmt.Errorf("failed to count audit logs: %w", err)
	}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	stats.SchemaVersion = version

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err == nil {
			stats.DatabaseSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
		}
	}

	return stats, nil
}

// Ping verifies the database is reachable
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// CheckVectorOperator verifies the distance function is callable
func (s *SQLiteStorage) CheckVectorOperator(ctx context.Context) error {
	sample := serializeVector([]float32{1, 0})
	var d float64
	query := fmt.Sprintf("SELECT %s(?, ?)", DistanceFunction)
	if err := s.db.QueryRowContext(ctx, query, sample, sample).Scan(&d); err != nil {
		return fmt.Errorf("%w: %v", ErrSearchExecution, err)
	}
	return nil
}

func (s *SQLiteStorage) checkVector(v []float32) error {
	if err := validateVector(v, s.dimension); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidVector, err)
	}
	return nil
}
