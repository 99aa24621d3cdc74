// Package audit records privacy-preserving entries for user actions.
//
// Caller identifiers are never stored. Each entry carries the hex HMAC-SHA256
// of the identifier under a server-held key, or an empty string when the
// caller supplied none.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dshills/docsearch/internal/storage"
)

// ActionSearchDocuments tags search requests
const ActionSearchDocuments = "search_documents"

var (
	// ErrEmptyAction is returned when an entry has no action tag
	ErrEmptyAction = errors.New("audit action cannot be empty")
	// ErrWriteFailed wraps any failure to persist an entry
	ErrWriteFailed = errors.New("audit write failed")
)

// Recorder persists audit entries
type Recorder interface {
	InsertAuditLog(ctx context.Context, entry *storage.AuditLog) error
}

// Trail appends audit entries
type Trail struct {
	store Recorder
	key   []byte
}

// New creates a trail keyed by secret
func New(store Recorder, secret string) *Trail {
	return &Trail{store: store, key: []byte(secret)}
}

// HashActor returns the hex HMAC-SHA256 of actorID under secret, or "" when
// actorID is empty
func HashActor(secret, actorID string) string {
	if actorID == "" {
		return ""
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(actorID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Record appends an entry for action. The raw actorID is hashed before it
// leaves this function.
func (t *Trail) Record(ctx context.Context, actorID, action string, metadata map[string]interface{}) error {
	if action == "" {
		return ErrEmptyAction
	}

	meta := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("%w: encode metadata: %v", ErrWriteFailed, err)
		}
		meta = string(b)
	}

	entry := &storage.AuditLog{
		HashedActor: HashActor(string(t.key), actorID),
		Action:      action,
		Metadata:    meta,
	}
	if err := t.store.InsertAuditLog(ctx, entry); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}
