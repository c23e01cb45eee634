// Package storage defines the pluggable key-value store the tracker
// persists submission records through, plus interchangeable backends:
// in-memory, local sqlite, postgres, and an encrypting wrapper.
package storage

import (
	"context"
	"strings"
)

// RecordKeyPrefix namespaces submission records in any backend.
const RecordKeyPrefix = "submission_"

// RecordKey builds the persisted key for a submission id.
func RecordKey(submissionID string) string { return RecordKeyPrefix + submissionID }

// SubmissionID recovers the submission id from a record key.
func SubmissionID(key string) string { return strings.TrimPrefix(key, RecordKeyPrefix) }

// Store is the persistence contract. Keys are opaque strings; values are
// opaque bytes. Implementations return errs.ErrNotFound from Get when the
// key is absent. Writes are last-writer-wins; no transactional isolation
// is promised across keys.
type Store interface {
	// Get returns the value stored under key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Remove deletes the key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys enumerates all keys with the given prefix, sorted ascending.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
