// Package authority defines the remote filing-authority protocol consumed
// by the orchestrator and tracker, plus a simulated implementation used by
// the CLI and tests. A production deployment substitutes a real transport
// behind the same interface.
package authority

import (
	"context"
	"time"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// Session is the authenticated state returned by Login and presented on
// every subsequent call.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// SubmitResponse reports the transport-level outcome of a submission.
// Accepted here means "received for processing", not "return accepted".
type SubmitResponse struct {
	Accepted     bool
	ErrorCode    string
	ErrorMessage string
	ReceivedAt   time.Time
}

// StatusResponse is the authority's interim processing state for a
// submission.
type StatusResponse struct {
	SubmissionID string
	State        string // "received", "processing", "acknowledged"
	CheckedAt    time.Time
}

// Client is the five-operation MeF-style authority protocol. Raw
// acknowledgment payloads are authority-defined; the ack package extracts
// the fields this engine understands.
type Client interface {
	// Login authenticates a transmitter and returns a session token.
	Login(ctx context.Context, etin, secret string) (Session, error)
	// Submit transmits a signed submission envelope.
	Submit(ctx context.Context, sess Session, sub model.Submission) (*SubmitResponse, error)
	// GetAcknowledgment returns the raw acknowledgment document, or
	// errs.ErrNotFound while the authority is still processing.
	GetAcknowledgment(ctx context.Context, sess Session, submissionID string) ([]byte, error)
	// GetStatus returns the interim processing state.
	GetStatus(ctx context.Context, sess Session, submissionID string) (*StatusResponse, error)
	// GetBulkAcknowledgments fetches every available acknowledgment for
	// the given ids; missing ids are simply absent from the result.
	GetBulkAcknowledgments(ctx context.Context, sess Session, submissionIDs []string) (map[string][]byte, error)
}
