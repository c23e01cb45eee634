// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across orchestrator/tracker/storage layers.
var (
	// ErrMissingConsent indicates the taxpayer did not authorize electronic filing.
	ErrMissingConsent = errors.New("missing consent")

	// ErrInvalidPINFormat indicates a self-select PIN that is not exactly five digits.
	ErrInvalidPINFormat = errors.New("invalid pin format")

	// ErrMissingSpousePIN indicates a joint return signed with only one PIN.
	ErrMissingSpousePIN = errors.New("missing spouse pin")

	// ErrNotFound indicates the requested submission record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrTerminalState indicates a transition attempt on an accepted/rejected record.
	ErrTerminalState = errors.New("terminal state")

	// ErrInvalidTransition indicates a transition the state machine does not permit.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrRetriesExhausted indicates an error-state record past its retry budget.
	ErrRetriesExhausted = errors.New("retries exhausted")

	// ErrUnauthorized indicates a missing/expired authority session token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a temporary authority login lock.
	ErrRateLimited = errors.New("rate limited")
)
