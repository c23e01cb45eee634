// Package tracker maintains the persistent submission lifecycle state
// machine and schedules acknowledgment polling. Persistence goes through
// the storage.Store contract, so the same tracker runs against in-memory,
// sqlite or postgres backends without modification.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tashiscool/UsTaxes-sub000/internal/errs"
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
	"github.com/tashiscool/UsTaxes-sub000/internal/storage"
)

// MaxRetries bounds Error -> Queued requeues per submission.
const MaxRetries = 3

// transitions is the permitted state graph. Terminal states have no
// outgoing edges; Error -> Queued is additionally guarded by MaxRetries.
var transitions = map[model.SubmissionState][]model.SubmissionState{
	model.StateQueued:    {model.StateSubmitted, model.StateError},
	model.StateSubmitted: {model.StatePending, model.StateError},
	model.StatePending:   {model.StateAccepted, model.StateRejected, model.StateError},
	model.StateError:     {model.StateQueued},
}

func allowed(from, to model.SubmissionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Tracker is the long-lived status component. One instance serves many
// submissions; polling sessions are keyed by submission id.
type Tracker struct {
	store  storage.Store
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*pollingSession
	now      func() time.Time
}

// New constructs a tracker over the given storage backend.
func New(store storage.Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		store:    store,
		logger:   logger,
		sessions: make(map[string]*pollingSession),
		now:      time.Now,
	}
}

// Track creates a record in Queued state and persists it.
func (t *Tracker) Track(ctx context.Context, sub model.Submission, taxpayerName, ssn string) (*model.SubmissionRecord, error) {
	rec := &model.SubmissionRecord{
		SubmissionID: sub.SubmissionID,
		TaxYear:      sub.Header.TaxYear,
		FormType:     sub.Header.FormType,
		TaxpayerName: taxpayerName,
		MaskedSSN:    model.MaskSSN(ssn),
		State:        model.StateQueued,
	}
	rec.History = append(rec.History, model.StateChange{
		State:  model.StateQueued,
		At:     t.now().UTC(),
		Detail: "submission tracked",
	})
	if err := t.save(ctx, rec); err != nil {
		return nil, err
	}
	t.logger.Info("tracking submission", zap.String("submissionID", rec.SubmissionID))
	return rec, nil
}

// Get loads a record by submission id.
func (t *Tracker) Get(ctx context.Context, submissionID string) (*model.SubmissionRecord, error) {
	raw, err := t.store.Get(ctx, storage.RecordKey(submissionID))
	if err != nil {
		return nil, err
	}
	return storage.DecodeRecord(raw)
}

// List returns every tracked record, ordered by submission id.
func (t *Tracker) List(ctx context.Context) ([]*model.SubmissionRecord, error) {
	keys, err := t.store.Keys(ctx, storage.RecordKeyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*model.SubmissionRecord, 0, len(keys))
	for _, k := range keys {
		raw, err := t.store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		rec, err := storage.DecodeRecord(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Delete removes a record explicitly and stops any active polling for it.
// Deletion is the only way out of a terminal state.
func (t *Tracker) Delete(ctx context.Context, submissionID string) error {
	t.StopPolling(submissionID)
	return t.store.Remove(ctx, storage.RecordKey(submissionID))
}

// UpdateStatus advances the state machine. Terminal records reject every
// transition; disallowed edges fail without mutating the record. The
// history entry is appended before the record is persisted.
func (t *Tracker) UpdateStatus(ctx context.Context, submissionID string, to model.SubmissionState, detail string) (*model.SubmissionRecord, error) {
	rec, err := t.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return nil, fmt.Errorf("submission %s is %s: %w", submissionID, rec.State, errs.ErrTerminalState)
	}
	if !allowed(rec.State, to) {
		return nil, fmt.Errorf("%s -> %s: %w", rec.State, to, errs.ErrInvalidTransition)
	}
	if rec.State == model.StateError && to == model.StateQueued && rec.RetryCount >= MaxRetries {
		return nil, fmt.Errorf("submission %s: %w", submissionID, errs.ErrRetriesExhausted)
	}
	t.applyTransition(rec, to, detail)
	if err := t.save(ctx, rec); err != nil {
		return nil, err
	}
	if to.Terminal() {
		t.StopPolling(submissionID)
	}
	return rec, nil
}

// RecordError moves any non-terminal record to Error, incrementing the
// retry count. The failure is written to the history log before being
// surfaced to the caller.
func (t *Tracker) RecordError(ctx context.Context, submissionID, message string) (*model.SubmissionRecord, error) {
	rec, err := t.Get(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return nil, fmt.Errorf("submission %s is %s: %w", submissionID, rec.State, errs.ErrTerminalState)
	}
	rec.RetryCount++
	rec.ErrorMessage = message
	t.applyTransition(rec, model.StateError, message)
	if err := t.save(ctx, rec); err != nil {
		return nil, err
	}
	t.logger.Warn("submission error recorded",
		zap.String("submissionID", submissionID),
		zap.Int("retryCount", rec.RetryCount),
		zap.String("message", message),
	)
	return rec, nil
}

// Retry requeues an errored record while retries remain.
func (t *Tracker) Retry(ctx context.Context, submissionID string) (*model.SubmissionRecord, error) {
	return t.UpdateStatus(ctx, submissionID, model.StateQueued, "requeued for retry")
}

// SetAcknowledgment attaches the authority's terminal acknowledgment and
// advances Pending to Accepted or Rejected. Reaching a terminal state
// cancels any active polling session.
func (t *Tracker) SetAcknowledgment(ctx context.Context, a *model.Acknowledgment) (*model.SubmissionRecord, error) {
	if !a.Status.Terminal() {
		return nil, fmt.Errorf("acknowledgment status %s is not terminal: %w", a.Status, errs.ErrInvalidTransition)
	}
	rec, err := t.Get(ctx, a.SubmissionID)
	if err != nil {
		return nil, err
	}
	if rec.State.Terminal() {
		return nil, fmt.Errorf("submission %s is %s: %w", a.SubmissionID, rec.State, errs.ErrTerminalState)
	}
	to := model.StateAccepted
	detail := "acknowledgment accepted"
	if a.Status == model.AckRejected {
		to = model.StateRejected
		detail = fmt.Sprintf("acknowledgment rejected with %d error(s)", len(a.Errors))
	}
	if !allowed(rec.State, to) {
		return nil, fmt.Errorf("%s -> %s: %w", rec.State, to, errs.ErrInvalidTransition)
	}
	rec.Ack = a
	t.applyTransition(rec, to, detail)
	if err := t.save(ctx, rec); err != nil {
		return nil, err
	}
	t.StopPolling(a.SubmissionID)
	return rec, nil
}

func (t *Tracker) applyTransition(rec *model.SubmissionRecord, to model.SubmissionState, detail string) {
	rec.State = to
	rec.History = append(rec.History, model.StateChange{
		State:  to,
		At:     t.now().UTC(),
		Detail: detail,
	})
}

func (t *Tracker) save(ctx context.Context, rec *model.SubmissionRecord) error {
	raw, err := storage.EncodeRecord(rec)
	if err != nil {
		return err
	}
	return t.store.Set(ctx, storage.RecordKey(rec.SubmissionID), raw)
}
