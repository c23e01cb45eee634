package tracker

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// PollConfig tunes a polling session. The interval grows geometrically by
// Multiplier after each unsuccessful attempt, capped at MaxInterval, and
// resets to Interval at the start of every session.
type PollConfig struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Multiplier  float64
	MaxAttempts int
}

// withDefaults fills zero fields with working values.
func (c PollConfig) withDefaults() PollConfig {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = time.Minute
	}
	if c.Multiplier < 1 {
		c.Multiplier = 1.5
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	return c
}

// FetchFunc is the caller-supplied remote fetch. It returns the
// acknowledgment once available, or an error while the authority is still
// processing.
type FetchFunc func(ctx context.Context, submissionID string) (*model.Acknowledgment, error)

// DoneFunc is invoked once when a session ends with a terminal
// acknowledgment.
type DoneFunc func(rec *model.SubmissionRecord)

type pollingSession struct {
	cancel context.CancelFunc
	done   chan struct{}
}

var errAckNotReady = errors.New("acknowledgment not ready")

// StartPolling begins a background polling session for the submission id.
// At most one session exists per id: starting a new one cancels the prior
// session (last-writer-wins). The session ends on terminal acknowledgment,
// attempt exhaustion, or cancellation.
func (t *Tracker) StartPolling(ctx context.Context, submissionID string, cfg PollConfig, fetch FetchFunc, onDone DoneFunc) {
	cfg = cfg.withDefaults()

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &pollingSession{cancel: cancel, done: make(chan struct{})}

	t.mu.Lock()
	if prior, ok := t.sessions[submissionID]; ok {
		prior.cancel()
	}
	t.sessions[submissionID] = sess
	t.mu.Unlock()

	go func() {
		defer close(sess.done)
		defer t.clearSession(submissionID, sess)
		t.poll(sessCtx, submissionID, cfg, fetch, onDone)
	}()
}

// poll runs the backoff loop for one session.
func (t *Tracker) poll(ctx context.Context, submissionID string, cfg PollConfig, fetch FetchFunc, onDone DoneFunc) {
	attempt := 0
	backoff := retry.WithCappedDuration(cfg.MaxInterval, geometric(cfg.Interval, cfg.Multiplier))
	backoff = retry.WithMaxRetries(uint64(cfg.MaxAttempts-1), backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		a, err := fetch(ctx, submissionID)
		if err != nil {
			t.logger.Info("poll attempt without acknowledgment",
				zap.String("submissionID", submissionID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		if a == nil || !a.Status.Terminal() {
			return retry.RetryableError(errAckNotReady)
		}
		rec, err := t.SetAcknowledgment(ctx, a)
		if err != nil {
			t.logger.Warn("failed to record acknowledgment",
				zap.String("submissionID", submissionID), zap.Error(err))
			return err
		}
		if onDone != nil {
			onDone(rec)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		t.logger.Info("polling session ended without terminal acknowledgment",
			zap.String("submissionID", submissionID),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
	}
}

// StopPolling cancels the active session for the id, if any.
func (t *Tracker) StopPolling(submissionID string) {
	t.mu.Lock()
	sess, ok := t.sessions[submissionID]
	if ok {
		delete(t.sessions, submissionID)
	}
	t.mu.Unlock()
	if ok {
		sess.cancel()
	}
}

// StopAllPolling cancels every active session.
func (t *Tracker) StopAllPolling() {
	t.mu.Lock()
	sessions := t.sessions
	t.sessions = make(map[string]*pollingSession)
	t.mu.Unlock()
	for _, s := range sessions {
		s.cancel()
	}
}

// WaitPolling blocks until the id's session finishes. Test helper.
func (t *Tracker) WaitPolling(submissionID string) {
	t.mu.Lock()
	sess, ok := t.sessions[submissionID]
	t.mu.Unlock()
	if ok {
		<-sess.done
	}
}

// clearSession removes the session entry if it is still the current one.
func (t *Tracker) clearSession(submissionID string, sess *pollingSession) {
	t.mu.Lock()
	if cur, ok := t.sessions[submissionID]; ok && cur == sess {
		delete(t.sessions, submissionID)
	}
	t.mu.Unlock()
}

// geometric is a go-retry backoff growing by the configured multiplier.
func geometric(initial time.Duration, multiplier float64) retry.Backoff {
	cur := initial
	return retry.BackoffFunc(func() (time.Duration, bool) {
		next := cur
		cur = time.Duration(float64(cur) * multiplier)
		return next, false
	})
}
