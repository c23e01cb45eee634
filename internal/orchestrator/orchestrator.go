// Package orchestrator drives the five-step filing pipeline:
// prepare -> validate -> sign -> submit -> poll. It is the sole caller of
// the validation engine, signature service, authority client and
// acknowledgment processor for a filing attempt.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/tashiscool/UsTaxes-sub000/internal/ack"
	"github.com/tashiscool/UsTaxes-sub000/internal/authority"
	"github.com/tashiscool/UsTaxes-sub000/internal/errs"
	"github.com/tashiscool/UsTaxes-sub000/internal/formsource"
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
	"github.com/tashiscool/UsTaxes-sub000/internal/validation"
	"github.com/tashiscool/UsTaxes-sub000/internal/xmlsig"
)

// submissionIDSuffixLen plus the 5-char ETIN yields the 20-char id.
const submissionIDSuffixLen = 15

var pinPattern = regexp.MustCompile(`^\d{5}$`)

// ProgressFunc receives phase-boundary notifications for the UI. It is
// called synchronously and must not block; panics are swallowed so a
// faulty callback can never abort a filing.
type ProgressFunc func(step model.EFileStep, message string, percent int)

// Config carries transmitter identity, signing material and poll tuning.
type Config struct {
	ETIN         string // 5 digits
	EFIN         string // 6 digits
	Secret       string // authority login secret
	SoftwareID   string
	Sign         xmlsig.Options
	PollAttempts int
	PollInterval time.Duration
}

// SubmitResult is the transport outcome of a submission attempt. Failures
// are values, never errors.
type SubmitResult struct {
	Success      bool
	SubmissionID string
	ErrorCode    string
	ErrorMessage string
	SubmittedAt  time.Time
}

// AckResult is the outcome of acknowledgment polling.
type AckResult struct {
	Status    model.AckStatus
	Pending   bool // true when attempts were exhausted without a terminal ack
	PollCount int
	Processed *ack.Processed
}

// EFileResult carries whichever artifacts the pipeline produced before
// finishing or short-circuiting, plus the step reached and per-step
// timestamps.
type EFileResult struct {
	CurrentStep  model.EFileStep
	Prepared     *model.PreparedReturn
	Validation   *model.ValidationResult
	Signed       *model.SignedReturn
	Submit       *SubmitResult
	Ack          *AckResult
	ErrorMessage string
	StepTimes    map[model.EFileStep]time.Time
}

// Orchestrator runs filing attempts. Safe for concurrent use across
// distinct returns; calls for the same submission id must be serialized by
// the caller.
type Orchestrator struct {
	cfg    Config
	engine *validation.Engine
	client authority.Client
	logger *zap.Logger

	progressMu sync.RWMutex
	progress   ProgressFunc

	sessMu  sync.Mutex
	session *authority.Session
}

// New constructs an orchestrator.
func New(cfg Config, engine *validation.Engine, client authority.Client, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 10
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Orchestrator{cfg: cfg, engine: engine, client: client, logger: logger}
}

// SetProgress registers the status callback for this orchestrator's
// lifetime. Passing nil clears it.
func (o *Orchestrator) SetProgress(fn ProgressFunc) {
	o.progressMu.Lock()
	o.progress = fn
	o.progressMu.Unlock()
}

// notify invokes the progress callback behind a recover guard so callback
// panics never propagate into the pipeline.
func (o *Orchestrator) notify(step model.EFileStep, message string, percent int) {
	o.progressMu.RLock()
	fn := o.progress
	o.progressMu.RUnlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("progress callback panicked", zap.Any("panic", r))
		}
	}()
	fn(step, message, percent)
}

// Prepare snapshots the form source into an immutable PreparedReturn.
// It never fails on business content; that is validation's job.
func (o *Orchestrator) Prepare(_ context.Context, src formsource.Source) (*model.PreparedReturn, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("orchestrator: assign return id: %w", err)
	}
	hdr := src.Header()
	hdr.TransmitterETIN = o.cfg.ETIN
	hdr.OriginatorEFIN = o.cfg.EFIN
	hdr.SoftwareID = o.cfg.SoftwareID

	primaryName, primarySSN := src.PrimaryTaxpayer()
	spouseName, spouseSSN := src.SpouseTaxpayer()
	lines := src.Lines()

	r := &model.PreparedReturn{
		ReturnID:      id,
		Header:        hdr,
		FilingStatus:  src.FilingStatus(),
		PrimaryName:   primaryName,
		PrimarySSN:    primarySSN,
		SpouseName:    spouseName,
		SpouseSSN:     spouseSSN,
		DependentSSNs: src.DependentSSNs(),
		Lines:         lines,
		TotalTax:      lines["line24"],
		TotalPayments: lines["line33"],
		JointReturn:   src.FilingStatus().Joint(),
		PreparedAt:    time.Now().UTC(),
	}
	r.RefundOrOwed = r.TotalPayments - r.TotalTax
	r.Payload = buildPayload(r)

	o.logger.Info("return prepared",
		zap.String("returnID", id.String()),
		zap.Int("taxYear", hdr.TaxYear),
		zap.Int64("refundOrOwed", int64(r.RefundOrOwed)),
	)
	return r, nil
}

// Validate delegates to the validation engine. No state is mutated.
func (o *Orchestrator) Validate(r *model.PreparedReturn) *model.ValidationResult {
	return o.engine.Validate(r)
}

// Sign enforces the signing preconditions, builds the submission envelope
// and delegates the cryptographic work to the signature service.
func (o *Orchestrator) Sign(_ context.Context, r *model.PreparedReturn, id model.Identity, sig model.SignatureFacts) (*model.SignedReturn, error) {
	if !sig.ConsentGiven {
		return nil, errs.ErrMissingConsent
	}
	if !pinPattern.MatchString(sig.TaxpayerPIN) {
		return nil, fmt.Errorf("taxpayer pin: %w", errs.ErrInvalidPINFormat)
	}
	if r.JointReturn {
		if sig.SpousePIN == "" {
			return nil, errs.ErrMissingSpousePIN
		}
		if !pinPattern.MatchString(sig.SpousePIN) {
			return nil, fmt.Errorf("spouse pin: %w", errs.ErrInvalidPINFormat)
		}
	}

	doc, err := attachPINAttestation(r.Payload, sig)
	if err != nil {
		return nil, err
	}
	signedDoc, err := xmlsig.Sign(doc, o.cfg.Sign)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: sign document: %w", err)
	}

	subID, err := o.newSubmissionID()
	if err != nil {
		return nil, err
	}
	if sig.SignedAt.IsZero() {
		sig.SignedAt = time.Now().UTC()
	}
	sr := &model.SignedReturn{
		Prepared:  r,
		Identity:  id,
		Signature: sig,
		SignedDoc: signedDoc,
		Submission: model.Submission{
			SubmissionID: subID,
			Header:       r.Header,
			PostmarkedAt: time.Now().UTC(),
			Document:     signedDoc,
		},
	}
	o.logger.Info("return signed", zap.String("submissionID", subID))
	return sr, nil
}

// newSubmissionID concatenates the fixed-width ETIN with a 15-character
// unique suffix for a 20-character id.
func (o *Orchestrator) newSubmissionID() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("orchestrator: submission id: %w", err)
	}
	hex := strings.ReplaceAll(u.String(), "-", "")
	return o.cfg.ETIN + strings.ToUpper(hex[:submissionIDSuffixLen]), nil
}

// Submit transmits the signed return, logging in first if no session is
// active. Failures are returned as result values, never as errors.
func (o *Orchestrator) Submit(ctx context.Context, sr *model.SignedReturn) *SubmitResult {
	res := &SubmitResult{
		SubmissionID: sr.Submission.SubmissionID,
		SubmittedAt:  time.Now().UTC(),
	}
	sess, err := o.ensureSession(ctx)
	if err != nil {
		res.ErrorCode = "LOGIN"
		res.ErrorMessage = err.Error()
		return res
	}
	resp, err := o.client.Submit(ctx, sess, sr.Submission)
	if err != nil {
		// one retry with a fresh session on auth expiry
		if errors.Is(err, errs.ErrUnauthorized) {
			o.clearSession()
			if sess, err2 := o.ensureSession(ctx); err2 == nil {
				resp, err = o.client.Submit(ctx, sess, sr.Submission)
			}
		}
		if err != nil {
			res.ErrorCode = "TRANSPORT"
			res.ErrorMessage = err.Error()
			return res
		}
	}
	if !resp.Accepted {
		res.ErrorCode = resp.ErrorCode
		res.ErrorMessage = resp.ErrorMessage
		return res
	}
	res.Success = true
	res.SubmittedAt = resp.ReceivedAt
	o.logger.Info("submission transmitted", zap.String("submissionID", res.SubmissionID))
	return res
}

// PollForAcknowledgment queries the authority at a fixed interval until a
// terminal acknowledgment arrives or attempts run out, in which case the
// result is Pending. Individual poll errors are logged and swallowed.
func (o *Orchestrator) PollForAcknowledgment(ctx context.Context, submissionID string, maxAttempts int, interval time.Duration) *AckResult {
	res := &AckResult{Status: model.AckPending, Pending: true}

	sess, err := o.ensureSession(ctx)
	if err != nil {
		o.logger.Warn("cannot poll without session", zap.Error(err))
		return res
	}

	backoff := retry.WithMaxRetries(uint64(maxAttempts-1), retry.NewConstant(interval))
	_ = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res.PollCount++
		raw, err := o.client.GetAcknowledgment(ctx, sess, submissionID)
		if err != nil {
			o.logger.Info("acknowledgment not ready",
				zap.String("submissionID", submissionID),
				zap.Int("attempt", res.PollCount),
			)
			return retry.RetryableError(err)
		}
		p, err := ack.Process(raw)
		if err != nil {
			o.logger.Warn("unparseable acknowledgment", zap.Error(err))
			return retry.RetryableError(err)
		}
		if !p.Ack.Status.Terminal() {
			return retry.RetryableError(fmt.Errorf("acknowledgment still %s", p.Ack.Status))
		}
		res.Status = p.Ack.Status
		res.Pending = false
		res.Processed = p
		return nil
	})
	return res
}

// EFile runs the full pipeline, short-circuiting at the first hard
// failure and always returning a result with whatever artifacts exist.
func (o *Orchestrator) EFile(ctx context.Context, src formsource.Source, id model.Identity, sig model.SignatureFacts) *EFileResult {
	res := &EFileResult{
		CurrentStep: model.StepIdle,
		StepTimes:   make(map[model.EFileStep]time.Time),
	}
	step := func(s model.EFileStep, msg string, pct int) {
		res.CurrentStep = s
		res.StepTimes[s] = time.Now().UTC()
		o.notify(s, msg, pct)
	}
	fail := func(msg string) *EFileResult {
		res.ErrorMessage = msg
		step(model.StepError, msg, 100)
		return res
	}

	step(model.StepPreparing, "preparing return", 10)
	prepared, err := o.Prepare(ctx, src)
	if err != nil {
		return fail("prepare: " + err.Error())
	}
	res.Prepared = prepared

	step(model.StepValidating, "validating return", 30)
	res.Validation = o.Validate(prepared)
	if !res.Validation.Valid {
		return fail(fmt.Sprintf("validation failed with %d error(s)", len(res.Validation.Errors)))
	}

	step(model.StepSigning, "signing return", 50)
	signed, err := o.Sign(ctx, prepared, id, sig)
	if err != nil {
		return fail("sign: " + err.Error())
	}
	res.Signed = signed

	step(model.StepSubmitting, "transmitting submission", 70)
	res.Submit = o.Submit(ctx, signed)
	if !res.Submit.Success {
		return fail(fmt.Sprintf("submit failed (%s): %s", res.Submit.ErrorCode, res.Submit.ErrorMessage))
	}

	step(model.StepPolling, "awaiting acknowledgment", 85)
	res.Ack = o.PollForAcknowledgment(ctx, signed.Submission.SubmissionID, o.cfg.PollAttempts, o.cfg.PollInterval)
	switch res.Ack.Status {
	case model.AckAccepted:
		step(model.StepAccepted, "return accepted", 100)
	case model.AckRejected:
		step(model.StepRejected, "return rejected", 100)
	default:
		// still pending after exhausting attempts; tracker polling takes over
	}
	return res
}

// ensureSession logs in on first use and caches the session until cleared.
func (o *Orchestrator) ensureSession(ctx context.Context) (authority.Session, error) {
	o.sessMu.Lock()
	defer o.sessMu.Unlock()
	if o.session != nil && time.Now().Before(o.session.ExpiresAt) {
		return *o.session, nil
	}
	sess, err := o.client.Login(ctx, o.cfg.ETIN, o.cfg.Secret)
	if err != nil {
		return authority.Session{}, fmt.Errorf("orchestrator: authority login: %w", err)
	}
	o.session = &sess
	return sess, nil
}

func (o *Orchestrator) clearSession() {
	o.sessMu.Lock()
	o.session = nil
	o.sessMu.Unlock()
}
