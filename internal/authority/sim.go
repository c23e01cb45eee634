package authority

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/tashiscool/UsTaxes-sub000/internal/errs"
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// SimConfig tunes the simulated authority. Outcomes are deterministic so
// tests and demo runs are reproducible.
type SimConfig struct {
	JWTKey        []byte
	SessionTTL    time.Duration
	AckAfterPolls int // acknowledgment becomes available on the Nth fetch
	RejectNth     int // every Nth submission is rejected; 0 = accept all
}

// Simulated is an in-process authority implementing the full five-operation
// protocol. Login issues real HS256 session tokens; submissions are held in
// memory and acknowledged after a configurable number of fetches.
type Simulated struct {
	cfg      SimConfig
	logger   *zap.Logger
	throttle *throttle

	mu           sync.Mutex
	transmitters map[string]string // etin -> shared secret
	subs         map[string]*simSubmission
	submitted    int
}

type simSubmission struct {
	sub      model.Submission
	polls    int
	rejected bool
	ackedAt  time.Time
}

var _ Client = (*Simulated)(nil)

// rejection codes cycled through by the simulation.
var simRejectCodes = []string{"IND-031-04", "R0000-500-01", "F1040-071-05"}

// NewSimulated constructs the simulation with sane defaults for zero
// config values.
func NewSimulated(cfg SimConfig, logger *zap.Logger) *Simulated {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 15 * time.Minute
	}
	if cfg.AckAfterPolls <= 0 {
		cfg.AckAfterPolls = 2
	}
	return &Simulated{
		cfg:          cfg,
		logger:       logger,
		throttle:     newThrottle(15*time.Minute, 5, 15*time.Minute),
		transmitters: make(map[string]string),
		subs:         make(map[string]*simSubmission),
	}
}

// RegisterTransmitter enrolls an ETIN with its shared secret.
func (s *Simulated) RegisterTransmitter(etin, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transmitters[etin] = secret
}

// Login authenticates the transmitter and issues a session token.
func (s *Simulated) Login(_ context.Context, etin, secret string) (Session, error) {
	if ok, _ := s.throttle.allow(etin); !ok {
		return Session{}, errs.ErrRateLimited
	}
	s.mu.Lock()
	want, known := s.transmitters[etin]
	s.mu.Unlock()
	if !known || want != secret {
		if s.throttle.failure(etin) {
			return Session{}, errs.ErrRateLimited
		}
		return Session{}, errs.ErrUnauthorized
	}
	s.throttle.success(etin)

	now := time.Now()
	exp := now.Add(s.cfg.SessionTTL)
	claims := jwt.RegisteredClaims{
		Subject:   etin,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.cfg.JWTKey)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("transmitter logged in", zap.String("etin", etin))
	return Session{Token: signed, ExpiresAt: exp}, nil
}

// checkSession validates the session token signature and expiry.
func (s *Simulated) checkSession(sess Session) error {
	tok, err := jwt.ParseWithClaims(sess.Token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.JWTKey, nil
	})
	if err != nil || !tok.Valid {
		return errs.ErrUnauthorized
	}
	return nil
}

// Submit records the envelope and reports transport-level acceptance.
func (s *Simulated) Submit(_ context.Context, sess Session, sub model.Submission) (*SubmitResponse, error) {
	if err := s.checkSession(sess); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if len(sub.SubmissionID) != 20 || len(sub.Document) == 0 {
		return &SubmitResponse{
			Accepted:     false,
			ErrorCode:    "T0000-900",
			ErrorMessage: "malformed transmission envelope",
			ReceivedAt:   now,
		}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitted++
	rejected := s.cfg.RejectNth > 0 && s.submitted%s.cfg.RejectNth == 0
	s.subs[sub.SubmissionID] = &simSubmission{sub: sub, rejected: rejected}
	s.logger.Info("submission received",
		zap.String("submissionID", sub.SubmissionID),
		zap.Bool("willReject", rejected),
	)
	return &SubmitResponse{Accepted: true, ReceivedAt: now}, nil
}

// GetAcknowledgment returns the ack document once the configured number of
// fetches has elapsed; errs.ErrNotFound before that.
func (s *Simulated) GetAcknowledgment(_ context.Context, sess Session, submissionID string) ([]byte, error) {
	if err := s.checkSession(sess); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.subs[submissionID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	rec.polls++
	if rec.polls < s.cfg.AckAfterPolls {
		return nil, errs.ErrNotFound
	}
	if rec.ackedAt.IsZero() {
		rec.ackedAt = time.Now().UTC()
	}
	return buildAckXML(rec), nil
}

// GetStatus returns the interim processing state without consuming a poll.
func (s *Simulated) GetStatus(_ context.Context, sess Session, submissionID string) (*StatusResponse, error) {
	if err := s.checkSession(sess); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.subs[submissionID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	state := "processing"
	switch {
	case !rec.ackedAt.IsZero():
		state = "acknowledged"
	case rec.polls == 0:
		state = "received"
	}
	return &StatusResponse{SubmissionID: submissionID, State: state, CheckedAt: time.Now().UTC()}, nil
}

// GetBulkAcknowledgments fetches every available acknowledgment.
func (s *Simulated) GetBulkAcknowledgments(ctx context.Context, sess Session, submissionIDs []string) (map[string][]byte, error) {
	if err := s.checkSession(sess); err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	for _, id := range submissionIDs {
		raw, err := s.GetAcknowledgment(ctx, sess, id)
		if err != nil {
			continue
		}
		out[id] = raw
	}
	return out, nil
}

// buildAckXML renders the acknowledgment document the ack package parses.
func buildAckXML(rec *simSubmission) []byte {
	id := rec.sub.SubmissionID
	ts := rec.ackedAt.Format(time.RFC3339)
	if !rec.rejected {
		conf := confirmationNumber(id)
		return []byte(fmt.Sprintf(
			`<Acknowledgment><SubmissionId>%s</SubmissionId><Status>Accepted</Status><Timestamp>%s</Timestamp><ConfirmationNumber>%s</ConfirmationNumber></Acknowledgment>`,
			id, ts, conf))
	}
	code := simRejectCodes[int(sha256.Sum256([]byte(id))[0])%len(simRejectCodes)]
	return []byte(fmt.Sprintf(
		`<Acknowledgment><SubmissionId>%s</SubmissionId><Status>Rejected</Status><Timestamp>%s</Timestamp><Errors><Error><Code>%s</Code><Message>simulated rejection</Message><Severity>error</Severity></Error></Errors></Acknowledgment>`,
		id, ts, code))
}

// confirmationNumber derives a stable confirmation number from the
// submission id.
func confirmationNumber(submissionID string) string {
	sum := sha256.Sum256([]byte(submissionID))
	return "CONF-" + hex.EncodeToString(sum[:5])
}
