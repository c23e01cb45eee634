// Package model defines domain entities shared by the orchestrator,
// validation engine, tracker and storage layers.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Cents is a money amount in whole US cents. Negative means owed/debit.
type Cents int64

// Dollars returns the amount as floating-point dollars (for display only).
func (c Cents) Dollars() float64 { return float64(c) / 100 }

// Abs returns the absolute value.
func (c Cents) Abs() Cents {
	if c < 0 {
		return -c
	}
	return c
}

// LineValues maps form line identifiers (e.g. "line1a", "scheduleC.line31")
// to their computed amounts. Produced by the external form engine; read-only
// from this package's point of view.
type LineValues map[string]Cents

// FilingStatus enumerates federal filing statuses.
type FilingStatus string

const (
	FilingSingle                    FilingStatus = "single"
	FilingMarriedJointly            FilingStatus = "married_filing_jointly"
	FilingMarriedSeparately         FilingStatus = "married_filing_separately"
	FilingHeadOfHousehold           FilingStatus = "head_of_household"
	FilingQualifyingSurvivingSpouse FilingStatus = "qualifying_surviving_spouse"
)

// Joint reports whether the status requires two signers.
func (f FilingStatus) Joint() bool { return f == FilingMarriedJointly }

// Header carries transmitter/originator identifiers embedded in every
// submission (ETIN/EFIN-style fixed-format codes).
type Header struct {
	TransmitterETIN string // 5 digits, prefixes every submission id
	OriginatorEFIN  string // 6 digits
	SoftwareID      string
	TaxYear         int
	FormType        string // e.g. "1040"
}

// PreparedReturn is an immutable snapshot of a return ready for validation
// and signing. Created once per filing attempt, never mutated.
type PreparedReturn struct {
	ReturnID      uuid.UUID
	Header        Header
	FilingStatus  FilingStatus
	PrimaryName   string
	PrimarySSN    string // 9 digits
	SpouseName    string // empty unless joint
	SpouseSSN     string
	DependentSSNs []string
	Lines         LineValues
	Payload       []byte // serialized filing document (XML)
	TotalTax      Cents
	TotalPayments Cents
	RefundOrOwed  Cents // TotalPayments - TotalTax; negative means balance due
	JointReturn   bool
	PreparedAt    time.Time
}

// RuleCategory tags a business rule with the area of tax law it checks.
type RuleCategory string

const (
	CategoryMathematical RuleCategory = "mathematical"
	CategoryConsistency  RuleCategory = "consistency"
	CategoryRange        RuleCategory = "range"
	CategoryCrossForm    RuleCategory = "cross_form"
	CategoryFilingStatus RuleCategory = "filing_status"
	CategoryCredit       RuleCategory = "credit"
	CategoryDeduction    RuleCategory = "deduction"
	CategoryIdentity     RuleCategory = "identity"
)

// Severity of a rule violation. Only SeverityError blocks submission.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// RuleViolation is a single structured finding from either validation pass.
type RuleViolation struct {
	RuleID     string
	Category   RuleCategory
	Severity   Severity
	Message    string
	Fields     []string // affected line/field identifiers
	Expected   string
	Actual     string
	Suggestion string
}

// ValidationResult combines the schema pass and the business-rule pass.
// Derived data; never persisted on its own.
type ValidationResult struct {
	Valid          bool
	Errors         []RuleViolation // blocking
	Warnings       []RuleViolation // non-blocking
	ValidatedAt    time.Time
	SchemaVersion  string
	RuleSetVersion string
}

// Identity carries identity-verification facts collected before signing.
type Identity struct {
	PrimaryName  string
	PrimarySSN   string
	PriorYearAGI Cents
	BirthDate    time.Time
}

// SignatureFacts carries the self-select PIN signature. PINs live only in
// memory; storage layers persist argon2id hashes instead.
type SignatureFacts struct {
	TaxpayerPIN  string // 5 digits
	SpousePIN    string // required on joint returns
	ConsentGiven bool
	SignedAt     time.Time
}

// Submission is the transmission envelope exchanged with the authority.
// Immutable once built.
type Submission struct {
	SubmissionID string // 20 chars: 5-char ETIN + 15-char unique suffix
	Header       Header
	PostmarkedAt time.Time
	Document     []byte // canonicalized, signed filing document
}

// SignedReturn wraps a PreparedReturn with signature artifacts. Created
// once, after validation passes.
type SignedReturn struct {
	Prepared   *PreparedReturn
	Identity   Identity
	Signature  SignatureFacts
	Submission Submission
	SignedDoc  []byte // Payload with embedded digital signature block
}

// AckStatus is the authority's disposition of a submission.
type AckStatus string

const (
	AckAccepted AckStatus = "Accepted"
	AckRejected AckStatus = "Rejected"
	AckPending  AckStatus = "Pending"
)

// Terminal reports whether the status ends the submission lifecycle.
func (s AckStatus) Terminal() bool { return s == AckAccepted || s == AckRejected }

// AckError is a single authority-reported error with its raw code.
type AckError struct {
	Code     string
	Message  string
	Field    string
	Severity Severity
}

// Acknowledgment is the authority's response to a submission. Arrives
// asynchronously; terminal once Accepted or Rejected.
type Acknowledgment struct {
	SubmissionID       string
	Status             AckStatus
	Timestamp          time.Time
	Errors             []AckError
	ConfirmationNumber string
	RefundAmount       Cents     // zero unless accepted with refund
	DepositDate        time.Time // zero unless direct deposit scheduled
}

// SubmissionState is the tracker's lifecycle state.
type SubmissionState string

const (
	StateQueued    SubmissionState = "queued"
	StateSubmitted SubmissionState = "submitted"
	StatePending   SubmissionState = "pending"
	StateAccepted  SubmissionState = "accepted"
	StateRejected  SubmissionState = "rejected"
	StateError     SubmissionState = "error"
)

// Terminal reports whether no further transitions are permitted.
func (s SubmissionState) Terminal() bool { return s == StateAccepted || s == StateRejected }

// StateChange is one audit-log entry in a record's history.
type StateChange struct {
	State  SubmissionState
	At     time.Time
	Detail string
}

// SubmissionRecord is the tracked entity persisted per submission. Mutated
// on every transition; deleted only explicitly.
type SubmissionRecord struct {
	SubmissionID string
	TaxYear      int
	FormType     string
	TaxpayerName string
	MaskedSSN    string // last four only, e.g. "***-**-1234"
	State        SubmissionState
	History      []StateChange
	RetryCount   int
	ErrorMessage string
	Ack          *Acknowledgment
}

// EFileStep tags the orchestrator's position in the filing pipeline.
type EFileStep string

const (
	StepIdle       EFileStep = "idle"
	StepPreparing  EFileStep = "preparing"
	StepValidating EFileStep = "validating"
	StepSigning    EFileStep = "signing"
	StepSubmitting EFileStep = "submitting"
	StepPolling    EFileStep = "polling"
	StepAccepted   EFileStep = "accepted"
	StepRejected   EFileStep = "rejected"
	StepError      EFileStep = "error"
)

// MaskSSN renders an SSN keeping only the last four digits.
func MaskSSN(ssn string) string {
	if len(ssn) < 4 {
		return "***-**-****"
	}
	return "***-**-" + ssn[len(ssn)-4:]
}
