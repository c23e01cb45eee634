package ack

import (
	"strings"
	"testing"
	"time"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

func TestErrorResolution_ExactMatch(t *testing.T) {
	r := ErrorResolution("IND-031-04")
	if r.Code != "IND-031-04" {
		t.Fatalf("want exact entry, got %+v", r)
	}
	if r.Severity != model.SeverityError {
		t.Fatalf("want error severity, got %s", r.Severity)
	}
	if len(r.Steps) == 0 {
		t.Fatal("resolution has no remediation steps")
	}
}

func TestErrorResolution_FuzzyPrefix(t *testing.T) {
	// IND-031-99 is unknown but shares a long prefix with IND-031-04.
	r := ErrorResolution("IND-031-99")
	if r.Code != "IND-031-04" {
		t.Fatalf("want fuzzy match on IND-031-04, got %+v", r)
	}
	if !strings.Contains(r.Message, "IND-031-99") {
		t.Fatalf("fuzzy message must cite the reported code: %q", r.Message)
	}
}

func TestErrorResolution_UnknownCode(t *testing.T) {
	r := ErrorResolution("ZZZZ-000-00")
	if r.Code != "ZZZZ-000-00" {
		t.Fatalf("generic resolution must echo the code, got %+v", r)
	}
	if r.Severity != model.SeverityWarning {
		t.Fatalf("generic resolution must be a warning, got %s", r.Severity)
	}
	if len(r.Steps) == 0 {
		t.Fatal("generic resolution has no steps")
	}
}

func TestErrorResolution_ShortPrefixDoesNotFuzzyMatch(t *testing.T) {
	// Shares only "IND-" (4 chars) with the taxonomy, below the threshold.
	r := ErrorResolution("IND-XYZ")
	if r.Severity != model.SeverityWarning {
		t.Fatalf("short prefix must fall through to generic, got %+v", r)
	}
}

func TestProcess_Accepted(t *testing.T) {
	raw := []byte(`<?xml version="1.0"?>
<Acknowledgment>
  <SubmissionId>98765ABCDEF0123456789</SubmissionId>
  <Status>Accepted</Status>
  <Timestamp>2026-04-15T12:00:00Z</Timestamp>
  <ConfirmationNumber>CONF-1234567890</ConfirmationNumber>
  <RefundAmount>123456</RefundAmount>
  <DepositDate>2026-04-29</DepositDate>
</Acknowledgment>`)
	p, err := Process(raw)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if p.Ack.Status != model.AckAccepted {
		t.Fatalf("want Accepted, got %s", p.Ack.Status)
	}
	if p.Ack.ConfirmationNumber != "CONF-1234567890" {
		t.Fatalf("confirmation number: %q", p.Ack.ConfirmationNumber)
	}
	if p.Ack.RefundAmount != 123456 {
		t.Fatalf("refund amount: %d", p.Ack.RefundAmount)
	}
	if p.Ack.Timestamp != time.Date(2026, 4, 15, 12, 0, 0, 0, time.UTC) {
		t.Fatalf("timestamp: %s", p.Ack.Timestamp)
	}
	if p.Ack.DepositDate.Format("2006-01-02") != "2026-04-29" {
		t.Fatalf("deposit date: %s", p.Ack.DepositDate)
	}
	if len(p.Resolutions) != 0 {
		t.Fatalf("accepted ack has resolutions: %+v", p.Resolutions)
	}

	s := Summary(p)
	for _, want := range []string{"Status: Accepted", "CONF-1234567890", "Refund: $1234.56", "2026-04-29"} {
		if !strings.Contains(s, want) {
			t.Fatalf("summary missing %q:\n%s", want, s)
		}
	}
}

func TestProcess_RejectedEnrichesErrors(t *testing.T) {
	raw := []byte(`<Acknowledgment>
  <SubmissionId>98765ABCDEF0123456789</SubmissionId>
  <Status>Rejected</Status>
  <Timestamp>2026-04-15T12:00:00Z</Timestamp>
  <Errors>
    <Error><Code>IND-031-04</Code><Message>AGI mismatch</Message><Field>PriorYearAGI</Field><Severity>error</Severity></Error>
    <Error><Code>UNKNOWN-1</Code><Message>mystery</Message><Severity>error</Severity></Error>
  </Errors>
</Acknowledgment>`)
	p, err := Process(raw)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if p.Ack.Status != model.AckRejected {
		t.Fatalf("want Rejected, got %s", p.Ack.Status)
	}
	if len(p.Ack.Errors) != 2 || len(p.Resolutions) != 2 {
		t.Fatalf("want 2 errors and 2 resolutions, got %d/%d", len(p.Ack.Errors), len(p.Resolutions))
	}
	if p.Resolutions[0].Code != "IND-031-04" {
		t.Fatalf("first resolution: %+v", p.Resolutions[0])
	}
	if p.Resolutions[1].Severity != model.SeverityWarning {
		t.Fatalf("unknown code must resolve generically: %+v", p.Resolutions[1])
	}

	s := Summary(p)
	if !strings.Contains(s, "1. [IND-031-04]") || !strings.Contains(s, "2. [UNKNOWN-1]") {
		t.Fatalf("summary not numbered deterministically:\n%s", s)
	}
}

func TestProcess_UnknownStatusIsPending(t *testing.T) {
	p, err := Process([]byte(`<Acknowledgment><SubmissionId>x</SubmissionId><Status>Processing</Status></Acknowledgment>`))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if p.Ack.Status != model.AckPending {
		t.Fatalf("want Pending, got %s", p.Ack.Status)
	}
	if !strings.Contains(Summary(p), "Awaiting acknowledgment") {
		t.Fatal("pending summary missing wait notice")
	}
}

func TestProcess_Malformed(t *testing.T) {
	if _, err := Process([]byte("not xml at all <")); err == nil {
		t.Fatal("want parse error")
	}
}
