package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// Persisted record shapes. Dates are tagged RFC3339 strings so records
// round-trip identically through every backend.

type persistedRecord struct {
	SubmissionID string           `json:"submission_id"`
	TaxYear      int              `json:"tax_year"`
	FormType     string           `json:"form_type"`
	TaxpayerName string           `json:"taxpayer_name"`
	MaskedSSN    string           `json:"masked_ssn"`
	State        string           `json:"state"`
	History      []persistedState `json:"history"`
	RetryCount   int              `json:"retry_count"`
	ErrorMessage string           `json:"error_message,omitempty"`
	Ack          *persistedAck    `json:"ack,omitempty"`
}

type persistedState struct {
	State  string `json:"state"`
	At     string `json:"at"` // RFC3339Nano
	Detail string `json:"detail,omitempty"`
}

type persistedAck struct {
	SubmissionID       string              `json:"submission_id"`
	Status             string              `json:"status"`
	Timestamp          string              `json:"timestamp"`
	Errors             []persistedAckError `json:"errors,omitempty"`
	ConfirmationNumber string              `json:"confirmation_number,omitempty"`
	RefundAmountCents  int64               `json:"refund_amount_cents,omitempty"`
	DepositDate        string              `json:"deposit_date,omitempty"`
}

type persistedAckError struct {
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
	Field    string `json:"field,omitempty"`
	Severity string `json:"severity"`
}

// EncodeRecord serializes a submission record for persistence.
func EncodeRecord(r *model.SubmissionRecord) ([]byte, error) {
	p := persistedRecord{
		SubmissionID: r.SubmissionID,
		TaxYear:      r.TaxYear,
		FormType:     r.FormType,
		TaxpayerName: r.TaxpayerName,
		MaskedSSN:    r.MaskedSSN,
		State:        string(r.State),
		RetryCount:   r.RetryCount,
		ErrorMessage: r.ErrorMessage,
	}
	for _, h := range r.History {
		p.History = append(p.History, persistedState{
			State:  string(h.State),
			At:     h.At.UTC().Format(time.RFC3339Nano),
			Detail: h.Detail,
		})
	}
	if r.Ack != nil {
		pa := &persistedAck{
			SubmissionID:       r.Ack.SubmissionID,
			Status:             string(r.Ack.Status),
			Timestamp:          r.Ack.Timestamp.UTC().Format(time.RFC3339Nano),
			ConfirmationNumber: r.Ack.ConfirmationNumber,
			RefundAmountCents:  int64(r.Ack.RefundAmount),
		}
		if !r.Ack.DepositDate.IsZero() {
			pa.DepositDate = r.Ack.DepositDate.UTC().Format("2006-01-02")
		}
		for _, e := range r.Ack.Errors {
			pa.Errors = append(pa.Errors, persistedAckError{
				Code: e.Code, Message: e.Message, Field: e.Field, Severity: string(e.Severity),
			})
		}
		p.Ack = pa
	}
	return json.Marshal(p)
}

// DecodeRecord reconstructs a submission record from its persisted form.
func DecodeRecord(data []byte) (*model.SubmissionRecord, error) {
	var p persistedRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("storage: decode record: %w", err)
	}
	r := &model.SubmissionRecord{
		SubmissionID: p.SubmissionID,
		TaxYear:      p.TaxYear,
		FormType:     p.FormType,
		TaxpayerName: p.TaxpayerName,
		MaskedSSN:    p.MaskedSSN,
		State:        model.SubmissionState(p.State),
		RetryCount:   p.RetryCount,
		ErrorMessage: p.ErrorMessage,
	}
	for _, h := range p.History {
		at, err := time.Parse(time.RFC3339Nano, h.At)
		if err != nil {
			return nil, fmt.Errorf("storage: decode history timestamp %q: %w", h.At, err)
		}
		r.History = append(r.History, model.StateChange{
			State:  model.SubmissionState(h.State),
			At:     at,
			Detail: h.Detail,
		})
	}
	if p.Ack != nil {
		a := &model.Acknowledgment{
			SubmissionID:       p.Ack.SubmissionID,
			Status:             model.AckStatus(p.Ack.Status),
			ConfirmationNumber: p.Ack.ConfirmationNumber,
			RefundAmount:       model.Cents(p.Ack.RefundAmountCents),
		}
		ts, err := time.Parse(time.RFC3339Nano, p.Ack.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("storage: decode ack timestamp %q: %w", p.Ack.Timestamp, err)
		}
		a.Timestamp = ts
		if p.Ack.DepositDate != "" {
			dd, err := time.Parse("2006-01-02", p.Ack.DepositDate)
			if err != nil {
				return nil, fmt.Errorf("storage: decode deposit date %q: %w", p.Ack.DepositDate, err)
			}
			a.DepositDate = dd
		}
		for _, e := range p.Ack.Errors {
			a.Errors = append(a.Errors, model.AckError{
				Code: e.Code, Message: e.Message, Field: e.Field, Severity: model.Severity(e.Severity),
			})
		}
		r.Ack = a
	}
	return r, nil
}
