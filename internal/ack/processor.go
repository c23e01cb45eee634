package ack

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// Processed is an acknowledgment with every raw error enriched by the
// resolution taxonomy. Resolutions is parallel to Ack.Errors.
type Processed struct {
	Ack         model.Acknowledgment
	Resolutions []Resolution
}

// wire format of an authority acknowledgment document.
type ackXML struct {
	XMLName            xml.Name      `xml:"Acknowledgment"`
	SubmissionID       string        `xml:"SubmissionId"`
	Status             string        `xml:"Status"`
	Timestamp          string        `xml:"Timestamp"`
	ConfirmationNumber string        `xml:"ConfirmationNumber"`
	RefundAmountCents  int64         `xml:"RefundAmount"`
	DepositDate        string        `xml:"DepositDate"`
	Errors             []ackErrorXML `xml:"Errors>Error"`
}

type ackErrorXML struct {
	Code     string `xml:"Code"`
	Message  string `xml:"Message"`
	Field    string `xml:"Field"`
	Severity string `xml:"Severity"`
}

// Process parses a raw acknowledgment document and enriches each reported
// error. Unknown codes degrade to a generic resolution, never to a failure.
func Process(raw []byte) (*Processed, error) {
	var w ackXML
	if err := xml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("ack: parse acknowledgment: %w", err)
	}

	a := model.Acknowledgment{
		SubmissionID:       strings.TrimSpace(w.SubmissionID),
		ConfirmationNumber: strings.TrimSpace(w.ConfirmationNumber),
		RefundAmount:       model.Cents(w.RefundAmountCents),
	}
	switch strings.TrimSpace(w.Status) {
	case string(model.AckAccepted):
		a.Status = model.AckAccepted
	case string(model.AckRejected):
		a.Status = model.AckRejected
	default:
		a.Status = model.AckPending
	}
	if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(w.Timestamp)); err == nil {
		a.Timestamp = ts
	} else {
		a.Timestamp = time.Now().UTC()
	}
	if dd, err := time.Parse("2006-01-02", strings.TrimSpace(w.DepositDate)); err == nil {
		a.DepositDate = dd
	}

	p := &Processed{Ack: a}
	for _, e := range w.Errors {
		sev := model.SeverityError
		if e.Severity == string(model.SeverityWarning) {
			sev = model.SeverityWarning
		}
		p.Ack.Errors = append(p.Ack.Errors, model.AckError{
			Code:     strings.TrimSpace(e.Code),
			Message:  strings.TrimSpace(e.Message),
			Field:    strings.TrimSpace(e.Field),
			Severity: sev,
		})
		p.Resolutions = append(p.Resolutions, ErrorResolution(strings.TrimSpace(e.Code)))
	}
	return p, nil
}

// Summary renders a deterministic human-readable report of an
// acknowledgment and its enriched errors.
func Summary(p *Processed) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Submission %s\n", p.Ack.SubmissionID)
	fmt.Fprintf(&b, "Status: %s\n", p.Ack.Status)
	fmt.Fprintf(&b, "Timestamp: %s\n", p.Ack.Timestamp.UTC().Format(time.RFC3339))

	switch p.Ack.Status {
	case model.AckAccepted:
		if p.Ack.ConfirmationNumber != "" {
			fmt.Fprintf(&b, "Confirmation number: %s\n", p.Ack.ConfirmationNumber)
		}
		if p.Ack.RefundAmount > 0 {
			fmt.Fprintf(&b, "Refund: $%.2f\n", p.Ack.RefundAmount.Dollars())
			if !p.Ack.DepositDate.IsZero() {
				fmt.Fprintf(&b, "Expected deposit date: %s\n", p.Ack.DepositDate.Format("2006-01-02"))
			}
		}
	case model.AckRejected:
		fmt.Fprintf(&b, "Errors: %d\n", len(p.Ack.Errors))
		for i, e := range p.Ack.Errors {
			r := p.Resolutions[i]
			fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, e.Code, r.Message)
			for _, step := range r.Steps {
				fmt.Fprintf(&b, "   - %s\n", step)
			}
		}
	default:
		b.WriteString("Awaiting acknowledgment from the authority.\n")
	}
	return b.String()
}
