package orchestrator

import (
	"bytes"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tashiscool/UsTaxes-sub000/internal/crypto"
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// buildPayload serializes the filing document the validation engine checks
// and the signature service signs. Lines are emitted in sorted order so
// the document is deterministic for a given return.
func buildPayload(r *model.PreparedReturn) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	fmt.Fprintf(&b, `<Return xmlns="urn:us:efile:1040" taxYear="%d" formType="%s">`+"\n",
		r.Header.TaxYear, xmlEscape(r.Header.FormType))

	b.WriteString("<ReturnHeader>\n")
	fmt.Fprintf(&b, "<ReturnId>%s</ReturnId>\n", r.ReturnID)
	fmt.Fprintf(&b, "<Timestamp>%s</Timestamp>\n", r.PreparedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "<TransmitterETIN>%s</TransmitterETIN>\n", xmlEscape(r.Header.TransmitterETIN))
	fmt.Fprintf(&b, "<OriginatorEFIN>%s</OriginatorEFIN>\n", xmlEscape(r.Header.OriginatorEFIN))
	fmt.Fprintf(&b, "<SoftwareId>%s</SoftwareId>\n", xmlEscape(r.Header.SoftwareID))
	fmt.Fprintf(&b, "<FilingStatus>%s</FilingStatus>\n", r.FilingStatus)
	fmt.Fprintf(&b, "<Primary><Name>%s</Name><SSN>%s</SSN></Primary>\n",
		xmlEscape(r.PrimaryName), xmlEscape(r.PrimarySSN))
	if r.SpouseSSN != "" {
		fmt.Fprintf(&b, "<Spouse><Name>%s</Name><SSN>%s</SSN></Spouse>\n",
			xmlEscape(r.SpouseName), xmlEscape(r.SpouseSSN))
	}
	for _, d := range r.DependentSSNs {
		fmt.Fprintf(&b, "<Dependent><SSN>%s</SSN></Dependent>\n", xmlEscape(d))
	}
	b.WriteString("</ReturnHeader>\n")

	b.WriteString("<ReturnData>\n")
	ids := make([]string, 0, len(r.Lines))
	for id := range r.Lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(&b, `<Line id="%s">%d</Line>`+"\n", xmlEscape(id), r.Lines[id])
	}
	fmt.Fprintf(&b, "<TotalTax>%d</TotalTax>\n", r.TotalTax)
	fmt.Fprintf(&b, "<TotalPayments>%d</TotalPayments>\n", r.TotalPayments)
	fmt.Fprintf(&b, "<RefundOrOwed>%d</RefundOrOwed>\n", r.RefundOrOwed)
	b.WriteString("</ReturnData>\n")

	b.WriteString("</Return>\n")
	return b.Bytes()
}

// attachPINAttestation embeds a salted Argon2id attestation of the
// self-select PIN(s) inside ReturnData. The raw PIN never leaves memory;
// the authority can verify a claimed PIN against the hash later.
func attachPINAttestation(payload []byte, sig model.SignatureFacts) ([]byte, error) {
	salt, err := crypto.RandBytes(16)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: attestation salt: %w", err)
	}
	var b bytes.Buffer
	b.WriteString("<SignatureAttestation>\n")
	fmt.Fprintf(&b, "<Salt>%s</Salt>\n", hex.EncodeToString(salt))
	fmt.Fprintf(&b, "<TaxpayerPINHash>%s</TaxpayerPINHash>\n",
		hex.EncodeToString(crypto.HashPIN([]byte(sig.TaxpayerPIN), salt)))
	if sig.SpousePIN != "" {
		fmt.Fprintf(&b, "<SpousePINHash>%s</SpousePINHash>\n",
			hex.EncodeToString(crypto.HashPIN([]byte(sig.SpousePIN), salt)))
	}
	b.WriteString("</SignatureAttestation>\n")

	const marker = "</ReturnData>"
	idx := bytes.LastIndex(payload, []byte(marker))
	if idx < 0 {
		return nil, errors.New("orchestrator: payload has no ReturnData element")
	}
	out := make([]byte, 0, len(payload)+b.Len())
	out = append(out, payload[:idx]...)
	out = append(out, b.Bytes()...)
	out = append(out, payload[idx:]...)
	return out, nil
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
