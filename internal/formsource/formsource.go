// Package formsource defines the read-only contract exposed by the external
// form engine that computes line values, plus a map-backed implementation
// used by the CLI and tests.
package formsource

import (
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// Source is the form-engine collaborator. The transmission engine reads
// identity fields and computed line values through it and never writes back.
type Source interface {
	// Header returns transmitter/originator identifiers and form metadata.
	Header() model.Header
	// FilingStatus returns the return's filing status.
	FilingStatus() model.FilingStatus
	// PrimaryTaxpayer returns the primary filer's name and SSN.
	PrimaryTaxpayer() (name, ssn string)
	// SpouseTaxpayer returns the spouse's name and SSN (empty if none).
	SpouseTaxpayer() (name, ssn string)
	// DependentSSNs returns SSNs of claimed dependents, possibly empty.
	DependentSSNs() []string
	// Lines returns every computed line value the serializer and the
	// business rules require.
	Lines() model.LineValues
}

// Static is an in-memory Source backed by plain fields.
type Static struct {
	Hdr        model.Header
	Status     model.FilingStatus
	Primary    string
	PrimaryTIN string
	Spouse     string
	SpouseTIN  string
	Dependents []string
	Values     model.LineValues
}

var _ Source = (*Static)(nil)

func (s *Static) Header() model.Header               { return s.Hdr }
func (s *Static) FilingStatus() model.FilingStatus   { return s.Status }
func (s *Static) PrimaryTaxpayer() (string, string)  { return s.Primary, s.PrimaryTIN }
func (s *Static) SpouseTaxpayer() (string, string)   { return s.Spouse, s.SpouseTIN }
func (s *Static) DependentSSNs() []string            { return s.Dependents }
func (s *Static) Lines() model.LineValues {
	out := make(model.LineValues, len(s.Values))
	for k, v := range s.Values {
		out[k] = v
	}
	return out
}
