package main

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tashiscool/UsTaxes-sub000/internal/formsource"
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// returnFile is the TOML shape of a completed return handed to the CLI by
// the form engine. Amounts are whole cents.
type returnFile struct {
	TaxYear      int               `toml:"tax_year"`
	FormType     string            `toml:"form_type"`
	FilingStatus string            `toml:"filing_status"`
	Primary      taxpayerSection   `toml:"primary"`
	Spouse       taxpayerSection   `toml:"spouse"`
	Dependents   []dependentRow    `toml:"dependent"`
	Lines        map[string]int64  `toml:"lines"`
	Identity     identitySection   `toml:"identity"`
	Signature    signatureSection  `toml:"signature"`
}

type taxpayerSection struct {
	Name string `toml:"name"`
	SSN  string `toml:"ssn"`
}

type dependentRow struct {
	SSN string `toml:"ssn"`
}

type identitySection struct {
	PriorYearAGI int64  `toml:"prior_year_agi"`
	BirthDate    string `toml:"birth_date"` // YYYY-MM-DD
}

type signatureSection struct {
	TaxpayerPIN string `toml:"taxpayer_pin"`
	SpousePIN   string `toml:"spouse_pin"`
	Consent     bool   `toml:"consent"`
}

// loadReturnFile parses the return file into the collaborators the
// orchestrator consumes.
func loadReturnFile(path string) (*formsource.Static, model.Identity, model.SignatureFacts, error) {
	var rf returnFile
	if _, err := toml.DecodeFile(path, &rf); err != nil {
		return nil, model.Identity{}, model.SignatureFacts{}, fmt.Errorf("load return file: %w", err)
	}
	if rf.TaxYear == 0 {
		return nil, model.Identity{}, model.SignatureFacts{}, fmt.Errorf("load return file: tax_year is required")
	}
	if rf.FormType == "" {
		rf.FormType = "1040"
	}

	lines := make(model.LineValues, len(rf.Lines))
	for id, v := range rf.Lines {
		lines[id] = model.Cents(v)
	}
	var deps []string
	for _, d := range rf.Dependents {
		deps = append(deps, d.SSN)
	}

	src := &formsource.Static{
		Hdr: model.Header{
			TaxYear:  rf.TaxYear,
			FormType: rf.FormType,
		},
		Status:     model.FilingStatus(rf.FilingStatus),
		Primary:    rf.Primary.Name,
		PrimaryTIN: rf.Primary.SSN,
		Spouse:     rf.Spouse.Name,
		SpouseTIN:  rf.Spouse.SSN,
		Dependents: deps,
		Values:     lines,
	}

	id := model.Identity{
		PrimaryName:  rf.Primary.Name,
		PrimarySSN:   rf.Primary.SSN,
		PriorYearAGI: model.Cents(rf.Identity.PriorYearAGI),
	}
	if rf.Identity.BirthDate != "" {
		bd, err := time.Parse("2006-01-02", rf.Identity.BirthDate)
		if err != nil {
			return nil, model.Identity{}, model.SignatureFacts{}, fmt.Errorf("load return file: birth_date: %w", err)
		}
		id.BirthDate = bd
	}

	sig := model.SignatureFacts{
		TaxpayerPIN:  rf.Signature.TaxpayerPIN,
		SpousePIN:    rf.Signature.SpousePIN,
		ConsentGiven: rf.Signature.Consent,
	}
	return src, id, sig, nil
}
