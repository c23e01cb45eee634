package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

const sampleReturnTOML = `
tax_year = 2024
form_type = "1040"
filing_status = "married_filing_jointly"

[primary]
name = "Ada Filer"
ssn = "123456789"

[spouse]
name = "Sam Filer"
ssn = "987654321"

[[dependent]]
ssn = "111223333"

[lines]
line1a = 5000000
line1z = 5000000
line24 = 400000
line33 = 500000

[identity]
prior_year_agi = 4800000
birth_date = "1985-06-01"

[signature]
taxpayer_pin = "12345"
spouse_pin = "54321"
consent = true
`

func writeReturnFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "return.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write return file: %v", err)
	}
	return path
}

func TestLoadReturnFile(t *testing.T) {
	src, id, sig, err := loadReturnFile(writeReturnFile(t, sampleReturnTOML))
	if err != nil {
		t.Fatalf("loadReturnFile: %v", err)
	}

	hdr := src.Header()
	if hdr.TaxYear != 2024 || hdr.FormType != "1040" {
		t.Fatalf("header: %+v", hdr)
	}
	if src.FilingStatus() != model.FilingMarriedJointly {
		t.Fatalf("filing status: %s", src.FilingStatus())
	}
	name, ssn := src.PrimaryTaxpayer()
	if name != "Ada Filer" || ssn != "123456789" {
		t.Fatalf("primary: %s %s", name, ssn)
	}
	if _, spouseSSN := src.SpouseTaxpayer(); spouseSSN != "987654321" {
		t.Fatalf("spouse ssn: %s", spouseSSN)
	}
	if deps := src.DependentSSNs(); len(deps) != 1 || deps[0] != "111223333" {
		t.Fatalf("dependents: %v", deps)
	}
	if got := src.Lines()["line1a"]; got != 5_000_000 {
		t.Fatalf("line1a: %d", got)
	}

	if id.PriorYearAGI != 4_800_000 {
		t.Fatalf("prior year AGI: %d", id.PriorYearAGI)
	}
	if id.BirthDate.Format("2006-01-02") != "1985-06-01" {
		t.Fatalf("birth date: %s", id.BirthDate)
	}

	if sig.TaxpayerPIN != "12345" || sig.SpousePIN != "54321" || !sig.ConsentGiven {
		t.Fatalf("signature facts: %+v", sig)
	}
}

func TestLoadReturnFile_DefaultsFormType(t *testing.T) {
	src, _, _, err := loadReturnFile(writeReturnFile(t, "tax_year = 2024\n"))
	if err != nil {
		t.Fatalf("loadReturnFile: %v", err)
	}
	if src.Header().FormType != "1040" {
		t.Fatalf("form type default: %s", src.Header().FormType)
	}
}

func TestLoadReturnFile_Errors(t *testing.T) {
	if _, _, _, err := loadReturnFile(writeReturnFile(t, `form_type = "1040"`)); err == nil {
		t.Fatal("want error for missing tax_year")
	}
	if _, _, _, err := loadReturnFile(writeReturnFile(t, "tax_year = 2024\n[identity]\nbirth_date = \"June 1985\"\n")); err == nil {
		t.Fatal("want error for malformed birth_date")
	}
	if _, _, _, err := loadReturnFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("want error for missing file")
	}
}
