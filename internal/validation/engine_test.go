package validation

import (
	"testing"

	"github.com/gofrs/uuid/v5"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

const wellFormedPayload = `<?xml version="1.0" encoding="UTF-8"?>
<Return xmlns="urn:us:efile:1040"><ReturnHeader><ReturnId>x</ReturnId></ReturnHeader><ReturnData></ReturnData></Return>`

// validReturn builds an internally consistent single-filer return that
// passes every built-in rule.
func validReturn() *model.PreparedReturn {
	return &model.PreparedReturn{
		ReturnID: uuid.Must(uuid.NewV4()),
		Header: model.Header{
			TransmitterETIN: "98765",
			OriginatorEFIN:  "123456",
			TaxYear:         2024,
			FormType:        "1040",
		},
		FilingStatus: model.FilingSingle,
		PrimaryName:  "Ada Filer",
		PrimarySSN:   "123456789",
		Lines: model.LineValues{
			"line1a":  50_000_00,
			"line1z":  50_000_00,
			"line9":   50_000_00,
			"line10":  0,
			"line11":  50_000_00,
			"line12":  14_600_00,
			"line15":  35_400_00,
			"line25a": 5_000_00,
		},
		Payload:       []byte(wellFormedPayload),
		TotalTax:      4_000_00,
		TotalPayments: 5_000_00,
		RefundOrOwed:  1_000_00,
	}
}

func findViolation(vs []model.RuleViolation, id string) *model.RuleViolation {
	for i := range vs {
		if vs[i].RuleID == id {
			return &vs[i]
		}
	}
	return nil
}

func TestValidate_CleanReturn(t *testing.T) {
	res := NewEngine(nil).Validate(validReturn())
	if !res.Valid {
		t.Fatalf("clean return invalid: %+v", res.Errors)
	}
	if len(res.Errors) != 0 || len(res.Warnings) != 0 {
		t.Fatalf("want no findings, got %d errors %d warnings", len(res.Errors), len(res.Warnings))
	}
	if res.SchemaVersion != SchemaVersion || res.RuleSetVersion != RuleSetVersion {
		t.Fatalf("result missing version stamps: %+v", res)
	}
}

func TestValidate_WageSumIsExact(t *testing.T) {
	r := validReturn()
	r.Lines = model.LineValues{
		"line1a": 100,
		"line1z": 100,
		"line9":  100,
		"line11": 100,
		"line15": 100,
	}
	r.TotalTax, r.TotalPayments, r.RefundOrOwed = 0, 0, 0
	if res := NewEngine(nil).Validate(r); !res.Valid {
		t.Fatalf("matching sum flagged: %+v", res.Errors)
	}

	// One cent off must fail even though identity rules tolerate $1.
	r.Lines["line1z"] = 99
	r.Lines["line9"] = 99
	r.Lines["line11"] = 99
	r.Lines["line15"] = 99
	res := NewEngine(nil).Validate(r)
	if res.Valid {
		t.Fatal("one-cent sum discrepancy passed")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("want exactly one error, got %+v", res.Errors)
	}
	v := findViolation(res.Errors, "MATH-001")
	if v == nil {
		t.Fatalf("MATH-001 not raised: %+v", res.Errors)
	}
	var hasPart, hasTotal bool
	for _, f := range v.Fields {
		if f == "line1a" {
			hasPart = true
		}
		if f == "line1z" {
			hasTotal = true
		}
	}
	if !hasPart || !hasTotal {
		t.Fatalf("violation must reference component and total lines, got %v", v.Fields)
	}
}

func TestValidate_IdentityRulesTolerateOneDollar(t *testing.T) {
	r := validReturn()
	r.RefundOrOwed = 1_000_00 + 100 // off by exactly $1
	if res := NewEngine(nil).Validate(r); !res.Valid {
		t.Fatalf("refund within tolerance flagged: %+v", res.Errors)
	}
	r.RefundOrOwed = 1_000_00 + 101
	res := NewEngine(nil).Validate(r)
	if findViolation(res.Errors, "MATH-005") == nil {
		t.Fatalf("refund beyond tolerance not flagged: %+v", res.Errors)
	}
}

func TestValidate_HeadOfHouseholdNeedsDependent(t *testing.T) {
	r := validReturn()
	r.FilingStatus = model.FilingHeadOfHousehold
	r.DependentSSNs = nil
	res := NewEngine(nil).Validate(r)
	if res.Valid {
		t.Fatal("head of household without dependents passed")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("want exactly one error, got %+v", res.Errors)
	}
	v := res.Errors[0]
	if v.Category != model.CategoryFilingStatus || v.Severity != model.SeverityError {
		t.Fatalf("want filing_status/error, got %s/%s", v.Category, v.Severity)
	}

	r.DependentSSNs = []string{"987654321"}
	if res := NewEngine(nil).Validate(r); !res.Valid {
		t.Fatalf("head of household with dependent flagged: %+v", res.Errors)
	}
}

func TestValidate_WarningsDoNotBlock(t *testing.T) {
	r := validReturn()
	r.Lines["line12"] = 50_000_00
	r.Lines["line15"] = 0
	res := NewEngine(nil).Validate(r)
	if !res.Valid {
		t.Fatalf("warning-only return invalid: %+v", res.Errors)
	}
	if findViolation(res.Warnings, "RANGE-001") == nil {
		t.Fatalf("RANGE-001 warning not raised: %+v", res.Warnings)
	}
}

func TestValidate_SaltCapByFilingStatus(t *testing.T) {
	r := validReturn()
	r.Lines["scheduleA.line5e"] = 7_000_00
	if res := NewEngine(nil).Validate(r); !res.Valid {
		t.Fatalf("deduction under cap flagged: %+v", res.Errors)
	}
	r.FilingStatus = model.FilingMarriedSeparately
	res := NewEngine(nil).Validate(r)
	if findViolation(res.Errors, "DED-001") == nil {
		t.Fatalf("separate-filer cap not enforced: %+v", res.Errors)
	}
}

func TestValidate_EarnedIncomeCreditInvestmentLimit(t *testing.T) {
	r := validReturn()
	r.Lines["line2b"] = 12_000_00
	r.Lines["line27"] = 500_00
	r.Lines["line9"] = 62_000_00
	r.Lines["line11"] = 62_000_00
	r.Lines["line15"] = 47_400_00
	res := NewEngine(nil).Validate(r)
	if findViolation(res.Errors, "CREDIT-001") == nil {
		t.Fatalf("credit with excess investment income not flagged: %+v", res.Errors)
	}

	r.Lines["line27"] = 0
	if res := NewEngine(nil).Validate(r); !res.Valid {
		t.Fatalf("return without the credit flagged: %+v", res.Errors)
	}
}

func TestValidate_SpouseIdentifiers(t *testing.T) {
	r := validReturn()
	r.SpouseSSN = r.PrimarySSN
	res := NewEngine(nil).Validate(r)
	if findViolation(res.Errors, "ID-002") == nil {
		t.Fatalf("identical spouse SSN not flagged: %+v", res.Errors)
	}

	r = validReturn()
	r.SpouseSSN = "12-34"
	res = NewEngine(nil).Validate(r)
	if findViolation(res.Errors, "ID-001") == nil {
		t.Fatalf("malformed spouse SSN not flagged: %+v", res.Errors)
	}
}

func TestRegister_CustomRuleRunsAfterBuiltins(t *testing.T) {
	e := NewEngine(nil)
	before := len(e.Rules())
	e.Register(Rule{
		ID:          "CUSTOM-001",
		Category:    model.CategoryConsistency,
		Severity:    model.SeverityError,
		Description: "always fails",
		Check: func(*model.PreparedReturn) *Finding {
			return &Finding{Message: "custom check failed"}
		},
	})
	rules := e.Rules()
	if len(rules) != before+1 || rules[len(rules)-1].ID != "CUSTOM-001" {
		t.Fatalf("custom rule not appended: %d rules", len(rules))
	}
	res := e.Validate(validReturn())
	if res.Valid || findViolation(res.Errors, "CUSTOM-001") == nil {
		t.Fatalf("custom rule did not fire: %+v", res.Errors)
	}
}

func TestRuleAppliesTo(t *testing.T) {
	r := Rule{Forms: []string{"1040"}, Years: []int{2024}}
	if !r.AppliesTo("1040", 2024) {
		t.Fatal("in-scope rule reported out of scope")
	}
	if r.AppliesTo("1040-SR", 2024) || r.AppliesTo("1040", 2023) {
		t.Fatal("out-of-scope rule reported in scope")
	}
	any := Rule{}
	if !any.AppliesTo("709", 1999) {
		t.Fatal("unscoped rule must apply everywhere")
	}
}

func TestSchemaPass(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		wantID  string
	}{
		{"empty", "", "SCHEMA-000"},
		{"no declaration", "<Return><ReturnHeader></ReturnHeader><ReturnData></ReturnData></Return>", "SCHEMA-001"},
		{"not well-formed", "<?xml version=\"1.0\"?><Return><ReturnHeader></Return>", "SCHEMA-002"},
		{"wrong root", "<?xml version=\"1.0\"?><Filing><ReturnHeader></ReturnHeader><ReturnData></ReturnData></Filing>", "SCHEMA-003"},
		{"missing header", "<?xml version=\"1.0\"?><Return><ReturnData></ReturnData></Return>", "SCHEMA-004"},
		{"missing body", "<?xml version=\"1.0\"?><Return><ReturnHeader></ReturnHeader></Return>", "SCHEMA-005"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			vs := schemaPass([]byte(tc.payload))
			if findViolation(vs, tc.wantID) == nil {
				t.Fatalf("want %s, got %+v", tc.wantID, vs)
			}
		})
	}
	if vs := schemaPass([]byte(wellFormedPayload)); len(vs) != 0 {
		t.Fatalf("well-formed payload flagged: %+v", vs)
	}
}
