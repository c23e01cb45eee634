package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// RuleSetVersion tags the built-in rule registry.
const RuleSetVersion = "2024.1"

// Statutory amounts, in cents, for the 2024 tax year.
const (
	saltCap            = 10_000_00
	saltCapMFS         = 5_000_00
	eitcInvestmentCap  = 11_600_00
	deductionSanityCap = 40_000_00
	mathTolerance      = 100 // $1
)

var ssnPattern = regexp.MustCompile(`^\d{9}$`)

// incomeSumLines are the wage sub-lines that must total line1z.
var incomeSumLines = []string{
	"line1a", "line1b", "line1c", "line1d", "line1e", "line1f", "line1g", "line1h",
}

// totalIncomeLines are the per-category income lines that must total line9.
var totalIncomeLines = []string{
	"line1z", "line2b", "line3b", "line4b", "line5b", "line6b", "line7", "line8",
}

func usd(c model.Cents) string { return fmt.Sprintf("$%.2f", c.Dollars()) }

// builtinRules returns the ordered built-in registry for Form 1040.
func builtinRules() []Rule {
	return []Rule{
		{
			ID:          "MATH-001",
			Category:    model.CategoryMathematical,
			Severity:    model.SeverityError,
			Description: "wage lines 1a-1h must total line 1z",
			Forms:       []string{"1040"},
			Check:       checkSum(incomeSumLines, "line1z", "Recompute line 1z as the sum of lines 1a through 1h."),
		},
		{
			ID:          "MATH-002",
			Category:    model.CategoryMathematical,
			Severity:    model.SeverityError,
			Description: "income lines must total line 9 (total income)",
			Forms:       []string{"1040"},
			Check:       checkSum(totalIncomeLines, "line9", "Recompute total income on line 9 from the individual income lines."),
		},
		{
			ID:          "MATH-003",
			Category:    model.CategoryMathematical,
			Severity:    model.SeverityError,
			Description: "AGI equals total income minus adjustments",
			Forms:       []string{"1040"},
			Check: func(r *model.PreparedReturn) *Finding {
				want := line(r, "line9") - line(r, "line10")
				got := line(r, "line11")
				if diff := (want - got).Abs(); diff > mathTolerance {
					return &Finding{
						Message:    "adjusted gross income does not equal total income minus adjustments",
						Fields:     []string{"line9", "line10", "line11"},
						Expected:   usd(want),
						Actual:     usd(got),
						Suggestion: "Recompute line 11 as line 9 minus line 10.",
					}
				}
				return nil
			},
		},
		{
			ID:          "MATH-004",
			Category:    model.CategoryMathematical,
			Severity:    model.SeverityError,
			Description: "taxable income equals max(0, AGI minus deductions)",
			Forms:       []string{"1040"},
			Check: func(r *model.PreparedReturn) *Finding {
				want := line(r, "line11") - line(r, "line12")
				if want < 0 {
					want = 0
				}
				got := line(r, "line15")
				if diff := (want - got).Abs(); diff > mathTolerance {
					return &Finding{
						Message:    "taxable income does not equal AGI minus deductions (floored at zero)",
						Fields:     []string{"line11", "line12", "line15"},
						Expected:   usd(want),
						Actual:     usd(got),
						Suggestion: "Recompute line 15 as line 11 minus line 12, not less than zero.",
					}
				}
				return nil
			},
		},
		{
			ID:          "MATH-005",
			Category:    model.CategoryMathematical,
			Severity:    model.SeverityError,
			Description: "refund-or-owed equals total payments minus total tax",
			Check: func(r *model.PreparedReturn) *Finding {
				want := r.TotalPayments - r.TotalTax
				if diff := (want - r.RefundOrOwed).Abs(); diff > mathTolerance {
					return &Finding{
						Message:    "refund or balance due does not equal total payments minus total tax",
						Fields:     []string{"totalPayments", "totalTax", "refundOrOwed"},
						Expected:   usd(want),
						Actual:     usd(r.RefundOrOwed),
						Suggestion: "Recompute the refund or amount owed from total payments and total tax.",
					}
				}
				return nil
			},
		},
		{
			ID:          "XFORM-001",
			Category:    model.CategoryCrossForm,
			Severity:    model.SeverityError,
			Description: "Schedule C net profit must carry to Schedule 1 line 3",
			Forms:       []string{"1040"},
			Check: func(r *model.PreparedReturn) *Finding {
				if !hasLine(r, "scheduleC.line31") {
					return nil
				}
				want := line(r, "scheduleC.line31")
				got := line(r, "schedule1.line3")
				if want != got {
					return &Finding{
						Message:    "Schedule C net profit does not match Schedule 1 business income",
						Fields:     []string{"scheduleC.line31", "schedule1.line3"},
						Expected:   usd(want),
						Actual:     usd(got),
						Suggestion: "Carry the Schedule C line 31 amount to Schedule 1 line 3.",
					}
				}
				return nil
			},
		},
		{
			ID:          "DED-001",
			Category:    model.CategoryDeduction,
			Severity:    model.SeverityError,
			Description: "state and local tax deduction is capped by statute",
			Forms:       []string{"1040"},
			Check: func(r *model.PreparedReturn) *Finding {
				if !hasLine(r, "scheduleA.line5e") {
					return nil
				}
				cap := model.Cents(saltCap)
				if r.FilingStatus == model.FilingMarriedSeparately {
					cap = saltCapMFS
				}
				got := line(r, "scheduleA.line5e")
				if got > cap {
					return &Finding{
						Message:    "state and local tax deduction exceeds the statutory cap",
						Fields:     []string{"scheduleA.line5e"},
						Expected:   "at most " + usd(cap),
						Actual:     usd(got),
						Suggestion: "Limit the Schedule A line 5e deduction to the statutory cap for your filing status.",
					}
				}
				return nil
			},
		},
		{
			ID:          "FS-001",
			Category:    model.CategoryFilingStatus,
			Severity:    model.SeverityError,
			Description: "head of household requires a qualifying dependent",
			Check: func(r *model.PreparedReturn) *Finding {
				if r.FilingStatus != model.FilingHeadOfHousehold {
					return nil
				}
				if len(r.DependentSSNs) == 0 {
					return &Finding{
						Message:    "head of household filing status requires at least one qualifying dependent",
						Fields:     []string{"filingStatus", "dependents"},
						Expected:   "1 or more dependents",
						Actual:     "0 dependents",
						Suggestion: "Add a qualifying dependent or change the filing status.",
					}
				}
				return nil
			},
		},
		{
			ID:          "CREDIT-001",
			Category:    model.CategoryCredit,
			Severity:    model.SeverityError,
			Description: "earned income credit barred above the investment income limit",
			Forms:       []string{"1040"},
			Check: func(r *model.PreparedReturn) *Finding {
				if line(r, "line27") <= 0 {
					return nil
				}
				invest := line(r, "line2b") + line(r, "line3b")
				if invest > eitcInvestmentCap {
					return &Finding{
						Message:    "earned income credit claimed with investment income above the limit",
						Fields:     []string{"line27", "line2b", "line3b"},
						Expected:   "investment income at most " + usd(eitcInvestmentCap),
						Actual:     usd(invest),
						Suggestion: "Remove the earned income credit or verify investment income.",
					}
				}
				return nil
			},
		},
		{
			ID:          "RANGE-001",
			Category:    model.CategoryRange,
			Severity:    model.SeverityWarning,
			Description: "deduction amount outside the plausible range",
			Forms:       []string{"1040"},
			Check: func(r *model.PreparedReturn) *Finding {
				got := line(r, "line12")
				if got < 0 || got > deductionSanityCap {
					return &Finding{
						Message:    "deduction amount is outside the expected range",
						Fields:     []string{"line12"},
						Expected:   "between $0.00 and " + usd(deductionSanityCap),
						Actual:     usd(got),
						Suggestion: "Verify the line 12 deduction amount.",
					}
				}
				return nil
			},
		},
		{
			ID:          "CONS-001",
			Category:    model.CategoryConsistency,
			Severity:    model.SeverityWarning,
			Description: "withholding should not exceed total income",
			Forms:       []string{"1040"},
			Check: func(r *model.PreparedReturn) *Finding {
				wh := line(r, "line25a")
				income := line(r, "line9")
				if wh > income {
					return &Finding{
						Message:    "federal withholding exceeds total income",
						Fields:     []string{"line25a", "line9"},
						Expected:   "at most " + usd(income),
						Actual:     usd(wh),
						Suggestion: "Verify the withholding amounts from your W-2 and 1099 forms.",
					}
				}
				return nil
			},
		},
		{
			ID:          "ID-001",
			Category:    model.CategoryIdentity,
			Severity:    model.SeverityError,
			Description: "taxpayer identifiers must be nine digits",
			Check: func(r *model.PreparedReturn) *Finding {
				var bad []string
				if !ssnPattern.MatchString(r.PrimarySSN) {
					bad = append(bad, "primarySSN")
				}
				if r.SpouseSSN != "" && !ssnPattern.MatchString(r.SpouseSSN) {
					bad = append(bad, "spouseSSN")
				}
				if len(bad) == 0 {
					return nil
				}
				return &Finding{
					Message:    "taxpayer identification number is not nine digits",
					Fields:     bad,
					Expected:   "9 digits",
					Actual:     "malformed: " + strings.Join(bad, ", "),
					Suggestion: "Correct the social security number(s) on the identity form.",
				}
			},
		},
		{
			ID:          "ID-002",
			Category:    model.CategoryIdentity,
			Severity:    model.SeverityError,
			Description: "primary and spouse identifiers must differ",
			Check: func(r *model.PreparedReturn) *Finding {
				if r.SpouseSSN == "" || r.PrimarySSN != r.SpouseSSN {
					return nil
				}
				return &Finding{
					Message:    "primary and spouse social security numbers are identical",
					Fields:     []string{"primarySSN", "spouseSSN"},
					Expected:   "distinct identifiers",
					Actual:     "identical identifiers",
					Suggestion: "Correct the spouse social security number.",
				}
			},
		},
	}
}

// checkSum builds a rule check asserting that the named lines total the
// target line exactly. Sum identities come from the same computation
// engine, so no rounding tolerance applies.
func checkSum(parts []string, total string, suggestion string) CheckFunc {
	return func(r *model.PreparedReturn) *Finding {
		var sum model.Cents
		for _, id := range parts {
			sum += line(r, id)
		}
		got := line(r, total)
		if sum != got {
			fields := append(append([]string{}, parts...), total)
			return &Finding{
				Message:    total + " does not equal the sum of its component lines",
				Fields:     fields,
				Expected:   usd(sum),
				Actual:     usd(got),
				Suggestion: suggestion,
			}
		}
		return nil
	}
}
