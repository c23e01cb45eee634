// Package validation implements the two-pass validation engine: a schema
// pass over the serialized document and a business-rule pass over line
// values. Rules are data, held in an ordered registry; custom rules are
// appended at runtime.
package validation

import (
	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// Finding is the detail a rule check yields on failure. The engine stamps
// rule id, category and severity onto the resulting violation.
type Finding struct {
	Message    string
	Fields     []string
	Expected   string
	Actual     string
	Suggestion string
}

// CheckFunc is a pure predicate over a prepared return. It returns nil
// when the rule passes.
type CheckFunc func(r *model.PreparedReturn) *Finding

// Rule is one declarative business rule. Forms/Years scope the rule;
// empty slices mean "applies to all".
type Rule struct {
	ID          string
	Category    model.RuleCategory
	Severity    model.Severity
	Description string
	Forms       []string
	Years       []int
	Check       CheckFunc
}

// AppliesTo reports whether the rule is in scope for a form type and year.
func (r Rule) AppliesTo(formType string, year int) bool {
	if len(r.Forms) > 0 && !containsString(r.Forms, formType) {
		return false
	}
	if len(r.Years) > 0 && !containsInt(r.Years, year) {
		return false
	}
	return true
}

func containsString(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}

func containsInt(xs []int, n int) bool {
	for _, x := range xs {
		if x == n {
			return true
		}
	}
	return false
}

// line returns a line value, treating absent lines as zero.
func line(r *model.PreparedReturn, id string) model.Cents {
	return r.Lines[id]
}

// hasLine reports whether the form engine produced the line at all.
func hasLine(r *model.PreparedReturn, id string) bool {
	_, ok := r.Lines[id]
	return ok
}
