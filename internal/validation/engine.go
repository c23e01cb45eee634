package validation

import (
	"time"

	"go.uber.org/zap"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// Engine runs the schema pass and the business-rule pass over a prepared
// return. Rules are evaluated independently; one failing rule never stops
// the rest.
type Engine struct {
	rules  []Rule
	logger *zap.Logger
}

// NewEngine constructs an engine preloaded with the built-in rule registry.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{rules: builtinRules(), logger: logger}
}

// Register appends a custom rule. Custom rules run after the built-ins in
// registration order.
func (e *Engine) Register(r Rule) {
	e.rules = append(e.rules, r)
}

// Rules returns the registry in evaluation order.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Validate runs both passes and combines them. A return is submission-ready
// only when zero error-severity violations exist; warnings never block.
func (e *Engine) Validate(r *model.PreparedReturn) *model.ValidationResult {
	res := &model.ValidationResult{
		ValidatedAt:    time.Now().UTC(),
		SchemaVersion:  SchemaVersion,
		RuleSetVersion: RuleSetVersion,
	}

	for _, v := range schemaPass(r.Payload) {
		res.Errors = append(res.Errors, v)
	}

	for _, rule := range e.rules {
		if !rule.AppliesTo(r.Header.FormType, r.Header.TaxYear) {
			continue
		}
		finding := rule.Check(r)
		if finding == nil {
			continue
		}
		v := model.RuleViolation{
			RuleID:     rule.ID,
			Category:   rule.Category,
			Severity:   rule.Severity,
			Message:    finding.Message,
			Fields:     finding.Fields,
			Expected:   finding.Expected,
			Actual:     finding.Actual,
			Suggestion: finding.Suggestion,
		}
		switch rule.Severity {
		case model.SeverityError:
			res.Errors = append(res.Errors, v)
		default:
			res.Warnings = append(res.Warnings, v)
		}
	}

	res.Valid = len(res.Errors) == 0
	e.logger.Info("validation complete",
		zap.String("returnID", r.ReturnID.String()),
		zap.Bool("valid", res.Valid),
		zap.Int("errors", len(res.Errors)),
		zap.Int("warnings", len(res.Warnings)),
	)
	return res
}
