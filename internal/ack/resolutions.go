// Package ack parses authority acknowledgments and enriches reject codes
// with remediation guidance from an embedded taxonomy.
package ack

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

//go:embed resolutions.yaml
var resolutionsYAML []byte

// Resolution is the remediation guidance for one authority error code.
type Resolution struct {
	Code     string         `yaml:"code"`
	Message  string         `yaml:"message"`
	Severity model.Severity `yaml:"severity"`
	Form     string         `yaml:"form,omitempty"`
	Help     string         `yaml:"help,omitempty"`
	Steps    []string       `yaml:"steps"`
}

type resolutionTable struct {
	Resolutions []Resolution `yaml:"resolutions"`
}

var (
	tableOnce sync.Once
	table     []Resolution
	tableErr  error
)

// fuzzyMinPrefix is the shortest shared prefix accepted as a fuzzy match.
const fuzzyMinPrefix = 5

func loadTable() ([]Resolution, error) {
	tableOnce.Do(func() {
		var t resolutionTable
		if err := yaml.Unmarshal(resolutionsYAML, &t); err != nil {
			tableErr = fmt.Errorf("ack: parse embedded resolution table: %w", err)
			return
		}
		table = t.Resolutions
	})
	return table, tableErr
}

// ErrorResolution maps an authority error code to remediation guidance.
// Exact matches win; otherwise the table entry sharing the longest code
// prefix (at least fuzzyMinPrefix characters) is returned; otherwise a
// generic warning-severity fallback.
func ErrorResolution(code string) Resolution {
	tbl, err := loadTable()
	if err != nil {
		return genericResolution(code)
	}
	for _, r := range tbl {
		if r.Code == code {
			return r
		}
	}
	best := -1
	bestLen := 0
	for i, r := range tbl {
		n := commonPrefixLen(r.Code, code)
		if n >= fuzzyMinPrefix && n > bestLen {
			best, bestLen = i, n
		}
	}
	if best >= 0 {
		r := tbl[best]
		r.Message = fmt.Sprintf("%s (closest known code %s for %s)", r.Message, r.Code, code)
		return r
	}
	return genericResolution(code)
}

func genericResolution(code string) Resolution {
	return Resolution{
		Code:     code,
		Message:  fmt.Sprintf("The authority reported error code %s, which is not in the known taxonomy.", code),
		Severity: model.SeverityWarning,
		Steps: []string{
			"Review the full rejection text from the authority.",
			"Correct the return and resubmit, or contact support with the error code.",
		},
	}
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
