package validation

import (
	"bytes"
	"encoding/xml"
	"io"

	"github.com/tashiscool/UsTaxes-sub000/internal/model"
)

// SchemaVersion tags the structural contract the schema pass enforces.
const SchemaVersion = "efile-1040-2024v1.0"

// Expected structural elements of a filing document.
const (
	rootElement   = "Return"
	headerElement = "ReturnHeader"
	bodyElement   = "ReturnData"
)

// schemaPass verifies structural well-formedness of the serialized payload:
// declaration present, document parses, and root/header/body elements
// exist. It never evaluates tax content.
func schemaPass(payload []byte) []model.RuleViolation {
	var out []model.RuleViolation
	fail := func(id, msg, suggestion string) {
		out = append(out, model.RuleViolation{
			RuleID:     id,
			Category:   model.CategoryConsistency,
			Severity:   model.SeverityError,
			Message:    msg,
			Fields:     []string{"payload"},
			Suggestion: suggestion,
		})
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		fail("SCHEMA-000", "filing document is empty", "Re-run return preparation.")
		return out
	}
	if !bytes.HasPrefix(bytes.TrimSpace(payload), []byte("<?xml")) {
		fail("SCHEMA-001", "filing document is missing its XML declaration", "Re-run return preparation.")
	}

	seen := map[string]bool{}
	var rootName string
	dec := xml.NewDecoder(bytes.NewReader(payload))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			fail("SCHEMA-002", "filing document is not well-formed XML: "+err.Error(), "Re-run return preparation.")
			return out
		}
		if se, ok := tok.(xml.StartElement); ok {
			if rootName == "" {
				rootName = se.Name.Local
			}
			seen[se.Name.Local] = true
		}
	}
	if rootName != rootElement {
		fail("SCHEMA-003", "filing document root element is not <"+rootElement+">", "Re-run return preparation.")
	}
	if !seen[headerElement] {
		fail("SCHEMA-004", "filing document is missing its <"+headerElement+"> element", "Re-run return preparation.")
	}
	if !seen[bodyElement] {
		fail("SCHEMA-005", "filing document is missing its <"+bodyElement+"> element", "Re-run return preparation.")
	}
	return out
}
