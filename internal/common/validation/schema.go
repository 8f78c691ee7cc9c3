// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"sort"
	"strings"

	"whatsapp-sales-workers/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema for job variables.
type Schema struct {
	schema *gojsonschema.Schema
}

// MustCompile compiles a schema literal and panics on a malformed schema.
func MustCompile(schemaJSON string) *Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid json schema: %v", err))
	}
	return &Schema{schema: s}
}

// ValidateJSON validates a raw JSON document. Violations come back as one VALIDATION_ERROR.
func (s *Schema) ValidateJSON(document string) error {
	return s.validate(gojsonschema.NewStringLoader(document))
}

// ValidateValue validates an in-memory value such as a decoded map.
func (s *Schema) ValidateValue(value interface{}) error {
	return s.validate(gojsonschema.NewGoLoader(value))
}

func (s *Schema) validate(loader gojsonschema.JSONLoader) error {
	result, err := s.schema.Validate(loader)
	if err != nil {
		return errors.NewValidationError("variables", fmt.Sprintf("unreadable document: %v", err))
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	fields := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
		fields = append(fields, e.Field())
	}
	sort.Strings(msgs)
	return errors.NewValidationError(strings.Join(fields, ","), strings.Join(msgs, "; "))
}
