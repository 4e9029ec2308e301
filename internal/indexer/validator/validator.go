// Package validator checks documents before they are indexed. It enforces
// id and field size constraints and returns per-field error details.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

const (
	maxIDLength        = 255
	maxFieldNameLength = 128
	maxFieldLength     = 1048576
	maxFields          = 64
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, field := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return strings.Join(parts, "; ")
}

// ValidateDocument returns a ValidationError describing every problem with
// doc, or nil.
func ValidateDocument(doc *index.Document) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(doc.ID)
	if id == "" {
		errs["id"] = "id is required"
	} else if len(id) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d characters", maxIDLength)
	}
	if len(doc.Fields) == 0 {
		errs["fields"] = "at least one field is required"
	} else if len(doc.Fields) > maxFields {
		errs["fields"] = fmt.Sprintf("at most %d fields are allowed", maxFields)
	}
	for name, value := range doc.Fields {
		switch {
		case strings.TrimSpace(name) == "":
			errs["fields"] = "field names must not be empty"
		case len(name) > maxFieldNameLength:
			errs[name] = fmt.Sprintf("field name must be at most %d characters", maxFieldNameLength)
		case len(value) > maxFieldLength:
			errs[name] = fmt.Sprintf("field must be at most %d characters", maxFieldLength)
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
