// Package models provides data model definitions for the Planhub client core.
package models

import (
	"encoding/json"
	"fmt"
	"net/mail"
)

// Schema is the advisory shape check for one resource type. Validation
// never rejects data: the server owns the canonical schema, and a record
// that fails these checks is still stored and synchronized. Violations
// surface in logs so malformed payloads are visible during development.
type Schema struct {
	Required []string `yaml:"required" json:"required"`
	Percent  []string `yaml:"percent" json:"percent"`
	Email    []string `yaml:"email" json:"email"`
}

// Validate returns a description of each advisory violation in e.
func (s Schema) Validate(e Entity) []string {
	var violations []string
	for _, field := range s.Required {
		v, ok := e[field]
		if !ok || v == nil || v == "" {
			violations = append(violations, fmt.Sprintf("missing required field %q", field))
		}
	}
	for _, field := range s.Percent {
		v, ok := e[field]
		if !ok {
			continue
		}
		n, ok := numeric(v)
		if !ok {
			violations = append(violations, fmt.Sprintf("field %q is not numeric", field))
			continue
		}
		if n < 0 || n > 100 {
			violations = append(violations, fmt.Sprintf("field %q out of range: %v", field, n))
		}
	}
	for _, field := range s.Email {
		v, ok := e[field].(string)
		if !ok || v == "" {
			continue
		}
		if _, err := mail.ParseAddress(v); err != nil {
			violations = append(violations, fmt.Sprintf("field %q is not a valid email: %q", field, v))
		}
	}
	return violations
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
