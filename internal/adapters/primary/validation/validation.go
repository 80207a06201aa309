// Package validation turns report query strings into validated requests.
// Failures are collected per field so one response can list all of them.
package validation

import (
	"net/url"
	"strconv"
	"strings"

	apperrors "github.com/lorrc/field-metrics/internal/core/errors"
)

// Validator reads query parameters and accumulates field errors.
type Validator struct {
	query  url.Values
	errors *apperrors.ValidationErrors
}

func NewValidator(query url.Values) *Validator {
	return &Validator{query: query, errors: apperrors.NewValidationErrors()}
}

// Err returns the collected failures, or nil when there are none.
func (v *Validator) Err() error {
	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// Check records message against field unless ok holds.
func (v *Validator) Check(field string, ok bool, message string) {
	if !ok {
		v.errors.Add(field, message)
	}
}

// NonNegative records an error when value is below zero.
func (v *Validator) NonNegative(field string, value int) {
	v.Check(field, value >= 0, "Must be at least 0")
}

// Int reads key as an integer. Absent values yield def.
func (v *Validator) Int(key string, def int) int {
	raw := strings.TrimSpace(v.query.Get(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		v.errors.Add(key, "Must be an integer")
		return def
	}
	return n
}

// Bool reads key with strconv.ParseBool rules. Absent values yield def.
func (v *Validator) Bool(key string, def bool) bool {
	raw := strings.TrimSpace(v.query.Get(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		v.errors.Add(key, "Must be true or false")
		return def
	}
	return b
}

// List collects a multi-valued parameter given either repeated
// (?zoneId=a&zoneId=b) or comma separated (?zoneId=a,b). Blank entries and
// duplicates are dropped; order of first appearance is kept.
func (v *Validator) List(key string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, raw := range v.query[key] {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" || seen[part] {
				continue
			}
			seen[part] = true
			out = append(out, part)
		}
	}
	return out
}

// UpperList is List with every entry upper-cased, for enum filters.
func (v *Validator) UpperList(key string) []string {
	values := v.List(key)
	for i, s := range values {
		values[i] = strings.ToUpper(s)
	}
	return values
}
