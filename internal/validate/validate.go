// Package validate turns raw request fields into sanitized model patches.
//
// Fields arrive as json.RawMessage so that type mismatches surface as
// validation messages rather than decode failures. Every rule is checked and
// all failures are returned together; nothing is applied partially.
package validate

import (
	"encoding/json"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Errors is an ordered, non-empty list of human-readable validation failures.
type Errors []string

func (e Errors) Error() string {
	return "validation failed: " + strings.Join(e, " ")
}

func (e *Errors) add(msg string) {
	*e = append(*e, msg)
}

// err returns e as an error, or nil if nothing was recorded.
func (e Errors) err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Messages shared by items and lists.
const (
	msgNameRequired    = "Name is required and must be a non-empty string."
	msgNameTooLong     = "Name must not exceed 50 characters."
	msgDescTooLong     = "Description must not exceed 255 characters."
	msgDescNotString   = "Description must be a string."
	msgItemsNotAnArray = "Items must be an array."
)

var policy = bluemonday.StrictPolicy()

// maxSanitizeRounds bounds how many layers of entity encoding are peeled off.
const maxSanitizeRounds = 8

// Sanitize strips all markup from s and returns the remaining plain text.
// Entity-encoded markup is decoded and stripped as well, so the result never
// decodes to a tag. Input still changing after maxSanitizeRounds is returned
// in its escaped form.
func Sanitize(s string) string {
	for range maxSanitizeRounds {
		next := html.UnescapeString(policy.Sanitize(s))
		if next == s {
			return strings.TrimSpace(s)
		}
		s = next
	}
	return strings.TrimSpace(policy.Sanitize(s))
}

// provided reports whether a field was sent with a non-null value.
func provided(v json.RawMessage) bool {
	return len(v) > 0 && string(v) != "null"
}

func stringValue(v json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", false
	}
	return s, true
}

func numberValue(v json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(v, &n); err != nil {
		return 0, false
	}
	return n, true
}

// name validates a name field, recording invalid when it is not a usable
// string. It returns nil if the field failed.
func name(v json.RawMessage, invalid string, errs *Errors) *string {
	s, ok := stringValue(v)
	s = strings.TrimSpace(s)
	if !ok || s == "" {
		errs.add(invalid)
		return nil
	}
	if utf8.RuneCountInString(s) > maxName {
		errs.add(msgNameTooLong)
		return nil
	}
	clean := Sanitize(s)
	if clean == "" {
		errs.add(invalid)
		return nil
	}
	return &clean
}

func description(v json.RawMessage, notString string, errs *Errors) *string {
	s, ok := stringValue(v)
	if !ok {
		errs.add(notString)
		return nil
	}
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxDescription {
		errs.add(msgDescTooLong)
		return nil
	}
	clean := Sanitize(s)
	return &clean
}
