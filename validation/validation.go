// Package validation sanitizes user-supplied session fields and checks the
// shape of request bodies.
//
// Sanitizers drop invalid UTF-8 and control characters, trim surrounding
// whitespace and then enforce a length limit counted in runes. Answers keep
// line breaks and tabs since they hold free-form notes.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameRunes   = 120
	MaxTextRunes   = 500
	MaxThemeRunes  = 60
	MaxAnswerRunes = 10000
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid input")

// FieldError names the offending field and a human-readable reason.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalid) hold for every FieldError.
func (e *FieldError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

func clean(s string, keepLines bool) string {
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		if keepLines && (r == '\n' || r == '\t') {
			return r
		}
		if r == '\r' && keepLines {
			return -1
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}

func bounded(field, value string, max int, required bool) (string, error) {
	if required && value == "" {
		return "", invalid(field, "is required")
	}
	if utf8.RuneCountInString(value) > max {
		return "", invalid(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return value, nil
}

// Name sanitizes a session display name.
func Name(raw string) (string, error) {
	return bounded("name", clean(raw, false), MaxNameRunes, true)
}

// Text sanitizes a question text.
func Text(raw string) (string, error) {
	return bounded("question.text", clean(raw, false), MaxTextRunes, true)
}

// Theme sanitizes an optional question theme. An empty theme is allowed.
func Theme(raw string) (string, error) {
	return bounded("question.theme", clean(raw, false), MaxThemeRunes, false)
}

// Answer sanitizes a free-text answer. An empty answer is allowed.
func Answer(raw string) (string, error) {
	return bounded("value", clean(raw, true), MaxAnswerRunes, false)
}
