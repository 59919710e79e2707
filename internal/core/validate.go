package core

import (
	"regexp"
)

// Input guard limits. Pattern names double as path components and argv
// values, so the grammar is deliberately narrow.
const (
	MaxPatternNameLen = 100
	MaxInputChars     = 50000
)

var patternNameRe = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// ValidatePatternName rejects any name outside the safe grammar: ASCII
// letters, digits, dot, underscore, hyphen, length 1..100. The empty string
// fails. This is the only gate between user input and the argv of the
// external process.
func ValidatePatternName(name string) error {
	if name == "" {
		return ErrValidation(CodeInvalidPatternName, "pattern name is empty")
	}
	if len(name) > MaxPatternNameLen {
		return ErrValidation(CodeInvalidPatternName,
			"pattern name exceeds %d characters", MaxPatternNameLen).
			WithDetail("length", len(name))
	}
	if !patternNameRe.MatchString(name) {
		return ErrValidation(CodeInvalidPatternName,
			"pattern name contains characters outside [A-Za-z0-9._-]").
			WithDetail("name", name)
	}
	return nil
}

// ValidModelRef reports whether a model reference is usable as a single
// argv value. It accepts bare model names and vendor/model pairs; anything
// containing whitespace or control characters is rejected.
func ValidModelRef(ref string) bool {
	if ref == "" || len(ref) > 200 {
		return false
	}
	for _, r := range ref {
		if r <= ' ' || r == 0x7f {
			return false
		}
	}
	return true
}

// SanitizeInput truncates free-form input to maxChars characters (runes,
// not bytes) before it reaches a subprocess. A maxChars <= 0 applies the
// default cap. The input is data only and is never parsed as shell.
func SanitizeInput(text string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = MaxInputChars
	}
	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
