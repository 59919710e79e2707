package logging

import (
	"fmt"
	"regexp"
)

// Sanitizer redacts provider credentials and generic secrets from log
// output. Pattern invocations inherit the full environment, so API keys for
// every configured vendor can show up in error text.
type Sanitizer struct {
	rules    []redactRule
	redacted string
}

type redactRule struct {
	name string
	re   *regexp.Regexp
}

// NewSanitizer creates a sanitizer covering the known vendor key formats
// plus generic token shapes.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		rules:    defaultRules(),
		redacted: "[REDACTED]",
	}
}

func defaultRules() []redactRule {
	specs := []struct {
		name string
		expr string
	}{
		{"anthropic_key", `sk-ant-[a-zA-Z0-9-]{40,}`},
		{"openai_key", `sk-[A-Za-z0-9]{20,}`},
		{"google_key", `AIza[a-zA-Z0-9_-]{35}`},
		{"groq_key", `gsk_[A-Za-z0-9]{20,}`},
		{"github_token", `gh[pousr]_[A-Za-z0-9]{36}`},
		{"aws_access_key", `AKIA[0-9A-Z]{16}`},
		{"bearer_token", `(?i)bearer\s+[a-zA-Z0-9._-]{20,}`},
		{"api_key_assign", `(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{20,}`},
		{"secret_assign", `(?i)secret["'\s:=]+[a-zA-Z0-9_-]{20,}`},
		{"token_assign", `(?i)token["'\s:=]+[a-zA-Z0-9_-]{20,}`},
		{"password_assign", `(?i)password["'\s:=]+[^\s"']{8,}`},
	}

	rules := make([]redactRule, 0, len(specs))
	for _, s := range specs {
		rules = append(rules, redactRule{name: s.name, re: regexp.MustCompile(s.expr)})
	}
	return rules
}

// Sanitize redacts all matching secrets from a string.
func (s *Sanitizer) Sanitize(input string) string {
	out := input
	for _, r := range s.rules {
		out = r.re.ReplaceAllString(out, s.redacted)
	}
	return out
}

// SanitizeMap redacts string values in a map, descending into nested maps.
func (s *Sanitizer) SanitizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = s.Sanitize(val)
		case map[string]any:
			out[k] = s.SanitizeMap(val)
		default:
			out[k] = v
		}
	}
	return out
}

// AddRule registers a custom named pattern.
func (s *Sanitizer) AddRule(name, expr string) error {
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("compile redact rule %q: %w", name, err)
	}
	s.rules = append(s.rules, redactRule{name: name, re: re})
	return nil
}

// SetRedactedPlaceholder overrides the replacement text.
func (s *Sanitizer) SetRedactedPlaceholder(placeholder string) {
	s.redacted = placeholder
}
