package core

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidatePatternName_Accepts(t *testing.T) {
	valid := []string{
		"summarize",
		"extract_wisdom",
		"analyze-claims",
		"v2.final",
		"A",
		"0",
		"_",
		"-",
		".",
		strings.Repeat("a", 100),
	}
	for _, name := range valid {
		if err := ValidatePatternName(name); err != nil {
			t.Errorf("ValidatePatternName(%q) = %v, want nil", name, err)
		}
	}
}

func TestValidatePatternName_Rejects(t *testing.T) {
	invalid := []string{
		"",
		" ",
		"name with space",
		"semi;colon",
		"pipe|pipe",
		"dollar$var",
		"back`tick",
		"slash/slash",
		"back\\slash",
		"../escape",
		"new\nline",
		"tab\tname",
		"quote\"name",
		"unicode-é",
		strings.Repeat("a", 101),
	}
	for _, name := range invalid {
		err := ValidatePatternName(name)
		if err == nil {
			t.Errorf("ValidatePatternName(%q) = nil, want error", name)
			continue
		}
		if !IsCategory(err, ErrCatValidation) {
			t.Errorf("ValidatePatternName(%q) category = %v, want validation", name, GetCategory(err))
		}
	}
}

func TestValidatePatternName_ErrorCode(t *testing.T) {
	err := ValidatePatternName("bad name")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %T", err)
	}
	if de.Code != CodeInvalidPatternName {
		t.Fatalf("code = %q, want %q", de.Code, CodeInvalidPatternName)
	}
}

func TestValidModelRef(t *testing.T) {
	cases := []struct {
		ref string
		ok  bool
	}{
		{"gpt-4o", true},
		{"openai/gpt-4o", true},
		{"anthropic/claude-sonnet-4", true},
		{"", false},
		{"has space", false},
		{"tab\there", false},
		{"new\nline", false},
		{strings.Repeat("m", 201), false},
	}
	for _, tc := range cases {
		if got := ValidModelRef(tc.ref); got != tc.ok {
			t.Errorf("ValidModelRef(%q) = %v, want %v", tc.ref, got, tc.ok)
		}
	}
}

func TestSanitizeInput_Truncates(t *testing.T) {
	long := strings.Repeat("x", MaxInputChars+500)
	got := SanitizeInput(long, 0)
	if len(got) != MaxInputChars {
		t.Fatalf("len = %d, want %d", len(got), MaxInputChars)
	}

	short := "hello world"
	if SanitizeInput(short, 0) != short {
		t.Fatalf("short input should pass through unchanged")
	}
}

func TestSanitizeInput_CountsRunes(t *testing.T) {
	// Multi-byte runes must be counted as single characters and never
	// split mid-sequence.
	in := strings.Repeat("é", 10)
	got := SanitizeInput(in, 4)
	if utf8.RuneCountInString(got) != 4 {
		t.Fatalf("rune count = %d, want 4", utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncation split a rune: %q", got)
	}
}

func TestSanitizeInput_CustomCap(t *testing.T) {
	got := SanitizeInput("abcdef", 3)
	if got != "abc" {
		t.Fatalf("got %q, want %q", got, "abc")
	}
}
