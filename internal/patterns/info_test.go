package patterns

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		category string
	}{
		{"analysis prefix", "analyze_threat_report", "Analysis"},
		{"creation prefix", "create_summary", "Creation"},
		{"extraction prefix", "extract_wisdom", "Extraction"},
		{"question prefix", "ask_secure_by_design_questions", "Q&A"},
		{"validation prefix", "check_agreement", "Validation"},
		{"documentation prefix", "capture_thinkers_work", "Documentation"},
		{"no known prefix", "raw_query", "General"},
		{"prefix needs the underscore", "analyzer", "General"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.category, Categorize(tt.pattern))
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "first substantive line",
			content: "# IDENTITY\n\nYou are an expert analyst with deep experience.\nExtracts surprising ideas from any body of text.\n",
			want:    "Extracts surprising ideas from any body of text.",
		},
		{
			name:    "short lines skipped",
			content: "ok\nToo short\nThis line is long enough to serve as one.",
			want:    "This line is long enough to serve as one.",
		},
		{
			name:    "role preamble skipped case-insensitively",
			content: "YOU ARE a wizard of brevity and piercing insight.\nSummarizes content into crisp actionable bullets.",
			want:    "Summarizes content into crisp actionable bullets.",
		},
		{
			name:    "nothing usable",
			content: "# STEPS\n\nok\n",
			want:    "No description available",
		},
		{
			name:    "empty content",
			content: "",
			want:    "No description available",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describe(tt.content))
		})
	}
}

func TestDescribe_TruncatesLongLines(t *testing.T) {
	long := strings.Repeat("a", 250)

	got := describe(long)

	assert.Len(t, got, 203)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, long[:200], got[:200])
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Analyze Threat Report", displayName("analyze_threat_report"))
	assert.Equal(t, "Summarize", displayName("summarize"))
}

func TestExtractTags(t *testing.T) {
	content := "Analyze the provided code and write a report covering security flaws."

	tags := extractTags("analyze_code_quality", content)

	assert.Equal(t, []string{"analysis", "analyze", "code", "quality", "security", "writing"}, tags)
}

func TestExtractTags_NameOnly(t *testing.T) {
	tags := extractTags("summarize_paper", "Short and neutral.")

	assert.Equal(t, []string{"paper", "summarize"}, tags)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 25, EstimateTokens(strings.Repeat("x", 100)))
}
