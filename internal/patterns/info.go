package patterns

import (
	"sort"
	"strings"
	"unicode"
)

// Format distinguishes the two on-disk pattern layouts.
type Format string

const (
	// FormatFile is a single <name>.md file in the root.
	FormatFile Format = "md"
	// FormatDir is the fabric layout: <name>/system.md, optionally with a
	// user.md alongside.
	FormatDir Format = "system.md"
)

// Pattern describes one template in the library.
type Pattern struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	HasUser     bool     `json:"has_user"`
	EstTokens   int      `json:"est_tokens"`
	Format      Format   `json:"format"`
	Path        string   `json:"path"`
	Size        int64    `json:"size"`
	ModifiedAt  int64    `json:"modified_at"`
}

// Document is a pattern together with its content, as served to editors
// and fed to the external CLI's template lookup.
type Document struct {
	Pattern
	Content     string `json:"content"`
	UserContent string `json:"user_content,omitempty"`
}

// categoryByPrefix maps pattern name prefixes onto display categories.
var categoryByPrefix = map[string]string{
	"analyze_":   "Analysis",
	"create_":    "Creation",
	"extract_":   "Extraction",
	"improve_":   "Enhancement",
	"generate_":  "Generation",
	"summarize_": "Summarization",
	"explain_":   "Explanation",
	"write_":     "Writing",
	"check_":     "Validation",
	"compare_":   "Comparison",
	"convert_":   "Conversion",
	"ask_":       "Q&A",
	"capture_":   "Documentation",
	"clean_":     "Processing",
}

// DefaultCategory is used when no prefix matches.
const DefaultCategory = "General"

// Categorize derives a display category from the pattern name prefix.
func Categorize(name string) string {
	for prefix, category := range categoryByPrefix {
		if strings.HasPrefix(name, prefix) {
			return category
		}
	}
	return DefaultCategory
}

// noDescription is reported when the content has no usable summary line.
const noDescription = "No description available"

// describe extracts a short description: the first substantive content line
// that is not a heading and not the role preamble.
func describe(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(strings.ToLower(line), "you are") {
			continue
		}
		if len(line) <= 20 {
			continue
		}
		if len(line) > 200 {
			return line[:200] + "..."
		}
		return line
	}
	return noDescription
}

// displayName turns snake_case pattern names into title-cased labels.
func displayName(name string) string {
	words := strings.Split(strings.ReplaceAll(name, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// extractTags collects the name's words plus coarse content keywords.
func extractTags(name, content string) []string {
	set := make(map[string]struct{})
	for _, w := range strings.Split(name, "_") {
		if w != "" {
			set[w] = struct{}{}
		}
	}
	lower := strings.ToLower(content)
	if strings.Contains(lower, "security") {
		set["security"] = struct{}{}
	}
	if strings.Contains(lower, "code") || strings.Contains(lower, "function") {
		set["code"] = struct{}{}
	}
	if strings.Contains(lower, "analyze") {
		set["analysis"] = struct{}{}
	}
	if strings.Contains(lower, "write") || strings.Contains(lower, "essay") {
		set["writing"] = struct{}{}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// EstimateTokens approximates the token cost of text at four characters
// per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}
