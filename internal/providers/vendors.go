package providers

import (
	"bufio"
	"os"
	"strings"
)

// Vendor is one entry of the known-vendor table.
type Vendor struct {
	// Name is the lowercase vendor identifier used in model refs.
	Name string
	// KeyVar is the API key environment variable; empty means the vendor
	// needs no key.
	KeyVar string
	// BaseURLVar names the optional endpoint override variable.
	BaseURLVar string
	// ModelPrefixes identify this vendor's models by name.
	ModelPrefixes []string
}

// vendorTable is ordered; prefix detection resolves collisions (gpt- is
// openai before azure, llama is ollama before groq) by first match.
var vendorTable = []Vendor{
	{Name: "openai", KeyVar: "OPENAI_API_KEY", BaseURLVar: "OPENAI_BASE_URL", ModelPrefixes: []string{"gpt-"}},
	{Name: "anthropic", KeyVar: "ANTHROPIC_API_KEY", BaseURLVar: "ANTHROPIC_BASE_URL", ModelPrefixes: []string{"claude-"}},
	{Name: "ollama", KeyVar: "", BaseURLVar: "OLLAMA_URL", ModelPrefixes: []string{"llama", "mistral", "mixtral", "codellama"}},
	{Name: "azure", KeyVar: "AZURE_OPENAI_API_KEY", BaseURLVar: "AZURE_OPENAI_ENDPOINT", ModelPrefixes: []string{"gpt-", "azure-"}},
	{Name: "gemini", KeyVar: "GEMINI_API_KEY", BaseURLVar: "GEMINI_BASE_URL", ModelPrefixes: []string{"gemini-"}},
	{Name: "perplexity", KeyVar: "PERPLEXITY_API_KEY", BaseURLVar: "PERPLEXITY_BASE_URL", ModelPrefixes: []string{"pplx-"}},
	{Name: "groq", KeyVar: "GROQ_API_KEY", BaseURLVar: "GROQ_BASE_URL", ModelPrefixes: []string{"llama", "mixtral"}},
	{Name: "openrouter", KeyVar: "OPENROUTER_API_KEY", BaseURLVar: "OPENROUTER_API_BASE_URL", ModelPrefixes: []string{"openrouter/", "or/"}},
}

// Vendors returns the known-vendor table.
func Vendors() []Vendor {
	out := make([]Vendor, len(vendorTable))
	copy(out, vendorTable)
	return out
}

// KnownVendor reports whether name is in the vendor table.
func KnownVendor(name string) bool {
	for _, v := range vendorTable {
		if v.Name == name {
			return true
		}
	}
	return false
}

// VendorStatus is a vendor's runtime configuration state. Key material
// itself is never carried, only its presence.
type VendorStatus struct {
	Name    string   `json:"name"`
	Enabled bool     `json:"enabled"`
	KeyVar  string   `json:"key_var,omitempty"`
	HasKey  bool     `json:"has_key"`
	BaseURL string   `json:"base_url,omitempty"`
	Models  []string `json:"models,omitempty"`
}

// LoadVendors resolves the table against the credentials file and the
// process environment. File values win over process values. A vendor is
// enabled when its key is present; ollama is always enabled.
func (s *Service) LoadVendors() []VendorStatus {
	env := s.readEnvFile(s.envFile)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, exists := env[key]; !exists {
			env[key] = value
		}
	}

	statuses := make([]VendorStatus, 0, len(vendorTable))
	for _, v := range vendorTable {
		status := VendorStatus{Name: v.Name, KeyVar: v.KeyVar}
		if v.KeyVar != "" {
			if key := env[v.KeyVar]; key != "" {
				status.HasKey = true
				status.Enabled = true
			}
		} else if v.Name == "ollama" {
			status.Enabled = true
		}
		if v.BaseURLVar != "" {
			status.BaseURL = env[v.BaseURLVar]
		}
		if list := env[strings.ToUpper(v.Name)+"_MODELS"]; list != "" {
			for _, m := range strings.Split(list, ",") {
				if m = strings.TrimSpace(m); m != "" {
					status.Models = append(status.Models, m)
				}
			}
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// EnabledVendors returns the names of vendors with credentials present.
func (s *Service) EnabledVendors() []string {
	names := make([]string, 0)
	for _, status := range s.LoadVendors() {
		if status.Enabled {
			names = append(names, status.Name)
		}
	}
	return names
}

// readEnvFile parses KEY=VALUE lines, skipping comments and blanks and
// stripping surrounding quotes. A missing file yields an empty map.
func (s *Service) readEnvFile(path string) map[string]string {
	env := make(map[string]string)
	if path == "" {
		return env
	}

	f, err := os.Open(path)
	if err != nil {
		return env
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		env[strings.TrimSpace(key)] = value
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("reading credentials file", "path", path, "error", err)
	}
	return env
}

// DetectVendor guesses the vendor for a bare model name: an exact vendor
// name matches first, then the table's model prefixes in order.
func DetectVendor(model string) string {
	lower := strings.ToLower(model)
	for _, v := range vendorTable {
		if lower == v.Name {
			return v.Name
		}
	}
	for _, v := range vendorTable {
		for _, prefix := range v.ModelPrefixes {
			if strings.HasPrefix(lower, prefix) {
				return v.Name
			}
		}
	}
	return "unknown"
}
