package providers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVendorTableOrder(t *testing.T) {
	names := make([]string, 0)
	for _, v := range Vendors() {
		names = append(names, v.Name)
	}

	assert.Equal(t, []string{
		"openai", "anthropic", "ollama", "azure",
		"gemini", "perplexity", "groq", "openrouter",
	}, names)
}

func TestKnownVendor(t *testing.T) {
	assert.True(t, KnownVendor("openai"))
	assert.True(t, KnownVendor("ollama"))
	assert.False(t, KnownVendor("OpenAI"))
	assert.False(t, KnownVendor("acme"))
}

func TestService_LoadVendorsFromEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := `# fabric credentials
OPENAI_API_KEY=sk-test-123

ANTHROPIC_API_KEY="sk-ant-456"
OLLAMA_URL=http://localhost:11434
OPENAI_MODELS=gpt-4o, gpt-4-turbo ,
`
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))
	t.Setenv("GEMINI_API_KEY", "")

	svc := New(Options{ExecutablePath: "fabric", EnvFile: envFile})
	statuses := svc.LoadVendors()
	require.Len(t, statuses, 8)

	byName := make(map[string]VendorStatus)
	for _, status := range statuses {
		byName[status.Name] = status
	}

	openai := byName["openai"]
	assert.True(t, openai.Enabled)
	assert.True(t, openai.HasKey)
	assert.Equal(t, "OPENAI_API_KEY", openai.KeyVar)
	assert.Equal(t, []string{"gpt-4o", "gpt-4-turbo"}, openai.Models)

	anthropic := byName["anthropic"]
	assert.True(t, anthropic.Enabled, "quoted key values should still count")

	ollama := byName["ollama"]
	assert.True(t, ollama.Enabled, "ollama needs no key")
	assert.False(t, ollama.HasKey)
	assert.Equal(t, "http://localhost:11434", ollama.BaseURL)

	assert.False(t, byName["gemini"].Enabled)
}

func TestService_LoadVendorsFileWinsOverProcessEnv(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("OLLAMA_URL=http://from-file:1\n"), 0o600))
	t.Setenv("OLLAMA_URL", "http://from-process:2")

	svc := New(Options{ExecutablePath: "fabric", EnvFile: envFile})

	for _, status := range svc.LoadVendors() {
		if status.Name == "ollama" {
			assert.Equal(t, "http://from-file:1", status.BaseURL)
			return
		}
	}
	t.Fatal("ollama missing from vendor statuses")
}

func TestService_LoadVendorsMissingFile(t *testing.T) {
	svc := New(Options{
		ExecutablePath: "fabric",
		EnvFile:        filepath.Join(t.TempDir(), "does-not-exist.env"),
	})

	statuses := svc.LoadVendors()

	require.Len(t, statuses, 8)
	for _, status := range statuses {
		if status.Name == "ollama" {
			assert.True(t, status.Enabled)
		}
	}
}

func TestService_EnabledVendors(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("GROQ_API_KEY=gsk-test\n"), 0o600))

	svc := New(Options{ExecutablePath: "fabric", EnvFile: envFile})
	enabled := svc.EnabledVendors()

	assert.Contains(t, enabled, "groq")
	assert.Contains(t, enabled, "ollama")
}

func TestDetectVendor(t *testing.T) {
	tests := []struct {
		model  string
		vendor string
	}{
		{"gpt-4o", "openai"},
		{"claude-3-opus-20240229", "anthropic"},
		{"llama3:8b", "ollama"},
		{"mixtral-8x7b", "ollama"},
		{"gemini-2.0-flash", "gemini"},
		{"pplx-70b-online", "perplexity"},
		{"openrouter/auto", "openrouter"},
		{"anthropic", "anthropic"},
		{"totally-novel", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.vendor, DetectVendor(tt.model))
		})
	}
}
