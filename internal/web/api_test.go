package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/events"
	"github.com/patternbench/patternbench/internal/health"
	"github.com/patternbench/patternbench/internal/monitor"
	"github.com/patternbench/patternbench/internal/outputs"
	"github.com/patternbench/patternbench/internal/patterns"
	"github.com/patternbench/patternbench/internal/providers"
	"github.com/patternbench/patternbench/internal/runner"
)

// echoScript tags stdin with the pattern name so chain piping is visible.
const echoScript = "#!/bin/sh\ninput=$(cat)\necho \"[$2] $input\"\n"

// argvScript prints its argv one per line and ignores stdin.
const argvScript = "#!/bin/sh\ncat > /dev/null\nfor a in \"$@\"; do printf '%s\\n' \"$a\"; done\n"

const modelListing = "Available models:\n\nOpenAI\n\n\t[1]\tgpt-4o\n\t[2]\tgpt-4o-mini\n\nAnthropic\n\n\t[3]\tclaude-3-opus\n"

type apiStack struct {
	ts   *httptest.Server
	bus  *events.Bus
	mon  *monitor.Monitor
	outs outputs.Store
	lib  *patterns.Store
}

type stackOptions struct {
	script        string
	defaultVendor string
	defaultModel  string
}

func writeScript(t *testing.T, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub executables require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newAPIStack(t *testing.T, o stackOptions) *apiStack {
	t.Helper()
	if o.script == "" {
		o.script = echoScript
	}
	runStub := writeScript(t, "fake-fabric", o.script)
	listStub := writeScript(t, "fake-list", "#!/bin/sh\ncat <<'EOF'\n"+modelListing+"EOF\n")

	bus := events.New(64)
	t.Cleanup(bus.Close)

	mon := monitor.New(monitor.Options{MaxHistory: 100, Bus: bus})
	run := runner.New(runner.Config{ExecutablePath: runStub, DefaultTimeout: 10 * time.Second}, mon, nil)

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "summarize.md"),
		[]byte("Summarize the input into a tight executive brief.\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "analyze_claims"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "analyze_claims", "system.md"),
		[]byte("Analyze every claim in the input and rate the evidence.\n"), 0o644))
	lib := patterns.New(patterns.Options{Root: root, CacheTTL: time.Hour, Bus: bus})
	t.Cleanup(lib.Close)

	outs, err := outputs.NewStore(outputs.Options{Backend: outputs.BackendJSON, Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = outs.Close() })

	prov := providers.New(providers.Options{
		ExecutablePath: listStub,
		EnvFile:        filepath.Join(t.TempDir(), "missing.env"),
	})

	api := NewAPIHandler(APIOptions{
		Runner:        run,
		Monitor:       mon,
		Patterns:      lib,
		Providers:     prov,
		Outputs:       outs,
		Health:        health.NewChecker(runStub, nil),
		DefaultVendor: o.defaultVendor,
		DefaultModel:  o.defaultModel,
	})
	server := New(DefaultConfig(), nil, WithEventBus(bus), WithAPI(api))
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &apiStack{ts: ts, bus: bus, mon: mon, outs: outs, lib: lib}
}

func (s *apiStack) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(s.ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func (s *apiStack) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(s.ts.URL + path)
	require.NoError(t, err)
	return resp
}

func (s *apiStack) do(t *testing.T, method, path string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeInto(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAPI_RunExecutesPattern(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	resp := s.postJSON(t, "/api/v1/run", RunRequest{
		Pattern: "summarize",
		Input:   "hello world",
		Save:    true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result RunResponse
	decodeInto(t, resp, &result)

	assert.True(t, result.Success)
	assert.Equal(t, "[summarize] hello world", strings.TrimSpace(result.Output))
	assert.Zero(t, result.ExitCode)
	assert.NotEmpty(t, result.ExecutionID)
	assert.NotEmpty(t, result.OutputID)

	rec, ok := s.mon.Get(core.ExecutionID(result.ExecutionID))
	require.True(t, ok)
	assert.Equal(t, core.StatusCompleted, rec.Status)

	var logs []outputs.OutputLog
	decodeInto(t, s.get(t, "/api/v1/outputs"), &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, result.OutputID, logs[0].ID)
	assert.Equal(t, "summarize", logs[0].Pattern)
	assert.Equal(t, "hello world", logs[0].InputText)
}

func TestAPI_RunRejectsInvalidPatternName(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	resp := s.postJSON(t, "/api/v1/run", RunRequest{Pattern: "bad name!", Input: "x"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body errorBody
	decodeInto(t, resp, &body)
	assert.Equal(t, core.CodeInvalidPatternName, body.Code)
	assert.Equal(t, string(core.ErrCatValidation), body.Category)

	// Fail-fast: nothing was launched or recorded.
	assert.Empty(t, s.mon.Recent(0))
}

func TestAPI_RunFailureIsData(t *testing.T) {
	s := newAPIStack(t, stackOptions{script: "#!/bin/sh\necho 'boom' >&2\nexit 3\n"})

	resp := s.postJSON(t, "/api/v1/run", RunRequest{Pattern: "summarize", Input: "x"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result RunResponse
	decodeInto(t, resp, &result)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.ExitCode)
	assert.Contains(t, result.Error, "boom")
	assert.NotEmpty(t, result.ExecutionID)
}

func TestAPI_RunAppliesConfiguredDefaultModel(t *testing.T) {
	s := newAPIStack(t, stackOptions{
		script:        argvScript,
		defaultVendor: "openai",
		defaultModel:  "gpt-4o",
	})

	var result RunResponse
	decodeInto(t, s.postJSON(t, "/api/v1/run", RunRequest{Pattern: "summarize", Input: "x"}), &result)
	assert.Contains(t, result.Output, "openai/gpt-4o")

	// An explicit model wins over the default.
	decodeInto(t, s.postJSON(t, "/api/v1/run", RunRequest{
		Pattern: "summarize", Input: "x", Vendor: "ollama", Model: "llama3",
	}), &result)
	assert.Contains(t, result.Output, "ollama/llama3")
	assert.NotContains(t, result.Output, "gpt-4o")
}

func TestAPI_ChainPipesOutputs(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	resp := s.postJSON(t, "/api/v1/chain", ChainRequest{
		Patterns: []string{"extract_wisdom", "summarize"},
		Input:    "seed",
		Save:     true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result ChainResponse
	decodeInto(t, resp, &result)
	require.Len(t, result.Steps, 2)

	assert.Equal(t, "seed", result.Steps[0].Input)
	assert.Equal(t, "[extract_wisdom] seed", strings.TrimSpace(result.Steps[0].Output))
	assert.Equal(t, result.Steps[0].Output, result.Steps[1].Input)
	assert.Equal(t, "[summarize] [extract_wisdom] seed", strings.TrimSpace(result.Steps[1].Output))
	assert.NotEmpty(t, result.OutputID)

	var logs []outputs.OutputLog
	decodeInto(t, s.get(t, "/api/v1/outputs"), &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "extract_wisdom,summarize", logs[0].Pattern)
	assert.Equal(t, "seed", logs[0].InputText)
}

func TestAPI_ChainEmptyPatternsIsNoOp(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	resp := s.postJSON(t, "/api/v1/chain", ChainRequest{Input: "seed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result ChainResponse
	decodeInto(t, resp, &result)
	assert.Empty(t, result.Steps)
	assert.Empty(t, result.OutputID)
}

func TestAPI_ChainInvalidStageReturnsCompletedSteps(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	resp := s.postJSON(t, "/api/v1/chain", ChainRequest{
		Patterns: []string{"summarize", "bad name!"},
		Input:    "seed",
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body struct {
		errorBody
		Steps []core.ChainStep `json:"steps"`
	}
	decodeInto(t, resp, &body)
	assert.Equal(t, core.CodeInvalidPatternName, body.Code)
	require.Len(t, body.Steps, 1)
	assert.Equal(t, "summarize", body.Steps[0].Pattern)
}

func TestAPI_ExecutionEndpoints(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	var first, second RunResponse
	decodeInto(t, s.postJSON(t, "/api/v1/run", RunRequest{Pattern: "summarize", Input: "a"}), &first)
	decodeInto(t, s.postJSON(t, "/api/v1/run", RunRequest{Pattern: "analyze_claims", Input: "b"}), &second)

	var recent []core.ExecutionRecord
	decodeInto(t, s.get(t, "/api/v1/executions/recent"), &recent)
	require.Len(t, recent, 2)

	decodeInto(t, s.get(t, "/api/v1/executions/recent?limit=1"), &recent)
	require.Len(t, recent, 1)

	var active []core.ExecutionRecord
	decodeInto(t, s.get(t, "/api/v1/executions/active"), &active)
	assert.Empty(t, active)

	var stats core.ExecutionStats
	decodeInto(t, s.get(t, "/api/v1/executions/stats"), &stats)
	assert.Equal(t, 2, stats.TotalExecutions)
	assert.Equal(t, 2, stats.CompletedCount)
	assert.InDelta(t, 1.0, stats.SuccessRate, 0.001)

	var rec core.ExecutionRecord
	resp := s.get(t, "/api/v1/executions/"+first.ExecutionID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &rec)
	assert.Equal(t, "summarize", rec.Pattern)

	resp = s.get(t, "/api/v1/executions/no-such-id")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_CancelExecution(t *testing.T) {
	s := newAPIStack(t, stackOptions{script: "#!/bin/sh\nsleep 30\n"})

	type runOutcome struct {
		result RunResponse
		status int
	}
	outcome := make(chan runOutcome, 1)
	go func() {
		body, _ := json.Marshal(RunRequest{Pattern: "summarize", Input: "x"})
		resp, err := http.Post(s.ts.URL+"/api/v1/run", "application/json", bytes.NewReader(body))
		if err != nil {
			outcome <- runOutcome{status: -1}
			return
		}
		defer resp.Body.Close()
		var result RunResponse
		_ = json.NewDecoder(resp.Body).Decode(&result)
		outcome <- runOutcome{result, resp.StatusCode}
	}()

	var id string
	require.Eventually(t, func() bool {
		active := s.mon.Active()
		if len(active) == 0 {
			return false
		}
		id = string(active[0].ID)
		return true
	}, 5*time.Second, 20*time.Millisecond)

	resp := s.do(t, http.MethodPost, "/api/v1/executions/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var rec core.ExecutionRecord
	decodeInto(t, resp, &rec)
	assert.Equal(t, core.StatusCancelled, rec.Status)

	select {
	case out := <-outcome:
		require.Equal(t, http.StatusOK, out.status)
		assert.False(t, out.result.Success)
	case <-time.After(10 * time.Second):
		t.Fatal("cancelled run never returned")
	}

	// Cancelling a finished execution is a conflict.
	resp = s.do(t, http.MethodPost, "/api/v1/executions/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(t, http.MethodPost, "/api/v1/executions/no-such-id/cancel", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_PatternsCRUD(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	var list []patterns.Pattern
	decodeInto(t, s.get(t, "/api/v1/patterns"), &list)
	require.Len(t, list, 2)

	decodeInto(t, s.get(t, "/api/v1/patterns?q=claims"), &list)
	require.Len(t, list, 1)
	assert.Equal(t, "analyze_claims", list[0].Name)

	var doc patterns.Document
	resp := s.get(t, "/api/v1/patterns/summarize")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &doc)
	assert.Contains(t, doc.Content, "executive brief")

	resp = s.do(t, http.MethodPut, "/api/v1/patterns/write_haiku", []byte("Write a haiku about the input's core idea.\n"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decodeInto(t, resp, &doc)
	assert.Equal(t, "write_haiku", doc.Name)

	resp = s.do(t, http.MethodPut, "/api/v1/patterns/write_haiku", []byte("Write two haiku instead, contrasting views.\n"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeInto(t, resp, &doc)
	assert.Contains(t, doc.Content, "two haiku")

	resp = s.do(t, http.MethodDelete, "/api/v1/patterns/write_haiku", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	resp = s.get(t, "/api/v1/patterns/write_haiku")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = s.do(t, http.MethodPut, "/api/v1/patterns/bad%20name", []byte("nope"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_ModelsAndVendors(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	var models []providers.Model
	decodeInto(t, s.get(t, "/api/v1/models"), &models)
	require.Len(t, models, 3)

	decodeInto(t, s.get(t, "/api/v1/models?vendor=anthropic"), &models)
	require.Len(t, models, 1)
	assert.Equal(t, "claude-3-opus", models[0].Name)

	var vendors []providers.VendorStatus
	decodeInto(t, s.get(t, "/api/v1/vendors"), &vendors)
	require.NotEmpty(t, vendors)

	names := make(map[string]bool, len(vendors))
	for _, v := range vendors {
		names[v.Name] = true
	}
	assert.True(t, names["ollama"])
	assert.True(t, names["openai"])
}

func TestAPI_OutputLifecycle(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	var run RunResponse
	decodeInto(t, s.postJSON(t, "/api/v1/run", RunRequest{Pattern: "summarize", Input: "x", Save: true}), &run)
	require.NotEmpty(t, run.OutputID)

	resp := s.postJSON(t, "/api/v1/outputs/"+run.OutputID+"/star", StarRequest{Name: "keeper"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var starred outputs.StarredOutput
	decodeInto(t, resp, &starred)
	assert.Equal(t, "keeper", starred.Name)

	var starredList []outputs.StarredOutput
	decodeInto(t, s.get(t, "/api/v1/outputs/starred"), &starredList)
	require.Len(t, starredList, 1)

	// The starred copy survives deleting the log entry.
	resp = s.do(t, http.MethodDelete, "/api/v1/outputs/"+run.OutputID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	var logs []outputs.OutputLog
	decodeInto(t, s.get(t, "/api/v1/outputs"), &logs)
	assert.Empty(t, logs)

	decodeInto(t, s.get(t, "/api/v1/outputs/starred"), &starredList)
	require.Len(t, starredList, 1)

	resp = s.do(t, http.MethodDelete, "/api/v1/outputs/"+run.OutputID+"/star", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()

	decodeInto(t, s.get(t, "/api/v1/outputs/starred"), &starredList)
	assert.Empty(t, starredList)

	resp = s.postJSON(t, "/api/v1/outputs/no-such-id/star", StarRequest{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestAPI_SystemHealth(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	resp := s.get(t, "/api/v1/health/system")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap health.Snapshot
	decodeInto(t, resp, &snap)
	assert.True(t, snap.ExecutableAvailable)
	assert.WithinDuration(t, time.Now().UTC(), snap.CheckedAt, 10*time.Second)
}

func TestAPI_MalformedBody(t *testing.T) {
	s := newAPIStack(t, stackOptions{})

	for _, path := range []string{"/api/v1/run", "/api/v1/chain"} {
		resp, err := http.Post(s.ts.URL+path, "application/json", strings.NewReader("{not json"))
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, fmt.Sprintf("POST %s", path))
		resp.Body.Close()
	}
}
