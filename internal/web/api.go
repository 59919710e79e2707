package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/health"
	"github.com/patternbench/patternbench/internal/logging"
	"github.com/patternbench/patternbench/internal/monitor"
	"github.com/patternbench/patternbench/internal/outputs"
	"github.com/patternbench/patternbench/internal/patterns"
	"github.com/patternbench/patternbench/internal/providers"
	"github.com/patternbench/patternbench/internal/runner"
)

// maxPatternBytes caps the body of a pattern save.
const maxPatternBytes = 1 << 20

// RunRequest is the request body for executing a single pattern.
type RunRequest struct {
	Pattern        string `json:"pattern"`
	Input          string `json:"input"`
	Vendor         string `json:"vendor,omitempty"`
	Model          string `json:"model,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	Save           bool   `json:"save,omitempty"`
}

// RunResponse is the outcome of a single execution. Failures ride inside
// the body with Success=false; only rejected requests get an error status.
type RunResponse struct {
	core.RunResult
	ExecutionID string `json:"execution_id,omitempty"`
	OutputID    string `json:"output_id,omitempty"`
}

// ChainRequest is the request body for executing a pattern chain.
type ChainRequest struct {
	Patterns        []string `json:"patterns"`
	Input           string   `json:"input"`
	Vendor          string   `json:"vendor,omitempty"`
	Model           string   `json:"model,omitempty"`
	TimeoutSeconds  int      `json:"timeout_seconds,omitempty"`
	ContinueOnError bool     `json:"continue_on_error,omitempty"`
	Save            bool     `json:"save,omitempty"`
}

// ChainResponse carries the per-stage results of a chain execution.
type ChainResponse struct {
	Steps    []core.ChainStep `json:"steps"`
	OutputID string           `json:"output_id,omitempty"`
}

// StarRequest is the optional request body for starring an output.
type StarRequest struct {
	Name string `json:"name,omitempty"`
}

// APIOptions holds the dependencies of the API handler.
type APIOptions struct {
	Runner        *runner.Runner
	Monitor       *monitor.Monitor
	Patterns      *patterns.Store
	Providers     *providers.Service
	Outputs       outputs.Store
	Health        *health.Checker
	DefaultVendor string
	DefaultModel  string
	Logger        *logging.Logger
}

// APIHandler serves the /api/v1 routes.
type APIHandler struct {
	runner        *runner.Runner
	monitor       *monitor.Monitor
	patterns      *patterns.Store
	providers     *providers.Service
	outputs       outputs.Store
	health        *health.Checker
	defaultVendor string
	defaultModel  string
	logger        *logging.Logger
}

// NewAPIHandler creates the API handler.
func NewAPIHandler(opts APIOptions) *APIHandler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &APIHandler{
		runner:        opts.Runner,
		monitor:       opts.Monitor,
		patterns:      opts.Patterns,
		providers:     opts.Providers,
		outputs:       opts.Outputs,
		health:        opts.Health,
		defaultVendor: opts.DefaultVendor,
		defaultModel:  opts.DefaultModel,
		logger:        logger.WithComponent("api"),
	}
}

// RegisterRoutes registers the API routes on the given router.
func (h *APIHandler) RegisterRoutes(r chi.Router) {
	r.Post("/run", h.Run)
	r.Post("/chain", h.RunChain)

	r.Route("/executions", func(r chi.Router) {
		r.Get("/active", h.ListActiveExecutions)
		r.Get("/recent", h.ListRecentExecutions)
		r.Get("/stats", h.ExecutionStats)
		r.Get("/{executionID}", h.GetExecution)
		r.Post("/{executionID}/cancel", h.CancelExecution)
	})

	r.Route("/patterns", func(r chi.Router) {
		r.Get("/", h.ListPatterns)
		r.Get("/{name}", h.GetPattern)
		r.Put("/{name}", h.SavePattern)
		r.Delete("/{name}", h.DeletePattern)
	})

	r.Get("/models", h.ListModels)
	r.Get("/vendors", h.ListVendors)

	r.Route("/outputs", func(r chi.Router) {
		r.Get("/", h.ListOutputs)
		r.Get("/starred", h.ListStarredOutputs)
		r.Delete("/{outputID}", h.DeleteOutput)
		r.Post("/{outputID}/star", h.StarOutput)
		r.Delete("/{outputID}/star", h.UnstarOutput)
	})

	r.Get("/health/system", h.SystemHealth)
}

// Run executes one pattern. Validation failures get a 4xx; every launch
// outcome, including timeouts and non-zero exits, returns 200 with the
// result body.
func (h *APIHandler) Run(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Vendor == "" && req.Model == "" {
		req.Vendor, req.Model = h.defaultVendor, h.defaultModel
	}

	result, err := h.runner.Run(r.Context(), runner.Request{
		Pattern: req.Pattern,
		Input:   req.Input,
		Vendor:  req.Vendor,
		Model:   req.Model,
		Timeout: time.Duration(req.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	resp := RunResponse{
		RunResult:   *result,
		ExecutionID: result.Metadata[core.MetaExecutionID],
	}
	if req.Save && result.Success {
		resp.OutputID = h.saveOutput(r, req.Pattern, req.Input, result.Output)
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunChain executes patterns in sequence, feeding each stage's output to
// the next. An empty pattern list is a no-op and returns no steps.
func (h *APIHandler) RunChain(w http.ResponseWriter, r *http.Request) {
	var req ChainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Vendor == "" && req.Model == "" {
		req.Vendor, req.Model = h.defaultVendor, h.defaultModel
	}

	steps, err := h.runner.RunChain(r.Context(), runner.ChainRequest{
		Patterns:        req.Patterns,
		Input:           req.Input,
		Vendor:          req.Vendor,
		Model:           req.Model,
		Timeout:         time.Duration(req.TimeoutSeconds) * time.Second,
		ContinueOnError: req.ContinueOnError,
	})
	if err != nil {
		// An invalid stage name aborts the chain; the stages that already
		// ran are returned alongside the error.
		h.writeChainError(w, err, steps)
		return
	}

	resp := ChainResponse{Steps: steps}
	if req.Save {
		if output, ok := finalChainOutput(steps); ok {
			resp.OutputID = h.saveOutput(r, strings.Join(req.Patterns, ","), req.Input, output)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// saveOutput persists a run artifact, returning its id. Store failures are
// logged and never fail the execution response.
func (h *APIHandler) saveOutput(r *http.Request, pattern, input, output string) string {
	if h.outputs == nil {
		return ""
	}
	saved, err := h.outputs.Append(r.Context(), outputs.OutputLog{
		Pattern:    pattern,
		InputText:  input,
		OutputText: output,
	})
	if err != nil {
		h.logger.Warn("saving output failed", "pattern", pattern, "error", err)
		return ""
	}
	return saved.ID
}

// finalChainOutput returns the last successful stage's output.
func finalChainOutput(steps []core.ChainStep) (string, bool) {
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].Error == "" {
			return steps[i].Output, true
		}
	}
	return "", false
}

// ListActiveExecutions returns executions that are queued or running.
func (h *APIHandler) ListActiveExecutions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Active())
}

// ListRecentExecutions returns executions newest first.
func (h *APIHandler) ListRecentExecutions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, h.monitor.Recent(limit))
}

// ExecutionStats returns aggregate registry statistics.
func (h *APIHandler) ExecutionStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.Stats())
}

// GetExecution returns one execution record.
func (h *APIHandler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id := core.ExecutionID(chi.URLParam(r, "executionID"))
	rec, ok := h.monitor.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CancelExecution requests cancellation of an active execution. Cancelling
// a terminal execution is a conflict, not an error that changes anything.
func (h *APIHandler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id := core.ExecutionID(chi.URLParam(r, "executionID"))
	if _, ok := h.monitor.Get(id); !ok {
		writeError(w, http.StatusNotFound, "execution not found")
		return
	}
	if !h.monitor.Cancel(id) {
		writeError(w, http.StatusConflict, "execution already finished")
		return
	}
	rec, _ := h.monitor.Get(id)
	writeJSON(w, http.StatusOK, rec)
}

// ListPatterns returns the pattern library, filtered by the q query when
// present.
func (h *APIHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	var (
		list []patterns.Pattern
		err  error
	)
	if query == "" {
		list, err = h.patterns.List()
	} else {
		list, err = h.patterns.Search(query)
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetPattern returns one pattern with its content.
func (h *APIHandler) GetPattern(w http.ResponseWriter, r *http.Request) {
	doc, err := h.patterns.Load(chi.URLParam(r, "name"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SavePattern creates or updates a pattern from the raw request body.
// Creation answers 201, update 200, both with the stored document.
func (h *APIHandler) SavePattern(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPatternBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "pattern content too large")
		return
	}

	name := chi.URLParam(r, "name")
	created, err := h.patterns.Save(name, string(body))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	doc, err := h.patterns.Load(name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, doc)
}

// DeletePattern removes a pattern from the library.
func (h *APIHandler) DeletePattern(w http.ResponseWriter, r *http.Request) {
	if err := h.patterns.Delete(chi.URLParam(r, "name")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListModels returns the model catalog, filtered by the vendor query when
// present.
func (h *APIHandler) ListModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.providers.ListModels(r.Context(), r.URL.Query().Get("vendor"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

// ListVendors returns every known vendor with its configuration state.
func (h *APIHandler) ListVendors(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.providers.LoadVendors())
}

// ListOutputs returns saved outputs newest first.
func (h *APIHandler) ListOutputs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	logs, err := h.outputs.List(r.Context(), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// DeleteOutput removes one saved output. Starred copies survive.
func (h *APIHandler) DeleteOutput(w http.ResponseWriter, r *http.Request) {
	if err := h.outputs.Delete(r.Context(), chi.URLParam(r, "outputID")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StarOutput stars a saved output under an optional name. An empty or
// missing body keeps the default name.
func (h *APIHandler) StarOutput(w http.ResponseWriter, r *http.Request) {
	var req StarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req = StarRequest{}
	}

	starred, err := h.outputs.Star(r.Context(), chi.URLParam(r, "outputID"), req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, starred)
}

// UnstarOutput removes the starred copy of an output.
func (h *APIHandler) UnstarOutput(w http.ResponseWriter, r *http.Request) {
	if err := h.outputs.Unstar(r.Context(), chi.URLParam(r, "outputID")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListStarredOutputs returns starred outputs newest first.
func (h *APIHandler) ListStarredOutputs(w http.ResponseWriter, r *http.Request) {
	starred, err := h.outputs.ListStarred(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, starred)
}

// SystemHealth returns the environment snapshot: executable availability
// and host load.
func (h *APIHandler) SystemHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.health.Snapshot(r.Context()))
}

// writeChainError writes a domain error together with the chain stages
// that completed before the abort.
func (h *APIHandler) writeChainError(w http.ResponseWriter, err error, steps []core.ChainStep) {
	var de *core.DomainError
	if !errors.As(err, &de) {
		h.logger.Error("chain failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, statusForCategory(de.Category), struct {
		errorBody
		Steps []core.ChainStep `json:"steps"`
	}{
		errorBody: errorBody{
			Error:    de.Message,
			Code:     de.Code,
			Category: string(de.Category),
		},
		Steps: steps,
	})
}

// writeDomainError maps a domain error onto an HTTP status and body.
func (h *APIHandler) writeDomainError(w http.ResponseWriter, err error) {
	var de *core.DomainError
	if !errors.As(err, &de) {
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	status := statusForCategory(de.Category)
	if de.Code == core.CodeProviderFailure && status == http.StatusInternalServerError {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, errorBody{
		Error:     de.Message,
		Code:      de.Code,
		Category:  string(de.Category),
		Retryable: de.Retryable,
	})
}

// statusForCategory maps error categories onto HTTP statuses. Provider and
// execution failures are upstream faults, so they map to gateway statuses.
func statusForCategory(cat core.ErrorCategory) int {
	switch cat {
	case core.ErrCatValidation:
		return http.StatusBadRequest
	case core.ErrCatNotFound:
		return http.StatusNotFound
	case core.ErrCatState:
		return http.StatusConflict
	case core.ErrCatTimeout:
		return http.StatusGatewayTimeout
	case core.ErrCatExecution:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Category  string `json:"category,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Response is already committed.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
