// Package monitor tracks pattern executions in a concurrency-safe registry:
// lifecycle transitions, progress, aggregate statistics, bounded history,
// and subscriber callbacks.
package monitor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patternbench/patternbench/internal/core"
	"github.com/patternbench/patternbench/internal/events"
	"github.com/patternbench/patternbench/internal/logging"
)

// DefaultMaxHistory bounds retained records when Options leaves it unset.
const DefaultMaxHistory = 100

// evictionBufferPercent is the slack over MaxHistory that delays create-side
// eviction so steady-state inserts do not re-sort the registry every call.
const evictionBufferPercent = 20

// Callback receives a snapshot of the record that triggered an event. The
// snapshot is the callback's to keep; mutating it never affects the
// registry. Callbacks run synchronously on the goroutine that triggered the
// transition, after the registry lock is released, so they may call any
// Monitor method.
type Callback func(rec *core.ExecutionRecord)

// CallbackHandle identifies a registration for later removal.
type CallbackHandle struct {
	event string
	id    int64
}

// Options configures a Monitor.
type Options struct {
	// MaxHistory bounds retained records; 0 means DefaultMaxHistory.
	MaxHistory int
	// Bus receives lifecycle events for SSE fan-out. Optional.
	Bus *events.Bus
	// Logger defaults to a no-op logger.
	Logger *logging.Logger
}

// entry wraps a record with registry-internal state that never leaves the
// lock: insertion order for stable eviction and the cancel hook bound by
// the runner.
type entry struct {
	rec    *core.ExecutionRecord
	seq    int64
	cancel context.CancelFunc
}

// Monitor is an explicitly constructed execution registry. It is owned by
// the application and handed to the runner and the web layer; there is no
// package-level instance.
type Monitor struct {
	mu      sync.Mutex
	records map[core.ExecutionID]*entry
	nextSeq int64

	callbacks  map[string]map[int64]Callback
	nextCBID   int64
	maxHistory int

	bus    *events.Bus
	logger *logging.Logger
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Monitor{
		records:    make(map[core.ExecutionID]*entry),
		callbacks:  make(map[string]map[int64]Callback),
		maxHistory: opts.MaxHistory,
		bus:        opts.Bus,
		logger:     opts.Logger.WithComponent("monitor"),
	}
}

// MaxHistory returns the configured history bound.
func (m *Monitor) MaxHistory() int {
	return m.maxHistory
}

// Create inserts a Queued record and returns its id. The start time is
// stamped here, exactly once; Start does not touch it. Crossing the
// eviction buffer triggers a cleanup pass before the insert returns.
func (m *Monitor) Create(pattern, vendor, model string, inputSize int) core.ExecutionID {
	id := core.ExecutionID(uuid.NewString())
	rec := &core.ExecutionRecord{
		ID:        id,
		Pattern:   pattern,
		Status:    core.StatusQueued,
		StartedAt: time.Now(),
		Vendor:    vendor,
		Model:     model,
		InputSize: inputSize,
	}

	m.mu.Lock()
	m.nextSeq++
	m.records[id] = &entry{rec: rec, seq: m.nextSeq}
	if len(m.records) > m.maxHistory+m.maxHistory*evictionBufferPercent/100 {
		m.evictLocked()
	}
	snap := rec.Clone()
	m.mu.Unlock()

	m.logger.Info("execution created", "execution_id", string(id), "pattern", pattern)
	m.dispatch(events.TypeExecutionCreated, snap)
	return id
}

// Start transitions Queued to Running and seeds the first progress mark.
// Any other current status, or an unknown id, returns false.
func (m *Monitor) Start(id core.ExecutionID) bool {
	m.mu.Lock()
	e, ok := m.records[id]
	if !ok || e.rec.Status != core.StatusQueued {
		m.mu.Unlock()
		return false
	}
	e.rec.Status = core.StatusRunning
	if e.rec.Progress < 0.1 {
		e.rec.Progress = 0.1
	}
	snap := e.rec.Clone()
	m.mu.Unlock()

	m.dispatch(events.TypeExecutionStarted, snap)
	return true
}

// UpdateProgress advances a record's progress. The value is clamped into
// [0,1] and never decreases; an optional eta replaces the estimated
// completion. Unknown and terminal ids return false.
func (m *Monitor) UpdateProgress(id core.ExecutionID, value float64, eta *time.Time) bool {
	m.mu.Lock()
	e, ok := m.records[id]
	if !ok || e.rec.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	if value < 0 {
		value = 0
	} else if value > 1 {
		value = 1
	}
	if value > e.rec.Progress {
		e.rec.Progress = value
	}
	if eta != nil {
		t := *eta
		e.rec.EstimatedCompletion = &t
	}
	snap := e.rec.Clone()
	m.mu.Unlock()

	m.dispatch(events.TypeProgressUpdated, snap)
	return true
}

// Complete stamps the terminal outcome of a run: status per the result,
// end time, duration, output size, error text, and progress forced to 1.0.
// Terminal records absorb the call and return false, so a Cancel that won
// the race is never overwritten.
func (m *Monitor) Complete(id core.ExecutionID, result *core.RunResult) bool {
	now := time.Now()

	m.mu.Lock()
	e, ok := m.records[id]
	if !ok || e.rec.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	e.rec.Status = result.TerminalStatus()
	e.rec.EndedAt = &now
	e.rec.Progress = 1.0
	dur := result.DurationMS
	e.rec.DurationMS = &dur
	size := len(result.Output)
	e.rec.OutputSize = &size
	if !result.Success {
		e.rec.Error = result.Error
	}
	if len(result.Metadata) > 0 {
		if e.rec.Metadata == nil {
			e.rec.Metadata = make(map[string]string, len(result.Metadata))
		}
		for k, v := range result.Metadata {
			e.rec.Metadata[k] = v
		}
	}
	e.cancel = nil
	snap := e.rec.Clone()
	m.mu.Unlock()

	m.logger.Info("execution completed",
		"execution_id", string(id),
		"status", string(snap.Status),
		"duration_ms", result.DurationMS)
	m.dispatch(events.TypeExecutionCompleted, snap)
	return true
}

// Cancel marks a record Cancelled and terminates the underlying process
// through the hook bound by the runner. This is real cancellation, not
// bookkeeping: when a process is attached it is killed, and its eventual
// Complete call is absorbed by the terminal check. Unknown and already
// terminal ids return false.
func (m *Monitor) Cancel(id core.ExecutionID) bool {
	now := time.Now()

	m.mu.Lock()
	e, ok := m.records[id]
	if !ok || e.rec.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	e.rec.Status = core.StatusCancelled
	e.rec.EndedAt = &now
	e.rec.Progress = 1.0
	cancel := e.cancel
	e.cancel = nil
	snap := e.rec.Clone()
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.logger.Info("execution cancelled", "execution_id", string(id))
	m.dispatch(events.TypeExecutionCancelled, snap)
	return true
}

// BindCancel attaches the runner's termination hook to a record before the
// process is spawned. It returns false when the record is unknown or
// already terminal, in which case the runner must not spawn at all.
func (m *Monitor) BindCancel(id core.ExecutionID, cancel context.CancelFunc) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[id]
	if !ok || e.rec.Status.Terminal() {
		return false
	}
	e.cancel = cancel
	return true
}

// Get returns a snapshot of one record.
func (m *Monitor) Get(id core.ExecutionID) (*core.ExecutionRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.records[id]
	if !ok {
		return nil, false
	}
	return e.rec.Clone(), true
}

// Active returns snapshots of all Queued and Running records, newest
// first.
func (m *Monitor) Active() []*core.ExecutionRecord {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.records))
	for _, e := range m.records {
		if e.rec.Active() {
			entries = append(entries, e)
		}
	}
	out := cloneSorted(entries)
	m.mu.Unlock()
	return out
}

// DefaultRecentLimit caps Recent when the caller passes limit <= 0.
const DefaultRecentLimit = 50

// Recent returns snapshots of records sorted by start time descending,
// capped at limit.
func (m *Monitor) Recent(limit int) []*core.ExecutionRecord {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	m.mu.Lock()
	entries := make([]*entry, 0, len(m.records))
	for _, e := range m.records {
		entries = append(entries, e)
	}
	out := cloneSorted(entries)
	m.mu.Unlock()

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// cloneSorted orders entries newest first (ties broken by insertion order)
// and clones each record. Callers hold the lock.
func cloneSorted(entries []*entry) []*core.ExecutionRecord {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rec.StartedAt.Equal(entries[j].rec.StartedAt) {
			return entries[i].seq > entries[j].seq
		}
		return entries[i].rec.StartedAt.After(entries[j].rec.StartedAt)
	})
	out := make([]*core.ExecutionRecord, len(entries))
	for i, e := range entries {
		out[i] = e.rec.Clone()
	}
	return out
}

// Stats aggregates the registry. SuccessRate is completed over all
// terminal records; AverageDuration is the mean of terminal records that
// carry a duration. Both report zero with no terminal records.
func (m *Monitor) Stats() core.ExecutionStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats core.ExecutionStats
	var terminal, durCount int
	var durSum float64

	for _, e := range m.records {
		stats.TotalExecutions++
		switch {
		case e.rec.Active():
			stats.ActiveCount++
		default:
			terminal++
			if e.rec.Status == core.StatusCompleted {
				stats.CompletedCount++
			}
			if e.rec.Status == core.StatusFailed {
				stats.FailedCount++
			}
			if e.rec.DurationMS != nil {
				durSum += float64(*e.rec.DurationMS)
				durCount++
			}
		}
	}

	if terminal > 0 {
		stats.SuccessRate = float64(stats.CompletedCount) / float64(terminal)
	}
	if durCount > 0 {
		stats.AverageDuration = durSum / float64(durCount)
	}
	return stats
}

// Cleanup evicts down to MaxHistory records, keeping the most recent by
// start time, and reports how many were removed. Eviction is hard and
// lossy; evicted active records lose their bookkeeping but any bound
// process keeps running.
func (m *Monitor) Cleanup() int {
	m.mu.Lock()
	removed := m.evictLocked()
	m.mu.Unlock()

	if removed > 0 {
		m.logger.Info("evicted execution records", "removed", removed)
	}
	return removed
}

func (m *Monitor) evictLocked() int {
	if len(m.records) <= m.maxHistory {
		return 0
	}

	entries := make([]*entry, 0, len(m.records))
	for _, e := range m.records {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].rec.StartedAt.Equal(entries[j].rec.StartedAt) {
			return entries[i].seq > entries[j].seq
		}
		return entries[i].rec.StartedAt.After(entries[j].rec.StartedAt)
	})

	removed := 0
	for _, e := range entries[m.maxHistory:] {
		delete(m.records, e.rec.ID)
		removed++
	}
	return removed
}

// RegisterCallback subscribes fn to one event type (the events.Type*
// constants). The returned handle unregisters it.
func (m *Monitor) RegisterCallback(event string, fn Callback) CallbackHandle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextCBID++
	if m.callbacks[event] == nil {
		m.callbacks[event] = make(map[int64]Callback)
	}
	m.callbacks[event][m.nextCBID] = fn
	return CallbackHandle{event: event, id: m.nextCBID}
}

// UnregisterCallback removes a registration. Unknown handles are a no-op.
func (m *Monitor) UnregisterCallback(h CallbackHandle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	fns, ok := m.callbacks[h.event]
	if !ok {
		return false
	}
	if _, ok := fns[h.id]; !ok {
		return false
	}
	delete(fns, h.id)
	return true
}

// PruneCallbacks drops empty callback buckets left behind by
// unregistration. Called by the janitor alongside Cleanup.
func (m *Monitor) PruneCallbacks() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for event, fns := range m.callbacks {
		if len(fns) == 0 {
			delete(m.callbacks, event)
		}
	}
}

// dispatch runs callbacks for an event outside the registry lock and
// mirrors the event onto the bus. A panicking callback is logged and never
// affects its siblings or the triggering operation.
func (m *Monitor) dispatch(event string, rec *core.ExecutionRecord) {
	m.mu.Lock()
	fns := make([]Callback, 0, len(m.callbacks[event]))
	for _, fn := range m.callbacks[event] {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		m.invoke(event, fn, rec)
	}
	m.publish(event, rec)
}

func (m *Monitor) invoke(event string, fn Callback, rec *core.ExecutionRecord) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("callback panicked", "event", event, "panic", r)
		}
	}()
	fn(rec.Clone())
}

func (m *Monitor) publish(event string, rec *core.ExecutionRecord) {
	if m.bus == nil {
		return
	}
	id := string(rec.ID)
	switch event {
	case events.TypeExecutionCreated:
		m.bus.Publish(events.NewExecutionCreatedEvent(id, rec.Pattern, rec.InputSize))
	case events.TypeExecutionStarted:
		m.bus.Publish(events.NewExecutionStartedEvent(id, rec.Pattern))
	case events.TypeProgressUpdated:
		m.bus.Publish(events.NewProgressUpdatedEvent(id, rec.Progress))
	case events.TypeExecutionCompleted:
		var durMS int64
		if rec.DurationMS != nil {
			durMS = *rec.DurationMS
		}
		m.bus.PublishPriority(events.NewExecutionCompletedEvent(id, rec.Pattern, string(rec.Status), durMS, rec.Error))
	case events.TypeExecutionCancelled:
		m.bus.PublishPriority(events.NewExecutionCancelledEvent(id, rec.Pattern, ""))
	}
}
