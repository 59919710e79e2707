package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patternbench/patternbench/internal/events"
	"github.com/patternbench/patternbench/internal/logging"
)

// SSEHandler streams bus events to connected clients as Server-Sent
// Events. Clients can narrow the stream with ?types=a,b (event types) and
// ?execution=<id>.
type SSEHandler struct {
	bus           *events.Bus
	logger        *logging.Logger
	mu            sync.RWMutex
	clients       map[*sseClient]struct{}
	heartbeatFreq time.Duration
}

// sseClient is one connected stream.
type sseClient struct {
	id        string
	done      chan struct{}
	execution string
	closed    bool
}

// NewSSEHandler creates an SSE handler fed by the given bus.
func NewSSEHandler(bus *events.Bus, logger *logging.Logger) *SSEHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SSEHandler{
		bus:           bus,
		logger:        logger.WithComponent("sse"),
		clients:       make(map[*sseClient]struct{}),
		heartbeatFreq: 30 * time.Second,
	}
}

// SetHeartbeatFrequency sets the interval between heartbeat comments.
func (h *SSEHandler) SetHeartbeatFrequency(d time.Duration) {
	h.heartbeatFreq = d
}

// ServeHTTP implements http.Handler for SSE connections.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	var types []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				types = append(types, t)
			}
		}
	}

	c := &sseClient{
		id:        fmt.Sprintf("%d", time.Now().UnixNano()),
		done:      make(chan struct{}),
		execution: r.URL.Query().Get("execution"),
	}
	h.addClient(c)
	defer h.removeClient(c)

	eventCh := h.bus.Subscribe(types...)
	defer h.bus.Unsubscribe(eventCh)

	sendEvent(w, flusher, "connected", map[string]string{
		"client_id": c.id,
		"execution": c.execution,
	})

	heartbeat := time.NewTicker(h.heartbeatFreq)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			sendComment(w, flusher, "heartbeat")
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if c.execution != "" && event.ExecutionID() != c.execution {
				continue
			}
			sendEvent(w, flusher, event.EventType(), event)
		}
	}
}

// sendEvent writes a typed SSE event.
func sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, jsonData)
	flusher.Flush()
}

// sendComment writes an SSE comment, used for heartbeats.
func sendComment(w http.ResponseWriter, flusher http.Flusher, comment string) {
	fmt.Fprintf(w, ": %s\n\n", comment)
	flusher.Flush()
}

func (h *SSEHandler) addClient(c *sseClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *SSEHandler) removeClient(c *sseClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	if !c.closed {
		c.closed = true
		close(c.done)
	}
}

// ClientCount returns the number of connected clients.
func (h *SSEHandler) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown disconnects all clients.
func (h *SSEHandler) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.closed {
			c.closed = true
			close(c.done)
		}
	}
	h.clients = make(map[*sseClient]struct{})
	return nil
}
