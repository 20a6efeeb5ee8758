// Package metrics provides observability for the cage and its spectator hub.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance and simulation counters.
// A nil *Collector is valid and records nothing.
type Collector struct {
	// Tick metrics
	TickCount      int64
	TicksSkipped   int64
	TickLatencySum int64 // nanoseconds
	TickLatencyMax int64

	// Event metrics
	EventsEmitted    int64
	EventWriteErrors int64

	// Sandbox metrics
	ScriptRuns     int64
	ScriptTimeouts int64
	ScriptFaults   int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesOut       int64
	WSErrors            int64

	StartTime time.Time

	mu         sync.Mutex
	byType     map[string]int64
	explosions map[string]int64
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		StartTime:  time.Now(),
		byType:     make(map[string]int64),
		explosions: make(map[string]int64),
	}
}

// RecordTick records a completed tick.
func (c *Collector) RecordTick(latency time.Duration) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TickCount, 1)
	atomic.AddInt64(&c.TickLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.TickLatencyMax) {
		atomic.StoreInt64(&c.TickLatencyMax, int64(latency))
	}
}

// RecordSkippedTick records a tick skipped for backpressure.
func (c *Collector) RecordSkippedTick() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.TicksSkipped, 1)
}

// RecordEvent records an emitted event by type.
func (c *Collector) RecordEvent(eventType string) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.EventsEmitted, 1)
	c.mu.Lock()
	c.byType[eventType]++
	c.mu.Unlock()
}

// RecordEventWriteError records a failed write-through to storage.
func (c *Collector) RecordEventWriteError() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.EventWriteErrors, 1)
}

// RecordScriptRun records one sandbox invocation and its outcome.
func (c *Collector) RecordScriptRun(timeout, fault bool) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.ScriptRuns, 1)
	if timeout {
		atomic.AddInt64(&c.ScriptTimeouts, 1)
	}
	if fault {
		atomic.AddInt64(&c.ScriptFaults, 1)
	}
}

// RecordExplosion records an exploded mouse by the function that faulted.
func (c *Collector) RecordExplosion(source string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.explosions[source]++
	c.mu.Unlock()
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records an outgoing WebSocket message.
func (c *Collector) RecordWSMessage() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSMessagesOut, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	if c == nil {
		return
	}
	atomic.AddInt64(&c.WSErrors, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	tickCount := atomic.LoadInt64(&c.TickCount)

	var tickAvg float64
	if tickCount > 0 {
		tickAvg = float64(atomic.LoadInt64(&c.TickLatencySum)) / float64(tickCount) / 1e6 // ms
	}

	c.mu.Lock()
	byType := make(map[string]int64, len(c.byType))
	for k, v := range c.byType {
		byType[k] = v
	}
	explosions := make(map[string]int64, len(c.explosions))
	for k, v := range c.explosions {
		explosions[k] = v
	}
	c.mu.Unlock()

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"tick": map[string]interface{}{
			"count":          tickCount,
			"skipped":        atomic.LoadInt64(&c.TicksSkipped),
			"avg_latency_ms": tickAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.TickLatencyMax)) / 1e6,
		},

		"events": map[string]interface{}{
			"emitted":      atomic.LoadInt64(&c.EventsEmitted),
			"by_type":      byType,
			"write_errors": atomic.LoadInt64(&c.EventWriteErrors),
		},

		"sandbox": map[string]interface{}{
			"runs":       atomic.LoadInt64(&c.ScriptRuns),
			"timeouts":   atomic.LoadInt64(&c.ScriptTimeouts),
			"faults":     atomic.LoadInt64(&c.ScriptFaults),
			"explosions": explosions,
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		json.NewEncoder(w).Encode(c.Snapshot())
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func (c *Collector) PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		fmt.Fprintf(w, "# HELP cage_tick_count Total ticks\n")
		fmt.Fprintf(w, "# TYPE cage_tick_count counter\n")
		fmt.Fprintf(w, "cage_tick_count %d\n\n", atomic.LoadInt64(&c.TickCount))

		fmt.Fprintf(w, "# HELP cage_ticks_skipped Ticks skipped for backpressure\n")
		fmt.Fprintf(w, "# TYPE cage_ticks_skipped counter\n")
		fmt.Fprintf(w, "cage_ticks_skipped %d\n\n", atomic.LoadInt64(&c.TicksSkipped))

		fmt.Fprintf(w, "# HELP cage_tick_latency_max_ms Maximum tick latency\n")
		fmt.Fprintf(w, "# TYPE cage_tick_latency_max_ms gauge\n")
		fmt.Fprintf(w, "cage_tick_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.TickLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP cage_events_total Events emitted by type\n")
		fmt.Fprintf(w, "# TYPE cage_events_total counter\n")
		c.mu.Lock()
		types := make([]string, 0, len(c.byType))
		for k := range c.byType {
			types = append(types, k)
		}
		sort.Strings(types)
		for _, k := range types {
			fmt.Fprintf(w, "cage_events_total{type=%q} %d\n", k, c.byType[k])
		}
		c.mu.Unlock()
		fmt.Fprintln(w)

		fmt.Fprintf(w, "# HELP cage_event_write_errors Total event write errors\n")
		fmt.Fprintf(w, "# TYPE cage_event_write_errors counter\n")
		fmt.Fprintf(w, "cage_event_write_errors %d\n\n", atomic.LoadInt64(&c.EventWriteErrors))

		fmt.Fprintf(w, "# HELP cage_script_runs_total Sandbox invocations\n")
		fmt.Fprintf(w, "# TYPE cage_script_runs_total counter\n")
		fmt.Fprintf(w, "cage_script_runs_total %d\n", atomic.LoadInt64(&c.ScriptRuns))
		fmt.Fprintf(w, "cage_script_timeouts_total %d\n", atomic.LoadInt64(&c.ScriptTimeouts))
		fmt.Fprintf(w, "cage_script_faults_total %d\n\n", atomic.LoadInt64(&c.ScriptFaults))

		fmt.Fprintf(w, "# HELP cage_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE cage_ws_connections gauge\n")
		fmt.Fprintf(w, "cage_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP cage_ws_messages_total Total WebSocket messages sent\n")
		fmt.Fprintf(w, "# TYPE cage_ws_messages_total counter\n")
		fmt.Fprintf(w, "cage_ws_messages_total %d\n", atomic.LoadInt64(&c.WSMessagesOut))
	}
}
