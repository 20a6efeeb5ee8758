package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.RecordTick(time.Millisecond)
	c.RecordEvent("ADD")
	c.RecordExplosion("pickFight")
	c.RecordScriptRun(true, false)
}

func TestSnapshotCounts(t *testing.T) {
	c := NewCollector()
	c.RecordTick(2 * time.Millisecond)
	c.RecordTick(4 * time.Millisecond)
	c.RecordSkippedTick()
	c.RecordEvent("ADD")
	c.RecordEvent("ADD")
	c.RecordExplosion("proposeMate")

	snap := c.Snapshot()
	tick := snap["tick"].(map[string]interface{})
	if tick["count"].(int64) != 2 || tick["skipped"].(int64) != 1 {
		t.Errorf("Unexpected tick metrics: %v", tick)
	}
	if tick["max_latency_ms"].(float64) != 4 {
		t.Errorf("Expected max latency 4ms, got %v", tick["max_latency_ms"])
	}
	ev := snap["events"].(map[string]interface{})
	if ev["by_type"].(map[string]int64)["ADD"] != 2 {
		t.Errorf("Expected 2 ADD events, got %v", ev["by_type"])
	}
}

func TestPrometheusHandler(t *testing.T) {
	c := NewCollector()
	c.RecordEvent("FIGHT")
	rec := httptest.NewRecorder()
	c.PrometheusHandler()(rec, httptest.NewRequest("GET", "/metrics/prom", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `cage_events_total{type="FIGHT"} 1`) {
		t.Errorf("Missing labelled event counter in:\n%s", body)
	}
}
