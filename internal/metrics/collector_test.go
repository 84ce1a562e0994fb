package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter_SameSeriesShared(t *testing.T) {
	c := NewMetricsCollector()
	a := c.Counter("x_total", "x", `verb="send"`)
	b := c.Counter("x_total", "x", `verb="send"`)
	a.Inc()
	b.Add(2)
	if a.Value() != 3 {
		t.Fatalf("expected 3, got %d", a.Value())
	}
}

func TestGauge(t *testing.T) {
	c := NewMetricsCollector()
	g := c.Gauge("g", "gauge", "")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 4 {
		t.Fatalf("expected 4, got %d", g.Value())
	}
}

func TestRender_Format(t *testing.T) {
	c := NewMetricsCollector()
	c.Counter("brobbot_outbound_total", "Outbound", `adapter="shell",verb="send"`).Add(2)
	c.Counter("brobbot_outbound_total", "Outbound", `adapter="shell",verb="reply"`).Inc()
	c.Histogram("lat_seconds", "Latency", "", []float64{1, 0.1}).Observe(0.5)

	var sb strings.Builder
	c.Render(&sb)
	out := sb.String()

	for _, want := range []string{
		"# TYPE brobbot_outbound_total counter",
		`brobbot_outbound_total{adapter="shell",verb="send"} 2`,
		`brobbot_outbound_total{adapter="shell",verb="reply"} 1`,
		`lat_seconds_bucket{le="0.1"} 0`,
		`lat_seconds_bucket{le="1"} 1`,
		"lat_seconds_count 1",
		"brobbot_uptime_seconds",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Count(out, "# HELP brobbot_outbound_total") != 1 {
		t.Error("HELP line should be written once per metric name")
	}
	if strings.Index(out, `verb="reply"`) > strings.Index(out, `verb="send"`) {
		t.Error("series should be sorted")
	}
}

func TestHandler_ContentType(t *testing.T) {
	c := NewMetricsCollector()
	rr := httptest.NewRecorder()
	c.Handler()(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestOutbound_LabelsPerVerb(t *testing.T) {
	send := Outbound("test-adapter", "send")
	send.Inc()
	if Outbound("test-adapter", "send").Value() < 1 {
		t.Error("expected shared counter for same adapter/verb")
	}
	if Outbound("test-adapter", "emote") == send {
		t.Error("different verbs should have different counters")
	}
}
