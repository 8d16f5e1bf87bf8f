package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
)

type fakeSource struct {
	snapshot feedback.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() feedback.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: feedback.MetricsSnapshot{
			Counters:   map[feedback.MetricID]uint64{},
			Histograms: map[feedback.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: feedback.MetricsSnapshot{
			Counters: map[feedback.MetricID]uint64{
				feedback.MetricSessionCreated:      7,
				feedback.MetricUpdateConflictRetry: 3,
			},
			Histograms: map[feedback.MetricID][]uint64{
				feedback.MetricUpdateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"feedback_session_created_total 7",
		"feedback_update_conflict_retry_total 3",
		"feedback_forbidden_total 0",
		"feedback_update_latency_seconds_bucket{le=\"0.005\"} 1",
		"feedback_update_latency_seconds_bucket{le=\"+Inf\"} 36",
		"feedback_update_latency_seconds_count 36",
		"feedback_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
	if out != exp.Render() {
		t.Fatalf("render must be deterministic")
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: feedback.MetricsSnapshot{
			Counters:   map[feedback.MetricID]uint64{feedback.MetricSessionRead: 1},
			Histograms: map[feedback.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestNilExporterRendersNothing(t *testing.T) {
	var exp *PrometheusExporter
	if exp.Render() != "" {
		t.Fatalf("nil exporter must render nothing")
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: feedback.MetricsSnapshot{
			Counters: map[feedback.MetricID]uint64{
				feedback.MetricSessionCreated: 1000,
				feedback.MetricSessionRead:    40000,
				feedback.MetricSessionUpdated: 8000,
				feedback.MetricForbidden:      10,
			},
			Histograms: map[feedback.MetricID][]uint64{
				feedback.MetricUpdateLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}

type namedSource struct {
	fakeSource
	backend string
}

func (n namedSource) Backend() string { return n.backend }

func TestRenderLabelsSeriesWithBackend(t *testing.T) {
	exp := NewPrometheusExporterFromSource(namedSource{
		fakeSource: fakeSource{
			snapshot: feedback.MetricsSnapshot{
				Counters: map[feedback.MetricID]uint64{feedback.MetricSessionCreated: 2},
				Histograms: map[feedback.MetricID][]uint64{
					feedback.MetricUpdateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
				},
			},
		},
		backend: feedback.BackendFile,
	})

	out := exp.Render()
	for _, want := range []string{
		`feedback_session_created_total{backend="file"} 2`,
		`feedback_update_latency_seconds_bucket{backend="file",le="0.005"} 1`,
		`feedback_update_latency_seconds_count{backend="file"} 1`,
		`feedback_audit_dropped_total{backend="file"} 0`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}
