package otel

import (
	"context"
	"sync"
	"testing"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot feedback.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() feedback.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := feedback.MetricsSnapshot{
		Counters:   make(map[feedback.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[feedback.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("feedback-test")

	src := &fakeSource{
		snapshot: feedback.MetricsSnapshot{
			Counters: map[feedback.MetricID]uint64{
				feedback.MetricSessionUpdated: 3,
			},
			Histograms: map[feedback.MetricID][]uint64{
				feedback.MetricUpdateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(rm.ScopeMetrics) == 0 {
		t.Fatal("expected collected metrics, got none")
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("feedback-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("feedback-test")

	src := &fakeSource{
		snapshot: feedback.MetricsSnapshot{
			Counters: map[feedback.MetricID]uint64{
				feedback.MetricSessionUpdated: 1,
			},
			Histograms: map[feedback.MetricID][]uint64{
				feedback.MetricUpdateLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[feedback.MetricSessionUpdated] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

func TestExporterObservesSnapshotValues(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("feedback-test")

	src := &fakeSource{
		snapshot: feedback.MetricsSnapshot{
			Counters: map[feedback.MetricID]uint64{
				feedback.MetricSessionCreated: 4,
			},
			Histograms: map[feedback.MetricID][]uint64{
				feedback.MetricUpdateLatency: {2, 1, 0, 0, 0, 0, 0, 0},
			},
		},
		dropped: 5,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	values := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					values[m.Name] = data.DataPoints[0].Value
				}
			}
		}
	}

	if values["feedback_session_created_total"] != 4 {
		t.Fatalf("expected created counter 4, got %d", values["feedback_session_created_total"])
	}
	if values["feedback_update_latency_seconds_bucket_le_0_01"] != 3 {
		t.Fatalf("expected cumulative bucket 3, got %d", values["feedback_update_latency_seconds_bucket_le_0_01"])
	}
	if values["feedback_update_latency_seconds_count"] != 3 {
		t.Fatalf("expected histogram count 3, got %d", values["feedback_update_latency_seconds_count"])
	}
	if values["feedback_audit_dropped_total"] != 5 {
		t.Fatalf("expected audit dropped 5, got %d", values["feedback_audit_dropped_total"])
	}
}

func TestExporterRejectsNilMeter(t *testing.T) {
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

type namedSource struct {
	*fakeSource
	backend string
}

func (n namedSource) Backend() string { return n.backend }

func TestExporterTagsObservationsWithBackend(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	src := namedSource{
		fakeSource: &fakeSource{snapshot: feedback.MetricsSnapshot{
			Counters: map[feedback.MetricID]uint64{feedback.MetricSessionRead: 2},
		}},
		backend: feedback.BackendRedis,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("feedback-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	found := false
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "feedback_session_read_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) != 1 {
				t.Fatalf("unexpected data for %s: %#v", m.Name, m.Data)
			}
			backend, ok := sum.DataPoints[0].Attributes.Value(attribute.Key("backend"))
			if !ok || backend.AsString() != feedback.BackendRedis {
				t.Fatalf("expected backend=redis attribute, got %v", sum.DataPoints[0].Attributes)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("feedback_session_read_total not collected")
	}
}
