package tokenlife

import (
	"testing"
	"time"
)

func TestMetricsDisabledIsInert(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})

	m.Inc(MetricRotateSuccess)
	m.Add(MetricSweepRemoved, 5)
	m.Observe(MetricRotateLatency, time.Millisecond)

	if m.Value(MetricRotateSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(MetricRotateSuccess)
	if nilMetrics.Value(MetricRotateSuccess) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsCountersAndHistogram(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	m.Inc(MetricRotateSuccess)
	m.Inc(MetricRotateSuccess)
	m.Add(MetricSweepRemoved, 7)
	m.Observe(MetricRotateLatency, 3*time.Millisecond)
	m.Observe(MetricRotateLatency, 40*time.Millisecond)
	m.Observe(MetricRotateLatency, time.Second)

	if got := m.Value(MetricRotateSuccess); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricSweepRemoved); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricRotateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	if buckets[0] != 1 || buckets[3] != 1 || buckets[7] != 1 {
		t.Fatalf("unexpected bucket distribution: %v", buckets)
	}

	// Only the rotation latency histogram is recorded.
	m.Observe(MetricRotateSuccess, time.Millisecond)
	snap = m.Snapshot()
	if _, ok := snap.Histograms[MetricRotateSuccess]; ok {
		t.Fatal("unexpected histogram for a counter id")
	}
}
