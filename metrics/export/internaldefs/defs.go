package internaldefs

import (
	tokenlife "github.com/vaultis-io/tokenlife"
)

// CounterDef maps a core metric ID to its exported counter name.
type CounterDef struct {
	ID   tokenlife.MetricID
	Name string
	Help string
}

// HistogramDef maps a core metric ID to its exported histogram name.
type HistogramDef struct {
	ID   tokenlife.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter both exporters publish.
var CounterDefs = []CounterDef{
	{ID: tokenlife.MetricSessionCreated, Name: "tokenlife_session_created_total", Help: "Created sessions."},
	{ID: tokenlife.MetricRotateSuccess, Name: "tokenlife_rotate_success_total", Help: "Successful refresh rotations."},
	{ID: tokenlife.MetricRotateFailure, Name: "tokenlife_rotate_failure_total", Help: "Rejected refresh rotations."},
	{ID: tokenlife.MetricReuseDetected, Name: "tokenlife_reuse_detected_total", Help: "Detected refresh token replays."},
	{ID: tokenlife.MetricCascadeRevocation, Name: "tokenlife_cascade_revocation_total", Help: "Refresh records revoked by reuse cascades."},
	{ID: tokenlife.MetricTokenRevoked, Name: "tokenlife_token_revoked_total", Help: "Explicit single-token revocations."},
	{ID: tokenlife.MetricRevokeAll, Name: "tokenlife_revoke_all_total", Help: "Bulk revocation operations."},
	{ID: tokenlife.MetricVerifySuccess, Name: "tokenlife_verify_success_total", Help: "Access tokens that verified cleanly."},
	{ID: tokenlife.MetricVerifyFailure, Name: "tokenlife_verify_failure_total", Help: "Access tokens that failed verification."},
	{ID: tokenlife.MetricSweepRuns, Name: "tokenlife_sweep_runs_total", Help: "Garbage collection sweeps."},
	{ID: tokenlife.MetricSweepRemoved, Name: "tokenlife_sweep_removed_total", Help: "Records removed by garbage collection."},
}

// HistogramDefs lists every histogram both exporters publish.
var HistogramDefs = []HistogramDef{
	{ID: tokenlife.MetricRotateLatency, Name: "tokenlife_rotate_latency_seconds", Help: "Rotation latency histogram."},
}

// HistogramBounds are the upper bounds of the core latency buckets,
// rendered the way Prometheus expects.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds bucket bound spellings safe for metric name
// suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed core
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
