package internaldefs

import (
	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   feedback.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   feedback.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: feedback.MetricSessionCreated, Name: "feedback_session_created_total", Help: "Created sessions."},
	{ID: feedback.MetricSessionRead, Name: "feedback_session_read_total", Help: "Authorized session reads."},
	{ID: feedback.MetricSessionUpdated, Name: "feedback_session_updated_total", Help: "Session patches that were written."},
	{ID: feedback.MetricSessionDeleted, Name: "feedback_session_deleted_total", Help: "Admin session deletions."},
	{ID: feedback.MetricKeysRotated, Name: "feedback_keys_rotated_total", Help: "Admin key rotations, including legacy upgrades."},
	{ID: feedback.MetricForbidden, Name: "feedback_forbidden_total", Help: "Requests rejected by the capability gate."},
	{ID: feedback.MetricNotFound, Name: "feedback_not_found_total", Help: "Lookups of unknown session ids."},
	{ID: feedback.MetricValidationFailed, Name: "feedback_validation_failed_total", Help: "Rejected names, questions and answers."},
	{ID: feedback.MetricStorageError, Name: "feedback_storage_error_total", Help: "Session backend failures."},
	{ID: feedback.MetricUpdateConflictRetry, Name: "feedback_update_conflict_retry_total", Help: "Version conflicts that were retried."},
	{ID: feedback.MetricUpdateConflictExhausted, Name: "feedback_update_conflict_exhausted_total", Help: "Updates that gave up after the retry budget."},
	{ID: feedback.MetricRateLimited, Name: "feedback_rate_limited_total", Help: "Rate-limited session creations."},
	{ID: feedback.MetricAdminOverride, Name: "feedback_admin_override_total", Help: "Requests authorized by the admin credential."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: feedback.MetricUpdateLatency, Name: "feedback_update_latency_seconds", Help: "Session patch latency histogram."},
}

// HistogramBounds are the upper bounds of the eight latency buckets.
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

// HistogramBoundSuffix renders HistogramBounds for use in instrument names.
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

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
