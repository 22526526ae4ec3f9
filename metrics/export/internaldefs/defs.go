package internaldefs

import (
	authclient "github.com/tvshows/authclient"
)

// CounterDef maps a client counter to its exported name.
type CounterDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// HistogramDef maps a client histogram to its exported name.
type HistogramDef struct {
	ID   authclient.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: authclient.MetricLoginSuccess, Name: "tvshows_client_login_success_total", Help: "Successful logins."},
	{ID: authclient.MetricLoginFailure, Name: "tvshows_client_login_failure_total", Help: "Failed logins."},
	{ID: authclient.MetricLogout, Name: "tvshows_client_logout_total", Help: "Explicit logouts."},
	{ID: authclient.MetricRestoreSuccess, Name: "tvshows_client_restore_success_total", Help: "Sessions restored from durable storage."},
	{ID: authclient.MetricRestoreEmpty, Name: "tvshows_client_restore_empty_total", Help: "Restores that found no usable session."},
	{ID: authclient.MetricRefreshSuccess, Name: "tvshows_client_refresh_success_total", Help: "Refresh exchanges that produced a new session."},
	{ID: authclient.MetricRefreshFailure, Name: "tvshows_client_refresh_failure_total", Help: "Refresh exchanges that failed."},
	{ID: authclient.MetricRefreshShared, Name: "tvshows_client_refresh_shared_total", Help: "Callers that joined an in-flight refresh."},
	{ID: authclient.MetricRefreshEarly, Name: "tvshows_client_refresh_early_total", Help: "Refreshes started before the access credential expired."},
	{ID: authclient.MetricForcedLogout, Name: "tvshows_client_forced_logout_total", Help: "Sessions cleared after a failed refresh."},
	{ID: authclient.MetricRequestSent, Name: "tvshows_client_request_sent_total", Help: "Request attempts sent."},
	{ID: authclient.MetricRequestRetried, Name: "tvshows_client_request_retried_total", Help: "Requests retried after a refresh."},
	{ID: authclient.MetricRequestUnauthorized, Name: "tvshows_client_request_unauthorized_total", Help: "Responses with status 401."},
	{ID: authclient.MetricRequestTimeout, Name: "tvshows_client_request_timeout_total", Help: "Request attempts that timed out."},
	{ID: authclient.MetricRequestTransportError, Name: "tvshows_client_request_transport_error_total", Help: "Request attempts that failed below HTTP."},
	{ID: authclient.MetricCapabilityDenied, Name: "tvshows_client_capability_denied_total", Help: "Capability checks that denied the caller."},
	{ID: authclient.MetricPersistFailure, Name: "tvshows_client_persist_failure_total", Help: "Durable session storage failures."},
	{ID: authclient.MetricMembershipUpgrade, Name: "tvshows_client_membership_upgrade_total", Help: "Completed membership upgrades."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authclient.MetricRequestLatency, Name: "tvshows_client_request_latency_seconds", Help: "Request attempt latency."},
}

// HistogramUpperBounds are bucket upper bounds in seconds, excluding +Inf.
// They match the client's millisecond buckets.
var HistogramUpperBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}

// HistogramBoundSuffix names each bucket, +Inf last.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"5",
	"inf",
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "tvshows_client_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the sink fell behind."
)

// NormalizeBuckets copies raw into a fixed-size array, zero-filling missing buckets.
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
