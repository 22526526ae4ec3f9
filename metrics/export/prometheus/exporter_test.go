package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authclient "github.com/tvshows/authclient"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot authclient.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() authclient.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                        { return f.dropped }

func TestCollectEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authclient.MetricsSnapshot{
			Counters:   map[authclient.MetricID]uint64{},
			Histograms: map[authclient.MetricID][]uint64{},
		},
	})

	if n := testutil.CollectAndCount(exp); n != 0 {
		t.Fatalf("expected no metrics while disabled, got %d", n)
	}
}

func TestCollectCountersAndDropped(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authclient.MetricsSnapshot{
			Counters: map[authclient.MetricID]uint64{
				authclient.MetricLoginSuccess: 7,
				authclient.MetricForcedLogout: 1,
			},
			Histograms: map[authclient.MetricID][]uint64{},
		},
		dropped: 2,
	})

	expected := `
# HELP tvshows_client_login_success_total Successful logins.
# TYPE tvshows_client_login_success_total counter
tvshows_client_login_success_total 7
# HELP tvshows_client_forced_logout_total Sessions cleared after a failed refresh.
# TYPE tvshows_client_forced_logout_total counter
tvshows_client_forced_logout_total 1
# HELP tvshows_client_audit_dropped_total Audit events dropped because the sink fell behind.
# TYPE tvshows_client_audit_dropped_total counter
tvshows_client_audit_dropped_total 2
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected),
		"tvshows_client_login_success_total",
		"tvshows_client_forced_logout_total",
		"tvshows_client_audit_dropped_total",
	)
	if err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestCollectHistogramIsCumulative(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authclient.MetricsSnapshot{
			Counters: map[authclient.MetricID]uint64{authclient.MetricRequestSent: 36},
			Histograms: map[authclient.MetricID][]uint64{
				authclient.MetricRequestLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
	})

	expected := `
# HELP tvshows_client_request_latency_seconds Request attempt latency.
# TYPE tvshows_client_request_latency_seconds histogram
tvshows_client_request_latency_seconds_bucket{le="0.025"} 1
tvshows_client_request_latency_seconds_bucket{le="0.05"} 3
tvshows_client_request_latency_seconds_bucket{le="0.1"} 6
tvshows_client_request_latency_seconds_bucket{le="0.25"} 10
tvshows_client_request_latency_seconds_bucket{le="0.5"} 15
tvshows_client_request_latency_seconds_bucket{le="1"} 21
tvshows_client_request_latency_seconds_bucket{le="5"} 28
tvshows_client_request_latency_seconds_bucket{le="+Inf"} 36
tvshows_client_request_latency_seconds_sum 0
tvshows_client_request_latency_seconds_count 36
`
	err := testutil.CollectAndCompare(exp, strings.NewReader(expected), "tvshows_client_request_latency_seconds")
	if err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	exp := NewExporterFromSource(fakeSource{
		snapshot: authclient.MetricsSnapshot{
			Counters:   map[authclient.MetricID]uint64{authclient.MetricRefreshSuccess: 4},
			Histograms: map[authclient.MetricID][]uint64{},
		},
	})

	srv := httptest.NewServer(exp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "tvshows_client_refresh_success_total 4") {
		t.Fatalf("expected refresh counter in output, got:\n%s", body)
	}
}

func TestCollectFromLiveClient(t *testing.T) {
	cfg := authclient.DefaultConfig()
	cfg.Session.Backend = authclient.BackendMemory
	client, err := authclient.New().
		WithConfig(cfg).
		WithMetricsEnabled(true).
		Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	defer client.Close()

	client.Metrics().Inc(authclient.MetricLogout)

	expected := `
# HELP tvshows_client_logout_total Explicit logouts.
# TYPE tvshows_client_logout_total counter
tvshows_client_logout_total 1
`
	err = testutil.CollectAndCompare(NewExporter(client), strings.NewReader(expected), "tvshows_client_logout_total")
	if err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}
