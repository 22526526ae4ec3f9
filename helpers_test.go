package authclient

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tvshows/authclient/internal/devserver"
)

type recorded struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// recordingTransport captures every attempt the dispatcher sends.
type recordingTransport struct {
	next http.RoundTripper

	mu       sync.Mutex
	requests []recorded
}

func (r *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := recorded{Method: req.Method, Path: req.URL.Path, Header: req.Header.Clone()}
	if req.Body != nil {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, err
		}
		rec.Body = string(data)
		req.Body = io.NopCloser(bytes.NewReader(data))
	}
	r.mu.Lock()
	r.requests = append(r.requests, rec)
	r.mu.Unlock()
	return r.next.RoundTrip(req)
}

func (r *recordingTransport) to(path string) []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recorded
	for _, rec := range r.requests {
		if rec.Path == path {
			out = append(out, rec)
		}
	}
	return out
}

type testEnv struct {
	srv    *devserver.Server
	ts     *httptest.Server
	rec    *recordingTransport
	client *Client
}

type envOptions struct {
	server  func(*devserver.Config)
	config  func(*Config)
	builder func(*Builder)
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	scfg := devserver.DefaultConfig()
	if opts.server != nil {
		opts.server(&scfg)
	}
	srv, err := devserver.New(scfg)
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	env := &testEnv{srv: srv, ts: ts}
	env.client = buildTestClient(t, ts.URL, &env.rec, opts)
	return env
}

func buildTestClient(t *testing.T, baseURL string, rec **recordingTransport, opts envOptions) *Client {
	t.Helper()

	cfg := DefaultConfig()
	cfg.BaseURL = baseURL
	cfg.RequestTimeout = 5 * time.Second
	cfg.Session.Backend = BackendMemory
	cfg.Metrics.Enabled = true
	if opts.config != nil {
		opts.config(&cfg)
	}

	r := &recordingTransport{next: http.DefaultTransport}
	if rec != nil {
		*rec = r
	}
	b := New().WithConfig(cfg).WithTransport(r)
	if opts.builder != nil {
		opts.builder(b)
	}
	c, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newMuxServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts
}

// writeTestLogin answers with a FREE session whose credentials end in gen.
func writeTestLogin(w http.ResponseWriter, gen string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"username":"alice","role":"USER","membership":"FREE","token":"access-` + gen + `","refreshToken":"refresh-` + gen + `"}`))
}
