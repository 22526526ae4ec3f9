package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tvshows/authclient/internal/devserver"
)

type cli struct {
	t       *testing.T
	baseURL string
}

func newCLI(t *testing.T) *cli {
	t.Helper()

	srv, err := devserver.New(devserver.DefaultConfig())
	if err != nil {
		t.Fatalf("devserver: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	t.Setenv("TVSHOWS_SESSION_BACKEND", "file")
	t.Setenv("TVSHOWS_SESSION_DIR", t.TempDir())
	t.Setenv("TVSHOWS_LOG_LEVEL", "error")
	return &cli{t: t, baseURL: ts.URL}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs(append([]string{"--base-url", c.baseURL}, args...))
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("tvshowsctl %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	c := newCLI(t)

	t.Setenv(passwordEnv, "free-password")
	if out := c.mustRun("login", "free"); !strings.Contains(out, "signed in as free (FREE)") {
		t.Fatalf("unexpected login output %q", out)
	}

	out := c.mustRun("whoami")
	if !strings.Contains(out, "username:   free") || !strings.Contains(out, "up to 10 shows") {
		t.Fatalf("unexpected whoami output %q", out)
	}

	if out := c.mustRun("can", "watchlist.unlimited"); strings.TrimSpace(out) != "no" {
		t.Fatalf("expected FREE to lack unlimited watchlist, got %q", out)
	}

	c.mustRun("logout")
	if out := c.mustRun("whoami"); !strings.Contains(out, "not signed in") {
		t.Fatalf("expected signed out, got %q", out)
	}
}

func TestLoginReadsPasswordFromStdin(t *testing.T) {
	c := newCLI(t)

	var out bytes.Buffer
	cmd := newRootCommand(&out)
	cmd.SetArgs([]string{"--base-url", c.baseURL, "login", "premium", "--password-stdin"})
	cmd.SetIn(strings.NewReader("premium-password\n"))
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !strings.Contains(out.String(), "(PREMIUM)") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	c := newCLI(t)
	t.Setenv(passwordEnv, "wrong-password")

	if _, err := c.run("login", "free"); err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestRequestSendsAuthenticatedCall(t *testing.T) {
	c := newCLI(t)
	t.Setenv(passwordEnv, "free-password")
	c.mustRun("login", "free")

	c.mustRun("request", "POST", "/api/watchlist", "-d", `{"showId":"tt0903747"}`)
	out := c.mustRun("request", "-i", "GET", "/api/watchlist")
	if !strings.HasPrefix(out, "200 OK") || !strings.Contains(out, "tt0903747") {
		t.Fatalf("unexpected watchlist output %q", out)
	}
}

func TestRequestWithoutSessionFails(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("request", "GET", "/api/watchlist"); err == nil {
		t.Fatal("expected error for unauthenticated request")
	}
}

func TestAdminCommands(t *testing.T) {
	c := newCLI(t)
	t.Setenv(passwordEnv, "admin-password")
	c.mustRun("login", "admin")

	out := c.mustRun("users")
	if !strings.Contains(out, "USERNAME") || !strings.Contains(out, "premium") {
		t.Fatalf("unexpected users output %q", out)
	}
	if out := c.mustRun("promote", "free"); !strings.Contains(out, "free is now ADMIN") {
		t.Fatalf("unexpected promote output %q", out)
	}
}

func TestUpgradeThenMetrics(t *testing.T) {
	c := newCLI(t)
	t.Setenv(passwordEnv, "free-password")
	c.mustRun("login", "free")

	out := c.mustRun("--metrics", "prometheus", "upgrade")
	if !strings.Contains(out, "now PREMIUM") {
		t.Fatalf("unexpected upgrade output %q", out)
	}
	if !strings.Contains(out, "tvshows_client_membership_upgrade_total 1") {
		t.Fatalf("expected upgrade counter in metrics output, got %q", out)
	}

	out = c.mustRun("--metrics", "otel", "whoami")
	if !strings.Contains(out, "tvshows_client_restore_success_total 1") {
		t.Fatalf("expected restore counter in otel output, got %q", out)
	}
}

func TestUnknownMetricsFormat(t *testing.T) {
	c := newCLI(t)
	if _, err := c.run("--metrics", "statsd", "whoami"); err == nil {
		t.Fatal("expected error for unknown metrics format")
	}
}
