package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	t.Setenv(LevelEnv, "")

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{in: "", want: zerolog.InfoLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: " WARN ", want: zerolog.WarnLevel},
		{in: "nonsense", want: zerolog.InfoLevel},
	}
	for _, tc := range tests {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseLevelFallsBackToEnv(t *testing.T) {
	t.Setenv(LevelEnv, "error")
	if got := ParseLevel(""); got != zerolog.ErrorLevel {
		t.Fatalf("expected error level from env, got %s", got)
	}
	if got := ParseLevel("debug"); got != zerolog.DebugLevel {
		t.Fatalf("explicit level must win over env, got %s", got)
	}
}

func TestNewJSONCarriesApp(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{App: "tvshowsctl", Level: "info", JSON: true, Out: &buf})
	log.Debug().Msg("hidden")
	log.Info().Msg("visible")

	var event map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &event); err != nil {
		t.Fatalf("expected a single JSON event, got %q: %v", buf.String(), err)
	}
	if event["app"] != "tvshowsctl" || event["message"] != "visible" {
		t.Fatalf("unexpected event %v", event)
	}
}
