package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

type blockingSink struct {
	release chan struct{}
	mu      sync.Mutex
	events  []Event
}

func (s *blockingSink) Emit(_ context.Context, e Event) {
	<-s.release
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func TestDisabledDispatcherIsNil(t *testing.T) {
	d := NewDispatcher(Config{Enabled: false}, NoOpSink{})
	if d != nil {
		t.Fatal("expected nil dispatcher when disabled")
	}
	d.Emit(context.Background(), Event{EventType: EventLogin})
	d.Close()
	if d.Dropped() != 0 {
		t.Fatal("nil dispatcher must report zero drops")
	}
}

func TestDispatcherStampsULIDAndTimestamp(t *testing.T) {
	sink := NewChannelSink(4)
	d := NewDispatcher(Config{Enabled: true, BufferSize: 4}, sink)
	d.Emit(context.Background(), Event{EventType: EventLogin, Identity: "alice", Success: true})
	d.Emit(context.Background(), Event{EventType: EventLogout, Identity: "alice", Success: true})
	d.Close()

	first := <-sink.Events()
	second := <-sink.Events()
	if first.Timestamp.IsZero() {
		t.Fatal("expected timestamp stamped")
	}
	a, err := ulid.ParseStrict(first.ID)
	if err != nil {
		t.Fatalf("expected ULID id, got %q: %v", first.ID, err)
	}
	b, err := ulid.ParseStrict(second.ID)
	if err != nil {
		t.Fatalf("expected ULID id, got %q: %v", second.ID, err)
	}
	if a.Compare(b) >= 0 {
		t.Fatalf("expected monotonically increasing ids, got %s then %s", a, b)
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(Config{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: EventRefresh})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected drops with a blocked sink and a buffer of one")
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherCloseDrains(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(Config{Enabled: true, BufferSize: 16}, NewJSONWriterSink(&buf))
	for i := 0; i < 5; i++ {
		d.Emit(context.Background(), Event{EventType: EventRefresh, Success: true})
	}
	d.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines after close, got %d", len(lines))
	}
	var e Event
	if err := json.Unmarshal([]byte(lines[0]), &e); err != nil || e.EventType != EventRefresh {
		t.Fatalf("unexpected line %q: %v", lines[0], err)
	}

	d.Emit(context.Background(), Event{EventType: EventLogin})
}

func TestLogSinkWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))
	sink.Emit(context.Background(), Event{
		ID:        "01H0000000000000000000000",
		Timestamp: time.Unix(0, 0).UTC(),
		EventType: EventForcedLogout,
		Identity:  "alice",
		Error:     "refresh failed",
		Metadata:  map[string]string{"reason": "rejected"},
	})

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["level"] != "warn" || line["event"] != EventForcedLogout || line["identity"] != "alice" {
		t.Fatalf("unexpected log line %v", line)
	}
	meta, _ := line["meta"].(map[string]any)
	if meta["reason"] != "rejected" {
		t.Fatalf("expected metadata in log line, got %v", line)
	}
}
