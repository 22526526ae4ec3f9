package authclient

import (
	"io"

	"github.com/rs/zerolog"

	"github.com/tvshows/authclient/internal/audit"
)

// AuditEvent is one session lifecycle record.
type AuditEvent = audit.Event

// AuditSink receives audit events from the client's background dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers audit events on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = audit.JSONWriterSink

// LogSink writes audit events through zerolog.
type LogSink = audit.LogSink

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return audit.NewLogSink(logger)
}

// Audit event types.
const (
	AuditLogin        = audit.EventLogin
	AuditLogout       = audit.EventLogout
	AuditRefresh      = audit.EventRefresh
	AuditForcedLogout = audit.EventForcedLogout
	AuditUpgrade      = audit.EventUpgrade
	AuditPromote      = audit.EventPromote
	AuditRestore      = audit.EventRestore
)
