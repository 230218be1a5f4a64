package goGuard

import (
	"io"

	"github.com/MrEthical07/goGuard/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one entry in the audit trail. An empty UserID is an anonymous
// or system event.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher. Emit must not
// block for long; the dispatcher may run it on the request goroutine.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	// MultiSink emits every event to each sink in order.
	MultiSink = audit.MultiSink
)

func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewStoreSink persists events through store. Write failures are logged and
// dropped.
func NewStoreSink(store AuditStore, logger *zap.Logger) AuditSink {
	return audit.NewStoreSink(store, logger)
}
