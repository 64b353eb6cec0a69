package authcore

import (
	"io"
	"log/slog"

	"github.com/bikebill/authcore/internal/audit"
)

// AuditEvent is one security-relevant event emitted by the Engine or the
// security monitor.
type AuditEvent = audit.Event

// AuditSink receives AuditEvents from a background dispatcher. Errors are
// logged and dropped.
type AuditSink = audit.Sink

// NewJSONWriterSink writes one JSON event per line to w.
func NewJSONWriterSink(w io.Writer) AuditSink {
	return audit.NewJSONWriterSink(w)
}

// NewSlogSink logs events through logger.
func NewSlogSink(logger *slog.Logger) AuditSink {
	return audit.NewSlogSink(logger)
}

// NewKafkaSink publishes events as JSON to topic.
func NewKafkaSink(brokers []string, topic string) (*audit.KafkaSink, error) {
	return audit.NewKafkaSink(brokers, topic)
}

// MultiSink fans out to several sinks.
func MultiSink(sinks ...AuditSink) AuditSink {
	return audit.MultiSink(sinks)
}
