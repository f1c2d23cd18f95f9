package instrumentation

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LabelChange captures one label transition on a thread for audit logging.
//
// # Privacy Considerations
//
// Subject carries message content. It is only written when the audit logger
// was configured with IncludeSubjects.
type LabelChange struct {
	ThreadID string
	Subject  string

	// Label ids removed from and added to the thread, in request order.
	Removed []string
	Added   []string

	// Source of the change: "triage" for the batch driver, the tool name
	// for changes requested over MCP.
	Source string

	DryRun   bool
	Duration time.Duration
	Success  bool
	Error    string

	TraceID string
	SpanID  string
}

// Status returns "success" or "error" based on the Success field.
func (lc *LabelChange) Status() string {
	if lc.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes for the change. Subject is included only
// when includeSubject is true.
func (lc *LabelChange) LogAttrs(includeSubject bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("thread_id", lc.ThreadID),
		slog.String("removed", strings.Join(lc.Removed, ",")),
		slog.String("added", strings.Join(lc.Added, ",")),
		slog.Bool("success", lc.Success),
	}

	if lc.Source != "" {
		attrs = append(attrs, slog.String("source", lc.Source))
	}
	if lc.DryRun {
		attrs = append(attrs, slog.Bool("dry_run", true))
	}
	if lc.Duration > 0 {
		attrs = append(attrs, slog.Duration("duration", lc.Duration))
	}
	if includeSubject && lc.Subject != "" {
		attrs = append(attrs, slog.String("subject", lc.Subject))
	}
	if lc.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", lc.TraceID))
	}
	if lc.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", lc.SpanID))
	}
	if lc.Error != "" {
		attrs = append(attrs, slog.String("error", lc.Error))
	}

	return attrs
}

// WithSpanContext extracts trace context from the current span.
func (lc *LabelChange) WithSpanContext(ctx context.Context) *LabelChange {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		lc.TraceID = span.SpanContext().TraceID().String()
		lc.SpanID = span.SpanContext().SpanID().String()
	}
	return lc
}

// Complete records the result of the change.
func (lc *LabelChange) Complete(err error) *LabelChange {
	lc.Success = err == nil
	if err != nil {
		lc.Error = err.Error()
	}
	return lc
}

// AuditLogger writes structured audit records for label changes.
// A nil *AuditLogger logs nothing.
type AuditLogger struct {
	logger          *slog.Logger
	includeSubjects bool
	enabled         bool
}

// NewAuditLogger creates an enabled AuditLogger that omits subjects.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:  logger,
		enabled: true,
	}
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:          logger,
		includeSubjects: config.IncludeSubjects,
		enabled:         config.Enabled,
	}
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogLabelChange writes one audit record. Failed changes are logged at warn.
func (al *AuditLogger) LogLabelChange(lc *LabelChange) {
	if al == nil || !al.enabled || lc == nil {
		return
	}

	attrs := lc.LogAttrs(al.includeSubjects)
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if lc.Success {
		al.logger.Info("label_change", args...)
	} else {
		al.logger.Warn("label_change_failed", args...)
	}
}
