package api

import (
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/draftline/draftline/redact"
	"github.com/draftline/draftline/session"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditKeyConnected        AuditEvent = "key_connected"
	AuditKeyDisconnected     AuditEvent = "key_disconnected"
	AuditGenerationRequested AuditEvent = "generation_requested"
	AuditSessionExpired      AuditEvent = "session_expired"
	AuditError               AuditEvent = "error"
)

const (
	auditSuccess = "success"
	auditFailure = "failure"
)

// auditLogger writes single-line JSON audit events. Session identifiers
// are reduced to their first eight characters and all metadata passes
// through redaction before serialization, so no event can carry a
// plaintext provider key.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
}

// newAuditWriter returns the sink for the given path: stdout when empty,
// otherwise a size-rotated file.
func newAuditWriter(path string) (io.Writer, io.Closer) {
	if path == "" {
		return os.Stdout, nil
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
	}
	return lj, lj
}

func newAuditLogger(w io.Writer) *auditLogger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			// Wall-clock is for humans only; render it as UTC ISO-8601.
			if len(groups) == 0 && attr.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, attr.Value.Time().UTC().Format(time.RFC3339))
			}
			return attr
		},
	})
	return &auditLogger{
		logger: slog.New(handler).With("component", "audit"),
	}
}

// log appends one audit event. Metadata is shallow-copied and redacted;
// the slog JSON handler escapes embedded newlines, keeping every entry a
// single well-formed line.
func (al *auditLogger) log(event AuditEvent, sessionID, status string, metadata map[string]any) {
	attrs := []any{
		slog.String("event", string(event)),
		slog.String("session_prefix", session.Prefix(sessionID)),
		slog.String("status", status),
	}
	if len(metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", redact.MapValues(metadata)))
	}
	al.logger.Info("audit", attrs...)

	if al.metrics != nil {
		al.metrics.recordEvent(event, status)
	}
}
