package logging

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeyPatterns lists substrings that indicate a log attribute key
// holds a secret value. Values logged under these keys are fully redacted.
var sensitiveKeyPatterns = []string{
	"token",
	"password",
	"secret",
	"credential",
}

// telegramTokenPattern matches Telegram bot tokens (numeric id, colon, 35-char secret).
var telegramTokenPattern = regexp.MustCompile(`\b\d{8,10}:[A-Za-z0-9_-]{35}\b`)

// keystoneTokenPattern matches opaque keystone-style auth tokens embedded in
// strings (e.g. accidentally logged request headers): 32+ chars of base64-ish
// material following "gAAAA" fernet prefix.
var keystoneTokenPattern = regexp.MustCompile(`\bgAAAA[A-Za-z0-9_-]{16,}\b`)

// RedactingHandler wraps an slog.Handler and redacts sensitive values before
// they are passed to the inner handler.
type RedactingHandler struct {
	inner slog.Handler
}

// NewRedactingHandler creates a RedactingHandler around inner.
func NewRedactingHandler(inner slog.Handler) *RedactingHandler {
	return &RedactingHandler{inner: inner}
}

func (h *RedactingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *RedactingHandler) Handle(ctx context.Context, r slog.Record) error {
	var redacted []slog.Attr
	r.Attrs(func(a slog.Attr) bool {
		redacted = append(redacted, redactAttr(a))
		return true
	})

	clean := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	clean.AddAttrs(redacted...)
	return h.inner.Handle(ctx, clean)
}

func (h *RedactingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactingHandler{inner: h.inner.WithAttrs(redacted)}
}

func (h *RedactingHandler) WithGroup(name string) slog.Handler {
	return &RedactingHandler{inner: h.inner.WithGroup(name)}
}

// redactAttr returns a copy of the attribute with its value redacted if necessary.
func redactAttr(a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(key, pattern) {
			return slog.String(a.Key, "[REDACTED]")
		}
	}

	if a.Value.Kind() == slog.KindString {
		val := a.Value.String()
		if masked := redactString(val); masked != val {
			return slog.String(a.Key, masked)
		}
	}
	return a
}

// redactString replaces known secret patterns inside a string value.
func redactString(val string) string {
	val = telegramTokenPattern.ReplaceAllString(val, "[REDACTED]")
	val = keystoneTokenPattern.ReplaceAllString(val, "[REDACTED]")
	return val
}
