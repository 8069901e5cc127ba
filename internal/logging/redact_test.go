package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newCaptureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := NewRedactingHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return slog.New(h), &buf
}

func TestRedact_TokenKey(t *testing.T) {
	logger, buf := newCaptureLogger()

	logger.Info("auth", "auth_token", "gAAAAsupersecretvalue12345")

	out := buf.String()
	if strings.Contains(out, "supersecret") {
		t.Errorf("token value leaked into log output: %s", out)
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Errorf("expected [REDACTED] marker in output: %s", out)
	}
}

func TestRedact_PasswordAndCredentialKeys(t *testing.T) {
	for _, key := range []string{"password", "bot_secret", "cloud_credential"} {
		logger, buf := newCaptureLogger()
		logger.Info("msg", key, "hunter2value")
		if strings.Contains(buf.String(), "hunter2value") {
			t.Errorf("key %q: value leaked: %s", key, buf.String())
		}
	}
}

func TestRedact_TelegramTokenInString(t *testing.T) {
	logger, buf := newCaptureLogger()

	logger.Warn("notify failed", "url", "https://api.telegram.org/bot123456789:AAaaBBbbCCccDDddEEffGGhhIIjjKKllMMn/sendMessage")

	out := buf.String()
	if strings.Contains(out, "AAaaBBbb") {
		t.Errorf("telegram token leaked: %s", out)
	}
}

func TestRedact_PlainValuesUntouched(t *testing.T) {
	logger, buf := newCaptureLogger()

	logger.Info("found", "address", "95.163.248.15", "port_id", "abc-123")

	out := buf.String()
	if !strings.Contains(out, "95.163.248.15") || !strings.Contains(out, "abc-123") {
		t.Errorf("non-sensitive values should pass through unchanged: %s", out)
	}
}

func TestRedact_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewRedactingHandler(slog.NewTextHandler(&buf, nil))
	child := h.WithAttrs([]slog.Attr{slog.String("api_token", "topsecret")})

	rec := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	if err := child.Handle(context.Background(), rec); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Contains(buf.String(), "topsecret") {
		t.Errorf("WithAttrs value leaked: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
