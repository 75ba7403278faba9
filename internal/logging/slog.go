package logging

import (
	"context"
	"io"
	"log/slog"
)

// redacted lists attribute keys whose values must never reach a log sink.
var redacted = map[string]struct{}{
	"password":    {},
	"code":        {},
	"otp_secret":  {},
	"private_key": {},
	"token":       {},
}

const redactedValue = "[REDACTED]"

type SlogLogger struct {
	l *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{l: l}
}

// NewJSONLogger builds the server logger: JSON lines on w, with credential
// and key material attributes replaced by a placeholder.
func NewJSONLogger(w io.Writer, level slog.Level) *SlogLogger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})
	return NewSlogLogger(slog.New(h))
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redacted[a.Key]; ok {
		return slog.String(a.Key, redactedValue)
	}
	return a
}

func (s *SlogLogger) Debug(ctx context.Context, msg string, args ...any) {
	s.l.DebugContext(ctx, msg, args...)
}

func (s *SlogLogger) Info(ctx context.Context, msg string, args ...any) {
	s.l.InfoContext(ctx, msg, args...)
}

func (s *SlogLogger) Warn(ctx context.Context, msg string, args ...any) {
	s.l.WarnContext(ctx, msg, args...)
}

func (s *SlogLogger) Error(ctx context.Context, msg string, args ...any) {
	s.l.ErrorContext(ctx, msg, args...)
}

func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{l: s.l.With(args...)}
}
