package util

import (
	"context"
	"io"
	"log/slog"
)

// LevelTrace is the slog level used for code generation tracing. It sits just
// below Debug so that it is only shown in verbose mode.
const LevelTrace slog.Level = slog.LevelDebug - 4

// Trace logs msg with args at LevelTrace on the default logger.
func Trace(msg string, args ...any) {
	slog.Log(context.Background(), LevelTrace, msg, args...)
}

// SetupLogging installs a text handler writing to w as the default slog logger.
// Verbose configurations log from LevelTrace, others only warnings and errors.
func SetupLogging(opt Options, w io.Writer) {
	level := slog.LevelWarn
	if opt.Verbose {
		level = LevelTrace
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if l, ok := a.Value.Any().(slog.Level); ok && l == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	})
	slog.SetDefault(slog.New(h))
}
