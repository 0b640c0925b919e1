package internal

import "log/slog"

// Logger is an embeddable, nil-safe slog wrapper shared by every package in
// this module. Embedding Logger instead of threading a *slog.Logger through
// every function signature keeps call sites like tcb.debug("destroy:flush", ...)
// short, the same shape the teacher package uses per type.
type Logger struct {
	Log *slog.Logger
}

// SetLogger installs the logger used by Trace/Debug/Error.
func (l *Logger) SetLogger(log *slog.Logger) { l.Log = log }

// Enabled reports whether lvl would produce output, without allocating attrs.
func (l *Logger) Enabled(lvl slog.Level) bool {
	return HeapAllocDebugging || LogEnabled(l.Log, lvl)
}

func (l *Logger) Trace(msg string, attrs ...slog.Attr) {
	l.logAttrs(LevelTrace, msg, attrs...)
}

func (l *Logger) Debug(msg string, attrs ...slog.Attr) {
	l.logAttrs(slog.LevelDebug, msg, attrs...)
}

func (l *Logger) Error(msg string, attrs ...slog.Attr) {
	l.logAttrs(slog.LevelError, msg, attrs...)
}

func (l *Logger) logAttrs(lvl slog.Level, msg string, attrs ...slog.Attr) {
	LogAttrs(l.Log, lvl, msg, attrs...)
}
