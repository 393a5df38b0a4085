package logger

import (
	"github.com/teranos/newsdesk/sym"
	"go.uber.org/zap"
)

// AddPulseSymbol returns a child logger tagged with the Pulse symbol (꩜) as a field.
// The symbol lives in a field rather than the message so logs stay filterable.
func AddPulseSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.Pulse)
}

// AddDBSymbol returns a child logger tagged with the database symbol (⊔).
func AddDBSymbol(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.With(FieldSymbol, sym.DB)
}

// PulseInfow logs an info message on the global logger with the Pulse symbol
func PulseInfow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		AddPulseSymbol(Logger).Infow(msg, keysAndValues...)
	}
}

// PulseWarnw logs a warning on the global logger with the Pulse symbol
func PulseWarnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		AddPulseSymbol(Logger).Warnw(msg, keysAndValues...)
	}
}
