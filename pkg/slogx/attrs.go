package slogx

import (
	"log/slog"
)

const (
	// KeyLoggerName is the attribute key carrying the component name of a logger.
	KeyLoggerName = "logger"
	// KeyTopic is the attribute key carrying a bus topic.
	KeyTopic = "topic"
)

// Error returns a slog.Attr with the key "error" and the error's message as value.
// A nil error is rendered as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// LoggerName returns the attribute used to tag a logger with its component name.
func LoggerName(name string) slog.Attr {
	return slog.String(KeyLoggerName, name)
}

// Topic returns the attribute used to tag a log record with a bus topic.
func Topic(topic string) slog.Attr {
	return slog.String(KeyTopic, topic)
}

// Fragment describes the position of a fragment within its message.
func Fragment(index, lastIndex uint) slog.Attr {
	return slog.Group("fragment",
		slog.Uint64("index", uint64(index)),
		slog.Uint64("last", uint64(lastIndex)),
	)
}

// Component returns a logger derived from base (or slog.Default when nil)
// tagged with the given component name.
func Component(base *slog.Logger, name string) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	return base.With(LoggerName(name))
}
