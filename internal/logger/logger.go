// Package logger builds the application's slog logger and a few attribute
// helpers shared by every package that logs.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// Setup returns a logger for env.  local logs text to stdout at debug
// level; dev and prod append to logPath at debug and info level.  The
// returned closer releases the log file and is never nil.
func Setup(env, logPath string) (*slog.Logger, io.Closer, error) {
	if env == envLocal {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})), nopCloser{}, nil
	}

	level := slog.LevelInfo
	switch env {
	case envDev:
		level = slog.LevelDebug
	case envProd:
	default:
		return nil, nil, fmt.Errorf("invalid environment: %q", env)
	}

	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f, nil
}

// Discard returns a logger that drops every record.  Tests use it.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Err wraps an error as the "error" attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.String("error", err.Error())
}

// Secret keeps only the first characters of a sensitive value, enough to
// correlate log lines without leaking it.
func Secret(key, value string) slog.Attr {
	r := "***"
	if len(value) > 5 {
		r = value[0:5] + "***"
	}
	if value == "" {
		r = "?"
	}
	return slog.String(key, r)
}

// Phone masks all but the last four digits of a phone number.
func Phone(value string) slog.Attr {
	return slog.String("phone", MaskPhone(value))
}

// MaskPhone is the string form of Phone, for payloads leaving the process.
func MaskPhone(value string) string {
	if len(value) <= 4 {
		return "****"
	}
	return "******" + value[len(value)-4:]
}

// Module tags records with the emitting component.
func Module(mod string) slog.Attr {
	return slog.String("mod", mod)
}
