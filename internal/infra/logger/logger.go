package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"bluetooth-scanner/internal/domain"
	"bluetooth-scanner/internal/infra/config"
)

// Source is the logger name written in every line.
const Source = "bluetooth_scanner"

// New creates a configured *slog.Logger writing plain-text lines to stdout
// and, when cfg.Output is a path, appending to that file as well.
// The returned closer function should be deferred to flush/close file handles.
func New(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	return build(cfg, true)
}

// NewFileOnly is New without the stdout copy, for full-screen commands that
// own the terminal. An output of "stdout" discards instead.
func NewFileOnly(cfg config.LoggerConfig) (*slog.Logger, func() error, error) {
	return build(cfg, false)
}

func build(cfg config.LoggerConfig, console bool) (*slog.Logger, func() error, error) {
	writer, closer, err := openOutput(cfg.Output, console)
	if err != nil {
		return nil, nil, fmt.Errorf("open log output: %w", err)
	}

	handler := NewLineHandler(writer, Source, parseLevel(cfg.Level))
	return slog.New(handler), closer, nil
}

// parseLevel converts a string level to slog.Level.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "critical":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// openOutput returns a writer that tees stdout with the log file.
func openOutput(output string, console bool) (io.Writer, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(output) {
	case "", "stdout":
		if !console {
			return io.Discard, noop, nil
		}
		return os.Stdout, noop, nil
	case "stderr":
		return os.Stderr, noop, nil
	default:
		f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, nil, err
		}
		if !console {
			return f, f.Close, nil
		}
		return io.MultiWriter(os.Stdout, f), f.Close, nil
	}
}

// LogDeviceDiscovery records a discovered device at info level.
func LogDeviceDiscovery(log *slog.Logger, info domain.DeviceInfo) {
	log.Info(fmt.Sprintf("Device discovered: %s", describe(info)))
}

// LogClassification records a classifier verdict at info level.
func LogClassification(log *slog.Logger, info domain.DeviceInfo, label string) {
	log.Info(fmt.Sprintf("Device classified: %s as %s", describe(info), label))
}

// LogStorageOperation records a storage operation at debug level.
func LogStorageOperation(log *slog.Logger, op, details string) {
	log.Debug(fmt.Sprintf("Storage operation: %s - %s", op, details))
}

func describe(info domain.DeviceInfo) string {
	return fmt.Sprintf("{address: %s, name: %q, class: %s, manufacturer: %q, rssi: %d}",
		info.Address, info.Name, info.Class, info.Manufacturer, info.SignalStrength)
}
