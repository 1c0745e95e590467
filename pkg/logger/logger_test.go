// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"warning", "warning", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"fatal", "fatal", zerolog.FatalLevel},
		{"panic", "panic", zerolog.PanicLevel},
		{"invalid defaults to info", "invalid", zerolog.InfoLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"uppercase", "DEBUG", zerolog.DebugLevel},
		{"mixed case", "WaRn", zerolog.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if level := parseLogLevel(tt.level); level != tt.expected {
				t.Errorf("parseLogLevel(%s) = %v, want %v", tt.level, level, tt.expected)
			}
		})
	}
}

func TestGet(t *testing.T) {
	Initialize("info")

	logger := Get()
	if logger == nil {
		t.Error("Get() returned nil logger")
	}
}

func TestLogFunctions(t *testing.T) {
	var buf bytes.Buffer
	Initialize("debug")
	SetOutput(&buf)

	tests := []struct {
		name    string
		logFunc func() *zerolog.Event
		message string
	}{
		{"debug", Debug, "debug message"},
		{"info", Info, "info message"},
		{"warn", Warn, "warn message"},
		{"error", Error, "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()

			event := tt.logFunc()
			if event == nil {
				t.Errorf("%s() returned nil event", tt.name)
				return
			}

			event.Msg(tt.message)

			output := buf.String()
			if output == "" {
				t.Errorf("%s() produced no output", tt.name)
			}
			if !strings.Contains(output, tt.message) {
				t.Errorf("%s() output should contain message %q, got %q", tt.name, tt.message, output)
			}
		})
	}
}

func TestWith(t *testing.T) {
	Initialize("info")

	context := With()
	logger := context.Str("test_field", "test_value").Logger()

	var buf bytes.Buffer
	logger = logger.Output(&buf)
	logger.Info().Msg("test message")

	if !strings.Contains(buf.String(), "test message") {
		t.Error("Context-created logger should be functional")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Initialize("info")
	SetOutput(&buf)

	componentLogger := Component("poller")
	componentLogger.Info().Msg("component message")

	output := buf.String()
	if !strings.Contains(output, "poller") {
		t.Errorf("Component() output should carry the component name, got %q", output)
	}
	if !strings.Contains(output, "component message") {
		t.Errorf("Component() output should contain the message, got %q", output)
	}
}

func TestLogLevelFiltering(t *testing.T) {
	tests := []struct {
		name        string
		configLevel string
		logLevel    string
		shouldLog   bool
	}{
		{"info logs at info level", "info", "info", true},
		{"debug filtered at info level", "info", "debug", false},
		{"error logs at info level", "info", "error", true},
		{"warn logs at info level", "info", "warn", true},
		{"debug logs at debug level", "debug", "debug", true},
		{"info filtered at error level", "error", "info", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Initialize(tt.configLevel)
			SetOutput(&buf)

			message := "test message for filtering"

			switch tt.logLevel {
			case "debug":
				Debug().Msg(message)
			case "info":
				Info().Msg(message)
			case "warn":
				Warn().Msg(message)
			case "error":
				Error().Msg(message)
			}

			logged := strings.Contains(buf.String(), message)
			if logged != tt.shouldLog {
				t.Errorf("level %s at config %s: logged = %v, want %v",
					tt.logLevel, tt.configLevel, logged, tt.shouldLog)
			}
		})
	}
}
