package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "debt-summary", "info", "json")
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.Debug().Msg("hidden")
	log.Info().Str("key", "summary:system").Msg("cache miss")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), buf.String())
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &payload); err != nil {
		t.Fatalf("invalid json log: %v", err)
	}
	if payload["service"] != "debt-summary" {
		t.Errorf("service = %v", payload["service"])
	}
	if payload["key"] != "summary:system" {
		t.Errorf("key = %v", payload["key"])
	}
	if _, ok := payload["time"]; !ok {
		t.Error("expected timestamp field")
	}
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "debt-summary", "debug", "console")
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.Debug().Msg("pass finished")
	if !strings.Contains(buf.String(), "pass finished") {
		t.Errorf("console output = %q", buf.String())
	}
	if json.Valid(buf.Bytes()) {
		t.Error("console output should not be json")
	}
}

func TestNewWithWriter_Errors(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
	}{
		{name: "bad level", level: "loud", format: "json"},
		{name: "bad format", level: "info", format: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewWithWriter(&bytes.Buffer{}, "svc", tt.level, tt.format); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewWithWriter_EmptyLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "svc", "", "")
	if err != nil {
		t.Fatalf("NewWithWriter() error = %v", err)
	}

	log.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug to be filtered, got %q", buf.String())
	}
}
