package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"agentjungle/internal/infra/config"
)

func TestNewHandlerJSON(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, config.LoggerConfig{Level: "info", Format: "json"}))

	log.Info("agent created", "agent", "mathAgent")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v, output: %s", err, buf.String())
	}
	if entry["msg"] != "agent created" || entry["agent"] != "mathAgent" {
		t.Errorf("entry = %v", entry)
	}
	if _, ok := entry["source"]; ok {
		t.Error("source should only be added at debug level")
	}
}

func TestNewHandlerDebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, config.LoggerConfig{Level: "debug", Format: "json"}))
	log.Debug("matching")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, ok := entry["source"]; !ok {
		t.Errorf("expected source at debug level: %s", buf.String())
	}
}

func TestNewHandlerRedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, config.LoggerConfig{Level: "info", Format: "text"}))
	log.Info("provider ready", "provider", "gemini", "api_key", "AIza-secret", "Authorization", "Bearer x")

	out := buf.String()
	if strings.Contains(out, "AIza-secret") || strings.Contains(out, "Bearer x") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "provider=gemini") {
		t.Errorf("non-secret attr missing: %s", out)
	}
	if strings.Count(out, redacted) != 2 {
		t.Errorf("want 2 redactions: %s", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, config.LoggerConfig{Level: "warn", Format: "text"}))

	log.Info("should be filtered")
	log.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should be filtered") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("warn message should appear at warn level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestOpenOutputStandardStreams(t *testing.T) {
	tests := map[string]*os.File{"stdout": os.Stdout, "stderr": os.Stderr, "": os.Stderr}
	for in, want := range tests {
		w, closer, err := openOutput(in)
		if err != nil {
			t.Fatalf("openOutput(%q): %v", in, err)
		}
		if w != want {
			t.Errorf("openOutput(%q) returned the wrong stream", in)
		}
		if err := closer(); err != nil {
			t.Errorf("closer: %v", err)
		}
	}
}

func TestNewFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, closer, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("file output test", "key", "value")
	if err := closer(); err != nil {
		t.Fatalf("closer: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "file output test") {
		t.Error("log file should contain the logged message")
	}
	info, _ := os.Stat(path)
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("log file perm = %o, want 600", perm)
	}
}

func TestNewInvalidOutput(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Level: "info", Format: "text", Output: "/nonexistent/dir/app.log"})
	if err == nil {
		t.Error("expected error for invalid output path")
	}
}

func TestNop(t *testing.T) {
	log := Nop()
	if log.Enabled(nil, slog.LevelDebug) {
		t.Error("Nop should not enable debug")
	}
	log.Error("discarded")
}
