package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
		known bool
	}{
		{"debug", DEBUG, true},
		{"INFO", INFO, true},
		{"warning", WARN, true},
		{"Error", ERROR, true},
		{"fatal", FATAL, true},
		{"verbose", INFO, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := LookupLevel(tt.input)
			if got != tt.want || ok != tt.known {
				t.Errorf("LookupLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.known)
			}
			if ParseLevel(tt.input) != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, ParseLevel(tt.input), tt.want)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(WARN, false)
	logger.SetOutput(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("INFO entry written at WARN level: %q", out)
	}
	if !strings.Contains(out, "WARN: shown") {
		t.Errorf("expected WARN entry, got %q", out)
	}
}

func TestJSONOutputWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DEBUG, true)
	logger.SetOutput(&buf)

	logger.WithField("session", "abc").Info("child started", Fields{"child": "compute"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry.Level != "INFO" || entry.Message != "child started" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if entry.Fields["session"] != "abc" || entry.Fields["child"] != "compute" {
		t.Errorf("fields not merged: %+v", entry.Fields)
	}
}

func TestWithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(INFO, true)
	parent.SetOutput(&buf)

	_ = parent.WithField("child", "dev-server")
	parent.Info("plain")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if _, ok := entry.Fields["child"]; ok {
		t.Errorf("parent logger picked up child field: %+v", entry.Fields)
	}
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(dir, "cortx-run", INFO, false)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	logger.SetOutput(logger.sink.logFile)
	logger.Info("written to file")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "cortx-run.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing entry: %q", string(data))
	}
}
