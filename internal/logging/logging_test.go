package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"", LevelInfo},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" warn ", LevelWarn},
		{"error", LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("ParseLevel(loud) should fail")
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := NewWriter(&buf, LevelWarn)

	lg.Debugf("debug %d", 1)
	lg.Infof("info %d", 2)
	lg.Warnf("warn %d", 3)
	lg.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("output contains filtered lines:\n%s", out)
	}
	if !strings.Contains(out, "[WARN] warn 3") || !strings.Contains(out, "[ERROR] error 4") {
		t.Errorf("output missing lines:\n%s", out)
	}
}

func TestLogger_NilIsSilent(t *testing.T) {
	var lg *Logger
	lg.Infof("nothing %s", "here")
	if err := lg.Close(); err != nil {
		t.Errorf("Close() on nil = %v", err)
	}
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "sitesweep.log")
	lg, err := New(Options{File: path, Level: "debug", MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	lg.Debugf("hello %s", "file")
	if err := lg.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "[DEBUG] hello file") {
		t.Errorf("log file = %q", data)
	}
}

func TestNew_BadLevel(t *testing.T) {
	if _, err := New(Options{Level: "chatty"}); err == nil {
		t.Error("New() with unknown level should fail")
	}
}
