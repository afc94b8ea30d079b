package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger := New(false, logFile, true)
	if logger == nil {
		t.Fatal("Expected non-nil logger with debug disabled")
	}

	if _, err := os.Stat(logFile); err == nil {
		t.Error("Expected no log file to be created when debug is disabled")
	}

	logger = New(true, logFile, true)
	if logger == nil {
		t.Fatal("Expected non-nil logger with debug enabled")
	}

	if _, err := os.Stat(logFile); err != nil {
		t.Errorf("Expected log file to be created when debug is enabled: %v", err)
	}

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), "flox debug logging started") {
		t.Error("Expected initial message to be logged")
	}
}

func TestLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger := New(true, logFile, true)

	logger.Info("Test info message")
	logger.Warning("Test warning message")
	logger.Error("Test error message")

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	logContent := string(content)

	if !strings.Contains(logContent, "Test info message") {
		t.Error("Expected info message to be logged")
	}

	if !strings.Contains(logContent, "Test warning message") {
		t.Error("Expected warning message to be logged")
	}

	if !strings.Contains(logContent, "Test error message") {
		t.Error("Expected error message to be logged")
	}

	if err := os.Remove(logFile); err != nil && !os.IsNotExist(err) {
		t.Logf("Failed to remove log file: %v", err)
	}
	logger = New(false, logFile, true)

	logger.Info("This should not be logged")
	logger.Warning("This should not be logged")
	logger.Error("This should not be logged")

	if _, err := os.Stat(logFile); err == nil {
		t.Error("Expected no log file to be created when debug is disabled")
	}
}

func TestUserFacingMessages(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewWithOutput(false, "", true, &stdout, &stderr)

	logger.InfoToUser("info for %s", "user")
	logger.Success("done")
	logger.WarningToUser("careful")
	logger.StatusMessage("status line")
	logger.Error("broken")

	out := stdout.String()
	for _, want := range []string{"info for user", "done", "careful", "status line"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected stdout to contain %q, got %q", want, out)
		}
	}

	if !strings.Contains(stderr.String(), "broken") {
		t.Errorf("Expected stderr to contain the error message, got %q", stderr.String())
	}

	if strings.Contains(out, "broken") {
		t.Error("Expected errors to go to stderr, not stdout")
	}
}

func TestWarningRespectsVerbose(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger := NewWithOutput(false, "", false, &stdout, &stderr)

	logger.Warning("quiet warning")
	if strings.Contains(stdout.String(), "quiet warning") {
		t.Error("Expected warnings to be suppressed when verbose is off")
	}

	verbose := NewWithOutput(false, "", true, &stdout, &stderr)
	verbose.Warning("loud warning")
	if !strings.Contains(stdout.String(), "loud warning") {
		t.Error("Expected warnings to be shown when verbose is on")
	}
}

func TestClose(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger := New(true, logFile, false)
	logger.Info("before close")
	if err := logger.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	// Close without a log file is a no-op.
	logger = New(false, "", false)
	if err := logger.Close(); err != nil {
		t.Errorf("Close without file failed: %v", err)
	}
}
