package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_IsNop(t *testing.T) {
	l := New()
	if l.Log == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Log.Info("dropped")
}

func TestInit_InvalidLevel(t *testing.T) {
	l := New()
	if err := l.Init("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestInitWithOutput_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devtrack.log")
	l := New()
	if err := l.InitWithOutput("debug", path); err != nil {
		t.Fatalf("InitWithOutput: %v", err)
	}
	l.Log.Debug("hello file")
	_ = l.Log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file missing entry: %s", data)
	}
}
