package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		if _, err := NewLogger(env); err != nil {
			t.Errorf("%s: %v", env, err)
		}
	}
	if _, err := NewLogger("staging"); err == nil {
		t.Error("expected error for unknown env")
	}
	if _, err := NewLogger("local", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestTee(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetchr.log")
	base, err := NewLogger("prod", "info")
	if err != nil {
		t.Fatal(err)
	}

	l := Tee(base, FileConfig{Path: path, MaxSizeMB: 1})
	l.Debug("hidden")
	l.Info("query found", zap.String("query", "bmw logo"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"query found"`) || !strings.Contains(out, `"query":"bmw logo"`) {
		t.Errorf("unexpected file content: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug line must follow the base level")
	}
}

func TestTee_NoPath(t *testing.T) {
	base := zap.NewNop()
	if Tee(base, FileConfig{}) != base {
		t.Error("empty path must return the logger unchanged")
	}
}
