package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/wpp-puppet/internal/config"
)

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "wppd.log")
	cfg := config.Default().Log
	cfg.Level = "debug"

	logger, err := New(cfg, path, "work")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Debug("hello")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"msg":"hello"`, `"session":"work"`, `"pid":`} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %s", line, want)
		}
	}
}

func TestNewFiltersBelowLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wppd.log")
	cfg := config.Default().Log
	cfg.Level = "warn"

	logger, err := New(cfg, path, "main")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("quiet")
	logger.Warn("loud")
	_ = logger.Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "quiet") {
		t.Error("info line written at warn level")
	}
	if !strings.Contains(string(data), "loud") {
		t.Error("warn line missing")
	}
}
