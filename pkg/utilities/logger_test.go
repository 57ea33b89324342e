package utilities_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thislinkplease/midterm-cross-platform/pkg/utilities"
)

func TestInitWritesRotatedFile(t *testing.T) {
	base := filepath.Join(t.TempDir(), "app.log")
	lg, err := utilities.Init(utilities.Config{Level: "info", File: base})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	lg.Sugar().Infow("hello", "k", "v")
	lg.Debug("dropped below level")
	_ = lg.Sync()

	matches, _ := filepath.Glob(base + ".*")
	if len(matches) != 1 {
		t.Fatalf("rotated files = %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello"`) || strings.Contains(string(data), "dropped") {
		t.Errorf("log file = %s", data)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_DEV", "1")
	t.Setenv("LOG_LEVEL", "")
	if cfg := utilities.ConfigFromEnv(); cfg.Level != "debug" || !cfg.Dev {
		t.Errorf("dev config = %+v", cfg)
	}
	t.Setenv("LOG_DEV", "")
	t.Setenv("LOG_LEVEL", "warn")
	if cfg := utilities.ConfigFromEnv(); cfg.Level != "warn" || cfg.Dev {
		t.Errorf("config = %+v", cfg)
	}
}
