package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestSetupLevels(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	if err := Setup(Options{Level: "debug"}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("level = %v, want debug", log.GetLevel())
	}

	if err := Setup(Options{Level: "loud"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

func TestSetupWritesFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	path := filepath.Join(t.TempDir(), "scrape.log")
	if err := Setup(Options{Level: "info", Format: "json", File: path}); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	log.WithField("card_id", "abc").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"card_id":"abc"`) {
		t.Errorf("log file missing structured field: %s", data)
	}
}
