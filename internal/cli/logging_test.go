package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"arith-live-service/internal/config"
)

func TestNewLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{}
	cfg.Log.Format = "JSON"
	cfg.Log.Level = "warn"

	logger := newLogger(&buf, cfg)
	logger.Info("hidden")
	logger.Warn("shown", "session_id", "s-1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected only the warn line, got %q", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected json output: %v", err)
	}
	if entry["msg"] != "shown" || entry["session_id"] != "s-1" {
		t.Fatalf("unexpected entry %+v", entry)
	}
}

func TestNewLoggerDefaultsToTextInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Config{}
	cfg.Log.Level = "nonsense"

	logger := newLogger(&buf, cfg)
	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=shown") {
		t.Fatalf("unexpected text output %q", out)
	}
}
