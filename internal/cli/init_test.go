package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"yearend/internal/analyzer"
	"yearend/internal/config"
	"yearend/internal/metrics"
)

func TestSetupLoggerFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("chatty", &buf)

	logger.Debug("hidden")
	logger.Info("shown")

	out := buf.String()
	if !strings.Contains(out, "Falling back to info logging") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line should be filtered: %q", out)
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("YEAREND_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("YEAREND_TEST_VALUE", "")
	os.Unsetenv("YEAREND_TEST_VALUE")

	LoadEnvFile(path)
	LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"))

	if got := os.Getenv("YEAREND_TEST_VALUE"); got != "from-file" {
		t.Fatalf("YEAREND_TEST_VALUE = %q", got)
	}
}

func TestNewAnalyzerRegistersCaches(t *testing.T) {
	cfg := &config.Config{
		ChunkSize:            2,
		SampleSize:           3,
		CacheSize:            4,
		CacheTTL:             time.Minute,
		CacheCleanupInterval: time.Second,
	}
	svc, mgr := NewAnalyzer(cfg, SetupLogger("error", &bytes.Buffer{}), metrics.New())
	defer mgr.Stop()

	data := []byte("Date,Category,Sub-Category,Charges $\n01/01/2024,Food,Dining,1.00\n")
	if _, err := svc.Ingest(context.Background(), analyzer.Upload{Name: "s.csv", Data: data}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if n := mgr.CleanAll(); n != 0 {
		t.Fatalf("nothing should have expired yet, removed %d", n)
	}
}
