package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kirillkom/kg-ingest/internal/infrastructure/resilience"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("EXTRACTION_PROVIDER", "")
	t.Setenv("JOB_STORE", "")
	t.Setenv("MAX_PIECE_BYTES", "")
	t.Setenv("API_MAX_UPLOAD_BYTES", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageBackend != StorageBackendLocalFS || cfg.ExtractionProvider != ExtractionProviderOllama || cfg.JobStore != JobStoreMemory {
		t.Fatalf("unexpected backends: %+v", cfg)
	}
	if cfg.MaxPieceBytes != 1<<20 {
		t.Fatalf("expected default max piece 1MiB, got %d", cfg.MaxPieceBytes)
	}
	if cfg.APIMaxUploadBytes != 10<<20 {
		t.Fatalf("expected default max upload 10MiB, got %d", cfg.APIMaxUploadBytes)
	}
}

func TestLoadFileEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "api_port: 9000\nextraction_max_attempts: 4\nnats_enabled: true\nLOG_LEVEL: debug\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("API_PORT", "")
	t.Setenv("NATS_ENABLED", "")
	t.Setenv("EXTRACTION_MAX_ATTEMPTS", "")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIPort != "9000" || cfg.ExtractionMaxAttempts != 4 || !cfg.NATSEnabled {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("environment must override file, got %q", cfg.LogLevel)
	}
}

func TestLoadRejectsIncompletePieceStore(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_BACKEND", "piecestore")
	t.Setenv("PIECESTORE_RPC_URL", "https://gateway.example")
	t.Setenv("PIECESTORE_SIGNING_KEY", "")
	t.Setenv("PIECESTORE_DATASET_ID", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("EXTRACTION_PROVIDER", "claude")

	if _, err := Load(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestResilienceConversion(t *testing.T) {
	cfg := Config{
		ResilienceRetryMaxAttempts: 5,
		ResilienceRetryInitialMS:   50,
		ResilienceBreakerOpenSec:   7,
	}
	r := cfg.Resilience()
	if r.RetryMaxAttempts != 5 || r.RetryInitialBackoff != 50*time.Millisecond || r.BreakerOpenTimeout != 7*time.Second {
		t.Fatalf("unexpected resilience config %+v", r)
	}
}

func TestResilienceConversionSetsLLMOverrides(t *testing.T) {
	cfg := Config{ResilienceLLMRetryInitialMS: 1500, ResilienceLLMRetryMaxMS: 6000}
	r := cfg.Resilience()
	for _, op := range []string{resilience.OperationOllamaGenerate, resilience.OperationOpenAIChat} {
		policy, ok := r.Overrides[op]
		if !ok {
			t.Fatalf("missing override for %s", op)
		}
		if policy.InitialBackoff != 1500*time.Millisecond || policy.MaxBackoff != 6*time.Second {
			t.Fatalf("unexpected %s policy %+v", op, policy)
		}
	}
	if _, ok := r.Overrides[resilience.OperationNeo4jRun]; ok {
		t.Fatalf("graph writes should use the base policy")
	}
}
