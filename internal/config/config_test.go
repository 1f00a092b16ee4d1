package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		Stores: []StoreConfig{
			{Name: "semantic_store", Kind: "vector"},
			{Name: "episodic_memory", Kind: "episodic"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_RedisRequiresAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "redis"
	cfg.Database.Addrs = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing addrs")
	}

	expected := `database.addrs is required for driver "redis"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_UnknownStoreKind(t *testing.T) {
	cfg := validConfig()
	cfg.Stores[0].Kind = "columnar"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown store kind")
	}
}

func TestValidate_DuplicateStoreName(t *testing.T) {
	cfg := validConfig()
	cfg.Stores[1].Name = cfg.Stores[0].Name

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate store name")
	}
}

func TestValidate_RedistextRequiresDatabase(t *testing.T) {
	cfg := validConfig()
	cfg.Stores[0].Driver = "redistext"
	cfg.Stores[0].Index = "idx:memories"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when redistext store has no database")
	}

	cfg.Database.Driver = "redis"
	cfg.Database.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with database configured: %v", err)
	}
}

func TestValidate_OpenAIRequiresModel(t *testing.T) {
	cfg := validConfig()
	cfg.Features.Provider = "openai"
	cfg.Features.Model = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for openai provider without model")
	}
}

func TestValidate_LambdaRange(t *testing.T) {
	cfg := validConfig()
	cfg.Recall.Lambda = 1.4

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for lambda out of range")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{Port: 8080},
		Stores: []StoreConfig{{Name: "semantic_store", Kind: "vector"}},
	}
	cfg.ApplyDefaults()

	if cfg.Database.Driver != "none" {
		t.Errorf("database driver = %q, want none", cfg.Database.Driver)
	}
	if cfg.Recall.MaxLatencyMS != 500 {
		t.Errorf("max latency = %d, want 500", cfg.Recall.MaxLatencyMS)
	}
	if cfg.Recall.MaxStores != 4 {
		t.Errorf("max stores = %d, want 4", cfg.Recall.MaxStores)
	}
	if cfg.Features.Provider != "hash" {
		t.Errorf("features provider = %q, want hash", cfg.Features.Provider)
	}
	if cfg.Provenance.RingSize != 256 {
		t.Errorf("ring size = %d, want 256", cfg.Provenance.RingSize)
	}
	if cfg.Stores[0].Driver != "memory" {
		t.Errorf("store driver = %q, want memory", cfg.Stores[0].Driver)
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("MEMFED_TEST_KEY", "secret")
	defer os.Unsetenv("MEMFED_TEST_KEY")

	in := []byte("api_keys: [\"${MEMFED_TEST_KEY}\", \"${MEMFED_TEST_MISSING:-fallback}\"]")
	got := string(expandEnvVars(in))
	want := `api_keys: ["secret", "fallback"]`
	if got != want {
		t.Errorf("expandEnvVars = %q, want %q", got, want)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := []byte(`
http:
  port: 9090
recall:
  lambda: 0.7
stores:
  - name: semantic_store
    kind: vector
`)
	if err := os.WriteFile(filepath.Join(dir, "config", "test.yaml"), raw, 0o644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(wd) }()

	cfg, err := Load("test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}
	if cfg.Recall.Lambda != 0.7 {
		t.Errorf("lambda = %g, want 0.7", cfg.Recall.Lambda)
	}
	if cfg.Stores[0].Driver != "memory" {
		t.Errorf("store driver = %q, want memory (defaulted)", cfg.Stores[0].Driver)
	}
}
