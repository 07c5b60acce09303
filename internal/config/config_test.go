package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/config"
)

func TestDefaultValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Index.Backend != "local" {
		t.Fatalf("unexpected default backend %q", cfg.Index.Backend)
	}
	if len(cfg.Protection.MarkerDirs) == 0 || len(cfg.Protection.ManifestFiles) == 0 {
		t.Fatal("expected default protection sets")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	cfg, path, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !strings.HasSuffix(path, filepath.Join(".config", "curator", "config.toml")) {
		t.Fatalf("unexpected resolved path %q", path)
	}
	if cfg.Organizer.FallbackFolder != "misc" {
		t.Fatalf("expected default fallback folder, got %q", cfg.Organizer.FallbackFolder)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, _, err := config.Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for explicit missing config path")
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[index]
backend = "Meilisearch"
url = "http://127.0.0.1:7700/"
index_name = "  files  "

[ollama]
urls = ["http://10.0.0.1:11434/", "", "http://10.0.0.2:11434"]
tag_model = "llama3.2"

[tagger]
provider = "LLM"

[organizer]
min_cluster_size = 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Index.Backend != "meilisearch" {
		t.Fatalf("backend not normalized: %q", cfg.Index.Backend)
	}
	if cfg.Index.URL != "http://127.0.0.1:7700" {
		t.Fatalf("url not trimmed: %q", cfg.Index.URL)
	}
	if cfg.Index.IndexName != "files" {
		t.Fatalf("index name not trimmed: %q", cfg.Index.IndexName)
	}
	if len(cfg.Ollama.URLs) != 2 {
		t.Fatalf("expected empty url dropped, got %v", cfg.Ollama.URLs)
	}
	if cfg.Tagger.Provider != "llm" {
		t.Fatalf("provider not lowered: %q", cfg.Tagger.Provider)
	}
	if cfg.Organizer.MinClusterSize != 3 {
		t.Fatalf("min cluster size not applied: %d", cfg.Organizer.MinClusterSize)
	}
	if cfg.Organizer.MoveWorkers == 0 {
		t.Fatal("expected defaulted move workers")
	}
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Index.Backend = "elastic"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected backend validation error")
	}
}

func TestValidateRequiresTagModelForLLM(t *testing.T) {
	cfg := config.Default()
	cfg.Tagger.Provider = "llm"
	cfg.Ollama.TagModel = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected tag model validation error")
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected overwrite refusal")
	}
	if _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}
