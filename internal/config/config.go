package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	IgnoreFile string `toml:"ignore_file"`
}

// Index contains configuration for the search index backend.
type Index struct {
	Backend        string `toml:"backend"`
	URL            string `toml:"url"`
	APIKey         string `toml:"api_key"`
	IndexName      string `toml:"index_name"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Ollama contains configuration for the local model endpoints used for
// tagging and embeddings.
type Ollama struct {
	URLs           []string `toml:"urls"`
	TagModel       string   `toml:"tag_model"`
	EmbeddingModel string   `toml:"embedding_model"`
	EmbeddingDims  int      `toml:"embedding_dims"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Tagger selects the tag provider and its limits.
type Tagger struct {
	Provider string `toml:"provider"`
	MaxTags  int    `toml:"max_tags"`
}

// Protection configures the protected-zone detector. Marker directories
// protect themselves and everything beneath; VCS markers protect the
// directory that contains them (the whole working tree, even when the
// marker is a file, as with worktree gitlinks); manifest files protect the
// directory that contains them.
type Protection struct {
	MarkerDirs    []string `toml:"marker_dirs"`
	VCSMarkers    []string `toml:"vcs_markers"`
	ManifestFiles []string `toml:"manifest_files"`
}

// Organizer contains clustering, naming, and move execution settings.
type Organizer struct {
	MinClusterSize      int     `toml:"min_cluster_size"`
	FallbackFolder      string  `toml:"fallback_folder"`
	MaxFolderNameLength int     `toml:"max_folder_name_length"`
	MaxDepth            int     `toml:"max_depth"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	SkipConfirmation    bool    `toml:"skip_confirmation"`
	MoveWorkers         int     `toml:"move_workers"`
}

// Workflow contains concurrency and watch-mode settings.
type Workflow struct {
	ScanWorkers         int `toml:"scan_workers"`
	ProviderConcurrency int `toml:"provider_concurrency"`
	DebounceSeconds     int `toml:"debounce_seconds"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config is the root configuration document.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Index      Index      `toml:"index"`
	Ollama     Ollama     `toml:"ollama"`
	Tagger     Tagger     `toml:"tagger"`
	Protection Protection `toml:"protection"`
	Organizer  Organizer  `toml:"organizer"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the expected location of the user configuration.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "curator", "config.toml"), nil
}

// Load reads the configuration from path, falling back to the default
// location when path is empty. A missing file yields defaults. The returned
// config is normalized and validated.
func Load(path string) (*Config, string, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", err
	}

	cfg := Default()
	data, err := os.ReadFile(resolved)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, resolved, fmt.Errorf("parse %s: %w", resolved, err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if path != "" {
			return nil, resolved, fmt.Errorf("config file %s does not exist", resolved)
		}
	default:
		return nil, resolved, fmt.Errorf("read %s: %w", resolved, err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, resolved, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, resolved, err
	}
	return &cfg, resolved, nil
}

func resolveConfigPath(path string) (string, error) {
	if strings.TrimSpace(path) != "" {
		return expandPath(path)
	}
	return DefaultConfigPath()
}

// EnsureDirectories creates the data and log directories when missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes the embedded sample configuration to path. Refuses to
// overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file %s already exists", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(expanded, []byte(sampleConfig), 0o644)
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return filepath.Abs(trimmed)
}

// ExpandPath resolves ~ and relative segments for user-supplied paths.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
