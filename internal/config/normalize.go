package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeIndex()
	c.normalizeOllama()
	c.normalizeTagger()
	c.normalizeProtection()
	c.normalizeOrganizer()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.IgnoreFile, err = expandPath(c.Paths.IgnoreFile); err != nil {
		return fmt.Errorf("paths.ignore_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeIndex() {
	c.Index.Backend = strings.ToLower(strings.TrimSpace(c.Index.Backend))
	if c.Index.Backend == "" {
		c.Index.Backend = defaultIndexBackend
	}
	c.Index.URL = strings.TrimRight(strings.TrimSpace(c.Index.URL), "/")
	c.Index.APIKey = strings.TrimSpace(c.Index.APIKey)
	c.Index.IndexName = strings.TrimSpace(c.Index.IndexName)
	if c.Index.IndexName == "" {
		c.Index.IndexName = defaultIndexName
	}
	if c.Index.TimeoutSeconds <= 0 {
		c.Index.TimeoutSeconds = defaultIndexTimeoutSeconds
	}
}

func (c *Config) normalizeOllama() {
	urls := make([]string, 0, len(c.Ollama.URLs))
	for _, raw := range c.Ollama.URLs {
		trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
		if trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	if len(urls) == 0 {
		urls = []string{defaultOllamaURL}
	}
	c.Ollama.URLs = urls
	c.Ollama.TagModel = strings.TrimSpace(c.Ollama.TagModel)
	c.Ollama.EmbeddingModel = strings.TrimSpace(c.Ollama.EmbeddingModel)
	if c.Ollama.EmbeddingDims <= 0 {
		c.Ollama.EmbeddingDims = defaultEmbeddingDims
	}
	if c.Ollama.TimeoutSeconds <= 0 {
		c.Ollama.TimeoutSeconds = defaultOllamaTimeout
	}
}

func (c *Config) normalizeTagger() {
	c.Tagger.Provider = strings.ToLower(strings.TrimSpace(c.Tagger.Provider))
	if c.Tagger.Provider == "" {
		c.Tagger.Provider = defaultTaggerProvider
	}
	if c.Tagger.MaxTags <= 0 {
		c.Tagger.MaxTags = defaultMaxTags
	}
}

func (c *Config) normalizeProtection() {
	c.Protection.MarkerDirs = trimNonEmpty(c.Protection.MarkerDirs)
	c.Protection.VCSMarkers = trimNonEmpty(c.Protection.VCSMarkers)
	c.Protection.ManifestFiles = trimNonEmpty(c.Protection.ManifestFiles)
	if len(c.Protection.MarkerDirs) == 0 {
		c.Protection.MarkerDirs = append([]string(nil), defaultMarkerDirs...)
	}
	if len(c.Protection.VCSMarkers) == 0 {
		c.Protection.VCSMarkers = append([]string(nil), defaultVCSMarkers...)
	}
	if len(c.Protection.ManifestFiles) == 0 {
		c.Protection.ManifestFiles = append([]string(nil), defaultManifestFiles...)
	}
}

func (c *Config) normalizeOrganizer() {
	if c.Organizer.MinClusterSize <= 0 {
		c.Organizer.MinClusterSize = defaultMinClusterSize
	}
	c.Organizer.FallbackFolder = strings.TrimSpace(c.Organizer.FallbackFolder)
	if c.Organizer.FallbackFolder == "" {
		c.Organizer.FallbackFolder = defaultFallbackFolder
	}
	if c.Organizer.MaxFolderNameLength <= 0 {
		c.Organizer.MaxFolderNameLength = defaultMaxFolderNameLen
	}
	if c.Organizer.MaxDepth <= 0 {
		c.Organizer.MaxDepth = defaultMaxDepth
	}
	if c.Organizer.SimilarityThreshold <= 0 {
		c.Organizer.SimilarityThreshold = defaultSimilarity
	}
	if c.Organizer.MoveWorkers <= 0 {
		c.Organizer.MoveWorkers = defaultMoveWorkers
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.ScanWorkers <= 0 {
		c.Workflow.ScanWorkers = defaultScanWorkers
	}
	if c.Workflow.ProviderConcurrency <= 0 {
		c.Workflow.ProviderConcurrency = defaultProviderConcurrency
	}
	if c.Workflow.DebounceSeconds <= 0 {
		c.Workflow.DebounceSeconds = defaultDebounceSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
}

func trimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
