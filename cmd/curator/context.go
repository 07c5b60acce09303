package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"curator/internal/config"
	"curator/internal/embed"
	"curator/internal/index"
	"curator/internal/index/local"
	"curator/internal/index/meili"
	"curator/internal/logging"
	"curator/internal/tagger"
	"curator/internal/workflow"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:       cfg.Logging.Level,
			Format:      cfg.Logging.Format,
			OutputPaths: []string{"stderr", filepath.Join(cfg.Paths.LogDir, "curator.log")},
		})
	})
	return c.logger, c.loggerErr
}

// openIndex builds the configured index backend. The returned closer releases
// backend resources and must be called when the command finishes.
func (c *commandContext) openIndex(ctx context.Context) (index.Client, func() error, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Index.Backend {
	case "local":
		store, err := local.Open(cfg.Paths.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "meilisearch":
		client := meili.New(cfg.Index)
		if err := client.EnsureIndex(ctx); err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported index backend %q", cfg.Index.Backend)
	}
}

func (c *commandContext) newTagProvider(logger *slog.Logger) (tagger.Provider, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	dictionary := tagger.NewDictionary(cfg.Tagger.MaxTags)
	switch cfg.Tagger.Provider {
	case "dictionary":
		return dictionary, nil
	case "llm":
		primary := tagger.NewOllama(tagger.OllamaConfig{
			BaseURL:        cfg.Ollama.URLs[0],
			Model:          cfg.Ollama.TagModel,
			MaxTags:        cfg.Tagger.MaxTags,
			TimeoutSeconds: cfg.Ollama.TimeoutSeconds,
		})
		return tagger.NewFallback(primary, dictionary, logger), nil
	default:
		return nil, fmt.Errorf("unsupported tag provider %q", cfg.Tagger.Provider)
	}
}

// newRunner wires the workflow runner from configuration. Embeddings are
// attached only when an embedding model is configured; everything else
// degrades to tag-only behavior.
func (c *commandContext) newRunner(ctx context.Context) (*workflow.Runner, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	indexClient, closeIndex, err := c.openIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = closeIndex() }

	tagProvider, err := c.newTagProvider(logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var opts []workflow.RunnerOption
	if cfg.Ollama.EmbeddingModel != "" {
		embedder, err := embed.NewOllama(cfg.Ollama)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		opts = append(opts, workflow.WithEmbedder(embedder))
	}

	runner, err := workflow.NewRunner(cfg, indexClient, tagProvider, logger, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return runner, cleanup, nil
}
