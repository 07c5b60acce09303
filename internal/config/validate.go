package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateIndex(); err != nil {
		return err
	}
	if err := c.validateTagger(); err != nil {
		return err
	}
	if err := c.validateOrganizer(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateIndex() error {
	switch c.Index.Backend {
	case "local":
	case "meilisearch":
		if c.Index.URL == "" {
			return errors.New("index.url must be set when index.backend is meilisearch")
		}
	default:
		return fmt.Errorf("index.backend must be local or meilisearch, got %q", c.Index.Backend)
	}
	return nil
}

func (c *Config) validateTagger() error {
	switch c.Tagger.Provider {
	case "dictionary":
	case "llm":
		if c.Ollama.TagModel == "" {
			return errors.New("ollama.tag_model must be set when tagger.provider is llm")
		}
	default:
		return fmt.Errorf("tagger.provider must be dictionary or llm, got %q", c.Tagger.Provider)
	}
	return nil
}

func (c *Config) validateOrganizer() error {
	if c.Organizer.SimilarityThreshold > 1 {
		return errors.New("organizer.similarity_threshold must be between 0 and 1")
	}
	if c.Organizer.MaxDepth > 4 {
		return errors.New("organizer.max_depth must be at most 4")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
