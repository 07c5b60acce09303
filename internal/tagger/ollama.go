package tagger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"curator/internal/services"
)

const (
	defaultOllamaTimeout   = 30 * time.Second
	defaultTagAttempts     = 3
	defaultTagRetryBase    = 500 * time.Millisecond
	defaultTagRetryMax     = 5 * time.Second
	defaultContentPreviewN = 1000

	tagSystemPrompt = `You label files for an automatic organizer. Respond with JSON only, in the form {"tags":[{"name":"...","confidence":0.0}]}. Tags are lowercase single words describing the file's topic, purpose, or category. Confidence is between 0 and 1.`
)

// OllamaConfig captures the runtime settings for the Ollama tag provider.
type OllamaConfig struct {
	BaseURL        string
	Model          string
	MaxTags        int
	TimeoutSeconds int
}

// Ollama asks a local Ollama model for JSON tags.
type Ollama struct {
	cfg        OllamaConfig
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// OllamaOption customizes the provider.
type OllamaOption func(*Ollama)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) OllamaOption {
	return func(o *Ollama) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default retry count.
func WithRetryMaxAttempts(attempts int) OllamaOption {
	return func(o *Ollama) {
		if attempts > 0 {
			o.retryMaxAttempts = attempts
		}
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) OllamaOption {
	return func(o *Ollama) {
		o.retryBaseDelay = baseDelay
		o.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) OllamaOption {
	return func(o *Ollama) {
		o.sleeper = sleeper
	}
}

// NewOllama constructs the LLM tag provider.
func NewOllama(cfg OllamaConfig, opts ...OllamaOption) *Ollama {
	timeout := defaultOllamaTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	provider := &Ollama{
		cfg: OllamaConfig{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			Model:          strings.TrimSpace(cfg.Model),
			MaxTags:        cfg.MaxTags,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultTagAttempts,
		retryBaseDelay:   defaultTagRetryBase,
		retryMaxDelay:    defaultTagRetryMax,
	}
	for _, opt := range opts {
		opt(provider)
	}
	return provider
}

func (o *Ollama) Name() string { return "llm" }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Format   string          `json:"format"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error"`
}

func (o *Ollama) Tag(ctx context.Context, path, content string) ([]Tag, error) {
	if o.cfg.Model == "" {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", "model not configured", nil)
	}

	preview := content
	if len(preview) > defaultContentPreviewN {
		preview = preview[:defaultContentPreviewN]
	}
	userPrompt := fmt.Sprintf("File: %s\n\nContent preview:\n%s", path, preview)

	var lastErr error
	for attempt := 1; attempt <= o.retryMaxAttempts; attempt++ {
		tags, err := o.requestOnce(ctx, userPrompt)
		if err == nil {
			return SortAndTrim(tags, o.cfg.MaxTags), nil
		}
		lastErr = err
		if !retryable(err) || attempt == o.retryMaxAttempts {
			break
		}
		if err := o.sleep(ctx, o.backoffDelay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (o *Ollama) requestOnce(ctx context.Context, userPrompt string) ([]Tag, error) {
	payload := ollamaChatRequest{
		Model: o.cfg.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: tagSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Format: "json",
		Stream: false,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.cfg.BaseURL+"/api/chat", bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, services.Wrap(services.ErrProviderTimeout, "tagger", "ollama tag", o.cfg.BaseURL, err)
		}
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", o.cfg.BaseURL, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", "read response", err)
	}
	if resp.StatusCode >= 400 {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag",
			fmt.Sprintf("http %d from %s", resp.StatusCode, o.cfg.BaseURL), nil)
	}

	var chat ollamaChatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", "decode response", err)
	}
	if chat.Error != "" {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", chat.Error, nil)
	}
	return parseTagPayload(chat.Message.Content)
}

// parseTagPayload accepts the structured form and, as a fallback, a plain
// {"tags":["a","b"]} list some models emit despite the prompt.
func parseTagPayload(content string) ([]Tag, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag", "empty completion", nil)
	}

	var structured struct {
		Tags []struct {
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
		} `json:"tags"`
	}
	if err := json.Unmarshal([]byte(trimmed), &structured); err == nil && len(structured.Tags) > 0 {
		tags := make([]Tag, 0, len(structured.Tags))
		for _, tag := range structured.Tags {
			tags = append(tags, Tag{Name: tag.Name, Weight: tag.Confidence})
		}
		return normalizeTags(tags), nil
	}

	var plain struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(trimmed), &plain); err == nil && len(plain.Tags) > 0 {
		tags := make([]Tag, 0, len(plain.Tags))
		for _, name := range plain.Tags {
			tags = append(tags, Tag{Name: name, Weight: 1})
		}
		return normalizeTags(tags), nil
	}

	return nil, services.Wrap(services.ErrProviderUnavailable, "tagger", "ollama tag",
		"unparseable completion: "+snippet(trimmed), nil)
}

func normalizeTags(tags []Tag) []Tag {
	seen := make(map[string]struct{}, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, tag := range tags {
		name := strings.ToLower(strings.TrimSpace(tag.Name))
		if name == "" {
			continue
		}
		if mapped, ok := keywordTags[name]; ok {
			name = mapped
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		weight := tag.Weight
		if weight <= 0 || weight > 1 {
			weight = 1
		}
		out = append(out, Tag{Name: name, Weight: weight})
	}
	return out
}

func retryable(err error) bool {
	return errors.Is(err, services.ErrProviderTimeout) || errors.Is(err, services.ErrProviderUnavailable)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (o *Ollama) backoffDelay(attempt int) time.Duration {
	delay := o.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > o.retryMaxDelay/2 {
			return o.retryMaxDelay
		}
		delay *= 2
	}
	if delay > o.retryMaxDelay {
		return o.retryMaxDelay
	}
	return delay
}

func (o *Ollama) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if o.sleeper != nil {
		o.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func snippet(s string) string {
	const limit = 120
	clean := strings.Join(strings.Fields(s), " ")
	if len(clean) > limit {
		return clean[:limit] + "..."
	}
	return clean
}
