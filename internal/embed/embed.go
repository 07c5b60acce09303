package embed

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
	"sync/atomic"
	"time"

	"curator/internal/config"
	"curator/internal/services"
)

const (
	defaultEmbedTimeout = 60 * time.Second
	minContentLen       = 3
)

// Provider computes an embedding vector for a text. Callers must tolerate an
// error by continuing without the vector.
type Provider interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Ollama distributes embedding requests across several Ollama servers in
// round-robin order and fails over to the remaining servers when the chosen
// one is down.
type Ollama struct {
	urls       []string
	model      string
	dimension  atomic.Int64
	next       atomic.Uint64
	httpClient *http.Client
}

// NewOllama builds the provider from the ollama config section.
func NewOllama(cfg config.Ollama) (*Ollama, error) {
	urls := make([]string, 0, len(cfg.URLs))
	for _, raw := range cfg.URLs {
		if trimmed := strings.TrimRight(strings.TrimSpace(raw), "/"); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	if len(urls) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "embed", "new provider", "no ollama urls configured", nil)
	}
	timeout := defaultEmbedTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	provider := &Ollama{
		urls:       urls,
		model:      cfg.EmbeddingModel,
		httpClient: &http.Client{Timeout: timeout},
	}
	provider.dimension.Store(int64(cfg.EmbeddingDims))
	return provider, nil
}

// SetHTTPClient overrides the HTTP client (used in tests).
func (o *Ollama) SetHTTPClient(client *http.Client) {
	if client != nil {
		o.httpClient = client
	}
}

func (o *Ollama) Name() string { return "ollama" }

// Dimension reports the vector size, updated from the first live response
// when the configured value disagrees with the model.
func (o *Ollama) Dimension() int {
	return int(o.dimension.Load())
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minContentLen {
		return nil, services.Wrap(services.ErrValidation, "embed", "embed text",
			fmt.Sprintf("content too short (%d chars)", len(trimmed)), nil)
	}

	start := int(o.next.Add(1)-1) % len(o.urls)
	var lastErr error
	for offset := 0; offset < len(o.urls); offset++ {
		url := o.urls[(start+offset)%len(o.urls)]
		vector, err := o.embedAt(ctx, url, trimmed)
		if err == nil {
			o.observeDimension(len(vector))
			return vector, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Error     string    `json:"error"`
}

func (o *Ollama) embedAt(ctx context.Context, url, text string) ([]float32, error) {
	encoded, err := json.Marshal(embeddingRequest{Model: o.model, Prompt: text})
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "encode request", url, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url+"/api/embeddings", bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "build request", url, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, services.Wrap(services.ErrProviderTimeout, "embed", "embed text", url, err)
		}
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "embed text", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "read response", url, err)
	}
	if resp.StatusCode >= 400 {
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "embed text",
			fmt.Sprintf("http %d from %s", resp.StatusCode, url), nil)
	}

	var decoded embeddingResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "decode response", url, err)
	}
	if decoded.Error != "" {
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "embed text", decoded.Error, nil)
	}
	if len(decoded.Embedding) == 0 {
		return nil, services.Wrap(services.ErrProviderUnavailable, "embed", "embed text",
			"empty embedding from "+url, nil)
	}
	return decoded.Embedding, nil
}

func (o *Ollama) observeDimension(actual int) {
	if actual > 0 && int(o.dimension.Load()) != actual {
		o.dimension.Store(int64(actual))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
