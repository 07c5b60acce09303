package embed_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"curator/internal/config"
	"curator/internal/embed"
	"curator/internal/services"
)

type countingServer struct {
	server *httptest.Server
	mu     sync.Mutex
	calls  int
}

func newEmbedServer(t *testing.T, vector []float32, status int) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.calls++
		cs.mu.Unlock()
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vector})
	}))
	t.Cleanup(cs.server.Close)
	return cs
}

func (cs *countingServer) count() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.calls
}

func newProvider(t *testing.T, urls ...string) *embed.Ollama {
	t.Helper()
	provider, err := embed.NewOllama(config.Ollama{
		URLs:           urls,
		EmbeddingModel: "nomic-embed-text",
		EmbeddingDims:  768,
		TimeoutSeconds: 5,
	})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	return provider
}

func TestEmbedReturnsVector(t *testing.T) {
	server := newEmbedServer(t, []float32{0.1, 0.2, 0.3}, http.StatusOK)
	provider := newProvider(t, server.server.URL)

	vector, err := provider.Embed(context.Background(), "quarterly revenue report")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vector) != 3 || vector[1] != 0.2 {
		t.Errorf("vector = %v", vector)
	}
	if provider.Dimension() != 3 {
		t.Errorf("dimension not updated from response: %d", provider.Dimension())
	}
}

func TestEmbedRoundRobinAlternates(t *testing.T) {
	first := newEmbedServer(t, []float32{1}, http.StatusOK)
	second := newEmbedServer(t, []float32{2}, http.StatusOK)
	provider := newProvider(t, first.server.URL, second.server.URL)

	for i := 0; i < 4; i++ {
		if _, err := provider.Embed(context.Background(), "some text"); err != nil {
			t.Fatalf("Embed %d: %v", i, err)
		}
	}
	if first.count() != 2 || second.count() != 2 {
		t.Errorf("calls = %d/%d, want 2/2", first.count(), second.count())
	}
}

func TestEmbedFailsOverToHealthyServer(t *testing.T) {
	broken := newEmbedServer(t, nil, http.StatusInternalServerError)
	healthy := newEmbedServer(t, []float32{0.5}, http.StatusOK)
	provider := newProvider(t, broken.server.URL, healthy.server.URL)

	for i := 0; i < 2; i++ {
		vector, err := provider.Embed(context.Background(), "some text")
		if err != nil {
			t.Fatalf("Embed %d: %v", i, err)
		}
		if len(vector) != 1 {
			t.Errorf("vector = %v", vector)
		}
	}
	if healthy.count() != 2 {
		t.Errorf("healthy server got %d calls, want 2", healthy.count())
	}
}

func TestEmbedAllServersDown(t *testing.T) {
	broken := newEmbedServer(t, nil, http.StatusInternalServerError)
	provider := newProvider(t, broken.server.URL)

	_, err := provider.Embed(context.Background(), "some text")
	if !errors.Is(err, services.ErrProviderUnavailable) {
		t.Errorf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestEmbedRejectsShortContent(t *testing.T) {
	server := newEmbedServer(t, []float32{1}, http.StatusOK)
	provider := newProvider(t, server.server.URL)

	_, err := provider.Embed(context.Background(), "  a ")
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
	if server.count() != 0 {
		t.Errorf("server called %d times for invalid content", server.count())
	}
}

func TestNewOllamaRequiresURL(t *testing.T) {
	_, err := embed.NewOllama(config.Ollama{EmbeddingModel: "nomic-embed-text"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Errorf("err = %v, want ErrConfiguration", err)
	}
}
