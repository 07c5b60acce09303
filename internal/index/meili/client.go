package meili

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"curator/internal/config"
	"curator/internal/index"
	"curator/internal/services"
)

const snapshotPageSize = 1000

// HTTPDoer describes the HTTP client used by the Meilisearch adapter.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to a Meilisearch server over its REST API.
type Client struct {
	baseURL   string
	apiKey    string
	indexName string
	http      HTTPDoer
}

// New constructs a Meilisearch index client from configuration.
func New(cfg config.Index) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.URL, "/"),
		apiKey:    cfg.APIKey,
		indexName: cfg.IndexName,
		http:      &http.Client{Timeout: timeout},
	}
}

// NewWithHTTPClient overrides the HTTP client (used in tests).
func NewWithHTTPClient(cfg config.Index, doer HTTPDoer) *Client {
	client := New(cfg)
	if doer != nil {
		client.http = doer
	}
	return client
}

// document mirrors index.Document with the synthetic id Meilisearch requires:
// document identifiers may not contain path separators, so the path is keyed
// by its digest.
type document struct {
	ID string `json:"id"`
	index.Document
}

func documentID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:])
}

// EnsureIndex creates the index when missing. An already-exists response is
// not an error.
func (c *Client) EnsureIndex(ctx context.Context) error {
	payload := map[string]string{"uid": c.indexName, "primaryKey": "id"}
	status, body, err := c.do(ctx, http.MethodPost, "/indexes", payload)
	if err != nil {
		return err
	}
	if status >= 400 && !strings.Contains(string(body), "index_already_exists") {
		return services.Wrap(services.ErrIndexRejected, "index", "create index",
			fmt.Sprintf("http %d: %s", status, truncate(body)), nil)
	}
	return nil
}

func (c *Client) Upsert(ctx context.Context, docs []index.Document) error {
	if len(docs) == 0 {
		return nil
	}
	payload := make([]document, 0, len(docs))
	for _, doc := range docs {
		payload = append(payload, document{ID: documentID(doc.Path), Document: doc})
	}
	status, body, err := c.do(ctx, http.MethodPut, c.indexPath("/documents"), payload)
	if err != nil {
		return err
	}
	if status >= 400 {
		return services.Wrap(services.ErrIndexRejected, "index", "upsert documents",
			fmt.Sprintf("http %d: %s", status, truncate(body)), nil)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	ids := make([]string, 0, len(paths))
	for _, path := range paths {
		ids = append(ids, documentID(path))
	}
	status, body, err := c.do(ctx, http.MethodPost, c.indexPath("/documents/delete-batch"), ids)
	if err != nil {
		return err
	}
	if status >= 400 {
		return services.Wrap(services.ErrIndexRejected, "index", "delete documents",
			fmt.Sprintf("http %d: %s", status, truncate(body)), nil)
	}
	return nil
}

func (c *Client) Snapshot(ctx context.Context) ([]index.Document, error) {
	var out []index.Document
	offset := 0
	for {
		path := c.indexPath(fmt.Sprintf("/documents?limit=%d&offset=%d", snapshotPageSize, offset))
		status, body, err := c.do(ctx, http.MethodGet, path, nil)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			return nil, nil
		}
		if status >= 400 {
			return nil, services.Wrap(services.ErrIndexRejected, "index", "fetch snapshot",
				fmt.Sprintf("http %d: %s", status, truncate(body)), nil)
		}
		var page struct {
			Results []document `json:"results"`
			Total   int        `json:"total"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, services.Wrap(services.ErrIndexRejected, "index", "decode snapshot", "", err)
		}
		for _, doc := range page.Results {
			out = append(out, doc.Document)
		}
		offset += len(page.Results)
		if len(page.Results) < snapshotPageSize || offset >= page.Total {
			return out, nil
		}
	}
}

func (c *Client) Search(ctx context.Context, query string, limit int) ([]index.Hit, error) {
	if limit <= 0 {
		limit = 20
	}
	payload := map[string]any{
		"q":                    query,
		"limit":                limit,
		"showRankingScore":     true,
		"attributesToRetrieve": []string{"*"},
	}
	status, body, err := c.do(ctx, http.MethodPost, c.indexPath("/search"), payload)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, services.Wrap(services.ErrIndexRejected, "index", "search",
			fmt.Sprintf("http %d: %s", status, truncate(body)), nil)
	}
	var result struct {
		Hits []struct {
			document
			RankingScore float64 `json:"_rankingScore"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, services.Wrap(services.ErrIndexRejected, "index", "decode search response", "", err)
	}
	hits := make([]index.Hit, 0, len(result.Hits))
	for _, hit := range result.Hits {
		hits = append(hits, index.Hit{Document: hit.Document, Score: hit.RankingScore})
	}
	return hits, nil
}

func (c *Client) indexPath(suffix string) string {
	return "/indexes/" + url.PathEscape(c.indexName) + suffix
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, services.Wrap(services.ErrIndexRejected, "index", "encode request", "", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, services.Wrap(services.ErrIndexConnection, "index", "build request", "", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, services.Wrap(services.ErrIndexConnection, "index", method+" "+path, "Meilisearch unreachable", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return 0, nil, services.Wrap(services.ErrIndexConnection, "index", "read response", "", err)
	}
	return resp.StatusCode, data, nil
}

func truncate(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
