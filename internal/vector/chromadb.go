// File path: internal/vector/chromadb.go
package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/sethvargo/go-retry"

	"github.com/nicodishanthj/laptop-insights/internal/common"
)

// ChromaIndex serves slot searches from a ChromaDB collection whose entries
// carry a numeric "slot" metadata field matching the metadata file.
type ChromaIndex struct {
	httpClient *http.Client
	transport  *http.Transport

	baseURL      string
	collection   string
	collectionID string
	apiKey       string
	count        int

	cfg Config

	mu sync.RWMutex
}

func NewChromaFromEnv(ctx context.Context) (*ChromaIndex, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewChroma(ctx, cfg)
}

// NewChroma connects to ChromaDB, resolving (or creating) the collection.
// Unlike a lazily connecting client it fails when the server is unreachable
// after the configured heartbeat retries, so the caller can keep the process
// NotReady.
func NewChroma(ctx context.Context, cfg Config) (*ChromaIndex, error) {
	cfg.applyDefaults()
	baseURL := fmt.Sprintf("%s://%s:%s/api/v1", cfg.Scheme, cfg.Host, cfg.Port)
	logger := common.Logger()
	logger.Info(
		"vector: initializing chromadb index",
		"host", cfg.Host,
		"port", cfg.Port,
		"collection", cfg.Collection,
		"timeout", cfg.Timeout,
	)

	transport := &http.Transport{
		MaxIdleConns:        cfg.HTTPMaxIdleConns,
		MaxIdleConnsPerHost: cfg.HTTPMaxIdlePerHost,
		MaxConnsPerHost:     cfg.HTTPMaxConnsPerHost,
		IdleConnTimeout:     cfg.HTTPIdleConnTimeout,
	}
	c := &ChromaIndex{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		transport:  transport,
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: cfg.Collection,
		apiKey:     cfg.APIKey,
		cfg:        cfg,
	}
	if err := c.connect(ctx); err != nil {
		c.Close()
		logger.Warn("vector: chromadb initialization failed", "collection", cfg.Collection, "error", err)
		return nil, err
	}
	logger.Info("vector: chromadb connection established", "count", c.Len())
	return c, nil
}

func (c *ChromaIndex) connect(ctx context.Context) error {
	backoff := retry.WithMaxRetries(uint64(c.cfg.HeartbeatRetries), retry.NewExponential(c.cfg.HeartbeatBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := c.heartbeat(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("chromadb heartbeat: %w", err)
	}
	if err := c.ensureCollectionID(ctx); err != nil {
		return err
	}
	return c.refreshCount(ctx)
}

func (c *ChromaIndex) Collection() string {
	if c == nil {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.collection
}

// Len returns the entry count observed at connect time or after the last
// upsert.
func (c *ChromaIndex) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// UpsertSlots writes passages and their vectors so slot i of records is
// stored under id "slot-i".
func (c *ChromaIndex) UpsertSlots(ctx context.Context, records []Record, vectors [][]float32) error {
	if c == nil {
		return ErrIndexUnavailable
	}
	if len(records) != len(vectors) {
		return fmt.Errorf("chromadb upsert: %d records but %d vectors", len(records), len(vectors))
	}
	if len(records) == 0 {
		return nil
	}
	batch := c.cfg.UpsertBatchSize
	for start := 0; start < len(records); start += batch {
		end := start + batch
		if end > len(records) {
			end = len(records)
		}
		if err := c.upsertBatch(ctx, start, records[start:end], vectors[start:end]); err != nil {
			return err
		}
	}
	return c.refreshCount(ctx)
}

func (c *ChromaIndex) upsertBatch(ctx context.Context, offset int, records []Record, vectors [][]float32) error {
	ids := make([]string, 0, len(records))
	documents := make([]string, 0, len(records))
	metadatas := make([]map[string]interface{}, 0, len(records))
	for i, record := range records {
		slot := offset + i
		ids = append(ids, slotID(slot))
		documents = append(documents, record.Text)
		metadatas = append(metadatas, map[string]interface{}{
			"slot":    slot,
			"sku":     record.SKU,
			"section": record.SectionTitle,
		})
	}
	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"metadatas":  metadatas,
		"embeddings": vectors,
	}
	endpoint := fmt.Sprintf("%s/collections/%s/upsert", c.baseURL, url.PathEscape(c.collectionID))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, nil); err != nil {
		if errors.Is(err, errNotFound) {
			fallback := fmt.Sprintf("%s/collections/%s/add", c.baseURL, url.PathEscape(c.collectionID))
			return c.doRequest(ctx, http.MethodPost, fallback, payload, nil)
		}
		return err
	}
	return nil
}

// Search queries the collection and maps each result back to its slot.
// Results keep the server's distance order.
func (c *ChromaIndex) Search(ctx context.Context, vector []float32, k int) ([]Hit, error) {
	if c == nil {
		return nil, ErrIndexUnavailable
	}
	if k <= 0 {
		return nil, nil
	}
	body := map[string]interface{}{
		"query_embeddings": [][]float32{vector},
		"n_results":        k,
		"include":          []string{"metadatas", "distances"},
	}
	endpoint := fmt.Sprintf("%s/collections/%s/query", c.baseURL, url.PathEscape(c.collectionID))
	var resp struct {
		IDs       [][]string                 `json:"ids"`
		Distances [][]float64                `json:"distances"`
		Metadatas [][]map[string]interface{} `json:"metadatas"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, body, &resp); err != nil {
		return nil, err
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}
	hits := make([]Hit, 0, len(resp.IDs[0]))
	for idx, id := range resp.IDs[0] {
		var meta map[string]interface{}
		if len(resp.Metadatas) > 0 && idx < len(resp.Metadatas[0]) {
			meta = resp.Metadatas[0][idx]
		}
		slot, err := slotFromResult(id, meta)
		if err != nil {
			return nil, err
		}
		hit := Hit{Slot: slot}
		if len(resp.Distances) > 0 && idx < len(resp.Distances[0]) {
			hit.Distance = float32(resp.Distances[0][idx])
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

var _ Index = (*ChromaIndex)(nil)

func slotID(slot int) string {
	return "slot-" + strconv.Itoa(slot)
}

func slotFromResult(id string, meta map[string]interface{}) (int, error) {
	if raw, ok := meta["slot"]; ok {
		if value, ok := raw.(float64); ok {
			return int(value), nil
		}
	}
	if trimmed, ok := strings.CutPrefix(id, "slot-"); ok {
		if slot, err := strconv.Atoi(trimmed); err == nil {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("chromadb result %q carries no slot", id)
}

func (c *ChromaIndex) refreshCount(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/collections/%s/count", c.baseURL, url.PathEscape(c.collectionID))
	var count int
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &count); err != nil {
		return fmt.Errorf("chromadb count: %w", err)
	}
	c.mu.Lock()
	c.count = count
	c.mu.Unlock()
	return nil
}

func (c *ChromaIndex) ensureCollectionID(ctx context.Context) error {
	c.mu.RLock()
	if c.collectionID != "" {
		c.mu.RUnlock()
		return nil
	}
	name := c.collection
	c.mu.RUnlock()
	id, err := c.findCollection(ctx, name)
	if err != nil {
		return err
	}
	if id == "" {
		id, err = c.createCollection(ctx, name)
		if err != nil {
			return err
		}
	}
	c.mu.Lock()
	c.collectionID = id
	c.mu.Unlock()
	return nil
}

func (c *ChromaIndex) findCollection(ctx context.Context, name string) (string, error) {
	endpoint := fmt.Sprintf("%s/collections?name=%s", c.baseURL, url.QueryEscape(name))
	var resp struct {
		Collections []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"collections"`
	}
	if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		if errors.Is(err, errNotFound) {
			return "", nil
		}
		// Older servers ignore the name filter.
		endpoint = fmt.Sprintf("%s/collections", c.baseURL)
		if err := c.doRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return "", err
		}
	}
	for _, col := range resp.Collections {
		if strings.EqualFold(col.Name, name) {
			return col.ID, nil
		}
	}
	return "", nil
}

func (c *ChromaIndex) createCollection(ctx context.Context, name string) (string, error) {
	payload := map[string]interface{}{
		"name":     name,
		"metadata": map[string]interface{}{"hnsw:space": "l2"},
	}
	endpoint := fmt.Sprintf("%s/collections", c.baseURL)
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		if errors.Is(err, errConflict) {
			return c.findCollection(ctx, name)
		}
		return "", err
	}
	return resp.ID, nil
}

var (
	errNotFound = errors.New("resource not found")
	errConflict = errors.New("resource conflict")
)

func (c *ChromaIndex) heartbeat(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil, nil)
}

func (c *ChromaIndex) doRequest(ctx context.Context, method, endpoint string, body interface{}, out interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode == http.StatusConflict:
		return errConflict
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("chromadb %s %s failed (%d): %s", method, endpoint, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Close releases pooled resources associated with the client.
func (c *ChromaIndex) Close() error {
	if c == nil {
		return nil
	}
	if c.transport != nil {
		c.transport.CloseIdleConnections()
	}
	return nil
}
