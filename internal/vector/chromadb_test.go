// File path: internal/vector/chromadb_test.go
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeChroma struct {
	mu                sync.Mutex
	collectionName    string
	collectionID      string
	count             int
	heartbeatFailures int
	heartbeatCalls    int
	findCollectionErr error
	upsertCalls       int
	queryCalls        int
	lastUpsertPayload map[string]interface{}

	heartbeatCalled chan struct{}
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{
		collectionName:  "laptop_specs",
		collectionID:    "col-123",
		count:           3,
		heartbeatCalled: make(chan struct{}, 10),
	}
}

func (f *fakeChroma) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	prefix := "/api/v1/collections/"
	switch {
	case r.URL.Path == "/api/v1/heartbeat":
		f.handleHeartbeat(w)
	case r.URL.Path == "/api/v1/collections":
		f.handleCollections(w, r)
	case strings.HasPrefix(r.URL.Path, prefix) && strings.HasSuffix(r.URL.Path, "/upsert"):
		f.handleUpsert(w, r)
	case strings.HasPrefix(r.URL.Path, prefix) && strings.HasSuffix(r.URL.Path, "/query"):
		f.handleQuery(w)
	case strings.HasPrefix(r.URL.Path, prefix) && strings.HasSuffix(r.URL.Path, "/count"):
		f.mu.Lock()
		count := f.count
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(count)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeChroma) handleHeartbeat(w http.ResponseWriter) {
	f.mu.Lock()
	f.heartbeatCalls++
	shouldFail := f.heartbeatFailures > 0
	if shouldFail {
		f.heartbeatFailures--
	}
	f.mu.Unlock()
	select {
	case f.heartbeatCalled <- struct{}{}:
	default:
	}
	if shouldFail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("heartbeat failure"))
		return
	}
	_, _ = w.Write([]byte(`{"nanosecond heartbeat": 1}`))
}

func (f *fakeChroma) handleCollections(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		if f.findCollectionErr != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(f.findCollectionErr.Error()))
			return
		}
		name := r.URL.Query().Get("name")
		resp := map[string]interface{}{"collections": []map[string]string{}}
		if f.collectionID != "" && (name == "" || strings.EqualFold(name, f.collectionName)) {
			resp["collections"] = []map[string]string{{"id": f.collectionID, "name": f.collectionName}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case http.MethodPost:
		if f.collectionID == "" {
			f.collectionID = "generated"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": f.collectionID})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeChroma) handleUpsert(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.upsertCalls++
	f.lastUpsertPayload = payload
	if ids, ok := payload["ids"].([]interface{}); ok {
		f.count = len(ids)
	}
	f.mu.Unlock()
	_, _ = w.Write([]byte("true"))
}

func (f *fakeChroma) handleQuery(w http.ResponseWriter) {
	f.mu.Lock()
	f.queryCalls++
	f.mu.Unlock()
	resp := map[string]interface{}{
		"ids":       [][]string{{"slot-2", "slot-0"}},
		"distances": [][]float64{{0.25, 0.75}},
		"metadatas": [][]map[string]interface{}{{{"slot": 2, "sku": "B"}, {"sku": "A"}}},
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeChroma) heartbeatCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatCalls
}

func (f *fakeChroma) snapshot() (queries, upserts int, last map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls, f.upsertCalls, f.lastUpsertPayload
}

func testConfig(t *testing.T, server *httptest.Server) Config {
	t.Helper()
	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return Config{
		Host:             parsed.Hostname(),
		Port:             parsed.Port(),
		Scheme:           parsed.Scheme,
		HeartbeatRetries: 3,
		HeartbeatBackoff: 5 * time.Millisecond,
	}
}

func TestNewChromaRetriesHeartbeat(t *testing.T) {
	fake := newFakeChroma()
	fake.heartbeatFailures = 1
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	index, err := NewChroma(context.Background(), testConfig(t, server))
	if err != nil {
		t.Fatalf("NewChroma returned error: %v", err)
	}
	t.Cleanup(func() { index.Close() })
	if fake.heartbeatCount() < 2 {
		t.Fatalf("expected at least two heartbeat attempts, got %d", fake.heartbeatCount())
	}
	if index.Len() != 3 {
		t.Fatalf("expected count 3, got %d", index.Len())
	}
	if index.Collection() != "laptop_specs" {
		t.Fatalf("unexpected collection %q", index.Collection())
	}
}

func TestNewChromaGivesUpAfterRetries(t *testing.T) {
	fake := newFakeChroma()
	fake.heartbeatFailures = 100
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := testConfig(t, server)
	cfg.HeartbeatRetries = 2
	if _, err := NewChroma(context.Background(), cfg); err == nil {
		t.Fatal("expected heartbeat failure")
	}
	if fake.heartbeatCount() != 3 {
		t.Fatalf("expected 3 heartbeat attempts, got %d", fake.heartbeatCount())
	}
}

func TestNewChromaContextCanceled(t *testing.T) {
	fake := newFakeChroma()
	fake.heartbeatFailures = 100
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := testConfig(t, server)
	cfg.HeartbeatRetries = 50
	cfg.HeartbeatBackoff = 200 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := NewChroma(ctx, cfg)
		done <- err
	}()
	select {
	case <-fake.heartbeatCalled:
	case <-time.After(2 * time.Second):
		t.Fatal("expected heartbeat to be called")
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("NewChroma did not return after context cancellation")
	}
}

func TestNewChromaCollectionLookupFailure(t *testing.T) {
	fake := newFakeChroma()
	fake.findCollectionErr = errors.New("discovery failed")
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	_, err := NewChroma(context.Background(), testConfig(t, server))
	if err == nil || !strings.Contains(err.Error(), "discovery failed") {
		t.Fatalf("expected discovery error, got %v", err)
	}
}

func TestChromaSearchMapsSlots(t *testing.T) {
	fake := newFakeChroma()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	index, err := NewChroma(context.Background(), testConfig(t, server))
	if err != nil {
		t.Fatalf("NewChroma: %v", err)
	}
	hits, err := index.Search(context.Background(), []float32{0.1, 0.2}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %+v", hits)
	}
	if hits[0].Slot != 2 || hits[0].Distance != 0.25 {
		t.Fatalf("unexpected first hit: %+v", hits[0])
	}
	if hits[1].Slot != 0 {
		t.Fatalf("expected slot parsed from id, got %+v", hits[1])
	}

	none, err := index.Search(context.Background(), []float32{0.1, 0.2}, 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no hits for k=0, got %+v err=%v", none, err)
	}
	if queries, _, _ := fake.snapshot(); queries != 1 {
		t.Fatalf("expected a single query call, got %d", queries)
	}
}

func TestChromaUpsertSlotsBatches(t *testing.T) {
	fake := newFakeChroma()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	cfg := testConfig(t, server)
	cfg.UpsertBatchSize = 2
	index, err := NewChroma(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewChroma: %v", err)
	}
	records := []Record{{SKU: "A", Text: "a"}, {SKU: "B", Text: "b"}, {SKU: "C", Text: "c"}}
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 1}}
	if err := index.UpsertSlots(context.Background(), records, vectors); err != nil {
		t.Fatalf("UpsertSlots: %v", err)
	}
	_, upserts, last := fake.snapshot()
	if upserts != 2 {
		t.Fatalf("expected 2 upsert batches, got %d", upserts)
	}
	ids, _ := last["ids"].([]interface{})
	if len(ids) != 1 || ids[0] != "slot-2" {
		t.Fatalf("unexpected last batch ids: %v", ids)
	}
	if err := index.UpsertSlots(context.Background(), records, vectors[:1]); err == nil {
		t.Fatal("expected length mismatch error")
	}
}
