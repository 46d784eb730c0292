package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/ragdesk/internal/core"
)

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// fakeProvider answers OpenAI-style embedding requests. Each input "t<N>"
// embeds to [N, len(batch)].
type fakeProvider struct {
	calls  int32
	status int

	mu       sync.Mutex
	lastPath string
	lastAuth string
	lastKey  string
	lastAPIV string
	model    string
}

func (f *fakeProvider) last() (path, auth, key, apiVersion, model string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPath, f.lastAuth, f.lastKey, f.lastAPIV, f.model
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.lastPath = r.URL.Path
	f.lastAuth = r.Header.Get("Authorization")
	f.lastKey = r.Header.Get("api-key")
	f.lastAPIV = r.URL.Query().Get("api-version")
	f.mu.Unlock()
	if f.status != 0 {
		http.Error(w, `{"error":{"message":"rejected"}}`, f.status)
		return
	}
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.model = req.Model
	f.mu.Unlock()

	type item struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	}
	data := make([]item, len(req.Input))
	for i, in := range req.Input {
		n, _ := strconv.Atoi(strings.TrimPrefix(in, "t"))
		data[i] = item{Object: "embedding", Embedding: []float32{float32(n), float32(len(req.Input))}, Index: i}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"object": "list",
		"data":   data,
		"model":  req.Model,
		"usage":  map[string]int{"prompt_tokens": len(req.Input), "total_tokens": len(req.Input)},
	})
}

func inputs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func directConfig(baseURL string) core.EmbeddingConfig {
	return core.EmbeddingConfig{
		Provider: core.ProviderHosted,
		Model:    "text-embedding-3-small",
		APIKey:   "sk-test",
		BaseURL:  baseURL,
	}
}

func TestEmbedBatchDirect(t *testing.T) {
	fp := &fakeProvider{}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	vecs, err := New().EmbedBatch(context.Background(), inputs(3), directConfig(srv.URL+"/v1"))
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0])
	}
	path, auth, _, _, model := fp.last()
	assert.Equal(t, "/v1/embeddings", path)
	assert.Equal(t, "Bearer sk-test", auth)
	assert.Equal(t, "text-embedding-3-small", model)
	assert.EqualValues(t, 1, atomic.LoadInt32(&fp.calls))
}

func TestEmbedBatchAzureDeployment(t *testing.T) {
	fp := &fakeProvider{}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	cfg := core.EmbeddingConfig{
		Provider: core.ProviderHosted,
		Model:    "text-embedding-3-small",
		Azure: &core.AzureDeployment{
			Endpoint:   srv.URL,
			Deployment: "team-embeddings",
			APIVersion: "2024-02-01",
			APIKey:     "azure-key",
		},
	}
	vecs, err := New().EmbedBatch(context.Background(), inputs(2), cfg)
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	path, _, key, apiVersion, _ := fp.last()
	assert.Equal(t, "/openai/deployments/team-embeddings/embeddings", path)
	assert.Equal(t, "2024-02-01", apiVersion)
	assert.Equal(t, "azure-key", key)
}

func TestEmbedBatchSubBatchesPreserveOrder(t *testing.T) {
	fp := &fakeProvider{}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	c := New(WithBatchSize(2), WithParallelism(3))
	vecs, err := c.EmbedBatch(context.Background(), inputs(7), directConfig(srv.URL))
	require.NoError(t, err)
	require.Len(t, vecs, 7)
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0], "vector %d", i)
	}
	assert.EqualValues(t, 4, atomic.LoadInt32(&fp.calls))
}

func TestEmbedBatchProviderErrorFailsWholeBatch(t *testing.T) {
	fp := &fakeProvider{status: http.StatusTooManyRequests}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	vecs, err := New(WithBatchSize(2)).EmbedBatch(context.Background(), inputs(5), directConfig(srv.URL))
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
	assert.Nil(t, vecs)
}

func TestEmbedBatchMissingCredentialsMakesNoCall(t *testing.T) {
	fp := &fakeProvider{}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	cfg := directConfig(srv.URL)
	cfg.APIKey = ""
	_, err := New().EmbedBatch(context.Background(), inputs(2), cfg)
	assert.ErrorIs(t, err, core.ErrMissingCredentials)
	assert.Zero(t, atomic.LoadInt32(&fp.calls))
}

func TestEmbedBatchDimensionMismatch(t *testing.T) {
	fp := &fakeProvider{}
	srv := httptest.NewServer(fp)
	defer srv.Close()

	cfg := directConfig(srv.URL)
	cfg.Dimensions = 1536
	_, err := New().EmbedBatch(context.Background(), inputs(2), cfg)
	assert.ErrorIs(t, err, core.ErrEmbeddingFailed)
}

func TestEmbedBatchEmptyInput(t *testing.T) {
	vecs, err := New().EmbedBatch(context.Background(), nil, directConfig("http://unused"))
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
