package embed

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"
)

// Local HTTPS embedding server defaults. This targets a lightweight
// self-hosted embedding server (e.g. a local sentence-transformers process)
// that returns embeddings as a single base64-encoded little-endian float32
// buffer rather than a JSON array, to avoid the serialization overhead of
// encoding thousands of floats as JSON numbers.
const (
	DefaultLocalHTTPEndpoint = "http://localhost:8008"
	DefaultLocalHTTPTimeout  = 30 * time.Second
)

// LocalHTTPConfig configures a LocalHTTPEmbedder.
type LocalHTTPConfig struct {
	Endpoint   string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// DefaultLocalHTTPConfig returns sensible defaults for LocalHTTPConfig.
func DefaultLocalHTTPConfig() LocalHTTPConfig {
	return LocalHTTPConfig{
		Endpoint: DefaultLocalHTTPEndpoint,
		Timeout:  DefaultLocalHTTPTimeout,
	}
}

// LocalHTTPEmbedder generates embeddings against a local HTTP server whose
// /get_embeddings endpoint returns a base64-encoded buffer of n*dim
// little-endian float32 values rather than a JSON array of floats.
type LocalHTTPEmbedder struct {
	client *http.Client
	config LocalHTTPConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*LocalHTTPEmbedder)(nil)

// NewLocalHTTPEmbedder creates a LocalHTTPEmbedder, applying defaults for
// any unset fields.
func NewLocalHTTPEmbedder(cfg LocalHTTPConfig) *LocalHTTPEmbedder {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultLocalHTTPEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultLocalHTTPTimeout
	}

	return &LocalHTTPEmbedder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        8,
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}
}

type localHTTPRequest struct {
	Model string   `json:"model,omitempty"`
	Texts []string `json:"texts"`
}

type localHTTPResponse struct {
	Embeddings string `json:"embeddings"` // base64 of n*dim little-endian float32
	Dimensions int    `json:"dimensions"`
	Count      int    `json:"count"`
}

// Embed generates an embedding for a single text.
func (e *LocalHTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts via a single request,
// decoding the base64 float32 buffer the server returns.
func (e *LocalHTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = preprocessText(t)
	}

	body, err := json.Marshal(localHTTPRequest{Model: e.config.Model, Texts: inputs})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	url := e.config.Endpoint + "/get_embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request returned status %d: %s", resp.StatusCode, string(raw))
	}

	var result localHTTPResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}

	dim := result.Dimensions
	if dim == 0 {
		dim = e.config.Dimensions
	}
	if dim == 0 {
		return nil, fmt.Errorf("embedding response did not specify dimensions")
	}

	count := result.Count
	if count == 0 {
		count = len(texts)
	}

	decoded, err := base64.StdEncoding.DecodeString(result.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("decoding base64 embedding payload: %w", err)
	}
	wantBytes := count * dim * 4
	if len(decoded) != wantBytes {
		return nil, fmt.Errorf("embedding payload has %d bytes, expected %d (count=%d, dim=%d)", len(decoded), wantBytes, count, dim)
	}

	embeddings := make([][]float32, count)
	for i := 0; i < count; i++ {
		vec := make([]float32, dim)
		for j := 0; j < dim; j++ {
			off := (i*dim + j) * 4
			bits := binary.LittleEndian.Uint32(decoded[off : off+4])
			vec[j] = math.Float32frombits(bits)
		}
		embeddings[i] = vec
	}

	if count != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), count)
	}

	e.mu.Lock()
	if e.config.Dimensions == 0 {
		e.config.Dimensions = dim
	}
	e.mu.Unlock()

	return embeddings, nil
}

// Dimensions returns the known embedding dimension, 0 if not yet observed.
func (e *LocalHTTPEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config.Dimensions
}

// ModelName returns the configured model identifier.
func (e *LocalHTTPEmbedder) ModelName() string { return e.config.Model }

// Available probes the server with a single-word embedding request.
func (e *LocalHTTPEmbedder) Available(ctx context.Context) bool {
	_, err := e.Embed(ctx, "ping")
	return err == nil
}

// Close releases pooled connections.
func (e *LocalHTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if t, ok := e.client.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// SetBatchIndex is a no-op; the local server has no thermal timeout model.
func (e *LocalHTTPEmbedder) SetBatchIndex(idx int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *LocalHTTPEmbedder) SetFinalBatch(isFinal bool) {}
