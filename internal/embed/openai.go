package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// OpenAI-compatible embedding API defaults. The same wire shape (POST
// {base}/embeddings with an "input"/"model" body, "data[].embedding"
// response) is served by OpenAI itself, LiteLLM proxies, and most
// self-hosted OpenAI-compatible gateways.
const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultOpenAIModel      = "text-embedding-3-small"
	DefaultOpenAIDimensions = 1536
	DefaultOpenAITimeout    = 30 * time.Second
)

// OpenAIConfig configures an OpenAIEmbedder. Setting AzureDeployment turns
// the client into an Azure OpenAI client: requests go to
// {BaseURL}/openai/deployments/{AzureDeployment}/embeddings and carry an
// api-key header instead of a bearer Authorization header.
type OpenAIConfig struct {
	BaseURL         string
	APIKey          string
	Model           string
	Dimensions      int
	Timeout         time.Duration
	AzureDeployment string
	AzureAPIVersion string
}

// DefaultOpenAIConfig returns the default OpenAI configuration.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:    DefaultOpenAIBaseURL,
		Model:      DefaultOpenAIModel,
		Dimensions: DefaultOpenAIDimensions,
		Timeout:    DefaultOpenAITimeout,
	}
}

// OpenAIEmbedder generates embeddings via an OpenAI-compatible HTTPS API,
// including Azure OpenAI deployments when AzureDeployment is set.
type OpenAIEmbedder struct {
	client *http.Client
	config OpenAIConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAIEmbedder, applying defaults for any
// unset fields.
func NewOpenAIEmbedder(cfg OpenAIConfig) *OpenAIEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = DefaultOpenAIDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultOpenAITimeout
	}
	if cfg.AzureAPIVersion == "" {
		cfg.AzureAPIVersion = "2024-06-01"
	}

	return &OpenAIEmbedder{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		config: cfg,
	}
}

type openAIEmbedRequest struct {
	Model          string   `json:"model,omitempty"`
	Input          []string `json:"input"`
	EncodingFormat string   `json:"encoding_format"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in a single request.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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

	reqBody := openAIEmbedRequest{
		Model:          e.config.Model,
		Input:          inputs,
		EncodingFormat: "float",
	}
	if e.config.AzureDeployment != "" {
		// Azure identifies the model via the deployment name in the URL, not
		// the request body.
		reqBody.Model = ""
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.config.AzureDeployment != "" {
		req.Header.Set("api-key", e.config.APIKey)
	} else if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

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

	var result openAIEmbedResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("embedding provider error: %s", result.Error.Message)
	}
	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
		}
		embeddings[item.Index] = item.Embedding
	}
	return embeddings, nil
}

// url builds the embeddings endpoint for the configured mode.
func (e *OpenAIEmbedder) url() string {
	base := strings.TrimSuffix(e.config.BaseURL, "/")
	if e.config.AzureDeployment != "" {
		return fmt.Sprintf("%s/openai/deployments/%s/embeddings?api-version=%s", base, e.config.AzureDeployment, e.config.AzureAPIVersion)
	}
	return base + "/embeddings"
}

// Dimensions returns the configured embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int { return e.config.Dimensions }

// ModelName returns the model identifier, or the Azure deployment name.
func (e *OpenAIEmbedder) ModelName() string {
	if e.config.AzureDeployment != "" {
		return e.config.AzureDeployment
	}
	return e.config.Model
}

// Available probes the embeddings endpoint with a single-word request.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	_, err := e.Embed(ctx, "ping")
	return err == nil
}

// Close releases pooled connections.
func (e *OpenAIEmbedder) Close() error {
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

// SetBatchIndex is a no-op; OpenAI-compatible requests don't use thermal
// timeout progression.
func (e *OpenAIEmbedder) SetBatchIndex(idx int) {}

// SetFinalBatch is a no-op for the same reason.
func (e *OpenAIEmbedder) SetFinalBatch(isFinal bool) {}
