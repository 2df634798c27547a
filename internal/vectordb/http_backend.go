package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	indexerrors "github.com/codesearch/semindex/internal/errors"
)

// HTTPBackend talks to an external vector database over a small REST/JSON
// wire protocol (the shape a Milvus- or Qdrant-style service exposes):
// collections are named resources with a dimension, and Insert/Search/
// Query/Delete operate within one collection. Unlike HNSWBackend, this
// variant can fail with a real CollectionLimitExceeded signal since the
// remote service enforces its own quota.
type HTTPBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Client = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend pointed at baseURL. apiKey is sent as a
// bearer token when non-empty; pass "" for services with no auth.
func NewHTTPBackend(baseURL, apiKey string) *HTTPBackend {
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        16,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

type createCollectionRequest struct {
	Name       string `json:"name"`
	Dimensions int    `json:"dimensions"`
}

type insertRequest struct {
	Chunks []Chunk `json:"chunks"`
}

type searchRequest struct {
	Vector []float32 `json:"vector"`
	TopK   int       `json:"topK"`
}

type queryRequest struct {
	Filter Filter `json:"filter"`
	Limit  int    `json:"limit"`
}

type deleteRequest struct {
	IDs    []string `json:"ids,omitempty"`
	Filter *Filter  `json:"filter,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return indexerrors.New(indexerrors.ErrCodeNetworkTimeout, err.Error(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return indexerrors.Wrap(indexerrors.ErrCodeNetworkTimeout, err)
	}

	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.Unmarshal(respBody, &errResp)
		msg := errResp.Error
		if msg == "" {
			msg = string(respBody)
		}
		if strings.Contains(msg, indexerrors.CollectionLimitExceededMessage) {
			return &CollectionLimitExceededError{}
		}
		return indexerrors.New(indexerrors.ErrCodeNetworkUnavailable,
			fmt.Sprintf("vector db returned %d: %s", resp.StatusCode, msg), nil)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return indexerrors.Wrap(indexerrors.ErrCodeInternal, err)
		}
	}
	return nil
}

func (b *HTTPBackend) CreateCollection(ctx context.Context, name string, dimensions int) error {
	return b.do(ctx, http.MethodPost, "/collections", createCollectionRequest{Name: name, Dimensions: dimensions}, nil)
}

func (b *HTTPBackend) DropCollection(ctx context.Context, name string) error {
	return b.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
}

func (b *HTTPBackend) HasCollection(ctx context.Context, name string) (bool, error) {
	var out struct {
		Exists bool `json:"exists"`
	}
	if err := b.do(ctx, http.MethodGet, "/collections/"+name, nil, &out); err != nil {
		return false, err
	}
	return out.Exists, nil
}

func (b *HTTPBackend) ListCollections(ctx context.Context) ([]string, error) {
	var out struct {
		Names []string `json:"names"`
	}
	if err := b.do(ctx, http.MethodGet, "/collections", nil, &out); err != nil {
		return nil, err
	}
	return out.Names, nil
}

func (b *HTTPBackend) CreateIndex(ctx context.Context, name string) error {
	return b.do(ctx, http.MethodPost, "/collections/"+name+"/index", nil, nil)
}

func (b *HTTPBackend) LoadCollection(ctx context.Context, name string) error {
	return b.do(ctx, http.MethodPost, "/collections/"+name+"/load", nil, nil)
}

func (b *HTTPBackend) Insert(ctx context.Context, collection string, chunks []Chunk) error {
	return b.do(ctx, http.MethodPost, "/collections/"+collection+"/insert", insertRequest{Chunks: chunks}, nil)
}

func (b *HTTPBackend) Delete(ctx context.Context, collection string, ids []string) error {
	return b.do(ctx, http.MethodPost, "/collections/"+collection+"/delete", deleteRequest{IDs: ids}, nil)
}

func (b *HTTPBackend) DeleteByFilter(ctx context.Context, collection string, filter Filter) error {
	return b.do(ctx, http.MethodPost, "/collections/"+collection+"/delete", deleteRequest{Filter: &filter}, nil)
}

func (b *HTTPBackend) Search(ctx context.Context, collection string, vector []float32, topK int) ([]SearchResult, error) {
	var out struct {
		Results []SearchResult `json:"results"`
	}
	err := b.do(ctx, http.MethodPost, "/collections/"+collection+"/search",
		searchRequest{Vector: vector, TopK: topK}, &out)
	if err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (b *HTTPBackend) Query(ctx context.Context, collection string, filter Filter, limit int) ([]Chunk, error) {
	var out struct {
		Chunks []Chunk `json:"chunks"`
	}
	err := b.do(ctx, http.MethodPost, "/collections/"+collection+"/query",
		queryRequest{Filter: filter, Limit: limit}, &out)
	if err != nil {
		return nil, err
	}
	return out.Chunks, nil
}

func (b *HTTPBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}
