package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"inferd/internal/gate"
	"inferd/pkg/types"
)

// UpstreamConfig configures the OpenAI-compatible pass-through backend.
type UpstreamConfig struct {
	BaseURL      string
	APIKey       string
	DefaultModel string
	Timeout      time.Duration
}

const defaultUpstreamTimeout = 120 * time.Second

// Upstream proxies inference to a remote OpenAI-compatible API. Failures of
// the remote call are resource errors: the client may retry after backoff.
type Upstream struct {
	cfg    UpstreamConfig
	client *http.Client
}

// NewUpstream builds the pass-through backend.
func NewUpstream(cfg UpstreamConfig) *Upstream {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultUpstreamTimeout
	}
	return &Upstream{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (u *Upstream) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	if req.Model == "" {
		req.Model = u.cfg.DefaultModel
	}
	var out types.ChatCompletionResponse
	if err := u.post(ctx, "/v1/chat/completions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Upstream) Completion(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error) {
	if req.Model == "" {
		req.Model = u.cfg.DefaultModel
	}
	var out types.CompletionResponse
	if err := u.post(ctx, "/v1/completions", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Upstream) Embeddings(ctx context.Context, req types.EmbeddingsRequest) (*types.EmbeddingsResponse, error) {
	if req.Model == "" {
		req.Model = u.cfg.DefaultModel
	}
	var out types.EmbeddingsResponse
	if err := u.post(ctx, "/v1/embeddings", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Loaded reports true: a configured upstream is assumed servable; call
// failures surface per request.
func (u *Upstream) Loaded() bool { return true }

// Pressure is unavailable for a remote backend.
func (u *Upstream) Pressure() (types.ResourcePressure, bool) {
	return types.ResourcePressure{}, false
}

func (u *Upstream) post(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal upstream request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if u.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return gate.NewResourceError("Backend request failed", "backend")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little for connection reuse; the body is not trusted.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return gate.NewResourceError(fmt.Sprintf("Backend returned status %d", resp.StatusCode), "backend")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return gate.NewResourceError("Backend returned an unreadable response", "backend")
	}
	return nil
}
