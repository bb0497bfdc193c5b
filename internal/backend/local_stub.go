//go:build !llama

package backend

// CGO-free stub for the in-process llama.cpp backend, compiled when the
// 'llama' build tag is NOT set. It refuses inference instead of mocking it,
// keeping default builds and CI free of native dependencies.

import (
	"context"

	"inferd/internal/gate"
	"inferd/pkg/types"
)

// llamaBuilt indicates whether this binary carries real llama support.
const llamaBuilt = false

type local struct{}

// NewLocal constructs the in-process backend. Without the 'llama' build tag
// the returned backend reports not-loaded and fails every call with a
// resource error.
func NewLocal(cfg LocalConfig) (Backend, error) {
	return &local{}, nil
}

func (l *local) ChatCompletion(context.Context, types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	return nil, gate.NewResourceError("Model not loaded", "model")
}

func (l *local) Completion(context.Context, types.CompletionRequest) (*types.CompletionResponse, error) {
	return nil, gate.NewResourceError("Model not loaded", "model")
}

func (l *local) Embeddings(context.Context, types.EmbeddingsRequest) (*types.EmbeddingsResponse, error) {
	return nil, gate.NewResourceError("Model not loaded", "model")
}

func (l *local) Loaded() bool { return false }

func (l *local) Pressure() (types.ResourcePressure, bool) {
	return types.ResourcePressure{}, false
}
