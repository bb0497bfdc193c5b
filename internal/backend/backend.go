// Package backend provides the inference collaborators served behind the
// admission pipeline. A Backend is constructed once at process start and
// injected into the HTTP layer; it is never swapped at runtime.
package backend

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"inferd/pkg/types"
)

// Backend performs inference. Calls may be slow and may fail; the caller
// treats them as opaque. Implementations return gate typed failures where a
// condition is anticipated (e.g. a ResourceError when no model is loaded) and
// plain errors otherwise.
type Backend interface {
	ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error)
	Completion(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error)
	Embeddings(ctx context.Context, req types.EmbeddingsRequest) (*types.EmbeddingsResponse, error)

	// Loaded reports whether the backend is ready to serve inference.
	Loaded() bool
	// Pressure reports host resource pressure when the backend can observe
	// it (accelerator memory and the like). ok is false otherwise.
	Pressure() (p types.ResourcePressure, ok bool)
}

func newID(prefix string) string { return prefix + "-" + uuid.NewString() }

func nowUnix() int64 { return time.Now().Unix() }

// approxTokens estimates token usage by whitespace splitting. Good enough
// for accounting fields when no tokenizer is in the loop.
func approxTokens(s string) int { return len(strings.Fields(s)) }
