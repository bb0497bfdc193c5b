//go:build llama

package backend

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"

	"inferd/internal/gate"
	"inferd/pkg/types"
)

// llamaBuilt indicates whether this binary carries real llama support.
const llamaBuilt = true

type local struct {
	model   *llama.LLama
	cfg     LocalConfig
	modelID string
}

// NewLocal loads the model into process memory via go-llama.cpp. Expensive;
// called once at startup.
func NewLocal(cfg LocalConfig) (Backend, error) {
	if strings.TrimSpace(cfg.ModelPath) == "" {
		return nil, errors.New("model path is empty")
	}
	opts := []llama.ModelOption{llama.EnableEmbeddings}
	if cfg.CtxSize > 0 {
		opts = append(opts, llama.SetContext(cfg.CtxSize))
	}
	m, err := llama.New(cfg.ModelPath, opts...)
	if err != nil {
		return nil, err
	}
	modelID := cfg.DefaultModel
	if modelID == "" {
		modelID = cfg.ModelPath
	}
	return &local{model: m, cfg: cfg, modelID: modelID}, nil
}

func (l *local) ChatCompletion(ctx context.Context, req types.ChatCompletionRequest) (*types.ChatCompletionResponse, error) {
	prompt := buildChatPrompt(req.Messages)
	text, err := l.predict(ctx, prompt, req.MaxTokens, req.Temperature, req.TopP, req.Stop)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = l.modelID
	}
	promptTokens := approxTokens(prompt)
	completionTokens := approxTokens(text)
	return &types.ChatCompletionResponse{
		ID:                newID("chatcmpl"),
		Object:            "chat.completion",
		Created:           nowUnix(),
		Model:             model,
		SystemFingerprint: "inferd-local",
		Choices: []types.ChatChoice{{
			Index:        0,
			Message:      types.ChatMessage{Role: "assistant", Content: strings.TrimSpace(text)},
			FinishReason: "stop",
		}},
		Usage: types.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func (l *local) Completion(ctx context.Context, req types.CompletionRequest) (*types.CompletionResponse, error) {
	text, err := l.predict(ctx, req.Prompt, req.MaxTokens, req.Temperature, req.TopP, req.Stop)
	if err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = l.modelID
	}
	promptTokens := approxTokens(req.Prompt)
	completionTokens := approxTokens(text)
	return &types.CompletionResponse{
		ID:      newID("cmpl"),
		Object:  "text_completion",
		Created: nowUnix(),
		Model:   model,
		Choices: []types.CompletionChoice{{
			Text:         strings.TrimSpace(text),
			Index:        0,
			FinishReason: "stop",
		}},
		Usage: types.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}, nil
}

func (l *local) Embeddings(ctx context.Context, req types.EmbeddingsRequest) (*types.EmbeddingsResponse, error) {
	model := req.Model
	if model == "" {
		model = l.modelID
	}
	data := make([]types.Embedding, 0, len(req.Input))
	tokens := 0
	for i, text := range req.Input {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := l.model.Embeddings(text)
		if err != nil {
			return nil, gate.NewResourceError("Embedding computation failed", "model")
		}
		out := make([]float64, len(vec))
		for j, v := range vec {
			out[j] = float64(v)
		}
		data = append(data, types.Embedding{Object: "embedding", Embedding: out, Index: i})
		tokens += approxTokens(text)
	}
	return &types.EmbeddingsResponse{
		Object: "list",
		Data:   data,
		Model:  model,
		Usage:  types.Usage{PromptTokens: tokens, TotalTokens: tokens},
	}, nil
}

func (l *local) Loaded() bool { return l.model != nil }

// Pressure: go-llama.cpp does not expose accelerator memory accounting.
func (l *local) Pressure() (types.ResourcePressure, bool) {
	return types.ResourcePressure{}, false
}

func (l *local) predict(ctx context.Context, prompt string, maxTokens int, temperature, topP float64, stop []string) (string, error) {
	if l.model == nil {
		return "", gate.NewResourceError("Model not loaded", "model")
	}
	// Respect cancellation between tokens; Predict itself is blocking.
	l.model.SetTokenCallback(func(string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	po := []llama.PredictOption{
		llama.SetTokens(maxTokens),
	}
	if l.cfg.Threads > 0 {
		po = append(po, llama.SetThreads(l.cfg.Threads))
	}
	if temperature > 0 {
		po = append(po, llama.SetTemperature(float32(temperature)))
	}
	if topP > 0 {
		po = append(po, llama.SetTopP(float32(topP)))
	}
	if len(stop) > 0 {
		po = append(po, llama.SetStopWords(stop...))
	}
	text, err := l.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", gate.NewResourceError("Generation failed", "model")
	}
	return text, nil
}
