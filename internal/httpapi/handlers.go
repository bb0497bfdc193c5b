package httpapi

import (
	"context"
	"fmt"
	"math"

	"inferd/internal/gate"
	"inferd/pkg/types"
)

// Request parameter bounds. Mirrors the documented public API contract.
const (
	maxContentLen      = 8000
	maxTokensCeiling   = 4096
	defaultMaxTokens   = 1024
	defaultTemperature = 0.7
)

var chatRoles = map[string]bool{"system": true, "user": true, "assistant": true}

// The gate hands handlers a payload that already passed shape and security
// validation; what remains here is per-endpoint semantics: types, ranges and
// the conversion into the backend's request structs.

func (s *server) handleChat(ctx context.Context, payload map[string]any) (any, error) {
	req, err := parseChatRequest(payload)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	return s.backend.ChatCompletion(ctx, req)
}

func (s *server) handleCompletion(ctx context.Context, payload map[string]any) (any, error) {
	req, err := parseCompletionRequest(payload)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	return s.backend.Completion(ctx, req)
}

func (s *server) handleEmbeddings(ctx context.Context, payload map[string]any) (any, error) {
	req, err := parseEmbeddingsRequest(payload)
	if err != nil {
		return nil, err
	}
	if req.Model == "" {
		req.Model = s.defaultModel
	}
	return s.backend.Embeddings(ctx, req)
}

func parseChatRequest(payload map[string]any) (types.ChatCompletionRequest, error) {
	var req types.ChatCompletionRequest

	raw, ok := payload["messages"].([]any)
	if !ok {
		return req, gate.NewValidationError("Field 'messages' must be an array", "messages")
	}
	if len(raw) == 0 {
		return req, gate.NewValidationError("Field 'messages' must be a non-empty array", "messages")
	}
	req.Messages = make([]types.ChatMessage, 0, len(raw))
	for i, el := range raw {
		m, ok := el.(map[string]any)
		if !ok {
			return req, gate.NewValidationError(fmt.Sprintf("Message at index %d must be an object", i), "messages")
		}
		role, ok := m["role"].(string)
		if !ok || !chatRoles[role] {
			return req, gate.NewValidationError(fmt.Sprintf("Message at index %d has an invalid role", i), "messages")
		}
		content, ok := m["content"].(string)
		if !ok {
			return req, gate.NewValidationError(fmt.Sprintf("Message at index %d must have string content", i), "messages")
		}
		if len(content) > maxContentLen {
			return req, gate.NewValidationError(
				fmt.Sprintf("Message content exceeds maximum length of %d characters", maxContentLen), "messages")
		}
		req.Messages = append(req.Messages, types.ChatMessage{Role: role, Content: content})
	}

	var err error
	if req.Model, err = optString(payload, "model"); err != nil {
		return req, err
	}
	if req.MaxTokens, err = optInt(payload, "max_tokens", defaultMaxTokens, 1, maxTokensCeiling); err != nil {
		return req, err
	}
	if req.Temperature, err = optFloat(payload, "temperature", defaultTemperature, 0, 2); err != nil {
		return req, err
	}
	if req.TopP, err = optFloat(payload, "top_p", 0, 0, 1); err != nil {
		return req, err
	}
	if req.Stop, err = optStringList(payload, "stop"); err != nil {
		return req, err
	}
	return req, nil
}

func parseCompletionRequest(payload map[string]any) (types.CompletionRequest, error) {
	var req types.CompletionRequest

	prompt, ok := payload["prompt"].(string)
	if !ok {
		return req, gate.NewValidationError("Field 'prompt' must be a string", "prompt")
	}
	if prompt == "" {
		return req, gate.NewValidationError("Field 'prompt' must be a non-empty string", "prompt")
	}
	if len(prompt) > maxContentLen {
		return req, gate.NewValidationError(
			fmt.Sprintf("Prompt exceeds maximum length of %d characters", maxContentLen), "prompt")
	}
	req.Prompt = prompt

	var err error
	if req.Model, err = optString(payload, "model"); err != nil {
		return req, err
	}
	if req.MaxTokens, err = optInt(payload, "max_tokens", defaultMaxTokens, 1, maxTokensCeiling); err != nil {
		return req, err
	}
	if req.Temperature, err = optFloat(payload, "temperature", defaultTemperature, 0, 2); err != nil {
		return req, err
	}
	if req.TopP, err = optFloat(payload, "top_p", 0, 0, 1); err != nil {
		return req, err
	}
	if req.Stop, err = optStringList(payload, "stop"); err != nil {
		return req, err
	}
	return req, nil
}

// parseEmbeddingsRequest accepts "input" as a single string or a list of
// strings and normalizes both to a slice.
func parseEmbeddingsRequest(payload map[string]any) (types.EmbeddingsRequest, error) {
	var req types.EmbeddingsRequest

	switch v := payload["input"].(type) {
	case string:
		if v == "" {
			return req, gate.NewValidationError("Field 'input' must not be empty", "input")
		}
		req.Input = []string{v}
	case []any:
		if len(v) == 0 {
			return req, gate.NewValidationError("Field 'input' must not be empty", "input")
		}
		req.Input = make([]string, 0, len(v))
		for i, el := range v {
			s, ok := el.(string)
			if !ok {
				return req, gate.NewValidationError(fmt.Sprintf("Input at index %d must be a string", i), "input")
			}
			req.Input = append(req.Input, s)
		}
	default:
		return req, gate.NewValidationError("Field 'input' must be a string or an array of strings", "input")
	}

	var err error
	if req.Model, err = optString(payload, "model"); err != nil {
		return req, err
	}
	return req, nil
}

func optString(payload map[string]any, field string) (string, error) {
	v, ok := payload[field]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", gate.NewValidationError(fmt.Sprintf("Field '%s' must be a string", field), field)
	}
	return s, nil
}

func optStringList(payload map[string]any, field string) ([]string, error) {
	v, ok := payload[field]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, el := range t {
			s, ok := el.(string)
			if !ok {
				return nil, gate.NewValidationError(fmt.Sprintf("Field '%s' must contain only strings", field), field)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, gate.NewValidationError(fmt.Sprintf("Field '%s' must be a string or an array of strings", field), field)
	}
}

// optFloat reads an optional numeric field, applying the default when absent
// and enforcing the inclusive range.
func optFloat(payload map[string]any, field string, def, min, max float64) (float64, error) {
	v, ok := payload[field]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok {
		return 0, gate.NewValidationError(fmt.Sprintf("Field '%s' must be a number", field), field)
	}
	if f < min || f > max {
		return 0, gate.NewValidationError(
			fmt.Sprintf("Field '%s' must be between %.1f and %.1f", field, min, max), field)
	}
	return f, nil
}

// optInt is optFloat for integer-valued fields; fractional values are
// rejected rather than truncated.
func optInt(payload map[string]any, field string, def, min, max int) (int, error) {
	v, ok := payload[field]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) {
		return 0, gate.NewValidationError(fmt.Sprintf("Field '%s' must be an integer", field), field)
	}
	n := int(f)
	if n < min || n > max {
		return 0, gate.NewValidationError(
			fmt.Sprintf("Field '%s' must be between %d and %d", field, min, max), field)
	}
	return n, nil
}
