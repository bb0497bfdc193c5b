package types

// ChatMessage is one turn of a chat conversation.
type ChatMessage struct {
	// Role of the author: system, user or assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: Write a haiku about the ocean.
	Content string `json:"content" example:"Write a haiku about the ocean."`
}

// ChatCompletionRequest is the validated payload handed to the backend for
// POST /v1/chat/completions.
type ChatCompletionRequest struct {
	// Optional model identifier. If empty, the server default is used.
	// example: tinyllama-chat
	Model string `json:"model,omitempty" example:"tinyllama-chat"`
	// Conversation so far; must be non-empty.
	Messages []ChatMessage `json:"messages"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
}

// ChatChoice is one generated alternative in a chat completion response.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage reports token accounting for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatCompletionResponse is the OpenAI-style envelope returned by the chat endpoint.
type ChatCompletionResponse struct {
	// example: chatcmpl-4f2d9c8a
	ID      string `json:"id" example:"chatcmpl-4f2d9c8a"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	// Identifies the serving backend build.
	SystemFingerprint string       `json:"system_fingerprint,omitempty"`
	Choices           []ChatChoice `json:"choices"`
	Usage             Usage        `json:"usage"`
}

// CompletionRequest is the validated payload for POST /v1/completions.
type CompletionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// CompletionChoice is one generated alternative in a text completion response.
type CompletionChoice struct {
	Text         string `json:"text"`
	Index        int    `json:"index"`
	FinishReason string `json:"finish_reason"`
}

// CompletionResponse is the envelope returned by the completion endpoint.
type CompletionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []CompletionChoice `json:"choices"`
	Usage   Usage              `json:"usage"`
}

// EmbeddingsRequest is the validated payload for POST /v1/embeddings.
// Input accepts either a single string or a list of strings on the wire;
// the handler normalizes both forms into the slice.
type EmbeddingsRequest struct {
	Model string   `json:"model,omitempty"`
	Input []string `json:"input"`
}

// Embedding is one vector in an embeddings response.
type Embedding struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingsResponse is the envelope returned by the embeddings endpoint.
type EmbeddingsResponse struct {
	Object string      `json:"object"`
	Data   []Embedding `json:"data"`
	Model  string      `json:"model"`
	Usage  Usage       `json:"usage"`
}

// Model describes one servable model for GET /v1/models.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-chat
	ID      string `json:"id" example:"tinyllama-chat"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	// example: local
	OwnedBy string `json:"owned_by" example:"local"`
}

// ModelsResponse wraps the catalog returned by GET /v1/models.
type ModelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ErrorDetail is the machine-readable failure description inside every
// error response.
type ErrorDetail struct {
	// Failure class: validation_error, security_error, resource_error,
	// bad_request, rate_limit_error, unauthorized or internal_error.
	// example: validation_error
	Type string `json:"type" example:"validation_error"`
	// Stable uppercase code for programmatic handling.
	// example: VALIDATION_FAILED
	Code string `json:"code" example:"VALIDATION_FAILED"`
	// Human-readable message. Genericized for security and internal failures.
	Message string `json:"message"`
	// Offending field, when the failure is tied to a single input field.
	Field string `json:"field,omitempty"`
	// Exhausted resource kind for resource_error responses.
	// example: compute
	ResourceType string `json:"resource_type,omitempty" example:"compute"`
}

// ErrorResponse is the consistent JSON failure envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ResourcePressure reports optional host pressure readings supplied by a
// backend that can observe them. All fields are best-effort.
type ResourcePressure struct {
	GPUMemoryUsed    uint64  `json:"gpu_memory_used,omitempty"`
	GPUMemoryTotal   uint64  `json:"gpu_memory_total,omitempty"`
	GPUMemoryPercent float64 `json:"gpu_memory_percent,omitempty"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Overall health: healthy, degraded or busy.
	// example: healthy
	Status    string `json:"status" example:"healthy"`
	Timestamp int64  `json:"timestamp"`
	// Whether the inference backend is constructed and ready to serve.
	ModelLoaded bool `json:"model_loaded"`
	// Requests currently holding an admission slot.
	ActiveRequests int `json:"active_requests"`
	// Admission capacity.
	MaxConcurrent int `json:"max_concurrent_requests"`
	// CPU utilization since the previous health sample, 0..100.
	CPUUsagePercent float64 `json:"cpu_usage_percent"`
	// GPU pressure, present only when the backend reports it.
	GPUMemoryUsed    uint64  `json:"gpu_memory_used,omitempty"`
	GPUMemoryTotal   uint64  `json:"gpu_memory_total,omitempty"`
	GPUMemoryPercent float64 `json:"gpu_memory_percent,omitempty"`
	// Conditions degrading the service, if any.
	Issues []string `json:"issues,omitempty"`
}
