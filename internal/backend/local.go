package backend

import (
	"strings"

	"inferd/pkg/types"
)

// LocalConfig configures the in-process llama.cpp backend.
type LocalConfig struct {
	// Path to a *.gguf model file.
	ModelPath string
	// Context window size passed to the runtime.
	CtxSize int
	// CPU threads for generation.
	Threads int
	// Model id reported in responses.
	DefaultModel string
}

// LocalRuntimeAvailable reports whether this binary was compiled with the
// in-process llama runtime (the 'llama' build tag).
func LocalRuntimeAvailable() bool { return llamaBuilt }

// buildChatPrompt flattens a conversation into the chat template understood
// by the local models.
func buildChatPrompt(messages []types.ChatMessage) string {
	var b strings.Builder
	for _, m := range messages {
		switch m.Role {
		case "system":
			b.WriteString("<|system|>\n")
		case "assistant":
			b.WriteString("<|assistant|>\n")
		default:
			b.WriteString("<|user|>\n")
		}
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("<|assistant|>\n")
	return b.String()
}
