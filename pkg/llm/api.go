// Package llm provides interfaces and types for Large Language Model client implementations.
package llm

import (
	"context"
	"fmt"
)

// CompletionRole represents the role of a message in a conversation.
type CompletionRole string

const (
	// RoleSystem indicates a system message that provides instructions or context.
	RoleSystem CompletionRole = "system"
	// RoleUser indicates a message from the human user.
	RoleUser CompletionRole = "user"
	// RoleAssistant indicates a message from the model.
	RoleAssistant CompletionRole = "assistant"
)

// MIMETypeJSON asks the upstream to constrain its output to a JSON document.
const MIMETypeJSON = "application/json"

// HarmCategory names a content-safety filter category.
type HarmCategory string

const (
	HarmCategoryHarassment       HarmCategory = "HARM_CATEGORY_HARASSMENT"
	HarmCategoryHateSpeech       HarmCategory = "HARM_CATEGORY_HATE_SPEECH"
	HarmCategorySexuallyExplicit HarmCategory = "HARM_CATEGORY_SEXUALLY_EXPLICIT"
	HarmCategoryDangerousContent HarmCategory = "HARM_CATEGORY_DANGEROUS_CONTENT"
)

// BlockThreshold is the blocking level applied to a harm category.
type BlockThreshold string

const (
	BlockNone           BlockThreshold = "BLOCK_NONE"
	BlockOnlyHigh       BlockThreshold = "BLOCK_ONLY_HIGH"
	BlockMediumAndAbove BlockThreshold = "BLOCK_MEDIUM_AND_ABOVE"
	BlockLowAndAbove    BlockThreshold = "BLOCK_LOW_AND_ABOVE"
)

// SafetySetting pairs a harm category with its threshold.
type SafetySetting struct {
	Category  HarmCategory
	Threshold BlockThreshold
}

// SafetyFiltersDisabled returns a policy that turns off all four standard filter categories.
// A fresh slice is returned on every call so callers cannot mutate a shared policy.
func SafetyFiltersDisabled() []SafetySetting {
	return []SafetySetting{
		{Category: HarmCategoryHarassment, Threshold: BlockNone},
		{Category: HarmCategoryHateSpeech, Threshold: BlockNone},
		{Category: HarmCategorySexuallyExplicit, Threshold: BlockNone},
		{Category: HarmCategoryDangerousContent, Threshold: BlockNone},
	}
}

// CompletionMessage represents a message in a completion request.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// CompletionRequest represents a request to generate a completion.
//
//nolint:govet // fieldalignment: value semantics preferred over pointer indirection
type CompletionRequest struct {
	Messages         []CompletionMessage
	SafetySettings   []SafetySetting
	ResponseMIMEType string   // e.g. MIMETypeJSON; empty means plain text
	Temperature      *float32 // nil leaves the upstream default
	MaxTokens        int      // 0 leaves the upstream default
}

// Usage reports token accounting for a completion, when the upstream provides it.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// CompletionResponse represents a response from a completion request.
type CompletionResponse struct {
	Usage      *Usage // nil when the upstream did not report usage
	Content    string // Main response text
	StopReason string // Why the response stopped: "end_turn", "max_tokens", "safety", etc.
}

// LLMClient defines the interface for language model interactions.
type LLMClient interface { //nolint:revive // Keep name for consistency with implementations
	// Complete generates a completion synchronously.
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)

	// GetModelName returns the model name for this LLM client.
	GetModelName() string
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleSystem,
		Content: content,
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{
		Role:    RoleUser,
		Content: content,
	}
}

// PromptText joins the content of all messages, one per line. Used for token estimation and logging.
func (r *CompletionRequest) PromptText() string {
	var text string
	for i := range r.Messages {
		text += r.Messages[i].Content + "\n"
	}
	return text
}

// Validate checks the request before it is sent upstream.
func (r *CompletionRequest) Validate() error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("message list cannot be empty")
	}
	if r.MaxTokens < 0 {
		return fmt.Errorf("max tokens must not be negative")
	}
	if r.Temperature != nil && (*r.Temperature < 0.0 || *r.Temperature > 2.0) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	return nil
}
