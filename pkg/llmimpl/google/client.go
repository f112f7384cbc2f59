// Package google provides Google Gemini client implementation for LLM interface.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"planrelay/pkg/llm"
	"planrelay/pkg/llmerrors"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// Options configures a GeminiClient.
type Options struct {
	APIKey     string
	Model      string
	BaseURL    string       // optional endpoint override (proxies, tests)
	HTTPClient *http.Client // optional; nil uses the SDK default
}

// GeminiClient wraps the Google GenAI client to implement llm.LLMClient interface.
// The underlying genai.Client is created once and shared by all requests.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates the Gemini client. Middleware is applied at a higher level.
func NewGeminiClient(ctx context.Context, opts Options) (*GeminiClient, error) {
	if opts.APIKey == "" {
		return nil, llmerrors.NewError(llmerrors.ErrorTypeAuth, "Gemini API key cannot be empty")
	}
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model}, nil
}

// Complete implements the llm.LLMClient interface.
//
//nolint:gocritic // CompletionRequest size acceptable for interface consistency
func (g *GeminiClient) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := in.Validate(); err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, fmt.Sprintf("invalid request: %v", err))
	}

	contents, systemInstruction, err := convertMessagesToGemini(in.Messages)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, fmt.Sprintf("message conversion error: %v", err))
	}

	config := buildGenerateConfig(&in)
	if systemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		}
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}
	if result == nil {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "empty response from Gemini API")
	}

	text := result.Text()
	if text == "" {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, emptyReason(result))
	}

	return llm.CompletionResponse{
		Content:    text,
		StopReason: getStopReason(result),
		Usage:      getUsage(result),
	}, nil
}

// GetModelName returns the model name for this client.
func (g *GeminiClient) GetModelName() string {
	return g.model
}

// buildGenerateConfig maps the provider-neutral request options onto Gemini's generation config.
func buildGenerateConfig(in *llm.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: in.ResponseMIMEType,
		Temperature:      in.Temperature,
	}
	if in.MaxTokens > 0 {
		//nolint:gosec // MaxTokens validated at higher layer
		config.MaxOutputTokens = int32(in.MaxTokens)
	}
	if len(in.SafetySettings) > 0 {
		config.SafetySettings = convertSafetySettings(in.SafetySettings)
	}
	return config
}

// convertSafetySettings maps our safety policy onto Gemini's harm categories and thresholds.
func convertSafetySettings(settings []llm.SafetySetting) []*genai.SafetySetting {
	out := make([]*genai.SafetySetting, 0, len(settings))
	for i := range settings {
		s := &settings[i]
		out = append(out, &genai.SafetySetting{
			Category:  convertHarmCategory(s.Category),
			Threshold: convertThreshold(s.Threshold),
		})
	}
	return out
}

func convertHarmCategory(c llm.HarmCategory) genai.HarmCategory {
	switch c {
	case llm.HarmCategoryHarassment:
		return genai.HarmCategoryHarassment
	case llm.HarmCategoryHateSpeech:
		return genai.HarmCategoryHateSpeech
	case llm.HarmCategorySexuallyExplicit:
		return genai.HarmCategorySexuallyExplicit
	case llm.HarmCategoryDangerousContent:
		return genai.HarmCategoryDangerousContent
	default:
		return genai.HarmCategory(c)
	}
}

func convertThreshold(t llm.BlockThreshold) genai.HarmBlockThreshold {
	switch t {
	case llm.BlockNone:
		return genai.HarmBlockThresholdBlockNone
	case llm.BlockOnlyHigh:
		return genai.HarmBlockThresholdBlockOnlyHigh
	case llm.BlockMediumAndAbove:
		return genai.HarmBlockThresholdBlockMediumAndAbove
	case llm.BlockLowAndAbove:
		return genai.HarmBlockThresholdBlockLowAndAbove
	default:
		return genai.HarmBlockThreshold(t)
	}
}

// convertMessagesToGemini converts our message format to Gemini's Content format.
// Returns contents array and optional system instruction.
func convertMessagesToGemini(messages []llm.CompletionMessage) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("message list cannot be empty")
	}

	var systemInstruction string
	var contents []*genai.Content

	for i := range messages {
		msg := &messages[i]

		if msg.Role == llm.RoleSystem {
			if systemInstruction != "" {
				systemInstruction += "\n\n" + msg.Content
			} else {
				systemInstruction = msg.Content
			}
			continue
		}

		var role string
		switch msg.Role {
		case llm.RoleUser:
			role = "user"
		case llm.RoleAssistant:
			role = "model" // Gemini uses "model" instead of "assistant"
		default:
			return nil, "", fmt.Errorf("unsupported message role: %s", msg.Role)
		}

		if msg.Content == "" {
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: msg.Content}},
		})
	}

	if len(contents) == 0 {
		return nil, "", fmt.Errorf("no user or assistant content to send")
	}
	return contents, systemInstruction, nil
}

// classifyError wraps an SDK error with the matching llmerrors type.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &llmerrors.Error{
			Type:       llmerrors.TypeForStatus(apiErr.Code),
			StatusCode: apiErr.Code,
			Err:        err,
			Message:    fmt.Sprintf("Gemini API call failed: %s", apiErr.Message),
		}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &llmerrors.Error{
			Type:       llmerrors.TypeForStatus(apiErrPtr.Code),
			StatusCode: apiErrPtr.Code,
			Err:        err,
			Message:    fmt.Sprintf("Gemini API call failed: %s", apiErrPtr.Message),
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, fmt.Sprintf("Gemini API call failed: %v", err))
	}
	return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeUnknown, err, fmt.Sprintf("Gemini API call failed: %v", err))
}

// emptyReason explains why a response carried no text.
func emptyReason(result *genai.GenerateContentResponse) string {
	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return fmt.Sprintf("prompt blocked by Gemini: %s", result.PromptFeedback.BlockReason)
	}
	if len(result.Candidates) == 0 {
		return "Gemini returned no candidates"
	}
	if reason := result.Candidates[0].FinishReason; reason != "" {
		return fmt.Sprintf("Gemini returned no text (finish reason %s)", reason)
	}
	return "Gemini returned no text"
}

// getStopReason extracts the stop reason from Gemini response.
func getStopReason(result *genai.GenerateContentResponse) string {
	if result == nil || len(result.Candidates) == 0 {
		return "unknown"
	}

	switch result.Candidates[0].FinishReason {
	case genai.FinishReasonStop, "":
		return "end_turn"
	case genai.FinishReasonMaxTokens:
		return "max_tokens"
	case genai.FinishReasonSafety:
		return "safety"
	default:
		return strings.ToLower(string(result.Candidates[0].FinishReason))
	}
}

// getUsage returns token usage if Gemini reported it.
func getUsage(result *genai.GenerateContentResponse) *llm.Usage {
	if result.UsageMetadata == nil {
		return nil
	}
	return &llm.Usage{
		PromptTokens:     int(result.UsageMetadata.PromptTokenCount),
		CompletionTokens: int(result.UsageMetadata.CandidatesTokenCount),
	}
}
