// Package plan implements lesson-plan generation: request validation, prompt rendering,
// one upstream call, and JSON validation of the result.
package plan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"planrelay/pkg/llm"
	"planrelay/pkg/llmerrors"
	"planrelay/pkg/logx"
)

// bodyStubChars bounds how much of a rejected response reaches the log.
const bodyStubChars = 400

// PlanDocument is the upstream JSON, relayed without schema validation.
type PlanDocument = json.RawMessage

// Generator turns plan requests into plan documents. It holds no per-request state.
type Generator struct {
	client llm.LLMClient
	prompt *PromptTemplate
	logger *logx.Logger
}

// NewGenerator creates a generator. A nil client means the upstream credential was absent at
// startup; every GeneratePlan call then fails with ErrConfiguration. A nil prompt selects the
// built-in template.
func NewGenerator(client llm.LLMClient, prompt *PromptTemplate, logger *logx.Logger) (*Generator, error) {
	if prompt == nil {
		var err error
		if prompt, err = NewPromptTemplate(""); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = logx.NewLogger("plan")
	}
	return &Generator{client: client, prompt: prompt, logger: logger}, nil
}

// Configured reports whether an upstream client is available.
func (g *Generator) Configured() bool {
	return g.client != nil
}

// GeneratePlan validates req, renders the prompt and makes exactly one upstream call.
// The upstream call is not cancelled when ctx is; no timeout is imposed here.
//
//nolint:gocritic // PlanRequest is passed by value so callers cannot share it across requests
func (g *Generator) GeneratePlan(ctx context.Context, req PlanRequest) (PlanDocument, error) {
	if g.client == nil {
		return nil, ErrConfiguration
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	prompt, err := g.prompt.Render(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to render prompt: %w", err)
	}
	logx.Debug(ctx, "plan", "rendered prompt for age=%s sessions=%s objective=%q (%d chars)",
		req.Age, req.Sessions, req.Objective.String(), len(prompt))

	resp, err := g.client.Complete(context.WithoutCancel(ctx), llm.CompletionRequest{
		Messages:         []llm.CompletionMessage{llm.NewUserMessage(prompt)},
		SafetySettings:   llm.SafetyFiltersDisabled(),
		ResponseMIMEType: llm.MIMETypeJSON,
	})
	if err != nil {
		return nil, &UpstreamError{Type: llmerrors.TypeOf(err), Err: err}
	}

	doc, err := compactJSON(resp.Content)
	if err != nil {
		malformed := &llmerrors.Error{
			Type:     llmerrors.ErrorTypeMalformedResponse,
			Err:      err,
			Message:  "response is not valid JSON",
			BodyStub: llmerrors.SanitizePrompt(resp.Content, bodyStubChars),
		}
		return nil, &UpstreamError{Type: llmerrors.ErrorTypeMalformedResponse, Err: malformed}
	}
	return doc, nil
}

// compactJSON validates text as a single JSON value and returns it compacted,
// preserving key order and leaving HTML characters unescaped.
func compactJSON(text string) (PlanDocument, error) {
	raw := []byte(text)
	if !json.Valid(raw) {
		var probe any
		err := json.Unmarshal(raw, &probe)
		if err == nil {
			err = errors.New("invalid JSON")
		}
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err //nolint:wrapcheck // caller wraps
	}
	return buf.Bytes(), nil
}
