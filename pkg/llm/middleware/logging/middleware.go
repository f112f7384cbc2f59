// Package logging provides logging middleware for LLM clients.
package logging

import (
	"context"
	"time"

	"planrelay/pkg/llm"
	"planrelay/pkg/llmerrors"
	"planrelay/pkg/logx"
)

const (
	promptLogChars   = 600
	responseLogChars = 400
	emptyDumpChars   = 10000
)

// Middleware logs every upstream call on logger. A nil logger uses the "llm" component.
//
// At DEBUG the sanitized prompt and a response excerpt are written, at INFO one line
// per call with model, duration and stop reason, and at ERROR the full upstream error.
func Middleware(logger *logx.Logger) llm.Middleware {
	if logger == nil {
		logger = logx.NewLogger("llm")
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				reqID := logx.RequestID(ctx)
				if reqID == "" {
					reqID = "-"
				}
				model := next.GetModelName()

				if logx.IsEnabled(logx.LevelDebug) {
					logger.Debug("[%s] prompt for %s: %s", reqID, model,
						llmerrors.SanitizePrompt(req.PromptText(), promptLogChars))
				}

				start := time.Now()
				resp, err := next.Complete(ctx, req)
				duration := time.Since(start).Round(time.Millisecond)

				if err != nil {
					logger.Error("[%s] %s call failed after %s (%s, transient=%t): %v",
						reqID, model, duration, llmerrors.TypeOf(err), llmerrors.TypeOf(err).IsTransient(), err)
					if llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
						logEmptyResponseDebugInfo(logger, reqID, &req)
					}
					return resp, err //nolint:wrapcheck // Middleware intentionally passes through errors unchanged
				}

				logger.Info("[%s] %s responded in %s (stop=%s, %d chars)",
					reqID, model, duration, resp.StopReason, len(resp.Content))
				if logx.IsEnabled(logx.LevelDebug) {
					logger.Debug("[%s] response: %s", reqID, llmerrors.SanitizePrompt(resp.Content, responseLogChars))
				}
				return resp, nil
			},
			next.GetModelName,
		)
	}
}

// logEmptyResponseDebugInfo dumps the request that produced an empty or blocked response.
func logEmptyResponseDebugInfo(logger *logx.Logger, reqID string, req *llm.CompletionRequest) {
	logger.Error("[%s] empty response from upstream, request follows", reqID)
	for i := range req.Messages {
		msg := &req.Messages[i]
		content := msg.Content
		if len(content) > emptyDumpChars {
			content = llmerrors.SanitizePrompt(content, emptyDumpChars)
		}
		logger.Error("[%s] message [%d] role=%s: %s", reqID, i, msg.Role, content)
	}
	logger.Error("[%s] response MIME type: %q, safety settings: %d", reqID, req.ResponseMIMEType, len(req.SafetySettings))
}
