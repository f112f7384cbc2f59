package llm

import (
	"context"
	"sync"
)

// MockClient is an in-memory LLMClient for tests. It is safe for concurrent use.
type MockClient struct {
	// Respond produces the response for a request. If nil, Content is returned.
	Respond func(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	// Content is the fixed response text used when Respond is nil.
	Content string
	Model   string

	mu       sync.Mutex
	requests []CompletionRequest
}

// NewMockClient returns a mock that always answers with content.
func NewMockClient(content string) *MockClient {
	return &MockClient{Content: content, Model: "mock-model"}
}

// Complete records the request and returns the configured response.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.Respond != nil {
		return m.Respond(ctx, req)
	}
	return CompletionResponse{Content: m.Content, StopReason: "end_turn"}, nil
}

// GetModelName returns the configured model name.
func (m *MockClient) GetModelName() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// Calls returns how many times Complete was invoked.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of all recorded requests.
func (m *MockClient) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
