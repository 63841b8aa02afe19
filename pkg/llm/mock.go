package llm

import (
	"context"
	"errors"
	"sync"
)

// MockProvider returns a fixed response, a fixed error, or whatever
// ChatFunc produces.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}

// ScriptedProvider plays back a fixed sequence of responses, which may
// include tool calls. Useful for exercising multi-turn agent loops.
type ScriptedProvider struct {
	mu        sync.Mutex
	responses []*ChatResponse
	requests  []ChatRequest
	Err       error
}

// NewScriptedProvider queues the given responses in order.
func NewScriptedProvider(responses ...*ChatResponse) *ScriptedProvider {
	return &ScriptedProvider{responses: responses}
}

// Text is shorthand for a plain-text scripted response.
func Text(content string) *ChatResponse {
	return &ChatResponse{
		Content: content,
		Usage:   Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}
}

// Call is shorthand for a scripted response that requests one tool
// invocation.
func Call(name, args string) *ChatResponse {
	return &ChatResponse{
		ToolCalls: []ToolCall{{
			ID:       name,
			Type:     ToolTypeFunction,
			Function: FunctionCall{Name: name, Arguments: args},
		}},
		Usage: Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}
}

// Chat pops the next scripted response.
func (s *ScriptedProvider) Chat(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.responses) == 0 {
		return nil, errors.New("scripted provider: no more responses available")
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

// Add appends a response to the queue.
func (s *ScriptedProvider) Add(resp *ChatResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
}

// Requests returns a copy of every request seen so far.
func (s *ScriptedProvider) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// CallCount reports how many times Chat was invoked.
func (s *ScriptedProvider) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
