package providers

import (
	"context"
	"strings"
	"sync"

	"github.com/jatlaoui/ines/internal/llm/transport"
)

// MockProviderName is the provider name the mock adapter registers under.
const MockProviderName = "mock"

// MockResult is one scripted mock outcome, consumed in order.
type MockResult struct {
	Content string
	Err     error
}

// MockAdapter returns scripted responses for tests and offline runs. Safe
// for concurrent use; once the script is spent it echoes a deterministic
// completion instead of failing, so long pipelines can run unscripted.
type MockAdapter struct {
	mu     sync.Mutex
	script []MockResult
	calls  int
}

// NewMockAdapter creates a mock adapter with the given script.
func NewMockAdapter(script ...MockResult) *MockAdapter {
	return &MockAdapter{script: script}
}

// Name implements transport.Adapter.
func (a *MockAdapter) Name() string { return MockProviderName }

// Calls reports how many completions were requested.
func (a *MockAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// Complete implements transport.Adapter.
func (a *MockAdapter) Complete(_ context.Context, req *transport.Request) (*transport.Response, error) {
	a.mu.Lock()
	idx := a.calls
	a.calls++
	a.mu.Unlock()

	content := ""
	if idx < len(a.script) {
		r := a.script[idx]
		if r.Err != nil {
			return nil, r.Err
		}
		content = r.Content
	} else if req.ResponseJSON {
		content = `{"mock": true}`
	} else {
		content = "mock completion: " + req.Prompt
	}

	return &transport.Response{
		Content:      content,
		FinishReason: "stop",
		Model:        req.Model,
		Usage: transport.Usage{
			PromptTokens:     int64(len(strings.Fields(req.Prompt))),
			CompletionTokens: int64(len(strings.Fields(content))),
			TotalTokens:      int64(len(strings.Fields(req.Prompt)) + len(strings.Fields(content))),
		},
	}, nil
}
