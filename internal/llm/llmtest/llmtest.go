// Package llmtest provides a scripted chat model for tests.
package llmtest

import (
	"context"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/llm"
)

// Rule answers prompts containing Match with Reply, or fails with Err.
type Rule struct {
	Match string
	Reply string
	Err   error
}

// Model replies with the first rule whose Match is in the user prompt.
// Unmatched prompts get Default.
type Model struct {
	Rules   []Rule
	Default string

	mu      sync.Mutex
	Prompts []string
}

// Generate implements llm.ChatModel.
func (m *Model) Generate(_ context.Context, in []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	prompt := in[len(in)-1].Content
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()

	for _, r := range m.Rules {
		if strings.Contains(prompt, r.Match) {
			if r.Err != nil {
				return nil, r.Err
			}
			return &schema.Message{Role: schema.Assistant, Content: r.Reply}, nil
		}
	}
	return &schema.Message{Role: schema.Assistant, Content: m.Default}, nil
}

// Calls returns how many prompts were sent.
func (m *Model) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}

// Client wraps m in an unpaced llm.Client.
func Client(m *Model) *llm.Client {
	return llm.NewWithModel(m, config.AIConfig{Model: "gpt-4", FastModel: "gpt-3.5-turbo", Temperature: 0.7, MaxTokens: 1500}, 0)
}
