package llm

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/models"
)

// Task names a generation task that may be assigned its own model.
type Task string

const (
	TaskChat      Task = "chat"
	TaskPlan      Task = "plan"
	TaskRerank    Task = "rerank"
	TaskTranslate Task = "translate"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a model conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest describes one model call.
type ChatRequest struct {
	Task      Task
	Messages  []Message
	MaxTokens int
}

// ChatResponse carries the generated text and token accounting.
type ChatResponse struct {
	Text  string
	Usage models.Usage
}

const defaultMaxTokens = 4096

// Model is the chat capability consumed by the generation services.
type Model interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	StreamChat(ctx context.Context, req ChatRequest, onDelta func(string)) (*ChatResponse, error)
}

// Client routes chat calls to the configured providers.
type Client struct {
	cfg config.AIConfig
}

func NewClient(cfg config.AIConfig) *Client {
	return &Client{cfg: cfg}
}

// Chat performs a blocking completion.
func (c *Client) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	provider := c.selectProvider(req.Task)
	if provider == nil {
		return nil, errors.New("no enabled AI provider configured")
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	if isOpenAICompatibleProviderType(provider.Type) {
		return c.chatCompletions(ctx, provider, req)
	}
	return c.generateText(ctx, provider, req)
}

// StreamChat performs a streaming completion, invoking onDelta for each text
// chunk. The full concatenated text is returned alongside usage.
func (c *Client) StreamChat(ctx context.Context, req ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	provider := c.selectProvider(req.Task)
	if provider == nil {
		return nil, errors.New("no enabled AI provider configured")
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	if isOpenAICompatibleProviderType(provider.Type) {
		return c.chatCompletionsStream(ctx, provider, req, onDelta)
	}
	return c.streamText(ctx, provider, req, onDelta)
}

// selectProvider resolves the provider for a task, falling back to the first
// enabled provider when the task has no assignment.
func (c *Client) selectProvider(task Task) *config.AIProvider {
	assignment := c.assignmentFor(task)

	var providerID, overrideModel string
	if assignment != nil {
		providerID = strings.TrimSpace(assignment.ProviderID)
		overrideModel = strings.TrimSpace(assignment.Model)
	}

	pick := func(provider config.AIProvider) *config.AIProvider {
		selected := provider
		if overrideModel != "" {
			selected.DefaultModel = overrideModel
		}
		return &selected
	}

	if providerID != "" {
		for _, provider := range c.cfg.Providers {
			if !provider.Enabled {
				continue
			}
			if strings.TrimSpace(provider.ID) != providerID {
				continue
			}
			return pick(provider)
		}
	}

	for _, provider := range c.cfg.Providers {
		if !provider.Enabled {
			continue
		}
		return pick(provider)
	}
	return nil
}

func (c *Client) assignmentFor(task Task) *config.AIModelAssignment {
	switch task {
	case TaskPlan:
		if c.cfg.Plan != nil {
			return c.cfg.Plan
		}
	case TaskRerank:
		if c.cfg.Rerank != nil {
			return c.cfg.Rerank
		}
	case TaskTranslate:
		if c.cfg.Translate != nil {
			return c.cfg.Translate
		}
	}
	return c.cfg.Chat
}

func isOpenAICompatibleProviderType(raw string) bool {
	t := normalizeProviderType(raw)
	return t == "openai-compatible" || t == "openaicompatible"
}

func isAnthropicProviderType(raw string) bool {
	return normalizeProviderType(raw) == "anthropic"
}

func normalizeProviderType(raw string) string {
	t := strings.ToLower(strings.TrimSpace(raw))
	t = strings.ReplaceAll(t, "_", "-")
	t = strings.ReplaceAll(t, " ", "")
	return t
}

// estimateUsage approximates token counts when a provider does not report
// them, so the persistence log never records zero usage for real output.
func estimateUsage(messages []Message, completion string) models.Usage {
	var promptChars int
	for _, m := range messages {
		promptChars += utf8.RuneCountInString(m.Content)
	}
	return models.Usage{
		PromptTokens:     promptChars / 4,
		CompletionTokens: utf8.RuneCountInString(completion) / 4,
		TotalTokens:      promptChars/4 + utf8.RuneCountInString(completion)/4,
	}
}
