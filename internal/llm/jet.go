package llm

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"

	"github.com/deepscholar/core/internal/config"
)

func (c *Client) generateText(ctx context.Context, provider *config.AIProvider, req ChatRequest) (*ChatResponse, error) {
	model, _, err := buildLanguageModel(provider)
	if err != nil {
		return nil, err
	}

	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(req.Messages),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(req.MaxTokens),
	)
	if err != nil {
		return nil, err
	}
	text, err := extractTextFromResponse(resp)
	if err != nil {
		return nil, err
	}
	return &ChatResponse{Text: text, Usage: estimateUsage(req.Messages, text)}, nil
}

func (c *Client) streamText(ctx context.Context, provider *config.AIProvider, req ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	model, streamEnabled, err := buildLanguageModel(provider)
	if err != nil {
		return nil, err
	}

	if !streamEnabled {
		resp, err := c.generateText(ctx, provider, req)
		if err != nil {
			return nil, err
		}
		if onDelta != nil && resp.Text != "" {
			onDelta(resp.Text)
		}
		return resp, nil
	}

	streamResp, err := jetai.StreamText(
		ctx,
		buildPromptMessages(req.Messages),
		jetai.WithModel(model),
		jetai.WithMaxOutputTokens(req.MaxTokens),
	)
	if err != nil {
		return nil, err
	}

	var full strings.Builder
	for event := range streamResp.Stream {
		switch evt := event.(type) {
		case *jetapi.TextDeltaEvent:
			if evt.TextDelta == "" {
				continue
			}
			full.WriteString(evt.TextDelta)
			if onDelta != nil {
				onDelta(evt.TextDelta)
			}
		case *jetapi.ErrorEvent:
			if evt.Err == nil {
				return nil, errors.New("AI stream returned an unknown error")
			}
			return nil, fmt.Errorf("%v", evt.Err)
		}
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty response from AI")
	}
	return &ChatResponse{Text: text, Usage: estimateUsage(req.Messages, text)}, nil
}

func buildPromptMessages(messages []Message) []jetapi.Message {
	out := make([]jetapi.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, &jetapi.SystemMessage{Content: m.Content})
		case RoleAssistant:
			out = append(out, &jetapi.AssistantMessage{Content: jetapi.ContentFromText(m.Content)})
		default:
			out = append(out, &jetapi.UserMessage{Content: jetapi.ContentFromText(m.Content)})
		}
	}
	return out
}

func extractTextFromResponse(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from AI")
	}

	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from AI")
	}
	return text, nil
}

func buildLanguageModel(provider *config.AIProvider) (jetapi.LanguageModel, bool, error) {
	if provider == nil {
		return nil, false, errors.New("AI provider is nil")
	}

	apiKey := strings.TrimSpace(provider.APIKey)
	if apiKey == "" {
		return nil, false, errors.New("AI provider api key is empty")
	}

	modelID := strings.TrimSpace(provider.DefaultModel)
	endpoint := strings.TrimSpace(provider.Endpoint)

	if isAnthropicProviderType(provider.Type) {
		if modelID == "" {
			modelID = "claude-haiku-4-5-20251001"
		}

		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(0),
		}
		if endpoint != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(endpoint, "/")))
		}

		client := anthropicclient.NewClient(opts...)
		model := jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client))
		return model, false, nil
	}

	if modelID == "" {
		modelID = "gpt-4o-mini"
	}

	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(0),
	}
	if normalized := normalizeOpenAIBaseURL(endpoint); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}

	client := openaiclient.NewClient(opts...)
	model := jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client))
	return model, true, nil
}

func normalizeOpenAIBaseURL(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return strings.TrimRight(base, "/")
	}

	path := strings.TrimRight(parsed.Path, "/")
	if !strings.HasSuffix(path, "/v1") {
		if path == "" {
			path = "/v1"
		} else {
			path += "/v1"
		}
	}
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}
