package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"github.com/deepscholar/core/internal/config"
	"github.com/deepscholar/core/internal/models"
)

// The openai-compatible path talks chat-completions over raw HTTP so that
// self-hosted gateways with partial API coverage still work.

type usagePayload struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u usagePayload) toUsage() models.Usage {
	return models.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}

func (c *Client) chatCompletions(ctx context.Context, provider *config.AIProvider, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, errors.New("AI provider api key is empty")
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model":      resolveModel(provider),
		"messages":   wireMessages(req.Messages),
		"max_tokens": req.MaxTokens,
	})

	respBody, err := postChatCompletions(ctx, provider, body, "", 60*time.Second)
	if err != nil {
		return nil, err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *usagePayload `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, err
	}
	if result.Error != nil && strings.TrimSpace(result.Error.Message) != "" {
		return nil, fmt.Errorf("openai-compatible error: %s", result.Error.Message)
	}
	if strings.TrimSpace(result.Message) != "" && len(result.Choices) == 0 {
		return nil, fmt.Errorf("openai-compatible error: %s", result.Message)
	}
	if len(result.Choices) == 0 {
		return nil, errors.New("empty response from AI")
	}

	text := result.Choices[0].Message.Content
	usage := estimateUsage(req.Messages, text)
	if result.Usage != nil {
		usage = result.Usage.toUsage()
	}
	return &ChatResponse{Text: text, Usage: usage}, nil
}

func (c *Client) chatCompletionsStream(ctx context.Context, provider *config.AIProvider, req ChatRequest, onDelta func(string)) (*ChatResponse, error) {
	if strings.TrimSpace(provider.APIKey) == "" {
		return nil, errors.New("AI provider api key is empty")
	}

	body, _ := json.Marshal(map[string]interface{}{
		"model":          resolveModel(provider),
		"messages":       wireMessages(req.Messages),
		"max_tokens":     req.MaxTokens,
		"stream":         true,
		"stream_options": map[string]interface{}{"include_usage": true},
	})

	endpoint := normalizeOpenAICompatibleEndpoint(provider.Endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+strings.TrimSpace(provider.APIKey))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai-compatible stream error: %s", strings.TrimSpace(string(respBody)))
	}

	var full strings.Builder
	var usage *usagePayload
	buf := make([]byte, 4096)
	remainder := ""
	done := false

	for !done {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := remainder + string(buf[:n])
			remainder = ""
			lines := splitLines(chunk)
			for i, line := range lines {
				if i == len(lines)-1 && readErr == nil {
					remainder = line
					continue
				}
				line = strings.TrimSpace(line)
				if !strings.HasPrefix(line, "data:") {
					continue
				}
				data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				if data == "" {
					continue
				}
				if data == "[DONE]" {
					done = true
					break
				}

				var event struct {
					Choices []struct {
						Delta struct {
							Content string `json:"content"`
						} `json:"delta"`
					} `json:"choices"`
					Usage *usagePayload `json:"usage"`
				}
				if err2 := json.Unmarshal([]byte(data), &event); err2 != nil {
					continue
				}
				if event.Usage != nil {
					usage = event.Usage
				}
				if len(event.Choices) == 0 || event.Choices[0].Delta.Content == "" {
					continue
				}

				token := event.Choices[0].Delta.Content
				full.WriteString(token)
				if onDelta != nil {
					onDelta(token)
				}
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}

	text := full.String()
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty response from AI")
	}
	out := &ChatResponse{Text: text, Usage: estimateUsage(req.Messages, text)}
	if usage != nil {
		out.Usage = usage.toUsage()
	}
	return out, nil
}

func postChatCompletions(ctx context.Context, provider *config.AIProvider, body []byte, accept string, timeout time.Duration) ([]byte, error) {
	endpoint := normalizeOpenAICompatibleEndpoint(provider.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(provider.APIKey))
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("openai-compatible error: %s", strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}

func wireMessages(messages []Message) []map[string]string {
	out := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = RoleUser
		}
		out = append(out, map[string]string{"role": role, "content": m.Content})
	}
	return out
}

func resolveModel(provider *config.AIProvider) string {
	model := strings.TrimSpace(provider.DefaultModel)
	if model == "" {
		model = "gpt-4o-mini"
	}
	return model
}

func normalizeOpenAICompatibleEndpoint(raw string) string {
	base := strings.TrimSpace(raw)
	if base == "" {
		return "https://api.openai.com"
	}

	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		cleaned := strings.TrimRight(base, "/")
		cleaned = strings.TrimSuffix(cleaned, "/v1")
		return cleaned
	}

	path := strings.TrimRight(parsed.Path, "/")
	path = strings.TrimSuffix(path, "/v1")
	parsed.Path = path
	return strings.TrimRight(parsed.String(), "/")
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
