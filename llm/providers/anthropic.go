package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/c360studio/rolefit/llm"
)

const (
	anthropicBaseURL   = "https://api.anthropic.com"
	anthropicVersion   = "2023-06-01"
	anthropicMaxTokens = 1024
)

// Anthropic talks to the Messages API.
type Anthropic struct{}

func init() {
	llm.RegisterProvider(&Anthropic{})
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = anthropicBaseURL
	}
	return strings.TrimSuffix(baseURL, "/") + "/v1/messages"
}

func (a *Anthropic) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	req.Header.Set("anthropic-version", anthropicVersion)
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// BuildRequestBody moves system messages into the top-level system field,
// joined by blank lines. The API requires max_tokens, so a zero value gets
// a default sized for one question payload.
func (a *Anthropic) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	var system []string
	turns := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		turns = append(turns, chatMessage{Role: msg.Role, Content: msg.Content})
	}
	if len(turns) == 0 {
		return nil, errors.New("anthropic request needs at least one non-system message")
	}
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	return json.Marshal(messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    turns,
		Temperature: temperature,
	})
}

func (a *Anthropic) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse anthropic response: %w", err)
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}

	name := resp.Model
	if name == "" {
		name = model
	}
	return &llm.Response{
		Content: content.String(),
		Model:   name,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.InputTokens,
			CompletionTokens: resp.Usage.OutputTokens,
			TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
		FinishReason: resp.StopReason,
	}, nil
}
