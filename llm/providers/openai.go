package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/rolefit/llm"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAI talks to api.openai.com, or to OpenRouter when the endpoint URL
// points there.
type OpenAI struct{}

func init() {
	llm.RegisterProvider(&OpenAI{})
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) BuildURL(baseURL string) string {
	return chatURL(baseURL, openAIBaseURL)
}

// SetHeaders sends OPENAI_API_KEY as a bearer token. The OpenRouter
// attribution headers are set when their variables are present.
func (o *OpenAI) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	if siteURL := os.Getenv("OPENROUTER_SITE_URL"); siteURL != "" {
		req.Header.Set("HTTP-Referer", siteURL)
	}
	if siteName := os.Getenv("OPENROUTER_SITE_NAME"); siteName != "" {
		req.Header.Set("X-Title", siteName)
	}
}

func (o *OpenAI) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	return buildChatRequest(model, messages, temperature, maxTokens)
}

func (o *OpenAI) ParseResponse(body []byte, model string) (*llm.Response, error) {
	return parseChatResponse(body, model)
}
