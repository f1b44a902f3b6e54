package providers

import (
	"net/http"
	"os"

	"github.com/c360studio/rolefit/llm"
)

const ollamaBaseURL = "http://localhost:11434/v1"

// Ollama covers Ollama and any other server speaking the OpenAI
// chat-completions format (vLLM, llama.cpp, cmd/mock-llm).
type Ollama struct{}

func init() {
	llm.RegisterProvider(&Ollama{})
}

func (o *Ollama) Name() string { return "ollama" }

func (o *Ollama) BuildURL(baseURL string) string {
	return chatURL(baseURL, ollamaBaseURL)
}

// SetHeaders sends OLLAMA_API_KEY as a bearer token when set. Local
// servers usually need none.
func (o *Ollama) SetHeaders(req *http.Request) {
	if apiKey := os.Getenv("OLLAMA_API_KEY"); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
}

func (o *Ollama) BuildRequestBody(model string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	return buildChatRequest(model, messages, temperature, maxTokens)
}

func (o *Ollama) ParseResponse(body []byte, model string) (*llm.Response, error) {
	return parseChatResponse(body, model)
}
