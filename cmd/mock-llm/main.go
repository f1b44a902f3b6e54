// Package main implements an offline stand-in for the model API.
// It serves OpenAI-compatible /v1/chat/completions responses so the RoleFit
// server can run without a real LLM: point an "ollama" or "openai" endpoint
// at it.
//
// Usage:
//
//	mock-llm -port 11434 [-fixtures /path/to/fixtures] [-fenced]
//
// Requests are routed by prompt kind. A system prompt that asks for
// suggestions gets a suggestion array built from the user's input; anything
// else gets the next question from a built-in bank of ten.
//
// Fixture files override the built-in replies. "question.json" and
// "suggestion.json" repeat forever; numbered files ("question.1.json",
// "question.2.json") are served first, in order, on successive calls.
//
// With -fenced every reply is wrapped in a ```json code fence, which
// exercises the fallback parsers.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Prompt kinds.
const (
	kindQuestion   = "question"
	kindSuggestion = "suggestion"
)

// --- Server ---

type server struct {
	fixtures map[string][]string // kind → ordered fixture contents
	fenced   bool
	logger   *slog.Logger

	calls atomic.Int64

	mu          sync.Mutex
	callsByKind map[string]int
}

func newServer(fixtures map[string][]string, fenced bool, logger *slog.Logger) *server {
	if fixtures == nil {
		fixtures = map[string][]string{}
	}
	return &server{
		fixtures:    fixtures,
		fenced:      fenced,
		logger:      logger,
		callsByKind: make(map[string]int),
	}
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files (optional)")
	port := flag.Int("port", 11434, "port to listen on")
	fenced := flag.Bool("fenced", false, "wrap replies in a ```json code fence")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if envDir := os.Getenv("MOCK_LLM_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	var fixtures map[string][]string
	if *fixtureDir != "" {
		var err error
		fixtures, err = loadFixtures(*fixtureDir)
		if err != nil {
			logger.Error("Failed to load fixtures", "dir", *fixtureDir, "error", err)
			os.Exit(1)
		}
		for kind, seq := range fixtures {
			logger.Info("Loaded fixtures", "kind", kind, "count", len(seq))
		}
	}

	s := newServer(fixtures, *fenced, logger)

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("Mock LLM server listening", "addr", addr, "fenced", *fenced)
	srv := &http.Server{Addr: addr, Handler: s.routes(), ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("GET /stats", s.handleStats)
	return mux
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	callNum := s.calls.Add(1)
	kind := promptKind(req.Messages)

	s.mu.Lock()
	index := s.callsByKind[kind]
	s.callsByKind[kind]++
	s.mu.Unlock()

	content := s.reply(kind, index, req.Messages)
	if s.fenced {
		content = "Here you go:\n```json\n" + content + "\n```"
	}

	s.logger.Debug("Completion served",
		"call", callNum,
		"model", req.Model,
		"kind", kind,
		"kind_call", index+1,
		"bytes", len(content))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4, // rough estimate
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// reply picks the fixture for the index-th call of kind, falling back to
// the built-in replies.
func (s *server) reply(kind string, index int, messages []chatMessage) string {
	if seq := s.fixtures[kind]; len(seq) > 0 {
		if index < len(seq) {
			return seq[index]
		}
		return seq[len(seq)-1]
	}

	if kind == kindSuggestion {
		return builtinSuggestions(userInput(messages))
	}
	return builtinQuestion(index)
}

// handleStats returns call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	byKind := make(map[string]int, len(s.callsByKind))
	for k, v := range s.callsByKind {
		byKind[k] = v
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":   s.calls.Load(),
		"calls_by_kind": byKind,
	})
}

// promptKind tells suggestion prompts from question prompts.
func promptKind(messages []chatMessage) string {
	for _, m := range messages {
		if m.Role == "system" && strings.Contains(strings.ToLower(m.Content), "suggestions") {
			return kindSuggestion
		}
	}
	return kindQuestion
}

// userInput extracts the "User Input:" line of a suggestion prompt.
func userInput(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		for _, line := range strings.Split(messages[i].Content, "\n") {
			if rest, ok := strings.CutPrefix(line, "User Input:"); ok {
				return strings.TrimSpace(rest)
			}
		}
	}
	return ""
}

// numberedFileRe matches files like "question.1.json".
var numberedFileRe = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads JSON files from dir and returns a map of kind→content sequence.
//
// For each kind, fixtures are ordered:
//  1. Numbered files (kind.1.json, kind.2.json, ...) in numeric order
//  2. Base file (kind.json) appended as the final fallback
func loadFixtures(dir string) (map[string][]string, error) {
	baseFiles := make(map[string]string)
	numberedFiles := make(map[string]map[int]string)

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("invalid JSON in %s", path)
		}
		content := strings.TrimSpace(string(data))

		if matches := numberedFileRe.FindStringSubmatch(info.Name()); matches != nil {
			kind := matches[1]
			index, _ := strconv.Atoi(matches[2])
			if numberedFiles[kind] == nil {
				numberedFiles[kind] = make(map[int]string)
			}
			numberedFiles[kind][index] = content
			return nil
		}

		baseFiles[strings.TrimSuffix(info.Name(), ".json")] = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	fixtures := make(map[string][]string)
	for kind, numbered := range numberedFiles {
		indices := make([]int, 0, len(numbered))
		for idx := range numbered {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		for _, idx := range indices {
			fixtures[kind] = append(fixtures[kind], numbered[idx])
		}
	}
	for kind, base := range baseFiles {
		fixtures[kind] = append(fixtures[kind], base)
	}

	for kind := range fixtures {
		if kind != kindQuestion && kind != kindSuggestion {
			return nil, fmt.Errorf("unknown fixture kind %q in %s (want %s or %s)", kind, dir, kindQuestion, kindSuggestion)
		}
	}
	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files found in %s", dir)
	}
	return fixtures, nil
}
