package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/generator"
	"github.com/c360studio/rolefit/llm"
	_ "github.com/c360studio/rolefit/llm/providers"
	"github.com/c360studio/rolefit/model"
	"github.com/c360studio/rolefit/prompts"
)

func TestLoadFixtures_BaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "question.json", `{"text":"fixture question"}`)
	writeFixture(t, dir, "suggestion.json", `["a","b"]`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}
	if len(fixtures) != 2 {
		t.Fatalf("expected 2 kinds, got %d", len(fixtures))
	}
	for kind, seq := range fixtures {
		if len(seq) != 1 {
			t.Errorf("kind %q: expected 1 fixture, got %d", kind, len(seq))
		}
	}
}

func TestLoadFixtures_Sequential(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "question.2.json", `{"text":"second"}`)
	writeFixture(t, dir, "question.1.json", `{"text":"first"}`)
	writeFixture(t, dir, "question.json", `{"text":"fallback"}`)

	fixtures, err := loadFixtures(dir)
	if err != nil {
		t.Fatalf("loadFixtures: %v", err)
	}

	seq := fixtures[kindQuestion]
	if len(seq) != 3 {
		t.Fatalf("expected 3 fixtures, got %d", len(seq))
	}
	for i, want := range []string{"first", "second", "fallback"} {
		if !strings.Contains(seq[i], want) {
			t.Errorf("fixture[%d] = %s, want it to contain %q", i, seq[i], want)
		}
	}
}

func TestLoadFixtures_Errors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
	}{
		{"empty dir", nil},
		{"invalid json", map[string]string{"question.json": `{not json`}},
		{"unknown kind", map[string]string{"planner.json": `{}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for name, content := range tt.files {
				writeFixture(t, dir, name, content)
			}
			if _, err := loadFixtures(dir); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNumberedFileRegex(t *testing.T) {
	tests := []struct {
		name      string
		wantMatch bool
		wantKind  string
		wantIndex string
	}{
		{"question.1.json", true, "question", "1"},
		{"suggestion.12.json", true, "suggestion", "12"},
		{"question.json", false, "", ""},
		{"question.a.json", false, "", ""},
	}
	for _, tt := range tests {
		m := numberedFileRe.FindStringSubmatch(tt.name)
		if (m != nil) != tt.wantMatch {
			t.Errorf("%s: match = %v, want %v", tt.name, m != nil, tt.wantMatch)
			continue
		}
		if m != nil && (m[1] != tt.wantKind || m[2] != tt.wantIndex) {
			t.Errorf("%s: got kind=%q index=%q", tt.name, m[1], m[2])
		}
	}
}

func TestPromptKind(t *testing.T) {
	suggestion := []chatMessage{
		{Role: "system", Content: prompts.SuggestionSystemPrompt(5)},
		{Role: "user", Content: "Question: Q\nUser Input: pair"},
	}
	if got := promptKind(suggestion); got != kindSuggestion {
		t.Errorf("suggestion prompt kind = %q", got)
	}

	question := []chatMessage{
		{Role: "system", Content: prompts.QuestionSystemPrompt()},
		{Role: "user", Content: "Question Number: 1"},
	}
	if got := promptKind(question); got != kindQuestion {
		t.Errorf("question prompt kind = %q", got)
	}
}

func TestBuiltinQuestionsCycle(t *testing.T) {
	s := newTestServer(t, nil, false)

	var first string
	for i := range len(questionBank) + 1 {
		content := doCompletion(t, s, questionMessages())
		var q mockQuestion
		if err := json.Unmarshal([]byte(content), &q); err != nil {
			t.Fatalf("call %d: reply is not a question: %v", i+1, err)
		}
		if len(q.Options) != 4 {
			t.Errorf("call %d: expected 4 options, got %d", i+1, len(q.Options))
		}
		if i == 0 {
			first = q.Text
		}
		if i == len(questionBank) && q.Text != first {
			t.Errorf("bank should wrap around, got %q", q.Text)
		}
	}
}

func TestBuiltinSuggestionsUseInput(t *testing.T) {
	s := newTestServer(t, nil, false)

	content := doCompletion(t, s, suggestionMessages("code review"))
	var got []string
	if err := json.Unmarshal([]byte(content), &got); err != nil {
		t.Fatalf("reply is not an array: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 suggestions, got %d", len(got))
	}
	for _, suggestion := range got {
		if !strings.HasPrefix(suggestion, "code review ") {
			t.Errorf("suggestion %q does not extend the input", suggestion)
		}
	}
}

func TestSequentialFixtureSelection(t *testing.T) {
	fixtures := map[string][]string{
		kindQuestion: {`{"text":"one"}`, `{"text":"two"}`},
	}
	s := newTestServer(t, fixtures, false)

	for i, want := range []string{"one", "two", "two"} {
		content := doCompletion(t, s, questionMessages())
		if !strings.Contains(content, want) {
			t.Errorf("call %d: got %s, want %q", i+1, content, want)
		}
	}

	// Suggestions have no fixture and fall back to the built-in reply.
	if content := doCompletion(t, s, suggestionMessages("x")); !strings.HasPrefix(content, "[") {
		t.Errorf("suggestion reply = %s", content)
	}
}

func TestFencedReplies(t *testing.T) {
	s := newTestServer(t, nil, true)

	content := doCompletion(t, s, suggestionMessages("abc"))
	if !strings.Contains(content, "```json\n[") || !strings.HasSuffix(content, "```") {
		t.Errorf("reply not fenced: %s", content)
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t, nil, false)
	doCompletion(t, s, questionMessages())
	doCompletion(t, s, questionMessages())
	doCompletion(t, s, suggestionMessages("abc"))

	resp, err := http.Get(s.URL + "/stats")
	if err != nil {
		t.Fatalf("GET /stats: %v", err)
	}
	defer resp.Body.Close()

	var stats struct {
		TotalCalls  int64          `json:"total_calls"`
		CallsByKind map[string]int `json:"calls_by_kind"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.TotalCalls != 3 {
		t.Errorf("total_calls = %d, want 3", stats.TotalCalls)
	}
	if stats.CallsByKind[kindQuestion] != 2 || stats.CallsByKind[kindSuggestion] != 1 {
		t.Errorf("calls_by_kind = %v", stats.CallsByKind)
	}
}

func TestBadRequest(t *testing.T) {
	s := newTestServer(t, nil, false)
	resp, err := http.Post(s.URL+"/v1/chat/completions", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

// The generators must be able to read every built-in reply, fenced or not.
func TestGeneratorsReadReplies(t *testing.T) {
	for _, fenced := range []bool{false, true} {
		s := newTestServer(t, nil, fenced)

		registry := model.NewRegistry(
			map[model.Capability]*model.CapabilityConfig{
				model.CapabilityQuestion:   {Preferred: []string{"mock"}},
				model.CapabilitySuggestion: {Preferred: []string{"mock"}},
			},
			map[string]*model.EndpointConfig{
				"mock": {Provider: "openai", URL: s.URL + "/v1", Model: "mock"},
			},
			"mock",
		)
		client := llm.NewClient(registry, llm.WithLogger(discardLogger()))
		ctx := context.Background()

		q, err := generator.NewQuestionGenerator(client, generator.WithLogger(discardLogger())).
			Generate(ctx, assessment.QuestionRequest{
				SelectedCategories: []assessment.Category{assessment.CategoryTechnical},
				QuestionNumber:     1,
			})
		if err != nil {
			t.Fatalf("fenced=%v: generate question: %v", fenced, err)
		}
		if q.ID != "q1" || q.Text == "" {
			t.Errorf("fenced=%v: unexpected question %+v", fenced, q)
		}
		if q.Options[len(q.Options)-1] != assessment.OtherOption {
			t.Errorf("fenced=%v: last option = %q", fenced, q.Options[len(q.Options)-1])
		}

		suggestions, err := generator.NewSuggestionGenerator(client, generator.WithLogger(discardLogger())).
			Suggest(ctx, assessment.SuggestionRequest{QuestionText: q.Text, UserInput: "pair"})
		if err != nil {
			t.Fatalf("fenced=%v: suggest: %v", fenced, err)
		}
		if len(suggestions) != 5 {
			t.Errorf("fenced=%v: got %d suggestions", fenced, len(suggestions))
		}
	}
}

// --- helpers ---

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("write fixture %s: %v", name, err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, fixtures map[string][]string, fenced bool) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(newServer(fixtures, fenced, discardLogger()).routes())
	t.Cleanup(ts.Close)
	return ts
}

func questionMessages() []chatMessage {
	return []chatMessage{
		{Role: "system", Content: prompts.QuestionSystemPrompt()},
		{Role: "user", Content: "Question Number: 1"},
	}
}

func suggestionMessages(input string) []chatMessage {
	return []chatMessage{
		{Role: "system", Content: prompts.SuggestionSystemPrompt(5)},
		{Role: "user", Content: prompts.SuggestionPrompt(assessment.SuggestionRequest{QuestionText: "Q", UserInput: input})},
	}
}

func doCompletion(t *testing.T, ts *httptest.Server, messages []chatMessage) string {
	t.Helper()
	body, _ := json.Marshal(chatRequest{Model: "mock", Messages: messages})
	resp, err := http.Post(ts.URL+"/v1/chat/completions", "application/json", strings.NewReader(string(body)))
	if err != nil {
		t.Fatalf("POST completion: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(cr.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(cr.Choices))
	}
	return cr.Choices[0].Message.Content
}
