package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/config"
)

const fakeQuestion = `{"text":"How do you review code?","primaryCategory":"Technical or role-specific skills","options":["A","B","C","D"],"maxAnswerTime":60}`

// fakeModel answers OpenAI chat requests with a question, or with a
// suggestion array when the system prompt asks for suggestions.
func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		content := fakeQuestion
		if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "suggestions") {
			content = `["code review checklists","pairing"]`
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": req.Model,
			"choices": []map[string]any{{
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(ts.Close)
	return ts
}

func testConfig(modelURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Model.Provider = "openai"
	cfg.Model.Endpoint = modelURL + "/v1"
	cfg.Model.Name = "fake"
	cfg.Server.ShutdownTimeout = 5 * time.Second
	cfg.Assessment.SuggestionDelay = 5 * time.Millisecond
	return cfg
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startApp serves an App on a random port and returns its base URL and a
// function that stops it and reports the Serve error.
func startApp(t *testing.T, cfg *config.Config) (*App, string, func() error) {
	t.Helper()
	app, err := newApp(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx, ln) }()

	stop := func() error {
		cancel()
		select {
		case err := <-done:
			app.Close()
			return err
		case <-time.After(10 * time.Second):
			t.Fatal("Serve did not return after cancel")
			return nil
		}
	}
	return app, "http://" + ln.Addr().String(), stop
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func TestAppServesAndShutsDown(t *testing.T) {
	model := fakeModel(t)
	app, base, stop := startApp(t, testConfig(model.URL))

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	resp = postJSON(t, base+"/api/generate-question", assessment.QuestionRequest{
		SelectedCategories: []assessment.Category{assessment.CategoryTechnical},
		QuestionNumber:     2,
	})
	var qr struct {
		Question assessment.Question `json:"question"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		t.Fatalf("decode question: %v", err)
	}
	resp.Body.Close()
	if qr.Question.ID != "q2" || qr.Question.Text != "How do you review code?" {
		t.Errorf("unexpected question %+v", qr.Question)
	}

	resp = postJSON(t, base+"/api/generate-suggestions", assessment.SuggestionRequest{
		QuestionText: "How do you review code?",
		UserInput:    "co",
	})
	var sr struct {
		Suggestions []string `json:"suggestions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	resp.Body.Close()
	if len(sr.Suggestions) != 2 {
		t.Errorf("suggestions = %v", sr.Suggestions)
	}

	resp = postJSON(t, base+"/api/sessions", struct{}{})
	var view struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || view.ID == "" {
		t.Fatalf("create session: status %d, view %+v", resp.StatusCode, view)
	}
	if app.sessions.Len() != 1 {
		t.Errorf("sessions = %d, want 1", app.sessions.Len())
	}

	resp, err = http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}

	if err := stop(); err != nil {
		t.Fatalf("Serve returned %v", err)
	}
	if app.sessions.Len() != 0 {
		t.Errorf("sessions left after shutdown: %d", app.sessions.Len())
	}
}

func TestAppResultsRouteNeedsRecorder(t *testing.T) {
	_, base, stop := startApp(t, testConfig(fakeModel(t).URL))
	defer func() { _ = stop() }()

	resp, err := http.Get(base + "/api/results/abc")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestApplyConfigReplacesModel(t *testing.T) {
	cfg := testConfig("http://old.invalid")
	app, err := newApp(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	defer app.Close()

	next := testConfig("http://new.invalid")
	next.Model.Name = "newer"
	next.Model.Fallback = []config.FallbackModel{{Provider: "ollama", Name: "llama3"}}
	app.applyConfig(next)

	primary := app.registry.GetEndpoint("primary")
	if primary == nil || primary.Model != "newer" || primary.URL != "http://new.invalid/v1" {
		t.Fatalf("primary endpoint = %+v", primary)
	}
	if fb := app.registry.GetEndpoint("fallback-1"); fb == nil || fb.Model != "llama3" {
		t.Errorf("fallback endpoint = %+v", fb)
	}
}

func TestNewAppFailsWithoutNATS(t *testing.T) {
	cfg := testConfig("http://unused.invalid")
	cfg.NATS.URL = "nats://127.0.0.1:1"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := newApp(ctx, cfg, discardLogger()); err == nil {
		t.Fatal("expected error when NATS is unreachable")
	}
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out.String(), "rolefit version "+Version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestCategoriesCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"categories"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, c := range assessment.Categories() {
		if !strings.Contains(out.String(), string(c)) {
			t.Errorf("output missing category %q", c)
		}
	}
}

func TestEnvFileMissing(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"version", "--env-file", t.TempDir() + "/missing.env"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestModelsCommand(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/rolefit.yaml"
	cfg := config.DefaultConfig()
	cfg.Model.Name = "llama3"
	cfg.Model.Provider = "ollama"
	cfg.Model.Fallback = []config.FallbackModel{{Provider: "openai", Name: "gpt-4o-mini"}}
	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile: %v", err)
	}

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"models", "--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for _, want := range []string{"primary:", "fallback-1", "model: llama3", "provider: ollama"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
