package generator

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/llm"
	"github.com/c360studio/rolefit/metrics"
	"github.com/c360studio/rolefit/model"
	"github.com/c360studio/rolefit/prompts"
)

// ErrMissingInput is returned when question text or user input is empty.
var ErrMissingInput = errors.New("question text and user input are required")

// SuggestionGenerator produces completions for the free-text answer field.
type SuggestionGenerator struct {
	client llm.Completer
	opts   options
}

// NewSuggestionGenerator creates a generator over client.
func NewSuggestionGenerator(client llm.Completer, opts ...Option) *SuggestionGenerator {
	return &SuggestionGenerator{client: client, opts: buildOptions(opts)}
}

// Limit is the most suggestions Suggest returns.
func (g *SuggestionGenerator) Limit() int { return g.opts.maxSuggestions }

// Suggest returns at most Limit suggestions. Output that cannot be read as
// a string array yields an empty list and a nil error; only a failed call
// to the model is an error.
func (g *SuggestionGenerator) Suggest(ctx context.Context, req assessment.SuggestionRequest) ([]string, error) {
	if strings.TrimSpace(req.QuestionText) == "" || req.UserInput == "" {
		return nil, ErrMissingInput
	}

	if g.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.timeout)
		defer cancel()
	}

	log := g.opts.logger.With("component", "suggestion-generator")
	started := time.Now()

	temp := g.opts.temperature
	resp, err := g.client.Complete(ctx, llm.Request{
		Capability: model.CapabilitySuggestion,
		Messages: []llm.Message{
			{Role: "system", Content: prompts.SuggestionSystemPrompt(g.opts.maxSuggestions)},
			{Role: "user", Content: prompts.SuggestionPrompt(req)},
		},
		Temperature: &temp,
		MaxTokens:   g.opts.maxTokens,
	})
	if err != nil {
		g.opts.metrics.ObserveGeneration(metrics.KindSuggestion, metrics.OutcomeTransport, time.Since(started))
		log.Warn("Suggestion generation failed", "error", err)
		return nil, assessment.NewGenerationError("generate suggestions", err)
	}

	suggestions, strategy, err := llm.Decode[[]string](llm.ArrayChain, resp.Content)
	if err != nil {
		g.opts.metrics.ObserveGeneration(metrics.KindSuggestion, metrics.OutcomeDegraded, time.Since(started))
		log.Debug("Suggestion output unreadable, returning none",
			"request_id", resp.RequestID,
			"error", err)
		return []string{}, nil
	}

	g.opts.metrics.ObserveGeneration(metrics.KindSuggestion, metrics.OutcomeOK, time.Since(started))
	g.opts.metrics.ObserveStrategy(metrics.KindSuggestion, strategy)

	if suggestions == nil {
		suggestions = []string{}
	}
	if len(suggestions) > g.opts.maxSuggestions {
		suggestions = suggestions[:g.opts.maxSuggestions]
	}
	return suggestions, nil
}
