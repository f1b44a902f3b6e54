package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/llm"
	"github.com/c360studio/rolefit/metrics"
	"github.com/c360studio/rolefit/model"
	"github.com/c360studio/rolefit/prompts"
)

// ErrNoCategories is returned when a question is requested without any
// selected category.
var ErrNoCategories = errors.New("selected categories are required")

// QuestionGenerator produces one question per call.
type QuestionGenerator struct {
	client llm.Completer
	opts   options
}

// NewQuestionGenerator creates a generator over client.
func NewQuestionGenerator(client llm.Completer, opts ...Option) *QuestionGenerator {
	return &QuestionGenerator{client: client, opts: buildOptions(opts)}
}

// Generate asks the model for the next question. Transport failures come
// back as *assessment.GenerationError and unreadable output as
// *assessment.GenerationParseError; both match assessment.ErrGenerationFailed.
// Nothing is retried here.
func (g *QuestionGenerator) Generate(ctx context.Context, req assessment.QuestionRequest) (*assessment.Question, error) {
	if len(req.SelectedCategories) == 0 {
		return nil, ErrNoCategories
	}

	if g.opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.timeout)
		defer cancel()
	}

	number := req.Number()
	log := g.opts.logger.With("component", "question-generator", "question_number", number)
	started := time.Now()

	temp := g.opts.temperature
	resp, err := g.client.Complete(ctx, llm.Request{
		Capability: model.CapabilityQuestion,
		Messages: []llm.Message{
			{Role: "system", Content: prompts.QuestionSystemPrompt()},
			{Role: "user", Content: prompts.QuestionPrompt(req)},
		},
		Temperature: &temp,
		MaxTokens:   g.opts.maxTokens,
	})
	if err != nil {
		g.opts.metrics.ObserveGeneration(metrics.KindQuestion, metrics.OutcomeTransport, time.Since(started))
		log.Warn("Question generation failed", "error", err, "duration", time.Since(started))
		return nil, assessment.NewGenerationError("generate question", err)
	}

	payload, strategy, err := llm.Decode[assessment.QuestionPayload](llm.ObjectChain, resp.Content)
	if err == nil && payload.Text == "" {
		err = errors.New("question payload has no text")
	}
	if err != nil {
		g.opts.metrics.ObserveGeneration(metrics.KindQuestion, metrics.OutcomeParse, time.Since(started))
		log.Warn("Question output unreadable",
			"request_id", resp.RequestID,
			"error", err,
			"raw_length", len(resp.Content))
		return nil, &assessment.GenerationParseError{Raw: resp.Content, Err: fmt.Errorf("question %d: %w", number, err)}
	}

	g.opts.metrics.ObserveGeneration(metrics.KindQuestion, metrics.OutcomeOK, time.Since(started))
	g.opts.metrics.ObserveStrategy(metrics.KindQuestion, strategy)
	log.Debug("Question generated",
		"request_id", resp.RequestID,
		"model", resp.Model,
		"strategy", strategy,
		"duration", time.Since(started))

	return payload.Normalize(number), nil
}
