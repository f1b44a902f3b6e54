package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/metrics"
	"github.com/google/uuid"
)

// QuestionSource generates the next question. generator.QuestionGenerator
// implements it.
type QuestionSource interface {
	Generate(ctx context.Context, req assessment.QuestionRequest) (*assessment.Question, error)
}

// SuggestionSource completes free text. generator.SuggestionGenerator
// implements it.
type SuggestionSource interface {
	Suggest(ctx context.Context, req assessment.SuggestionRequest) ([]string, error)
}

// CompletionHook receives the result when a session completes. It runs
// synchronously on the goroutine that completed the session, after the
// session lock is released.
type CompletionHook func(ctx context.Context, result *assessment.Result)

// Config holds the tunables of a session.
type Config struct {
	// SuggestionDelay is the debounce quiet period.
	SuggestionDelay time.Duration `yaml:"suggestion_delay"`

	// MinSuggestionInput is the shortest free text, in characters, that
	// triggers a suggestion fetch.
	MinSuggestionInput int `yaml:"min_suggestion_input"`

	// MaxSuggestions caps the suggestion list.
	MaxSuggestions int `yaml:"max_suggestions"`

	// SuggestionTimeout bounds a single suggestion call. 0 disables it.
	SuggestionTimeout time.Duration `yaml:"suggestion_timeout"`
}

// DefaultConfig returns the settings of the original assessment flow.
func DefaultConfig() Config {
	return Config{
		SuggestionDelay:    DefaultSuggestionDelay,
		MinSuggestionInput: 2,
		MaxSuggestions:     5,
		SuggestionTimeout:  15 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SuggestionDelay <= 0 {
		c.SuggestionDelay = d.SuggestionDelay
	}
	if c.MinSuggestionInput <= 0 {
		c.MinSuggestionInput = d.MinSuggestionInput
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = d.MaxSuggestions
	}
	return c
}

// Option configures a Machine.
type Option func(*Machine)

// WithID sets the session id. The default is a random uuid.
func WithID(id string) Option {
	return func(m *Machine) { m.id = id }
}

// WithConfig sets the session tunables.
func WithConfig(cfg Config) Option {
	return func(m *Machine) { m.cfg = cfg.withDefaults() }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithMetrics records completions and superseded suggestion results.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Machine) { m.metrics = mt }
}

// WithCompletionHook sets the function that receives completed results.
func WithCompletionHook(h CompletionHook) Option {
	return func(m *Machine) { m.onComplete = h }
}

// Machine is one assessment session. All methods are safe for concurrent
// use. Intents that do not apply in the current state are no-ops, except
// ContinueToQuestions, which reports an InvalidTransition.
//
// The session lock is never held across a gateway call. A question result
// is applied only if the session was not reset while it was outstanding,
// and a suggestion result only if it still matches the current question
// and free text.
type Machine struct {
	id          string
	questions   QuestionSource
	suggestions SuggestionSource
	cfg         Config
	logger      *slog.Logger
	metrics     *metrics.Metrics
	onComplete  CompletionHook
	debouncer   *Debouncer

	mu           sync.Mutex
	step         Step
	categories   []assessment.Category
	accepted     []*assessment.Question
	answers      map[string][]string
	otherText    map[string]string
	index        int
	generating   bool
	epoch        uint64
	suggestList  []string
	result       *assessment.Result
	lastActivity time.Time
}

// NewMachine creates a session in the selecting-categories step.
func NewMachine(questions QuestionSource, suggestions SuggestionSource, opts ...Option) *Machine {
	m := &Machine{
		id:          uuid.New().String(),
		questions:   questions,
		suggestions: suggestions,
		cfg:         DefaultConfig(),
		logger:      slog.Default(),
		step:        StepSelectingCategories,
		answers:     make(map[string][]string),
		otherText:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("session_id", m.id)
	m.debouncer = NewDebouncer(m.cfg.SuggestionDelay, m.fetchSuggestions)
	m.lastActivity = time.Now()
	return m
}

// ID returns the session id.
func (m *Machine) ID() string { return m.id }

// LastActivity returns when the session last received an intent.
func (m *Machine) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Close stops any scheduled suggestion fetch. The session must not be
// used afterward.
func (m *Machine) Close() {
	m.debouncer.Close()
}

// ToggleCategory adds cat to the selection, or removes it if present.
// Unknown categories and calls outside category selection are ignored.
func (m *Machine) ToggleCategory(cat assessment.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	if m.step != StepSelectingCategories || !cat.IsValid() {
		return
	}
	if i := slices.Index(m.categories, cat); i >= 0 {
		m.categories = slices.Delete(m.categories, i, i+1)
		return
	}
	m.categories = append(m.categories, cat)
}

// ContinueToQuestions leaves category selection and generates the first
// question. It fails with an InvalidTransition when no category is
// selected or the session is past selection, and with a GenerationFailed
// error when the first question cannot be generated. In that case the
// session stays in answering-questions with no question, and Advance
// retries.
func (m *Machine) ContinueToQuestions(ctx context.Context) error {
	m.mu.Lock()
	m.touch()
	if m.step != StepSelectingCategories {
		step := m.step
		m.mu.Unlock()
		return &assessment.TransitionError{Op: "continue", Step: step.String(), Reason: "questions already started"}
	}
	if len(m.categories) == 0 {
		m.mu.Unlock()
		return &assessment.TransitionError{
			Op:     "continue",
			Step:   m.step.String(),
			Reason: "cannot continue without at least one category",
		}
	}
	m.step = StepAnsweringQuestions
	m.index = 0
	m.mu.Unlock()

	return m.requestQuestion(ctx)
}

// Advance moves to the next question, generating it when it does not
// exist yet, or completes the session after the last question. It is a
// no-op while a question is being generated.
func (m *Machine) Advance(ctx context.Context) error {
	m.mu.Lock()
	m.touch()
	if m.step != StepAnsweringQuestions || m.generating {
		m.mu.Unlock()
		return nil
	}

	switch {
	case len(m.accepted) > 0 && m.index < len(m.accepted)-1:
		m.index++
		m.clearSuggestionsLocked()
		m.mu.Unlock()
		return nil

	case len(m.accepted) < assessment.MaxQuestions:
		m.mu.Unlock()
		return m.requestQuestion(ctx)

	default:
		m.completeLocked()
		result := m.result
		hook := m.onComplete
		m.mu.Unlock()

		m.metrics.SessionCompleted()
		m.logger.Info("Assessment complete", "questions", len(result.Questions))
		if hook != nil {
			hook(ctx, result)
		}
		return nil
	}
}

// Retreat moves to the previous question. It is a no-op on the first.
func (m *Machine) Retreat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	if m.step != StepAnsweringQuestions || m.index == 0 {
		return
	}
	m.index--
	m.clearSuggestionsLocked()
}

// ToggleOption flips option in the current question's answers. Options are
// not checked against the question's list. Deselecting Other discards its
// free text and suggestions.
func (m *Machine) ToggleOption(option string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	q := m.currentLocked()
	if q == nil {
		return
	}

	selected := m.answers[q.ID]
	if i := slices.Index(selected, option); i >= 0 {
		m.answers[q.ID] = slices.Delete(selected, i, i+1)
		if option == assessment.OtherOption {
			delete(m.otherText, q.ID)
			m.clearSuggestionsLocked()
		}
		return
	}
	m.answers[q.ID] = append(selected, option)
}

// SetOtherText replaces the current question's free text. Text of at least
// the configured minimum length schedules a suggestion fetch; shorter text
// clears suggestions at once.
func (m *Machine) SetOtherText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	q := m.currentLocked()
	if q == nil {
		return
	}

	m.otherText[q.ID] = text
	if utf8.RuneCountInString(text) < m.cfg.MinSuggestionInput {
		m.clearSuggestionsLocked()
		return
	}
	m.debouncer.Schedule(q.ID, text)
}

// SelectSuggestion puts suggestion into the free text verbatim and closes
// the suggestion list. It does not change whether Other is selected.
func (m *Machine) SelectSuggestion(suggestion string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	q := m.currentLocked()
	if q == nil {
		return
	}
	m.otherText[q.ID] = suggestion
	m.clearSuggestionsLocked()
}

// DismissSuggestions closes the suggestion list, as when the field loses
// focus.
func (m *Machine) DismissSuggestions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()
	m.clearSuggestionsLocked()
}

// Reset discards everything and returns to category selection. Results
// of calls still outstanding are dropped when they arrive.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touch()

	m.epoch++
	m.step = StepSelectingCategories
	m.categories = nil
	m.accepted = nil
	m.answers = make(map[string][]string)
	m.otherText = make(map[string]string)
	m.index = 0
	m.generating = false
	m.result = nil
	m.clearSuggestionsLocked()
}

// View returns a snapshot of the session.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		ID:                 m.id,
		Step:               m.step,
		SelectedCategories: slices.Clone(m.categories),
		QuestionCount:      len(m.accepted),
		Index:              m.index,
		SelectedOptions:    []string{},
		Suggestions:        slices.Clone(m.suggestList),
		Generating:         m.generating,
		Progress: Progress{
			Current: m.index + 1,
			Total:   max(len(m.accepted), assessment.MaxQuestions),
		},
		CanRetreat: m.step == StepAnsweringQuestions && m.index > 0,
		Result:     m.result,
	}
	if v.SelectedCategories == nil {
		v.SelectedCategories = []assessment.Category{}
	}
	if v.Suggestions == nil {
		v.Suggestions = []string{}
	}

	if q := m.currentLocked(); q != nil {
		v.Current = q
		v.SelectedOptions = append(v.SelectedOptions, m.answers[q.ID]...)
		v.OtherText = m.otherText[q.ID]
		v.IsLast = len(m.accepted) >= assessment.MaxQuestions && m.index == len(m.accepted)-1
	}
	return v
}

// requestQuestion generates question number len(accepted)+1. A call made
// while another is outstanding returns nil without doing anything.
func (m *Machine) requestQuestion(ctx context.Context) error {
	m.mu.Lock()
	if m.generating || m.step != StepAnsweringQuestions || len(m.accepted) >= assessment.MaxQuestions {
		m.mu.Unlock()
		return nil
	}
	m.generating = true
	epoch := m.epoch
	startIndex := m.index
	req := m.questionRequestLocked()
	m.mu.Unlock()

	q, err := m.questions.Generate(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()

	if epoch != m.epoch {
		m.logger.Debug("Discarding question for a reset session", "question_number", req.QuestionNumber)
		return nil
	}
	m.generating = false

	if err != nil {
		m.logger.Warn("Question generation failed", "question_number", req.QuestionNumber, "error", err)
		return fmt.Errorf("question %d: %w", req.QuestionNumber, err)
	}

	m.accepted = append(m.accepted, q)
	if m.index == startIndex {
		m.index = len(m.accepted) - 1
		m.clearSuggestionsLocked()
	}
	return nil
}

// questionRequestLocked builds the generator input. Caller holds m.mu.
func (m *Machine) questionRequestLocked() assessment.QuestionRequest {
	prior := make([]assessment.PriorQuestion, len(m.accepted))
	for i, q := range m.accepted {
		prior[i] = q.Prior()
	}
	return assessment.QuestionRequest{
		SelectedCategories: slices.Clone(m.categories),
		PreviousQuestions:  prior,
		PreviousAnswers:    assessment.MergeAnswers(m.answers, m.otherText),
		QuestionNumber:     len(m.accepted) + 1,
	}
}

// completeLocked moves to complete and builds the result. Caller holds m.mu.
func (m *Machine) completeLocked() {
	m.step = StepComplete
	m.clearSuggestionsLocked()
	m.result = &assessment.Result{
		SessionID:          m.id,
		SelectedCategories: slices.Clone(m.categories),
		Questions:          slices.Clone(m.accepted),
		Answers:            assessment.MergeAnswers(m.answers, m.otherText),
		CompletedAt:        time.Now().UTC(),
	}
}

// currentLocked returns the question being answered, or nil. Caller holds m.mu.
func (m *Machine) currentLocked() *assessment.Question {
	if m.step != StepAnsweringQuestions || m.index >= len(m.accepted) {
		return nil
	}
	return m.accepted[m.index]
}

// clearSuggestionsLocked closes the list and supersedes any fetch.
// Caller holds m.mu.
func (m *Machine) clearSuggestionsLocked() {
	m.suggestList = nil
	m.debouncer.Cancel()
}

// touch records activity. Caller holds m.mu.
func (m *Machine) touch() {
	m.lastActivity = time.Now()
}

// fetchSuggestions runs on the debouncer's timer goroutine.
func (m *Machine) fetchSuggestions(ctx context.Context, ticket uint64, questionID, text string) {
	m.mu.Lock()
	q := m.currentLocked()
	if q == nil || q.ID != questionID {
		m.mu.Unlock()
		return
	}
	req := assessment.SuggestionRequest{QuestionText: q.Text, UserInput: text}
	m.mu.Unlock()

	if m.cfg.SuggestionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.SuggestionTimeout)
		defer cancel()
	}

	suggestions, err := m.suggestions.Suggest(ctx, req)
	if err != nil {
		// Suggestions degrade silently; the field keeps working without them.
		m.logger.Debug("Suggestion fetch failed", "question_id", questionID, "error", err)
		suggestions = nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.currentLocked()
	if !m.debouncer.Current(ticket) || current == nil || current.ID != questionID || m.otherText[questionID] != text {
		m.metrics.CountSuperseded()
		return
	}
	if len(suggestions) > m.cfg.MaxSuggestions {
		suggestions = suggestions[:m.cfg.MaxSuggestions]
	}
	m.suggestList = slices.Clone(suggestions)
}
