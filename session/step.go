// Package session implements the assessment state machine: category
// selection, generated questions with their answers, debounced free-text
// suggestions, and completion. A Manager keeps sessions in memory by id.
package session

// Step is the phase a session is in.
type Step string

const (
	// StepSelectingCategories is the initial step.
	StepSelectingCategories Step = "selecting-categories"
	// StepAnsweringQuestions holds while questions are generated and answered.
	StepAnsweringQuestions Step = "answering-questions"
	// StepComplete is reached by advancing past the last question.
	StepComplete Step = "complete"
)

// String returns the string representation of the step.
func (s Step) String() string {
	return string(s)
}

// IsValid reports whether s is a known step.
func (s Step) IsValid() bool {
	switch s {
	case StepSelectingCategories, StepAnsweringQuestions, StepComplete:
		return true
	default:
		return false
	}
}

// CanTransitionTo reports whether a session may move from s to target.
// Reset is the only way out of complete.
func (s Step) CanTransitionTo(target Step) bool {
	switch s {
	case StepSelectingCategories:
		return target == StepAnsweringQuestions
	case StepAnsweringQuestions:
		return target == StepComplete || target == StepSelectingCategories
	case StepComplete:
		return target == StepSelectingCategories
	default:
		return false
	}
}
