package session

import "github.com/c360studio/rolefit/assessment"

// Progress is the position shown to the user: Current is 1-based and
// Total never drops below the question limit.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// View is a read-only snapshot of a session, safe to hand to a renderer.
type View struct {
	ID                 string                `json:"id"`
	Step               Step                  `json:"step"`
	SelectedCategories []assessment.Category `json:"selectedCategories"`
	QuestionCount      int                   `json:"questionCount"`
	Index              int                   `json:"index"`
	Current            *assessment.Question  `json:"current,omitempty"`
	SelectedOptions    []string              `json:"selectedOptions"`
	OtherText          string                `json:"otherText"`
	Suggestions        []string              `json:"suggestions"`
	Generating         bool                  `json:"generating"`
	Progress           Progress              `json:"progress"`

	// IsLast is set on the final question, when advancing completes.
	IsLast bool `json:"isLast"`

	// CanRetreat is false on the first question.
	CanRetreat bool `json:"canRetreat"`

	// Result is set once the session is complete.
	Result *assessment.Result `json:"result,omitempty"`
}
