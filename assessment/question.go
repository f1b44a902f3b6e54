package assessment

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

const (
	// MaxQuestions is the number of accepted questions that completes a session.
	MaxQuestions = 10

	// OtherOption is the mandatory free-text option on every question.
	OtherOption = "Other"

	// DefaultMaxAnswerTime is applied when the generator omits an answer budget.
	DefaultMaxAnswerTime = 90
)

// Question is a generated assessment question. Questions are immutable once
// created; callers must not modify the slices or map they expose.
type Question struct {
	ID                     string         `json:"id"`
	Text                   string         `json:"text"`
	PrimaryCategory        Category       `json:"primaryCategory"`
	SecondTierCompetencies []string       `json:"secondTierCompetencies"`
	Options                []string       `json:"options"`
	WhatItMeasures         string         `json:"whatItMeasures"`
	MaxAnswerTime          int            `json:"maxAnswerTime"`
	ScoringGuide           map[int]string `json:"scoringGuide"`
}

// QuestionID derives the identifier of the question at a 1-based position.
func QuestionID(number int) string {
	return "q" + strconv.Itoa(number)
}

// PriorQuestion is the redacted view of an accepted question sent back to the
// generator so it can avoid repeats.
type PriorQuestion struct {
	Text            string   `json:"text"`
	PrimaryCategory Category `json:"primaryCategory"`
}

// QuestionRequest is the context handed to a question generator.
type QuestionRequest struct {
	SelectedCategories []Category          `json:"selectedCategories"`
	PreviousQuestions  []PriorQuestion     `json:"previousQuestions"`
	PreviousAnswers    map[string][]string `json:"previousAnswers"`
	QuestionNumber     int                 `json:"questionNumber"`
}

// Number returns the requested question number, treating zero or negative as 1.
// Values above MaxQuestions are passed through; the generator is advisory.
func (r QuestionRequest) Number() int {
	if r.QuestionNumber <= 0 {
		return 1
	}
	return r.QuestionNumber
}

// SuggestionRequest is the context handed to a suggestion generator.
type SuggestionRequest struct {
	QuestionText string `json:"questionText"`
	UserInput    string `json:"userInput"`
}

// QuestionPayload is the loosely-typed question object a generator returns.
// Every field is optional; Normalize fills the documented defaults.
type QuestionPayload struct {
	Text                   string            `json:"text"`
	PrimaryCategory        string            `json:"primaryCategory"`
	SecondTierCompetencies []string          `json:"secondTierCompetencies"`
	Options                []string          `json:"options"`
	WhatItMeasures         string            `json:"whatItMeasures"`
	MaxAnswerTime          float64           `json:"maxAnswerTime"`
	ScoringGuide           map[string]string `json:"scoringGuide"`
}

// Normalize turns a payload into the Question at the given 1-based position.
// "Other" is appended when absent; an already-present "Other" is left where it is.
func (p QuestionPayload) Normalize(number int) *Question {
	if number <= 0 {
		number = 1
	}

	options := make([]string, 0, len(p.Options)+1)
	options = append(options, p.Options...)
	if !slices.Contains(options, OtherOption) {
		options = append(options, OtherOption)
	}

	competencies := p.SecondTierCompetencies
	if competencies == nil {
		competencies = []string{}
	}

	maxAnswerTime := int(math.Round(p.MaxAnswerTime))
	if maxAnswerTime <= 0 {
		maxAnswerTime = DefaultMaxAnswerTime
	}

	return &Question{
		ID:                     QuestionID(number),
		Text:                   p.Text,
		PrimaryCategory:        Category(p.PrimaryCategory),
		SecondTierCompetencies: competencies,
		Options:                options,
		WhatItMeasures:         p.WhatItMeasures,
		MaxAnswerTime:          maxAnswerTime,
		ScoringGuide:           normalizeScoringGuide(p.ScoringGuide),
	}
}

// normalizeScoringGuide keeps the entries keyed 1 through 5.
func normalizeScoringGuide(raw map[string]string) map[int]string {
	guide := make(map[int]string, len(raw))
	for k, v := range raw {
		score, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || score < 1 || score > 5 {
			continue
		}
		guide[score] = v
	}
	return guide
}

// HasOption reports whether option is one of the question's declared options.
func (q *Question) HasOption(option string) bool {
	return slices.Contains(q.Options, option)
}

// Prior returns the redacted form sent with later generation requests.
func (q *Question) Prior() PriorQuestion {
	return PriorQuestion{Text: q.Text, PrimaryCategory: q.PrimaryCategory}
}

// FormatOtherAnswer renders free text as an additional answer entry.
func FormatOtherAnswer(text string) string {
	return fmt.Sprintf("%s: %s", OtherOption, text)
}
