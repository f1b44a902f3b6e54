// Package prompts renders the messages sent to the model for question and
// suggestion generation.
package prompts

import (
	"encoding/json"
	"fmt"

	"github.com/c360studio/rolefit/assessment"
)

// QuestionSystemPrompt returns the role and output contract for the
// question generator.
func QuestionSystemPrompt() string {
	return `You are a RoleFit Assessment Builder creating candidate screening questions.

## Your Objective

Generate ONE new assessment question that:
1. Is relevant to one of the selected categories
2. Has NOT been asked before (check previous questions)
3. Is appropriate for the question number and context
4. Takes into account previous answers, including "Other" custom responses
5. Includes 4 checkbox options plus "Other"
6. Is clear, practical, and scenario-based

## Output Format

Return a JSON object with this structure:

` + "```json" + `
{
  "text": "Question text here",
  "primaryCategory": "One of the selected categories",
  "secondTierCompetencies": ["Competency 1", "Competency 2"],
  "options": ["Option 1", "Option 2", "Option 3", "Option 4"],
  "whatItMeasures": "What this question measures",
  "maxAnswerTime": 90,
  "scoringGuide": {
    "1": "Description for score 1",
    "2": "Description for score 2",
    "3": "Description for score 3",
    "4": "Description for score 4",
    "5": "Description for score 5"
  }
}
` + "```" + `

Only return the JSON object, no other text.`
}

// QuestionPrompt returns the user message describing where the assessment
// stands. Lists are rendered as JSON so the model sees exact labels.
func QuestionPrompt(req assessment.QuestionRequest) string {
	previous := req.PreviousQuestions
	if previous == nil {
		previous = []assessment.PriorQuestion{}
	}
	answers := req.PreviousAnswers
	if answers == nil {
		answers = map[string][]string{}
	}

	return fmt.Sprintf(`Context:
- Selected Categories: %s
- Previous Questions: %s
- Previous Answers: %s
- Current Question Number: %d of %d

Secondary competencies should come from: %s`,
		mustJSON(req.SelectedCategories),
		mustJSON(previous),
		mustJSON(answers),
		req.Number(), assessment.MaxQuestions,
		mustJSON(assessment.Competencies()),
	)
}

// mustJSON marshals values the package builds itself; they cannot fail.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("prompts: marshal %T: %v", v, err))
	}
	return string(data)
}
