package prompts

import (
	"fmt"

	"github.com/c360studio/rolefit/assessment"
)

// SuggestionSystemPrompt returns the role and output contract for the
// free-text suggestion generator.
func SuggestionSystemPrompt(limit int) string {
	return fmt.Sprintf(`You are helping a candidate fill out an assessment form.

Based on the question and the user's partial input, generate %d relevant suggestions that:
1. Are contextually appropriate for the question
2. Match or relate to the user's input
3. Are specific and actionable
4. Are professional and relevant to job assessments

Return ONLY a JSON array of strings, no other text.
Example: ["Suggestion 1", "Suggestion 2", "Suggestion 3"]`, limit)
}

// SuggestionPrompt returns the user message for one suggestion request.
func SuggestionPrompt(req assessment.SuggestionRequest) string {
	return fmt.Sprintf("Question: %s\nUser Input: %s", req.QuestionText, req.UserInput)
}
