package assessment

import "time"

// Result is the record of a completed assessment.
type Result struct {
	SessionID          string              `json:"sessionId"`
	SelectedCategories []Category          `json:"selectedCategories"`
	Questions          []*Question         `json:"questions"`
	Answers            map[string][]string `json:"answers"`
	CompletedAt        time.Time           `json:"completedAt"`
}

// MergeAnswers combines selected options with free-text "Other" responses,
// appending "Other: <text>" for every non-empty free-text value. The inputs
// are not modified.
func MergeAnswers(answers map[string][]string, otherText map[string]string) map[string][]string {
	merged := make(map[string][]string, len(answers)+len(otherText))
	for id, selected := range answers {
		merged[id] = append(make([]string, 0, len(selected)+1), selected...)
	}
	for id, text := range otherText {
		if text == "" {
			continue
		}
		merged[id] = append(merged[id], FormatOtherAnswer(text))
	}
	return merged
}
