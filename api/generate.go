package api

import (
	"errors"
	"net/http"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/generator"
)

// QuestionResponse is the response for POST /api/generate-question.
type QuestionResponse struct {
	Question *assessment.Question `json:"question"`
}

// SuggestionsResponse is the response for POST /api/generate-suggestions.
type SuggestionsResponse struct {
	Suggestions []string `json:"suggestions"`
}

// handleGenerateQuestion handles POST /api/generate-question.
func (s *Server) handleGenerateQuestion(w http.ResponseWriter, r *http.Request) {
	var req assessment.QuestionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if len(req.SelectedCategories) == 0 {
		s.writeError(w, http.StatusBadRequest, "Selected categories are required")
		return
	}

	q, err := s.questions.Generate(r.Context(), req)
	if err != nil {
		if errors.Is(err, generator.ErrNoCategories) {
			s.writeError(w, http.StatusBadRequest, "Selected categories are required")
			return
		}
		s.logger.Error("Error generating question", "question_number", req.Number(), "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to generate question")
		return
	}

	s.writeJSON(w, http.StatusOK, QuestionResponse{Question: q})
}

// handleGenerateSuggestions handles POST /api/generate-suggestions.
// Unreadable model output is a success with no suggestions.
func (s *Server) handleGenerateSuggestions(w http.ResponseWriter, r *http.Request) {
	var req assessment.SuggestionRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.QuestionText == "" || req.UserInput == "" {
		s.writeError(w, http.StatusBadRequest, "Question text and user input are required")
		return
	}

	suggestions, err := s.suggestions.Suggest(r.Context(), req)
	if err != nil {
		if errors.Is(err, generator.ErrMissingInput) {
			s.writeError(w, http.StatusBadRequest, "Question text and user input are required")
			return
		}
		s.logger.Error("Error generating suggestions", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Failed to generate suggestions")
		return
	}
	if suggestions == nil {
		suggestions = []string{}
	}
	if len(suggestions) > generator.DefaultMaxSuggestions {
		suggestions = suggestions[:generator.DefaultMaxSuggestions]
	}

	s.writeJSON(w, http.StatusOK, SuggestionsResponse{Suggestions: suggestions})
}
