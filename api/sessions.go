package api

import (
	"context"
	"net/http"

	"github.com/c360studio/rolefit/assessment"
	"github.com/c360studio/rolefit/session"
)

func (s *Server) registerSessionHandlers(mux *http.ServeMux) {
	const prefix = "/api/sessions"

	mux.HandleFunc("POST "+prefix, s.handleCreateSession)
	mux.HandleFunc("GET "+prefix+"/{id}", s.withSession(func(*session.Machine, *http.Request) error { return nil }))
	mux.HandleFunc("DELETE "+prefix+"/{id}", s.handleDeleteSession)

	mux.HandleFunc("POST "+prefix+"/{id}/categories/toggle", s.withSession(func(m *session.Machine, r *http.Request) error {
		var body struct {
			Category assessment.Category `json:"category"`
		}
		if err := decodeIntent(r, &body); err != nil {
			return err
		}
		m.ToggleCategory(body.Category)
		return nil
	}))

	mux.Handle("POST "+prefix+"/{id}/continue", s.limit(s.withSession(func(m *session.Machine, r *http.Request) error {
		return m.ContinueToQuestions(context.WithoutCancel(r.Context()))
	})))

	mux.HandleFunc("POST "+prefix+"/{id}/options/toggle", s.withSession(func(m *session.Machine, r *http.Request) error {
		var body struct {
			Option string `json:"option"`
		}
		if err := decodeIntent(r, &body); err != nil {
			return err
		}
		m.ToggleOption(body.Option)
		return nil
	}))

	mux.HandleFunc("PUT "+prefix+"/{id}/other", s.withSession(func(m *session.Machine, r *http.Request) error {
		var body struct {
			Text string `json:"text"`
		}
		if err := decodeIntent(r, &body); err != nil {
			return err
		}
		m.SetOtherText(body.Text)
		return nil
	}))

	mux.HandleFunc("POST "+prefix+"/{id}/suggestions/select", s.withSession(func(m *session.Machine, r *http.Request) error {
		var body struct {
			Suggestion string `json:"suggestion"`
		}
		if err := decodeIntent(r, &body); err != nil {
			return err
		}
		m.SelectSuggestion(body.Suggestion)
		return nil
	}))

	mux.HandleFunc("POST "+prefix+"/{id}/suggestions/dismiss", s.withSession(func(m *session.Machine, _ *http.Request) error {
		m.DismissSuggestions()
		return nil
	}))

	mux.Handle("POST "+prefix+"/{id}/advance", s.limit(s.withSession(func(m *session.Machine, r *http.Request) error {
		// The client may go away mid-generation; the question still lands
		// in the session for its next poll.
		return m.Advance(context.WithoutCancel(r.Context()))
	})))

	mux.HandleFunc("POST "+prefix+"/{id}/retreat", s.withSession(func(m *session.Machine, _ *http.Request) error {
		m.Retreat()
		return nil
	}))

	mux.HandleFunc("POST "+prefix+"/{id}/reset", s.withSession(func(m *session.Machine, _ *http.Request) error {
		m.Reset()
		return nil
	}))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	m := s.sessions.Create()
	s.writeJSON(w, http.StatusCreated, m.View())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(r.PathValue("id")) {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// intentFunc applies one intent to a session.
type intentFunc func(m *session.Machine, r *http.Request) error

// withSession resolves the {id} path value, applies the intent and writes
// the resulting view.
func (s *Server) withSession(intent intentFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		m, ok := s.sessions.Get(id)
		if !ok {
			s.writeError(w, http.StatusNotFound, "session not found")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		if err := intent(m, r); err != nil {
			status := statusFor(err)
			if status >= http.StatusInternalServerError {
				s.logger.Warn("Session intent failed", "session_id", id, "path", r.URL.Path, "error", err)
			}
			s.writeError(w, status, err.Error())
			return
		}

		s.writeJSON(w, http.StatusOK, m.View())
	}
}
