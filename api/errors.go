package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/c360studio/rolefit/assessment"
)

// requestError is a client mistake in the request itself.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

// decodeIntent reads the JSON body of a session intent.
func decodeIntent(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return &requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		}
		return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return nil
}

// statusFor maps an intent error to its response status.
func statusFor(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status
	case assessment.IsInvalidTransition(err):
		return http.StatusConflict
	case assessment.IsGenerationFailed(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
