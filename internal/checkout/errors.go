package checkout

import "net/http"

// FlowError is a recoverable, user-visible checkout failure. Form-driven
// flows use Redirect plus the flash Message; API-driven flows use Status
// plus Message as a JSON error body. Err keeps the underlying cause for
// logs and errors.Is checks.
type FlowError struct {
	Message  string
	Redirect string
	Status   int
	Err      error
}

func (e *FlowError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *FlowError) Unwrap() error { return e.Err }

func flowErr(message, redirect string, status int, err error) *FlowError {
	if status == 0 {
		status = http.StatusBadRequest
	}
	return &FlowError{Message: message, Redirect: redirect, Status: status, Err: err}
}
