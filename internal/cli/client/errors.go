package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrCSRFRejected    = errors.New("CSRF token rejected")
	ErrNotFound        = errors.New("not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrValidation      = errors.New("validation failed")
)

// APIError is a non-success response from the backend
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Body    []byte
}

func newAPIError(req Request, resp *Response) *APIError {
	return &APIError{
		Method:  req.Method,
		Path:    req.Path,
		Status:  resp.Status,
		Message: errorMessage(resp),
		Body:    resp.Body,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.Path, e.Status, e.Message)
}

// Is maps the status onto the package sentinels so callers can use errors.Is
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrCSRFRejected:
		return e.IsCSRF()
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrValidation:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusUnprocessableEntity
	}
	return false
}

// IsCSRF reports whether the server rejected the request's CSRF token
func (e *APIError) IsCSRF() bool {
	return e.Status == http.StatusForbidden && strings.Contains(strings.ToLower(e.Message), "csrf")
}

// errorMessage extracts {"error": ...} or {"message": ...} from the body
func errorMessage(resp *Response) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	if text := strings.TrimSpace(string(resp.Body)); text != "" && len(text) <= 200 {
		return text
	}
	return http.StatusText(resp.Status)
}

// csrfExemptPaths precede the existence of a session
var csrfExemptPaths = map[string]bool{
	"/login":    true,
	"/register": true,
}

// IsMutating reports whether method changes server state
func IsMutating(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// isCSRFExemptPath reports whether path is exempt from CSRF, whatever the
// method. A CSRF rejection on such a path is never retried.
func isCSRFExemptPath(path string) bool {
	return csrfExemptPaths[normalizePath(path)]
}

// IsCSRFExempt reports whether a mutating request to path may go without a
// CSRF token.
func IsCSRFExempt(method, path string) bool {
	return IsMutating(method) && isCSRFExemptPath(path)
}

// RequiresCSRF reports whether the request must carry a CSRF token
func RequiresCSRF(method, path string) bool {
	return IsMutating(method) && !isCSRFExemptPath(path)
}

func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	return path
}
