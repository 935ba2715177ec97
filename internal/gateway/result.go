package gateway

import (
	"fmt"
	"net/http"
)

// Result is the normalized outcome of one API call. The gateway never fails a
// call on HTTP status alone; callers inspect the Result.
type Result struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Method     string
	URL        string

	// Body is the parsed value: a JSON-decoded structure when the body parsed
	// as JSON, otherwise the raw text.
	Body any

	// Raw is the response text exactly as received.
	Raw string
}

// IsSuccess reports whether the status code is in [200, 300).
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// IsSuccess reports whether this result carries a successful status.
func (r *Result) IsSuccess() bool {
	return IsSuccess(r.StatusCode)
}

// Err returns a typed *APIError for an unsuccessful result, nil otherwise.
// Call sites use this instead of repeating the check-and-wrap boilerplate.
func (r *Result) Err() error {
	if r.IsSuccess() {
		return nil
	}
	return &APIError{
		Method:     r.Method,
		URL:        r.URL,
		StatusCode: r.StatusCode,
		Status:     r.Status,
		Body:       r.Raw,
	}
}

// APIError represents a non-2xx API response.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "...[truncated]"
	}
	return fmt.Sprintf("%s %s returned %s: %s", e.Method, e.URL, e.Status, body)
}
