// Package apierror carries failed HTTP responses from the GitHub and Google
// APIs and turns them into readable messages.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error is a non-2xx response from an upstream API.
type Error struct {
	Service    string
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	if msg := bodyMessage(e.Body); msg != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s API error (status %d)", e.Service, e.StatusCode)
}

// Temporary reports whether retrying later may succeed.
func (e *Error) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Message returns the most useful description of err: the message from a
// structured API body, then the raw body, then err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		if msg := bodyMessage(apiErr.Body); msg != "" {
			return msg
		}
		if body := strings.TrimSpace(string(apiErr.Body)); body != "" {
			return body
		}
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return fmt.Sprint(err)
}

type errorBody struct {
	Message          string          `json:"message"`
	Error            json.RawMessage `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// bodyMessage understands the GitHub shape {"message": ...}, the Google shape
// {"error": {"message": ...}} and the OAuth shape {"error": ..., "error_description": ...}.
func bodyMessage(body []byte) string {
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}

	if parsed.Message != "" {
		return parsed.Message
	}

	if len(parsed.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(parsed.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
	}

	if parsed.ErrorDescription != "" {
		return parsed.ErrorDescription
	}

	var code string
	if err := json.Unmarshal(parsed.Error, &code); err == nil {
		return code
	}
	return ""
}
