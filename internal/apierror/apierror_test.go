package apierror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMessage_PrefersStructuredBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"github", `{"message":"Bad credentials","documentation_url":"https://docs.github.com"}`, "Bad credentials"},
		{"google", `{"error":{"code":403,"message":"Calendar usage limits exceeded."}}`, "Calendar usage limits exceeded."},
		{"oauth description", `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`, "Token has been expired or revoked."},
		{"oauth code only", `{"error":"invalid_client"}`, "invalid_client"},
		{"raw body", `upstream connect error`, "upstream connect error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("github: %w", &Error{Service: "GitHub", StatusCode: 401, Body: []byte(tt.body)})
			assert.Equal(t, tt.want, Message(err))
		})
	}
}

func TestMessage_FallsBackToErrorText(t *testing.T) {
	assert.Equal(t, "dial tcp: timeout", Message(errors.New("dial tcp: timeout")))
	assert.Equal(t, "GitHub API error (status 502)", Message(&Error{Service: "GitHub", StatusCode: 502}))
	assert.Equal(t, "", Message(nil))
}

func TestError_TextAndTemporary(t *testing.T) {
	err := &Error{Service: "Google Calendar", StatusCode: 404, Body: []byte(`{"error":{"message":"Not Found"}}`)}

	assert.Equal(t, "Google Calendar API error (status 404): Not Found", err.Error())
	assert.False(t, err.Temporary())
	assert.True(t, (&Error{StatusCode: 429}).Temporary())
	assert.True(t, (&Error{StatusCode: 503}).Temporary())
}
