package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := Transfer("https://portal/a.pdf", 503, fmt.Errorf("boom"))
	assert.Equal(t, "transfer error (code 503): transfer of https://portal/a.pdf failed: boom", err.Error())

	plain := Structural("missing %s", ".coursename")
	assert.Equal(t, "structural error: missing .coursename", plain.Error())
}

func TestTypeOfUnwrapsChain(t *testing.T) {
	inner := NotFound("#listing")
	wrapped := fmt.Errorf("discover: %w", inner)

	assert.Equal(t, ErrorTypeNotFound, TypeOf(wrapped))
	assert.True(t, Is(wrapped, ErrorTypeNotFound))
	assert.False(t, Is(wrapped, ErrorTypeTransfer))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain")))
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := Wrap(ErrorTypeNetwork, cause, "request failed")
	assert.True(t, stderrors.Is(err, cause))
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"structural", Structural("x"), true},
		{"malformed address", MalformedAddress("::", nil), true},
		{"not found", NotFound("a"), true},
		{"timeout", Timeout("idle"), true},
		{"transfer", Transfer("u", 500, nil), false},
		{"not interactable", NotInteractable("a"), false},
		{"cancelled", fmt.Errorf("wait: %w", context.Canceled), true},
		{"untyped", fmt.Errorf("x"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, IsFatal(tt.err))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{503, true},
		{599, true},
		{401, false},
		{404, false},
		{400, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			if got := IsRetryableStatusCode(tt.code); got != tt.want {
				t.Errorf("IsRetryableStatusCode(%d) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestFromStatusCode(t *testing.T) {
	assert.Equal(t, ErrorTypeRateLimit, FromStatusCode(429))
	assert.Equal(t, ErrorTypeAuth, FromStatusCode(403))
	assert.Equal(t, ErrorTypeNotFound, FromStatusCode(404))
	assert.Equal(t, ErrorTypeServerError, FromStatusCode(502))
	assert.Equal(t, ErrorTypeNetwork, FromStatusCode(0))
	assert.True(t, IsRetryable(FromStatusCode(503)))
	assert.False(t, IsRetryable(FromStatusCode(404)))
}
