package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeOf_ThroughWrapping(t *testing.T) {
	base := NewFetchError("download failed", errors.New("connection reset"))
	wrapped := fmt.Errorf("ensure indexed: %w", base)

	assert.Equal(t, ErrCodeFetch, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, ErrCodeFetch))
	assert.False(t, HasCode(wrapped, ErrCodeParse))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
	assert.Equal(t, ErrCodeInternalServer, CodeOf(errors.New("plain")))
}

func TestAppError_MessageAndUnwrap(t *testing.T) {
	cause := errors.New("503 from provider")
	err := NewModelInvocationError("chat completion failed", cause)

	assert.Equal(t, "chat completion failed: 503 from provider", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusBadGateway, err.HTTPCode)
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"fetch", NewFetchError("x", nil), "We could not read your document. Please try uploading it again."},
		{"model", NewModelInvocationError("x", nil), "The assistant is temporarily unavailable. Please try again shortly."},
		{"validation", NewInvalidInputError("question", "must not be empty"), "Invalid input for field 'question': must not be empty"},
		{"unknown", errors.New("boom"), "Something went wrong. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestErrorTranslator_Translate(t *testing.T) {
	translator := NewErrorTranslator()

	assert.Nil(t, translator.Translate(nil))

	appErr := NewNamespaceNotFoundError("doc-1")
	assert.Same(t, appErr, translator.Translate(fmt.Errorf("wrap: %w", appErr)))

	timeout := translator.Translate(context.DeadlineExceeded)
	assert.Equal(t, ErrCodeTimeout, timeout.Code)

	type request struct {
		Question string `validate:"required"`
	}
	err := validator.New().Struct(request{})
	require.Error(t, err)
	translated := translator.Translate(err)
	assert.Equal(t, ErrCodeValidationFailed, translated.Code)
	assert.Equal(t, http.StatusBadRequest, translated.HTTPCode)
}
