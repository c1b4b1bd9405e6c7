package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := &Error{Type: ErrorTypeNetwork, Message: "download failed", Code: 503}
	assert.Equal(t, "network error: download failed (code 503)", err.Error())

	wrapped := Organize("no setup files", io.ErrUnexpectedEOF)
	assert.Equal(t, "organize error: no setup files: unexpected EOF", wrapped.Error())
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorType(""), TypeOf(nil))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(stderrors.New("plain")))
	assert.Equal(t, ErrorTypeDelivery, TypeOf(Delivery("timeout", nil)))

	nested := fmt.Errorf("item failed: %w", Structural("no container", nil))
	assert.Equal(t, ErrorTypeStructural, TypeOf(nested))
}

func TestIsType(t *testing.T) {
	err := Delivery("transfer failed", Network("connection reset", io.EOF))
	assert.True(t, IsType(err, ErrorTypeDelivery))
	assert.True(t, IsType(err, ErrorTypeNetwork))
	assert.False(t, IsType(err, ErrorTypeOrganize))
	assert.False(t, IsType(io.EOF, ErrorTypeNetwork))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeDelivery))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeOrganize))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(400))
}
