package remote

import (
	"io"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsNetwork(t *testing.T) {
	err := errors.Wrap(&NetworkError{Op: "create order", Err: io.ErrUnexpectedEOF}, "checkout")

	assert.True(t, IsNetwork(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.False(t, IsNetwork(&ResponseError{Status: 400, Message: "bad"}))
}

func TestMessageOf(t *testing.T) {
	msg, ok := MessageOf(errors.Wrap(&ResponseError{Op: "create order", Status: 400, Message: "Invalid phone"}, "x"))
	assert.True(t, ok)
	assert.Equal(t, "Invalid phone", msg)

	_, ok = MessageOf(&ResponseError{Status: 500})
	assert.False(t, ok)

	_, ok = MessageOf(errors.New("boom"))
	assert.False(t, ok)
}
