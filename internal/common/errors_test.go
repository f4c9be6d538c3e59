package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorUnwrapsCause(t *testing.T) {
	err := NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	assert.Contains(t, err.Error(), "CONFIG_ERROR")
	assert.Contains(t, err.Error(), "DB_URL is required")
}

func TestSentinelsAreDistinguishable(t *testing.T) {
	err := fmt.Errorf("%w: po_number 45678", ErrNoMatchingPO)
	assert.True(t, errors.Is(err, ErrNoMatchingPO))
	assert.False(t, errors.Is(err, ErrMissingField))
	assert.False(t, errors.Is(err, ErrKeyMismatch))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("%w: purchase order 1", ErrNotFound)))
	assert.False(t, IsNotFound(ErrStorage))
	assert.False(t, IsNotFound(nil))
}

func TestWrapErrorNilPassthrough(t *testing.T) {
	assert.NoError(t, WrapError(nil, "context"))
	wrapped := WrapError(ErrStorage, "put completed item")
	assert.True(t, errors.Is(wrapped, ErrStorage))
}
