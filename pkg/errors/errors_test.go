package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	err := FromError(fmt.Errorf("disk on fire"))
	require.NotNil(t, err)
	assert.Equal(t, ErrInternal.Code, err.Code)
	assert.Equal(t, http.StatusInternalServerError, err.Status)
	assert.Equal(t, ErrInternal.Message+": disk on fire", err.Error())
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("assemble: %w", Wrap(fmt.Errorf("jpeg"), ErrEncodingFailure.Code, ErrEncodingFailure.Status, ErrEncodingFailure.Message))
	assert.True(t, Is(wrapped, ErrEncodingFailure))
	assert.False(t, Is(wrapped, ErrCaptureFailure))
	assert.False(t, Is(nil, ErrCaptureFailure))
}

func TestCloneKeepsCode(t *testing.T) {
	clone := Clone(ErrValidation, "name must not be empty")
	assert.Equal(t, ErrValidation.Code, clone.Code)
	assert.Equal(t, "name must not be empty", clone.Message)
	assert.Equal(t, "validation failed", ErrValidation.Message)
}
