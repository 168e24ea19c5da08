package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneKeepsIdentity(t *testing.T) {
	clone := Clone(ErrNotFound, "grievance not found")
	assert.Equal(t, "grievance not found", clone.Message)
	assert.Equal(t, "resource not found", ErrNotFound.Message)
	assert.ErrorIs(t, clone, ErrNotFound)
	assert.NotErrorIs(t, clone, ErrForbidden)
}

func TestWithDetailsDoesNotShareBacking(t *testing.T) {
	first := WithDetails(ErrValidation, "bad input", Field("subject", "is required"))
	second := WithDetails(ErrValidation, "bad input", Field("category", "is invalid"))

	require.Len(t, first.Details, 1)
	require.Len(t, second.Details, 1)
	assert.Equal(t, "subject", first.Details[0].Field)
	assert.Empty(t, ErrValidation.Details)
	assert.Equal(t, http.StatusBadRequest, second.Status)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("handler: %w", Clone(ErrForbidden, "administrator role required"))
	got := FromError(wrapped)
	assert.Equal(t, ErrForbidden.Code, got.Code)
	assert.Equal(t, "administrator role required", got.Message)

	plain := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
	assert.Equal(t, "internal server error: boom", plain.Error())
}
