package perrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndMessage(t *testing.T) {
	err := New(ErrCodeForbidden, "Only the project creator can do this", errors.New("forbidden"))

	var perr Err
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusForbidden, perr.HttpStatus())
	assert.Equal(t, "forbidden", perr.Error())
	assert.Equal(t, "Only the project creator can do this", perr.Message)
	assert.NotEmpty(t, perr.Stacktrace)
}

func TestNewWithoutCause(t *testing.T) {
	err := NewErrInternalServerError("boom", nil)
	assert.Equal(t, "error missing", err.Error())
}

func TestValidationWrapsSentinel(t *testing.T) {
	err := Validation("title is required")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: title is required", err.Error())
}

func TestDistinctStatuses(t *testing.T) {
	statuses := map[int]ErrCode{}
	for _, code := range []ErrCode{ErrCodeNotFound, ErrCodeForbidden, ErrCodeUnauthorized, ErrCodeValidation, ErrCodeDuplicateEmail} {
		_, seen := statuses[code.Status]
		assert.False(t, seen, "status %d reused by %s", code.Status, code.Code)
		statuses[code.Status] = code
	}
}
