package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromValidationError(t *testing.T) {
	req := struct {
		Email string `validate:"required,email"`
		Count int    `validate:"min=1"`
	}{Email: "nope"}

	err := validator.New().Struct(req)
	require.Error(t, err)

	apierr := FromValidationError(err)
	assert.Equal(t, http.StatusBadRequest, apierr.Code())

	verr, ok := apierr.(*ValidationError)
	require.True(t, ok)
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, FieldError{Field: "Email", Rule: "email"}, verr.Fields[0])
	assert.Equal(t, FieldError{Field: "Count", Rule: "min", Param: "1"}, verr.Fields[1])

	assert.Equal(t, MalformedBodyError, FromValidationError(errors.New("other")))
}

func TestSimpleErrorWith(t *testing.T) {
	withIndex := SlotUnavailableError.With("index", 2)
	assert.Equal(t, 2, withIndex.Details["index"])
	assert.Equal(t, http.StatusConflict, withIndex.Code())
	assert.Nil(t, SlotUnavailableError.Details)
}
