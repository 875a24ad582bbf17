package iam_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	iam "github.com/goliatone/go-iam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthFailureCarriesReason(t *testing.T) {
	cause := errors.New("signature is invalid")
	err := iam.AuthFailure(iam.ReasonTokenInvalid, cause)

	assert.True(t, iam.IsAuthFailure(err))
	assert.False(t, iam.IsForbidden(err))
	assert.Equal(t, goerrors.CategoryAuth, err.Category)
	assert.Equal(t, http.StatusUnauthorized, err.Code)
	assert.Equal(t, "authentication failed", err.Message)

	reason, ok := iam.FailureReason(err)
	require.True(t, ok)
	assert.Equal(t, iam.ReasonTokenInvalid, reason)

	wrapped := fmt.Errorf("refresh: %w", err)
	assert.True(t, iam.IsAuthFailure(wrapped))
	reason, ok = iam.FailureReason(wrapped)
	require.True(t, ok)
	assert.Equal(t, iam.ReasonTokenInvalid, reason)
}

func TestAuthFailureDoesNotMutateSentinel(t *testing.T) {
	_ = iam.AuthFailure(iam.ReasonWrongPassword, nil)
	_, ok := iam.FailureReason(iam.ErrAuthenticationFailed)
	assert.False(t, ok)
}

func TestForbidden(t *testing.T) {
	err := iam.Forbidden(iam.ReasonRoleMismatch, map[string]any{"role": "user"})

	assert.True(t, iam.IsForbidden(err))
	assert.False(t, iam.IsAuthFailure(err))
	assert.Equal(t, goerrors.CategoryAuthz, err.Category)
	assert.Equal(t, http.StatusForbidden, err.Code)
	assert.Equal(t, "user", err.Metadata["role"])

	reason, ok := iam.FailureReason(err)
	require.True(t, ok)
	assert.Equal(t, iam.ReasonRoleMismatch, reason)
}

func TestAccountErrors(t *testing.T) {
	notFound := iam.NewAccountNotFound(nil, map[string]any{"email": "x@example.com"})
	assert.True(t, iam.IsAccountNotFound(notFound))
	assert.False(t, iam.IsAccountExists(notFound))
	assert.Equal(t, http.StatusNotFound, notFound.Code)

	exists := iam.NewAccountExists(errors.New("UNIQUE constraint failed: users.email"), nil)
	assert.True(t, iam.IsAccountExists(exists))
	assert.False(t, iam.IsAccountNotFound(exists))
	assert.Equal(t, http.StatusConflict, exists.Code)

	assert.False(t, iam.IsAccountNotFound(nil))
	assert.False(t, iam.IsAuthFailure(errors.New("plain")))
	_, ok := iam.FailureReason(errors.New("plain"))
	assert.False(t, ok)
}
