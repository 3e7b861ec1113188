package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInvalidRepo(t *testing.T) {
	err := NewInvalidRepo("repo-1")
	assert.Equal(t, InvalidRepo, err.Code)
	assert.Contains(t, err.Error(), "INVALID_REPO")
	assert.Contains(t, err.Error(), "repo-1")
	assert.NotEmpty(t, err.SuggestedFixes)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("boom")
	err := NewInternal(cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, Internal, err.Code)
	assert.Contains(t, err.Error(), "boom")
}

func TestPolicyDeniedNextBestAction(t *testing.T) {
	err := NewPolicyDenied("budget too large", "retry with a smaller maxCards")
	assert.Equal(t, "retry with a smaller maxCards", err.NextBestAction)
}
