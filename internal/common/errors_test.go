package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesByKind(t *testing.T) {
	err := NewError(KindDuplicatePayslip, nil, "employee %d period %d/%d", 7, 12, 2024)
	wrapped := fmt.Errorf("ingest: %w", err)

	assert.True(t, errors.Is(wrapped, ErrDuplicate))
	assert.False(t, errors.Is(wrapped, ErrNotFound))
	assert.Equal(t, KindDuplicatePayslip, KindOf(wrapped))
}

func TestError_UnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindStorageWriteFailed, cause, "put %s", "k")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "STORAGE_WRITE_FAILED: put k: connection reset", err.Error())
}

func TestNewValidationError_ListsAllViolations(t *testing.T) {
	err := NewValidationError([]Violation{
		{Field: "month", Code: CodeInvalidPeriod, Message: "month must be between 1 and 12"},
		{Field: "employee_id", Code: CodeInvalidEmployeeID, Message: "employee_id must be positive"},
	})

	require.ErrorIs(t, err, ErrValidation)
	assert.Len(t, err.Violations, 2)
	assert.True(t, err.HasViolation(CodeInvalidPeriod))
	assert.True(t, err.HasViolation(CodeInvalidEmployeeID))
	assert.False(t, err.HasViolation(CodeFileTooLarge))
	assert.Contains(t, err.Error(), "month: month must be between 1 and 12")
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}
