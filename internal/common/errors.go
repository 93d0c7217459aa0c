package common

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the machine-readable class of a failure. It is stable and safe to
// expose to callers.
type Kind string

const (
	KindValidationFailed    Kind = "VALIDATION_FAILED"
	KindDuplicatePayslip    Kind = "DUPLICATE_PAYSLIP"
	KindStorageWriteFailed  Kind = "STORAGE_WRITE_FAILED"
	KindStorageReadFailed   Kind = "STORAGE_READ_FAILED"
	KindMetadataWriteFailed Kind = "METADATA_WRITE_FAILED"
	KindMetadataReadFailed  Kind = "METADATA_READ_FAILED"
	KindNotFound            Kind = "NOT_FOUND"
	KindForbidden           Kind = "FORBIDDEN"
	KindUnauthorized        Kind = "UNAUTHORIZED"
	KindInternal            Kind = "INTERNAL"
)

// Violation codes reported inside a ValidationFailed error.
const (
	CodeInvalidFileType   = "InvalidFileType"
	CodeFileTooLarge      = "FileTooLarge"
	CodeInvalidPeriod     = "InvalidPeriod"
	CodeInvalidEmployeeID = "InvalidEmployeeId"
	CodeInvalidFilename   = "InvalidFilename"
	CodeInvalidRequest    = "InvalidRequest"
)

// Violation is a single field-level validation problem.
type Violation struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error is the typed failure returned by services. Use errors.Is against the
// sentinel values below to match by kind, and errors.As to read details.
type Error struct {
	Kind       Kind
	Message    string
	Violations []Violation
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports kind equality so that errors.Is(err, ErrDuplicate) works for any
// *Error of the same kind regardless of message or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// HasViolation reports whether a violation with the given code is present.
func (e *Error) HasViolation(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

var (
	// Repository-level errors.
	ErrNotFound  = &Error{Kind: KindNotFound, Message: "not found"}
	ErrDuplicate = &Error{Kind: KindDuplicatePayslip, Message: "payslip already exists for this period"}

	// Service-level errors.
	ErrValidation    = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrForbidden     = &Error{Kind: KindForbidden, Message: "forbidden"}
	ErrUnauthorized  = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrStorageWrite  = &Error{Kind: KindStorageWriteFailed, Message: "storage write failed"}
	ErrStorageRead   = &Error{Kind: KindStorageReadFailed, Message: "storage read failed"}
	ErrMetadataWrite = &Error{Kind: KindMetadataWriteFailed, Message: "metadata write failed"}
	ErrMetadataRead  = &Error{Kind: KindMetadataReadFailed, Message: "metadata read failed"}

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// NewError builds an *Error of the given kind wrapping cause.
func NewError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NewValidationError builds a ValidationFailed error listing every violation.
func NewValidationError(violations []Violation) *Error {
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return &Error{
		Kind:       KindValidationFailed,
		Message:    strings.Join(parts, "; "),
		Violations: violations,
	}
}

// KindOf extracts the Kind of err, or KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
