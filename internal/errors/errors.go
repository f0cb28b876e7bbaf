// Package errors defines the domain error taxonomy of the card engine.
//
// Domain errors are returned synchronously with no side effects committed and
// are never retried by the engine. Everything else (storage unavailable, event
// bus unreachable) is an infrastructure error wrapped with fmt.Errorf and left
// to the caller or an upstream resilience layer.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// FieldError attributes a validation message to a field path such as
// "content.items[1].position".
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Coded is implemented by every domain error.
type Coded interface {
	error
	ErrorCode() Code
}

// ValidationError reports structural or schema failures of caller input.
type ValidationError struct {
	Fields []FieldError
}

// Validation creates a validation error from the given field errors.
func Validation(fields ...FieldError) *ValidationError {
	return &ValidationError{Fields: fields}
}

// Field is shorthand for a single-field validation error.
func Field(path, format string, args ...any) *ValidationError {
	return Validation(FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Path+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ErrorCode implements Coded.
func (e *ValidationError) ErrorCode() Code { return CodeValidation }

// Is matches any *ValidationError.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// Has reports whether a field error exists at path.
func (e *ValidationError) Has(path string) bool {
	for _, f := range e.Fields {
		if f.Path == path {
			return true
		}
	}
	return false
}

// Paths returns the sorted, de-duplicated field paths.
func (e *ValidationError) Paths() []string {
	seen := make(map[string]struct{}, len(e.Fields))
	paths := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if _, ok := seen[f.Path]; ok {
			continue
		}
		seen[f.Path] = struct{}{}
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)
	return paths
}

// Prefix returns a copy with every path re-rooted under prefix.
func (e *ValidationError) Prefix(prefix string) *ValidationError {
	fields := make([]FieldError, len(e.Fields))
	for i, f := range e.Fields {
		path := prefix
		switch {
		case f.Path == "":
		case strings.HasPrefix(f.Path, "["):
			path += f.Path
		default:
			path += "." + f.Path
		}
		fields[i] = FieldError{Path: path, Message: f.Message}
	}
	return &ValidationError{Fields: fields}
}

// VersionConflictError is returned when the caller's version does not match
// the persisted version. The caller must re-fetch and retry.
type VersionConflictError struct {
	CardID   string
	Expected int64
	Actual   int64
}

// VersionConflict creates a conflict error.
func VersionConflict(cardID string, expected, actual int64) *VersionConflictError {
	return &VersionConflictError{CardID: cardID, Expected: expected, Actual: actual}
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("card %s version conflict: expected %d, actual %d", e.CardID, e.Expected, e.Actual)
}

// ErrorCode implements Coded.
func (e *VersionConflictError) ErrorCode() Code { return CodeVersionConflict }

// Is matches any *VersionConflictError.
func (e *VersionConflictError) Is(target error) bool {
	_, ok := target.(*VersionConflictError)
	return ok
}

// NotFoundError is returned both for missing cards and for cards the caller
// does not own, so existence never leaks.
type NotFoundError struct {
	CardID string
}

// NotFound creates a not-found error.
func NotFound(cardID string) *NotFoundError {
	return &NotFoundError{CardID: cardID}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("card %s not found", e.CardID)
}

// ErrorCode implements Coded.
func (e *NotFoundError) ErrorCode() Code { return CodeNotFound }

// Is matches any *NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

// Error is a coded domain error for business-rule and authorization failures.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Internal message (for logs)
	Metadata map[string]string // Context for callers, e.g. from/to states
	Cause    error
}

// New creates a simple domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithMetadata creates a domain error carrying context metadata.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode implements Coded.
func (e *Error) ErrorCode() Code { return e.Code }

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// Forbidden creates an authorization error for the named action.
func Forbidden(action string) *Error {
	return WithMetadata(CodeForbidden, "not allowed to "+action, map[string]string{"action": action})
}

// CodeOf returns the code of the first domain error in err's chain, or
// CodeUnknown for infrastructure errors.
func CodeOf(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeUnknown
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	return CodeOf(err).Kind()
}

// IsDomain reports whether err is a domain error rather than an
// infrastructure failure.
func IsDomain(err error) bool {
	k := KindOf(err)
	return k != KindNone && k != KindInfrastructure
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is an optimistic-concurrency conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsBusinessRule reports whether err is a business-rule violation.
func IsBusinessRule(err error) bool { return KindOf(err) == KindBusinessRule }

// IsAuthorization reports whether err is an authorization failure.
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }
