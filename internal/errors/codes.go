package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown marks errors that carry no domain code (infrastructure).
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeValidation Code = "VALIDATION_FAILED"

	// Concurrency
	CodeVersionConflict Code = "VERSION_CONFLICT"

	// Lookup
	CodeNotFound Code = "CARD_NOT_FOUND"

	// Business rules
	CodeInvalidStateTransition Code = "CARD_INVALID_STATE_TRANSITION"
	CodeCardArchived           Code = "CARD_ARCHIVED"
	CodeCardDeleted            Code = "CARD_DELETED"
	CodeCardNotDeleted         Code = "CARD_NOT_DELETED"
	CodeBatchEmpty             Code = "BATCH_EMPTY"
	CodeBatchTooLarge          Code = "BATCH_TOO_LARGE"
	CodeBatchCancelled         Code = "BATCH_ITEM_NOT_DISPATCHED"

	// Authorization
	CodeForbidden Code = "FORBIDDEN"
)

// Kind groups codes by how callers should react to them.
type Kind int

const (
	KindNone Kind = iota
	KindInfrastructure
	KindValidation
	KindConflict
	KindNotFound
	KindBusinessRule
	KindAuthorization
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindInfrastructure:
		return "infrastructure"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindBusinessRule:
		return "business_rule"
	case KindAuthorization:
		return "authorization"
	default:
		return "unknown"
	}
}

// Kind maps a code to its kind.
func (c Code) Kind() Kind {
	switch c {
	case CodeValidation:
		return KindValidation
	case CodeVersionConflict:
		return KindConflict
	case CodeNotFound:
		return KindNotFound
	case CodeInvalidStateTransition,
		CodeCardArchived,
		CodeCardDeleted,
		CodeCardNotDeleted,
		CodeBatchEmpty,
		CodeBatchTooLarge,
		CodeBatchCancelled:
		return KindBusinessRule
	case CodeForbidden:
		return KindAuthorization
	default:
		return KindInfrastructure
	}
}

// HTTPStatus maps a kind to the status the JSON adapter responds with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	case KindAuthorization:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
