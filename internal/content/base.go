// Package content holds the typed payload of every card type, the validation
// dispatcher that decodes and checks raw payloads, and the read-only schema
// registry used for discovery.
package content

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

// Base is the contract shared by every card type.
type Base struct {
	Front       string  `json:"front" validate:"required,notblank,max=10000"`
	Back        string  `json:"back" validate:"required,notblank,max=50000"`
	Hint        string  `json:"hint,omitempty" validate:"max=2000"`
	Explanation string  `json:"explanation,omitempty" validate:"max=20000"`
	Media       []Media `json:"media,omitempty" validate:"max=10,dive"`
}

// Media is an attachment stored in external object storage.
type Media struct {
	Kind     string `json:"kind" validate:"required,oneof=image audio video file"`
	URL      string `json:"url" validate:"required,url,max=2048"`
	Alt      string `json:"alt,omitempty" validate:"max=1000"`
	MimeType string `json:"mimeType,omitempty" validate:"max=255"`
}

// Payload is the validated content of one card type.
type Payload interface {
	CardType() domain.CardType
	Common() *Base
}

// Common implements Payload for every type that embeds Base.
func (b *Base) Common() *Base { return b }

// checker is implemented by payloads with cross-field rules that struct tags
// cannot express.
type checker interface {
	check(r *report)
}

// report collects cross-field failures with JSON paths relative to the payload.
type report struct {
	fields []apperrors.FieldError
}

func (r *report) add(path, format string, args ...any) {
	r.fields = append(r.fields, apperrors.FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonName)
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

func jsonName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

// fieldErrors converts validator output into JSON-path field errors.
func fieldErrors(errs validator.ValidationErrors) []apperrors.FieldError {
	out := make([]apperrors.FieldError, 0, len(errs))
	for _, fe := range errs {
		out = append(out, apperrors.FieldError{Path: fieldPath(fe.Namespace()), Message: message(fe)})
	}
	return out
}

// fieldPath drops the root struct name and the embedded Base segment from a
// validator namespace such as "Ordering.Base.front".
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 0 {
		parts = parts[1:]
	}
	kept := parts[:0]
	for _, p := range parts {
		if p == "Base" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

func message(fe validator.FieldError) string {
	collection := fe.Kind() == reflect.Slice || fe.Kind() == reflect.Array || fe.Kind() == reflect.Map
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "max":
		if collection {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if collection {
			return fmt.Sprintf("must contain at least %s items", fe.Param())
		}
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	case "unique":
		return "must not contain duplicates"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
