package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	testCases := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"nil", nil, KindNone, http.StatusInternalServerError},
		{"plain", errors.New("disk on fire"), KindInfrastructure, http.StatusInternalServerError},
		{"validation", Field("front", "is required"), KindValidation, http.StatusBadRequest},
		{"conflict", VersionConflict("c1", 1, 2), KindConflict, http.StatusConflict},
		{"not found", NotFound("c1"), KindNotFound, http.StatusNotFound},
		{"rule", New(CodeInvalidStateTransition, "nope"), KindBusinessRule, http.StatusUnprocessableEntity},
		{"forbidden", Forbidden("purge card"), KindAuthorization, http.StatusForbidden},
		{"wrapped", fmt.Errorf("outer: %w", NotFound("c1")), KindNotFound, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.status, KindOf(tc.err).HTTPStatus())
		})
	}
}

func TestIsDomain(t *testing.T) {
	assert.False(t, IsDomain(nil))
	assert.False(t, IsDomain(errors.New("connection refused")))
	assert.True(t, IsDomain(NotFound("x")))
	assert.True(t, IsDomain(New(CodeBatchTooLarge, "too many")))
}

func TestErrorIsByCode(t *testing.T) {
	err := fmt.Errorf("change state: %w", New(CodeCardArchived, "card is archived"))
	assert.True(t, errors.Is(err, New(CodeCardArchived, "")))
	assert.False(t, errors.Is(err, New(CodeInvalidStateTransition, "")))
	assert.True(t, errors.Is(VersionConflict("a", 1, 2), &VersionConflictError{}))
	assert.True(t, errors.Is(NotFound("a"), &NotFoundError{}))
}

func TestValidationPrefix(t *testing.T) {
	v := Validation(
		FieldError{Path: "template", Message: "is required"},
		FieldError{Path: "items[0].position", Message: "must be 1"},
		FieldError{Path: "", Message: "payload must be an object"},
	)
	p := v.Prefix("content")
	require.Len(t, p.Fields, 3)
	assert.Equal(t, []string{"content", "content.items[0].position", "content.template"}, p.Paths())
	assert.True(t, p.Has("content.template"))
	assert.False(t, v.Has("content.template"))
}

func TestVersionConflictMessage(t *testing.T) {
	err := VersionConflict("abc", 3, 4)
	assert.Equal(t, "card abc version conflict: expected 3, actual 4", err.Error())

	var vc *VersionConflictError
	require.True(t, errors.As(fmt.Errorf("wrap: %w", err), &vc))
	assert.EqualValues(t, 3, vc.Expected)
	assert.EqualValues(t, 4, vc.Actual)
}
