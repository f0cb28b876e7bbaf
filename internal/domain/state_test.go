package domain

import (
	"testing"
	"time"

	apperrors "github.com/conorfennell/knolarchive/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionExhaustive(t *testing.T) {
	allowed := map[[2]State]bool{
		{StateDraft, StateActive}:       true,
		{StateDraft, StateArchived}:     true,
		{StateActive, StateSuspended}:   true,
		{StateActive, StateArchived}:    true,
		{StateSuspended, StateActive}:   true,
		{StateSuspended, StateArchived}: true,
		{StateArchived, StateDraft}:     true,
	}

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, from := range AllStates() {
		for _, to := range AllStates() {
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				card := Card{ID: "c1", State: from, Version: 3}
				next, err := card.Transition(to, now)
				if allowed[[2]State{from, to}] {
					require.NoError(t, err)
					assert.Equal(t, to, next.State)
					assert.EqualValues(t, 4, next.Version)
					assert.Equal(t, now, next.UpdatedAt)
					return
				}
				require.Error(t, err)
				assert.True(t, apperrors.IsBusinessRule(err))
				assert.Equal(t, apperrors.CodeInvalidStateTransition, apperrors.CodeOf(err))
				assert.Contains(t, err.Error(), string(from))
				assert.Contains(t, err.Error(), string(to))
				assert.Equal(t, State(""), next.State)
			})
		}
	}
}

func TestCheckTransitionMetadata(t *testing.T) {
	err := CheckTransition(StateArchived, StateActive)
	require.Error(t, err)

	var domainErr *apperrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "archived", domainErr.Metadata["from"])
	assert.Equal(t, "active", domainErr.Metadata["to"])
	assert.Equal(t, "draft", domainErr.Metadata["allowed"])
}

func TestCheckTransitionUnknownTarget(t *testing.T) {
	err := CheckTransition(StateDraft, State("published"))
	assert.True(t, apperrors.IsValidation(err))
}

func TestTargetsIsACopy(t *testing.T) {
	targets := StateDraft.Targets()
	targets[0] = StateSuspended
	assert.True(t, CanTransition(StateDraft, StateActive))
}
