package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "github.com/conorfennell/knolarchive/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func fixedID() (string, error) { return "card-1", nil }

func newTestCard(t *testing.T) Card {
	t.Helper()
	card, err := NewCard(NewCardInput{
		OwnerID:  "user-1",
		CardType: TypeAtomic,
		Content:  json.RawMessage(`{"front":"Q","back":"A"}`),
		Tags:     []string{"Go", "go", " concurrency "},
	}, fixedClock, fixedID)
	require.NoError(t, err)
	return card
}

func TestNewCard(t *testing.T) {
	card := newTestCard(t)

	assert.Equal(t, "card-1", card.ID)
	assert.Equal(t, StateDraft, card.State)
	assert.EqualValues(t, 1, card.Version)
	assert.Equal(t, SourceUser, card.Source)
	assert.Equal(t, []string{"go", "concurrency"}, card.Tags)
	assert.Equal(t, fixedNow, card.CreatedAt)
	assert.Equal(t, card.CreatedAt, card.UpdatedAt)
	assert.False(t, card.Deleted())
}

func TestNewCardValidation(t *testing.T) {
	testCases := []struct {
		name  string
		input NewCardInput
		path  string
	}{
		{"missing owner", NewCardInput{CardType: TypeAtomic, Content: json.RawMessage(`{}`)}, "ownerId"},
		{"unknown type", NewCardInput{OwnerID: "u", CardType: "poem", Content: json.RawMessage(`{}`)}, "cardType"},
		{"missing content", NewCardInput{OwnerID: "u", CardType: TypeAtomic}, "content"},
		{"bad difficulty", NewCardInput{OwnerID: "u", CardType: TypeAtomic, Content: json.RawMessage(`{}`), Difficulty: "hard"}, "difficulty"},
		{"bad source", NewCardInput{OwnerID: "u", CardType: TypeAtomic, Content: json.RawMessage(`{}`), Source: "robot"}, "source"},
		{"bad tag", NewCardInput{OwnerID: "u", CardType: TypeAtomic, Content: json.RawMessage(`{}`), Tags: []string{"ok", "not ok!"}}, "tags[1]"},
		{"blank node", NewCardInput{OwnerID: "u", CardType: TypeAtomic, Content: json.RawMessage(`{}`), KnowledgeNodeIDs: []string{" "}}, "knowledgeNodeIds[0]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCard(tc.input, fixedClock, fixedID)
			require.Error(t, err)

			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, verr.Has(tc.path), "expected %s in %v", tc.path, verr.Paths())
		})
	}
}

func TestNewCardIDFailure(t *testing.T) {
	boom := errors.New("entropy exhausted")
	_, err := NewCard(NewCardInput{OwnerID: "u", CardType: TypeAtomic, Content: json.RawMessage(`{}`)},
		fixedClock, func() (string, error) { return "", boom })
	require.ErrorIs(t, err, boom)
	assert.False(t, apperrors.IsDomain(err))
}

func TestWithContent(t *testing.T) {
	card := newTestCard(t)
	later := fixedNow.Add(time.Hour)
	advanced := DifficultyAdvanced

	next, err := card.WithContent(ContentChange{
		Content:    json.RawMessage(`{"front":"Q2","back":"A2"}`),
		Difficulty: &advanced,
	}, later)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.Version)
	assert.Equal(t, DifficultyAdvanced, next.Difficulty)
	assert.JSONEq(t, `{"front":"Q2","back":"A2"}`, string(next.Content))
	assert.Equal(t, later, next.UpdatedAt)
	assert.EqualValues(t, 1, card.Version, "original is untouched")
}

func TestArchivedRejectsEdits(t *testing.T) {
	card := newTestCard(t)
	card.State = StateArchived

	_, err := card.WithContent(ContentChange{Content: json.RawMessage(`{}`)}, fixedNow)
	assert.Equal(t, apperrors.CodeCardArchived, apperrors.CodeOf(err))

	_, err = card.WithTags([]string{"x"}, fixedNow)
	assert.Equal(t, apperrors.CodeCardArchived, apperrors.CodeOf(err))

	_, err = card.WithKnowledgeNodes([]string{"n1"}, fixedNow)
	assert.Equal(t, apperrors.CodeCardArchived, apperrors.CodeOf(err))

	restored, err := card.Transition(StateDraft, fixedNow)
	require.NoError(t, err)
	_, err = restored.WithTags([]string{"x"}, fixedNow)
	assert.NoError(t, err)
}

func TestSoftDeleteRestore(t *testing.T) {
	card := newTestCard(t)

	deleted, err := card.SoftDelete(fixedNow)
	require.NoError(t, err)
	require.True(t, deleted.Deleted())
	assert.EqualValues(t, 2, deleted.Version)

	_, err = deleted.SoftDelete(fixedNow)
	assert.Equal(t, apperrors.CodeCardDeleted, apperrors.CodeOf(err))

	_, err = deleted.Transition(StateActive, fixedNow)
	assert.Equal(t, apperrors.CodeCardDeleted, apperrors.CodeOf(err))

	restored, err := deleted.Restore(fixedNow)
	require.NoError(t, err)
	assert.False(t, restored.Deleted())
	assert.EqualValues(t, 3, restored.Version)

	_, err = restored.Restore(fixedNow)
	assert.Equal(t, apperrors.CodeCardNotDeleted, apperrors.CodeOf(err))
}

func TestNormalizeTags(t *testing.T) {
	tags, fields := NormalizeTags([]string{"A", "a", "b/c", "x:y", "-bad", ""})
	assert.Equal(t, []string{"a", "b/c", "x:y"}, tags)
	require.Len(t, fields, 2)
	assert.Equal(t, "tags[4]", fields[0].Path)
	assert.Equal(t, "tags[5]", fields[1].Path)

	many := make([]string, MaxTags+1)
	for i := range many {
		many[i] = string(rune('a'+i%26)) + string(rune('a'+i/26))
	}
	_, fields = NormalizeTags(many)
	require.Len(t, fields, 1)
	assert.Equal(t, "tags", fields[0].Path)
}

func TestActorOwns(t *testing.T) {
	card := Card{OwnerID: "alice"}
	assert.True(t, Actor{UserID: "alice"}.Owns(card))
	assert.False(t, Actor{UserID: "bob"}.Owns(card))
	assert.True(t, Actor{UserID: "bob", Role: RoleAdmin}.Owns(card))
	assert.False(t, Actor{}.Owns(Card{}))
}

func TestCardTypes(t *testing.T) {
	all := AllCardTypes()
	require.Len(t, all, 42)

	seen := map[CardType]bool{}
	standard, remediation := 0, 0
	for _, ct := range all {
		require.False(t, seen[ct], "duplicate %s", ct)
		seen[ct] = true
		switch ct.Family() {
		case FamilyStandard:
			standard++
		case FamilyRemediation:
			remediation++
		}
	}
	assert.Equal(t, 22, standard)
	assert.Equal(t, 20, remediation)

	_, ok := ParseCardType("cloze")
	assert.True(t, ok)
	_, ok = ParseCardType("Cloze")
	assert.False(t, ok)
}
