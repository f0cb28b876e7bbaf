package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolarchive/internal/deckquery"
	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCard(id, owner string, created time.Time, mods ...func(*domain.Card)) domain.Card {
	c := domain.Card{
		ID:               id,
		OwnerID:          owner,
		CardType:         domain.TypeAtomic,
		Content:          json.RawMessage(`{"front":"Front of ` + id + `","back":"Back"}`),
		State:            domain.StateDraft,
		Version:          1,
		Tags:             []string{},
		KnowledgeNodeIDs: []string{},
		Source:           domain.SourceUser,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	for _, m := range mods {
		m(&c)
	}
	return c
}

func TestCreateAndFind(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	card := testCard("c1", "alice", base, func(c *domain.Card) {
		c.Tags = []string{"go", "db"}
		c.KnowledgeNodeIDs = []string{"n1"}
		c.Difficulty = domain.DifficultyAdvanced
		c.Metadata = map[string]any{"origin": "test"}
		c.Fingerprint = "fp"
	})
	require.NoError(t, db.Create(ctx, card))

	got, err := db.FindByID(ctx, "c1", false)
	require.NoError(t, err)
	assert.Equal(t, card.ID, got.ID)
	assert.Equal(t, card.OwnerID, got.OwnerID)
	assert.JSONEq(t, string(card.Content), string(got.Content))
	assert.Equal(t, []string{"go", "db"}, got.Tags)
	assert.Equal(t, []string{"n1"}, got.KnowledgeNodeIDs)
	assert.Equal(t, domain.DifficultyAdvanced, got.Difficulty)
	assert.Equal(t, "test", got.Metadata["origin"])
	assert.Equal(t, int64(1), got.Version)
	assert.True(t, base.Equal(got.CreatedAt))
	assert.Nil(t, got.DeletedAt)

	_, err = db.FindByID(ctx, "missing", false)
	assert.True(t, apperrors.IsNotFound(err))

	assert.Error(t, db.Create(ctx, card), "duplicate ids are rejected")
}

func TestUpdateIsVersionGated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	card := testCard("c1", "alice", base)
	require.NoError(t, db.Create(ctx, card))

	next := card
	next.Version = 2
	next.State = domain.StateActive
	next.UpdatedAt = base.Add(time.Minute)

	commit, err := db.Update(ctx, next, 1)
	require.NoError(t, err)
	assert.True(t, commit.Applied)
	assert.Equal(t, int64(2), commit.Card.Version)

	stale := card
	stale.Version = 2
	commit, err = db.Update(ctx, stale, 1)
	require.NoError(t, err)
	assert.False(t, commit.Applied)
	assert.Equal(t, int64(2), commit.Actual)

	got, err := db.FindByID(ctx, "c1", false)
	require.NoError(t, err)
	assert.Equal(t, domain.StateActive, got.State, "the losing write must not be visible")

	ghost := testCard("ghost", "alice", base)
	_, err = db.Update(ctx, ghost, 1)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestSoftDeletedCardsAreHidden(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	card := testCard("c1", "alice", base)
	require.NoError(t, db.Create(ctx, card))

	deleted, err := card.SoftDelete(base.Add(time.Hour))
	require.NoError(t, err)
	commit, err := db.Update(ctx, deleted, 1)
	require.NoError(t, err)
	require.True(t, commit.Applied)

	_, err = db.FindByID(ctx, "c1", false)
	assert.True(t, apperrors.IsNotFound(err))

	got, err := db.FindByID(ctx, "c1", true)
	require.NoError(t, err)
	require.NotNil(t, got.DeletedAt)
	assert.True(t, base.Add(time.Hour).Equal(*got.DeletedAt))

	q, err := deckquery.Query{}.Normalize()
	require.NoError(t, err)
	n, err := db.Count(ctx, q, "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestHardDelete(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(ctx, testCard("c1", "alice", base)))

	commit, err := db.HardDelete(ctx, "c1", 7)
	require.NoError(t, err)
	assert.False(t, commit.Applied)
	assert.Equal(t, int64(1), commit.Actual)

	commit, err = db.HardDelete(ctx, "c1", 1)
	require.NoError(t, err)
	assert.True(t, commit.Applied)

	_, err = db.FindByID(ctx, "c1", true)
	assert.True(t, apperrors.IsNotFound(err))

	_, err = db.HardDelete(ctx, "c1", 1)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCreateBatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(ctx, testCard("taken", "alice", base)))

	errs, err := db.CreateBatch(ctx, []domain.Card{
		testCard("b1", "alice", base),
		testCard("taken", "alice", base),
		testCard("b3", "alice", base),
	})
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.NoError(t, errs[0])
	assert.Error(t, errs[1])
	assert.NoError(t, errs[2])

	for _, id := range []string{"b1", "b3"} {
		_, err := db.FindByID(ctx, id, false)
		assert.NoError(t, err, id)
	}
}

func TestFindByFingerprint(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	require.NoError(t, db.Create(ctx, testCard("c1", "alice", base, func(c *domain.Card) { c.Fingerprint = "abc" })))

	got, ok, err := db.FindByFingerprint(ctx, "alice", "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "c1", got.ID)

	_, ok, err = db.FindByFingerprint(ctx, "bob", "abc")
	require.NoError(t, err)
	assert.False(t, ok, "fingerprints are scoped to their owner")
}

func TestSources(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	id, err := db.InsertSource(ctx, "/notes", SourceTypeLocal, "alice")
	require.NoError(t, err)

	s, err := db.FindSourceByPath(ctx, "/notes")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, id, s.ID)
	assert.Nil(t, s.LastScanned)

	missing, err := db.FindSourceByPath(ctx, "/elsewhere")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, db.UpdateSourceLastScanned(ctx, id, base))
	all, err := db.GetAllSources(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].LastScanned)
	assert.True(t, base.Equal(*all[0].LastScanned))

	require.NoError(t, db.Create(ctx, testCard("c1", "alice", base, func(c *domain.Card) { c.ImportSourceID = id })))
	cards, err := db.GetCardsBySourceID(ctx, id)
	require.NoError(t, err)
	require.Len(t, cards, 1)

	require.NoError(t, db.DeleteSource(ctx, id))
	got, err := db.FindByID(ctx, "c1", false)
	require.NoError(t, err)
	assert.Zero(t, got.ImportSourceID, "deleting a source unlinks its cards")
	assert.ErrorIs(t, db.DeleteSource(ctx, id), ErrSourceNotFound)
}
