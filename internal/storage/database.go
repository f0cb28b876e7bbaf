package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers, which SQLite requires anyway,
	// and lets the pragmas below apply to every statement.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

const cardColumns = `id, owner_id, card_type, content, state, version, difficulty, tags,
	knowledge_node_ids, source, metadata, fingerprint, import_source_id,
	import_key, created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c                       domain.Card
		content, tags, nodes    string
		metadata                sql.NullString
		importSource, deletedAt sql.NullInt64
		createdAt, updatedAt    int64
	)
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.CardType,
		&content,
		&c.State,
		&c.Version,
		&c.Difficulty,
		&tags,
		&nodes,
		&c.Source,
		&metadata,
		&c.Fingerprint,
		&importSource,
		&c.ImportKey,
		&createdAt,
		&updatedAt,
		&deletedAt,
	)
	if err != nil {
		return domain.Card{}, err
	}

	c.Content = json.RawMessage(content)
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		return domain.Card{}, fmt.Errorf("failed to decode tags of card %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(nodes), &c.KnowledgeNodeIDs); err != nil {
		return domain.Card{}, fmt.Errorf("failed to decode knowledge nodes of card %s: %w", c.ID, err)
	}
	if metadata.Valid {
		if err := json.Unmarshal([]byte(metadata.String), &c.Metadata); err != nil {
			return domain.Card{}, fmt.Errorf("failed to decode metadata of card %s: %w", c.ID, err)
		}
	}
	c.ImportSourceID = importSource.Int64
	c.CreatedAt = fromNanos(createdAt)
	c.UpdatedAt = fromNanos(updatedAt)
	if deletedAt.Valid {
		at := fromNanos(deletedAt.Int64)
		c.DeletedAt = &at
	}
	return c, nil
}

// cardRow holds the column values written for a card.
type cardRow struct {
	content, front, back, tags, nodes string
	metadata                          sql.NullString
	importSource, deletedAt           sql.NullInt64
}

func encodeCard(c domain.Card) (cardRow, error) {
	var r cardRow
	var sides struct {
		Front string `json:"front"`
		Back  string `json:"back"`
	}
	if err := json.Unmarshal(c.Content, &sides); err != nil {
		return r, fmt.Errorf("failed to read content of card %s: %w", c.ID, err)
	}
	r.content, r.front, r.back = string(c.Content), sides.Front, sides.Back

	tags, err := json.Marshal(nonNil(c.Tags))
	if err != nil {
		return r, fmt.Errorf("failed to encode tags of card %s: %w", c.ID, err)
	}
	nodes, err := json.Marshal(nonNil(c.KnowledgeNodeIDs))
	if err != nil {
		return r, fmt.Errorf("failed to encode knowledge nodes of card %s: %w", c.ID, err)
	}
	r.tags, r.nodes = string(tags), string(nodes)

	if c.Metadata != nil {
		md, err := json.Marshal(c.Metadata)
		if err != nil {
			return r, fmt.Errorf("failed to encode metadata of card %s: %w", c.ID, err)
		}
		r.metadata = sql.NullString{String: string(md), Valid: true}
	}
	if c.ImportSourceID != 0 {
		r.importSource = sql.NullInt64{Int64: c.ImportSourceID, Valid: true}
	}
	if c.DeletedAt != nil {
		r.deletedAt = sql.NullInt64{Int64: toNanos(*c.DeletedAt), Valid: true}
	}
	return r, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertCard(ctx context.Context, ex execer, c domain.Card) error {
	r, err := encodeCard(c)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `
		INSERT INTO cards (id, owner_id, card_type, content, front, back, state, version,
			difficulty, difficulty_rank, tags, knowledge_node_ids, source, metadata,
			fingerprint, import_source_id, import_key, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.OwnerID,
		c.CardType,
		r.content,
		r.front,
		r.back,
		c.State,
		c.Version,
		c.Difficulty,
		c.Difficulty.Rank(),
		r.tags,
		r.nodes,
		c.Source,
		r.metadata,
		c.Fingerprint,
		r.importSource,
		c.ImportKey,
		toNanos(c.CreatedAt),
		toNanos(c.UpdatedAt),
		r.deletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert card %s: %w", c.ID, err)
	}
	return nil
}

// Create inserts a new card.
func (db *DB) Create(ctx context.Context, card domain.Card) error {
	return insertCard(ctx, db.conn, card)
}

// CreateBatch inserts cards in one transaction. Each row runs under its own
// savepoint, so a failing row is rolled back alone and reported at its index
// while the others commit.
func (db *DB) CreateBatch(ctx context.Context, cards []domain.Card) ([]error, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin batch insert: %w", err)
	}
	defer tx.Rollback()

	errs := make([]error, len(cards))
	for i, c := range cards {
		if _, err := tx.ExecContext(ctx, `SAVEPOINT card_row`); err != nil {
			return nil, fmt.Errorf("failed to open savepoint: %w", err)
		}
		if err := insertCard(ctx, tx, c); err != nil {
			errs[i] = err
			if _, rbErr := tx.ExecContext(ctx, `ROLLBACK TO card_row`); rbErr != nil {
				return nil, fmt.Errorf("failed to roll back card %s: %w", c.ID, rbErr)
			}
		}
		if _, err := tx.ExecContext(ctx, `RELEASE card_row`); err != nil {
			return nil, fmt.Errorf("failed to release savepoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch insert: %w", err)
	}
	return errs, nil
}

// FindByID returns the card with id. Soft-deleted cards are reported as not
// found unless includeDeleted is set.
func (db *DB) FindByID(ctx context.Context, id string, includeDeleted bool) (domain.Card, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+cardColumns+` FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, apperrors.NotFound(id)
		}
		return domain.Card{}, fmt.Errorf("failed to find card %s: %w", id, err)
	}
	if c.Deleted() && !includeDeleted {
		return domain.Card{}, apperrors.NotFound(id)
	}
	return c, nil
}

// Update writes card if the stored version still equals expected. A lost
// race yields a Commit that is not applied and carries the stored version.
func (db *DB) Update(ctx context.Context, card domain.Card, expected int64) (domain.Commit, error) {
	r, err := encodeCard(card)
	if err != nil {
		return domain.Commit{}, err
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE cards
		SET content = ?, front = ?, back = ?, state = ?, version = ?, difficulty = ?,
			difficulty_rank = ?, tags = ?, knowledge_node_ids = ?, metadata = ?,
			fingerprint = ?, updated_at = ?, deleted_at = ?
		WHERE id = ? AND version = ?
	`,
		r.content,
		r.front,
		r.back,
		card.State,
		card.Version,
		card.Difficulty,
		card.Difficulty.Rank(),
		r.tags,
		r.nodes,
		r.metadata,
		card.Fingerprint,
		toNanos(card.UpdatedAt),
		r.deletedAt,
		card.ID,
		expected,
	)
	if err != nil {
		return domain.Commit{}, fmt.Errorf("failed to update card %s: %w", card.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Commit{}, fmt.Errorf("failed to read update result for card %s: %w", card.ID, err)
	}
	if n == 1 {
		return domain.AppliedCommit(card), nil
	}

	actual, err := db.version(ctx, card.ID)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Conflicted(actual), nil
}

// HardDelete removes the card if the stored version equals expected.
func (db *DB) HardDelete(ctx context.Context, id string, expected int64) (domain.Commit, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM cards WHERE id = ? AND version = ?`, id, expected)
	if err != nil {
		return domain.Commit{}, fmt.Errorf("failed to delete card %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.Commit{}, fmt.Errorf("failed to read delete result for card %s: %w", id, err)
	}
	if n == 1 {
		return domain.Commit{Applied: true, Actual: expected}, nil
	}

	actual, err := db.version(ctx, id)
	if err != nil {
		return domain.Commit{}, err
	}
	return domain.Conflicted(actual), nil
}

func (db *DB) version(ctx context.Context, id string) (int64, error) {
	var v int64
	err := db.conn.QueryRowContext(ctx, `SELECT version FROM cards WHERE id = ?`, id).Scan(&v)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperrors.NotFound(id)
		}
		return 0, fmt.Errorf("failed to read version of card %s: %w", id, err)
	}
	return v, nil
}

// FindByFingerprint returns the live card of owner with the given content
// fingerprint, if any.
func (db *DB) FindByFingerprint(ctx context.Context, ownerID, fingerprint string) (domain.Card, bool, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE owner_id = ? AND fingerprint = ? AND deleted_at IS NULL
		ORDER BY created_at, id
		LIMIT 1
	`, ownerID, fingerprint)
	c, err := scanCard(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Card{}, false, nil
		}
		return domain.Card{}, false, fmt.Errorf("failed to find card by fingerprint %s: %w", fingerprint, err)
	}
	return c, true, nil
}

// GetCardsBySourceID retrieves all live cards imported from a source.
func (db *DB) GetCardsBySourceID(ctx context.Context, sourceID int64) ([]domain.Card, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+cardColumns+`
		FROM cards
		WHERE import_source_id = ? AND deleted_at IS NULL
		ORDER BY created_at, id
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cards for source ID %d: %w", sourceID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row for source ID %d: %w", sourceID, err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cards for source ID %d: %w", sourceID, err)
	}
	return cards, nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
