package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/conorfennell/knolarchive/internal/deckquery"
	"github.com/conorfennell/knolarchive/internal/domain"
)

var sortColumns = map[deckquery.SortField]string{
	deckquery.SortCreatedAt:  "created_at",
	deckquery.SortUpdatedAt:  "updated_at",
	deckquery.SortDifficulty: "difficulty_rank",
	deckquery.SortCardType:   "card_type",
	deckquery.SortState:      "state",
}

// Query evaluates a normalized DeckQuery. An empty ownerID searches every
// owner. Soft-deleted cards never match. Rows are ordered by the sort field
// with id as tiebreaker, so repeated calls over unchanged data return the
// same page. HasMore is set when a further row exists past the page.
func (db *DB) Query(ctx context.Context, q deckquery.Query, ownerID string) (deckquery.Page, error) {
	where, args := buildWhere(q, ownerID)
	column, ok := sortColumns[q.Sort]
	if !ok {
		return deckquery.Page{}, fmt.Errorf("unsupported sort field %q", q.Sort)
	}
	dir := "DESC"
	if q.Direction == deckquery.Asc {
		dir = "ASC"
	}

	stmt := fmt.Sprintf(`SELECT %s FROM cards WHERE %s ORDER BY %s %s, id %s LIMIT ? OFFSET ?`,
		cardColumns, where, column, dir, dir)
	args = append(args, q.Limit+1, q.Offset)

	rows, err := db.conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return deckquery.Page{}, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	page := deckquery.Page{Cards: []domain.Card{}, Offset: q.Offset, Limit: q.Limit}
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return deckquery.Page{}, fmt.Errorf("failed to scan card row: %w", err)
		}
		if len(page.Cards) == q.Limit {
			page.HasMore = true
			break
		}
		page.Cards = append(page.Cards, c)
	}
	if err := rows.Err(); err != nil {
		return deckquery.Page{}, fmt.Errorf("failed to iterate cards: %w", err)
	}
	return page, nil
}

// Count returns how many cards match q, ignoring pagination.
func (db *DB) Count(ctx context.Context, q deckquery.Query, ownerID string) (int, error) {
	where, args := buildWhere(q, ownerID)
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE `+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cards: %w", err)
	}
	return n, nil
}

// buildWhere translates the filters of q into a WHERE clause and its
// arguments. Graph-resolved modes must have been expanded to "any" before.
func buildWhere(q deckquery.Query, ownerID string) (string, []any) {
	clauses := []string{"deleted_at IS NULL"}
	var args []any

	if ownerID != "" {
		clauses = append(clauses, "owner_id = ?")
		args = append(args, ownerID)
	}
	if len(q.CardTypes) > 0 {
		clauses = append(clauses, "card_type IN ("+placeholders(len(q.CardTypes))+")")
		args = appendAll(args, q.CardTypes)
	}
	if len(q.States) > 0 {
		clauses = append(clauses, "state IN ("+placeholders(len(q.States))+")")
		args = appendAll(args, q.States)
	}
	if len(q.Difficulties) > 0 {
		clauses = append(clauses, "difficulty IN ("+placeholders(len(q.Difficulties))+")")
		args = appendAll(args, q.Difficulties)
	}
	if len(q.Sources) > 0 {
		clauses = append(clauses, "source IN ("+placeholders(len(q.Sources))+")")
		args = appendAll(args, q.Sources)
	}
	if len(q.Tags) > 0 {
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(cards.tags) WHERE json_each.value IN ("+placeholders(len(q.Tags))+"))")
		args = appendAll(args, q.Tags)
	}

	if n := len(q.KnowledgeNodeIDs); n > 0 {
		in := placeholders(n)
		switch q.KnowledgeMode {
		case deckquery.MatchAll, deckquery.MatchExact:
			clauses = append(clauses, "(SELECT COUNT(DISTINCT json_each.value) FROM json_each(cards.knowledge_node_ids) WHERE json_each.value IN ("+in+")) = ?")
			args = appendAll(args, q.KnowledgeNodeIDs)
			args = append(args, n)
			if q.KnowledgeMode == deckquery.MatchExact {
				clauses = append(clauses, "json_array_length(cards.knowledge_node_ids) = ?")
				args = append(args, n)
			}
		default:
			clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(cards.knowledge_node_ids) WHERE json_each.value IN ("+in+"))")
			args = appendAll(args, q.KnowledgeNodeIDs)
		}
	}

	if q.Search != "" {
		pattern := "%" + escapeLike(strings.ToLower(q.Search)) + "%"
		clauses = append(clauses, `(lower(front) LIKE ? ESCAPE '\' OR lower(back) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern)
	}

	for _, r := range []struct {
		column string
		rng    deckquery.TimeRange
	}{{"created_at", q.Created}, {"updated_at", q.Updated}} {
		if r.rng.From != nil {
			clauses = append(clauses, r.column+" >= ?")
			args = append(args, toNanos(*r.rng.From))
		}
		if r.rng.To != nil {
			clauses = append(clauses, r.column+" < ?")
			args = append(args, toNanos(*r.rng.To))
		}
	}

	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func appendAll[T ~string](args []any, values []T) []any {
	for _, v := range values {
		args = append(args, string(v))
	}
	return args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
