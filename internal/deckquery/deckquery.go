// Package deckquery defines DeckQuery, the declarative filter, sort and
// pagination specification evaluated against the card archive.
package deckquery

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// MatchMode selects how KnowledgeNodeIDs are matched.
type MatchMode string

const (
	MatchAny           MatchMode = "any"
	MatchAll           MatchMode = "all"
	MatchExact         MatchMode = "exact"
	MatchSubtree       MatchMode = "subtree"
	MatchPrerequisites MatchMode = "prerequisites"
	MatchRelated       MatchMode = "related"
)

// Valid reports whether m is a known mode.
func (m MatchMode) Valid() bool {
	switch m {
	case MatchAny, MatchAll, MatchExact, MatchSubtree, MatchPrerequisites, MatchRelated:
		return true
	}
	return false
}

// External reports whether the mode is resolved by the knowledge graph.
func (m MatchMode) External() bool {
	return m == MatchSubtree || m == MatchPrerequisites || m == MatchRelated
}

// SortField names a sortable card attribute.
type SortField string

const (
	SortCreatedAt  SortField = "createdAt"
	SortUpdatedAt  SortField = "updatedAt"
	SortDifficulty SortField = "difficulty"
	SortCardType   SortField = "cardType"
	SortState      SortField = "state"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// TimeRange bounds a timestamp; From is inclusive, To exclusive. Nil ends are open.
type TimeRange struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Empty reports whether neither end is set.
func (r TimeRange) Empty() bool {
	return r.From == nil && r.To == nil
}

// Query is a DeckQuery.
type Query struct {
	CardTypes        []domain.CardType   `json:"cardTypes,omitempty"`
	States           []domain.State      `json:"states,omitempty"`
	Difficulties     []domain.Difficulty `json:"difficulties,omitempty"`
	KnowledgeNodeIDs []string            `json:"knowledgeNodeIds,omitempty"`
	KnowledgeMode    MatchMode           `json:"knowledgeMode,omitempty"`
	Tags             []string            `json:"tags,omitempty"`
	Sources          []domain.Source     `json:"sources,omitempty"`
	Search           string              `json:"search,omitempty"`
	Created          TimeRange           `json:"created,omitempty"`
	Updated          TimeRange           `json:"updated,omitempty"`
	Sort             SortField           `json:"sort,omitempty"`
	Direction        Direction           `json:"direction,omitempty"`
	Offset           int                 `json:"offset,omitempty"`
	Limit            int                 `json:"limit,omitempty"`
}

// Page is one page of query results.
type Page struct {
	Cards   []domain.Card `json:"cards"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"hasMore"`
}

// Normalize validates q and returns it with defaults applied: sets are
// de-duplicated and sorted, the limit defaults to 20 and is capped at 100,
// sorting defaults to createdAt descending and node ids default to "any".
func (q Query) Normalize() (Query, error) {
	var fields []apperrors.FieldError
	add := func(path, format string, args ...any) {
		fields = append(fields, apperrors.FieldError{Path: "query." + path, Message: fmt.Sprintf(format, args...)})
	}

	for i, t := range q.CardTypes {
		if !t.Valid() {
			add(fmt.Sprintf("cardTypes[%d]", i), "unknown card type %q", t)
		}
	}
	for i, s := range q.States {
		if !s.Valid() {
			add(fmt.Sprintf("states[%d]", i), "unknown state %q", s)
		}
	}
	for i, d := range q.Difficulties {
		if d == domain.DifficultyUnset || !d.Valid() {
			add(fmt.Sprintf("difficulties[%d]", i), "unknown difficulty %q", d)
		}
	}
	for i, s := range q.Sources {
		if !s.Valid() {
			add(fmt.Sprintf("sources[%d]", i), "unknown source %q", s)
		}
	}

	out := q
	out.CardTypes = dedupe(q.CardTypes)
	out.States = dedupe(q.States)
	out.Difficulties = dedupe(q.Difficulties)
	out.Sources = dedupe(q.Sources)

	tags := make([]string, 0, len(q.Tags))
	for _, t := range q.Tags {
		tags = append(tags, strings.ToLower(strings.TrimSpace(t)))
	}
	out.Tags = dedupe(tags)

	nodes := make([]string, 0, len(q.KnowledgeNodeIDs))
	for _, n := range q.KnowledgeNodeIDs {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	out.KnowledgeNodeIDs = dedupe(nodes)
	if out.KnowledgeMode == "" {
		out.KnowledgeMode = MatchAny
	}
	if !out.KnowledgeMode.Valid() {
		add("knowledgeMode", "unknown mode %q", q.KnowledgeMode)
	}
	if q.KnowledgeMode != "" && q.KnowledgeMode != MatchAny && len(out.KnowledgeNodeIDs) == 0 {
		add("knowledgeNodeIds", "required when knowledgeMode is %s", q.KnowledgeMode)
	}

	out.Search = strings.TrimSpace(q.Search)
	if len(out.Search) > 500 {
		add("search", "must be at most 500 characters")
	}
	checkRange(add, "created", q.Created)
	checkRange(add, "updated", q.Updated)

	switch out.Sort {
	case "":
		out.Sort = SortCreatedAt
	case SortCreatedAt, SortUpdatedAt, SortDifficulty, SortCardType, SortState:
	default:
		add("sort", "unknown sort field %q", q.Sort)
	}
	switch out.Direction {
	case "":
		out.Direction = Desc
	case Asc, Desc:
	default:
		add("direction", "must be asc or desc")
	}

	if q.Offset < 0 {
		add("offset", "must not be negative")
	}
	switch {
	case q.Limit < 0:
		add("limit", "must not be negative")
	case q.Limit == 0:
		out.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		out.Limit = MaxLimit
	}

	if len(fields) > 0 {
		return Query{}, apperrors.Validation(fields...)
	}
	return out, nil
}

func checkRange(add func(string, string, ...any), name string, r TimeRange) {
	if r.From != nil && r.To != nil && !r.From.Before(*r.To) {
		add(name, "from must be before to")
	}
}

func dedupe[T ~string](in []T) []T {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[T]struct{}, len(in))
	out := make([]T, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
