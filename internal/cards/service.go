// Package cards implements the card lifecycle: creation, versioned
// mutations, soft and hard deletion, batch operations and DeckQuery reads.
// It coordinates the content dispatcher, the card aggregate, the repository
// and event publication.
package cards

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/conorfennell/knolarchive/internal/content"
	"github.com/conorfennell/knolarchive/internal/deckquery"
	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
	"github.com/conorfennell/knolarchive/internal/events"
	"github.com/conorfennell/knolarchive/internal/knol"
	"github.com/conorfennell/knolarchive/internal/metrics"
)

const (
	DefaultWorkers        = 8
	DefaultPublishTimeout = 2 * time.Second
)

// Repository persists cards. Update and HardDelete are compare-and-swap on
// the version: a lost race is reported through the returned Commit.
type Repository interface {
	FindByID(ctx context.Context, id string, includeDeleted bool) (domain.Card, error)
	Create(ctx context.Context, card domain.Card) error
	CreateBatch(ctx context.Context, cards []domain.Card) ([]error, error)
	Update(ctx context.Context, card domain.Card, expected int64) (domain.Commit, error)
	HardDelete(ctx context.Context, id string, expected int64) (domain.Commit, error)
	Query(ctx context.Context, q deckquery.Query, ownerID string) (deckquery.Page, error)
	Count(ctx context.Context, q deckquery.Query, ownerID string) (int, error)
}

// KnowledgeGraph expands knowledge node ids for the graph-aware DeckQuery
// modes (subtree, prerequisites, related).
type KnowledgeGraph interface {
	Expand(ctx context.Context, mode deckquery.MatchMode, nodeIDs []string) ([]string, error)
}

// Options configures a Service. Zero values select defaults.
type Options struct {
	Publisher      events.Publisher
	Graph          KnowledgeGraph
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
	Workers        int
	PublishTimeout time.Duration
	Now            func() time.Time
	NewID          func() (string, error)
}

// Service is the card engine.
type Service struct {
	repo           Repository
	publisher      events.Publisher
	graph          KnowledgeGraph
	metrics        *metrics.Metrics
	logger         *slog.Logger
	workers        int
	publishTimeout time.Duration
	now            func() time.Time
	newID          func() (string, error)
}

// NewService returns a Service backed by repo.
func NewService(repo Repository, opts Options) *Service {
	s := &Service{
		repo:           repo,
		publisher:      opts.Publisher,
		graph:          opts.Graph,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		workers:        opts.Workers,
		publishTimeout: opts.PublishTimeout,
		now:            opts.Now,
		newID:          opts.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.publisher == nil {
		s.publisher = events.LogPublisher{Logger: s.logger}
	}
	if s.workers < 1 {
		s.workers = DefaultWorkers
	}
	if s.publishTimeout <= 0 {
		s.publishTimeout = DefaultPublishTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = domain.NewID
	}
	return s
}

// CreateInput is a card to create.
type CreateInput struct {
	CardType         string            `json:"cardType"`
	Content          json.RawMessage   `json:"content"`
	Difficulty       domain.Difficulty `json:"difficulty,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	KnowledgeNodeIDs []string          `json:"knowledgeNodeIds,omitempty"`
	Source           domain.Source     `json:"source,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
	ImportSourceID   int64             `json:"-"`
	ImportKey        string            `json:"-"`
}

// UpdateContentInput is a partial content update. Unset fields keep their
// current value; the merged content is validated before it is committed.
type UpdateContentInput struct {
	Content    json.RawMessage    `json:"content,omitempty"`
	Difficulty *domain.Difficulty `json:"difficulty,omitempty"`
	Metadata   map[string]any     `json:"metadata,omitempty"`
}

// Create validates in and stores it as a new draft card owned by actor.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (card domain.Card, err error) {
	defer func() { s.metrics.Operation("create", err) }()

	card, err = s.prepare(actor, in)
	if err != nil {
		return domain.Card{}, err
	}
	if err := s.repo.Create(ctx, card); err != nil {
		return domain.Card{}, err
	}
	s.notify(ctx, actor, events.CardCreated, card, createdPayload(card))
	return card, nil
}

// prepare runs every pure check of a create request and builds the card.
// Content and card-level problems are reported together.
func (s *Service) prepare(actor domain.Actor, in CreateInput) (domain.Card, error) {
	if err := requireActor(actor); err != nil {
		return domain.Card{}, err
	}

	var fields []apperrors.FieldError
	payload, canonical, err := content.Normalize(in.CardType, in.Content)
	if err != nil {
		var verr *apperrors.ValidationError
		if !errors.As(err, &verr) {
			return domain.Card{}, err
		}
		fields = append(fields, verr.Fields...)
		canonical = json.RawMessage(`{}`)
	}

	input := domain.NewCardInput{
		OwnerID:          actor.UserID,
		CardType:         domain.CardType(in.CardType),
		Content:          canonical,
		Difficulty:       in.Difficulty,
		Tags:             in.Tags,
		KnowledgeNodeIDs: in.KnowledgeNodeIDs,
		Source:           in.Source,
		Metadata:         in.Metadata,
		ImportSourceID:   in.ImportSourceID,
		ImportKey:        in.ImportKey,
	}
	if payload != nil {
		input.Fingerprint = knol.Hash(payload.CardType(), payload.Common().Front, payload.Common().Back)
	}

	card, err := domain.NewCard(input, s.now, s.newID)
	if err != nil {
		var verr *apperrors.ValidationError
		if !errors.As(err, &verr) {
			return domain.Card{}, err
		}
		fields = mergeFields(fields, verr.Fields)
	}
	if len(fields) > 0 {
		return domain.Card{}, apperrors.Validation(fields...)
	}
	return card, nil
}

// Get returns a card visible to actor. Deleted cards are only returned to
// admins asking for them explicitly.
func (s *Service) Get(ctx context.Context, actor domain.Actor, id string, includeDeleted bool) (domain.Card, error) {
	if err := requireActor(actor); err != nil {
		return domain.Card{}, err
	}
	if includeDeleted && !actor.IsAdmin() {
		return domain.Card{}, apperrors.Forbidden("read deleted cards")
	}
	return s.load(ctx, actor, id, includeDeleted)
}

// UpdateContent applies a partial content update at version.
func (s *Service) UpdateContent(ctx context.Context, actor domain.Actor, id string, version int64, in UpdateContentInput) (domain.Card, error) {
	return s.mutate(ctx, actor, id, version, mutation{
		op:    "update_content",
		event: events.CardUpdated,
		apply: func(c domain.Card, now time.Time) (domain.Card, error) {
			if len(in.Content) == 0 && in.Difficulty == nil && in.Metadata == nil {
				return domain.Card{}, apperrors.Field("content", "at least one of content, difficulty or metadata is required")
			}
			next, err := c.WithContent(domain.ContentChange{Difficulty: in.Difficulty, Metadata: in.Metadata}, now)
			if err != nil {
				return domain.Card{}, err
			}
			if len(in.Content) > 0 {
				payload, canonical, err := content.Normalize(string(c.CardType), in.Content)
				if err != nil {
					return domain.Card{}, err
				}
				next.Content = canonical
				next.Fingerprint = knol.Hash(c.CardType, payload.Common().Front, payload.Common().Back)
			}
			return next, nil
		},
		payload: func(before, after domain.Card) map[string]any {
			return map[string]any{
				"contentChanged": string(before.Content) != string(after.Content),
				"difficulty":     after.Difficulty,
			}
		},
	})
}

// UpdateTags replaces the tag set at version.
func (s *Service) UpdateTags(ctx context.Context, actor domain.Actor, id string, version int64, tags []string) (domain.Card, error) {
	return s.mutate(ctx, actor, id, version, mutation{
		op:    "update_tags",
		event: events.CardTagsUpdated,
		apply: func(c domain.Card, now time.Time) (domain.Card, error) {
			return c.WithTags(tags, now)
		},
		payload: func(before, after domain.Card) map[string]any {
			return map[string]any{"previous": before.Tags, "tags": after.Tags}
		},
	})
}

// UpdateKnowledgeLinks replaces the knowledge node links at version.
func (s *Service) UpdateKnowledgeLinks(ctx context.Context, actor domain.Actor, id string, version int64, nodeIDs []string) (domain.Card, error) {
	return s.mutate(ctx, actor, id, version, mutation{
		op:    "update_links",
		event: events.CardLinksUpdated,
		apply: func(c domain.Card, now time.Time) (domain.Card, error) {
			return c.WithKnowledgeNodes(nodeIDs, now)
		},
		payload: func(before, after domain.Card) map[string]any {
			return map[string]any{"previous": before.KnowledgeNodeIDs, "knowledgeNodeIds": after.KnowledgeNodeIDs}
		},
	})
}

// ChangeState moves the card to state to at version.
func (s *Service) ChangeState(ctx context.Context, actor domain.Actor, id string, version int64, to domain.State) (domain.Card, error) {
	return s.mutate(ctx, actor, id, version, mutation{
		op:    "change_state",
		event: events.CardStateChanged,
		apply: func(c domain.Card, now time.Time) (domain.Card, error) {
			return c.Transition(to, now)
		},
		payload: func(before, after domain.Card) map[string]any {
			return map[string]any{"from": before.State, "to": after.State}
		},
	})
}

// SoftDelete hides the card from reads and queries at version.
func (s *Service) SoftDelete(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Card, error) {
	return s.mutate(ctx, actor, id, version, mutation{
		op:           "soft_delete",
		event:        events.CardDeleted,
		skipValidate: true,
		apply: func(c domain.Card, now time.Time) (domain.Card, error) {
			return c.SoftDelete(now)
		},
	})
}

// Restore brings a soft-deleted card back at version.
func (s *Service) Restore(ctx context.Context, actor domain.Actor, id string, version int64) (domain.Card, error) {
	return s.mutate(ctx, actor, id, version, mutation{
		op:             "restore",
		event:          events.CardRestored,
		includeDeleted: true,
		apply: func(c domain.Card, now time.Time) (domain.Card, error) {
			return c.Restore(now)
		},
	})
}

// HardDelete permanently removes a card. Only admins may purge.
func (s *Service) HardDelete(ctx context.Context, actor domain.Actor, id string, version int64) (err error) {
	defer func() { s.metrics.Operation("hard_delete", err) }()

	if err := requireActor(actor); err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return apperrors.Forbidden("purge cards")
	}
	current, err := s.guard(ctx, actor, id, version, true)
	if err != nil {
		return err
	}
	commit, err := s.repo.HardDelete(ctx, id, version)
	if err != nil {
		return err
	}
	if !commit.Applied {
		return apperrors.VersionConflict(id, version, commit.Actual)
	}
	s.notify(ctx, actor, events.CardPurged, current, map[string]any{"ownerId": current.OwnerID})
	return nil
}

// Query evaluates q for actor. Non-admins only see their own cards.
func (s *Service) Query(ctx context.Context, actor domain.Actor, q deckquery.Query) (deckquery.Page, error) {
	if err := requireActor(actor); err != nil {
		return deckquery.Page{}, err
	}
	q, ok, err := s.resolve(ctx, q)
	if err != nil {
		return deckquery.Page{}, err
	}
	if !ok {
		return deckquery.Page{Cards: []domain.Card{}, Offset: q.Offset, Limit: q.Limit}, nil
	}

	defer s.metrics.ObserveQuery("query", time.Now())
	return s.repo.Query(ctx, q, scope(actor))
}

// Count returns how many cards match q for actor, ignoring pagination.
func (s *Service) Count(ctx context.Context, actor domain.Actor, q deckquery.Query) (int, error) {
	if err := requireActor(actor); err != nil {
		return 0, err
	}
	q, ok, err := s.resolve(ctx, q)
	if err != nil || !ok {
		return 0, err
	}

	defer s.metrics.ObserveQuery("count", time.Now())
	return s.repo.Count(ctx, q, scope(actor))
}

// resolve normalizes q and expands graph-aware node modes into a plain
// "any" match. ok is false when the expansion leaves nothing to match.
func (s *Service) resolve(ctx context.Context, q deckquery.Query) (deckquery.Query, bool, error) {
	q, err := q.Normalize()
	if err != nil {
		return deckquery.Query{}, false, err
	}
	if !q.KnowledgeMode.External() {
		return q, true, nil
	}
	if s.graph == nil {
		return deckquery.Query{}, false, apperrors.Field("query.knowledgeMode", "mode %s needs a knowledge graph and none is configured", q.KnowledgeMode)
	}
	expanded, err := s.graph.Expand(ctx, q.KnowledgeMode, q.KnowledgeNodeIDs)
	if err != nil {
		return deckquery.Query{}, false, fmt.Errorf("failed to expand knowledge nodes: %w", err)
	}
	q.KnowledgeNodeIDs = expanded
	q.KnowledgeMode = deckquery.MatchAny
	if q, err = q.Normalize(); err != nil {
		return deckquery.Query{}, false, err
	}
	return q, len(q.KnowledgeNodeIDs) > 0, nil
}

func scope(actor domain.Actor) string {
	if actor.IsAdmin() {
		return ""
	}
	return actor.UserID
}

func requireActor(actor domain.Actor) error {
	if actor.UserID == "" {
		return apperrors.Forbidden("act without a user")
	}
	return nil
}

func createdPayload(c domain.Card) map[string]any {
	return map[string]any{
		"cardType": c.CardType,
		"ownerId":  c.OwnerID,
		"source":   c.Source,
		"tags":     c.Tags,
	}
}

// mergeFields appends the entries of extra whose path is not already in fields.
func mergeFields(fields, extra []apperrors.FieldError) []apperrors.FieldError {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		seen[f.Path] = struct{}{}
	}
	for _, f := range extra {
		if _, dup := seen[f.Path]; !dup {
			fields = append(fields, f)
		}
	}
	return fields
}
