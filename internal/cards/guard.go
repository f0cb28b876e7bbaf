package cards

import (
	"context"
	"time"

	"github.com/conorfennell/knolarchive/internal/content"
	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

// mutation describes one version-gated change of a single card.
type mutation struct {
	op             string
	event          string
	includeDeleted bool
	// skipValidate commits without re-validating the content.
	skipValidate bool
	apply        func(c domain.Card, now time.Time) (domain.Card, error)
	payload      func(before, after domain.Card) map[string]any
}

// mutate loads the card, checks the caller's version, applies the change and
// commits it with a compare-and-swap on that version. Losing the race to a
// concurrent writer surfaces as a version conflict carrying the version that
// won.
func (s *Service) mutate(ctx context.Context, actor domain.Actor, id string, version int64, m mutation) (card domain.Card, err error) {
	defer func() { s.metrics.Operation(m.op, err) }()

	if err := requireActor(actor); err != nil {
		return domain.Card{}, err
	}
	current, err := s.guard(ctx, actor, id, version, m.includeDeleted)
	if err != nil {
		return domain.Card{}, err
	}

	next, err := m.apply(current, s.now())
	if err != nil {
		return domain.Card{}, err
	}
	if !m.skipValidate {
		if _, err := content.Validate(string(next.CardType), next.Content); err != nil {
			return domain.Card{}, err
		}
	}

	commit, err := s.repo.Update(ctx, next, version)
	if err != nil {
		return domain.Card{}, err
	}
	if !commit.Applied {
		return domain.Card{}, apperrors.VersionConflict(id, version, commit.Actual)
	}

	var payload map[string]any
	if m.payload != nil {
		payload = m.payload(current, commit.Card)
	}
	s.notify(ctx, actor, m.event, commit.Card, payload)
	return commit.Card, nil
}

// guard returns the card if actor may touch it and it is still at version.
func (s *Service) guard(ctx context.Context, actor domain.Actor, id string, version int64, includeDeleted bool) (domain.Card, error) {
	if version < 1 {
		return domain.Card{}, apperrors.Field("version", "must be a positive integer")
	}
	current, err := s.load(ctx, actor, id, includeDeleted)
	if err != nil {
		return domain.Card{}, err
	}
	if current.Version != version {
		return domain.Card{}, apperrors.VersionConflict(id, version, current.Version)
	}
	return current, nil
}

// load fetches a card and hides cards the actor does not own behind the
// same not-found error a missing card produces.
func (s *Service) load(ctx context.Context, actor domain.Actor, id string, includeDeleted bool) (domain.Card, error) {
	c, err := s.repo.FindByID(ctx, id, includeDeleted)
	if err != nil {
		return domain.Card{}, err
	}
	if !actor.Owns(c) {
		return domain.Card{}, apperrors.NotFound(id)
	}
	return c, nil
}
