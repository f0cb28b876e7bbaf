package cards

import (
	"context"

	"github.com/conorfennell/knolarchive/internal/batch"
	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
	"github.com/conorfennell/knolarchive/internal/events"
)

// CreateFailure is a batch-create item that was not stored.
type CreateFailure struct {
	Index int
	Item  CreateInput
	Err   error
}

// BatchCreateResult accounts for every item of a batch create.
type BatchCreateResult struct {
	Created      []domain.Card
	Failed       []CreateFailure
	Total        int
	SuccessCount int
	FailureCount int
}

// StateChange names one card and the version the caller last saw.
type StateChange struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// StateFailure is a batch state-change item that was not applied.
type StateFailure struct {
	Index int
	ID    string
	Err   error
}

// BatchStateResult accounts for every item of a batch state change.
type BatchStateResult struct {
	Succeeded    []domain.Card
	Failed       []StateFailure
	Total        int
	SuccessCount int
	FailureCount int
}

// BatchCreate creates up to batch.MaxItems cards. Items are validated
// independently on the worker pool; the valid ones are inserted together
// with per-row isolation. A failing item never prevents the others.
func (s *Service) BatchCreate(ctx context.Context, actor domain.Actor, items []CreateInput) (BatchCreateResult, error) {
	if err := requireActor(actor); err != nil {
		return BatchCreateResult{}, err
	}
	if err := batch.CheckSize(len(items)); err != nil {
		s.metrics.Operation("batch_create", err)
		return BatchCreateResult{}, err
	}

	prepared := batch.Run(ctx, s.workers, items, func(_ context.Context, in CreateInput) (domain.Card, error) {
		return s.prepare(actor, in)
	})

	errs := make([]error, len(items))
	var valid []domain.Card
	var positions []int
	for _, o := range prepared {
		if o.Err != nil {
			errs[o.Index] = o.Err
			continue
		}
		valid = append(valid, o.Value)
		positions = append(positions, o.Index)
	}

	stored := make([]bool, len(items))
	if len(valid) > 0 {
		// validated items count as dispatched, so their insert ignores cancellation
		rowErrs, err := s.repo.CreateBatch(context.WithoutCancel(ctx), valid)
		for j, idx := range positions {
			switch {
			case err != nil:
				errs[idx] = err
			case rowErrs[j] != nil:
				errs[idx] = rowErrs[j]
			default:
				stored[idx] = true
			}
		}
	}

	result := BatchCreateResult{Created: []domain.Card{}, Failed: []CreateFailure{}, Total: len(items)}
	cardAt := make(map[int]domain.Card, len(valid))
	for j, idx := range positions {
		cardAt[idx] = valid[j]
	}
	var created []events.Event
	for i, in := range items {
		s.metrics.BatchItem("batch_create", errs[i])
		if !stored[i] {
			result.Failed = append(result.Failed, CreateFailure{Index: i, Item: in, Err: errs[i]})
			continue
		}
		c := cardAt[i]
		result.Created = append(result.Created, c)
		e, err := events.ForCard(events.CardCreated, c, s.metadata(ctx, actor), s.now(), createdPayload(c))
		if err != nil {
			s.logger.Warn("failed to build event", "type", events.CardCreated, "card_id", c.ID, "error", err)
			continue
		}
		created = append(created, e)
	}
	result.SuccessCount = len(result.Created)
	result.FailureCount = len(result.Failed)

	s.publish(ctx, created)
	s.metrics.Operation("batch_create", nil)
	return result, nil
}

// BatchChangeState moves up to batch.MaxItems cards to state to. Each item
// goes through the single-card version-gated path on the worker pool.
func (s *Service) BatchChangeState(ctx context.Context, actor domain.Actor, items []StateChange, to domain.State) (BatchStateResult, error) {
	if err := requireActor(actor); err != nil {
		return BatchStateResult{}, err
	}
	if err := batch.CheckSize(len(items)); err != nil {
		s.metrics.Operation("batch_change_state", err)
		return BatchStateResult{}, err
	}
	if !to.Valid() {
		return BatchStateResult{}, apperrors.Field("state", "unknown state %q", to)
	}

	outcomes := batch.Run(ctx, s.workers, items, func(ctx context.Context, it StateChange) (domain.Card, error) {
		return s.ChangeState(ctx, actor, it.ID, it.Version, to)
	})

	result := BatchStateResult{Succeeded: []domain.Card{}, Failed: []StateFailure{}, Total: len(items)}
	for _, o := range outcomes {
		s.metrics.BatchItem("batch_change_state", o.Err)
		if o.Err != nil {
			result.Failed = append(result.Failed, StateFailure{Index: o.Index, ID: items[o.Index].ID, Err: o.Err})
			continue
		}
		result.Succeeded = append(result.Succeeded, o.Value)
	}
	result.SuccessCount = len(result.Succeeded)
	result.FailureCount = len(result.Failed)
	s.metrics.Operation("batch_change_state", nil)
	return result, nil
}
