package domain

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

const (
	// MaxTags bounds the tag list of a card.
	MaxTags = 50
	// MaxKnowledgeNodes bounds the knowledge-graph links of a card.
	MaxKnowledgeNodes = 100
	maxNodeIDLength   = 128
)

var tagPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_:/-]{0,63}$`)

// Difficulty is an optional authoring hint.
type Difficulty string

const (
	DifficultyUnset        Difficulty = ""
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
	DifficultyExpert       Difficulty = "expert"
)

// Valid reports whether d is unset or a known difficulty.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyUnset, DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced, DifficultyExpert:
		return true
	}
	return false
}

// Rank orders difficulties for sorting; unset sorts first.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyBeginner:
		return 1
	case DifficultyIntermediate:
		return 2
	case DifficultyAdvanced:
		return 3
	case DifficultyExpert:
		return 4
	}
	return 0
}

// Source records who produced a card.
type Source string

const (
	SourceUser   Source = "user"
	SourceAgent  Source = "agent"
	SourceSystem Source = "system"
	SourceImport Source = "import"
)

// Valid reports whether s is a known provenance.
func (s Source) Valid() bool {
	switch s {
	case SourceUser, SourceAgent, SourceSystem, SourceImport:
		return true
	}
	return false
}

// Card is a versioned unit of learning content.
type Card struct {
	ID               string          `json:"id"`
	OwnerID          string          `json:"ownerId"`
	CardType         CardType        `json:"cardType"`
	Content          json.RawMessage `json:"content"`
	State            State           `json:"state"`
	Version          int64           `json:"version"`
	Difficulty       Difficulty      `json:"difficulty,omitempty"`
	Tags             []string        `json:"tags"`
	KnowledgeNodeIDs []string        `json:"knowledgeNodeIds"`
	Source           Source          `json:"source"`
	Metadata         map[string]any  `json:"metadata,omitempty"`
	Fingerprint      string          `json:"fingerprint,omitempty"`
	ImportSourceID   int64           `json:"importSourceId,omitempty"`
	// ImportKey identifies the source entry a card was imported from. It is
	// set once at creation and survives content edits.
	ImportKey        string          `json:"importKey,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	DeletedAt        *time.Time      `json:"deletedAt,omitempty"`
}

// Deleted reports whether the card carries a soft-delete marker.
func (c Card) Deleted() bool {
	return c.DeletedAt != nil
}

// NewCardInput describes a card to create. Content must already have been
// validated against CardType.
type NewCardInput struct {
	OwnerID          string
	CardType         CardType
	Content          json.RawMessage
	Difficulty       Difficulty
	Tags             []string
	KnowledgeNodeIDs []string
	Source           Source
	Metadata         map[string]any
	Fingerprint      string
	ImportSourceID   int64
	ImportKey        string
}

// NewCard creates a draft card at version 1 with a generated ID and timestamps.
func NewCard(input NewCardInput, now func() time.Time, idGenerator func() (string, error)) (Card, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = NewID
	}

	var fields []apperrors.FieldError
	if strings.TrimSpace(input.OwnerID) == "" {
		fields = append(fields, apperrors.FieldError{Path: "ownerId", Message: "is required"})
	}
	if !input.CardType.Valid() {
		fields = append(fields, apperrors.FieldError{Path: "cardType", Message: fmt.Sprintf("unknown card type %q", input.CardType)})
	}
	if len(input.Content) == 0 {
		fields = append(fields, apperrors.FieldError{Path: "content", Message: "is required"})
	}
	if !input.Difficulty.Valid() {
		fields = append(fields, apperrors.FieldError{Path: "difficulty", Message: fmt.Sprintf("unknown difficulty %q", input.Difficulty)})
	}
	source := input.Source
	if source == "" {
		source = SourceUser
	}
	if !source.Valid() {
		fields = append(fields, apperrors.FieldError{Path: "source", Message: fmt.Sprintf("unknown source %q", input.Source)})
	}
	tags, tagErrs := NormalizeTags(input.Tags)
	fields = append(fields, tagErrs...)
	nodes, nodeErrs := NormalizeKnowledgeNodeIDs(input.KnowledgeNodeIDs)
	fields = append(fields, nodeErrs...)
	if len(fields) > 0 {
		return Card{}, apperrors.Validation(fields...)
	}

	cardID, err := idGenerator()
	if err != nil {
		return Card{}, fmt.Errorf("generate card id: %w", err)
	}

	createdAt := now().UTC()
	return Card{
		ID:               cardID,
		OwnerID:          input.OwnerID,
		CardType:         input.CardType,
		Content:          input.Content,
		State:            StateDraft,
		Version:          1,
		Difficulty:       input.Difficulty,
		Tags:             tags,
		KnowledgeNodeIDs: nodes,
		Source:           source,
		Metadata:         input.Metadata,
		Fingerprint:      input.Fingerprint,
		ImportSourceID:   input.ImportSourceID,
		ImportKey:        input.ImportKey,
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}, nil
}

// ContentChange is a partial update of the content-related fields. Nil
// fields keep their current value.
type ContentChange struct {
	Content     json.RawMessage
	Difficulty  *Difficulty
	Metadata    map[string]any
	Fingerprint string
}

// WithContent returns the card with change applied at the next version.
func (c Card) WithContent(change ContentChange, now time.Time) (Card, error) {
	if err := c.ensureEditable(); err != nil {
		return Card{}, err
	}
	if change.Difficulty != nil && !change.Difficulty.Valid() {
		return Card{}, apperrors.Field("difficulty", "unknown difficulty %q", *change.Difficulty)
	}
	next := c.bump(now)
	if len(change.Content) > 0 {
		next.Content = change.Content
	}
	if change.Difficulty != nil {
		next.Difficulty = *change.Difficulty
	}
	if change.Metadata != nil {
		next.Metadata = change.Metadata
	}
	if change.Fingerprint != "" {
		next.Fingerprint = change.Fingerprint
	}
	return next, nil
}

// WithTags replaces the tag set.
func (c Card) WithTags(tags []string, now time.Time) (Card, error) {
	if err := c.ensureEditable(); err != nil {
		return Card{}, err
	}
	normalized, fields := NormalizeTags(tags)
	if len(fields) > 0 {
		return Card{}, apperrors.Validation(fields...)
	}
	next := c.bump(now)
	next.Tags = normalized
	return next, nil
}

// WithKnowledgeNodes replaces the knowledge-graph links.
func (c Card) WithKnowledgeNodes(ids []string, now time.Time) (Card, error) {
	if err := c.ensureEditable(); err != nil {
		return Card{}, err
	}
	normalized, fields := NormalizeKnowledgeNodeIDs(ids)
	if len(fields) > 0 {
		return Card{}, apperrors.Validation(fields...)
	}
	next := c.bump(now)
	next.KnowledgeNodeIDs = normalized
	return next, nil
}

// Transition moves the card to state to.
func (c Card) Transition(to State, now time.Time) (Card, error) {
	if c.Deleted() {
		return Card{}, deletedError(c.ID)
	}
	if err := CheckTransition(c.State, to); err != nil {
		return Card{}, err
	}
	next := c.bump(now)
	next.State = to
	return next, nil
}

// SoftDelete marks the card deleted.
func (c Card) SoftDelete(now time.Time) (Card, error) {
	if c.Deleted() {
		return Card{}, deletedError(c.ID)
	}
	next := c.bump(now)
	at := next.UpdatedAt
	next.DeletedAt = &at
	return next, nil
}

// Restore clears the soft-delete marker.
func (c Card) Restore(now time.Time) (Card, error) {
	if !c.Deleted() {
		return Card{}, apperrors.WithMetadata(apperrors.CodeCardNotDeleted,
			fmt.Sprintf("card %s is not deleted", c.ID), map[string]string{"card_id": c.ID})
	}
	next := c.bump(now)
	next.DeletedAt = nil
	return next, nil
}

func (c Card) ensureEditable() error {
	if c.Deleted() {
		return deletedError(c.ID)
	}
	if c.State == StateArchived {
		return apperrors.WithMetadata(apperrors.CodeCardArchived,
			fmt.Sprintf("card %s is archived; transition it to %s before editing", c.ID, StateDraft),
			map[string]string{"card_id": c.ID, "state": string(c.State)})
	}
	return nil
}

func (c Card) bump(now time.Time) Card {
	next := c
	next.Version = c.Version + 1
	next.UpdatedAt = now.UTC()
	next.Tags = append([]string(nil), c.Tags...)
	next.KnowledgeNodeIDs = append([]string(nil), c.KnowledgeNodeIDs...)
	return next
}

func deletedError(id string) error {
	return apperrors.WithMetadata(apperrors.CodeCardDeleted,
		fmt.Sprintf("card %s is deleted", id), map[string]string{"card_id": id})
}

// NormalizeTags trims, lowercases and de-duplicates tags, preserving first
// occurrence order, and reports every tag that breaks the pattern.
func NormalizeTags(tags []string) ([]string, []apperrors.FieldError) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	var fields []apperrors.FieldError
	for i, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		if !tagPattern.MatchString(tag) {
			fields = append(fields, apperrors.FieldError{
				Path:    fmt.Sprintf("tags[%d]", i),
				Message: fmt.Sprintf("tag %q must match %s", raw, tagPattern.String()),
			})
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) > MaxTags {
		fields = append(fields, apperrors.FieldError{Path: "tags", Message: fmt.Sprintf("at most %d tags allowed", MaxTags)})
	}
	return out, fields
}

// NormalizeKnowledgeNodeIDs trims and de-duplicates node ids.
func NormalizeKnowledgeNodeIDs(ids []string) ([]string, []apperrors.FieldError) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	var fields []apperrors.FieldError
	for i, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" || len(id) > maxNodeIDLength {
			fields = append(fields, apperrors.FieldError{
				Path:    fmt.Sprintf("knowledgeNodeIds[%d]", i),
				Message: fmt.Sprintf("must be 1..%d characters", maxNodeIDLength),
			})
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) > MaxKnowledgeNodes {
		fields = append(fields, apperrors.FieldError{Path: "knowledgeNodeIds", Message: fmt.Sprintf("at most %d links allowed", MaxKnowledgeNodes)})
	}
	return out, fields
}
