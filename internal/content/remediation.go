package content

import (
	"strings"

	"github.com/conorfennell/knolarchive/internal/domain"
)

// SpottedError locates a mistake in flawed material and its fix.
type SpottedError struct {
	Location string `json:"location" validate:"required,notblank,max=500"`
	Fix      string `json:"fix" validate:"required,notblank,max=2000"`
}

// FadedStep is a worked step that may be left blank for the learner.
type FadedStep struct {
	Order int    `json:"order" validate:"gte=1"`
	Text  string `json:"text" validate:"required,notblank,max=2000"`
	Blank bool   `json:"blank,omitempty"`
}

// Mapping links an element of an analogy's source to its target.
type Mapping struct {
	From string `json:"from" validate:"required,notblank,max=500"`
	To   string `json:"to" validate:"required,notblank,max=500"`
}

// Contrastive separates two concepts that learners confuse.
type Contrastive struct {
	Base
	ConceptA    string   `json:"conceptA" validate:"required,notblank,max=500"`
	ConceptB    string   `json:"conceptB" validate:"required,notblank,max=500"`
	Differences []string `json:"differences" validate:"required,min=1,max=20,dive,required,notblank,max=2000"`
}

func (*Contrastive) CardType() domain.CardType { return domain.TypeContrastive }

func (c *Contrastive) check(r *report) {
	checkDistinct(r, "conceptB", c.ConceptA, c.ConceptB)
}

// MinimalPair contrasts two items that differ in one feature.
type MinimalPair struct {
	Base
	PairA       string `json:"pairA" validate:"required,notblank,max=500"`
	PairB       string `json:"pairB" validate:"required,notblank,max=500"`
	Distinction string `json:"distinction" validate:"required,notblank,max=2000"`
}

func (*MinimalPair) CardType() domain.CardType { return domain.TypeMinimalPair }

func (c *MinimalPair) check(r *report) {
	checkDistinct(r, "pairB", c.PairA, c.PairB)
}

// FalseFriend corrects a term whose assumed meaning is wrong.
type FalseFriend struct {
	Base
	Term           string `json:"term" validate:"required,notblank,max=500"`
	AssumedMeaning string `json:"assumedMeaning" validate:"required,notblank,max=2000"`
	ActualMeaning  string `json:"actualMeaning" validate:"required,notblank,max=2000"`
}

func (*FalseFriend) CardType() domain.CardType { return domain.TypeFalseFriend }

func (c *FalseFriend) check(r *report) {
	checkDistinct(r, "actualMeaning", c.AssumedMeaning, c.ActualMeaning)
}

// Misconception names a wrong belief and its correction.
type Misconception struct {
	Base
	Misconception string `json:"misconception" validate:"required,notblank,max=2000"`
	Correction    string `json:"correction" validate:"required,notblank,max=10000"`
	Evidence      string `json:"evidence,omitempty" validate:"max=10000"`
}

func (*Misconception) CardType() domain.CardType { return domain.TypeMisconception }

// ErrorSpotting asks the learner to find the mistakes in flawed material.
type ErrorSpotting struct {
	Base
	Flawed string         `json:"flawed" validate:"required,notblank,max=20000"`
	Errors []SpottedError `json:"errors" validate:"required,min=1,max=20,dive"`
}

func (*ErrorSpotting) CardType() domain.CardType { return domain.TypeErrorSpotting }

func (c *ErrorSpotting) check(r *report) {
	locs := make([]string, len(c.Errors))
	for i, e := range c.Errors {
		locs[i] = strings.ToLower(strings.TrimSpace(e.Location))
	}
	checkUnique(r, "errors", "location", locs)
}

// ConfidenceRated asks for a confidence rating before revealing the answer.
type ConfidenceRated struct {
	Base
	ConfidenceScale int `json:"confidenceScale" validate:"gte=3,lte=10"`
}

func (*ConfidenceRated) CardType() domain.CardType { return domain.TypeConfidenceRated }

// SelfExplanation asks the learner to explain in their own words.
type SelfExplanation struct {
	Base
	Prompt    string   `json:"prompt" validate:"required,notblank,max=2000"`
	KeyPoints []string `json:"keyPoints,omitempty" validate:"max=20,dive,required,notblank,max=1000"`
}

func (*SelfExplanation) CardType() domain.CardType { return domain.TypeSelfExplanation }

// WorkedExample walks through a solved problem.
type WorkedExample struct {
	Base
	Problem string `json:"problem" validate:"required,notblank,max=10000"`
	Steps   []Step `json:"steps" validate:"required,min=2,max=50,dive"`
}

func (*WorkedExample) CardType() domain.CardType { return domain.TypeWorkedExample }

func (c *WorkedExample) check(r *report) {
	checkSequence(r, "steps", "order", stepOrders(c.Steps))
}

// FadedExample is a worked example with some steps left for the learner.
type FadedExample struct {
	Base
	Problem string      `json:"problem" validate:"required,notblank,max=10000"`
	Steps   []FadedStep `json:"steps" validate:"required,min=2,max=50,dive"`
}

func (*FadedExample) CardType() domain.CardType { return domain.TypeFadedExample }

func (c *FadedExample) check(r *report) {
	orders := make([]int, len(c.Steps))
	blanks := 0
	for i, s := range c.Steps {
		orders[i] = s.Order
		if s.Blank {
			blanks++
		}
	}
	checkSequence(r, "steps", "order", orders)
	if len(c.Steps) > 0 && blanks == 0 {
		r.add("steps", "at least one step must be blank")
	}
	if len(c.Steps) > 0 && blanks == len(c.Steps) {
		r.add("steps", "at least one step must be shown")
	}
}

// CuedRecall prompts recall through a series of cues.
type CuedRecall struct {
	Base
	Cues []string `json:"cues" validate:"required,min=1,max=20,dive,required,notblank,max=1000"`
}

func (*CuedRecall) CardType() domain.CardType { return domain.TypeCuedRecall }

// Elaboration asks why a fact holds.
type Elaboration struct {
	Base
	Why         string   `json:"why" validate:"required,notblank,max=10000"`
	Connections []string `json:"connections,omitempty" validate:"max=20,dive,required,notblank,max=1000"`
}

func (*Elaboration) CardType() domain.CardType { return domain.TypeElaboration }

// Analogy maps a familiar source domain onto the target concept.
type Analogy struct {
	Base
	Source   string    `json:"source" validate:"required,notblank,max=1000"`
	Target   string    `json:"target" validate:"required,notblank,max=1000"`
	Mappings []Mapping `json:"mappings" validate:"required,min=1,max=20,dive"`
}

func (*Analogy) CardType() domain.CardType { return domain.TypeAnalogy }

func (c *Analogy) check(r *report) {
	checkDistinct(r, "target", c.Source, c.Target)
}

// Counterexample refutes an over-general claim.
type Counterexample struct {
	Base
	Claim          string `json:"claim" validate:"required,notblank,max=2000"`
	Counterexample string `json:"counterexample" validate:"required,notblank,max=10000"`
}

func (*Counterexample) CardType() domain.CardType { return domain.TypeCounterexample }

// BoundaryCase probes where a rule stops applying.
type BoundaryCase struct {
	Base
	Rule           string `json:"rule" validate:"required,notblank,max=2000"`
	Boundary       string `json:"boundary" validate:"required,notblank,max=2000"`
	InsideExample  string `json:"insideExample" validate:"required,notblank,max=2000"`
	OutsideExample string `json:"outsideExample" validate:"required,notblank,max=2000"`
}

func (*BoundaryCase) CardType() domain.CardType { return domain.TypeBoundaryCase }

func (c *BoundaryCase) check(r *report) {
	checkDistinct(r, "outsideExample", c.InsideExample, c.OutsideExample)
}

// Discrimination asks which of several similar options applies.
type Discrimination struct {
	Base
	Options       []string `json:"options" validate:"required,min=2,max=10,unique,dive,required,notblank,max=500"`
	CorrectOption string   `json:"correctOption" validate:"required,notblank,max=500"`
}

func (*Discrimination) CardType() domain.CardType { return domain.TypeDiscrimination }

func (c *Discrimination) check(r *report) {
	if c.CorrectOption == "" || len(c.Options) == 0 {
		return
	}
	for _, o := range c.Options {
		if o == c.CorrectOption {
			return
		}
	}
	r.add("correctOption", "must be one of the options [%s]", strings.Join(c.Options, ", "))
}

// PrerequisiteCheck verifies knowledge the target concept depends on.
type PrerequisiteCheck struct {
	Base
	PrerequisiteNodeIDs []string `json:"prerequisiteNodeIds" validate:"required,min=1,max=50,unique,dive,required,notblank,max=128"`
}

func (*PrerequisiteCheck) CardType() domain.CardType { return domain.TypePrerequisiteCheck }

// Interleaved mixes related topics in one prompt.
type Interleaved struct {
	Base
	Topics []string `json:"topics" validate:"required,min=2,max=10,unique,dive,required,notblank,max=200"`
}

func (*Interleaved) CardType() domain.CardType { return domain.TypeInterleaved }

// RetrievalCue attaches a retrieval cue to a fact.
type RetrievalCue struct {
	Base
	Cue     string `json:"cue" validate:"required,notblank,max=1000"`
	Context string `json:"context,omitempty" validate:"max=2000"`
}

func (*RetrievalCue) CardType() domain.CardType { return domain.TypeRetrievalCue }

// Rebuild asks the learner to reassemble shuffled fragments.
type Rebuild struct {
	Base
	Fragments []Positioned `json:"fragments" validate:"required,min=2,max=50,dive"`
}

func (*Rebuild) CardType() domain.CardType { return domain.TypeRebuild }

func (c *Rebuild) check(r *report) {
	checkSequence(r, "fragments", "position", positions(c.Fragments))
}

// TeachBack asks the learner to explain the concept to an audience.
type TeachBack struct {
	Base
	Audience string   `json:"audience" validate:"required,notblank,max=200"`
	Rubric   []string `json:"rubric" validate:"required,min=1,max=20,dive,required,notblank,max=1000"`
}

func (*TeachBack) CardType() domain.CardType { return domain.TypeTeachBack }
