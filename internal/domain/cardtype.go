package domain

import "sort"

// CardType is the discriminator selecting a card's content shape.
type CardType string

// Family groups card types into the standard pedagogical shapes and the
// remediation shapes used to repair misunderstandings.
type Family string

const (
	FamilyStandard    Family = "standard"
	FamilyRemediation Family = "remediation"
)

// Standard card types.
const (
	TypeAtomic         CardType = "atomic"
	TypeCloze          CardType = "cloze"
	TypeImageOcclusion CardType = "image_occlusion"
	TypeAudio          CardType = "audio"
	TypeProcess        CardType = "process"
	TypeComparison     CardType = "comparison"
	TypeException      CardType = "exception"
	TypeMultipleChoice CardType = "multiple_choice"
	TypeTrueFalse      CardType = "true_false"
	TypeOrdering       CardType = "ordering"
	TypeDefinition     CardType = "definition"
	TypeCauseEffect    CardType = "cause_effect"
	TypeTimeline       CardType = "timeline"
	TypeMatching       CardType = "matching"
	TypeLabeledDiagram CardType = "labeled_diagram"
	TypeFormula        CardType = "formula"
	TypeCode           CardType = "code"
	TypeScenario       CardType = "scenario"
	TypeMnemonic       CardType = "mnemonic"
	TypeExample        CardType = "example"
	TypeReverse        CardType = "reverse"
	TypeList           CardType = "list"
)

// Remediation card types.
const (
	TypeContrastive       CardType = "contrastive"
	TypeMinimalPair       CardType = "minimal_pair"
	TypeFalseFriend       CardType = "false_friend"
	TypeMisconception     CardType = "misconception"
	TypeErrorSpotting     CardType = "error_spotting"
	TypeConfidenceRated   CardType = "confidence_rated"
	TypeSelfExplanation   CardType = "self_explanation"
	TypeWorkedExample     CardType = "worked_example"
	TypeFadedExample      CardType = "faded_example"
	TypeCuedRecall        CardType = "cued_recall"
	TypeElaboration       CardType = "elaboration"
	TypeAnalogy           CardType = "analogy"
	TypeCounterexample    CardType = "counterexample"
	TypeBoundaryCase      CardType = "boundary_case"
	TypeDiscrimination    CardType = "discrimination"
	TypePrerequisiteCheck CardType = "prerequisite_check"
	TypeInterleaved       CardType = "interleaved"
	TypeRetrievalCue      CardType = "retrieval_cue"
	TypeRebuild           CardType = "rebuild"
	TypeTeachBack         CardType = "teach_back"
)

var standardTypes = []CardType{
	TypeAtomic, TypeCloze, TypeImageOcclusion, TypeAudio, TypeProcess,
	TypeComparison, TypeException, TypeMultipleChoice, TypeTrueFalse,
	TypeOrdering, TypeDefinition, TypeCauseEffect, TypeTimeline, TypeMatching,
	TypeLabeledDiagram, TypeFormula, TypeCode, TypeScenario, TypeMnemonic,
	TypeExample, TypeReverse, TypeList,
}

var remediationTypes = []CardType{
	TypeContrastive, TypeMinimalPair, TypeFalseFriend, TypeMisconception,
	TypeErrorSpotting, TypeConfidenceRated, TypeSelfExplanation,
	TypeWorkedExample, TypeFadedExample, TypeCuedRecall, TypeElaboration,
	TypeAnalogy, TypeCounterexample, TypeBoundaryCase, TypeDiscrimination,
	TypePrerequisiteCheck, TypeInterleaved, TypeRetrievalCue, TypeRebuild,
	TypeTeachBack,
}

var cardTypeFamily = func() map[CardType]Family {
	m := make(map[CardType]Family, len(standardTypes)+len(remediationTypes))
	for _, t := range standardTypes {
		m[t] = FamilyStandard
	}
	for _, t := range remediationTypes {
		m[t] = FamilyRemediation
	}
	return m
}()

// AllCardTypes returns every card type, standard types first, in declaration order.
func AllCardTypes() []CardType {
	all := make([]CardType, 0, len(standardTypes)+len(remediationTypes))
	all = append(all, standardTypes...)
	return append(all, remediationTypes...)
}

// CardTypeNames returns the sorted discriminator strings.
func CardTypeNames() []string {
	names := make([]string, 0, len(cardTypeFamily))
	for t := range cardTypeFamily {
		names = append(names, string(t))
	}
	sort.Strings(names)
	return names
}

// ParseCardType reports whether s names a known card type.
func ParseCardType(s string) (CardType, bool) {
	t := CardType(s)
	_, ok := cardTypeFamily[t]
	return t, ok
}

// Valid reports whether t is a member of the closed set.
func (t CardType) Valid() bool {
	_, ok := cardTypeFamily[t]
	return ok
}

// Family returns the family of t, or "" for unknown types.
func (t CardType) Family() Family {
	return cardTypeFamily[t]
}
