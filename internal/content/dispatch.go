package content

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

// newPayload returns an empty payload for t, or nil when t is not a member of
// the closed card-type set. Every case must be listed here; the registry
// completeness test fails otherwise.
func newPayload(t domain.CardType) Payload {
	switch t {
	case domain.TypeAtomic:
		return &Atomic{}
	case domain.TypeCloze:
		return &Cloze{}
	case domain.TypeImageOcclusion:
		return &ImageOcclusion{}
	case domain.TypeAudio:
		return &Audio{}
	case domain.TypeProcess:
		return &Process{}
	case domain.TypeComparison:
		return &Comparison{}
	case domain.TypeException:
		return &Exception{}
	case domain.TypeMultipleChoice:
		return &MultipleChoice{}
	case domain.TypeTrueFalse:
		return &TrueFalse{}
	case domain.TypeOrdering:
		return &Ordering{}
	case domain.TypeDefinition:
		return &Definition{}
	case domain.TypeCauseEffect:
		return &CauseEffect{}
	case domain.TypeTimeline:
		return &Timeline{}
	case domain.TypeMatching:
		return &Matching{}
	case domain.TypeLabeledDiagram:
		return &LabeledDiagram{}
	case domain.TypeFormula:
		return &Formula{}
	case domain.TypeCode:
		return &Code{}
	case domain.TypeScenario:
		return &Scenario{}
	case domain.TypeMnemonic:
		return &Mnemonic{}
	case domain.TypeExample:
		return &Example{}
	case domain.TypeReverse:
		return &Reverse{}
	case domain.TypeList:
		return &List{}
	case domain.TypeContrastive:
		return &Contrastive{}
	case domain.TypeMinimalPair:
		return &MinimalPair{}
	case domain.TypeFalseFriend:
		return &FalseFriend{}
	case domain.TypeMisconception:
		return &Misconception{}
	case domain.TypeErrorSpotting:
		return &ErrorSpotting{}
	case domain.TypeConfidenceRated:
		return &ConfidenceRated{}
	case domain.TypeSelfExplanation:
		return &SelfExplanation{}
	case domain.TypeWorkedExample:
		return &WorkedExample{}
	case domain.TypeFadedExample:
		return &FadedExample{}
	case domain.TypeCuedRecall:
		return &CuedRecall{}
	case domain.TypeElaboration:
		return &Elaboration{}
	case domain.TypeAnalogy:
		return &Analogy{}
	case domain.TypeCounterexample:
		return &Counterexample{}
	case domain.TypeBoundaryCase:
		return &BoundaryCase{}
	case domain.TypeDiscrimination:
		return &Discrimination{}
	case domain.TypePrerequisiteCheck:
		return &PrerequisiteCheck{}
	case domain.TypeInterleaved:
		return &Interleaved{}
	case domain.TypeRetrievalCue:
		return &RetrievalCue{}
	case domain.TypeRebuild:
		return &Rebuild{}
	case domain.TypeTeachBack:
		return &TeachBack{}
	default:
		return nil
	}
}

// Validate decodes raw as the payload of cardType and checks it. Failures are
// returned as a *errors.ValidationError: an unknown card type is reported at
// "cardType", everything else under "content.".
func Validate(cardType string, raw json.RawMessage) (Payload, error) {
	t := domain.CardType(cardType)
	p := newPayload(t)
	if p == nil {
		return nil, apperrors.Field("cardType", "unknown card type %q; known types: %s",
			cardType, strings.Join(domain.CardTypeNames(), ", "))
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, apperrors.Field("content", "is required")
	}
	if fields := decodeStrict(raw, p); len(fields) > 0 {
		return nil, apperrors.Validation(fields...).Prefix("content")
	}
	if fields := Check(p); len(fields) > 0 {
		return nil, apperrors.Validation(fields...).Prefix("content")
	}
	return p, nil
}

// Check runs tag and cross-field validation on an already decoded payload and
// returns field errors relative to the payload root.
func Check(p Payload) []apperrors.FieldError {
	var fields []apperrors.FieldError
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []apperrors.FieldError{{Path: "", Message: err.Error()}}
		}
		fields = append(fields, fieldErrors(verrs)...)
	}
	if c, ok := p.(checker); ok {
		r := &report{}
		c.check(r)
		fields = append(fields, r.fields...)
	}
	return fields
}

// Encode returns the canonical JSON stored for p.
func Encode(p Payload) (json.RawMessage, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s content: %w", p.CardType(), err)
	}
	return b, nil
}

// Normalize validates raw and returns its canonical encoding.
func Normalize(cardType string, raw json.RawMessage) (Payload, json.RawMessage, error) {
	p, err := Validate(cardType, raw)
	if err != nil {
		return nil, nil, err
	}
	canonical, err := Encode(p)
	if err != nil {
		return nil, nil, err
	}
	return p, canonical, nil
}
