package content

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/conorfennell/knolarchive/internal/domain"
)

// FieldSpec describes one field of a card-type payload.
type FieldSpec struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Constraints []string `json:"constraints,omitempty"`
}

// Schema is the machine-readable description of a card type, precise enough
// for a caller to pre-validate a payload before submitting it.
type Schema struct {
	Type        domain.CardType `json:"type"`
	Family      domain.Family   `json:"family"`
	Description string          `json:"description"`
	Fields      []FieldSpec     `json:"fields"`
	Rules       []string        `json:"rules,omitempty"`
}

type typeDoc struct {
	description string
	rules       []string
}

var docs = map[domain.CardType]typeDoc{
	domain.TypeAtomic:         {description: "Plain question and answer."},
	domain.TypeCloze:          {"Template with {{cN}} or {{cN::text}} deletions.", []string{"template has at least one {{cN}} placeholder", "every placeholder has exactly one clozes entry with the same index", "every clozes index appears in the template"}},
	domain.TypeImageOcclusion: {"Regions of an image hidden for recall.", []string{"image.kind is image", "regions ids are unique", "each region lies within the unit square"}},
	domain.TypeAudio:          {description: "Answered from an audio recording."},
	domain.TypeProcess:        {"Ordered procedure.", []string{"steps order values form 1..N"}},
	domain.TypeComparison:     {"Items compared along dimensions.", []string{"each dimensions values has one entry per item"}},
	domain.TypeException:      {description: "A rule and its exceptions."},
	domain.TypeMultipleChoice: {"Options with at least one correct.", []string{"at least one choice is correct", "choice texts are unique"}},
	domain.TypeTrueFalse:      {description: "Statement judged true or false."},
	domain.TypeOrdering:       {"Items put in sequence.", []string{"items position values form 1..N without gaps or duplicates"}},
	domain.TypeDefinition:     {description: "Term and definition."},
	domain.TypeCauseEffect:    {description: "Causes linked to effects."},
	domain.TypeTimeline:       {"Dated events.", []string{"event dates are YYYY, YYYY-MM or YYYY-MM-DD"}},
	domain.TypeMatching:       {"Left items matched to right items.", []string{"pair lefts are unique"}},
	domain.TypeLabeledDiagram: {"Labeled points on an image.", []string{"image.kind is image", "labels ids are unique"}},
	domain.TypeFormula:        {"Mathematical expression.", []string{"variables symbols are unique"}},
	domain.TypeCode:           {description: "Source code snippet."},
	domain.TypeScenario:       {description: "Knowledge applied to a situation."},
	domain.TypeMnemonic:       {description: "Memory aid and what it encodes."},
	domain.TypeExample:        {description: "Concept illustrated by examples."},
	domain.TypeReverse:        {description: "Card studied in both directions."},
	domain.TypeList:           {description: "Members of a set, optionally ordered."},

	domain.TypeContrastive:       {"Two confusable concepts separated.", []string{"conceptA and conceptB differ"}},
	domain.TypeMinimalPair:       {"Two items differing in one feature.", []string{"pairA and pairB differ"}},
	domain.TypeFalseFriend:       {"Term whose assumed meaning is wrong.", []string{"assumedMeaning and actualMeaning differ"}},
	domain.TypeMisconception:     {description: "Wrong belief and its correction."},
	domain.TypeErrorSpotting:     {"Flawed material with located errors.", []string{"errors locations are unique"}},
	domain.TypeConfidenceRated:   {description: "Recall preceded by a confidence rating."},
	domain.TypeSelfExplanation:   {description: "Explain in your own words."},
	domain.TypeWorkedExample:     {"Solved problem step by step.", []string{"steps order values form 1..N"}},
	domain.TypeFadedExample:      {"Worked example with blank steps.", []string{"steps order values form 1..N", "at least one step is blank and at least one is shown"}},
	domain.TypeCuedRecall:        {description: "Recall through successive cues."},
	domain.TypeElaboration:       {description: "Why a fact holds."},
	domain.TypeAnalogy:           {"Familiar source mapped onto a target.", []string{"source and target differ"}},
	domain.TypeCounterexample:    {description: "Claim refuted by a counterexample."},
	domain.TypeBoundaryCase:      {"Where a rule stops applying.", []string{"insideExample and outsideExample differ"}},
	domain.TypeDiscrimination:    {"Choose between similar options.", []string{"correctOption is one of options"}},
	domain.TypePrerequisiteCheck: {description: "Checks prerequisite knowledge nodes."},
	domain.TypeInterleaved:       {description: "Related topics mixed in one prompt."},
	domain.TypeRetrievalCue:      {description: "Fact with a retrieval cue."},
	domain.TypeRebuild:           {"Reassemble shuffled fragments.", []string{"fragments position values form 1..N without gaps or duplicates"}},
	domain.TypeTeachBack:         {description: "Explain the concept to an audience."},
}

// registry is built once at init and never mutated afterwards, so it is safe
// for concurrent readers.
var registry = buildRegistry()

func buildRegistry() map[domain.CardType]Schema {
	reg := make(map[domain.CardType]Schema, len(domain.AllCardTypes()))
	for _, t := range domain.AllCardTypes() {
		p := newPayload(t)
		if p == nil {
			panic(fmt.Sprintf("content: card type %s has no payload", t))
		}
		if _, dup := reg[t]; dup {
			panic(fmt.Sprintf("content: card type %s registered twice", t))
		}
		doc := docs[t]
		reg[t] = Schema{
			Type:        t,
			Family:      t.Family(),
			Description: doc.description,
			Fields:      describeStruct(reflect.TypeOf(p).Elem(), ""),
			Rules:       doc.rules,
		}
	}
	return reg
}

// Lookup returns the schema registered for t.
func Lookup(t domain.CardType) (Schema, bool) {
	s, ok := registry[t]
	if !ok {
		return Schema{}, false
	}
	return s.clone(), true
}

// Describe lists every registered schema in card-type declaration order.
func Describe() []Schema {
	out := make([]Schema, 0, len(registry))
	for _, t := range domain.AllCardTypes() {
		out = append(out, registry[t].clone())
	}
	return out
}

// Registered returns the number of registered card types.
func Registered() int {
	return len(registry)
}

func (s Schema) clone() Schema {
	fields := make([]FieldSpec, len(s.Fields))
	for i, f := range s.Fields {
		f.Constraints = append([]string(nil), f.Constraints...)
		fields[i] = f
	}
	s.Fields = fields
	s.Rules = append([]string(nil), s.Rules...)
	return s
}

// describeStruct flattens a payload struct into field specs. Embedded structs
// are inlined, nested structs use dotted names and slice elements use "[]".
func describeStruct(t reflect.Type, prefix string) []FieldSpec {
	var out []FieldSpec
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous {
			out = append(out, describeStruct(f.Type, prefix)...)
			continue
		}
		name := jsonName(f)
		if name == "" {
			continue
		}
		full := prefix + name
		tags := splitTag(f.Tag.Get("validate"))
		own, elem := tags, []string(nil)
		if idx := indexOf(tags, "dive"); idx >= 0 {
			own, elem = tags[:idx], tags[idx+1:]
		}

		spec := FieldSpec{
			Name:        full,
			Type:        jsonType(f.Type),
			Required:    contains(own, "required") || (len(own) > 0 && f.Type.Kind() == reflect.Int && hasPrefix(own, "gte=")),
			Constraints: constraints(own),
		}
		out = append(out, spec)

		ft := f.Type
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
		}
		switch ft.Kind() {
		case reflect.Struct:
			out = append(out, describeStruct(ft, full+".")...)
		case reflect.Slice:
			et := ft.Elem()
			if et.Kind() == reflect.Struct {
				out = append(out, describeStruct(et, full+"[].")...)
			} else if len(elem) > 0 {
				out = append(out, FieldSpec{
					Name:        full + "[]",
					Type:        jsonType(et),
					Required:    contains(elem, "required"),
					Constraints: constraints(elem),
				})
			}
		}
	}
	return out
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Pointer:
		return jsonType(t.Elem())
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func splitTag(tag string) []string {
	if tag == "" {
		return nil
	}
	return strings.Split(tag, ",")
}

func constraints(tags []string) []string {
	var out []string
	for _, t := range tags {
		if t == "required" || t == "omitempty" {
			continue
		}
		out = append(out, t)
	}
	return out
}

func indexOf(tags []string, want string) int {
	for i, t := range tags {
		if t == want {
			return i
		}
	}
	return -1
}

func contains(tags []string, want string) bool {
	return indexOf(tags, want) >= 0
}

func hasPrefix(tags []string, prefix string) bool {
	for _, t := range tags {
		if strings.HasPrefix(t, prefix) {
			return true
		}
	}
	return false
}
