package content

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

func validationPaths(t *testing.T, err error) []string {
	t.Helper()
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	return verr.Paths()
}

func TestRegistryCompleteness(t *testing.T) {
	require.Equal(t, len(domain.AllCardTypes()), Registered())

	for _, ct := range domain.AllCardTypes() {
		schema, ok := Lookup(ct)
		require.True(t, ok, "no schema for %s", ct)
		assert.Equal(t, ct, schema.Type)
		assert.NotEmpty(t, schema.Description, "missing description for %s", ct)
		assert.Equal(t, ct, newPayload(ct).CardType(), "payload for %s reports the wrong type", ct)
		_, hasFixture := minimalFixtures[ct]
		assert.True(t, hasFixture, "missing fixture for %s", ct)
	}
	assert.Len(t, docs, len(domain.AllCardTypes()))

	_, ok := Lookup("flashcard")
	assert.False(t, ok)
	assert.Nil(t, newPayload("flashcard"))
}

func TestMinimalFixturesValidate(t *testing.T) {
	for _, ct := range domain.AllCardTypes() {
		t.Run(string(ct), func(t *testing.T) {
			p, err := Validate(string(ct), fixture(ct))
			require.NoError(t, err)
			assert.Equal(t, ct, p.CardType())
			assert.NotEmpty(t, p.Common().Front)

			encoded, err := Encode(p)
			require.NoError(t, err)
			again, err := Validate(string(ct), encoded)
			require.NoError(t, err, "canonical encoding must validate")
			assert.Equal(t, p, again)
		})
	}
}

func TestEmptyPayloadRejectedEverywhere(t *testing.T) {
	for _, ct := range domain.AllCardTypes() {
		t.Run(string(ct), func(t *testing.T) {
			_, err := Validate(string(ct), json.RawMessage(`{}`))
			require.Error(t, err)
			paths := validationPaths(t, err)
			assert.Contains(t, paths, "content.front")
			assert.Contains(t, paths, "content.back")
		})
	}
}

func TestUnknownCardType(t *testing.T) {
	_, err := Validate("flashcard", fixture(domain.TypeAtomic))
	require.Error(t, err)

	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "cardType", verr.Fields[0].Path)
	assert.Contains(t, verr.Fields[0].Message, `"flashcard"`)
	for _, name := range domain.CardTypeNames() {
		assert.Contains(t, verr.Fields[0].Message, name)
	}
}

func TestClozeWithoutTemplateButAtomicAccepts(t *testing.T) {
	raw := json.RawMessage(`{"front":"Capital of X?","back":"Answer"}`)

	_, err := Validate("cloze", raw)
	require.Error(t, err)
	paths := validationPaths(t, err)
	assert.Contains(t, paths, "content.template")
	assert.Contains(t, paths, "content.clozes")

	p, err := Validate("atomic", raw)
	require.NoError(t, err)
	assert.Equal(t, "Capital of X?", p.Common().Front)
}

func TestStructuralRules(t *testing.T) {
	testCases := []struct {
		name     string
		cardType domain.CardType
		payload  string
		path     string
	}{
		{"ordering gap", domain.TypeOrdering, `{"front":"f","back":"b","items":[{"text":"a","position":1},{"text":"b","position":3}]}`, "content.items[1].position"},
		{"ordering duplicate", domain.TypeOrdering, `{"front":"f","back":"b","items":[{"text":"a","position":1},{"text":"b","position":1}]}`, "content.items[1].position"},
		{"ordering zero", domain.TypeOrdering, `{"front":"f","back":"b","items":[{"text":"a","position":0},{"text":"b","position":1}]}`, "content.items[0].position"},
		{"ordering single item", domain.TypeOrdering, `{"front":"f","back":"b","items":[{"text":"a","position":1}]}`, "content.items"},
		{"no correct choice", domain.TypeMultipleChoice, `{"front":"f","back":"b","choices":[{"text":"a"},{"text":"b"}]}`, "content.choices"},
		{"duplicate choice", domain.TypeMultipleChoice, `{"front":"f","back":"b","choices":[{"text":"a","correct":true},{"text":"A "}]}`, "content.choices[1].text"},
		{"cloze index missing from template", domain.TypeCloze, `{"front":"f","back":"b","template":"{{c1}}","clozes":[{"index":1,"answer":"x"},{"index":2,"answer":"y"}]}`, "content.clozes[1].index"},
		{"cloze placeholder without entry", domain.TypeCloze, `{"front":"f","back":"b","template":"{{c1}} {{c2}}","clozes":[{"index":1,"answer":"x"}]}`, "content.clozes"},
		{"cloze without placeholders", domain.TypeCloze, `{"front":"f","back":"b","template":"plain","clozes":[{"index":1,"answer":"x"}]}`, "content.template"},
		{"true_false missing answer", domain.TypeTrueFalse, `{"front":"f","back":"b","statement":"s"}`, "content.answer"},
		{"comparison value count", domain.TypeComparison, `{"front":"f","back":"b","items":["a","b"],"dimensions":[{"name":"n","values":["1","2","3"]}]}`, "content.dimensions[0].values"},
		{"timeline bad date", domain.TypeTimeline, `{"front":"f","back":"b","events":[{"date":"July 1969","label":"a"},{"date":"1970","label":"b"}]}`, "content.events[0].date"},
		{"occlusion needs image kind", domain.TypeImageOcclusion, `{"front":"f","back":"b","image":{"kind":"audio","url":"https://x.test/a"},"regions":[{"id":"r","label":"l","x":0,"y":0,"width":0.5,"height":0.5}]}`, "content.image.kind"},
		{"occlusion region overflow", domain.TypeImageOcclusion, `{"front":"f","back":"b",` + img + `,"regions":[{"id":"r","label":"l","x":0.9,"y":0,"width":0.5,"height":0.5}]}`, "content.regions[0]"},
		{"discrimination answer not an option", domain.TypeDiscrimination, `{"front":"f","back":"b","options":["a","b"],"correctOption":"c"}`, "content.correctOption"},
		{"faded example without blanks", domain.TypeFadedExample, `{"front":"f","back":"b","problem":"p","steps":[{"order":1,"text":"a"},{"order":2,"text":"b"}]}`, "content.steps"},
		{"contrastive identical concepts", domain.TypeContrastive, `{"front":"f","back":"b","conceptA":"x","conceptB":"X","differences":["d"]}`, "content.conceptB"},
		{"confidence scale too small", domain.TypeConfidenceRated, `{"front":"f","back":"b","confidenceScale":2}`, "content.confidenceScale"},
		{"list duplicates", domain.TypeList, `{"front":"f","back":"b","items":["a","a"]}`, "content.items"},
		{"blank front", domain.TypeAtomic, `{"front":"   ","back":"b"}`, "content.front"},
		{"front too long", domain.TypeAtomic, `{"front":"` + strings.Repeat("x", 10001) + `","back":"b"}`, "content.front"},
		{"bad media kind", domain.TypeAtomic, `{"front":"f","back":"b","media":[{"kind":"hologram","url":"https://x.test/a"}]}`, "content.media[0].kind"},
		{"bad media url", domain.TypeAtomic, `{"front":"f","back":"b","media":[{"kind":"image","url":"not a url"}]}`, "content.media[0].url"},
		{"unknown field", domain.TypeAtomic, `{"front":"f","back":"b","colour":"red"}`, "content.colour"},
		{"unknown nested field", domain.TypeAtomic, `{"front":"f","back":"b","media":[{"kind":"image","url":"https://x.test/a","colour":"red"}]}`, "content.media[0].colour"},
		{"wrong type in element", domain.TypeOrdering, `{"front":"f","back":"b","items":[{"text":"a","position":1},{"text":"b","position":"2"}]}`, "content.items[1].position"},
		{"wrong type", domain.TypeAtomic, `{"front":1,"back":"b"}`, "content.front"},
		{"not an object", domain.TypeAtomic, `["front"]`, "content"},
		{"null", domain.TypeAtomic, `null`, "content"},
		{"trailing data", domain.TypeAtomic, `{"front":"f","back":"b"} {}`, "content"},
		{"empty", domain.TypeAtomic, ``, "content"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(string(tc.cardType), json.RawMessage(tc.payload))
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, validationPaths(t, err), tc.path)
		})
	}
}

func TestDecodeErrorPaths(t *testing.T) {
	testCases := []struct {
		name     string
		cardType domain.CardType
		payload  string
		paths    []string
		message  string
	}{
		{"base field wrong type", domain.TypeAtomic, `{"front":5,"back":"b"}`, []string{"content.front"}, "must be a string, got number"},
		{"every wrong field reported", domain.TypeAtomic, `{"front":1,"back":true}`, []string{"content.back", "content.front"}, ""},
		{"element field wrong type", domain.TypeOrdering, `{"front":"f","back":"b","items":[{"text":"a","position":1},{"text":"b","position":"2"}]}`, []string{"content.items[1].position"}, "must be an integer, got string"},
		{"fractional position", domain.TypeOrdering, `{"front":"f","back":"b","items":[{"text":"a","position":1.5},{"text":"b","position":2}]}`, []string{"content.items[0].position"}, "must be an integer"},
		{"object instead of array", domain.TypeOrdering, `{"front":"f","back":"b","items":{"text":"a"}}`, []string{"content.items"}, "must be an array, got object"},
		{"pointer field wrong type", domain.TypeTrueFalse, `{"front":"f","back":"b","statement":"s","answer":"yes"}`, []string{"content.answer"}, "must be a boolean, got string"},
		{"unknown key in element", domain.TypeAtomic, `{"front":"f","back":"b","media":[{"kind":"image","url":"https://x.test/a","colour":"red"}]}`, []string{"content.media[0].colour"}, "unknown field"},
		{"unknown key in nested object", domain.TypeImageOcclusion, `{"front":"f","back":"b","image":{"kind":"image","url":"https://x.test/a","size":3},"regions":[{"id":"r","label":"l","x":0,"y":0,"width":0.5,"height":0.5}]}`, []string{"content.image.size"}, "unknown field"},
		{"field names are case sensitive", domain.TypeAtomic, `{"Front":"f","front":"f","back":"b"}`, []string{"content.Front"}, "unknown field"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(string(tc.cardType), json.RawMessage(tc.payload))
			var verr *apperrors.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ElementsMatch(t, tc.paths, verr.Paths())
			if tc.message != "" {
				assert.Contains(t, verr.Fields[0].Message, tc.message)
			}
		})
	}
}

func TestFrontLengthBoundary(t *testing.T) {
	raw := `{"front":"` + strings.Repeat("é", 10000) + `","back":"b"}`
	_, err := Validate("atomic", json.RawMessage(raw))
	assert.NoError(t, err, "10,000 characters is within bounds regardless of byte length")
}

func TestNormalizeCanonicalizes(t *testing.T) {
	_, canonical, err := Normalize("atomic", json.RawMessage(`{ "back" : "b",  "front":"f" }`))
	require.NoError(t, err)
	assert.Equal(t, `{"front":"f","back":"b"}`, string(canonical))
}

func TestDescribe(t *testing.T) {
	schemas := Describe()
	require.Len(t, schemas, 42)
	assert.Equal(t, domain.TypeAtomic, schemas[0].Type)
	assert.Equal(t, domain.FamilyStandard, schemas[0].Family)
	assert.Equal(t, domain.FamilyRemediation, schemas[41].Family)

	byName := func(s Schema, name string) FieldSpec {
		for _, f := range s.Fields {
			if f.Name == name {
				return f
			}
		}
		t.Fatalf("schema %s has no field %s", s.Type, name)
		return FieldSpec{}
	}

	atomic := schemas[0]
	front := byName(atomic, "front")
	assert.True(t, front.Required)
	assert.Equal(t, "string", front.Type)
	assert.Contains(t, front.Constraints, "max=10000")
	assert.False(t, byName(atomic, "hint").Required)
	kind := byName(atomic, "media[].kind")
	assert.Contains(t, kind.Constraints, "oneof=image audio video file")

	ordering, ok := Lookup(domain.TypeOrdering)
	require.True(t, ok)
	items := byName(ordering, "items")
	assert.Equal(t, "array", items.Type)
	assert.Contains(t, items.Constraints, "min=2")
	position := byName(ordering, "items[].position")
	assert.Equal(t, "integer", position.Type)
	assert.True(t, position.Required)
	assert.NotEmpty(t, ordering.Rules)

	tf, _ := Lookup(domain.TypeTrueFalse)
	answer := byName(tf, "answer")
	assert.Equal(t, "boolean", answer.Type)
	assert.True(t, answer.Required)

	// callers get copies
	schemas[0].Fields[0].Name = "mutated"
	again, _ := Lookup(domain.TypeAtomic)
	assert.Equal(t, "front", again.Fields[0].Name)
}

func TestConcurrentValidation(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, ct := range domain.AllCardTypes() {
				_, err := Validate(string(ct), fixture(ct))
				assert.NoError(t, err)
				_, ok := Lookup(ct)
				assert.True(t, ok)
			}
		}()
	}
	wg.Wait()
}
