package content

import (
	"encoding/json"

	"github.com/conorfennell/knolarchive/internal/domain"
)

const img = `"image":{"kind":"image","url":"https://cdn.example.com/heart.png"}`

// minimalFixtures holds the smallest payload each card type accepts.
var minimalFixtures = map[domain.CardType]string{
	domain.TypeAtomic:         `{"front":"Capital of France?","back":"Paris"}`,
	domain.TypeCloze:          `{"front":"f","back":"b","template":"The capital of France is {{c1::Paris}}.","clozes":[{"index":1,"answer":"Paris"}]}`,
	domain.TypeImageOcclusion: `{"front":"f","back":"b",` + img + `,"regions":[{"id":"r1","label":"aorta","x":0.1,"y":0.1,"width":0.2,"height":0.2}]}`,
	domain.TypeAudio:          `{"front":"f","back":"b","audioUrl":"https://cdn.example.com/a.mp3"}`,
	domain.TypeProcess:        `{"front":"f","back":"b","steps":[{"order":1,"text":"boil"},{"order":2,"text":"steep"}]}`,
	domain.TypeComparison:     `{"front":"f","back":"b","items":["TCP","UDP"],"dimensions":[{"name":"reliable","values":["yes","no"]}]}`,
	domain.TypeException:      `{"front":"f","back":"b","rule":"i before e","exceptions":["weird"]}`,
	domain.TypeMultipleChoice: `{"front":"f","back":"b","choices":[{"text":"2","correct":true},{"text":"3"}]}`,
	domain.TypeTrueFalse:      `{"front":"f","back":"b","statement":"Go has generics","answer":true}`,
	domain.TypeOrdering:       `{"front":"f","back":"b","items":[{"text":"a","position":2},{"text":"b","position":1}]}`,
	domain.TypeDefinition:     `{"front":"f","back":"b","term":"idempotent","definition":"same result when repeated"}`,
	domain.TypeCauseEffect:    `{"front":"f","back":"b","causes":["heat"],"effects":["expansion"]}`,
	domain.TypeTimeline:       `{"front":"f","back":"b","events":[{"date":"1969-07","label":"moon landing"},{"date":"1989","label":"web"}]}`,
	domain.TypeMatching:       `{"front":"f","back":"b","pairs":[{"left":"H","right":"hydrogen"},{"left":"He","right":"helium"}]}`,
	domain.TypeLabeledDiagram: `{"front":"f","back":"b",` + img + `,"labels":[{"id":"l1","text":"ventricle","x":0.5,"y":0.5}]}`,
	domain.TypeFormula:        `{"front":"f","back":"b","expression":"E = mc^2"}`,
	domain.TypeCode:           `{"front":"f","back":"b","language":"go","snippet":"x := 1"}`,
	domain.TypeScenario:       `{"front":"f","back":"b","situation":"the build is red","question":"what next?"}`,
	domain.TypeMnemonic:       `{"front":"f","back":"b","mnemonic":"ROY G BIV","target":"rainbow colours"}`,
	domain.TypeExample:        `{"front":"f","back":"b","concept":"prime","examples":["7"]}`,
	domain.TypeReverse:        `{"front":"f","back":"b","reverseFront":"bonjour","reverseBack":"hello"}`,
	domain.TypeList:           `{"front":"f","back":"b","items":["red","green"]}`,

	domain.TypeContrastive:       `{"front":"f","back":"b","conceptA":"affect","conceptB":"effect","differences":["verb vs noun"]}`,
	domain.TypeMinimalPair:       `{"front":"f","back":"b","pairA":"ship","pairB":"sheep","distinction":"vowel length"}`,
	domain.TypeFalseFriend:       `{"front":"f","back":"b","term":"embarazada","assumedMeaning":"embarrassed","actualMeaning":"pregnant"}`,
	domain.TypeMisconception:     `{"front":"f","back":"b","misconception":"seasons come from distance","correction":"axial tilt"}`,
	domain.TypeErrorSpotting:     `{"front":"f","back":"b","flawed":"2 + 2 = 5","errors":[{"location":"rhs","fix":"4"}]}`,
	domain.TypeConfidenceRated:   `{"front":"f","back":"b","confidenceScale":5}`,
	domain.TypeSelfExplanation:   `{"front":"f","back":"b","prompt":"explain recursion"}`,
	domain.TypeWorkedExample:     `{"front":"f","back":"b","problem":"2x = 4","steps":[{"order":1,"text":"divide by 2"},{"order":2,"text":"x = 2"}]}`,
	domain.TypeFadedExample:      `{"front":"f","back":"b","problem":"2x = 4","steps":[{"order":1,"text":"divide by 2"},{"order":2,"text":"x = 2","blank":true}]}`,
	domain.TypeCuedRecall:        `{"front":"f","back":"b","cues":["starts with P"]}`,
	domain.TypeElaboration:       `{"front":"f","back":"b","why":"because"}`,
	domain.TypeAnalogy:           `{"front":"f","back":"b","source":"water pipe","target":"electric circuit","mappings":[{"from":"pressure","to":"voltage"}]}`,
	domain.TypeCounterexample:    `{"front":"f","back":"b","claim":"all swans are white","counterexample":"black swans"}`,
	domain.TypeBoundaryCase:      `{"front":"f","back":"b","rule":"adults vote","boundary":"age 18","insideExample":"18","outsideExample":"17"}`,
	domain.TypeDiscrimination:    `{"front":"f","back":"b","options":["mitosis","meiosis"],"correctOption":"meiosis"}`,
	domain.TypePrerequisiteCheck: `{"front":"f","back":"b","prerequisiteNodeIds":["node-1"]}`,
	domain.TypeInterleaved:       `{"front":"f","back":"b","topics":["derivatives","integrals"]}`,
	domain.TypeRetrievalCue:      `{"front":"f","back":"b","cue":"think of the kitchen"}`,
	domain.TypeRebuild:           `{"front":"f","back":"b","fragments":[{"text":"quick brown","position":1},{"text":"fox","position":2}]}`,
	domain.TypeTeachBack:         `{"front":"f","back":"b","audience":"a ten year old","rubric":["uses an example"]}`,
}

func fixture(t domain.CardType) json.RawMessage {
	return json.RawMessage(minimalFixtures[t])
}
