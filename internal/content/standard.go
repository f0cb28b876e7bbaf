package content

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/knolarchive/internal/domain"
)

// Step is one entry of an ordered procedure.
type Step struct {
	Order int    `json:"order" validate:"gte=1"`
	Text  string `json:"text" validate:"required,notblank,max=2000"`
}

// Positioned is an item whose declared position must form a 1..N sequence.
type Positioned struct {
	Text     string `json:"text" validate:"required,notblank,max=2000"`
	Position int    `json:"position" validate:"gte=1"`
}

// ClozeEntry is one deletion of a cloze template.
type ClozeEntry struct {
	Index  int    `json:"index" validate:"gte=1"`
	Answer string `json:"answer" validate:"required,notblank,max=2000"`
	Hint   string `json:"hint,omitempty" validate:"max=500"`
}

// Region is a rectangle in normalized image coordinates.
type Region struct {
	ID     string  `json:"id" validate:"required,notblank,max=64"`
	Label  string  `json:"label" validate:"required,notblank,max=500"`
	X      float64 `json:"x" validate:"gte=0,lte=1"`
	Y      float64 `json:"y" validate:"gte=0,lte=1"`
	Width  float64 `json:"width" validate:"gt=0,lte=1"`
	Height float64 `json:"height" validate:"gt=0,lte=1"`
}

// Dimension is one row of a comparison table with a value per item.
type Dimension struct {
	Name   string   `json:"name" validate:"required,notblank,max=200"`
	Values []string `json:"values" validate:"required,min=2,dive,max=2000"`
}

// Choice is a multiple-choice option.
type Choice struct {
	Text    string `json:"text" validate:"required,notblank,max=2000"`
	Correct bool   `json:"correct"`
}

// TimelineEvent is a dated entry on a timeline.
type TimelineEvent struct {
	Date  string `json:"date" validate:"required,notblank,max=10"`
	Label string `json:"label" validate:"required,notblank,max=500"`
}

// Pair is a left/right association.
type Pair struct {
	Left  string `json:"left" validate:"required,notblank,max=1000"`
	Right string `json:"right" validate:"required,notblank,max=1000"`
}

// DiagramLabel is a labeled point in normalized image coordinates.
type DiagramLabel struct {
	ID   string  `json:"id" validate:"required,notblank,max=64"`
	Text string  `json:"text" validate:"required,notblank,max=500"`
	X    float64 `json:"x" validate:"gte=0,lte=1"`
	Y    float64 `json:"y" validate:"gte=0,lte=1"`
}

// Variable explains one symbol of a formula.
type Variable struct {
	Symbol  string `json:"symbol" validate:"required,notblank,max=50"`
	Meaning string `json:"meaning" validate:"required,notblank,max=500"`
}

// Atomic is a plain front/back card.
type Atomic struct {
	Base
}

func (*Atomic) CardType() domain.CardType { return domain.TypeAtomic }

// Cloze hides deletions marked {{cN}} or {{cN::text}} in Template.
type Cloze struct {
	Base
	Template string       `json:"template" validate:"required,notblank,max=10000"`
	Clozes   []ClozeEntry `json:"clozes" validate:"required,min=1,max=50,dive"`
}

func (*Cloze) CardType() domain.CardType { return domain.TypeCloze }

var clozePlaceholder = regexp.MustCompile(`\{\{c(\d+)(?:::[^}]*)?\}\}`)

func (c *Cloze) check(r *report) {
	placeholders := map[int]bool{}
	for _, m := range clozePlaceholder.FindAllStringSubmatch(c.Template, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			placeholders[n] = true
		}
	}
	if strings.TrimSpace(c.Template) != "" && len(placeholders) == 0 {
		r.add("template", "must contain at least one {{cN}} placeholder")
	}
	seen := map[int]bool{}
	for i, entry := range c.Clozes {
		if entry.Index < 1 {
			continue
		}
		if seen[entry.Index] {
			r.add(fmt.Sprintf("clozes[%d].index", i), "duplicate cloze index %d", entry.Index)
			continue
		}
		seen[entry.Index] = true
		if len(placeholders) > 0 && !placeholders[entry.Index] {
			r.add(fmt.Sprintf("clozes[%d].index", i), "template has no {{c%d}} placeholder", entry.Index)
		}
	}
	if len(c.Clozes) == 0 {
		return
	}
	for _, n := range sortedKeys(placeholders) {
		if !seen[n] {
			r.add("clozes", "placeholder {{c%d}} has no cloze entry", n)
		}
	}
}

// ImageOcclusion hides labeled regions of an image.
type ImageOcclusion struct {
	Base
	Image   *Media   `json:"image" validate:"required"`
	Regions []Region `json:"regions" validate:"required,min=1,max=50,dive"`
}

func (*ImageOcclusion) CardType() domain.CardType { return domain.TypeImageOcclusion }

func (c *ImageOcclusion) check(r *report) {
	checkImage(r, c.Image)
	ids := make([]string, len(c.Regions))
	for i, region := range c.Regions {
		ids[i] = region.ID
		if region.X+region.Width > 1 || region.Y+region.Height > 1 {
			r.add(fmt.Sprintf("regions[%d]", i), "region must lie within the image")
		}
	}
	checkUnique(r, "regions", "id", ids)
}

// Audio is answered from a recording.
type Audio struct {
	Base
	AudioURL   string `json:"audioUrl" validate:"required,url,max=2048"`
	Transcript string `json:"transcript,omitempty" validate:"max=50000"`
}

func (*Audio) CardType() domain.CardType { return domain.TypeAudio }

// Process is an ordered procedure.
type Process struct {
	Base
	Steps []Step `json:"steps" validate:"required,min=2,max=100,dive"`
}

func (*Process) CardType() domain.CardType { return domain.TypeProcess }

func (c *Process) check(r *report) {
	checkSequence(r, "steps", "order", stepOrders(c.Steps))
}

// Comparison contrasts items along named dimensions.
type Comparison struct {
	Base
	Items      []string    `json:"items" validate:"required,min=2,max=10,unique,dive,required,notblank,max=200"`
	Dimensions []Dimension `json:"dimensions" validate:"required,min=1,max=30,dive"`
}

func (*Comparison) CardType() domain.CardType { return domain.TypeComparison }

func (c *Comparison) check(r *report) {
	for i, d := range c.Dimensions {
		if len(d.Values) != len(c.Items) {
			r.add(fmt.Sprintf("dimensions[%d].values", i), "must have one value per item (%d), got %d", len(c.Items), len(d.Values))
		}
	}
}

// Exception states a rule and the cases it does not cover.
type Exception struct {
	Base
	Rule       string   `json:"rule" validate:"required,notblank,max=2000"`
	Exceptions []string `json:"exceptions" validate:"required,min=1,max=50,dive,required,notblank,max=2000"`
}

func (*Exception) CardType() domain.CardType { return domain.TypeException }

// MultipleChoice offers options of which at least one is correct.
type MultipleChoice struct {
	Base
	Choices []Choice `json:"choices" validate:"required,min=2,max=10,dive"`
	Shuffle bool     `json:"shuffle,omitempty"`
}

func (*MultipleChoice) CardType() domain.CardType { return domain.TypeMultipleChoice }

func (c *MultipleChoice) check(r *report) {
	texts := make([]string, len(c.Choices))
	correct := 0
	for i, choice := range c.Choices {
		texts[i] = strings.ToLower(strings.TrimSpace(choice.Text))
		if choice.Correct {
			correct++
		}
	}
	if len(c.Choices) > 0 && correct == 0 {
		r.add("choices", "at least one choice must be marked correct")
	}
	checkUnique(r, "choices", "text", texts)
}

// TrueFalse asks whether a statement holds.
type TrueFalse struct {
	Base
	Statement string `json:"statement" validate:"required,notblank,max=2000"`
	Answer    *bool  `json:"answer" validate:"required"`
}

func (*TrueFalse) CardType() domain.CardType { return domain.TypeTrueFalse }

// Ordering asks for items to be put in sequence.
type Ordering struct {
	Base
	Items []Positioned `json:"items" validate:"required,min=2,max=100,dive"`
}

func (*Ordering) CardType() domain.CardType { return domain.TypeOrdering }

func (c *Ordering) check(r *report) {
	checkSequence(r, "items", "position", positions(c.Items))
}

// Definition pairs a term with its meaning.
type Definition struct {
	Base
	Term       string   `json:"term" validate:"required,notblank,max=500"`
	Definition string   `json:"definition" validate:"required,notblank,max=10000"`
	Examples   []string `json:"examples,omitempty" validate:"max=20,dive,required,notblank,max=2000"`
}

func (*Definition) CardType() domain.CardType { return domain.TypeDefinition }

// CauseEffect links causes to effects.
type CauseEffect struct {
	Base
	Causes  []string `json:"causes" validate:"required,min=1,max=20,dive,required,notblank,max=2000"`
	Effects []string `json:"effects" validate:"required,min=1,max=20,dive,required,notblank,max=2000"`
}

func (*CauseEffect) CardType() domain.CardType { return domain.TypeCauseEffect }

// Timeline places events in time.
type Timeline struct {
	Base
	Events []TimelineEvent `json:"events" validate:"required,min=2,max=100,dive"`
}

func (*Timeline) CardType() domain.CardType { return domain.TypeTimeline }

var timelineLayouts = []string{"2006-01-02", "2006-01", "2006"}

func (c *Timeline) check(r *report) {
	for i, e := range c.Events {
		if strings.TrimSpace(e.Date) == "" {
			continue
		}
		if !parsesAsDate(e.Date) {
			r.add(fmt.Sprintf("events[%d].date", i), "must be YYYY, YYYY-MM or YYYY-MM-DD")
		}
	}
}

func parsesAsDate(s string) bool {
	for _, layout := range timelineLayouts {
		if len(s) != len(layout) {
			continue
		}
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// Matching associates left items with right items.
type Matching struct {
	Base
	Pairs []Pair `json:"pairs" validate:"required,min=2,max=50,dive"`
}

func (*Matching) CardType() domain.CardType { return domain.TypeMatching }

func (c *Matching) check(r *report) {
	lefts := make([]string, len(c.Pairs))
	for i, p := range c.Pairs {
		lefts[i] = strings.ToLower(strings.TrimSpace(p.Left))
	}
	checkUnique(r, "pairs", "left", lefts)
}

// LabeledDiagram asks for the labels of marked points on an image.
type LabeledDiagram struct {
	Base
	Image  *Media         `json:"image" validate:"required"`
	Labels []DiagramLabel `json:"labels" validate:"required,min=1,max=50,dive"`
}

func (*LabeledDiagram) CardType() domain.CardType { return domain.TypeLabeledDiagram }

func (c *LabeledDiagram) check(r *report) {
	checkImage(r, c.Image)
	ids := make([]string, len(c.Labels))
	for i, l := range c.Labels {
		ids[i] = l.ID
	}
	checkUnique(r, "labels", "id", ids)
}

// Formula asks for or about a mathematical expression.
type Formula struct {
	Base
	Expression string     `json:"expression" validate:"required,notblank,max=2000"`
	Variables  []Variable `json:"variables,omitempty" validate:"max=50,dive"`
}

func (*Formula) CardType() domain.CardType { return domain.TypeFormula }

func (c *Formula) check(r *report) {
	symbols := make([]string, len(c.Variables))
	for i, v := range c.Variables {
		symbols[i] = v.Symbol
	}
	checkUnique(r, "variables", "symbol", symbols)
}

// Code asks about a source snippet.
type Code struct {
	Base
	Language string `json:"language" validate:"required,notblank,max=50"`
	Snippet  string `json:"snippet" validate:"required,notblank,max=20000"`
}

func (*Code) CardType() domain.CardType { return domain.TypeCode }

// Scenario applies knowledge to a described situation.
type Scenario struct {
	Base
	Situation string `json:"situation" validate:"required,notblank,max=10000"`
	Question  string `json:"question" validate:"required,notblank,max=2000"`
}

func (*Scenario) CardType() domain.CardType { return domain.TypeScenario }

// Mnemonic pairs a memory aid with what it encodes.
type Mnemonic struct {
	Base
	Mnemonic string `json:"mnemonic" validate:"required,notblank,max=2000"`
	Target   string `json:"target" validate:"required,notblank,max=2000"`
}

func (*Mnemonic) CardType() domain.CardType { return domain.TypeMnemonic }

// Example illustrates a concept with instances.
type Example struct {
	Base
	Concept  string   `json:"concept" validate:"required,notblank,max=500"`
	Examples []string `json:"examples" validate:"required,min=1,max=20,dive,required,notblank,max=2000"`
}

func (*Example) CardType() domain.CardType { return domain.TypeExample }

// Reverse is studied in both directions.
type Reverse struct {
	Base
	ReverseFront string `json:"reverseFront" validate:"required,notblank,max=10000"`
	ReverseBack  string `json:"reverseBack" validate:"required,notblank,max=50000"`
}

func (*Reverse) CardType() domain.CardType { return domain.TypeReverse }

// List asks for the members of a set, optionally in order.
type List struct {
	Base
	Items   []string `json:"items" validate:"required,min=2,max=100,unique,dive,required,notblank,max=2000"`
	Ordered bool     `json:"ordered,omitempty"`
}

func (*List) CardType() domain.CardType { return domain.TypeList }
