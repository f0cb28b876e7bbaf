package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name          string
		input         string
		expectedCards int
		expected      Entry
	}{
		{
			name:          "Simple Q&A",
			input:         "Q: What is the capital of France?\nA: Paris",
			expectedCards: 1,
			expected:      Entry{CardType: "atomic", Front: "What is the capital of France?", Back: "Paris", Line: 1},
		},
		{
			name:          "Simple Q, A, and C",
			input:         "Q: What is 1+1?\nA: 2\nC: Basic arithmetic",
			expectedCards: 1,
			expected:      Entry{CardType: "atomic", Front: "What is 1+1?", Back: "2", Context: "Basic arithmetic", Line: 1},
		},
		{
			name: "Multiline Answer",
			input: `
Q: What are the primary colors?
A: Red
Blue
Yellow
`,
			expectedCards: 1,
			expected:      Entry{CardType: "atomic", Front: "What are the primary colors?", Back: "Red\nBlue\nYellow", Line: 2},
		},
		{
			name: "Two Cards",
			input: `
Q: First question
A: First answer

Q: Second question
A: Second answer
`,
			expectedCards: 2,
		},
		{
			name: "Type and tags",
			input: `Q: What does defer do?
A: Runs a call when the function returns.
T: Concept
Tags: go, Basics
`,
			expectedCards: 1,
			expected: Entry{
				CardType: "concept",
				Front:    "What does defer do?",
				Back:     "Runs a call when the function returns.",
				Tags:     []string{"go", "Basics"},
				Line:     1,
			},
		},
		{
			name:          "Fields block after type",
			input:         "Q: What is a mutex?\nA: A lock.\nT: definition\n\n```json\n{\"term\": \"mutex\",\n \"definition\": \"A lock.\"}\n```\nTags: go",
			expectedCards: 1,
			expected: Entry{
				CardType: "definition",
				Front:    "What is a mutex?",
				Back:     "A lock.",
				Fields:   "{\"term\": \"mutex\",\n \"definition\": \"A lock.\"}",
				Tags:     []string{"go"},
				Line:     1,
			},
		},
		{
			name:          "Fence inside an answer is answer text",
			input:         "Q: Print hi\nA: Use\n```go\nfmt.Println(\"hi\")\n```",
			expectedCards: 1,
			expected:      Entry{CardType: "atomic", Front: "Print hi", Back: "Use\n```go\nfmt.Println(\"hi\")\n```", Line: 1},
		},
		{
			name:          "Separator inside fields does not end the entry",
			input:         "Q: q\nA: a\nT: list\n```\n{\"items\": [\"x\",\n---\n\"y\"]}\n```",
			expectedCards: 1,
			expected:      Entry{CardType: "list", Front: "q", Back: "a", Fields: "{\"items\": [\"x\",\n---\n\"y\"]}", Line: 1},
		},
		{
			name:          "Text after tags is ignored",
			input:         "Q: q\nTags: a b\nloose text\nA: answer",
			expectedCards: 1,
			expected:      Entry{CardType: "atomic", Front: "q", Back: "answer", Tags: []string{"a", "b"}, Line: 1},
		},
		{
			name:          "Separator ends a card",
			input:         "Q: one\nA: 1\n---\nnotes between cards\nQ: two\nA: 2",
			expectedCards: 2,
		},
		{
			name:          "No cards, just text",
			input:         "This is a file with no questions.\nA: stray answer",
			expectedCards: 0,
		},
		{
			name:          "Prefixes with no space",
			input:         "Q:Question\nA:Answer",
			expectedCards: 1,
			expected:      Entry{CardType: "atomic", Front: "Question", Back: "Answer", Line: 1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			require.Len(t, entries, tc.expectedCards)

			if tc.expectedCards == 1 {
				assert.Equal(t, tc.expected, entries[0])
			}
		})
	}
}

func TestParseSeparatorKeepsOrder(t *testing.T) {
	entries, err := Parse(strings.NewReader("Q: one\nA: 1\n---\nQ: two\nA: 2"))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "one", entries[0].Front)
	assert.Equal(t, "two", entries[1].Front)
	assert.Equal(t, 4, entries[1].Line)
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("Q: q\nA: a\n"), 0o644))

	entries, err := ParseFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, path, entries[0].Path)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.md"))
	assert.Error(t, err)
}
