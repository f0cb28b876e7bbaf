// Package parser extracts card entries from markdown notes.
//
// An entry starts at a "Q:" line and may carry "A:", "C:", "T:" and "Tags:"
// lines. Q, A and C blocks continue over following lines until the next
// prefix; a "---" line ends the current entry.
//
// A fenced block directly after the "T:" line holds the type-specific fields
// of the card as a JSON object:
//
//	Q: What is a mutex?
//	A: A mutual exclusion lock.
//	T: definition
//	```json
//	{"term": "mutex", "definition": "A lock held by one goroutine at a time."}
//	```
package parser

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// DefaultCardType is used when an entry has no "T:" line.
const DefaultCardType = "atomic"

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	typePrefix     = "T:"
	tagsPrefix     = "Tags:"
	fence          = "```"
)

// Entry is one parsed card.
type Entry struct {
	CardType string
	Front    string
	Back     string
	Context  string
	Tags     []string
	// Fields is the raw JSON of the fenced block after "T:", if any.
	Fields string
	// Path is the file the entry came from; empty when parsed from a reader.
	Path string
	// Line is where the entry's "Q:" appeared, 1-based.
	Line int
}

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
	// inEntry follows a single-line field; free text is ignored until the
	// next prefix.
	inEntry
	// afterType is inEntry right after "T:", where a fence opens the fields.
	afterType
	readingFields
)

// ParseFile reads a file from the given path and extracts all entries.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	entries, err := Parse(file)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Path = path
	}
	return entries, nil
}

// Parse reads from an io.Reader and extracts all entries.
func Parse(r io.Reader) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var entries []Entry
	var current Entry
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		text := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch currentState {
		case readingQuestion:
			current.Front = text
		case readingAnswer:
			current.Back = text
		case readingContext:
			current.Context = text
		case readingFields:
			current.Fields = text
		}
		block = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Front != "" {
			if current.CardType == "" {
				current.CardType = DefaultCardType
			}
			entries = append(entries, current)
		}
		current = Entry{}
		currentState = seeking
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		if currentState == readingFields {
			if strings.HasPrefix(line, fence) {
				flushBlock()
				currentState = inEntry
				continue
			}
			block = append(block, line)
			continue
		}

		if line == "---" {
			finishEntry()
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			// A new question always starts a new entry.
			finishEntry()
			currentState = readingQuestion
			current.Line = lineNo
			block = append(block, value(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix) && currentState != seeking:
			flushBlock()
			currentState = readingAnswer
			block = append(block, value(line, answerPrefix))
		case strings.HasPrefix(line, contextPrefix) && currentState != seeking:
			flushBlock()
			currentState = readingContext
			block = append(block, value(line, contextPrefix))
		case strings.HasPrefix(line, typePrefix) && currentState != seeking:
			flushBlock()
			current.CardType = strings.ToLower(strings.TrimSpace(value(line, typePrefix)))
			currentState = afterType
		case strings.HasPrefix(line, fence) && currentState == afterType:
			currentState = readingFields
		case strings.HasPrefix(line, tagsPrefix) && currentState != seeking:
			flushBlock()
			current.Tags = splitTags(value(line, tagsPrefix))
			currentState = inEntry
		default:
			if currentState == readingQuestion || currentState == readingAnswer || currentState == readingContext {
				block = append(block, line)
			}
		}
	}

	finishEntry() // Finish the very last entry in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func value(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}

// splitTags accepts comma or whitespace separated tags.
func splitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}
