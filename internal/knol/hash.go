package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/conorfennell/knolarchive/internal/domain"
)

// Normalize concatenates a card's identifying text after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for the front,
// the back and the card type before joining them.
func Normalize(cardType domain.CardType, front, back string) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	// We join with a newline to ensure separation between fields,
	// preventing accidental joining of words. e.g. "question" and "answer"
	// becoming "questionanswer".
	return strings.Join([]string{normalizePart(front), normalizePart(back), normalizePart(string(cardType))}, "\n")
}

// Hash normalizes the card text and returns its SHA-256 hash as a hex string.
// Two cards with the same hash are treated as duplicates on import.
func Hash(cardType domain.CardType, front, back string) string {
	normalized := Normalize(cardType, front, back)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}
