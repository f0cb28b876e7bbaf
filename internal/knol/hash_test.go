package knol

import (
	"testing"

	"github.com/conorfennell/knolarchive/internal/domain"
)

func TestNormalize(t *testing.T) {
	expected := "what is htmx?\na library for ajax.\natomic"
	normalized := Normalize(domain.TypeAtomic, "  What is HTMX? \r\n", "A library for AJAX.")

	if normalized != expected {
		t.Errorf("Expected normalized string to be '%s', but got '%s'", expected, normalized)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// Hash for "q\na\nc"
		expectedHash := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		hash := Hash("C", "Q", "A")

		if hash != expectedHash {
			t.Errorf("Expected hash '%s', but got '%s'", expectedHash, hash)
		}
	})

	t.Run("hash is deterministic", func(t *testing.T) {
		if Hash(domain.TypeAtomic, "Test", "") != Hash(domain.TypeAtomic, "Test", "") {
			t.Error("Expected hashes for identical cards to be the same")
		}
	})

	t.Run("normalization produces same hash", func(t *testing.T) {
		h1 := Hash(domain.TypeAtomic, "  what is go? ", "A programming language.")
		h2 := Hash(domain.TypeAtomic, "What Is Go?", "A programming language.")
		if h1 != h2 {
			t.Error("Expected hashes to be the same after normalization, but they were different.")
		}
	})

	t.Run("different cards have different hashes", func(t *testing.T) {
		if Hash(domain.TypeAtomic, "Card 1", "") == Hash(domain.TypeAtomic, "Card 2", "") {
			t.Error("Expected hashes for different cards to be different")
		}
	})

	t.Run("card type is part of the identity", func(t *testing.T) {
		if Hash(domain.TypeAtomic, "Q", "A") == Hash(domain.TypeReverse, "Q", "A") {
			t.Error("Expected different card types to hash differently")
		}
	})
}
