package roomcode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"playmesh/internal/core/domain"
)

func TestNewLengthAndAlphabet(t *testing.T) {
	for i := 0; i < 100; i++ {
		code := string(New())
		assert.Len(t, code, Length)
		for _, r := range code {
			assert.Contains(t, Alphabet, string(r))
		}
	}
}

func TestAlphabetExcludesAmbiguousGlyphs(t *testing.T) {
	for _, glyph := range []string{"I", "O", "0", "1"} {
		assert.False(t, strings.Contains(Alphabet, glyph), "alphabet must not contain %s", glyph)
	}
}

func TestValidAcceptsGeneratedCodes(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.True(t, Valid(New()))
	}
}

func TestValidRejectsMalformedCodes(t *testing.T) {
	for _, code := range []string{"", "x", "ABCDE", "ABCDEFG", "abcdef", "ABCDE1", "ABCDE0", "ABCDEI", "ABCDEO", "AB CD3"} {
		assert.False(t, Valid(domain.RoomCode(code)), "code %q", code)
	}
}

func TestNewTokenUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		tok := string(NewToken())
		assert.NotEmpty(t, tok)
		assert.False(t, seen[tok])
		seen[tok] = true
	}
}
