package roomcode

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"

	"playmesh/internal/core/domain"
)

// Alphabet excludes glyphs that are easy to misread over voice or video
// chat: I, O, 0 and 1.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const Length = 6

// New generates a 6-character room code from the unambiguous alphabet.
func New() domain.RoomCode {
	b := make([]byte, Length)
	rand.Read(b)
	for i := range b {
		b[i] = Alphabet[int(b[i])%len(Alphabet)]
	}
	return domain.RoomCode(b)
}

// Valid reports whether a caller-supplied code has the shape New
// produces: exactly Length characters, all from Alphabet.
func Valid(code domain.RoomCode) bool {
	if len(code) != Length {
		return false
	}
	for _, r := range string(code) {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// NewToken generates an opaque peer/host token.
func NewToken() domain.Token {
	return domain.Token(uuid.NewString())
}
