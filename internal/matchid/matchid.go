// Package matchid generates sortable identifiers for matches and players.
//
// IDs are UUIDv7 values encoded as 26 characters of lowercase Crockford
// base32, in the style of TypeID, so they sort by creation time.
package matchid

import (
	"fmt"
	"io"

	"github.com/google/uuid"
)

const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Generator creates IDs, optionally from a fixed source of randomness.
type Generator struct {
	rand io.Reader
}

// NewGenerator returns a generator reading random bits from r. A nil
// reader uses crypto/rand.
func NewGenerator(r io.Reader) *Generator {
	return &Generator{rand: r}
}

// New returns a fresh ID.
func New() string {
	return NewGenerator(nil).New()
}

// New returns a fresh ID from the generator's randomness.
func (g *Generator) New() string {
	var (
		id  uuid.UUID
		err error
	)
	if g.rand == nil {
		id, err = uuid.NewV7()
	} else {
		id, err = uuid.NewV7FromReader(g.rand)
	}
	if err != nil {
		panic("matchid: reading random bytes: " + err.Error())
	}
	return Encode(id)
}

// Encode renders a UUID as 26 base32 characters. The 128 bits are treated
// as a 130-bit number with two leading zero bits, so the first character is
// always 0-7.
func Encode(id uuid.UUID) string {
	var hi, lo uint64
	for i := 0; i < 8; i++ {
		hi = hi<<8 | uint64(id[i])
		lo = lo<<8 | uint64(id[i+8])
	}

	out := make([]byte, 26)
	for i := 25; i >= 0; i-- {
		out[i] = alphabet[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out)
}

// Parse decodes an ID produced by Encode.
func Parse(s string) (uuid.UUID, error) {
	if err := Validate(s); err != nil {
		return uuid.UUID{}, err
	}

	var hi, lo uint64
	for i := 0; i < len(s); i++ {
		v := uint64(indexOf(s[i]))
		hi = hi<<5 | lo>>59
		lo = lo<<5 | v
	}

	var id uuid.UUID
	for i := 7; i >= 0; i-- {
		id[i] = byte(hi)
		id[i+8] = byte(lo)
		hi >>= 8
		lo >>= 8
	}
	return id, nil
}

// Validate checks that s is 26 characters of the lowercase alphabet with a
// first character of at most '7'.
func Validate(s string) error {
	if len(s) != 26 {
		return fmt.Errorf("id must be exactly 26 characters, got %d", len(s))
	}
	if s[0] > '7' {
		return fmt.Errorf("id first character must be 0-7, got %c", s[0])
	}
	for i := 0; i < len(s); i++ {
		if indexOf(s[i]) < 0 {
			return fmt.Errorf("invalid character %c at position %d", s[i], i)
		}
	}
	return nil
}

func indexOf(c byte) int {
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			return i
		}
	}
	return -1
}
