// Package randutil supplies seeds for new matches and deterministic
// math/rand/v2 generators for everything that is not part of a match's
// shared stream.
package randutil

import (
	crand "crypto/rand"
	"encoding/binary"
	rand "math/rand/v2"
	"sync"

	"github.com/lox/tourneykit/sdk/random"
)

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from seed.
func New(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(random.Mix(seed), random.Mix(seed+goldenRatio64)))
}

// Seeder hands out seeds for new matches.
type Seeder interface {
	NextSeed() uint64
}

// SeederFunc adapts a function to Seeder.
type SeederFunc func() uint64

func (f SeederFunc) NextSeed() uint64 { return f() }

// Crypto returns a Seeder backed by crypto/rand.
func Crypto() Seeder {
	return SeederFunc(func() uint64 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err != nil {
			panic("randutil: reading random bytes: " + err.Error())
		}
		return binary.LittleEndian.Uint64(b[:])
	})
}

// Sequence returns a Seeder whose seeds are the draws of a synchronized
// stream, so tests can predict every match seed.
func Sequence(seed uint64) Seeder {
	var mu sync.Mutex
	s := random.New(seed)
	return SeederFunc(func() uint64 {
		mu.Lock()
		defer mu.Unlock()
		return s.Uint64()
	})
}
