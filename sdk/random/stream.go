// Package random provides the synchronized random stream shared by every
// participant of a tournament match.
//
// A Stream is counter based: the value at position n depends only on the
// match seed and n, so two clients that make the same sequence of calls see
// the same values no matter when they make them. All arithmetic is wrapping
// uint64 so results are identical on every platform.
//
//	s := random.New(ticket.Seed)
//	tile, _ := s.IntRange(0, 6)
//	if s.Float() < 0.25 {
//	    // bonus round
//	}
package random

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
)

// MaxInt is the exclusive upper bound of Int.
const MaxInt = 2147483647

const goldenGamma = 0x9e3779b97f4a7c15

// ErrEmptyRange is returned by IntRange when max <= min.
var ErrEmptyRange = errors.New("random: empty range")

// Stream is a deterministic random sequence. It is safe for concurrent use,
// but callers that want lockstep values must still draw in the same order.
type Stream struct {
	mu   sync.Mutex
	seed uint64
	pos  uint64
}

// New returns a stream positioned at the first draw for seed.
func New(seed uint64) *Stream {
	return &Stream{seed: seed}
}

// NewAt returns a stream for seed that has already made pos draws.
func NewAt(seed, pos uint64) *Stream {
	return &Stream{seed: seed, pos: pos}
}

// Seed returns the match seed. It never changes for the life of the stream.
func (s *Stream) Seed() uint64 {
	return s.seed
}

// Position returns how many 64-bit values have been consumed.
func (s *Stream) Position() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// SetPosition moves the stream so the next draw is the one at pos.
func (s *Stream) SetPosition(pos uint64) {
	s.mu.Lock()
	s.pos = pos
	s.mu.Unlock()
}

// Uint64 returns the next raw value. It also makes Stream a
// math/rand/v2 Source, so rand.New(stream) shuffles in lockstep too.
func (s *Stream) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next()
}

// Int returns a value in [0, MaxInt).
func (s *Stream) Int() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.bounded(MaxInt))
}

// Float returns a value in [0.0, 1.0) with 53 bits of precision.
func (s *Stream) Float() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(s.next()>>11) * 0x1p-53
}

// IntRange returns a value in [min, max) with every integer equally likely.
func (s *Stream) IntRange(min, max int) (int, error) {
	if max <= min {
		return 0, fmt.Errorf("%w: [%d, %d)", ErrEmptyRange, min, max)
	}
	n := uint64(max) - uint64(min)

	s.mu.Lock()
	defer s.mu.Unlock()
	return int(uint64(min) + s.bounded(n)), nil
}

// next must be called with mu held.
func (s *Stream) next() uint64 {
	s.pos++
	return Mix(s.seed + s.pos*goldenGamma)
}

// bounded maps draws onto [0, n) using multiply-shift with rejection. The
// rejection loop only consumes further counter positions, so it is as
// deterministic as a single draw.
func (s *Stream) bounded(n uint64) uint64 {
	hi, lo := bits.Mul64(s.next(), n)
	if lo < n {
		threshold := -n % n
		for lo < threshold {
			hi, lo = bits.Mul64(s.next(), n)
		}
	}
	return hi
}

// Mix is the SplitMix64 finalizer.
func Mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Derive returns a seed for a sub-sequence of seed, such as one turn of a
// turn-based match. Distinct salts give unrelated streams.
func Derive(seed, salt uint64) uint64 {
	return Mix(Mix(seed) ^ (salt+1)*goldenGamma)
}
