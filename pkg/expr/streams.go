package expr

import (
	"math/rand/v2"
)

// StreamID selects one of the two random streams carried by a model.
type StreamID int

const (
	// StreamParams feeds parameter sampling (CRN seed 1).
	StreamParams StreamID = iota
	// StreamTree feeds stochastic terms in tree and chain expressions (CRN seed 2).
	StreamTree
)

const numStreams = 2

// Salts keep stream 1 and stream 2 distinct when both use the same seed.
var streamSalt = [numStreams]uint64{0x9e3779b97f4a7c15, 0xbf58476d1ce4e5b9}

// Streams holds the random number generators used by finalize=true evaluation.
type Streams struct {
	src [numStreams]*rand.PCG
	rng [numStreams]*rand.Rand
}

// NewStreams creates both streams from a single seed.
func NewStreams(seed int64) *Streams {
	s := &Streams{}
	for i := range s.src {
		s.src[i] = rand.NewPCG(uint64(seed)^streamSalt[i], uint64(i))
		s.rng[i] = rand.New(s.src[i])
	}
	return s
}

// Reseed resets one stream deterministically from (seed, iteration).
// Replaying the same pair yields the same draw sequence.
func (s *Streams) Reseed(id StreamID, seed int64, iteration int) {
	s.src[id].Seed(uint64(seed)^streamSalt[id], uint64(iteration))
}

// Float64 returns a uniform draw in (0, 1).
func (s *Streams) Float64(id StreamID) float64 {
	for {
		if u := s.rng[id].Float64(); u > 0 {
			return u
		}
	}
}

// Clone copies the streams including their current position.
func (s *Streams) Clone() *Streams {
	c := &Streams{}
	for i := range s.src {
		src := *s.src[i]
		c.src[i] = &src
		c.rng[i] = rand.New(c.src[i])
	}
	return c
}
