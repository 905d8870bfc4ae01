package randutil

import (
	crand "crypto/rand"
	rand "math/rand/v2"
)

const (
	goldenRatio64 = 0x9e3779b97f4a7c15
)

// New returns a *rand.Rand seeded deterministically from the provided int64.
// Tests use it to get reproducible shuffles.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// NewSecure returns a *rand.Rand backed by ChaCha8 and seeded from the
// operating system's entropy source. Every table gets its own.
func NewSecure() *rand.Rand {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("randutil: read entropy: " + err.Error())
	}
	return rand.New(rand.NewChaCha8(seed))
}

// Source returns a factory that hands out independent generators. A zero
// seed yields secure generators, any other seed a deterministic sequence.
// The returned func is not safe for concurrent use.
func Source(seed int64) func() *rand.Rand {
	if seed == 0 {
		return NewSecure
	}
	next := uint64(seed)
	return func() *rand.Rand {
		r := New(int64(next))
		next = mix(next + goldenRatio64)
		return r
	}
}

func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

