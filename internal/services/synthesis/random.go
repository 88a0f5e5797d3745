package synthesis

import "unicode/utf16"

// Source yields uniform draws in [0, 1).
type Source interface {
	Float64() float64
}

// SourceFactory builds a Source from a seed.
type SourceFactory func(seed int64) Source

// LCG constants of the 48-bit generator. Changing any of them changes every synthesized series.
const (
	lcgMultiplier = 0x5DEECE66D
	lcgAddend     = 0xB
	lcgMask       = (1 << 48) - 1
	doubleUnit    = 1.0 / (1 << 53)
)

// LCG48 is the 48-bit linear congruential generator used to seed series.
// Its output sequence is part of the determinism contract.
type LCG48 struct {
	state uint64
}

// NewLCG48 scrambles seed the same way on every platform.
func NewLCG48(seed int64) *LCG48 {
	return &LCG48{state: (uint64(seed) ^ lcgMultiplier) & lcgMask}
}

// NewLCG48Source is the default SourceFactory.
func NewLCG48Source(seed int64) Source { return NewLCG48(seed) }

func (r *LCG48) next(bits uint) int64 {
	r.state = (r.state*lcgMultiplier + lcgAddend) & lcgMask
	return int64(int32(r.state >> (48 - bits)))
}

// Float64 returns ((next(26) << 27) + next(27)) * 2^-53.
func (r *LCG48) Float64() float64 {
	return float64((r.next(26)<<27)+r.next(27)) * doubleUnit
}

// SeedFor hashes a currency code into a generator seed: h = 31*h + unit over the
// UTF-16 code units of s, with int32 wrap-around, sign-extended.
func SeedFor(s string) int64 {
	var h int32
	for _, u := range utf16.Encode([]rune(s)) {
		h = 31*h + int32(u)
	}
	return int64(h)
}
