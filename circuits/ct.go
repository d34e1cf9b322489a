package circuits

import (
	"math/bits"

	"github.com/phantomstreams/phantom-sequencer/types"
)

const allOnes = ^uint64(0)

// eqMask returns all ones if a == b and zero otherwise.
func eqMask(a, b uint64) uint64 {
	d := a ^ b
	return ((d | -d) >> 63) - 1
}

// lessMask returns all ones if a < b and zero otherwise.
func lessMask(a, b uint64) uint64 {
	_, borrow := bits.Sub64(a, b, 0)
	return -borrow
}

// bitMask expands the lowest bit of b into a mask.
func bitMask(b uint64) uint64 {
	return -(b & 1)
}

// selectU64 returns a if mask is all ones and b if mask is zero.
func selectU64(mask, a, b uint64) uint64 {
	return (a & mask) | (b &^ mask)
}

func selectWord(mask uint64, a, b types.Word) types.Word {
	var out types.Word
	for i := range out {
		out[i] = selectU64(mask, a[i], b[i])
	}
	return out
}

// wordEqMask compares every limb and combines the results, there is no
// early exit on the first differing limb.
func wordEqMask(a, b types.Word) uint64 {
	m := allOnes
	for i := range a {
		m &= eqMask(a[i], b[i])
	}
	return m
}

// Equal reports whether a and b hold the same value in constant time.
func Equal(a, b types.Word) bool {
	return wordEqMask(a, b) == allOnes
}
