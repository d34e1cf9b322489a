package circuits

import "github.com/phantomstreams/phantom-sequencer/types"

// Hasher is the fixed-width hash used by the circuits. Implementations must
// be deterministic and free of data-dependent control flow.
type Hasher interface {
	// Name identifies the hash function.
	Name() string
	// Mix combines any number of words into one.
	Mix(inputs ...types.Word) types.Word
	// MixPair combines an ordered pair of tree nodes.
	MixPair(left, right types.Word) types.Word
}

// MixHasherName is the name of the placeholder mixing hash.
const MixHasherName = "mix"

// MixHasher is the XOR and multiply mixing function. It is NOT a
// cryptographic hash; deployments should select one of the algebraic
// hashes under crypto/hash instead.
type MixHasher struct{}

func (MixHasher) Name() string { return MixHasherName }

// Mix XORs the limbs of all inputs together and multiplies each limb by an
// odd constant, wrapping on overflow.
func (MixHasher) Mix(inputs ...types.Word) types.Word {
	var out types.Word
	for _, in := range inputs {
		for i := range out {
			out[i] ^= in[i]
		}
	}
	for i := range out {
		out[i] *= mixMultiplier
	}
	return out
}

// MixPair mixes two tree nodes. The right operand is premultiplied so the
// result depends on the order of the operands, then every limb goes through
// a multiply and a shift-XOR step with a per-limb shift.
func (MixHasher) MixPair(left, right types.Word) types.Word {
	var out types.Word
	for i := range out {
		x := left[i] ^ (right[i] * pairRightMultiplier)
		x *= pairMultiplier
		x ^= x >> pairShifts[i]
		out[i] = x
	}
	return out
}
