package circuits

import "github.com/phantomstreams/phantom-sequencer/types"

const (
	// TreeDepth is the fixed depth of the rights registry Merkle tree.
	TreeDepth = 20
	// MaxOptions is the number of counters of a vote tally.
	MaxOptions = 8
)

// Mixing constants of the placeholder hash.
const (
	mixMultiplier       uint64 = 0x9e3779b97f4a7c15
	pairMultiplier      uint64 = 0x517cc1b727220a95
	pairRightMultiplier uint64 = 0xc2b2ae3d27d4eb4f
)

// pairShifts are the per-limb avalanche shifts of MixPair.
var pairShifts = [4]uint{32, 29, 31, 27}

// NullifierDomain separates ownership nullifiers from any other value mixed
// with the same hash. Limbs: "phantoms", "treams", reserved, version.
var NullifierDomain = types.Word{
	0x7068616e746f6d73,
	0x747265616d730000,
	0,
	1,
}
