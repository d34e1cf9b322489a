package circuits

import (
	"fmt"

	"github.com/phantomstreams/phantom-sequencer/types"
)

// RightsOwnershipRecord is the secret claim submitted by a rights holder:
// the identity, track and rights token of the claim plus the authentication
// path of its leaf in the registry tree.
type RightsOwnershipRecord struct {
	Wallet     types.Word
	Track      types.Word
	Token      types.Word
	Path       [TreeDepth]types.Word
	Directions [TreeDepth]uint8
}

// VerificationResult is the output of an ownership verification. It is
// only ever delivered inside an owner envelope.
type VerificationResult struct {
	IsValid   bool
	Nullifier types.Word
}

// NewRightsOwnershipRecord builds a record from variable length inputs,
// checking that path and directions have exactly TreeDepth entries and
// that every direction is 0 (current node is left) or 1 (current node is
// right).
func NewRightsOwnershipRecord(wallet, token, track types.Word, path []types.Word, directions []uint8) (*RightsOwnershipRecord, error) {
	if len(path) != TreeDepth {
		return nil, fmt.Errorf("%w: path has %d siblings, expected %d", ErrContractViolation, len(path), TreeDepth)
	}
	if len(directions) != TreeDepth {
		return nil, fmt.Errorf("%w: %d directions, expected %d", ErrContractViolation, len(directions), TreeDepth)
	}
	r := &RightsOwnershipRecord{
		Wallet: wallet,
		Track:  track,
		Token:  token,
	}
	copy(r.Path[:], path)
	copy(r.Directions[:], directions)
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the direction bits of the record.
func (r *RightsOwnershipRecord) Validate() error {
	for i, d := range r.Directions {
		if d > 1 {
			return fmt.Errorf("%w: direction %d has value %d", ErrContractViolation, i, d)
		}
	}
	return nil
}

// ComputeLeaf returns the registry leaf of a (wallet, token, track) claim.
func ComputeLeaf(h Hasher, wallet, token, track types.Word) types.Word {
	return h.Mix(wallet, token, track)
}

// ComputeRoot walks the authentication path from the leaf to the root. At
// every level both orderings are hashed and the direction bit selects
// which one becomes the next node.
func ComputeRoot(h Hasher, leaf types.Word, path [TreeDepth]types.Word, directions [TreeDepth]uint8) types.Word {
	current := leaf
	for i := 0; i < TreeDepth; i++ {
		asLeft := h.MixPair(current, path[i])
		asRight := h.MixPair(path[i], current)
		current = selectWord(bitMask(uint64(directions[i])), asRight, asLeft)
	}
	return current
}

// Verify checks the record against the expected root. The nullifier is
// always derived, whether the proof is valid or not.
func Verify(h Hasher, r *RightsOwnershipRecord, expectedRoot types.Word) VerificationResult {
	leaf := ComputeLeaf(h, r.Wallet, r.Token, r.Track)
	root := ComputeRoot(h, leaf, r.Path, r.Directions)
	return VerificationResult{
		IsValid:   Equal(root, expectedRoot),
		Nullifier: DeriveNullifier(h, r.Wallet, r.Track),
	}
}
