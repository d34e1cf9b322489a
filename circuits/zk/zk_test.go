package zk

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	qt "github.com/frankban/quicktest"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/crypto/hash/mimc"
	"github.com/phantomstreams/phantom-sequencer/types"
)

func randomWord(r *rand.Rand) types.Word {
	return types.Word{r.Uint64(), r.Uint64(), r.Uint64(), r.Uint64()}
}

func ownershipRecord(c *qt.C) (*circuits.RightsOwnershipRecord, types.Word) {
	r := rand.New(rand.NewPCG(1, 2))
	path := make([]types.Word, circuits.TreeDepth)
	dirs := make([]uint8, circuits.TreeDepth)
	for i := range path {
		path[i] = randomWord(r)
		dirs[i] = uint8(r.IntN(2))
	}
	record, err := circuits.NewRightsOwnershipRecord(randomWord(r), randomWord(r), randomWord(r), path, dirs)
	c.Assert(err, qt.IsNil)
	h := mimc.Hasher{}
	root := circuits.ComputeRoot(h, circuits.ComputeLeaf(h, record.Wallet, record.Token, record.Track), record.Path, record.Directions)
	return record, root
}

func TestOwnershipCircuit(t *testing.T) {
	c := qt.New(t)
	record, root := ownershipRecord(c)

	assignment := OwnershipAssignment(record, root)
	c.Assert(test.IsSolved(&OwnershipCircuit{}, assignment, ecc.BN254.ScalarField()), qt.IsNil)

	wrongRoot := OwnershipAssignment(record, types.Word{1})
	c.Assert(test.IsSolved(&OwnershipCircuit{}, wrongRoot, ecc.BN254.ScalarField()), qt.IsNotNil)

	flipped := OwnershipAssignment(record, root)
	flipped.Directions[3] = 1 - record.Directions[3]
	c.Assert(test.IsSolved(&OwnershipCircuit{}, flipped, ecc.BN254.ScalarField()), qt.IsNotNil)

	wrongNullifier := OwnershipAssignment(record, root)
	wrongNullifier.Nullifier = big.NewInt(42)
	c.Assert(test.IsSolved(&OwnershipCircuit{}, wrongNullifier, ecc.BN254.ScalarField()), qt.IsNotNil)
}

func TestThresholdCircuit(t *testing.T) {
	c := qt.New(t)
	p := circuits.PaymentProof{
		Payer:     types.Word{7},
		Track:     types.Word{9},
		Amount:    1000,
		Timestamp: 1700000000,
	}
	for _, minimum := range []uint64{0, 999, 1000} {
		c.Assert(test.IsSolved(&ThresholdCircuit{}, ThresholdAssignment(p, minimum), ecc.BN254.ScalarField()), qt.IsNil)
	}
	c.Assert(test.IsSolved(&ThresholdCircuit{}, ThresholdAssignment(p, 1001), ecc.BN254.ScalarField()), qt.IsNotNil)

	full := p
	full.Amount = ^uint64(0)
	c.Assert(test.IsSolved(&ThresholdCircuit{}, ThresholdAssignment(full, ^uint64(0)), ecc.BN254.ScalarField()), qt.IsNil)
}

func TestRevealCircuit(t *testing.T) {
	c := qt.New(t)
	tally := circuits.InitVoteTally()
	for _, v := range []circuits.RoyaltyVote{{Choice: 2, Weight: 5}, {Choice: 4, Weight: 5}, {Choice: 1, Weight: 3}} {
		tally = circuits.CastVote(tally, v)
	}
	winner := circuits.RevealWinner(tally)
	c.Assert(winner, qt.Equals, uint8(2))
	salt := types.Word{11, 12, 13, 14}

	c.Assert(test.IsSolved(&RevealCircuit{}, RevealAssignment(tally, winner, salt), ecc.BN254.ScalarField()), qt.IsNil)
	// the tie goes to the first index, 4 is not a valid winner
	c.Assert(test.IsSolved(&RevealCircuit{}, RevealAssignment(tally, 4, salt), ecc.BN254.ScalarField()), qt.IsNotNil)

	tampered := RevealAssignment(tally, winner, salt)
	tampered.Counts[1] = 4
	c.Assert(test.IsSolved(&RevealCircuit{}, tampered, ecc.BN254.ScalarField()), qt.IsNotNil)

	empty := RevealAssignment(circuits.InitVoteTally(), 0, salt)
	c.Assert(test.IsSolved(&RevealCircuit{}, empty, ecc.BN254.ScalarField()), qt.IsNil)
}

func TestRevealAttestation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping groth16 setup in short mode")
	}
	c := qt.New(t)
	attestor, err := NewRevealAttestor()
	c.Assert(err, qt.IsNil)

	tally := circuits.CastVote(circuits.InitVoteTally(), circuits.RoyaltyVote{Choice: 6, Weight: 10})
	att, err := attestor.Attest(tally, 6)
	c.Assert(err, qt.IsNil)
	c.Assert(attestor.Verify(6, att), qt.IsNil)
	c.Assert(attestor.Verify(5, att), qt.IsNotNil)

	// honest tallies cannot be proven for the wrong winner
	_, err = attestor.Attest(tally, 0)
	c.Assert(err, qt.IsNotNil)
}
