package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/crypto"
	mimchash "github.com/phantomstreams/phantom-sequencer/crypto/hash/mimc"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// ThresholdCircuit proves that the committed payment amount is at least
// Minimum. Both values are constrained to 64 bits, as in the native check.
type ThresholdCircuit struct {
	Minimum    frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"`

	Payer     frontend.Variable
	Track     frontend.Variable
	Amount    frontend.Variable
	Timestamp frontend.Variable
}

func (c *ThresholdCircuit) Define(api frontend.API) error {
	api.ToBinary(c.Amount, 64)
	api.ToBinary(c.Minimum, 64)
	api.ToBinary(c.Timestamp, 64)
	api.AssertIsLessOrEqual(c.Minimum, c.Amount)

	commitment, err := hashVars(api, c.Payer, c.Track, c.Amount, c.Timestamp)
	if err != nil {
		return err
	}
	api.AssertIsEqual(commitment, c.Commitment)
	return nil
}

// PaymentCommitment is the MiMC commitment to a payment proof.
func PaymentCommitment(p circuits.PaymentProof) types.Word {
	return mimchash.Hasher{}.Mix(p.Payer, p.Track, types.Word{p.Amount}, types.Word{p.Timestamp})
}

// ThresholdAssignment builds the witness of a payment check.
func ThresholdAssignment(p circuits.PaymentProof, minimum uint64) *ThresholdCircuit {
	return &ThresholdCircuit{
		Minimum:    minimum,
		Commitment: crypto.WordToFF(PaymentCommitment(p)),
		Payer:      crypto.WordToFF(p.Payer),
		Track:      crypto.WordToFF(p.Track),
		Amount:     p.Amount,
		Timestamp:  p.Timestamp,
	}
}
