package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/crypto"
	mimchash "github.com/phantomstreams/phantom-sequencer/crypto/hash/mimc"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// RevealCircuit proves that Winner is the first index holding the largest
// count of a tally bound to Commitment. The salt keeps the commitment from
// being brute forced over small counts.
type RevealCircuit struct {
	Winner     frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"`

	Counts      [circuits.MaxOptions]frontend.Variable
	TotalWeight frontend.Variable
	Salt        frontend.Variable
}

func (c *RevealCircuit) Define(api frontend.API) error {
	sum := frontend.Variable(0)
	for i := range c.Counts {
		api.ToBinary(c.Counts[i], 64)
		sum = api.Add(sum, c.Counts[i])
	}
	api.ToBinary(c.TotalWeight, 64)
	api.AssertIsEqual(sum, c.TotalWeight)

	best := c.Counts[0]
	winner := frontend.Variable(0)
	for i := 1; i < circuits.MaxOptions; i++ {
		// Cmp returns -1 when best < count
		greater := api.IsZero(api.Add(api.Cmp(best, c.Counts[i]), 1))
		best = api.Select(greater, c.Counts[i], best)
		winner = api.Select(greater, i, winner)
	}
	api.AssertIsEqual(winner, c.Winner)

	vars := make([]frontend.Variable, 0, circuits.MaxOptions+2)
	vars = append(vars, c.Counts[:]...)
	vars = append(vars, c.TotalWeight, c.Salt)
	commitment, err := hashVars(api, vars...)
	if err != nil {
		return err
	}
	api.AssertIsEqual(commitment, c.Commitment)
	return nil
}

// TallyCommitment is the salted MiMC commitment to a tally.
func TallyCommitment(t circuits.VoteTally, salt types.Word) types.Word {
	words := make([]types.Word, 0, circuits.MaxOptions+2)
	for _, count := range t.Counts {
		words = append(words, types.Word{count})
	}
	words = append(words, types.Word{t.TotalWeight}, salt)
	return mimchash.Hasher{}.Mix(words...)
}

// RevealAssignment builds the witness of a reveal.
func RevealAssignment(t circuits.VoteTally, winner uint8, salt types.Word) *RevealCircuit {
	a := &RevealCircuit{
		Winner:      winner,
		Commitment:  crypto.WordToFF(TallyCommitment(t, salt)),
		TotalWeight: t.TotalWeight,
		Salt:        crypto.WordToFF(salt),
	}
	for i, count := range t.Counts {
		a.Counts[i] = count
	}
	return a
}
