// Package mimc provides the MiMC (BN254 scalar field) implementation of the
// circuit hash. It produces the same digests as the gnark std MiMC gadget,
// so values computed here can be used as public inputs of the circuits in
// circuits/zk.
package mimc

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/phantomstreams/phantom-sequencer/crypto"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// Name identifies the hasher in configuration.
const Name = "mimc"

type Hasher struct{}

func (Hasher) Name() string { return Name }

func (Hasher) Mix(inputs ...types.Word) types.Word {
	return hashWords(inputs...)
}

func (Hasher) MixPair(left, right types.Word) types.Word {
	return hashWords(left, right)
}

func hashWords(inputs ...types.Word) types.Word {
	h := mimc.NewMiMC()
	for _, in := range inputs {
		// reduced inputs are always canonical field elements
		if _, err := h.Write(crypto.WordToFieldBytes(in)); err != nil {
			panic(fmt.Sprintf("mimc write: %v", err))
		}
	}
	return types.WordFromBig(new(big.Int).SetBytes(h.Sum(nil)))
}
