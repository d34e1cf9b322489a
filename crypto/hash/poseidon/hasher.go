// Package poseidon provides the Poseidon (iden3 parameters, BN254 scalar
// field) implementation of the circuit hash.
package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
	"github.com/phantomstreams/phantom-sequencer/crypto"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// Name identifies the hasher in configuration.
const Name = "poseidon"

// Hasher hashes words as BN254 field elements. Inputs are reduced modulo
// the field before hashing.
type Hasher struct{}

func (Hasher) Name() string { return Name }

// Mix hashes all inputs. Calling it without inputs hashes a single zero
// element.
func (Hasher) Mix(inputs ...types.Word) types.Word {
	elems := make([]*big.Int, 0, max(len(inputs), 1))
	for _, in := range inputs {
		elems = append(elems, crypto.WordToFF(in))
	}
	if len(elems) == 0 {
		elems = append(elems, big.NewInt(0))
	}
	h, err := MultiPoseidon(elems...)
	if err != nil {
		panic(fmt.Sprintf("poseidon mix of %d inputs: %v", len(inputs), err))
	}
	return types.WordFromBig(h)
}

func (Hasher) MixPair(left, right types.Word) types.Word {
	h, err := poseidon.Hash([]*big.Int{crypto.WordToFF(left), crypto.WordToFF(right)})
	if err != nil {
		panic(fmt.Sprintf("poseidon pair: %v", err))
	}
	return types.WordFromBig(h)
}
