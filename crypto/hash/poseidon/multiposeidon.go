package poseidon

import (
	"fmt"
	"math/big"

	"github.com/iden3/go-iden3-crypto/poseidon"
)

// MultiPoseidon hashes up to 256 field elements by hashing them in chunks
// of 16 and then hashing the chunk digests.
func MultiPoseidon(inputs ...*big.Int) (*big.Int, error) {
	if len(inputs) > 256 {
		return nil, fmt.Errorf("too many inputs")
	} else if len(inputs) == 0 {
		return nil, fmt.Errorf("no inputs provided")
	}
	if len(inputs) <= 16 {
		return poseidon.Hash(inputs)
	}
	hashes := []*big.Int{}
	for start := 0; start < len(inputs); start += 16 {
		end := min(start+16, len(inputs))
		hash, err := poseidon.Hash(inputs[start:end])
		if err != nil {
			return nil, err
		}
		hashes = append(hashes, hash)
	}
	return poseidon.Hash(hashes)
}
