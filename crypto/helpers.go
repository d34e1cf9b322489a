package crypto

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/phantomstreams/phantom-sequencer/types"
)

const SerializedFieldSize = 32 // bytes

// BigToFF function returns the finite field representation of the big.Int
// provided. It uses the curve scalar field to represent the provided number.
func BigToFF(baseField, iv *big.Int) *big.Int {
	z := big.NewInt(0)
	if c := iv.Cmp(baseField); c == 0 {
		return z
	} else if c != 1 && iv.Cmp(z) != -1 {
		return iv
	}
	return z.Mod(iv, baseField)
}

// WordToFF reduces a 256-bit word into the BN254 scalar field, which is the
// field of both the Poseidon and the MiMC hashes and of the gnark circuits.
// Words above the modulus wrap, so hashes and circuits must always be fed
// the reduced value.
func WordToFF(w types.Word) *big.Int {
	return BigToFF(fr.Modulus(), w.BigInt())
}

// WordToFieldBytes returns the 32 byte big-endian encoding of the reduced
// word, left padded with zeros.
func WordToFieldBytes(w types.Word) []byte {
	out := make([]byte, SerializedFieldSize)
	WordToFF(w).FillBytes(out)
	return out
}
