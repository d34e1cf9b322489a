package dkg

import (
	"fmt"
	"math/big"

	"github.com/phantomstreams/phantom-sequencer/crypto/ecc"
)

// ComputePartialDecryption returns PrivateShare * c1.
func (p *Participant) ComputePartialDecryption(c1 ecc.Point) ecc.Point {
	si := c1.New()
	si.ScalarMult(c1, p.PrivateShare)
	return si
}

// CombinePartialDecryptions interpolates at least threshold partial
// decryptions of c1 into secret * c1, the shared point of the encryption.
func CombinePartialDecryptions(partialDecryptions map[int]ecc.Point, participants []int) (ecc.Point, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("no partial decryptions")
	}
	var s ecc.Point
	for _, id := range participants {
		pd, ok := partialDecryptions[id]
		if !ok {
			return nil, fmt.Errorf("missing partial decryption from participant %d", id)
		}
		if s == nil {
			s = pd.New()
		}
	}
	lagrangeCoeffs, err := computeLagrangeCoefficients(participants, s.Order())
	if err != nil {
		return nil, fmt.Errorf("failed to compute Lagrange coefficients: %w", err)
	}
	for _, id := range participants {
		term := s.New()
		term.ScalarMult(partialDecryptions[id], lagrangeCoeffs[id])
		s.Add(s, term)
	}
	return s, nil
}

// computeLagrangeCoefficients computes the coefficients at x = 0 for the
// given participant ids.
func computeLagrangeCoefficients(participants []int, mod *big.Int) (map[int]*big.Int, error) {
	coeffs := make(map[int]*big.Int)
	for _, i := range participants {
		numerator := big.NewInt(1)
		denominator := big.NewInt(1)
		for _, j := range participants {
			if i == j {
				continue
			}
			// numerator *= -j mod mod
			tempNum := big.NewInt(int64(-j))
			tempNum.Mod(tempNum, mod)
			numerator.Mul(numerator, tempNum)
			numerator.Mod(numerator, mod)

			// denominator *= (i - j) mod mod
			tempDen := big.NewInt(int64(i - j))
			tempDen.Mod(tempDen, mod)
			denominator.Mul(denominator, tempDen)
			denominator.Mod(denominator, mod)
		}
		denominatorInv := new(big.Int).ModInverse(denominator, mod)
		if denominatorInv == nil {
			return nil, fmt.Errorf("modular inverse does not exist for denominator %s modulo %s", denominator.String(), mod.String())
		}
		coeff := new(big.Int).Mul(numerator, denominatorInv)
		coeff.Mod(coeff, mod)
		coeffs[i] = coeff
	}
	return coeffs, nil
}
