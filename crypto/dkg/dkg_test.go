package dkg

import (
	"crypto/rand"
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/phantomstreams/phantom-sequencer/crypto/ecc"
	"github.com/phantomstreams/phantom-sequencer/crypto/ecc/curves"
)

func TestDKGThresholdOpening(t *testing.T) {
	for _, curveType := range curves.Supported() {
		t.Run(curveType, func(t *testing.T) {
			c := qt.New(t)
			curve := curves.New(curveType)
			const (
				threshold = 3
				n         = 5
			)
			participants, err := Run(curve, threshold, n)
			c.Assert(err, qt.IsNil)
			c.Assert(participants, qt.HasLen, n)

			pub := participants[1].PublicKey
			for _, p := range participants {
				c.Assert(p.PublicKey.Equal(pub), qt.IsTrue)
			}

			// the public key matches the interpolated private shares
			secret := interpolateSecret(c, participants, []int{1, 2, 3}, curve.Order())
			expected := curve.New()
			expected.ScalarBaseMult(secret)
			c.Assert(expected.Equal(pub), qt.IsTrue)

			// encrypt a point to the key: R = r*G, S = r*P
			r, err := rand.Int(rand.Reader, curve.Order())
			c.Assert(err, qt.IsNil)
			ephemeral := curve.New()
			ephemeral.ScalarBaseMult(r)
			shared := curve.New()
			shared.ScalarMult(pub, r)

			for _, subset := range [][]int{{1, 2, 3}, {2, 4, 5}, {5, 3, 1}, {1, 2, 3, 4, 5}} {
				partials := make(map[int]ecc.Point)
				for _, id := range subset {
					partials[id] = participants[id].ComputePartialDecryption(ephemeral)
				}
				combined, err := CombinePartialDecryptions(partials, subset)
				c.Assert(err, qt.IsNil)
				c.Assert(combined.Equal(shared), qt.IsTrue, qt.Commentf("subset %v", subset))
			}

			// fewer than threshold shares interpolate a different point
			partials := map[int]ecc.Point{
				1: participants[1].ComputePartialDecryption(ephemeral),
				2: participants[2].ComputePartialDecryption(ephemeral),
			}
			combined, err := CombinePartialDecryptions(partials, []int{1, 2})
			c.Assert(err, qt.IsNil)
			c.Assert(combined.Equal(shared), qt.IsFalse)
		})
	}
}

func TestCombineErrors(t *testing.T) {
	c := qt.New(t)
	_, err := CombinePartialDecryptions(nil, nil)
	c.Assert(err, qt.ErrorMatches, "no partial decryptions")

	curve := curves.New(curves.DefaultCurve)
	g := curve.New()
	g.SetGenerator()
	_, err = CombinePartialDecryptions(map[int]ecc.Point{1: g}, []int{1, 2})
	c.Assert(err, qt.ErrorMatches, "missing partial decryption from participant 2")

	_, err = CombinePartialDecryptions(map[int]ecc.Point{1: g}, []int{1, 1})
	c.Assert(err, qt.ErrorMatches, "failed to compute Lagrange coefficients.*")
}

func TestInvalidShareRejected(t *testing.T) {
	c := qt.New(t)
	curve := curves.New(curves.DefaultCurve)
	ids := []int{1, 2, 3}
	p1, err := NewParticipant(1, 2, ids, curve.New())
	c.Assert(err, qt.IsNil)
	p2, err := NewParticipant(2, 2, ids, curve.New())
	c.Assert(err, qt.IsNil)
	c.Assert(p2.GenerateSecretPolynomial(), qt.IsNil)
	p2.ComputeShares()

	c.Assert(p1.ReceiveShare(2, p2.SecretShares[1], p2.PublicCoeffs), qt.IsNil)
	tampered := new(big.Int).Add(p2.SecretShares[1], big.NewInt(1))
	c.Assert(p1.ReceiveShare(2, tampered, p2.PublicCoeffs), qt.ErrorMatches, "invalid share from participant 2")

	_, err = NewParticipant(0, 2, ids, curve.New())
	c.Assert(err, qt.IsNotNil)
	_, err = NewParticipant(1, 4, ids, curve.New())
	c.Assert(err, qt.IsNotNil)
}

func interpolateSecret(c *qt.C, participants map[int]*Participant, ids []int, order *big.Int) *big.Int {
	coeffs, err := computeLagrangeCoefficients(ids, order)
	c.Assert(err, qt.IsNil)
	secret := new(big.Int)
	for _, id := range ids {
		term := new(big.Int).Mul(coeffs[id], participants[id].PrivateShare)
		secret.Add(secret, term)
		secret.Mod(secret, order)
	}
	return secret
}
