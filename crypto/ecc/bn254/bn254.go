// Package bn254 implements ecc.Point over the G1 group of BN254.
package bn254

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	curve "github.com/phantomstreams/phantom-sequencer/crypto/ecc"
)

const CurveType = "bn254"

// G1 is the affine representation of a G1 group element.
type G1 struct {
	inner *bn254.G1Affine
}

// New returns the identity of G1.
func New() curve.Point {
	return &G1{inner: new(bn254.G1Affine)}
}

func (g *G1) New() curve.Point {
	return New()
}

func (g *G1) Order() *big.Int {
	return fr.Modulus()
}

func (g *G1) Add(a, b curve.Point) {
	temp := new(bn254.G1Affine)
	temp.Add(a.(*G1).inner, b.(*G1).inner)
	*g.inner = *temp
}

func (g *G1) ScalarMult(a curve.Point, scalar *big.Int) {
	temp := new(bn254.G1Affine)
	temp.ScalarMultiplication(a.(*G1).inner, scalar)
	*g.inner = *temp
}

func (g *G1) ScalarBaseMult(scalar *big.Int) {
	g.inner.ScalarMultiplicationBase(scalar)
}

func (g *G1) Marshal() []byte {
	b := g.inner.Bytes()
	return b[:]
}

// Unmarshal decodes a compressed point. SetBytes performs the curve and
// subgroup checks.
func (g *G1) Unmarshal(buf []byte) error {
	if len(buf) != bn254.SizeOfG1AffineCompressed {
		return fmt.Errorf("invalid bn254 point length: %d", len(buf))
	}
	if _, err := g.inner.SetBytes(buf); err != nil {
		return fmt.Errorf("invalid bn254 point: %w", err)
	}
	return nil
}

func (g *G1) Equal(a curve.Point) bool {
	return g.inner.Equal(a.(*G1).inner)
}

func (g *G1) Neg(a curve.Point) {
	g.inner.Neg(a.(*G1).inner)
}

func (g *G1) SetZero() {
	g.inner.X.SetZero()
	g.inner.Y.SetZero()
}

func (g *G1) IsZero() bool {
	return g.inner.IsInfinity()
}

func (g *G1) Set(a curve.Point) {
	g.inner.Set(a.(*G1).inner)
}

func (g *G1) SetGenerator() {
	_, _, gen, _ := bn254.Generators()
	g.inner.Set(&gen)
}

func (g *G1) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

func (g *G1) Type() string {
	return CurveType
}
