// Package bjj implements ecc.Point over the BabyJubJub prime order subgroup
// using the iden3 implementation.
package bjj

import (
	"fmt"
	"math/big"

	babyjubjub "github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/constants"
	curve "github.com/phantomstreams/phantom-sequencer/crypto/ecc"
)

const CurveType = "bjj_iden3"

// BJJ is the affine representation of the BabyJubJub group element.
type BJJ struct {
	inner *babyjubjub.Point
}

// New creates a new BJJ point (identity element by default).
func New() curve.Point {
	return &BJJ{inner: babyjubjub.NewPoint()}
}

func (g *BJJ) New() curve.Point {
	return New()
}

func (g *BJJ) Order() *big.Int {
	return babyjubjub.SubOrder
}

func (g *BJJ) Add(a, b curve.Point) {
	g.inner = g.inner.Projective().Add(a.(*BJJ).inner.Projective(), b.(*BJJ).inner.Projective()).Affine()
}

func (g *BJJ) ScalarMult(a curve.Point, scalar *big.Int) {
	g.inner = babyjubjub.NewPoint().Mul(scalar, a.(*BJJ).inner)
}

func (g *BJJ) ScalarBaseMult(scalar *big.Int) {
	g.inner = babyjubjub.NewPoint().Mul(scalar, babyjubjub.B8)
}

func (g *BJJ) Marshal() []byte {
	b := g.inner.Compress()
	return b[:]
}

func (g *BJJ) Unmarshal(buf []byte) error {
	if len(buf) != 32 {
		return fmt.Errorf("invalid bjj point length: %d", len(buf))
	}
	b32 := [32]byte{}
	copy(b32[:], buf)
	p, err := babyjubjub.NewPoint().Decompress(b32)
	if err != nil {
		return fmt.Errorf("invalid bjj point: %w", err)
	}
	if !p.InSubGroup() {
		return fmt.Errorf("bjj point not in the prime order subgroup")
	}
	g.inner = p
	return nil
}

func (g *BJJ) Equal(a curve.Point) bool {
	return g.inner.X.Cmp(a.(*BJJ).inner.X) == 0 && g.inner.Y.Cmp(a.(*BJJ).inner.Y) == 0
}

// Neg negates the x coordinate, which is the inverse on a twisted Edwards
// curve.
func (g *BJJ) Neg(a curve.Point) {
	src := a.(*BJJ).inner
	x := new(big.Int).Neg(src.X)
	x.Mod(x, constants.Q)
	g.inner = &babyjubjub.Point{X: x, Y: new(big.Int).Set(src.Y)}
}

func (g *BJJ) SetZero() {
	g.inner = babyjubjub.NewPoint()
}

func (g *BJJ) IsZero() bool {
	return g.inner.X.Sign() == 0 && g.inner.Y.Cmp(big.NewInt(1)) == 0
}

func (g *BJJ) Set(a curve.Point) {
	src := a.(*BJJ).inner
	g.inner = &babyjubjub.Point{X: new(big.Int).Set(src.X), Y: new(big.Int).Set(src.Y)}
}

func (g *BJJ) SetGenerator() {
	g.Set(&BJJ{inner: babyjubjub.B8})
}

func (g *BJJ) String() string {
	return fmt.Sprintf("%x", g.Marshal())
}

func (g *BJJ) Type() string {
	return CurveType
}
