// Package ecc defines the elliptic curve group abstraction used by the
// cluster key generation and the cluster envelopes.
package ecc

import (
	"math/big"
)

// Point is an element of a prime order elliptic curve group. Methods with a
// receiver set the receiver to the result of the operation.
type Point interface {
	// New returns a new point of the same curve, set to the identity.
	New() Point

	// Order returns the order of the group.
	Order() *big.Int

	// Add sets the receiver to a + b.
	Add(a, b Point)

	// ScalarMult sets the receiver to scalar * a.
	ScalarMult(a Point, scalar *big.Int)

	// ScalarBaseMult sets the receiver to scalar * G.
	ScalarBaseMult(scalar *big.Int)

	// Marshal returns the compressed encoding of the point.
	Marshal() []byte

	// Unmarshal decodes a compressed point. It fails for encodings that are
	// not on the curve or not in the prime order subgroup.
	Unmarshal(buf []byte) error

	// Equal reports whether both points are the same element.
	Equal(a Point) bool

	// Neg sets the receiver to -a.
	Neg(a Point)

	// SetZero sets the receiver to the identity.
	SetZero()

	// IsZero reports whether the point is the identity.
	IsZero() bool

	// Set copies a into the receiver.
	Set(a Point)

	// SetGenerator sets the receiver to the group generator.
	SetGenerator()

	// String returns the hex encoding of Marshal.
	String() string

	// Type returns the curve identifier used by curves.New.
	Type() string
}
