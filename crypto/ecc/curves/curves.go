package curves

import (
	"fmt"

	"github.com/phantomstreams/phantom-sequencer/crypto/ecc"
	bjj "github.com/phantomstreams/phantom-sequencer/crypto/ecc/bjj_iden3"
	"github.com/phantomstreams/phantom-sequencer/crypto/ecc/bn254"
)

const (
	CurveTypeBN254           = bn254.CurveType
	CurveTypeBabyJubJubIden3 = bjj.CurveType
	// DefaultCurve is the curve of the cluster key when none is configured.
	DefaultCurve = CurveTypeBN254
)

// Supported returns the supported curve types.
func Supported() []string {
	return []string{CurveTypeBN254, CurveTypeBabyJubJubIden3}
}

// New creates a new instance of a Curve implementation based on the provided type string.
// The supported types are defined as constants in this package.
// If the type is not supported, it will panic.
func New(curveType string) ecc.Point {
	p, err := Parse(curveType)
	if err != nil {
		panic(err.Error())
	}
	return p
}

// Parse is New returning an error for unsupported curves.
func Parse(curveType string) (ecc.Point, error) {
	switch curveType {
	case CurveTypeBN254:
		return bn254.New(), nil
	case CurveTypeBabyJubJubIden3:
		return bjj.New(), nil
	default:
		return nil, fmt.Errorf("unsupported curve type: %s", curveType)
	}
}
