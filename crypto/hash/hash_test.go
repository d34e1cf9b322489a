package hash

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/types"
)

func TestHashers(t *testing.T) {
	c := qt.New(t)
	a := types.Word{1, 2, 3, 4}
	// above the BN254 modulus, reduced before hashing
	b := types.Word{0xffffffffffffffff, 0xffffffffffffffff, 0xffffffffffffffff, 0xffffffffffffffff}

	for _, name := range Names() {
		c.Run(name, func(c *qt.C) {
			h, err := New(name)
			c.Assert(err, qt.IsNil)
			c.Assert(h.Name(), qt.Equals, name)

			c.Assert(h.MixPair(a, b), qt.Equals, h.MixPair(a, b))
			c.Assert(circuits.Equal(h.MixPair(a, b), h.MixPair(b, a)), qt.IsFalse)
			c.Assert(h.Mix(a, b, circuits.NullifierDomain), qt.Equals, h.Mix(a, b, circuits.NullifierDomain))
			c.Assert(circuits.Equal(h.Mix(a, b), h.Mix(a, b, circuits.NullifierDomain)), qt.IsFalse)

			// the nullifier changes with the track
			n1 := circuits.DeriveNullifier(h, a, b)
			n2 := circuits.DeriveNullifier(h, a, types.Word{5})
			c.Assert(circuits.Equal(n1, n2), qt.IsFalse)
		})
	}

	_, err := New("sha3")
	c.Assert(err, qt.ErrorMatches, `unsupported hasher "sha3".*`)
	h, err := New("")
	c.Assert(err, qt.IsNil)
	c.Assert(h.Name(), qt.Equals, DefaultHasher)
}
