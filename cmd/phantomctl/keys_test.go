package main

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/phantomstreams/phantom-sequencer/types"
)

func TestParseWord(t *testing.T) {
	c := qt.New(t)

	w, err := parseWord("4660")
	c.Assert(err, qt.IsNil)
	c.Assert(w, qt.Equals, types.Word{0x1234})

	top := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	w, err = parseWord(top.String())
	c.Assert(err, qt.IsNil)
	c.Assert(w.BigInt().Cmp(top), qt.Equals, 0)

	hexWord := types.Word{1, 2, 3, 4}
	text, err := hexWord.MarshalText()
	c.Assert(err, qt.IsNil)
	w, err = parseWord(string(text))
	c.Assert(err, qt.IsNil)
	c.Assert(w, qt.Equals, hexWord)

	for _, bad := range []string{"", "-1", "abc", "0xzz", new(big.Int).Lsh(big.NewInt(1), 256).String()} {
		_, err := parseWord(bad)
		c.Assert(err, qt.Not(qt.IsNil), qt.Commentf("%q", bad))
	}
}
