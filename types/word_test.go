package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
)

func TestWordEncoding(t *testing.T) {
	c := qt.New(t)
	w := Word{1, 2, 3, 0xffffffffffffffff}

	dec, err := WordFromBytes(w.Bytes())
	c.Assert(err, qt.IsNil)
	c.Assert(dec, qt.Equals, w)

	c.Assert(WordFromBig(w.BigInt()), qt.Equals, w)
	expected := new(big.Int).Lsh(big.NewInt(2), 64)
	expected.Add(expected, big.NewInt(1))
	c.Assert(Word{1, 2}.BigInt().Cmp(expected), qt.Equals, 0)

	_, err = WordFromBytes(make([]byte, 31))
	c.Assert(err, qt.ErrorMatches, "invalid word length: 31")
}

func TestWordJSON(t *testing.T) {
	c := qt.New(t)
	in := map[string]Word{"root": {0xdeadbeef, 0, 7, 9}}
	data, err := json.Marshal(in)
	c.Assert(err, qt.IsNil)

	var out map[string]Word
	c.Assert(json.Unmarshal(data, &out), qt.IsNil)
	c.Assert(out, qt.DeepEquals, in)

	var w Word
	c.Assert(w.UnmarshalText([]byte("0xzz")), qt.ErrorMatches, "invalid word hex.*")
}

func TestVoteID(t *testing.T) {
	c := qt.New(t)
	addr := common.HexToAddress("0x3d0b39c0239329955b9F0E8791dF9Aa84133c861")
	id := NewVoteID(addr, 42)
	c.Assert(common.BytesToAddress(id[:20]), qt.Equals, addr)

	parsed, err := ParseVoteID("0x" + id.String())
	c.Assert(err, qt.IsNil)
	c.Assert(parsed, qt.Equals, id)
	c.Assert(NewVoteID(addr, 43), qt.Not(qt.Equals), id)

	_, err = ParseVoteID("abcd")
	c.Assert(err, qt.ErrorMatches, "invalid vote id length: 2")
}

func TestHexBytesJSON(t *testing.T) {
	c := qt.New(t)
	data, err := json.Marshal(HexBytes{0x01, 0xab})
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `"0x01ab"`)

	var hb HexBytes
	c.Assert(json.Unmarshal([]byte(`"01ab"`), &hb), qt.IsNil)
	c.Assert(hb, qt.DeepEquals, HexBytes{0x01, 0xab})
}
