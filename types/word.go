package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
)

// WordSize is the serialized size of a Word in bytes.
const WordSize = 32

// Word is a 256-bit fixed-width value stored as four 64-bit limbs, least
// significant limb first. Every secret value handled by the circuits
// (identities, track ids, tokens, hashes, nullifiers) is a Word.
type Word [4]uint64

// WordFromBytes decodes a 32 byte little-endian limb encoding.
func WordFromBytes(b []byte) (Word, error) {
	var w Word
	if len(b) != WordSize {
		return w, fmt.Errorf("invalid word length: %d", len(b))
	}
	for i := range w {
		w[i] = binary.LittleEndian.Uint64(b[i*8 : i*8+8])
	}
	return w, nil
}

// WordFromBig returns the Word holding n, which must be a non-negative
// integer of at most 256 bits.
func WordFromBig(n *big.Int) Word {
	var w Word
	buf := make([]byte, WordSize)
	n.FillBytes(buf) // big-endian, panics if n does not fit
	for i := range w {
		w[i] = binary.BigEndian.Uint64(buf[WordSize-(i+1)*8 : WordSize-i*8])
	}
	return w
}

// Bytes returns the 32 byte little-endian limb encoding of w.
func (w Word) Bytes() []byte {
	b := make([]byte, WordSize)
	w.Put(b)
	return b
}

// Put writes the encoding of w into b, which must hold at least 32 bytes.
func (w Word) Put(b []byte) {
	for i := range w {
		binary.LittleEndian.PutUint64(b[i*8:i*8+8], w[i])
	}
}

// BigInt interprets w as an unsigned 256-bit integer.
func (w Word) BigInt() *big.Int {
	n := new(big.Int)
	for i := len(w) - 1; i >= 0; i-- {
		n.Lsh(n, 64)
		n.Or(n, new(big.Int).SetUint64(w[i]))
	}
	return n
}

// String returns the hex representation of the byte encoding.
func (w Word) String() string {
	return hex.EncodeToString(w.Bytes())
}

// MarshalText implements encoding.TextMarshaler.
func (w Word) MarshalText() ([]byte, error) {
	return []byte("0x" + w.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The 0x prefix is
// optional.
func (w *Word) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(trimHex(string(text)))
	if err != nil {
		return fmt.Errorf("invalid word hex: %w", err)
	}
	dec, err := WordFromBytes(b)
	if err != nil {
		return err
	}
	*w = dec
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (w Word) MarshalBinary() ([]byte, error) {
	return w.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (w *Word) UnmarshalBinary(data []byte) error {
	dec, err := WordFromBytes(data)
	if err != nil {
		return err
	}
	*w = dec
	return nil
}

func trimHex(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
