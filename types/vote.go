package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// VoteIDSize is the serialized size of a VoteID.
const VoteIDSize = 32

// VoteID identifies a royalty vote. Ids built with NewVoteID are composed
// of the creator address (20 bytes), a nonce (8 bytes) and 4 zero bytes,
// but any 32 byte value is accepted.
type VoteID [VoteIDSize]byte

// NewVoteID builds a deterministic vote id for the creator and nonce.
func NewVoteID(creator common.Address, nonce uint64) VoteID {
	var id VoteID
	copy(id[:20], creator.Bytes())
	binary.BigEndian.PutUint64(id[20:28], nonce)
	return id
}

// VoteIDFromBytes decodes a 32 byte vote id.
func VoteIDFromBytes(b []byte) (VoteID, error) {
	var id VoteID
	if len(b) != VoteIDSize {
		return id, fmt.Errorf("invalid vote id length: %d", len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ParseVoteID decodes a hex vote id, with or without 0x prefix.
func ParseVoteID(s string) (VoteID, error) {
	b, err := hex.DecodeString(trimHex(s))
	if err != nil {
		return VoteID{}, fmt.Errorf("invalid vote id hex: %w", err)
	}
	return VoteIDFromBytes(b)
}

// Bytes returns a copy of the id bytes.
func (id VoteID) Bytes() []byte {
	return append([]byte{}, id[:]...)
}

func (id VoteID) String() string {
	return hex.EncodeToString(id[:])
}

func (id VoteID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *VoteID) UnmarshalText(text []byte) error {
	dec, err := ParseVoteID(string(text))
	if err != nil {
		return err
	}
	*id = dec
	return nil
}
