package circuits

import (
	"encoding/binary"
	"fmt"

	"github.com/phantomstreams/phantom-sequencer/types"
)

// Serialized sizes of the values crossing the envelope boundary.
const (
	RecordSize             = 3*types.WordSize + TreeDepth*types.WordSize + TreeDepth
	VerificationResultSize = 1 + types.WordSize
	VoteSize               = 1 + 8
	TallySize              = MaxOptions*8 + 8
	PaymentSize            = 2*types.WordSize + 8 + 8
	BoolSize               = 1
)

func checkSize(what string, data []byte, size int) error {
	if len(data) != size {
		return fmt.Errorf("%w: %s is %d bytes, expected %d", ErrContractViolation, what, len(data), size)
	}
	return nil
}

func decodeBool(what string, b byte) (bool, error) {
	if b > 1 {
		return false, fmt.Errorf("%w: %s flag has value %d", ErrContractViolation, what, b)
	}
	return b == 1, nil
}

func wordAt(data []byte, offset int) types.Word {
	var w types.Word
	for i := range w {
		w[i] = binary.LittleEndian.Uint64(data[offset+i*8:])
	}
	return w
}

// Marshal encodes the record as wallet, track, token, the 20 siblings and
// the 20 direction bytes.
func (r *RightsOwnershipRecord) Marshal() []byte {
	out := make([]byte, RecordSize)
	r.Wallet.Put(out[0:])
	r.Track.Put(out[types.WordSize:])
	r.Token.Put(out[2*types.WordSize:])
	offset := 3 * types.WordSize
	for i := range r.Path {
		r.Path[i].Put(out[offset+i*types.WordSize:])
	}
	copy(out[offset+TreeDepth*types.WordSize:], r.Directions[:])
	return out
}

// Unmarshal decodes and validates a record.
func (r *RightsOwnershipRecord) Unmarshal(data []byte) error {
	if err := checkSize("ownership record", data, RecordSize); err != nil {
		return err
	}
	var dec RightsOwnershipRecord
	dec.Wallet = wordAt(data, 0)
	dec.Track = wordAt(data, types.WordSize)
	dec.Token = wordAt(data, 2*types.WordSize)
	offset := 3 * types.WordSize
	for i := range dec.Path {
		dec.Path[i] = wordAt(data, offset+i*types.WordSize)
	}
	copy(dec.Directions[:], data[offset+TreeDepth*types.WordSize:])
	if err := dec.Validate(); err != nil {
		return err
	}
	*r = dec
	return nil
}

// Marshal encodes the result as the validity byte followed by the
// nullifier.
func (v VerificationResult) Marshal() []byte {
	out := make([]byte, VerificationResultSize)
	if v.IsValid {
		out[0] = 1
	}
	v.Nullifier.Put(out[1:])
	return out
}

func (v *VerificationResult) Unmarshal(data []byte) error {
	if err := checkSize("verification result", data, VerificationResultSize); err != nil {
		return err
	}
	valid, err := decodeBool("validity", data[0])
	if err != nil {
		return err
	}
	v.IsValid = valid
	v.Nullifier = wordAt(data, 1)
	return nil
}

func (v RoyaltyVote) Marshal() []byte {
	out := make([]byte, VoteSize)
	out[0] = v.Choice
	binary.LittleEndian.PutUint64(out[1:], v.Weight)
	return out
}

// Unmarshal decodes a ballot. The choice is not range checked here, out of
// range choices are handled by the tally circuit.
func (v *RoyaltyVote) Unmarshal(data []byte) error {
	if err := checkSize("royalty vote", data, VoteSize); err != nil {
		return err
	}
	v.Choice = data[0]
	v.Weight = binary.LittleEndian.Uint64(data[1:])
	return nil
}

func (t VoteTally) Marshal() []byte {
	out := make([]byte, TallySize)
	for i, c := range t.Counts {
		binary.LittleEndian.PutUint64(out[i*8:], c)
	}
	binary.LittleEndian.PutUint64(out[MaxOptions*8:], t.TotalWeight)
	return out
}

func (t *VoteTally) Unmarshal(data []byte) error {
	if err := checkSize("vote tally", data, TallySize); err != nil {
		return err
	}
	for i := range t.Counts {
		t.Counts[i] = binary.LittleEndian.Uint64(data[i*8:])
	}
	t.TotalWeight = binary.LittleEndian.Uint64(data[MaxOptions*8:])
	return nil
}

func (p PaymentProof) Marshal() []byte {
	out := make([]byte, PaymentSize)
	p.Payer.Put(out[0:])
	p.Track.Put(out[types.WordSize:])
	binary.LittleEndian.PutUint64(out[2*types.WordSize:], p.Amount)
	binary.LittleEndian.PutUint64(out[2*types.WordSize+8:], p.Timestamp)
	return out
}

func (p *PaymentProof) Unmarshal(data []byte) error {
	if err := checkSize("payment proof", data, PaymentSize); err != nil {
		return err
	}
	p.Payer = wordAt(data, 0)
	p.Track = wordAt(data, types.WordSize)
	p.Amount = binary.LittleEndian.Uint64(data[2*types.WordSize:])
	p.Timestamp = binary.LittleEndian.Uint64(data[2*types.WordSize+8:])
	return nil
}

// MarshalBool encodes a boolean circuit output.
func MarshalBool(b bool) []byte {
	if b {
		return []byte{1}
	}
	return []byte{0}
}

// UnmarshalBool decodes a boolean circuit output.
func UnmarshalBool(data []byte) (bool, error) {
	if err := checkSize("bool", data, BoolSize); err != nil {
		return false, err
	}
	return decodeBool("bool", data[0])
}
