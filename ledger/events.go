package ledger

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// EventType names the kind of a ledger event.
type EventType string

const (
	EventRootUpdated       EventType = "RootUpdated"
	EventOwnershipVerified EventType = "OwnershipVerified"
	EventVoteCreated       EventType = "VoteCreated"
	EventVoteCast          EventType = "VoteCast"
	EventVoteRevealed      EventType = "VoteRevealed"
)

// Event is an entry of the append-only event log. Only the fields of its
// type are set.
type Event struct {
	Seq            uint64        `json:"seq" cbor:"0,keyasint"`
	Type           EventType     `json:"type" cbor:"1,keyasint"`
	Timestamp      int64         `json:"timestamp" cbor:"2,keyasint"`
	OldRoot        *types.Word   `json:"oldRoot,omitempty" cbor:"3,keyasint,omitempty"`
	NewRoot        *types.Word   `json:"newRoot,omitempty" cbor:"4,keyasint,omitempty"`
	Nullifier      *types.Word   `json:"nullifier,omitempty" cbor:"5,keyasint,omitempty"`
	VerificationID uint64        `json:"verificationId,omitempty" cbor:"6,keyasint,omitempty"`
	VoteID         *types.VoteID `json:"voteId,omitempty" cbor:"7,keyasint,omitempty"`
	Winner         *uint8        `json:"winner,omitempty" cbor:"8,keyasint,omitempty"`
}

// appendEvent assigns the next sequence number and the timestamp to ev and
// writes it within tx. Callers must hold l.mu.
func (l *Ledger) appendEvent(tx db.WriteTx, ev *Event) error {
	var seq uint64
	if err := getArtifact(tx, eventSeqKey, &seq); err != nil && !errors.Is(err, db.ErrKeyNotFound) {
		return fmt.Errorf("cannot read event sequence: %w", err)
	}
	ev.Seq = seq
	ev.Timestamp = l.now().Unix()
	if err := setArtifact(tx, uint64Key(eventPrefix, seq), ev); err != nil {
		return err
	}
	return setArtifact(tx, eventSeqKey, seq+1)
}

// Events returns up to limit events starting at sequence number from. A
// limit of zero or less returns all of them.
func (l *Ledger) Events(from uint64, limit int) ([]*Event, error) {
	rd := prefixeddb.NewPrefixedReader(l.db, eventPrefix)
	var events []*Event
	var iterErr error
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		ev := &Event{}
		if err := cbor.Unmarshal(v, ev); err != nil {
			iterErr = fmt.Errorf("decode event: %w", err)
			return false
		}
		if ev.Seq < from {
			return true
		}
		events = append(events, ev)
		return limit <= 0 || len(events) < limit
	}); err != nil {
		return nil, err
	}
	return events, iterErr
}
