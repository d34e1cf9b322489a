package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/circuits/zk"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// VoteRecord is a royalty vote. The tally stays sealed to the cluster
// until the reveal.
type VoteRecord struct {
	ID          types.VoteID                        `json:"id" cbor:"0,keyasint"`
	Authority   common.Address                      `json:"authority" cbor:"1,keyasint"`
	Options     uint8                               `json:"options" cbor:"2,keyasint"`
	EndTime     int64                               `json:"endTime" cbor:"3,keyasint"`
	Revealed    bool                                `json:"revealed" cbor:"4,keyasint"`
	Winner      *uint8                              `json:"winner,omitempty" cbor:"5,keyasint,omitempty"`
	Tally       envelope.Envelope[envelope.Cluster] `json:"tally" cbor:"6,keyasint"`
	Ballots     uint64                              `json:"ballots" cbor:"7,keyasint"`
	Attestation *zk.Attestation                     `json:"attestation,omitempty" cbor:"8,keyasint,omitempty"`
	CreatedAt   int64                               `json:"createdAt" cbor:"9,keyasint"`
}

// Ready reports whether the initial tally was stored.
func (v *VoteRecord) Ready() bool {
	return !v.Tally.IsEmpty()
}

// State returns the lifecycle state of the vote tally: uninitialized until
// the initial tally is stored, closed once revealed.
func (v *VoteRecord) State() circuits.TallyState {
	switch {
	case v.Revealed:
		return circuits.TallyClosed
	case !v.Ready():
		return circuits.TallyUninitialized
	default:
		return circuits.TallyOpen
	}
}

// voteLock returns the lock serializing the updates of a vote.
func (l *Ledger) voteLock(id types.VoteID) *sync.Mutex {
	l.votesMu.Lock()
	defer l.votesMu.Unlock()
	mu, ok := l.voteLocks[id]
	if !ok {
		mu = &sync.Mutex{}
		l.voteLocks[id] = mu
	}
	return mu
}

// CreateVote registers a vote with options choices closing at endTime. The
// tally is stored later with SetInitialTally.
func (l *Ledger) CreateVote(caller common.Address, id types.VoteID, options uint8, endTime time.Time) (*VoteRecord, error) {
	if err := l.CheckAuthority(caller); err != nil {
		return nil, err
	}
	if options == 0 || options > circuits.MaxOptions {
		return nil, fmt.Errorf("%w: %d, expected 1 to %d", ErrInvalidOptions, options, circuits.MaxOptions)
	}
	mu := l.voteLock(id)
	mu.Lock()
	defer mu.Unlock()
	if _, err := l.Vote(id); err == nil {
		return nil, ErrVoteExists
	} else if !errors.Is(err, ErrVoteNotFound) {
		return nil, err
	}
	vote := &VoteRecord{
		ID:        id,
		Authority: caller,
		Options:   options,
		EndTime:   endTime.Unix(),
		CreatedAt: l.now().Unix(),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.writeTx(func(tx db.WriteTx) error {
		if err := setArtifact(tx, prefixed(votePrefix, id.Bytes()), vote); err != nil {
			return err
		}
		return l.appendEvent(tx, &Event{Type: EventVoteCreated, VoteID: &id})
	}); err != nil {
		return nil, err
	}
	return vote, nil
}

// Vote returns a vote record.
func (l *Ledger) Vote(id types.VoteID) (*VoteRecord, error) {
	vote := &VoteRecord{}
	err := getArtifact(l.db, prefixed(votePrefix, id.Bytes()), vote)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrVoteNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return vote, nil
}

// Votes lists all the votes.
func (l *Ledger) Votes() ([]*VoteRecord, error) {
	rd := prefixeddb.NewPrefixedReader(l.db, votePrefix)
	var votes []*VoteRecord
	var iterErr error
	if err := rd.Iterate(nil, func(_, v []byte) bool {
		vote := &VoteRecord{}
		if err := cbor.Unmarshal(v, vote); err != nil {
			iterErr = fmt.Errorf("decode vote: %w", err)
			return false
		}
		votes = append(votes, vote)
		return true
	}); err != nil {
		return nil, err
	}
	return votes, iterErr
}

// SetInitialTally stores the tally produced by init_vote_tally. It is a
// no-op if the vote already has one.
func (l *Ledger) SetInitialTally(id types.VoteID, tally envelope.Envelope[envelope.Cluster]) error {
	mu := l.voteLock(id)
	mu.Lock()
	defer mu.Unlock()
	vote, err := l.Vote(id)
	if err != nil {
		return err
	}
	if vote.Ready() {
		return nil
	}
	vote.Tally = tally
	return l.writeTx(func(tx db.WriteTx) error {
		return setArtifact(tx, prefixed(votePrefix, id.Bytes()), vote)
	})
}

// CheckCast fails unless a ballot can be cast: the vote is ready, not
// revealed, and its end time has not been reached.
func (l *Ledger) CheckCast(id types.VoteID) (*VoteRecord, error) {
	vote, err := l.Vote(id)
	if err != nil {
		return nil, err
	}
	return vote, l.checkCast(vote)
}

func (l *Ledger) checkCast(vote *VoteRecord) error {
	state := vote.State()
	if state == circuits.TallyClosed {
		return ErrVoteAlreadyRevealed
	}
	if l.now().Unix() >= vote.EndTime {
		return ErrVoteClosed
	}
	if state == circuits.TallyUninitialized {
		return ErrVoteNotReady
	}
	return nil
}

// checkOpen fails unless the tally accepts updates, regardless of time.
func checkOpen(vote *VoteRecord) error {
	switch vote.State() {
	case circuits.TallyClosed:
		return ErrVoteAlreadyRevealed
	case circuits.TallyUninitialized:
		return ErrVoteNotReady
	}
	return nil
}

// UpdateTally replaces the tally of a vote with the result of fn, called
// with the current tally. Concurrent updates of the same vote run one after
// the other, so no ballot is lost.
func (l *Ledger) UpdateTally(id types.VoteID,
	fn func(current envelope.Envelope[envelope.Cluster], options uint8) (envelope.Envelope[envelope.Cluster], error),
) error {
	mu := l.voteLock(id)
	mu.Lock()
	defer mu.Unlock()
	vote, err := l.Vote(id)
	if err != nil {
		return err
	}
	if err := checkOpen(vote); err != nil {
		return err
	}
	updated, err := fn(vote.Tally, vote.Options)
	if err != nil {
		return err
	}
	vote.Tally = updated
	vote.Ballots++
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeTx(func(tx db.WriteTx) error {
		if err := setArtifact(tx, prefixed(votePrefix, id.Bytes()), vote); err != nil {
			return err
		}
		return l.appendEvent(tx, &Event{Type: EventVoteCast, VoteID: &id})
	})
}

// CheckReveal fails unless caller can reveal the vote: it must be the
// authority, the end time must have passed and the vote must not be
// revealed yet.
func (l *Ledger) CheckReveal(caller common.Address, id types.VoteID) (*VoteRecord, error) {
	if err := l.CheckAuthority(caller); err != nil {
		return nil, err
	}
	vote, err := l.Vote(id)
	if err != nil {
		return nil, err
	}
	return vote, l.checkReveal(vote)
}

func (l *Ledger) checkReveal(vote *VoteRecord) error {
	state := vote.State()
	if state == circuits.TallyClosed {
		return ErrVoteAlreadyRevealed
	}
	if l.now().Unix() < vote.EndTime {
		return ErrVoteStillOpen
	}
	if state == circuits.TallyUninitialized {
		return ErrVoteNotReady
	}
	return nil
}

// RecordReveal marks the vote as revealed with its winner.
func (l *Ledger) RecordReveal(id types.VoteID, winner uint8, att *zk.Attestation) error {
	mu := l.voteLock(id)
	mu.Lock()
	defer mu.Unlock()
	vote, err := l.Vote(id)
	if err != nil {
		return err
	}
	if err := checkOpen(vote); err != nil {
		return err
	}
	vote.Revealed = true
	vote.Winner = &winner
	vote.Attestation = att
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writeTx(func(tx db.WriteTx) error {
		if err := setArtifact(tx, prefixed(votePrefix, id.Bytes()), vote); err != nil {
			return err
		}
		return l.appendEvent(tx, &Event{Type: EventVoteRevealed, VoteID: &id, Winner: &winner})
	})
}
