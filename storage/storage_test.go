package storage

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db/metadb"
)

func testInput(b byte) envelope.Envelope[envelope.Owner] {
	return envelope.Envelope[envelope.Owner]{
		Key:        make([]byte, 32),
		Nonce:      make([]byte, 24),
		Ciphertext: []byte{b, b, b},
	}
}

func TestComputationQueue(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	_, _, err := stg.NextComputation()
	c.Assert(err, qt.Equals, ErrNoMoreElements)

	first := &Computation{
		Kind:      circuits.ComputationVerifyOwnership,
		Input:     testInput(1),
		Root:      types.Word{7},
		CreatedAt: 100,
	}
	second := &Computation{
		Kind:      circuits.ComputationCastRoyaltyVote,
		Input:     testInput(2),
		VoteID:    types.VoteID{9},
		CreatedAt: 200,
	}
	// pushed out of order, served by creation time
	c.Assert(stg.PushComputation(second), qt.IsNil)
	c.Assert(stg.PushComputation(first), qt.IsNil)
	c.Assert(first.ID, qt.Not(qt.Equals), uuid.Nil)
	c.Assert(stg.CountPendingComputations(), qt.Equals, 2)

	res, err := stg.Result(first.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Status, qt.Equals, StatusQueued)
	c.Assert(res.VoteID, qt.IsNil)

	got, key1, err := stg.NextComputation()
	c.Assert(err, qt.IsNil)
	c.Assert(got.ID, qt.Equals, first.ID)
	c.Assert(got.Root, qt.Equals, first.Root)
	c.Assert(got.Input, qt.DeepEquals, first.Input)

	res, err = stg.Result(first.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Status, qt.Equals, StatusRunning)

	// the first one is reserved
	got2, key2, err := stg.NextComputation()
	c.Assert(err, qt.IsNil)
	c.Assert(got2.ID, qt.Equals, second.ID)
	c.Assert(got2.VoteID, qt.Equals, second.VoteID)

	_, _, err = stg.NextComputation()
	c.Assert(err, qt.Equals, ErrNoMoreElements)

	nullifier := types.Word{1, 2, 3, 4}
	c.Assert(stg.MarkComputationDone(key1, &Result{
		ID:        first.ID,
		Kind:      first.Kind,
		Status:    StatusDone,
		Nullifier: &nullifier,
		CreatedAt: first.CreatedAt,
	}), qt.IsNil)
	c.Assert(stg.CountPendingComputations(), qt.Equals, 1)

	res, err = stg.Result(first.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Finished(), qt.IsTrue)
	c.Assert(*res.Nullifier, qt.Equals, nullifier)

	// released computations are queued and served again
	c.Assert(stg.ReleaseComputation(key2), qt.IsNil)
	res, err = stg.Result(second.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Status, qt.Equals, StatusQueued)
	got2, _, err = stg.NextComputation()
	c.Assert(err, qt.IsNil)
	c.Assert(got2.ID, qt.Equals, second.ID)
}

func TestReleaseReservations(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	for i := range 3 {
		c.Assert(stg.PushComputation(&Computation{
			Kind:  circuits.ComputationVerifyPaymentThreshold,
			Input: testInput(byte(i)),
		}), qt.IsNil)
	}
	for range 3 {
		_, _, err := stg.NextComputation()
		c.Assert(err, qt.IsNil)
	}
	_, _, err := stg.NextComputation()
	c.Assert(err, qt.Equals, ErrNoMoreElements)

	n, err := stg.ReleaseReservations()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 3)
	_, _, err = stg.NextComputation()
	c.Assert(err, qt.IsNil)
}

func TestResults(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))

	_, err := stg.Result(uuid.New())
	c.Assert(err, qt.Equals, ErrNotFound)
	c.Assert(stg.SetResult(&Result{}), qt.IsNotNil)
	c.Assert(stg.PushComputation(&Computation{Kind: 42}), qt.IsNotNil)

	winner := uint8(2)
	voteID := types.VoteID{1}
	res := &Result{
		ID:     uuid.New(),
		Kind:   circuits.ComputationRevealVoteResult,
		Status: StatusFailed,
		VoteID: &voteID,
		Winner: &winner,
		Error:  "vote is still open",
	}
	c.Assert(stg.SetResult(res), qt.IsNil)
	got, err := stg.Result(res.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(*got.Winner, qt.Equals, winner)
	c.Assert(*got.VoteID, qt.Equals, voteID)
	c.Assert(got.Error, qt.Equals, res.Error)
	c.Assert(got.Output, qt.IsNil)
}

func TestPendingForVote(t *testing.T) {
	c := qt.New(t)
	stg := New(metadb.NewTest(t))
	vote := types.VoteID{1}
	other := types.VoteID{2}

	push := func(kind circuits.Computation, id types.VoteID, at int64) *Computation {
		comp := &Computation{Kind: kind, Input: testInput(byte(at)), VoteID: id, CreatedAt: at}
		c.Assert(stg.PushComputation(comp), qt.IsNil)
		return comp
	}
	push(circuits.ComputationCastRoyaltyVote, vote, 1)
	push(circuits.ComputationCastRoyaltyVote, other, 2)
	push(circuits.ComputationCastRoyaltyVote, vote, 3)
	reveal := push(circuits.ComputationRevealVoteResult, vote, 4)
	push(circuits.ComputationCastRoyaltyVote, vote, 5)

	n, err := stg.PendingForVote(vote, circuits.ComputationCastRoyaltyVote, computationKey(reveal))
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 2)
	n, err = stg.PendingForVote(other, circuits.ComputationCastRoyaltyVote, computationKey(reveal))
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 1)

	n, err = stg.PendingForVote(vote, circuits.ComputationCastRoyaltyVote, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 3)
}
