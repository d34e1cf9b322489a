package ledger

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

var (
	authority = common.HexToAddress("0x1000000000000000000000000000000000000001")
	stranger  = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (tc *testClock) Now() time.Time {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.now
}

func (tc *testClock) Advance(d time.Duration) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.now = tc.now.Add(d)
}

func newTestLedger(t *testing.T) (*Ledger, *testClock) {
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	l, err := New(metadb.NewTest(t), authority, WithClock(clock.Now))
	qt.Assert(t, err, qt.IsNil)
	return l, clock
}

func fakeTally(b byte) envelope.Envelope[envelope.Cluster] {
	return envelope.Envelope[envelope.Cluster]{
		Key:        []byte{b},
		Nonce:      make([]byte, 24),
		Ciphertext: []byte{b, b},
	}
}

func TestRegistryRoot(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)

	err := l.UpdateRegistryRoot(stranger, types.Word{1})
	c.Assert(errors.Is(err, ErrUnauthorized), qt.IsTrue)

	c.Assert(l.UpdateRegistryRoot(authority, types.Word{1, 2}), qt.IsNil)
	st, err := l.State()
	c.Assert(err, qt.IsNil)
	c.Assert(st.RegistryRoot, qt.Equals, types.Word{1, 2})
	c.Assert(st.Authority, qt.Equals, authority)

	events, err := l.Events(0, 0)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 1)
	c.Assert(events[0].Type, qt.Equals, EventRootUpdated)
	c.Assert(*events[0].NewRoot, qt.Equals, types.Word{1, 2})
	c.Assert(*events[0].OldRoot, qt.Equals, types.Word{})
}

func TestAuthorityMismatch(t *testing.T) {
	c := qt.New(t)
	database := metadb.NewTest(t)
	_, err := New(database, authority)
	c.Assert(err, qt.IsNil)
	_, err = New(database, authority)
	c.Assert(err, qt.IsNil)
	_, err = New(database, stranger)
	c.Assert(errors.Is(err, ErrAuthorityMismatch), qt.IsTrue)
}

func TestNullifiers(t *testing.T) {
	c := qt.New(t)
	l, clock := newTestLedger(t)
	n := types.Word{0xaa, 0xbb, 0xcc, 0xdd}

	rec, err := l.Nullifier(n)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Used, qt.IsFalse)

	id, err := l.RecordVerification(n)
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(1))

	_, err = l.RecordVerification(n)
	c.Assert(errors.Is(err, ErrNullifierAlreadyUsed), qt.IsTrue)

	rec, err = l.Nullifier(n)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Used, qt.IsTrue)
	c.Assert(rec.UsedAt, qt.Equals, clock.Now().Unix())

	id, err = l.RecordVerification(types.Word{1})
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, uint64(2))
	st, err := l.State()
	c.Assert(err, qt.IsNil)
	c.Assert(st.VerificationCount, qt.Equals, uint64(2))

	proof, err := l.NullifierProof(n)
	c.Assert(err, qt.IsNil)
	c.Assert(proof.Exists, qt.IsTrue)
	c.Assert(VerifyNullifierProof(n, proof), qt.IsTrue)
	c.Assert(VerifyNullifierProof(types.Word{0xaa, 0xbb, 0xcc, 0xde}, proof), qt.IsFalse)

	unknown, err := l.NullifierProof(types.Word{5})
	c.Assert(err, qt.IsNil)
	c.Assert(unknown.Exists, qt.IsFalse)
	c.Assert(VerifyNullifierProof(types.Word{5}, unknown), qt.IsFalse)
}

func TestNullifiersSharingPrefix(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)
	track := types.Word{7, 7, 7, 7}
	n1 := circuits.DeriveNullifier(circuits.MixHasher{}, types.Word{1, 2, 3, 4}, track)
	n2 := circuits.DeriveNullifier(circuits.MixHasher{}, types.Word{1, 2, 3, 5}, track)
	c.Assert(n1, qt.Not(qt.Equals), n2)
	c.Assert(n1.Bytes()[:24], qt.DeepEquals, n2.Bytes()[:24])

	_, err := l.RecordVerification(n1)
	c.Assert(err, qt.IsNil)
	_, err = l.RecordVerification(n2)
	c.Assert(err, qt.IsNil)

	for _, n := range []types.Word{n1, n2} {
		proof, err := l.NullifierProof(n)
		c.Assert(err, qt.IsNil)
		c.Assert(proof.Exists, qt.IsTrue)
		c.Assert(proof.Value, qt.DeepEquals, types.HexBytes(n.Bytes()))
		c.Assert(VerifyNullifierProof(n, proof), qt.IsTrue)
	}
}

func TestNullifierTreeMismatchAborts(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)
	n := types.Word{9, 9, 9, 9}
	c.Assert(l.nullifiers.Add(n.Bytes(), types.Word{1}.Bytes()), qt.IsNil)

	_, err := l.RecordVerification(n)
	c.Assert(err, qt.ErrorMatches, ".*holds a different value")

	rec, err := l.Nullifier(n)
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Used, qt.IsFalse)
	st, err := l.State()
	c.Assert(err, qt.IsNil)
	c.Assert(st.VerificationCount, qt.Equals, uint64(0))
	events, err := l.Events(0, 10)
	c.Assert(err, qt.IsNil)
	for _, ev := range events {
		c.Assert(ev.Type, qt.Not(qt.Equals), EventOwnershipVerified)
	}
}

func TestVerificationCountSaturates(t *testing.T) {
	c := qt.New(t)
	l, _ := newTestLedger(t)
	st, err := l.State()
	c.Assert(err, qt.IsNil)
	st.VerificationCount = ^uint64(0)
	c.Assert(l.writeTx(func(tx db.WriteTx) error { return setArtifact(tx, stateKey, st) }), qt.IsNil)

	id, err := l.RecordVerification(types.Word{9})
	c.Assert(err, qt.IsNil)
	c.Assert(id, qt.Equals, ^uint64(0))
}

func TestVoteLifecycle(t *testing.T) {
	c := qt.New(t)
	l, clock := newTestLedger(t)
	id := types.NewVoteID(authority, 1)
	end := clock.Now().Add(time.Hour)

	_, err := l.CreateVote(stranger, id, 3, end)
	c.Assert(errors.Is(err, ErrUnauthorized), qt.IsTrue)
	_, err = l.CreateVote(authority, id, 0, end)
	c.Assert(errors.Is(err, ErrInvalidOptions), qt.IsTrue)
	_, err = l.CreateVote(authority, id, 9, end)
	c.Assert(errors.Is(err, ErrInvalidOptions), qt.IsTrue)

	vote, err := l.CreateVote(authority, id, 3, end)
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Ready(), qt.IsFalse)
	c.Assert(vote.State(), qt.Equals, circuits.TallyUninitialized)
	c.Assert(errors.Is(l.RecordReveal(id, 0, nil), ErrVoteNotReady), qt.IsTrue)
	_, err = l.CreateVote(authority, id, 3, end)
	c.Assert(errors.Is(err, ErrVoteExists), qt.IsTrue)

	_, err = l.CheckCast(id)
	c.Assert(errors.Is(err, ErrVoteNotReady), qt.IsTrue)
	c.Assert(l.SetInitialTally(id, fakeTally(1)), qt.IsNil)
	c.Assert(l.SetInitialTally(id, fakeTally(2)), qt.IsNil)
	vote, err = l.Vote(id)
	c.Assert(err, qt.IsNil)
	c.Assert([]byte(vote.Tally.Key), qt.DeepEquals, []byte{1})
	c.Assert(vote.State(), qt.Equals, circuits.TallyOpen)

	_, err = l.CheckCast(id)
	c.Assert(err, qt.IsNil)
	_, err = l.CheckReveal(authority, id)
	c.Assert(errors.Is(err, ErrVoteStillOpen), qt.IsTrue)

	err = l.UpdateTally(id, func(current envelope.Envelope[envelope.Cluster], options uint8) (envelope.Envelope[envelope.Cluster], error) {
		c.Assert(options, qt.Equals, uint8(3))
		return fakeTally(current.Key[0] + 1), nil
	})
	c.Assert(err, qt.IsNil)

	clock.Advance(time.Hour)
	_, err = l.CheckCast(id)
	c.Assert(errors.Is(err, ErrVoteClosed), qt.IsTrue)
	_, err = l.CheckReveal(stranger, id)
	c.Assert(errors.Is(err, ErrUnauthorized), qt.IsTrue)
	_, err = l.CheckReveal(authority, id)
	c.Assert(err, qt.IsNil)

	c.Assert(l.RecordReveal(id, 2, nil), qt.IsNil)
	c.Assert(errors.Is(l.RecordReveal(id, 1, nil), ErrVoteAlreadyRevealed), qt.IsTrue)
	_, err = l.CheckReveal(authority, id)
	c.Assert(errors.Is(err, ErrVoteAlreadyRevealed), qt.IsTrue)
	_, err = l.CheckCast(id)
	c.Assert(errors.Is(err, ErrVoteAlreadyRevealed), qt.IsTrue)

	vote, err = l.Vote(id)
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Revealed, qt.IsTrue)
	c.Assert(vote.State(), qt.Equals, circuits.TallyClosed)
	c.Assert(*vote.Winner, qt.Equals, uint8(2))
	c.Assert(vote.Ballots, qt.Equals, uint64(1))

	events, err := l.Events(0, 0)
	c.Assert(err, qt.IsNil)
	kinds := []EventType{}
	for _, ev := range events {
		kinds = append(kinds, ev.Type)
	}
	c.Assert(kinds, qt.DeepEquals, []EventType{EventVoteCreated, EventVoteCast, EventVoteRevealed})
	tail, err := l.Events(1, 1)
	c.Assert(err, qt.IsNil)
	c.Assert(tail, qt.HasLen, 1)
	c.Assert(tail[0].Type, qt.Equals, EventVoteCast)

	_, err = l.Vote(types.NewVoteID(authority, 2))
	c.Assert(errors.Is(err, ErrVoteNotFound), qt.IsTrue)
	votes, err := l.Votes()
	c.Assert(err, qt.IsNil)
	c.Assert(votes, qt.HasLen, 1)
}

func TestConcurrentTallyUpdates(t *testing.T) {
	c := qt.New(t)
	l, clock := newTestLedger(t)
	id := types.NewVoteID(authority, 7)
	_, err := l.CreateVote(authority, id, 2, clock.Now().Add(time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(l.SetInitialTally(id, fakeTally(0)), qt.IsNil)

	const casts = 50
	var wg sync.WaitGroup
	for i := 0; i < casts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.UpdateTally(id, func(current envelope.Envelope[envelope.Cluster], _ uint8) (envelope.Envelope[envelope.Cluster], error) {
				return fakeTally(current.Key[0] + 1), nil
			})
			qt.Check(t, err, qt.IsNil)
		}()
	}
	wg.Wait()
	vote, err := l.Vote(id)
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Ballots, qt.Equals, uint64(casts))
	c.Assert(vote.Tally.Key[0], qt.Equals, byte(casts))
}
