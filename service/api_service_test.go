package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/api"
	"github.com/phantomstreams/phantom-sequencer/api/client"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/crypto/ethereum"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/registry"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db/metadb"
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

type testNode struct {
	authority *ethereum.SignKeys
	clock     *testClock
	ledger    *ledger.Ledger
	storage   *storage.Storage
	cluster   *cluster.Cluster
	api       *APIService
	client    *client.HTTPclient
}

func newTestNode(t *testing.T) *testNode {
	c := qt.New(t)
	authority := ethereum.NewSignKeys()
	c.Assert(authority.Generate(), qt.IsNil)
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}

	lg, err := ledger.New(metadb.NewTest(t), authority.Address(), ledger.WithClock(clock.Now))
	c.Assert(err, qt.IsNil)
	cl, err := cluster.New(cluster.Config{Nodes: 4, Threshold: 3}, nil)
	c.Assert(err, qt.IsNil)
	stg := storage.New(metadb.NewTest(t))

	seq := NewSequencer(stg, cl, lg, 2, 10*time.Millisecond)
	c.Assert(seq.Start(context.Background()), qt.IsNil)
	t.Cleanup(seq.Stop)

	apiService := NewAPI(stg, lg, cl, "127.0.0.1", 0)
	c.Assert(apiService.Start(context.Background()), qt.IsNil)
	t.Cleanup(apiService.Stop)
	host, port := apiService.HostPort()
	cli, err := client.New(fmt.Sprintf("http://%s:%d", host, port))
	c.Assert(err, qt.IsNil)

	return &testNode{
		authority: authority,
		clock:     clock,
		ledger:    lg,
		storage:   stg,
		cluster:   cl,
		api:       apiService,
		client:    cli,
	}
}

func (n *testNode) wait(c *qt.C, id uuid.UUID) *storage.Result {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	res, err := n.client.WaitComputation(ctx, id, 10*time.Millisecond)
	c.Assert(err, qt.IsNil)
	return res
}

func apiErrorCode(c *qt.C, err error) int {
	var apiErr *client.Error
	c.Assert(errors.As(err, &apiErr), qt.IsTrue, qt.Commentf("%v", err))
	return apiErr.Code
}

func TestAPIService(t *testing.T) {
	c := qt.New(t)
	n := newTestNode(t)

	// Test stopping and restarting
	n.api.Stop()
	c.Assert(n.api.Start(context.Background()), qt.IsNil)
	host, port := n.api.HostPort()
	cli, err := client.New(fmt.Sprintf("http://%s:%d", host, port))
	c.Assert(err, qt.IsNil)

	// Test starting an already running service
	err = n.api.Start(context.Background())
	c.Assert(err, qt.ErrorMatches, "service already running")

	info, err := cli.Info()
	c.Assert(err, qt.IsNil)
	c.Assert(info.Authority, qt.Equals, n.authority.Address())
	c.Assert(info.Nodes, qt.Equals, 4)
	c.Assert(info.Threshold, qt.Equals, 3)
	c.Assert(info.TreeDepth, qt.Equals, circuits.TreeDepth)
	c.Assert(info.Computations, qt.HasLen, len(circuits.Computations()))
	c.Assert([]byte(info.ChannelKey), qt.DeepEquals, []byte(n.cluster.ChannelKey()))
}

func TestOwnershipEndToEnd(t *testing.T) {
	c := qt.New(t)
	n := newTestNode(t)

	reg, err := registry.New(metadb.NewTest(t), n.cluster.Hasher())
	c.Assert(err, qt.IsNil)
	wallet, token, track := types.Word{0x1234}, types.Word{3}, types.Word{0x5678}
	index, err := reg.AddHolder(wallet, token, track)
	c.Assert(err, qt.IsNil)
	_, err = reg.AddHolder(types.Word{1}, types.Word{1}, types.Word{1})
	c.Assert(err, qt.IsNil)
	root, err := reg.Root()
	c.Assert(err, qt.IsNil)

	// only the authority publishes roots
	stranger := ethereum.NewSignKeys()
	c.Assert(stranger.Generate(), qt.IsNil)
	err = n.client.UpdateRegistryRoot(stranger, root)
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrUnauthorized.Code)

	c.Assert(n.client.UpdateRegistryRoot(n.authority, root), qt.IsNil)
	published, err := n.client.RegistryRoot()
	c.Assert(err, qt.IsNil)
	c.Assert(published.Root, qt.Equals, root)

	keys, err := envelope.GenerateKeypair()
	c.Assert(err, qt.IsNil)
	ch, err := n.client.OwnerChannel(keys)
	c.Assert(err, qt.IsNil)
	record, err := reg.Record(index)
	c.Assert(err, qt.IsNil)
	sealed, err := ch.Seal(record.Marshal())
	c.Assert(err, qt.IsNil)

	id, err := n.client.VerifyOwnership(sealed)
	c.Assert(err, qt.IsNil)
	res := n.wait(c, id)
	c.Assert(res.Status, qt.Equals, storage.StatusDone, qt.Commentf("%s", res.Error))
	data, err := ch.Open(*res.Output)
	c.Assert(err, qt.IsNil)
	var vr circuits.VerificationResult
	c.Assert(vr.Unmarshal(data), qt.IsNil)
	c.Assert(vr.IsValid, qt.IsTrue)

	nullifier, err := n.client.Nullifier(*res.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(nullifier.Record.Used, qt.IsTrue)
	c.Assert(ledger.VerifyNullifierProof(*res.Nullifier, nullifier.Proof), qt.IsTrue)

	unknown, err := n.client.Nullifier(types.Word{9, 9, 9})
	c.Assert(err, qt.IsNil)
	c.Assert(unknown.Record.Used, qt.IsFalse)
	c.Assert(unknown.Proof.Exists, qt.IsFalse)

	// a second verification of the same pair is rejected
	id, err = n.client.VerifyOwnership(sealed)
	c.Assert(err, qt.IsNil)
	res = n.wait(c, id)
	c.Assert(res.Status, qt.Equals, storage.StatusFailed)
	c.Assert(res.Output, qt.IsNil)

	events, err := n.client.Events(0, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(events, qt.HasLen, 2)
	c.Assert(events[0].Type, qt.Equals, ledger.EventRootUpdated)
	c.Assert(events[1].Type, qt.Equals, ledger.EventOwnershipVerified)
}

func TestRoyaltyVoteEndToEnd(t *testing.T) {
	c := qt.New(t)
	n := newTestNode(t)

	keys, err := envelope.GenerateKeypair()
	c.Assert(err, qt.IsNil)
	ch, err := n.client.OwnerChannel(keys)
	c.Assert(err, qt.IsNil)
	ballot := func(choice uint8, weight uint64) envelope.Envelope[envelope.Owner] {
		env, err := ch.Seal(circuits.RoyaltyVote{Choice: choice, Weight: weight}.Marshal())
		c.Assert(err, qt.IsNil)
		return env
	}

	_, err = n.client.NewVote(n.authority, 1, 9, n.clock.Now().Add(time.Hour))
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrInvalidOptions.Code)

	created, err := n.client.NewVote(n.authority, 1, 4, n.clock.Now().Add(time.Hour))
	c.Assert(err, qt.IsNil)
	c.Assert(created.VoteID, qt.Equals, types.NewVoteID(n.authority.Address(), 1))
	_, err = n.client.NewVote(n.authority, 1, 4, n.clock.Now().Add(time.Hour))
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrVoteExists.Code)

	res := n.wait(c, created.ComputationID)
	c.Assert(res.Status, qt.Equals, storage.StatusDone, qt.Commentf("%s", res.Error))

	var ids []uuid.UUID
	for _, b := range []struct {
		choice uint8
		weight uint64
	}{{3, 50}, {0, 20}, {3, 1}, {0, 30}} {
		id, err := n.client.CastBallot(created.VoteID, ballot(b.choice, b.weight))
		c.Assert(err, qt.IsNil)
		ids = append(ids, id)
	}
	for _, id := range ids {
		res := n.wait(c, id)
		c.Assert(res.Status, qt.Equals, storage.StatusDone, qt.Commentf("%s", res.Error))
	}

	_, err = n.client.RevealVote(n.authority, created.VoteID)
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrVoteStillOpen.Code)

	n.clock.Advance(2 * time.Hour)
	_, err = n.client.CastBallot(created.VoteID, ballot(1, 1))
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrVoteClosed.Code)

	stranger := ethereum.NewSignKeys()
	c.Assert(stranger.Generate(), qt.IsNil)
	_, err = n.client.RevealVote(stranger, created.VoteID)
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrUnauthorized.Code)

	id, err := n.client.RevealVote(n.authority, created.VoteID)
	c.Assert(err, qt.IsNil)
	res = n.wait(c, id)
	c.Assert(res.Status, qt.Equals, storage.StatusDone, qt.Commentf("%s", res.Error))
	c.Assert(*res.Winner, qt.Equals, uint8(3))

	vote, err := n.client.Vote(created.VoteID)
	c.Assert(err, qt.IsNil)
	c.Assert(vote.Revealed, qt.IsTrue)
	c.Assert(*vote.Winner, qt.Equals, uint8(3))
	c.Assert(vote.Ballots, qt.Equals, uint64(4))

	_, err = n.client.RevealVote(n.authority, created.VoteID)
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrVoteAlreadyRevealed.Code)

	_, err = n.client.Vote(types.VoteID{0xff})
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrVoteNotFound.Code)
}

func TestPaymentEndToEnd(t *testing.T) {
	c := qt.New(t)
	n := newTestNode(t)

	keys, err := envelope.GenerateKeypair()
	c.Assert(err, qt.IsNil)
	ch, err := n.client.OwnerChannel(keys)
	c.Assert(err, qt.IsNil)
	payment := circuits.PaymentProof{Payer: types.Word{1}, Track: types.Word{2}, Amount: 1000, Timestamp: 10}
	sealed, err := ch.Seal(payment.Marshal())
	c.Assert(err, qt.IsNil)

	id, err := n.client.VerifyPayment(sealed, 999)
	c.Assert(err, qt.IsNil)
	res := n.wait(c, id)
	c.Assert(res.Status, qt.Equals, storage.StatusDone, qt.Commentf("%s", res.Error))
	data, err := ch.Open(*res.Output)
	c.Assert(err, qt.IsNil)
	meets, err := circuits.UnmarshalBool(data)
	c.Assert(err, qt.IsNil)
	c.Assert(meets, qt.IsTrue)

	_, err = n.client.Computation(uuid.New())
	c.Assert(apiErrorCode(c, err), qt.Equals, api.ErrComputationNotFound.Code)
}
