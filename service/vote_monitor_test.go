package service

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/crypto/ethereum"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db/metadb"
)

func TestVoteMonitorRequeuesInit(t *testing.T) {
	c := qt.New(t)
	authority := ethereum.NewSignKeys()
	c.Assert(authority.Generate(), qt.IsNil)
	clock := &testClock{now: time.Unix(1_700_000_000, 0)}
	lg, err := ledger.New(metadb.NewTest(t), authority.Address(), ledger.WithClock(clock.Now))
	c.Assert(err, qt.IsNil)
	stg := storage.New(metadb.NewTest(t))

	voteID := types.NewVoteID(authority.Address(), 7)
	_, err = lg.CreateVote(authority.Address(), voteID, 3, clock.Now().Add(time.Hour))
	c.Assert(err, qt.IsNil)

	vm := NewVoteMonitor(lg, stg, time.Hour)
	c.Assert(vm.check(), qt.IsNil)
	pending, err := stg.PendingForVote(voteID, circuits.ComputationInitVoteTally, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.Equals, 1)

	// an initialization already queued is not duplicated
	c.Assert(vm.check(), qt.IsNil)
	pending, err = stg.PendingForVote(voteID, circuits.ComputationInitVoteTally, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.Equals, 1)

	// once the tally is stored the vote is left alone
	comp, key, err := stg.NextComputation()
	c.Assert(err, qt.IsNil)
	c.Assert(comp.Caller, qt.Equals, authority.Address())
	cl, err := cluster.New(cluster.Config{Nodes: 3, Threshold: 2}, nil)
	c.Assert(err, qt.IsNil)
	tally, err := cl.InitVoteTally(context.Background())
	c.Assert(err, qt.IsNil)
	c.Assert(lg.SetInitialTally(voteID, tally), qt.IsNil)
	c.Assert(stg.MarkComputationDone(key, &storage.Result{ID: comp.ID, Kind: comp.Kind, Status: storage.StatusDone}), qt.IsNil)

	clock.Advance(2 * time.Hour)
	c.Assert(vm.check(), qt.IsNil)
	c.Assert(vm.closed[voteID], qt.IsTrue)
	pending, err = stg.PendingForVote(voteID, circuits.ComputationInitVoteTally, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(pending, qt.Equals, 0)
}

func TestVoteMonitorStartStop(t *testing.T) {
	c := qt.New(t)
	authority := ethereum.NewSignKeys()
	c.Assert(authority.Generate(), qt.IsNil)
	lg, err := ledger.New(metadb.NewTest(t), authority.Address())
	c.Assert(err, qt.IsNil)
	stg := storage.New(metadb.NewTest(t))

	c.Assert(NewVoteMonitor(lg, stg, 0).Start(context.Background()), qt.ErrorMatches, "invalid monitor interval.*")

	vm := NewVoteMonitor(lg, stg, 10*time.Millisecond)
	c.Assert(vm.Start(context.Background()), qt.IsNil)
	c.Assert(vm.Start(context.Background()), qt.ErrorMatches, "service already running")
	vm.Stop()
	c.Assert(vm.Start(context.Background()), qt.IsNil)
	vm.Stop()
}
