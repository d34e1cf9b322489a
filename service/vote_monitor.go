package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// VoteMonitor represents a service that watches the votes of the ledger.
// Votes left without a tally, because their initialization failed or was
// lost, get a new initialization queued. Votes that close are logged once.
type VoteMonitor struct {
	ledger   *ledger.Ledger
	storage  *storage.Storage
	interval time.Duration
	mu       sync.Mutex
	cancel   context.CancelFunc
	closed   map[types.VoteID]bool
}

// NewVoteMonitor creates a new VoteMonitor service.
func NewVoteMonitor(lg *ledger.Ledger, stg *storage.Storage, interval time.Duration) *VoteMonitor {
	return &VoteMonitor{
		ledger:   lg,
		storage:  stg,
		interval: interval,
		closed:   make(map[types.VoteID]bool),
	}
}

// Start begins monitoring the votes. It returns an error if the service is
// already running.
func (vm *VoteMonitor) Start(ctx context.Context) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.cancel != nil {
		return fmt.Errorf("service already running")
	}
	if vm.interval <= 0 {
		return fmt.Errorf("invalid monitor interval %s", vm.interval)
	}

	ctx, cancel := context.WithCancel(ctx)
	vm.cancel = cancel
	go vm.monitorVotes(ctx)
	return nil
}

// Stop halts the monitoring service.
func (vm *VoteMonitor) Stop() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if vm.cancel != nil {
		vm.cancel()
		vm.cancel = nil
	}
}

func (vm *VoteMonitor) monitorVotes(ctx context.Context) {
	ticker := time.NewTicker(vm.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := vm.check(); err != nil {
				log.Warnw("vote monitor check failed", "error", err.Error())
			}
		}
	}
}

// check runs a single pass over the votes.
func (vm *VoteMonitor) check() error {
	votes, err := vm.ledger.Votes()
	if err != nil {
		return err
	}
	now := vm.ledger.Now().Unix()
	for _, vote := range votes {
		state := vote.State()
		if state == circuits.TallyClosed {
			continue
		}
		if now >= vote.EndTime && !vm.closed[vote.ID] {
			vm.closed[vote.ID] = true
			log.Infow("vote closed, waiting for reveal", "voteId", vote.ID.String(), "ballots", vote.Ballots)
		}
		if state == circuits.TallyOpen {
			continue
		}
		pending, err := vm.storage.PendingForVote(vote.ID, circuits.ComputationInitVoteTally, nil)
		if err != nil {
			return err
		}
		if pending > 0 {
			continue
		}
		c := &storage.Computation{
			Kind:   circuits.ComputationInitVoteTally,
			VoteID: vote.ID,
			Caller: vote.Authority,
		}
		if err := vm.storage.PushComputation(c); err != nil {
			return err
		}
		log.Warnw("vote without tally, initialization queued", "voteId", vote.ID.String(), "computationId", c.ID.String())
	}
	return nil
}
