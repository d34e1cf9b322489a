package service

import (
	"context"
	"time"

	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/sequencer"
	"github.com/phantomstreams/phantom-sequencer/storage"
)

// SequencerService represents a service that runs the queued computations
// in the background.
type SequencerService struct {
	sequencer *sequencer.Sequencer
}

// NewSequencer creates a new sequencer instance. It takes the computations
// queued in stg, runs them on the cluster with the given number of workers
// and applies their results to the ledger. Idle workers poll the queue
// every tick.
func NewSequencer(stg *storage.Storage, cl *cluster.Cluster, lg *ledger.Ledger, workers int, tick time.Duration) *SequencerService {
	s, err := sequencer.New(stg, cl, lg, workers, tick)
	if err != nil {
		log.Fatalf("failed to create sequencer: %v", err)
	}
	return &SequencerService{
		sequencer: s,
	}
}

// Start begins the computation processing service. It returns an error if
// the service is already running.
func (ss *SequencerService) Start(ctx context.Context) error {
	return ss.sequencer.Start(ctx)
}

// Stop halts the computation processing service.
func (ss *SequencerService) Stop() {
	if err := ss.sequencer.Stop(); err != nil {
		log.Warnw("sequencer service stopped", "error", err)
	}
}
