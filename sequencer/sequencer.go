// Package sequencer dispatches the computations queued in storage to the
// cluster and applies their results to the ledger.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/cluster"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers      = 4
	DefaultTickInterval = time.Second
)

// errDeferred marks a computation that must wait for earlier ones.
var errDeferred = errors.New("computation deferred")

// Sequencer is a pool of workers that take queued computations, run them
// on the cluster and record their effects on the ledger.
type Sequencer struct {
	stg     *storage.Storage
	cluster *cluster.Cluster
	ledger  *ledger.Ledger

	workers int
	tick    time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
}

// New creates a new Sequencer. Non positive workers or tick fall back to
// the defaults.
func New(stg *storage.Storage, cl *cluster.Cluster, lg *ledger.Ledger, workers int, tick time.Duration) (*Sequencer, error) {
	if stg == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if cl == nil {
		return nil, fmt.Errorf("cluster cannot be nil")
	}
	if lg == nil {
		return nil, fmt.Errorf("ledger cannot be nil")
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	log.Debugw("sequencer initialized", "workers", workers, "tick", tick.String())
	return &Sequencer{
		stg:     stg,
		cluster: cl,
		ledger:  lg,
		workers: workers,
		tick:    tick,
	}, nil
}

// Start releases stale reservations and launches the workers. They run
// until Stop is called or ctx is canceled.
func (s *Sequencer) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context cannot be nil")
	}
	if s.cancel != nil {
		return fmt.Errorf("sequencer already started")
	}
	released, err := s.stg.ReleaseReservations()
	if err != nil {
		return fmt.Errorf("failed to release reservations: %w", err)
	}
	if released > 0 {
		log.Infow("released stale reservations", "count", released)
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.group = new(errgroup.Group)
	for i := range s.workers {
		s.group.Go(func() error {
			s.worker(i)
			return nil
		})
	}
	log.Infow("sequencer started successfully", "workers", s.workers)
	return nil
}

// Stop cancels the workers and waits for them to return. It's safe to call
// Stop multiple times.
func (s *Sequencer) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	err := s.group.Wait()
	s.cancel = nil
	log.Infow("sequencer stopped")
	return err
}

func (s *Sequencer) worker(id int) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	log.Debugw("sequencer worker started", "worker", id)

	wait := func() bool {
		select {
		case <-ticker.C:
			return true
		case <-s.ctx.Done():
			return false
		}
	}
	for {
		select {
		case <-s.ctx.Done():
			log.Debugw("sequencer worker stopped", "worker", id)
			return
		default:
		}

		comp, key, err := s.stg.NextComputation()
		if err != nil {
			if !errors.Is(err, storage.ErrNoMoreElements) {
				log.Errorw(err, "failed to get next computation")
			}
			if !wait() {
				return
			}
			continue
		}

		if !s.handle(s.ctx, comp, key) && !wait() {
			return
		}
	}
}

// handle runs a reserved computation and stores its result. Deferred or
// canceled computations are released back to the queue and handle returns
// false.
func (s *Sequencer) handle(ctx context.Context, comp *storage.Computation, key []byte) bool {
	startTime := time.Now()
	res, err := s.process(ctx, comp, key)
	switch {
	case errors.Is(err, errDeferred), errors.Is(err, context.Canceled):
		if err := s.stg.ReleaseComputation(key); err != nil {
			log.Warnw("failed to release computation", "id", comp.ID.String(), "error", err.Error())
		}
		return false
	case err != nil:
		log.Warnw("computation failed",
			"id", comp.ID.String(),
			"kind", comp.Kind.String(),
			"error", err.Error(),
		)
		res.Status = storage.StatusFailed
		res.Error = err.Error()
	default:
		res.Status = storage.StatusDone
	}

	if err := s.stg.MarkComputationDone(key, res); err != nil {
		log.Warnw("failed to mark computation as processed",
			"id", comp.ID.String(),
			"error", err.Error(),
		)
		return true
	}
	log.Debugw("computation processed",
		"id", comp.ID.String(),
		"kind", comp.Kind.String(),
		"status", string(res.Status),
		"duration", time.Since(startTime).String(),
	)
	return true
}

// process runs the computation and its ledger callback. The returned
// result is never nil, on error it holds whatever public output was
// produced before the failure.
func (s *Sequencer) process(ctx context.Context, comp *storage.Computation, key []byte) (*storage.Result, error) {
	res := &storage.Result{
		ID:        comp.ID,
		Kind:      comp.Kind,
		CreatedAt: comp.CreatedAt,
	}
	switch comp.Kind {
	case circuits.ComputationVerifyOwnership:
		return res, s.verifyOwnership(ctx, comp, res)
	case circuits.ComputationInitVoteTally:
		res.VoteID = &comp.VoteID
		return res, s.initVoteTally(ctx, comp)
	case circuits.ComputationCastRoyaltyVote:
		res.VoteID = &comp.VoteID
		return res, s.castRoyaltyVote(ctx, comp)
	case circuits.ComputationRevealVoteResult:
		res.VoteID = &comp.VoteID
		return res, s.revealVoteResult(ctx, comp, key, res)
	case circuits.ComputationVerifyPaymentThreshold:
		out, err := s.cluster.VerifyPaymentThreshold(ctx, comp.Input, comp.Minimum)
		if err != nil {
			return res, err
		}
		res.Output = &out
		return res, nil
	default:
		return res, fmt.Errorf("%w: %d", circuits.ErrUnknownComputation, uint8(comp.Kind))
	}
}

// verifyOwnership records the nullifier of every verification. The owner
// envelope is only released when the ledger accepts the nullifier.
func (s *Sequencer) verifyOwnership(ctx context.Context, comp *storage.Computation, res *storage.Result) error {
	out, err := s.cluster.VerifyOwnership(ctx, comp.Input, comp.Root)
	if err != nil {
		return err
	}
	res.Nullifier = &out.Nullifier
	id, err := s.ledger.RecordVerification(out.Nullifier)
	if err != nil {
		return err
	}
	res.VerificationID = id
	res.Output = &out.Result
	return nil
}

func (s *Sequencer) initVoteTally(ctx context.Context, comp *storage.Computation) error {
	tally, err := s.cluster.InitVoteTally(ctx)
	if err != nil {
		return err
	}
	return s.ledger.SetInitialTally(comp.VoteID, tally)
}

func (s *Sequencer) castRoyaltyVote(ctx context.Context, comp *storage.Computation) error {
	return s.ledger.UpdateTally(comp.VoteID, func(current envelope.Envelope[envelope.Cluster], options uint8) (envelope.Envelope[envelope.Cluster], error) {
		return s.cluster.CastRoyaltyVote(ctx, comp.Input, current, options)
	})
}

// revealVoteResult waits until every ballot queued before the reveal has
// been added to the tally.
func (s *Sequencer) revealVoteResult(ctx context.Context, comp *storage.Computation, key []byte, res *storage.Result) error {
	pending, err := s.stg.PendingForVote(comp.VoteID, circuits.ComputationCastRoyaltyVote, key)
	if err != nil {
		return err
	}
	if pending > 0 {
		log.Debugw("reveal waiting for ballots", "vote", comp.VoteID.String(), "pending", pending)
		return errDeferred
	}
	vote, err := s.ledger.Vote(comp.VoteID)
	if err != nil {
		return err
	}
	out, err := s.cluster.RevealVoteResult(ctx, vote.Tally)
	if err != nil {
		return err
	}
	if err := s.ledger.RecordReveal(comp.VoteID, out.Winner, out.Attestation); err != nil {
		return err
	}
	res.Winner = &out.Winner
	res.Attestation = out.Attestation
	return nil
}
