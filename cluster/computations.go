package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/circuits/zk"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// OwnershipOutput is the result of verify_ownership. The verification
// result is only readable by the owner; the nullifier is public.
type OwnershipOutput struct {
	Result    envelope.Envelope[envelope.Owner] `json:"result"`
	Nullifier types.Word                        `json:"nullifier"`
}

// RevealOutput is the declassified result of a vote.
type RevealOutput struct {
	Winner      uint8           `json:"winner"`
	Attestation *zk.Attestation `json:"attestation,omitempty"`
}

// VerifyOwnership checks the sealed ownership record against the registry
// root and returns the sealed result together with the nullifier of the
// (wallet, track) pair.
func (c *Cluster) VerifyOwnership(ctx context.Context, in envelope.Envelope[envelope.Owner], root types.Word) (*OwnershipOutput, error) {
	defer c.trace(circuits.ComputationVerifyOwnership, time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch, err := c.ownerChannel(in)
	if err != nil {
		return nil, err
	}
	data, err := ch.Open(in)
	if err != nil {
		return nil, err
	}
	var record circuits.RightsOwnershipRecord
	if err := record.Unmarshal(data); err != nil {
		return nil, err
	}
	res := circuits.Verify(c.hasher, &record, root)
	out, err := ch.Seal(res.Marshal())
	if err != nil {
		return nil, err
	}
	return &OwnershipOutput{Result: out, Nullifier: res.Nullifier}, nil
}

// InitVoteTally returns a zeroed tally sealed to the cluster.
func (c *Cluster) InitVoteTally(ctx context.Context) (envelope.Envelope[envelope.Cluster], error) {
	defer c.trace(circuits.ComputationInitVoteTally, time.Now())
	if err := ctx.Err(); err != nil {
		return envelope.Envelope[envelope.Cluster]{}, err
	}
	return c.sealCluster(circuits.InitVoteTally().Marshal())
}

// CastRoyaltyVote adds the sealed ballot to the sealed tally. Ballots for
// options outside [0, options) leave the tally unchanged.
func (c *Cluster) CastRoyaltyVote(ctx context.Context, ballot envelope.Envelope[envelope.Owner],
	tally envelope.Envelope[envelope.Cluster], options uint8,
) (envelope.Envelope[envelope.Cluster], error) {
	defer c.trace(circuits.ComputationCastRoyaltyVote, time.Now())
	var empty envelope.Envelope[envelope.Cluster]
	ch, err := c.ownerChannel(ballot)
	if err != nil {
		return empty, err
	}
	data, err := ch.Open(ballot)
	if err != nil {
		return empty, err
	}
	var vote circuits.RoyaltyVote
	if err := vote.Unmarshal(data); err != nil {
		return empty, err
	}
	current, err := c.openTally(ctx, tally)
	if err != nil {
		return empty, err
	}
	return c.sealCluster(circuits.CastVoteBounded(current, vote, options).Marshal())
}

// RevealVoteResult opens the tally and declassifies the winning option.
// It is the only computation that returns plaintext derived from cluster
// envelopes.
func (c *Cluster) RevealVoteResult(ctx context.Context, tally envelope.Envelope[envelope.Cluster]) (*RevealOutput, error) {
	defer c.trace(circuits.ComputationRevealVoteResult, time.Now())
	current, err := c.openTally(ctx, tally)
	if err != nil {
		return nil, err
	}
	out := &RevealOutput{Winner: circuits.RevealWinner(current)}
	if c.attestor != nil {
		if out.Attestation, err = c.attestor.Attest(current, out.Winner); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// VerifyPaymentThreshold checks a sealed payment against a public minimum
// and returns the result sealed to the owner.
func (c *Cluster) VerifyPaymentThreshold(ctx context.Context, payment envelope.Envelope[envelope.Owner],
	minimum uint64,
) (envelope.Envelope[envelope.Owner], error) {
	defer c.trace(circuits.ComputationVerifyPaymentThreshold, time.Now())
	var empty envelope.Envelope[envelope.Owner]
	if err := ctx.Err(); err != nil {
		return empty, err
	}
	ch, err := c.ownerChannel(payment)
	if err != nil {
		return empty, err
	}
	data, err := ch.Open(payment)
	if err != nil {
		return empty, err
	}
	var p circuits.PaymentProof
	if err := p.Unmarshal(data); err != nil {
		return empty, err
	}
	return ch.Seal(circuits.MarshalBool(circuits.MeetsThreshold(p, minimum)))
}

func (c *Cluster) openTally(ctx context.Context, env envelope.Envelope[envelope.Cluster]) (circuits.VoteTally, error) {
	var t circuits.VoteTally
	data, err := c.openCluster(ctx, env)
	if err != nil {
		return t, fmt.Errorf("cannot open tally: %w", err)
	}
	if err := t.Unmarshal(data); err != nil {
		return t, err
	}
	return t, nil
}

func (c *Cluster) trace(comp circuits.Computation, start time.Time) {
	log.Debugw("computation executed", "computation", comp.String(), "took", time.Since(start).String())
}
