package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/circuits/zk"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// Status is the processing state of a computation.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Result is what a client can learn about a computation. Output is only
// readable by the owner who submitted the input; Nullifier and Winner are
// public by construction.
type Result struct {
	ID             uuid.UUID                          `json:"id" cbor:"0,keyasint"`
	Kind           circuits.Computation               `json:"kind" cbor:"1,keyasint"`
	Status         Status                             `json:"status" cbor:"2,keyasint"`
	Output         *envelope.Envelope[envelope.Owner] `json:"output,omitempty" cbor:"3,keyasint,omitempty"`
	Nullifier      *types.Word                        `json:"nullifier,omitempty" cbor:"4,keyasint,omitempty"`
	VerificationID uint64                             `json:"verificationId,omitempty" cbor:"5,keyasint,omitempty"`
	VoteID         *types.VoteID                      `json:"voteId,omitempty" cbor:"6,keyasint,omitempty"`
	Winner         *uint8                             `json:"winner,omitempty" cbor:"7,keyasint,omitempty"`
	Attestation    *zk.Attestation                    `json:"attestation,omitempty" cbor:"8,keyasint,omitempty"`
	Error          string                             `json:"error,omitempty" cbor:"9,keyasint,omitempty"`
	CreatedAt      int64                              `json:"createdAt" cbor:"10,keyasint"`
	UpdatedAt      int64                              `json:"updatedAt" cbor:"11,keyasint"`
}

// Finished reports whether the computation reached a final state.
func (r *Result) Finished() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}

// Result loads the result of a computation. Returns ErrNotFound if the id
// was never queued.
func (s *Storage) Result(id uuid.UUID) (*Result, error) {
	res := &Result{}
	if err := s.getArtifact(resultPrefix, id[:], res); err != nil {
		return nil, err
	}
	return res, nil
}

// SetResult stores the result of a computation, replacing any previous one.
func (s *Storage) SetResult(res *Result) error {
	if res == nil || res.ID == uuid.Nil {
		return fmt.Errorf("invalid result")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	res.UpdatedAt = time.Now().UnixNano()
	return s.setArtifact(resultPrefix, res.ID[:], res)
}

// updateStatus must be called with the global lock held.
func (s *Storage) updateStatus(id uuid.UUID, status Status) error {
	res := &Result{}
	if err := s.getArtifact(resultPrefix, id[:], res); err != nil {
		return err
	}
	res.Status = status
	res.UpdatedAt = time.Now().UnixNano()
	return s.setArtifact(resultPrefix, id[:], res)
}
