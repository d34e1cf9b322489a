package storage

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Computation is a request queued for the cluster. Only the fields
// required by its kind are set.
type Computation struct {
	ID        uuid.UUID                         `cbor:"0,keyasint"`
	Kind      circuits.Computation              `cbor:"1,keyasint"`
	Input     envelope.Envelope[envelope.Owner] `cbor:"2,keyasint"`
	VoteID    types.VoteID                      `cbor:"3,keyasint"`
	Root      types.Word                        `cbor:"4,keyasint"`
	Minimum   uint64                            `cbor:"5,keyasint"`
	Caller    common.Address                    `cbor:"6,keyasint"`
	CreatedAt int64                             `cbor:"7,keyasint"`
}

// computationKeyLen is the length of a queue key: creation time and id.
const computationKeyLen = 8 + len(uuid.UUID{})

// computationKey orders the queue by enqueue time, the id breaks ties.
func computationKey(c *Computation) []byte {
	key := binary.BigEndian.AppendUint64(nil, uint64(c.CreatedAt))
	return append(key, c.ID[:]...)
}

// PushComputation stores a new computation into the pending queue and
// creates its result record with status queued. An id and creation time
// are assigned if missing.
func (s *Storage) PushComputation(c *Computation) error {
	if c == nil || !c.Kind.Valid() {
		return fmt.Errorf("invalid computation")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().UnixNano()
	}
	val, err := encodeArtifact(c)
	if err != nil {
		return fmt.Errorf("encode computation: %w", err)
	}
	res, err := encodeArtifact(&Result{
		ID:        c.ID,
		Kind:      c.Kind,
		Status:    StatusQueued,
		VoteID:    voteIDOf(c),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	wTx := s.db.WriteTx()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, computationPrefix).Set(computationKey(c), val); err != nil {
		wTx.Discard()
		return err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wTx, resultPrefix).Set(c.ID[:], res); err != nil {
		wTx.Discard()
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Debugw("computation queued", "id", c.ID.String(), "kind", c.Kind.String())
	return nil
}

// NextComputation returns the oldest non-reserved computation, creates a
// reservation and marks its result as running. It returns the computation,
// the queue key and an error. If no computations are available, returns
// ErrNoMoreElements. The key is used to mark the computation as done.
func (s *Storage) NextComputation() (*Computation, []byte, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	pr := prefixeddb.NewPrefixedReader(s.db, computationPrefix)
	var chosenKey, chosenVal []byte
	if err := pr.Iterate(nil, func(k, v []byte) bool {
		if s.isReserved(computationReservation, k) {
			return true
		}
		// the iterator reuses its buffers
		chosenKey = append([]byte{}, k...)
		chosenVal = append([]byte{}, v...)
		return false
	}); err != nil {
		return nil, nil, fmt.Errorf("iterate computations: %w", err)
	}
	if chosenVal == nil {
		return nil, nil, ErrNoMoreElements
	}

	var c Computation
	if err := decodeArtifact(chosenVal, &c); err != nil {
		return nil, nil, fmt.Errorf("decode computation: %w", err)
	}

	if err := s.setReservation(computationReservation, chosenKey); err != nil {
		return nil, nil, ErrNoMoreElements
	}
	if err := s.updateStatus(c.ID, StatusRunning); err != nil {
		log.Warnw("cannot update computation status", "id", c.ID.String(), "error", err.Error())
	}
	return &c, chosenKey, nil
}

// MarkComputationDone removes the computation from the queue and stores
// its final result.
func (s *Storage) MarkComputationDone(k []byte, res *Result) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	if err := s.deleteArtifact(computationReservation, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if err := s.deleteArtifact(computationPrefix, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete pending computation: %w", err)
	}
	res.UpdatedAt = time.Now().UnixNano()
	return s.setArtifact(resultPrefix, res.ID[:], res)
}

// ReleaseComputation drops the reservation of a computation so another
// worker can pick it up again. Its result goes back to queued.
func (s *Storage) ReleaseComputation(k []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.deleteArtifact(computationReservation, k); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if len(k) != computationKeyLen {
		return nil
	}
	var id uuid.UUID
	copy(id[:], k[8:])
	if err := s.updateStatus(id, StatusQueued); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// ReleaseReservations drops every reservation. Reservations left by a
// previous run belong to workers that no longer exist. It returns the
// number of released reservations.
func (s *Storage) ReleaseReservations() (int, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	var keys [][]byte
	if err := prefixeddb.NewPrefixedReader(s.db, computationReservation).Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, append([]byte{}, k...))
		return true
	}); err != nil {
		return 0, fmt.Errorf("iterate reservations: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), computationReservation)
	for _, k := range keys {
		if err := wTx.Delete(k); err != nil {
			wTx.Discard()
			return 0, err
		}
	}
	return len(keys), wTx.Commit()
}

// CountPendingComputations returns the number of queued computations,
// reserved or not.
func (s *Storage) CountPendingComputations() int {
	count := 0
	if err := prefixeddb.NewPrefixedReader(s.db, computationPrefix).Iterate(nil, func(_, _ []byte) bool {
		count++
		return true
	}); err != nil {
		log.Warnw("cannot count pending computations", "error", err.Error())
	}
	return count
}

func voteIDOf(c *Computation) *types.VoteID {
	switch c.Kind {
	case circuits.ComputationInitVoteTally, circuits.ComputationCastRoyaltyVote, circuits.ComputationRevealVoteResult:
		id := c.VoteID
		return &id
	default:
		return nil
	}
}

// PendingForVote counts the queued computations of the given kind for a
// vote that were enqueued before the computation stored under key. A nil
// key counts all of them.
func (s *Storage) PendingForVote(voteID types.VoteID, kind circuits.Computation, key []byte) (int, error) {
	count := 0
	var iterErr error
	if err := prefixeddb.NewPrefixedReader(s.db, computationPrefix).Iterate(nil, func(k, v []byte) bool {
		if key != nil && bytes.Compare(k, key) >= 0 {
			return false
		}
		var c Computation
		if err := decodeArtifact(v, &c); err != nil {
			iterErr = fmt.Errorf("decode computation: %w", err)
			return false
		}
		if c.Kind == kind && c.VoteID == voteID {
			count++
		}
		return true
	}); err != nil {
		return 0, fmt.Errorf("iterate computations: %w", err)
	}
	return count, iterErr
}
