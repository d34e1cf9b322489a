// Package ledger is the public record of the protocol: the registry root
// owned by the authority, the spent nullifiers and the royalty votes with
// their sealed tallies. It enforces the authorization and timing rules of
// every operation and keeps an append-only event log.
package ledger

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/types"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// nullifierTreeLevels covers the full 256-bit nullifier as the tree key.
const nullifierTreeLevels = 256

var (
	ledgerPrefix        = []byte("l/")
	nullifierTreePrefix = []byte("lt/")

	stateKey        = []byte("s")
	nullifierPrefix = []byte("n/")
	votePrefix      = []byte("v/")
	eventPrefix     = []byte("e/")
	eventSeqKey     = []byte("es")
)

// State is the protocol state.
type State struct {
	Authority         common.Address `json:"authority" cbor:"0,keyasint"`
	RegistryRoot      types.Word     `json:"registryRoot" cbor:"1,keyasint"`
	VerificationCount uint64         `json:"verificationCount" cbor:"2,keyasint"`
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces the wall clock used for timestamps and vote deadlines.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger persists the protocol state in a key-value database.
type Ledger struct {
	base       db.Database
	db         db.Database
	nullifiers *arbo.Tree
	now        func() time.Time

	// mu serializes state, nullifier and event writes.
	mu sync.Mutex

	votesMu   sync.Mutex
	voteLocks map[types.VoteID]*sync.Mutex
}

// New opens the ledger stored in database. On first use the protocol state
// is created with the given authority.
func New(database db.Database, authority common.Address, opts ...Option) (*Ledger, error) {
	tree, err := arbo.NewTree(arbo.Config{
		Database:     prefixeddb.NewPrefixedDatabase(database, nullifierTreePrefix),
		MaxLevels:    nullifierTreeLevels,
		HashFunction: arbo.HashFunctionSha256,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open nullifier tree: %w", err)
	}
	l := &Ledger{
		base:       database,
		db:         prefixeddb.NewPrefixedDatabase(database, ledgerPrefix),
		nullifiers: tree,
		now:        time.Now,
		voteLocks:  make(map[types.VoteID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}

	st, err := l.State()
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		st = &State{Authority: authority}
		if err := l.writeTx(func(tx db.WriteTx) error { return setArtifact(tx, stateKey, st) }); err != nil {
			return nil, fmt.Errorf("cannot initialize state: %w", err)
		}
		log.Infow("ledger initialized", "authority", authority.Hex())
	case err != nil:
		return nil, err
	case st.Authority != authority:
		return nil, fmt.Errorf("%w: stored %s, configured %s", ErrAuthorityMismatch, st.Authority.Hex(), authority.Hex())
	}
	return l, nil
}

// Now returns the current ledger time.
func (l *Ledger) Now() time.Time {
	return l.now()
}

// State returns the protocol state.
func (l *Ledger) State() (*State, error) {
	st := &State{}
	if err := getArtifact(l.db, stateKey, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Authority returns the address allowed to update the root and to manage
// votes.
func (l *Ledger) Authority() (common.Address, error) {
	st, err := l.State()
	if err != nil {
		return common.Address{}, err
	}
	return st.Authority, nil
}

// CheckAuthority fails with ErrUnauthorized unless caller is the authority.
func (l *Ledger) CheckAuthority(caller common.Address) error {
	authority, err := l.Authority()
	if err != nil {
		return err
	}
	if caller != authority {
		return fmt.Errorf("%w: caller %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// UpdateRegistryRoot replaces the registry root. Only the authority can
// call it.
func (l *Ledger) UpdateRegistryRoot(caller common.Address, root types.Word) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	st, err := l.State()
	if err != nil {
		return err
	}
	if caller != st.Authority {
		return fmt.Errorf("%w: caller %s", ErrUnauthorized, caller.Hex())
	}
	oldRoot := st.RegistryRoot
	st.RegistryRoot = root
	return l.writeTx(func(tx db.WriteTx) error {
		if err := setArtifact(tx, stateKey, st); err != nil {
			return err
		}
		return l.appendEvent(tx, &Event{Type: EventRootUpdated, OldRoot: &oldRoot, NewRoot: &root})
	})
}

func (l *Ledger) writeTx(fn func(tx db.WriteTx) error) error {
	wTx := l.db.WriteTx()
	if err := fn(wTx); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}

func encodeArtifact(a any) ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

func setArtifact(tx db.WriteTx, key []byte, a any) error {
	data, err := encodeArtifact(a)
	if err != nil {
		return err
	}
	return tx.Set(key, data)
}

func getArtifact(rd db.Reader, key []byte, out any) error {
	data, err := rd.Get(key)
	if err != nil {
		return err
	}
	return cbor.Unmarshal(data, out)
}

func prefixed(prefix, key []byte) []byte {
	return append(append([]byte{}, prefix...), key...)
}

func uint64Key(prefix []byte, n uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, prefix...), n)
}
