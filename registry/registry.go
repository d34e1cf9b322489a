// Package registry keeps the off-circuit rights registry: a sparse Merkle
// tree of depth circuits.TreeDepth whose leaves are the (wallet, token,
// track) claims of the rights holders. Its root is what ownership proofs
// are verified against, and its proofs build ready to seal ownership
// records.
package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// Capacity is the number of leaves of the tree.
const Capacity = 1 << circuits.TreeDepth

var (
	registryPrefix = []byte("r/")
	nodePrefix     = []byte("n/")
	holderPrefix   = []byte("h/")
	findPrefix     = []byte("f/")
	metaKey        = []byte("meta")

	ErrRegistryFull   = errors.New("registry is full")
	ErrHolderNotFound = errors.New("holder not found")
	ErrHolderExists   = errors.New("holder already registered")
	ErrHasherMismatch = errors.New("registry was built with another hasher")
)

// Holder is a registered (wallet, token, track) claim.
type Holder struct {
	Wallet types.Word `json:"wallet" cbor:"0,keyasint"`
	Token  types.Word `json:"token" cbor:"1,keyasint"`
	Track  types.Word `json:"track" cbor:"2,keyasint"`
}

type meta struct {
	Hasher string `cbor:"0,keyasint"`
	Size   uint32 `cbor:"1,keyasint"`
}

// Registry is a sparse Merkle tree persisted in a key-value database.
// Nodes equal to the empty subtree of their level are not stored.
type Registry struct {
	db     db.Database
	hasher circuits.Hasher
	zeros  [circuits.TreeDepth + 1]types.Word

	mu   sync.RWMutex
	size uint32
}

// New opens the registry stored in database, or creates an empty one.
func New(database db.Database, hasher circuits.Hasher) (*Registry, error) {
	r := &Registry{
		db:     prefixeddb.NewPrefixedDatabase(database, registryPrefix),
		hasher: hasher,
	}
	for i := 1; i <= circuits.TreeDepth; i++ {
		r.zeros[i] = hasher.MixPair(r.zeros[i-1], r.zeros[i-1])
	}
	data, err := r.db.Get(metaKey)
	switch {
	case errors.Is(err, db.ErrKeyNotFound):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("cannot read registry metadata: %w", err)
	}
	var m meta
	if err := cbor.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("cannot decode registry metadata: %w", err)
	}
	if m.Hasher != hasher.Name() {
		return nil, fmt.Errorf("%w: stored %q, configured %q", ErrHasherMismatch, m.Hasher, hasher.Name())
	}
	r.size = m.Size
	log.Debugw("registry loaded", "hasher", m.Hasher, "size", m.Size)
	return r, nil
}

// Hasher returns the hash the tree is built with.
func (r *Registry) Hasher() circuits.Hasher {
	return r.hasher
}

// Size returns the number of registered holders.
func (r *Registry) Size() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Root returns the current root of the tree.
func (r *Registry) Root() (types.Word, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.node(r.db, circuits.TreeDepth, 0)
}

// AddHolder appends the leaf of a claim and returns its index. A (wallet,
// track) pair can only be registered once.
func (r *Registry) AddHolder(wallet, token, track types.Word) (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size >= Capacity {
		return 0, ErrRegistryFull
	}
	fk := findKey(wallet, track)
	if _, err := r.db.Get(fk); err == nil {
		return 0, ErrHolderExists
	} else if !errors.Is(err, db.ErrKeyNotFound) {
		return 0, err
	}

	index := r.size
	wTx := r.db.WriteTx()
	defer wTx.Discard()

	current := circuits.ComputeLeaf(r.hasher, wallet, token, track)
	idx := index
	for level := 0; level < circuits.TreeDepth; level++ {
		if err := wTx.Set(nodeKey(level, idx), current.Bytes()); err != nil {
			return 0, err
		}
		sibling, err := r.node(wTx, level, idx^1)
		if err != nil {
			return 0, err
		}
		if idx&1 == 0 {
			current = r.hasher.MixPair(current, sibling)
		} else {
			current = r.hasher.MixPair(sibling, current)
		}
		idx >>= 1
	}
	if err := wTx.Set(nodeKey(circuits.TreeDepth, 0), current.Bytes()); err != nil {
		return 0, err
	}

	holder, err := encode(&Holder{Wallet: wallet, Token: token, Track: track})
	if err != nil {
		return 0, err
	}
	if err := wTx.Set(holderKey(index), holder); err != nil {
		return 0, err
	}
	if err := wTx.Set(fk, binary.BigEndian.AppendUint32(nil, index)); err != nil {
		return 0, err
	}
	m, err := encode(&meta{Hasher: r.hasher.Name(), Size: index + 1})
	if err != nil {
		return 0, err
	}
	if err := wTx.Set(metaKey, m); err != nil {
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, err
	}
	r.size = index + 1
	log.Debugw("registry holder added", "index", index, "root", current.String())
	return index, nil
}

// Proof returns the authentication path of a leaf and its direction bits,
// 1 meaning the node is the right child at that level.
func (r *Registry) Proof(index uint32) ([]types.Word, []uint8, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index >= r.size {
		return nil, nil, fmt.Errorf("%w: index %d", ErrHolderNotFound, index)
	}
	path := make([]types.Word, circuits.TreeDepth)
	dirs := make([]uint8, circuits.TreeDepth)
	idx := index
	for level := 0; level < circuits.TreeDepth; level++ {
		sibling, err := r.node(r.db, level, idx^1)
		if err != nil {
			return nil, nil, err
		}
		path[level] = sibling
		dirs[level] = uint8(idx & 1)
		idx >>= 1
	}
	return path, dirs, nil
}

// Holder returns the claim registered at index.
func (r *Registry) Holder(index uint32) (*Holder, error) {
	data, err := r.db.Get(holderKey(index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: index %d", ErrHolderNotFound, index)
	}
	if err != nil {
		return nil, err
	}
	h := &Holder{}
	if err := cbor.Unmarshal(data, h); err != nil {
		return nil, fmt.Errorf("cannot decode holder: %w", err)
	}
	return h, nil
}

// Find returns the index of the claim of wallet over track.
func (r *Registry) Find(wallet, track types.Word) (uint32, error) {
	data, err := r.db.Get(findKey(wallet, track))
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, ErrHolderNotFound
	}
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(data), nil
}

// Record builds the ownership record of the holder at index, ready to be
// sealed and verified against Root.
func (r *Registry) Record(index uint32) (*circuits.RightsOwnershipRecord, error) {
	h, err := r.Holder(index)
	if err != nil {
		return nil, err
	}
	path, dirs, err := r.Proof(index)
	if err != nil {
		return nil, err
	}
	return circuits.NewRightsOwnershipRecord(h.Wallet, h.Token, h.Track, path, dirs)
}

// node reads a tree node, falling back to the empty subtree of its level.
func (r *Registry) node(rd db.Reader, level int, index uint32) (types.Word, error) {
	data, err := rd.Get(nodeKey(level, index))
	if errors.Is(err, db.ErrKeyNotFound) {
		return r.zeros[level], nil
	}
	if err != nil {
		return types.Word{}, err
	}
	return types.WordFromBytes(data)
}

func nodeKey(level int, index uint32) []byte {
	key := append([]byte{}, nodePrefix...)
	key = append(key, byte(level))
	return binary.BigEndian.AppendUint32(key, index)
}

func holderKey(index uint32) []byte {
	return binary.BigEndian.AppendUint32(append([]byte{}, holderPrefix...), index)
}

func findKey(wallet, track types.Word) []byte {
	key := append([]byte{}, findPrefix...)
	key = append(key, wallet.Bytes()...)
	return append(key, track.Bytes()...)
}

func encode(v any) ([]byte, error) {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(v)
}
