package ledger

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/phantomstreams/phantom-sequencer/types"
	"github.com/vocdoni/arbo"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

// NullifierRecord tracks a spent nullifier.
type NullifierRecord struct {
	Nullifier types.Word `json:"nullifier" cbor:"0,keyasint"`
	Used      bool       `json:"used" cbor:"1,keyasint"`
	UsedAt    int64      `json:"usedAt,omitempty" cbor:"2,keyasint,omitempty"`
}

// NullifierProof is an inclusion proof of a nullifier in the nullifier
// tree. The tree key and value of a nullifier are both its 32 bytes.
type NullifierProof struct {
	Root     types.HexBytes `json:"root"`
	Key      types.HexBytes `json:"key"`
	Value    types.HexBytes `json:"value"`
	Siblings types.HexBytes `json:"siblings"`
	Exists   bool           `json:"exists"`
}

// RecordVerification spends a nullifier and increments the verification
// count, saturating at the maximum. It returns the verification id. The
// nullifier record, the state and the nullifier tree are committed together.
func (l *Ledger) RecordVerification(nullifier types.Word) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, err := l.Nullifier(nullifier)
	if err != nil {
		return 0, err
	}
	if rec.Used {
		return 0, ErrNullifierAlreadyUsed
	}
	st, err := l.State()
	if err != nil {
		return 0, err
	}
	if st.VerificationCount < ^uint64(0) {
		st.VerificationCount++
	}
	rec = &NullifierRecord{Nullifier: nullifier, Used: true, UsedAt: l.now().Unix()}

	wTx := l.base.WriteTx()
	defer wTx.Discard()
	if err := l.addNullifierLeaf(prefixeddb.NewPrefixedWriteTx(wTx, nullifierTreePrefix), nullifier); err != nil {
		return 0, err
	}
	tx := prefixeddb.NewPrefixedWriteTx(wTx, ledgerPrefix)
	if err := setArtifact(tx, prefixed(nullifierPrefix, nullifier.Bytes()), rec); err != nil {
		return 0, err
	}
	if err := setArtifact(tx, stateKey, st); err != nil {
		return 0, err
	}
	if err := l.appendEvent(tx, &Event{
		Type:           EventOwnershipVerified,
		Nullifier:      &nullifier,
		VerificationID: st.VerificationCount,
	}); err != nil {
		return 0, err
	}
	if err := wTx.Commit(); err != nil {
		return 0, err
	}
	return st.VerificationCount, nil
}

// addNullifierLeaf adds the nullifier to the tree within tx. A leaf already
// holding the same nullifier is accepted, any other value is an error.
func (l *Ledger) addNullifierLeaf(tx db.WriteTx, nullifier types.Word) error {
	key := nullifier.Bytes()
	err := l.nullifiers.AddWithTx(tx, key, key)
	if !errors.Is(err, arbo.ErrKeyAlreadyExists) {
		if err != nil {
			return fmt.Errorf("cannot add nullifier to tree: %w", err)
		}
		return nil
	}
	_, value, err := l.nullifiers.GetWithTx(tx, key)
	if err != nil {
		return fmt.Errorf("cannot read nullifier leaf: %w", err)
	}
	if !bytes.Equal(value, key) {
		return fmt.Errorf("nullifier leaf %s holds a different value", nullifier)
	}
	return nil
}

// Nullifier returns the record of a nullifier. Unknown nullifiers are
// returned as unused.
func (l *Ledger) Nullifier(nullifier types.Word) (*NullifierRecord, error) {
	rec := &NullifierRecord{}
	err := getArtifact(l.db, prefixed(nullifierPrefix, nullifier.Bytes()), rec)
	if errors.Is(err, db.ErrKeyNotFound) {
		return &NullifierRecord{Nullifier: nullifier}, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// NullifierRoot returns the root of the nullifier tree.
func (l *Ledger) NullifierRoot() (types.HexBytes, error) {
	return l.nullifiers.Root()
}

// NullifierProof returns the inclusion (or exclusion) proof of a nullifier
// against the current tree root.
func (l *Ledger) NullifierProof(nullifier types.Word) (*NullifierProof, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	root, err := l.nullifiers.Root()
	if err != nil {
		return nil, err
	}
	key, value, siblings, exists, err := l.nullifiers.GenProof(nullifier.Bytes())
	if err != nil {
		return nil, err
	}
	return &NullifierProof{
		Root:     root,
		Key:      key,
		Value:    value,
		Siblings: siblings,
		Exists:   exists,
	}, nil
}

// VerifyNullifierProof checks an inclusion proof of nullifier.
func VerifyNullifierProof(nullifier types.Word, proof *NullifierProof) bool {
	if !proof.Exists {
		return false
	}
	ok, err := arbo.CheckProof(arbo.HashFunctionSha256, nullifier.Bytes(), nullifier.Bytes(), proof.Root, proof.Siblings)
	return err == nil && ok
}
