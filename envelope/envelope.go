// Package envelope implements the two kinds of confidential containers
// handled by the cluster. Owner envelopes can be opened with the key of
// the data owner, Cluster envelopes only by a threshold of cluster nodes.
// The kind is a type parameter, so an Envelope[Owner] can never be passed
// where an Envelope[Cluster] is expected.
package envelope

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/phantomstreams/phantom-sequencer/types"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	// ErrDecrypt is returned when an envelope cannot be opened with the
	// given key, or when it was tampered with.
	ErrDecrypt = errors.New("envelope: decryption failed")
	// ErrKindMismatch is returned when a serialized envelope is decoded as
	// the wrong kind.
	ErrKindMismatch = errors.New("envelope: kind mismatch")
)

// Owner marks envelopes sealed to the data owner.
type Owner struct{}

// Cluster marks envelopes sealed to the cluster key.
type Cluster struct{}

// Kind is the set of envelope kinds.
type Kind interface {
	Owner | Cluster
}

const (
	KindOwner   = "owner"
	KindCluster = "cluster"
)

// Envelope is an authenticated ciphertext of kind K. Key holds the owner
// X25519 public key for Owner envelopes and the ephemeral curve point for
// Cluster envelopes.
type Envelope[K Kind] struct {
	Key        types.HexBytes
	Nonce      types.HexBytes
	Ciphertext types.HexBytes
}

// KindOf returns the name of the kind of an envelope type.
func KindOf[K Kind]() string {
	var k K
	switch any(k).(type) {
	case Owner:
		return KindOwner
	default:
		return KindCluster
	}
}

// tag is the domain separation label of the kind, used as HKDF info and as
// the prefix of the AEAD associated data.
func tag[K Kind]() []byte {
	return []byte("phantom/envelope/" + KindOf[K]() + "/v1")
}

// Kind returns the name of the envelope kind.
func (e Envelope[K]) Kind() string {
	return KindOf[K]()
}

// IsEmpty reports whether the envelope holds no ciphertext.
func (e Envelope[K]) IsEmpty() bool {
	return len(e.Ciphertext) == 0
}

type wireEnvelope struct {
	Kind       string         `json:"kind" cbor:"1,keyasint"`
	Key        types.HexBytes `json:"key" cbor:"2,keyasint"`
	Nonce      types.HexBytes `json:"nonce" cbor:"3,keyasint"`
	Ciphertext types.HexBytes `json:"ciphertext" cbor:"4,keyasint"`
}

func (e Envelope[K]) wire() wireEnvelope {
	return wireEnvelope{Kind: KindOf[K](), Key: e.Key, Nonce: e.Nonce, Ciphertext: e.Ciphertext}
}

func (e *Envelope[K]) fromWire(w wireEnvelope) error {
	if w.Kind != KindOf[K]() {
		return fmt.Errorf("%w: got %q, expected %q", ErrKindMismatch, w.Kind, KindOf[K]())
	}
	empty := len(w.Key) == 0 && len(w.Nonce) == 0 && len(w.Ciphertext) == 0
	if !empty && len(w.Nonce) != chacha20poly1305.NonceSizeX {
		return fmt.Errorf("invalid envelope nonce length %d", len(w.Nonce))
	}
	e.Key, e.Nonce, e.Ciphertext = w.Key, w.Nonce, w.Ciphertext
	return nil
}

// MarshalJSON encodes the envelope with its kind and hex fields.
func (e Envelope[K]) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.wire())
}

// UnmarshalJSON decodes an envelope, failing with ErrKindMismatch if the
// serialized kind is not K.
func (e *Envelope[K]) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return e.fromWire(w)
}

// MarshalBinary encodes the envelope as CBOR.
func (e Envelope[K]) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(e.wire())
}

// UnmarshalBinary decodes a CBOR envelope, failing with ErrKindMismatch if
// the serialized kind is not K.
func (e *Envelope[K]) UnmarshalBinary(data []byte) error {
	var w wireEnvelope
	if err := cbor.Unmarshal(data, &w); err != nil {
		return err
	}
	return e.fromWire(w)
}

// deriveKey expands the shared secret into an XChaCha20-Poly1305 key.
func deriveKey(secret, salt, info []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), key); err != nil {
		return nil, fmt.Errorf("cannot derive envelope key: %w", err)
	}
	return key, nil
}

func seal(key, ad, plaintext []byte) (nonce, ciphertext []byte, err error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("cannot read nonce: %w", err)
	}
	return nonce, aead.Seal(nil, nonce, plaintext, ad), nil
}

func open(key, ad, nonce, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrDecrypt
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, ad)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
