package envelope

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/phantomstreams/phantom-sequencer/crypto/ecc"
)

// SealCluster encrypts plaintext to the cluster public key. A fresh
// ephemeral scalar r gives R = r*G, carried in the envelope, and the shared
// point S = r*P from which the AEAD key is derived. Only r*P = x*R, with x
// the distributed secret, can open it.
func SealCluster(pub ecc.Point, plaintext []byte) (Envelope[Cluster], error) {
	r, err := rand.Int(rand.Reader, pub.Order())
	if err != nil {
		return Envelope[Cluster]{}, fmt.Errorf("cannot sample ephemeral scalar: %w", err)
	}
	if r.Sign() == 0 {
		r.SetInt64(1)
	}
	ephemeral := pub.New()
	ephemeral.ScalarBaseMult(r)
	shared := pub.New()
	shared.ScalarMult(pub, r)

	rBytes := ephemeral.Marshal()
	key, err := deriveKey(shared.Marshal(), rBytes, tag[Cluster]())
	if err != nil {
		return Envelope[Cluster]{}, err
	}
	nonce, ct, err := seal(key, concat(tag[Cluster](), rBytes), plaintext)
	if err != nil {
		return Envelope[Cluster]{}, err
	}
	return Envelope[Cluster]{Key: rBytes, Nonce: nonce, Ciphertext: ct}, nil
}

// Ephemeral decodes the ephemeral point R of env on the given curve. Nodes
// compute their partial decryptions on it.
func Ephemeral(env Envelope[Cluster], curve ecc.Point) (ecc.Point, error) {
	p := curve.New()
	if err := p.Unmarshal(env.Key); err != nil {
		return nil, fmt.Errorf("%w: invalid ephemeral point: %v", ErrDecrypt, err)
	}
	if p.IsZero() {
		return nil, fmt.Errorf("%w: ephemeral point is the identity", ErrDecrypt)
	}
	return p, nil
}

// OpenCluster decrypts env given the combined shared point x*R.
func OpenCluster(env Envelope[Cluster], shared ecc.Point) ([]byte, error) {
	key, err := deriveKey(shared.Marshal(), env.Key, tag[Cluster]())
	if err != nil {
		return nil, err
	}
	return open(key, concat(tag[Cluster](), env.Key), env.Nonce, env.Ciphertext)
}

// OpenClusterWithKey decrypts env with the full secret key. It exists for
// tests and single node deployments where the secret is not shared.
func OpenClusterWithKey(env Envelope[Cluster], curve ecc.Point, secret *big.Int) ([]byte, error) {
	r, err := Ephemeral(env, curve)
	if err != nil {
		return nil, err
	}
	shared := curve.New()
	shared.ScalarMult(r, secret)
	return OpenCluster(env, shared)
}
