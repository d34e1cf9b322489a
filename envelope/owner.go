package envelope

import (
	"crypto/rand"
	"fmt"

	"github.com/phantomstreams/phantom-sequencer/types"
	"golang.org/x/crypto/curve25519"
)

// KeySize is the size of X25519 keys.
const KeySize = curve25519.ScalarSize

const (
	toCluster byte = 1
	toOwner   byte = 2
)

// Keypair is an X25519 key pair. Owners use one to exchange envelopes with
// the cluster, and the cluster holds one as its channel key.
type Keypair struct {
	Private [KeySize]byte
	Public  [KeySize]byte
}

// GenerateKeypair returns a fresh X25519 key pair.
func GenerateKeypair() (*Keypair, error) {
	kp := &Keypair{}
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return nil, fmt.Errorf("cannot read private key: %w", err)
	}
	if err := kp.derivePublic(); err != nil {
		return nil, err
	}
	return kp, nil
}

// KeypairFromPrivate rebuilds a key pair from its private key.
func KeypairFromPrivate(priv []byte) (*Keypair, error) {
	if len(priv) != KeySize {
		return nil, fmt.Errorf("invalid private key length %d", len(priv))
	}
	kp := &Keypair{}
	copy(kp.Private[:], priv)
	if err := kp.derivePublic(); err != nil {
		return nil, err
	}
	return kp, nil
}

func (kp *Keypair) derivePublic() error {
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return err
	}
	copy(kp.Public[:], pub)
	return nil
}

// PublicKey returns a copy of the public key.
func (kp *Keypair) PublicKey() types.HexBytes {
	return types.HexBytes(append([]byte(nil), kp.Public[:]...))
}

// Channel is one end of the authenticated channel between a data owner and
// the cluster. Both ends derive the same key; the direction byte in the
// associated data stops an envelope from being reflected back to its
// sender.
type Channel struct {
	key      []byte
	ownerPub []byte
	send     byte
	recv     byte
}

// OwnerChannel opens the owner end of the channel.
func OwnerChannel(owner *Keypair, clusterPub []byte) (*Channel, error) {
	return newChannel(owner, clusterPub, owner.Public[:], clusterPub, toCluster, toOwner)
}

// ClusterChannel opens the cluster end of the channel with the owner that
// holds ownerPub.
func ClusterChannel(cluster *Keypair, ownerPub []byte) (*Channel, error) {
	return newChannel(cluster, ownerPub, ownerPub, cluster.Public[:], toOwner, toCluster)
}

func newChannel(self *Keypair, peer, ownerPub, clusterPub []byte, send, recv byte) (*Channel, error) {
	if len(peer) != KeySize {
		return nil, fmt.Errorf("invalid peer public key length %d", len(peer))
	}
	// fails for low order points
	shared, err := curve25519.X25519(self.Private[:], peer)
	if err != nil {
		return nil, fmt.Errorf("cannot compute shared secret: %w", err)
	}
	key, err := deriveKey(shared, concat(ownerPub, clusterPub), tag[Owner]())
	if err != nil {
		return nil, err
	}
	return &Channel{
		key:      key,
		ownerPub: append([]byte(nil), ownerPub...),
		send:     send,
		recv:     recv,
	}, nil
}

// OwnerPublicKey returns the owner key the channel is bound to.
func (c *Channel) OwnerPublicKey() types.HexBytes {
	return types.HexBytes(append([]byte(nil), c.ownerPub...))
}

func (c *Channel) ad(direction byte) []byte {
	return concat(tag[Owner](), []byte{direction}, c.ownerPub)
}

// Seal encrypts plaintext for the other end of the channel.
func (c *Channel) Seal(plaintext []byte) (Envelope[Owner], error) {
	nonce, ct, err := seal(c.key, c.ad(c.send), plaintext)
	if err != nil {
		return Envelope[Owner]{}, err
	}
	return Envelope[Owner]{
		Key:        c.OwnerPublicKey(),
		Nonce:      nonce,
		Ciphertext: ct,
	}, nil
}

// Open decrypts an envelope sealed by the other end of the channel.
func (c *Channel) Open(env Envelope[Owner]) ([]byte, error) {
	return open(c.key, c.ad(c.recv), env.Nonce, env.Ciphertext)
}
