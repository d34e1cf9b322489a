// Package cluster runs the confidential computations. It simulates a set
// of compute nodes that share the cluster decryption key after a Feldman
// DKG: cluster envelopes are opened by combining the partial decryptions
// of a threshold of nodes, and owner envelopes travel over an X25519
// channel held by the cluster.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/circuits/zk"
	"github.com/phantomstreams/phantom-sequencer/crypto/dkg"
	"github.com/phantomstreams/phantom-sequencer/crypto/ecc"
	"github.com/phantomstreams/phantom-sequencer/crypto/ecc/curves"
	"github.com/phantomstreams/phantom-sequencer/crypto/hash"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/types"
	"go.vocdoni.io/dvote/db"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultNodes     = 3
	DefaultThreshold = 2
)

var (
	// ErrNotEnoughShares is returned when fewer than threshold nodes answer
	// a partial decryption request.
	ErrNotEnoughShares = errors.New("not enough partial decryptions")
	// ErrAttestationDisabled is returned when verifying an attestation on a
	// cluster started without attestation.
	ErrAttestationDisabled = errors.New("attestation disabled")
)

// Config defines the cluster parameters.
type Config struct {
	Nodes     int
	Threshold int
	Curve     string
	Hasher    string
	// Attest attaches a groth16 proof to every revealed winner.
	Attest bool
}

func (c *Config) setDefaults() {
	if c.Nodes == 0 {
		c.Nodes = DefaultNodes
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Curve == "" {
		c.Curve = curves.DefaultCurve
	}
	if c.Hasher == "" {
		c.Hasher = hash.DefaultHasher
	}
}

// Node is a member of the cluster able to compute its partial decryption
// of an ephemeral point.
type Node interface {
	ID() int
	PartialDecrypt(ctx context.Context, ephemeral ecc.Point) (ecc.Point, error)
}

type localNode struct {
	participant *dkg.Participant
}

func (n *localNode) ID() int {
	return n.participant.ID
}

func (n *localNode) PartialDecrypt(ctx context.Context, ephemeral ecc.Point) (ecc.Point, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return n.participant.ComputePartialDecryption(ephemeral), nil
}

// Cluster executes the catalogue of confidential computations.
type Cluster struct {
	conf      Config
	curve     ecc.Point
	hasher    circuits.Hasher
	nodes     []Node
	publicKey ecc.Point
	channel   *envelope.Keypair
	attestor  *zk.RevealAttestor
}

// New creates a cluster. If database is not nil the key material is loaded
// from it, or generated and stored on first run. A nil database gives an
// ephemeral cluster whose envelopes do not survive a restart.
func New(conf Config, database db.Database) (*Cluster, error) {
	conf.setDefaults()
	if conf.Threshold < 1 || conf.Threshold > conf.Nodes {
		return nil, fmt.Errorf("invalid threshold %d for %d nodes", conf.Threshold, conf.Nodes)
	}
	curve, err := curves.Parse(conf.Curve)
	if err != nil {
		return nil, err
	}
	hasher, err := hash.New(conf.Hasher)
	if err != nil {
		return nil, err
	}
	c := &Cluster{
		conf:   conf,
		curve:  curve,
		hasher: hasher,
	}

	var km *keyMaterial
	if database != nil {
		if km, err = loadKeyMaterial(database); err != nil {
			return nil, err
		}
	}
	if km == nil {
		if km, err = generateKeyMaterial(conf, curve); err != nil {
			return nil, err
		}
		if database != nil {
			if err := storeKeyMaterial(database, km); err != nil {
				return nil, err
			}
		}
	} else if err := km.matches(conf); err != nil {
		return nil, err
	}
	if err := c.loadKeys(km); err != nil {
		return nil, err
	}

	if conf.Attest {
		start := time.Now()
		if c.attestor, err = zk.NewRevealAttestor(); err != nil {
			return nil, fmt.Errorf("cannot setup reveal attestation: %w", err)
		}
		log.Infow("reveal attestation ready", "took", time.Since(start).String())
	}
	log.Infow("cluster started",
		"nodes", conf.Nodes,
		"threshold", conf.Threshold,
		"curve", conf.Curve,
		"hasher", conf.Hasher,
		"publicKey", c.publicKey.String(),
		"channelKey", c.channel.PublicKey().String())
	return c, nil
}

// PublicKey returns the cluster encryption key.
func (c *Cluster) PublicKey() ecc.Point {
	return c.publicKey
}

// ChannelKey returns the X25519 key owners seal their inputs to.
func (c *Cluster) ChannelKey() types.HexBytes {
	return c.channel.PublicKey()
}

// Hasher returns the circuit hash used by the computations.
func (c *Cluster) Hasher() circuits.Hasher {
	return c.hasher
}

// Config returns the cluster configuration with defaults applied.
func (c *Cluster) Config() Config {
	return c.conf
}

// Attests reports whether reveals carry an attestation.
func (c *Cluster) Attests() bool {
	return c.attestor != nil
}

// VerifyAttestation checks the attestation of a revealed winner.
func (c *Cluster) VerifyAttestation(winner uint8, att *zk.Attestation) error {
	if c.attestor == nil {
		return ErrAttestationDisabled
	}
	return c.attestor.Verify(winner, att)
}

// openCluster gathers the partial decryptions of all nodes in parallel
// and opens env with the first threshold answers by node id.
func (c *Cluster) openCluster(ctx context.Context, env envelope.Envelope[envelope.Cluster]) ([]byte, error) {
	ephemeral, err := envelope.Ephemeral(env, c.curve)
	if err != nil {
		return nil, err
	}
	var mu sync.Mutex
	partials := make(map[int]ecc.Point, len(c.nodes))
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range c.nodes {
		g.Go(func() error {
			pd, err := n.PartialDecrypt(gctx, ephemeral)
			if err != nil {
				log.Warnw("partial decryption failed", "node", n.ID(), "error", err.Error())
				return nil
			}
			mu.Lock()
			partials[n.ID()] = pd
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(partials) < c.conf.Threshold {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrNotEnoughShares, len(partials), c.conf.Threshold)
	}
	ids := make([]int, 0, len(partials))
	for id := range partials {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	shared, err := dkg.CombinePartialDecryptions(partials, ids[:c.conf.Threshold])
	if err != nil {
		return nil, err
	}
	return envelope.OpenCluster(env, shared)
}

func (c *Cluster) sealCluster(plaintext []byte) (envelope.Envelope[envelope.Cluster], error) {
	return envelope.SealCluster(c.publicKey, plaintext)
}

// ownerChannel opens the cluster end of the channel with the sender of env.
func (c *Cluster) ownerChannel(env envelope.Envelope[envelope.Owner]) (*envelope.Channel, error) {
	return envelope.ClusterChannel(c.channel, env.Key)
}
