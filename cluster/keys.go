package cluster

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/phantomstreams/phantom-sequencer/crypto/dkg"
	"github.com/phantomstreams/phantom-sequencer/crypto/ecc"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	keysPrefix = []byte("k/")
	keysKey    = []byte("material")
)

// keyMaterial is the persisted state of the cluster: the private share of
// every simulated node, the DKG public key and the channel key.
type keyMaterial struct {
	Curve     string         `cbor:"0,keyasint"`
	Threshold int            `cbor:"1,keyasint"`
	Shares    map[int][]byte `cbor:"2,keyasint"`
	PublicKey []byte         `cbor:"3,keyasint"`
	Channel   []byte         `cbor:"4,keyasint"`
}

func (km *keyMaterial) matches(conf Config) error {
	if km.Curve != conf.Curve || km.Threshold != conf.Threshold || len(km.Shares) != conf.Nodes {
		return fmt.Errorf("stored cluster keys (%s, %d of %d) do not match the configuration (%s, %d of %d)",
			km.Curve, km.Threshold, len(km.Shares), conf.Curve, conf.Threshold, conf.Nodes)
	}
	return nil
}

func generateKeyMaterial(conf Config, curve ecc.Point) (*keyMaterial, error) {
	participants, err := dkg.Run(curve, conf.Threshold, conf.Nodes)
	if err != nil {
		return nil, fmt.Errorf("distributed key generation failed: %w", err)
	}
	channel, err := envelope.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	km := &keyMaterial{
		Curve:     conf.Curve,
		Threshold: conf.Threshold,
		Shares:    make(map[int][]byte, len(participants)),
		PublicKey: participants[1].PublicKey.Marshal(),
		Channel:   channel.Private[:],
	}
	for id, p := range participants {
		km.Shares[id] = p.PrivateShare.Bytes()
	}
	return km, nil
}

func (c *Cluster) loadKeys(km *keyMaterial) error {
	c.publicKey = c.curve.New()
	if err := c.publicKey.Unmarshal(km.PublicKey); err != nil {
		return fmt.Errorf("invalid cluster public key: %w", err)
	}
	ids := make([]int, 0, len(km.Shares))
	for id := range km.Shares {
		ids = append(ids, id)
	}
	c.nodes = make([]Node, 0, len(km.Shares))
	for _, id := range ids {
		p, err := dkg.NewParticipant(id, km.Threshold, ids, c.curve.New())
		if err != nil {
			return err
		}
		p.PrivateShare = new(big.Int).SetBytes(km.Shares[id])
		p.PublicKey = c.publicKey
		c.nodes = append(c.nodes, &localNode{participant: p})
	}
	channel, err := envelope.KeypairFromPrivate(km.Channel)
	if err != nil {
		return fmt.Errorf("invalid cluster channel key: %w", err)
	}
	c.channel = channel
	return nil
}

func loadKeyMaterial(database db.Database) (*keyMaterial, error) {
	data, err := prefixeddb.NewPrefixedReader(database, keysPrefix).Get(keysKey)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read cluster keys: %w", err)
	}
	km := &keyMaterial{}
	if err := cbor.Unmarshal(data, km); err != nil {
		return nil, fmt.Errorf("cannot decode cluster keys: %w", err)
	}
	return km, nil
}

func storeKeyMaterial(database db.Database, km *keyMaterial) error {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return err
	}
	data, err := em.Marshal(km)
	if err != nil {
		return fmt.Errorf("cannot encode cluster keys: %w", err)
	}
	wTx := prefixeddb.NewPrefixedWriteTx(database.WriteTx(), keysPrefix)
	if err := wTx.Set(keysKey, data); err != nil {
		wTx.Discard()
		return err
	}
	return wTx.Commit()
}
