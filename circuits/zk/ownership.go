// Package zk holds gnark versions of the confidential circuits, used to
// attest results that leave the cluster. They hash with MiMC over the
// BN254 scalar field, so their public values can be recomputed with the
// mimc hasher of crypto/hash.
package zk

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/crypto"
	mimchash "github.com/phantomstreams/phantom-sequencer/crypto/hash/mimc"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// OwnershipCircuit proves that a (wallet, token, track) leaf is in the
// registry with the given root and that the nullifier belongs to the
// (wallet, track) pair.
type OwnershipCircuit struct {
	Root      frontend.Variable `gnark:",public"`
	Nullifier frontend.Variable `gnark:",public"`

	Wallet     frontend.Variable
	Token      frontend.Variable
	Track      frontend.Variable
	Path       [circuits.TreeDepth]frontend.Variable
	Directions [circuits.TreeDepth]frontend.Variable
}

func (c *OwnershipCircuit) Define(api frontend.API) error {
	leaf, err := hashVars(api, c.Wallet, c.Token, c.Track)
	if err != nil {
		return err
	}
	current := leaf
	for i := 0; i < circuits.TreeDepth; i++ {
		api.AssertIsBoolean(c.Directions[i])
		// direction 1 means the current node is the right child
		left := api.Select(c.Directions[i], c.Path[i], current)
		right := api.Select(c.Directions[i], current, c.Path[i])
		if current, err = hashVars(api, left, right); err != nil {
			return err
		}
	}
	api.AssertIsEqual(current, c.Root)

	nullifier, err := hashVars(api, c.Wallet, c.Track, crypto.WordToFF(circuits.NullifierDomain))
	if err != nil {
		return err
	}
	api.AssertIsEqual(nullifier, c.Nullifier)
	return nil
}

// OwnershipAssignment builds the witness of a record. The public values are
// computed with the native MiMC hasher.
func OwnershipAssignment(r *circuits.RightsOwnershipRecord, root types.Word) *OwnershipCircuit {
	h := mimchash.Hasher{}
	a := &OwnershipCircuit{
		Root:      crypto.WordToFF(root),
		Nullifier: crypto.WordToFF(circuits.DeriveNullifier(h, r.Wallet, r.Track)),
		Wallet:    crypto.WordToFF(r.Wallet),
		Token:     crypto.WordToFF(r.Token),
		Track:     crypto.WordToFF(r.Track),
	}
	for i := 0; i < circuits.TreeDepth; i++ {
		a.Path[i] = crypto.WordToFF(r.Path[i])
		a.Directions[i] = r.Directions[i]
	}
	return a
}

// hashVars hashes the variables with the gnark MiMC gadget, matching the
// native mimc hasher fed with the same field elements.
func hashVars(api frontend.API, vars ...frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(vars...)
	return h.Sum(), nil
}
