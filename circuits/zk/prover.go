package zk

import (
	"bytes"
	"crypto/rand"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/crypto"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// Curve is the curve of every circuit in this package.
const Curve = ecc.BN254

// Keys bundles a compiled circuit with its groth16 keys.
type Keys struct {
	CCS constraint.ConstraintSystem
	PK  groth16.ProvingKey
	VK  groth16.VerifyingKey
}

// Setup compiles the circuit and runs a local groth16 setup. The keys are
// only as trustworthy as the process that ran it.
func Setup(circuit frontend.Circuit) (*Keys, error) {
	ccs, err := frontend.Compile(Curve.ScalarField(), r1cs.NewBuilder, circuit)
	if err != nil {
		return nil, fmt.Errorf("failed to compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, fmt.Errorf("failed to setup circuit: %w", err)
	}
	log.Debugw("circuit setup done", "constraints", ccs.GetNbConstraints())
	return &Keys{CCS: ccs, PK: pk, VK: vk}, nil
}

// Prove generates a proof for the full assignment.
func (k *Keys) Prove(assignment frontend.Circuit) (groth16.Proof, error) {
	witness, err := frontend.NewWitness(assignment, Curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("failed to create witness: %w", err)
	}
	return groth16.Prove(k.CCS, k.PK, witness)
}

// Verify checks a proof against the public part of the assignment.
func (k *Keys) Verify(proof groth16.Proof, assignment frontend.Circuit) error {
	publicWitness, err := frontend.NewWitness(assignment, Curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("failed to create public witness: %w", err)
	}
	return groth16.Verify(proof, k.VK, publicWitness)
}

// EncodeProof serializes a proof.
func EncodeProof(proof groth16.Proof) (types.HexBytes, error) {
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode proof: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeProof deserializes a proof.
func DecodeProof(data []byte) (groth16.Proof, error) {
	proof := groth16.NewProof(Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to decode proof: %w", err)
	}
	return proof, nil
}

// Attestation is the public evidence attached to a revealed winner.
type Attestation struct {
	Commitment types.Word     `json:"commitment" cbor:"1,keyasint"`
	Proof      types.HexBytes `json:"proof" cbor:"2,keyasint"`
}

// RevealAttestor proves reveals with a fixed set of keys.
type RevealAttestor struct {
	keys *Keys
}

// NewRevealAttestor runs the setup of the reveal circuit.
func NewRevealAttestor() (*RevealAttestor, error) {
	keys, err := Setup(&RevealCircuit{})
	if err != nil {
		return nil, err
	}
	return &RevealAttestor{keys: keys}, nil
}

// Attest proves that winner is the result of t under a fresh salt.
func (a *RevealAttestor) Attest(t circuits.VoteTally, winner uint8) (*Attestation, error) {
	saltBytes := make([]byte, types.WordSize)
	if _, err := rand.Read(saltBytes); err != nil {
		return nil, fmt.Errorf("cannot read salt: %w", err)
	}
	salt, err := types.WordFromBytes(saltBytes)
	if err != nil {
		return nil, err
	}
	assignment := RevealAssignment(t, winner, salt)
	proof, err := a.keys.Prove(assignment)
	if err != nil {
		return nil, fmt.Errorf("failed to prove reveal: %w", err)
	}
	encoded, err := EncodeProof(proof)
	if err != nil {
		return nil, err
	}
	return &Attestation{Commitment: TallyCommitment(t, salt), Proof: encoded}, nil
}

// Verify checks an attestation for winner.
func (a *RevealAttestor) Verify(winner uint8, att *Attestation) error {
	proof, err := DecodeProof(att.Proof)
	if err != nil {
		return err
	}
	return a.keys.Verify(proof, &RevealCircuit{
		Winner:     winner,
		Commitment: crypto.WordToFF(att.Commitment),
	})
}
