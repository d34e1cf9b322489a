package circuits

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Computation enumerates the circuits the cluster can run.
type Computation uint8

const (
	ComputationVerifyOwnership Computation = iota + 1
	ComputationInitVoteTally
	ComputationCastRoyaltyVote
	ComputationRevealVoteResult
	ComputationVerifyPaymentThreshold
)

// OutputKind is what a computation hands back across the boundary.
type OutputKind uint8

const (
	OutputOwnerEnvelope OutputKind = iota + 1
	OutputClusterEnvelope
	OutputPublicScalar
)

var computationNames = map[Computation]string{
	ComputationVerifyOwnership:        "verify_ownership",
	ComputationInitVoteTally:          "init_vote_tally",
	ComputationCastRoyaltyVote:        "cast_royalty_vote",
	ComputationRevealVoteResult:       "reveal_vote_result",
	ComputationVerifyPaymentThreshold: "verify_payment_threshold",
}

var computationOutputs = map[Computation]OutputKind{
	ComputationVerifyOwnership:        OutputOwnerEnvelope,
	ComputationInitVoteTally:          OutputClusterEnvelope,
	ComputationCastRoyaltyVote:        OutputClusterEnvelope,
	ComputationRevealVoteResult:       OutputPublicScalar,
	ComputationVerifyPaymentThreshold: OutputOwnerEnvelope,
}

// Computations returns the catalogue in declaration order.
func Computations() []Computation {
	return []Computation{
		ComputationVerifyOwnership,
		ComputationInitVoteTally,
		ComputationCastRoyaltyVote,
		ComputationRevealVoteResult,
		ComputationVerifyPaymentThreshold,
	}
}

// ParseComputation returns the computation with the given name.
func ParseComputation(name string) (Computation, error) {
	for c, n := range computationNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownComputation, name)
}

func (c Computation) String() string {
	if n, ok := computationNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Computation(%d)", uint8(c))
}

// Valid reports whether c belongs to the catalogue.
func (c Computation) Valid() bool {
	_, ok := computationNames[c]
	return ok
}

// Offset is the public numeric identifier of the computation: the first
// four bytes of the SHA-256 of its name, read as little endian.
func (c Computation) Offset() uint32 {
	h := sha256.Sum256([]byte(c.String()))
	return binary.LittleEndian.Uint32(h[:4])
}

// Output returns the kind of value the computation produces.
func (c Computation) Output() OutputKind {
	return computationOutputs[c]
}

func (c Computation) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownComputation, uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *Computation) UnmarshalText(text []byte) error {
	parsed, err := ParseComputation(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
