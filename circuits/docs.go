// Package circuits implements the fixed-shape confidential circuits run by
// the compute cluster: the fixed-width mixing hash, Merkle path
// verification, nullifier derivation, the bounded vote tally and the
// payment threshold check.
//
// Every function in this package executes the same instruction sequence
// regardless of the secret values it operates on. Conditions on secret data
// are expressed as 64-bit masks (all ones or all zeros) and applied through
// select operations, never through branches or early returns. Equality of
// Words is computed limb by limb and combined with a bitwise AND.
//
// Malformed inputs (wrong array sizes, direction bits other than 0 or 1,
// encodings of the wrong length) are rejected by the constructors and
// decoders with ErrContractViolation before any circuit runs. Circuits
// themselves never fail on secret data: an invalid proof or a dropped vote
// is an ordinary output value.
package circuits
