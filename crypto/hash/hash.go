// Package hash selects the circuit hash implementation by name.
package hash

import (
	"fmt"

	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/crypto/hash/mimc"
	"github.com/phantomstreams/phantom-sequencer/crypto/hash/poseidon"
)

// DefaultHasher is the hasher used when none is configured.
const DefaultHasher = circuits.MixHasherName

// Names lists the supported hasher names.
func Names() []string {
	return []string{circuits.MixHasherName, poseidon.Name, mimc.Name}
}

// New returns the hasher registered under name.
func New(name string) (circuits.Hasher, error) {
	switch name {
	case "", circuits.MixHasherName:
		return circuits.MixHasher{}, nil
	case poseidon.Name:
		return poseidon.Hasher{}, nil
	case mimc.Name:
		return mimc.Hasher{}, nil
	default:
		return nil, fmt.Errorf("unsupported hasher %q, expected one of %v", name, Names())
	}
}
