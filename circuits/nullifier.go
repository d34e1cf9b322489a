package circuits

import "github.com/phantomstreams/phantom-sequencer/types"

// DeriveNullifier returns the replay-protection identifier of a (wallet,
// track) pair. The same pair always yields the same nullifier.
func DeriveNullifier(h Hasher, wallet, track types.Word) types.Word {
	return h.Mix(wallet, track, NullifierDomain)
}
