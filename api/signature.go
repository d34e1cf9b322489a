package api

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/phantomstreams/phantom-sequencer/crypto/ethereum"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// Authority requests are signed with an Ethereum personal signature over
// the following messages.

// RegistryRootMessage is the message signed to publish a registry root.
func RegistryRootMessage(root types.Word) []byte {
	return []byte(fmt.Sprintf("phantom: set registry root 0x%s", root.String()))
}

// NewVoteMessage is the message signed to create a vote.
func NewVoteMessage(nonce uint64, options uint8, endTime int64) []byte {
	return []byte(fmt.Sprintf("phantom: create vote nonce %d options %d ends %d", nonce, options, endTime))
}

// RevealMessage is the message signed to reveal the winner of a vote.
func RevealMessage(voteID types.VoteID) []byte {
	return []byte(fmt.Sprintf("phantom: reveal vote 0x%s", voteID.String()))
}

// signer recovers the address that signed message.
func signer(message []byte, signature types.HexBytes) (common.Address, error) {
	return ethereum.AddrFromSignature(message, signature)
}
