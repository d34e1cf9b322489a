package api

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// ComputationInfo describes an entry of the computation catalogue.
type ComputationInfo struct {
	Name   string `json:"name"`
	Offset uint32 `json:"offset"`
}

// Info is the response to the info request. Owners seal their inputs to
// ChannelKey; tallies are sealed to ClusterKey.
type Info struct {
	ClusterKey   types.HexBytes    `json:"clusterKey"`
	Curve        string            `json:"curve"`
	ChannelKey   types.HexBytes    `json:"channelKey"`
	Nodes        int               `json:"nodes"`
	Threshold    int               `json:"threshold"`
	Hasher       string            `json:"hasher"`
	TreeDepth    int               `json:"treeDepth"`
	MaxOptions   int               `json:"maxOptions"`
	Authority    common.Address    `json:"authority"`
	Attestation  bool              `json:"attestation"`
	Computations []ComputationInfo `json:"computations"`
}

// RegistryRoot is the response to a registry root request. NullifierRoot
// commits to every spent nullifier.
type RegistryRoot struct {
	Root              types.Word     `json:"root"`
	VerificationCount uint64         `json:"verificationCount"`
	NullifierRoot     types.HexBytes `json:"nullifierRoot,omitempty"`
}

// UpdateRegistryRoot is the authority request to publish a new root.
type UpdateRegistryRoot struct {
	Root      types.Word     `json:"root"`
	Signature types.HexBytes `json:"signature"`
}

// OwnershipRequest carries a RightsOwnershipRecord sealed to the cluster.
type OwnershipRequest struct {
	Record envelope.Envelope[envelope.Owner] `json:"record"`
}

// NewVote is the authority request to create a royalty vote. The vote id
// is derived from the signer address and the nonce.
type NewVote struct {
	Nonce     uint64         `json:"nonce"`
	Options   uint8          `json:"options"`
	EndTime   int64          `json:"endTime"`
	Signature types.HexBytes `json:"signature"`
}

// NewVoteResponse is the response to a vote creation. ComputationID is the
// initialization of the tally; ballots are refused until it is done.
type NewVoteResponse struct {
	VoteID        types.VoteID `json:"voteId"`
	ComputationID uuid.UUID    `json:"computationId"`
}

// Ballot carries a RoyaltyVote sealed to the cluster.
type Ballot struct {
	Ballot envelope.Envelope[envelope.Owner] `json:"ballot"`
}

// RevealRequest is the authority request to reveal the winner of a vote.
type RevealRequest struct {
	Signature types.HexBytes `json:"signature"`
}

// PaymentRequest carries a PaymentProof sealed to the cluster and the
// public minimum it is checked against.
type PaymentRequest struct {
	Payment envelope.Envelope[envelope.Owner] `json:"payment"`
	Minimum uint64                            `json:"minimum"`
}

// ComputationResponse is returned for every queued computation.
type ComputationResponse struct {
	ComputationID uuid.UUID `json:"computationId"`
}

// Nullifier is the response to a nullifier request.
type Nullifier struct {
	Record *ledger.NullifierRecord `json:"record"`
	Proof  *ledger.NullifierProof  `json:"proof"`
}

// Events is the response to an events request.
type Events struct {
	Events []*ledger.Event `json:"events"`
}
