package api

import "strings"

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// InfoEndpoint returns the cluster keys and the parameters of the node
	InfoEndpoint = "/info"
	// RegistryRootEndpoint is the endpoint to get and update (authority
	// only) the rights registry root
	RegistryRootEndpoint = "/registry/root"
	// OwnershipEndpoint is the endpoint for queueing an ownership verification
	OwnershipEndpoint = "/ownership"
	// VotesEndpoint is the endpoint for creating a new royalty vote
	VotesEndpoint = "/votes"
	// VoteEndpoint is the endpoint to get the vote record
	VoteURLParam = "voteId"
	VoteEndpoint = "/votes/{" + VoteURLParam + "}"
	// VoteBallotsEndpoint is the endpoint for casting a sealed ballot
	VoteBallotsEndpoint = "/votes/{" + VoteURLParam + "}/ballots"
	// VoteRevealEndpoint is the endpoint for revealing the winner (authority only)
	VoteRevealEndpoint = "/votes/{" + VoteURLParam + "}/reveal"
	// PaymentsEndpoint is the endpoint for queueing a payment threshold check
	PaymentsEndpoint = "/payments"
	// ComputationEndpoint is the endpoint to get the result of a queued computation
	ComputationURLParam = "computationId"
	ComputationEndpoint = "/computations/{" + ComputationURLParam + "}"
	// NullifierEndpoint is the endpoint to get a nullifier record and its
	// inclusion proof
	NullifierURLParam = "nullifier"
	NullifierEndpoint = "/nullifiers/{" + NullifierURLParam + "}"
	// EventsEndpoint lists the ledger events, supports the from and limit
	// query parameters
	EventsEndpoint = "/events"
)

// EndpointWithParam replaces the URL parameter of the endpoint with value.
func EndpointWithParam(endpoint, param, value string) string {
	return strings.Replace(endpoint, "{"+param+"}", value, 1)
}
