package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/api"
	"github.com/phantomstreams/phantom-sequencer/crypto/ethereum"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/ledger"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// Error is an error response of the API.
type Error struct {
	Message    string `json:"error"`
	Code       int    `json:"code"`
	HTTPstatus int    `json:"-"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %d (code %d: %s)", errCodeNot200, e.HTTPstatus, e.Code, e.Message)
}

// call performs the request and decodes the JSON response into out, if not
// nil. Non 200 responses are returned as *Error.
func (c *HTTPclient) call(method string, body, out any, params []string, urlPath ...string) error {
	data, status, err := c.Request(method, body, params, urlPath...)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		apiErr := &Error{HTTPstatus: status}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr.Message = string(data)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("cannot decode response: %w", err)
	}
	return nil
}

// Info returns the public parameters of the node.
func (c *HTTPclient) Info() (*api.Info, error) {
	info := &api.Info{}
	return info, c.call(HTTPGET, nil, info, nil, api.InfoEndpoint)
}

// OwnerChannel fetches the cluster channel key and opens the channel of the
// owner keys.
func (c *HTTPclient) OwnerChannel(keys *envelope.Keypair) (*envelope.Channel, error) {
	info, err := c.Info()
	if err != nil {
		return nil, err
	}
	return envelope.OwnerChannel(keys, info.ChannelKey)
}

// RegistryRoot returns the registry root stored in the ledger.
func (c *HTTPclient) RegistryRoot() (*api.RegistryRoot, error) {
	root := &api.RegistryRoot{}
	return root, c.call(HTTPGET, nil, root, nil, api.RegistryRootEndpoint)
}

// UpdateRegistryRoot publishes root, signed with the authority keys.
func (c *HTTPclient) UpdateRegistryRoot(authority *ethereum.SignKeys, root types.Word) error {
	sig, err := authority.SignEthereum(api.RegistryRootMessage(root))
	if err != nil {
		return err
	}
	return c.call(HTTPPOST, &api.UpdateRegistryRoot{Root: root, Signature: sig}, nil, nil, api.RegistryRootEndpoint)
}

// VerifyOwnership queues the verification of a sealed ownership record.
func (c *HTTPclient) VerifyOwnership(record envelope.Envelope[envelope.Owner]) (uuid.UUID, error) {
	resp := &api.ComputationResponse{}
	err := c.call(HTTPPOST, &api.OwnershipRequest{Record: record}, resp, nil, api.OwnershipEndpoint)
	return resp.ComputationID, err
}

// NewVote creates a vote signed with the authority keys.
func (c *HTTPclient) NewVote(authority *ethereum.SignKeys, nonce uint64, options uint8, endTime time.Time) (*api.NewVoteResponse, error) {
	sig, err := authority.SignEthereum(api.NewVoteMessage(nonce, options, endTime.Unix()))
	if err != nil {
		return nil, err
	}
	req := &api.NewVote{Nonce: nonce, Options: options, EndTime: endTime.Unix(), Signature: sig}
	resp := &api.NewVoteResponse{}
	return resp, c.call(HTTPPOST, req, resp, nil, api.VotesEndpoint)
}

// Vote returns the vote record.
func (c *HTTPclient) Vote(id types.VoteID) (*ledger.VoteRecord, error) {
	vote := &ledger.VoteRecord{}
	return vote, c.call(HTTPGET, nil, vote, nil, api.EndpointWithParam(api.VoteEndpoint, api.VoteURLParam, id.String()))
}

// CastBallot queues a sealed ballot.
func (c *HTTPclient) CastBallot(id types.VoteID, ballot envelope.Envelope[envelope.Owner]) (uuid.UUID, error) {
	resp := &api.ComputationResponse{}
	err := c.call(HTTPPOST, &api.Ballot{Ballot: ballot}, resp, nil,
		api.EndpointWithParam(api.VoteBallotsEndpoint, api.VoteURLParam, id.String()))
	return resp.ComputationID, err
}

// RevealVote queues the reveal of a vote, signed with the authority keys.
func (c *HTTPclient) RevealVote(authority *ethereum.SignKeys, id types.VoteID) (uuid.UUID, error) {
	sig, err := authority.SignEthereum(api.RevealMessage(id))
	if err != nil {
		return uuid.Nil, err
	}
	resp := &api.ComputationResponse{}
	err = c.call(HTTPPOST, &api.RevealRequest{Signature: sig}, resp, nil,
		api.EndpointWithParam(api.VoteRevealEndpoint, api.VoteURLParam, id.String()))
	return resp.ComputationID, err
}

// VerifyPayment queues the check of a sealed payment against minimum.
func (c *HTTPclient) VerifyPayment(payment envelope.Envelope[envelope.Owner], minimum uint64) (uuid.UUID, error) {
	resp := &api.ComputationResponse{}
	err := c.call(HTTPPOST, &api.PaymentRequest{Payment: payment, Minimum: minimum}, resp, nil, api.PaymentsEndpoint)
	return resp.ComputationID, err
}

// Computation returns the current result of a computation.
func (c *HTTPclient) Computation(id uuid.UUID) (*storage.Result, error) {
	res := &storage.Result{}
	return res, c.call(HTTPGET, nil, res, nil,
		api.EndpointWithParam(api.ComputationEndpoint, api.ComputationURLParam, id.String()))
}

// WaitComputation polls the computation until it is done or failed, or ctx
// is canceled.
func (c *HTTPclient) WaitComputation(ctx context.Context, id uuid.UUID, poll time.Duration) (*storage.Result, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		res, err := c.Computation(id)
		if err != nil {
			return nil, err
		}
		if res.Finished() {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("computation %s not finished: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Nullifier returns the record and the tree proof of a nullifier.
func (c *HTTPclient) Nullifier(n types.Word) (*api.Nullifier, error) {
	resp := &api.Nullifier{}
	return resp, c.call(HTTPGET, nil, resp, nil,
		api.EndpointWithParam(api.NullifierEndpoint, api.NullifierURLParam, "0x"+n.String()))
}

// Events returns up to limit ledger events starting at from.
func (c *HTTPclient) Events(from uint64, limit int) ([]*ledger.Event, error) {
	resp := &api.Events{}
	params := []string{"from", strconv.FormatUint(from, 10), "limit", strconv.Itoa(limit)}
	return resp.Events, c.call(HTTPGET, nil, resp, params, api.EventsEndpoint)
}
