package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/storage"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// newVote creates a royalty vote and queues the initialization of its
// tally. The signer must be the authority.
// POST /votes
func (a *API) newVote(w http.ResponseWriter, r *http.Request) {
	req := &NewVote{}
	if !decodeBody(w, r, req) {
		return
	}
	caller, err := signer(NewVoteMessage(req.Nonce, req.Options, req.EndTime), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	voteID := types.NewVoteID(caller, req.Nonce)
	if _, err := a.ledger.CreateVote(caller, voteID, req.Options, time.Unix(req.EndTime, 0)); err != nil {
		ledgerError(err).Write(w)
		return
	}
	c := &storage.Computation{
		Kind:   circuits.ComputationInitVoteTally,
		VoteID: voteID,
		Caller: caller,
	}
	if err := a.storage.PushComputation(c); err != nil {
		ErrGenericInternalServerError.Withf("could not queue tally initialization: %v", err).Write(w)
		return
	}
	log.Infow("new vote", "voteId", voteID.String(), "options", req.Options, "endTime", req.EndTime)
	httpWriteJSON(w, &NewVoteResponse{VoteID: voteID, ComputationID: c.ID})
}

// voteID parses the vote id URL parameter, writing the error response if
// it is malformed.
func voteID(w http.ResponseWriter, r *http.Request) (types.VoteID, bool) {
	id, err := types.ParseVoteID(chi.URLParam(r, VoteURLParam))
	if err != nil {
		ErrMalformedVoteID.WithErr(err).Write(w)
		return id, false
	}
	return id, true
}

// vote returns the vote record
// GET /votes/{voteId}
func (a *API) vote(w http.ResponseWriter, r *http.Request) {
	id, ok := voteID(w, r)
	if !ok {
		return
	}
	vote, err := a.ledger.Vote(id)
	if err != nil {
		ledgerError(err).Write(w)
		return
	}
	httpWriteJSON(w, vote)
}

// castBallot queues a sealed ballot. The vote must be open and ready.
// POST /votes/{voteId}/ballots
func (a *API) castBallot(w http.ResponseWriter, r *http.Request) {
	id, ok := voteID(w, r)
	if !ok {
		return
	}
	req := &Ballot{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Ballot.IsEmpty() {
		ErrMalformedEnvelope.With("empty ballot").Write(w)
		return
	}
	if _, err := a.ledger.CheckCast(id); err != nil {
		ledgerError(err).Write(w)
		return
	}
	a.queue(w, &storage.Computation{
		Kind:   circuits.ComputationCastRoyaltyVote,
		Input:  req.Ballot,
		VoteID: id,
	})
}

// revealVote queues the declassification of the winner. The signer must
// be the authority and the vote must be closed.
// POST /votes/{voteId}/reveal
func (a *API) revealVote(w http.ResponseWriter, r *http.Request) {
	id, ok := voteID(w, r)
	if !ok {
		return
	}
	req := &RevealRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	caller, err := signer(RevealMessage(id), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	if _, err := a.ledger.CheckReveal(caller, id); err != nil {
		ledgerError(err).Write(w)
		return
	}
	a.queue(w, &storage.Computation{
		Kind:   circuits.ComputationRevealVoteResult,
		VoteID: id,
		Caller: caller,
	})
}
