package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/phantomstreams/phantom-sequencer/types"
)

// DefaultEventsLimit is the number of events returned when no limit is given.
const DefaultEventsLimit = 100

// nullifier returns the record of a nullifier and its proof in the
// nullifier tree. Unknown nullifiers are returned unused, with a proof of
// non inclusion.
// GET /nullifiers/{nullifier}
func (a *API) nullifier(w http.ResponseWriter, r *http.Request) {
	var n types.Word
	if err := n.UnmarshalText([]byte(chi.URLParam(r, NullifierURLParam))); err != nil {
		ErrMalformedNullifier.WithErr(err).Write(w)
		return
	}
	rec, err := a.ledger.Nullifier(n)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	proof, err := a.ledger.NullifierProof(n)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &Nullifier{Record: rec, Proof: proof})
}

// events returns the ledger events starting at sequence number from
// GET /events?from=0&limit=100
func (a *API) events(w http.ResponseWriter, r *http.Request) {
	from, limit := uint64(0), DefaultEventsLimit
	var err error
	if s := r.URL.Query().Get("from"); s != "" {
		if from, err = strconv.ParseUint(s, 10, 64); err != nil {
			ErrMalformedParam.Withf("from: %v", err).Write(w)
			return
		}
	}
	if s := r.URL.Query().Get("limit"); s != "" {
		if limit, err = strconv.Atoi(s); err != nil || limit <= 0 {
			ErrMalformedParam.Withf("limit: %q", s).Write(w)
			return
		}
	}
	events, err := a.ledger.Events(from, limit)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &Events{Events: events})
}
