package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/envelope"
	"github.com/phantomstreams/phantom-sequencer/log"
	"github.com/phantomstreams/phantom-sequencer/storage"
)

// decodeBody decodes the JSON body into v, writing the error response if
// it fails. Envelopes of the wrong kind are reported as malformed
// envelopes.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, envelope.ErrKindMismatch) {
			ErrMalformedEnvelope.WithErr(err).Write(w)
			return false
		}
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return false
	}
	return true
}

// queue pushes the computation and writes its id as response.
func (a *API) queue(w http.ResponseWriter, c *storage.Computation) {
	if err := a.storage.PushComputation(c); err != nil {
		ErrGenericInternalServerError.Withf("could not queue computation: %v", err).Write(w)
		return
	}
	log.Infow("computation queued", "id", c.ID.String(), "kind", c.Kind.String())
	httpWriteJSON(w, &ComputationResponse{ComputationID: c.ID})
}

// verifyOwnership queues the verification of a sealed ownership record
// against the current registry root
// POST /ownership
func (a *API) verifyOwnership(w http.ResponseWriter, r *http.Request) {
	req := &OwnershipRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Record.IsEmpty() {
		ErrMalformedEnvelope.With("empty record").Write(w)
		return
	}
	st, err := a.ledger.State()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	a.queue(w, &storage.Computation{
		Kind:  circuits.ComputationVerifyOwnership,
		Input: req.Record,
		Root:  st.RegistryRoot,
	})
}

// verifyPayment queues the check of a sealed payment against a minimum
// POST /payments
func (a *API) verifyPayment(w http.ResponseWriter, r *http.Request) {
	req := &PaymentRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if req.Payment.IsEmpty() {
		ErrMalformedEnvelope.With("empty payment").Write(w)
		return
	}
	a.queue(w, &storage.Computation{
		Kind:    circuits.ComputationVerifyPaymentThreshold,
		Input:   req.Payment,
		Minimum: req.Minimum,
	})
}

// computation returns the result of a queued computation
// GET /computations/{computationId}
func (a *API) computation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, ComputationURLParam))
	if err != nil {
		ErrMalformedComputationID.WithErr(err).Write(w)
		return
	}
	res, err := a.storage.Result(id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			ErrComputationNotFound.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, res)
}
