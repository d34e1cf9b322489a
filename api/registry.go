package api

import (
	"encoding/json"
	"net/http"

	"github.com/phantomstreams/phantom-sequencer/circuits"
	"github.com/phantomstreams/phantom-sequencer/log"
)

// info returns the public parameters of the node
// GET /info
func (a *API) info(w http.ResponseWriter, r *http.Request) {
	authority, err := a.ledger.Authority()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	conf := a.cluster.Config()
	info := &Info{
		ClusterKey:  a.cluster.PublicKey().Marshal(),
		Curve:       conf.Curve,
		ChannelKey:  a.cluster.ChannelKey(),
		Nodes:       conf.Nodes,
		Threshold:   conf.Threshold,
		Hasher:      a.cluster.Hasher().Name(),
		TreeDepth:   circuits.TreeDepth,
		MaxOptions:  circuits.MaxOptions,
		Authority:   authority,
		Attestation: a.cluster.Attests(),
	}
	for _, c := range circuits.Computations() {
		info.Computations = append(info.Computations, ComputationInfo{Name: c.String(), Offset: c.Offset()})
	}
	httpWriteJSON(w, info)
}

// registryRoot returns the registry root stored in the ledger
// GET /registry/root
func (a *API) registryRoot(w http.ResponseWriter, r *http.Request) {
	st, err := a.ledger.State()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	nullifierRoot, err := a.ledger.NullifierRoot()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &RegistryRoot{
		Root:              st.RegistryRoot,
		VerificationCount: st.VerificationCount,
		NullifierRoot:     nullifierRoot,
	})
}

// updateRegistryRoot publishes a new registry root, signed by the authority
// POST /registry/root
func (a *API) updateRegistryRoot(w http.ResponseWriter, r *http.Request) {
	req := &UpdateRegistryRoot{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}
	caller, err := signer(RegistryRootMessage(req.Root), req.Signature)
	if err != nil {
		ErrInvalidSignature.Withf("could not extract address from signature: %v", err).Write(w)
		return
	}
	if err := a.ledger.UpdateRegistryRoot(caller, req.Root); err != nil {
		ledgerError(err).Write(w)
		return
	}
	log.Infow("registry root updated", "root", req.Root.String(), "caller", caller.Hex())
	httpWriteJSON(w, &RegistryRoot{Root: req.Root})
}
