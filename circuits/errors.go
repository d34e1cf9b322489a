package circuits

import "errors"

var (
	// ErrContractViolation is returned for malformed fixed-size inputs. It is
	// raised before a circuit runs and never depends on secret values.
	ErrContractViolation = errors.New("contract violation")
	// ErrTallyState is returned when a tally operation is called in the
	// wrong lifecycle state.
	ErrTallyState = errors.New("invalid tally state")
	// ErrUnknownComputation is returned for names outside the catalogue.
	ErrUnknownComputation = errors.New("unknown computation")
)
