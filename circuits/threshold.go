package circuits

import (
	"math/bits"

	"github.com/phantomstreams/phantom-sequencer/types"
)

// PaymentProof describes a royalty payment whose amount stays secret.
type PaymentProof struct {
	Payer     types.Word
	Track     types.Word
	Amount    uint64
	Timestamp uint64
}

// MeetsThreshold reports amount >= minimum, taken from the borrow of the
// 64-bit subtraction.
func MeetsThreshold(p PaymentProof, minimum uint64) bool {
	_, borrow := bits.Sub64(p.Amount, minimum, 0)
	return borrow == 0
}
