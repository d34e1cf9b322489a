package circuits

import (
	"fmt"
	"math/bits"
)

// RoyaltyVote is a single weighted ballot.
type RoyaltyVote struct {
	Choice uint8
	Weight uint64
}

// VoteTally holds the per-option counters of a vote and their sum.
type VoteTally struct {
	Counts      [MaxOptions]uint64
	TotalWeight uint64
}

// InitVoteTally returns an all-zero tally.
func InitVoteTally() VoteTally {
	return VoteTally{}
}

// CastVote adds the ballot weight to the chosen counter and to the total.
// The ballot is dropped, leaving the tally unchanged, if the choice is not
// below MaxOptions or if either addition would overflow.
func CastVote(t VoteTally, v RoyaltyVote) VoteTally {
	return CastVoteBounded(t, v, MaxOptions)
}

// CastVoteBounded is CastVote with a public option count. Choices at or
// above min(optionCount, MaxOptions) are dropped.
func CastVoteBounded(t VoteTally, v RoyaltyVote, optionCount uint8) VoteTally {
	bound := uint64(optionCount)
	bound = selectU64(lessMask(bound, MaxOptions), bound, MaxOptions)
	choice := uint64(v.Choice)

	total, carry := bits.Add64(t.TotalWeight, v.Weight, 0)
	accept := lessMask(choice, bound) & (carry - 1)

	var sums [MaxOptions]uint64
	for i := range t.Counts {
		var c uint64
		sums[i], c = bits.Add64(t.Counts[i], v.Weight, 0)
		accept &^= eqMask(uint64(i), choice) & -c
	}

	var next VoteTally
	for i := range t.Counts {
		hit := eqMask(uint64(i), choice) & accept
		next.Counts[i] = selectU64(hit, sums[i], t.Counts[i])
	}
	next.TotalWeight = selectU64(accept, total, t.TotalWeight)
	return next
}

// RevealWinner returns the index of the largest counter. The scan uses a
// strict comparison so the first maximal index wins ties.
func RevealWinner(t VoteTally) uint8 {
	best := t.Counts[0]
	winner := uint64(0)
	for i := 1; i < MaxOptions; i++ {
		greater := lessMask(best, t.Counts[i])
		best = selectU64(greater, t.Counts[i], best)
		winner = selectU64(greater, uint64(i), winner)
	}
	return uint8(winner)
}

// TallyState is the lifecycle state of a vote tally.
type TallyState uint8

const (
	TallyUninitialized TallyState = iota
	TallyOpen
	TallyClosed
)

func (s TallyState) String() string {
	switch s {
	case TallyUninitialized:
		return "uninitialized"
	case TallyOpen:
		return "open"
	case TallyClosed:
		return "closed"
	default:
		return fmt.Sprintf("TallyState(%d)", uint8(s))
	}
}

// Tally is a vote tally together with its lifecycle state. The zero value
// is an uninitialized tally.
type Tally struct {
	state  TallyState
	tally  VoteTally
	winner uint8
}

// State returns the current lifecycle state.
func (t *Tally) State() TallyState {
	return t.state
}

// Init resets the counters and opens the tally.
func (t *Tally) Init() error {
	if t.state != TallyUninitialized {
		return fmt.Errorf("%w: init on %s tally", ErrTallyState, t.state)
	}
	t.tally = InitVoteTally()
	t.state = TallyOpen
	return nil
}

// Cast applies a ballot to an open tally.
func (t *Tally) Cast(v RoyaltyVote) error {
	if t.state != TallyOpen {
		return fmt.Errorf("%w: cast on %s tally", ErrTallyState, t.state)
	}
	t.tally = CastVote(t.tally, v)
	return nil
}

// Reveal closes the tally and returns the winning option. Revealing a
// closed tally returns the same winner.
func (t *Tally) Reveal() (uint8, error) {
	switch t.state {
	case TallyOpen:
		t.winner = RevealWinner(t.tally)
		t.state = TallyClosed
		return t.winner, nil
	case TallyClosed:
		return t.winner, nil
	default:
		return 0, fmt.Errorf("%w: reveal on %s tally", ErrTallyState, t.state)
	}
}
