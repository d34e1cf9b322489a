package ledger

import "errors"

var (
	ErrUnauthorized         = errors.New("unauthorized: only the authority can perform this action")
	ErrNullifierAlreadyUsed = errors.New("nullifier already used")
	ErrVoteClosed           = errors.New("vote is closed")
	ErrVoteStillOpen        = errors.New("vote is still open")
	ErrVoteAlreadyRevealed  = errors.New("vote already revealed")
	ErrVoteExists           = errors.New("vote already exists")
	ErrVoteNotFound         = errors.New("vote not found")
	ErrVoteNotReady         = errors.New("vote tally not initialized yet")
	ErrInvalidOptions       = errors.New("invalid number of options")
	ErrAuthorityMismatch    = errors.New("stored authority does not match the configured one")
)
