package ledger

import "errors"

// Validation errors — caller mistakes, rejected before any state change.
var (
	ErrUnknownProtocol   = errors.New("unknown lending protocol")
	ErrUnknownCollateral = errors.New("unknown collateral")
	ErrUnknownStake      = errors.New("unknown stake")
	ErrNotOwner          = errors.New("caller is not the owner")
	ErrOverRepay         = errors.New("repay amount exceeds outstanding loan")
)

// Policy violations — business-rule breaches, rejected with context so the
// caller can explain current value vs. limit. Never retried automatically.
var (
	ErrLTVExceeded     = errors.New("borrow would exceed max LTV")
	ErrStillLocked     = errors.New("stake is still in lockup")
	ErrOutstandingLoan = errors.New("collateral has an outstanding loan")
	ErrNotAllowed      = errors.New("collateral type not accepted by pool")
	ErrAssetMismatch   = errors.New("borrow asset differs from outstanding loan asset")
)

// ErrNothingToClaim is a benign no-op, not a failure: callers may surface it
// as an informational result rather than an error.
var ErrNothingToClaim = errors.New("no rewards to claim")
