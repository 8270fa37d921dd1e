package escrow

import "errors"

var (
	// ErrNotFound marks lookups for contract identifiers with no record.
	ErrNotFound = errors.New("escrow: contract not found")
	// ErrDuplicateContract is returned when creating an escrow whose
	// identifier already exists.
	ErrDuplicateContract = errors.New("escrow: contract already exists")
	// ErrInvalidState marks operations attempted from a state that does not
	// permit them. The stored record is left untouched.
	ErrInvalidState = errors.New("escrow: invalid state for operation")
	// ErrAlreadyReleased is returned when freezing a contract whose funds
	// have already been fully paid out.
	ErrAlreadyReleased = errors.New("escrow: funds already released")
	// ErrMilestoneNotFound marks release attempts against milestone indexes
	// that do not exist on the contract.
	ErrMilestoneNotFound = errors.New("escrow: milestone not found")
	// ErrInsufficientBalance marks escrow creation against a client account
	// that cannot cover the contract amount.
	ErrInsufficientBalance = errors.New("escrow: insufficient balance")
	// ErrProviderMismatch marks provider-scoped operations invoked by a
	// party other than the assigned provider.
	ErrProviderMismatch = errors.New("escrow: provider mismatch")

	errNilState = errors.New("escrow: state not configured")
)
