package arbitration

import "errors"

var (
	// ErrDisputeNotFound marks lookups for unknown dispute identifiers.
	ErrDisputeNotFound = errors.New("arbitration: dispute not found")
	// ErrDuplicateDispute is returned when a contract already has a live
	// dispute.
	ErrDuplicateDispute = errors.New("arbitration: contract already disputed")
	// ErrDisputeClosed marks operations against resolved disputes.
	ErrDisputeClosed = errors.New("arbitration: dispute already resolved")
	// ErrNotParty marks dispute actions by accounts that are neither
	// initiator nor respondent.
	ErrNotParty = errors.New("arbitration: caller is not a dispute party")
	// ErrNoEligibleArbitrator is returned when the conflict-of-interest
	// filter leaves no candidate; assignment is deferred.
	ErrNoEligibleArbitrator = errors.New("arbitration: no eligible arbitrator")
	// ErrArbitratorMismatch marks rulings submitted by an arbitrator other
	// than the one assigned to the dispute.
	ErrArbitratorMismatch = errors.New("arbitration: arbitrator not assigned to dispute")
	// ErrNotAssigned marks rulings on disputes without an arbitrator.
	ErrNotAssigned = errors.New("arbitration: dispute has no arbitrator")

	errNilState = errors.New("arbitration: state not configured")
)
