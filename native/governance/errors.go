package governance

import "errors"

var (
	// ErrProposalNotFound is returned when the proposal id is unknown.
	ErrProposalNotFound = errors.New("governance: proposal not found")
	// ErrInsufficientPower is returned when the creator's voting power is
	// below the proposal floor.
	ErrInsufficientPower = errors.New("governance: insufficient voting power")
	// ErrAlreadyVoted is returned for a second ballot from the same voter
	// on the same proposal. The recorded tally is untouched.
	ErrAlreadyVoted = errors.New("governance: already voted")
	// ErrVotingClosed is returned when a ballot arrives after the voting
	// window or once the proposal left the active status.
	ErrVotingClosed = errors.New("governance: voting closed")
	// ErrVotingOpen is returned when finalization is attempted before the
	// voting window has elapsed.
	ErrVotingOpen = errors.New("governance: voting still in progress")
	// ErrNotPassed is returned when execution is attempted on a proposal
	// that did not pass.
	ErrNotPassed = errors.New("governance: proposal not passed")

	errNilState = errors.New("governance: state not configured")
)
