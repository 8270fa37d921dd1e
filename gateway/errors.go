package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"architex/native/arbitration"
	"architex/native/escrow"
	"architex/native/governance"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine sentinels onto HTTP status codes: unknown resources
// are 404, state-machine violations and duplicates are 409, failed
// preconditions are 422, and everything else is a 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, escrow.ErrNotFound),
		errors.Is(err, escrow.ErrMilestoneNotFound),
		errors.Is(err, arbitration.ErrDisputeNotFound),
		errors.Is(err, governance.ErrProposalNotFound):
		return http.StatusNotFound
	case errors.Is(err, escrow.ErrInvalidState),
		errors.Is(err, escrow.ErrAlreadyReleased),
		errors.Is(err, escrow.ErrDuplicateContract),
		errors.Is(err, arbitration.ErrDuplicateDispute),
		errors.Is(err, arbitration.ErrDisputeClosed),
		errors.Is(err, arbitration.ErrNotAssigned),
		errors.Is(err, arbitration.ErrArbitratorMismatch),
		errors.Is(err, governance.ErrAlreadyVoted),
		errors.Is(err, governance.ErrVotingClosed),
		errors.Is(err, governance.ErrVotingOpen),
		errors.Is(err, governance.ErrNotPassed):
		return http.StatusConflict
	case errors.Is(err, escrow.ErrInsufficientBalance),
		errors.Is(err, escrow.ErrProviderMismatch),
		errors.Is(err, arbitration.ErrNotParty),
		errors.Is(err, arbitration.ErrNoEligibleArbitrator),
		errors.Is(err, governance.ErrInsufficientPower):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
