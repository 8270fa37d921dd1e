package governance

import "math/big"

// ProposalStatus enumerates the lifecycle phases a proposal transitions
// through as it accrues votes and, if passed, is executed.
type ProposalStatus uint8

const (
	// ProposalStatusActive identifies proposals accepting votes.
	ProposalStatusActive ProposalStatus = iota
	// ProposalStatusPassed marks proposals that met quorum and the pass
	// threshold at finalization and are awaiting execution.
	ProposalStatusPassed
	// ProposalStatusRejected marks proposals that failed quorum or the
	// pass threshold. Terminal.
	ProposalStatusRejected
	// ProposalStatusExecuted indicates the proposal action has been
	// applied. Terminal.
	ProposalStatusExecuted
)

// Valid reports whether the status value is supported.
func (s ProposalStatus) Valid() bool { return s <= ProposalStatusExecuted }

// Terminal reports whether the proposal can change no further.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusRejected || s == ProposalStatusExecuted
}

// String implements fmt.Stringer for events and API payloads.
func (s ProposalStatus) String() string {
	switch s {
	case ProposalStatusActive:
		return "active"
	case ProposalStatusPassed:
		return "passed"
	case ProposalStatusRejected:
		return "rejected"
	case ProposalStatusExecuted:
		return "executed"
	default:
		return "unknown"
	}
}

// Proposal carries the metadata and the running tally for a governance
// proposal. VotesFor and VotesAgainst accumulate voting power, not ballot
// counts, so the struct mirrors the persistence contract and off-chain
// indexers need no additional decoding.
type Proposal struct {
	ID            uint64         `json:"id"`
	Title         string         `json:"title"`
	Summary       string         `json:"summary,omitempty"`
	Creator       string         `json:"creator"`
	Status        ProposalStatus `json:"status"`
	VotesFor      *big.Int       `json:"votesFor"`
	VotesAgainst  *big.Int       `json:"votesAgainst"`
	QuorumReached bool           `json:"quorumReached"`
	VotingStart   int64          `json:"votingStart"`
	VotingEnd     int64          `json:"votingEnd"`
	UpdatedAt     int64          `json:"updatedAt"`
}

// Clone returns a deep copy of the proposal.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	if p.VotesFor != nil {
		clone.VotesFor = new(big.Int).Set(p.VotesFor)
	}
	if p.VotesAgainst != nil {
		clone.VotesAgainst = new(big.Int).Set(p.VotesAgainst)
	}
	return &clone
}

// Normalize ensures the tally fields are non-nil.
func (p *Proposal) Normalize() *Proposal {
	if p == nil {
		return nil
	}
	if p.VotesFor == nil {
		p.VotesFor = big.NewInt(0)
	}
	if p.VotesAgainst == nil {
		p.VotesAgainst = big.NewInt(0)
	}
	return p
}

// Vote is a single participant's ballot. One ballot per (proposal, voter)
// pair is accepted; later submissions are rejected rather than overwritten.
type Vote struct {
	ProposalID uint64   `json:"proposalId"`
	Voter      string   `json:"voter"`
	Support    bool     `json:"support"`
	Power      *big.Int `json:"power"`
	Timestamp  int64    `json:"timestamp"`
}

// Clone returns a deep copy of the vote.
func (v *Vote) Clone() *Vote {
	if v == nil {
		return nil
	}
	clone := *v
	if v.Power != nil {
		clone.Power = new(big.Int).Set(v.Power)
	}
	return &clone
}

// Tally is the finalization snapshot: the accumulated power split, the
// network power the quorum was measured against, and the verdict.
type Tally struct {
	VotesFor      *big.Int `json:"votesFor"`
	VotesAgainst  *big.Int `json:"votesAgainst"`
	NetworkPower  *big.Int `json:"networkPower"`
	QuorumReached bool     `json:"quorumReached"`
	Passed        bool     `json:"passed"`
}
