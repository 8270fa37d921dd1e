package arbitration

import (
	"fmt"
	"strings"
)

// DisputeStatus tracks a dispute from filing through arbitrator ruling.
type DisputeStatus uint8

const (
	// DisputeOpen marks a filed dispute awaiting arbitrator assignment.
	DisputeOpen DisputeStatus = iota
	// DisputeArbitration marks a dispute under review by an assigned
	// arbitrator.
	DisputeArbitration
	// DisputeResolved marks a dispute closed by a ruling. Terminal.
	DisputeResolved
)

// Valid reports whether the status value is supported.
func (s DisputeStatus) Valid() bool { return s <= DisputeResolved }

// String implements fmt.Stringer for events and API payloads.
func (s DisputeStatus) String() string {
	switch s {
	case DisputeOpen:
		return "open"
	case DisputeArbitration:
		return "arbitration"
	case DisputeResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// Evidence is a single submission attached to a dispute by either party.
type Evidence struct {
	ID          string `json:"id"`
	Submitter   string `json:"submitter"`
	Description string `json:"description"`
	URI         string `json:"uri,omitempty"`
	SubmittedAt int64  `json:"submittedAt"`
}

// Ruling is the arbitrator's final determination. WinnerSplitBps is the
// share of the contract's remaining balance awarded to the winner.
type Ruling struct {
	Winner         string `json:"winner"`
	WinnerSplitBps uint32 `json:"winnerSplitBps"`
	Notes          string `json:"notes,omitempty"`
	IssuedAt       int64  `json:"issuedAt"`
}

// Dispute is a claim raised by one contract party against the other. The
// underlying contract is frozen for the dispute's entire lifetime.
type Dispute struct {
	ID           string        `json:"id"`
	ContractID   string        `json:"contractId"`
	Initiator    string        `json:"initiator"`
	Respondent   string        `json:"respondent"`
	Reason       string        `json:"reason,omitempty"`
	Status       DisputeStatus `json:"status"`
	ArbitratorID string        `json:"arbitratorId,omitempty"`
	Evidence     []*Evidence   `json:"evidence,omitempty"`
	Ruling       *Ruling       `json:"ruling,omitempty"`
	CreatedAt    int64         `json:"createdAt"`
	UpdatedAt    int64         `json:"updatedAt"`
}

// Clone returns a deep copy of the dispute.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	if len(d.Evidence) > 0 {
		clone.Evidence = make([]*Evidence, len(d.Evidence))
		for i, ev := range d.Evidence {
			if ev != nil {
				copied := *ev
				clone.Evidence[i] = &copied
			}
		}
	}
	if d.Ruling != nil {
		ruling := *d.Ruling
		clone.Ruling = &ruling
	}
	return &clone
}

// SanitizeDispute validates and normalises the dispute, returning a clone.
func SanitizeDispute(d *Dispute) (*Dispute, error) {
	if d == nil {
		return nil, fmt.Errorf("arbitration: nil dispute")
	}
	clone := d.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("arbitration: dispute id required")
	}
	clone.ContractID = strings.TrimSpace(clone.ContractID)
	if clone.ContractID == "" {
		return nil, fmt.Errorf("arbitration: contract id required")
	}
	clone.Initiator = strings.TrimSpace(clone.Initiator)
	clone.Respondent = strings.TrimSpace(clone.Respondent)
	if clone.Initiator == "" {
		return nil, fmt.Errorf("arbitration: initiator required")
	}
	if clone.Initiator == clone.Respondent {
		return nil, fmt.Errorf("arbitration: initiator and respondent must differ")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("arbitration: invalid status: %d", clone.Status)
	}
	return clone, nil
}

// ArbitratorProfile is the read-only reference record consulted by the
// matcher. Only CasesSolved is mutated here, and only on resolution.
type ArbitratorProfile struct {
	ID              string `json:"id"`
	ReputationScore uint32 `json:"reputationScore"`
	Specialty       string `json:"specialty,omitempty"`
	CasesSolved     uint64 `json:"casesSolved"`
}

// Clone returns a copy of the profile.
func (p *ArbitratorProfile) Clone() *ArbitratorProfile {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// InteractionKind labels the relationship recorded between two parties.
type InteractionKind string

const (
	InteractionTransaction InteractionKind = "transaction"
	InteractionRuling      InteractionKind = "ruling"
	InteractionSocial      InteractionKind = "social"
	InteractionAffiliate   InteractionKind = "affiliate"
)

// Valid reports whether the kind is one of the recorded relationship types.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionTransaction, InteractionRuling, InteractionSocial, InteractionAffiliate:
		return true
	default:
		return false
	}
}

// InteractionRecord is a prior relationship between two parties. Any record
// between an arbitrator and a dispute party disqualifies that arbitrator
// from the case.
type InteractionRecord struct {
	ID         string          `json:"id"`
	Kind       InteractionKind `json:"kind"`
	PartyA     string          `json:"partyA"`
	PartyB     string          `json:"partyB"`
	RecordedAt int64           `json:"recordedAt"`
}
