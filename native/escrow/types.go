package escrow

import (
	"fmt"
	"math/big"
	"strings"

	"architex/native/settlement"
)

// Status represents the lifecycle states of an escrowed contract. Terminal
// states never transition again; the record is retained for history.
type Status uint8

const (
	// StatusOpen marks a posted contract awaiting a provider claim.
	StatusOpen Status = iota
	// StatusAssigned marks a contract claimed by a provider.
	StatusAssigned
	// StatusSubmitted marks a contract whose work has been delivered and is
	// awaiting client approval.
	StatusSubmitted
	// StatusCompleted is the terminal happy path for contracts without
	// milestones: funds released in full.
	StatusCompleted
	// StatusLocked marks a milestone contract with all milestones still
	// held in the vault.
	StatusLocked
	// StatusPartiallyReleased marks a milestone contract with at least one
	// but not all milestones released.
	StatusPartiallyReleased
	// StatusReleased is the terminal happy path for milestone contracts:
	// every milestone released.
	StatusReleased
	// StatusFrozen marks a contract suspended pending dispute arbitration.
	StatusFrozen
	// StatusConfiscated marks a contract whose remaining balance was moved
	// to the treasury. Terminal.
	StatusConfiscated
	// StatusResolved marks a contract settled by an arbitration ruling.
	// Terminal.
	StatusResolved
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	return s <= StatusResolved
}

// Terminal reports whether the contract can never transition again.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusReleased, StatusConfiscated, StatusResolved:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer for events and API payloads.
func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "open"
	case StatusAssigned:
		return "assigned"
	case StatusSubmitted:
		return "submitted"
	case StatusCompleted:
		return "completed"
	case StatusLocked:
		return "locked"
	case StatusPartiallyReleased:
		return "partially_released"
	case StatusReleased:
		return "released"
	case StatusFrozen:
		return "frozen"
	case StatusConfiscated:
		return "confiscated"
	case StatusResolved:
		return "resolved"
	default:
		return "unknown"
	}
}

// MilestoneStatus is the state of an individual milestone.
type MilestoneStatus uint8

const (
	// MilestoneLocked indicates the milestone share is still held in the
	// vault.
	MilestoneLocked MilestoneStatus = iota
	// MilestoneReleased indicates the share has been paid out.
	MilestoneReleased
)

// String implements fmt.Stringer for events and API payloads.
func (s MilestoneStatus) String() string {
	switch s {
	case MilestoneLocked:
		return "locked"
	case MilestoneReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Milestone is a percentage-bounded share of the contract value that
// releases independently. Shares are basis points and must sum to the full
// share across a contract's milestones.
type Milestone struct {
	Name       string          `json:"name"`
	ShareBps   uint32          `json:"shareBps"`
	Amount     *big.Int        `json:"amount"`
	Status     MilestoneStatus `json:"status"`
	ReleasedAt int64           `json:"releasedAt,omitempty"`
}

// Clone returns a deep copy of the milestone.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	if m.Amount != nil {
		clone.Amount = new(big.Int).Set(m.Amount)
	}
	return &clone
}

// Contract captures the metadata and runtime status of a single escrowed
// agreement. Remaining tracks funds still held in the vault for this
// contract; it reaches zero exactly when the contract turns terminal.
type Contract struct {
	ID         string       `json:"id"`
	Client     string       `json:"client"`
	Provider   string       `json:"provider,omitempty"`
	Amount     *big.Int     `json:"amount"`
	Remaining  *big.Int     `json:"remaining"`
	FeeBps     uint32       `json:"feeBps"`
	Status     Status       `json:"status"`
	Milestones []*Milestone `json:"milestones,omitempty"`
	Memo       string       `json:"memo,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	FeedbackBy []string     `json:"feedbackBy,omitempty"`
	CreatedAt  int64        `json:"createdAt"`
	UpdatedAt  int64        `json:"updatedAt"`
}

// Clone returns a deep copy of the contract so callers can safely mutate the
// copy without affecting the stored instance.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if c.Remaining != nil {
		clone.Remaining = new(big.Int).Set(c.Remaining)
	} else {
		clone.Remaining = big.NewInt(0)
	}
	if len(c.Milestones) > 0 {
		clone.Milestones = make([]*Milestone, len(c.Milestones))
		for i, ms := range c.Milestones {
			clone.Milestones[i] = ms.Clone()
		}
	}
	if len(c.FeedbackBy) > 0 {
		clone.FeedbackBy = append([]string(nil), c.FeedbackBy...)
	}
	return &clone
}

// AllMilestonesReleased reports whether every milestone has been paid out.
func (c *Contract) AllMilestonesReleased() bool {
	if c == nil || len(c.Milestones) == 0 {
		return false
	}
	for _, ms := range c.Milestones {
		if ms == nil || ms.Status != MilestoneReleased {
			return false
		}
	}
	return true
}

// Sanitize validates and normalises the supplied contract, returning a
// cloned instance with non-nil amount fields. The original is not mutated.
func Sanitize(c *Contract) (*Contract, error) {
	if c == nil {
		return nil, fmt.Errorf("escrow: nil contract")
	}
	clone := c.Clone()
	clone.ID = strings.TrimSpace(clone.ID)
	if clone.ID == "" {
		return nil, fmt.Errorf("escrow: contract id required")
	}
	clone.Client = strings.TrimSpace(clone.Client)
	if clone.Client == "" {
		return nil, fmt.Errorf("escrow: client required")
	}
	clone.Provider = strings.TrimSpace(clone.Provider)
	if clone.Amount.Sign() < 0 {
		return nil, fmt.Errorf("escrow: amount must be non-negative")
	}
	if clone.Remaining.Sign() < 0 {
		return nil, fmt.Errorf("escrow: remaining must be non-negative")
	}
	if clone.FeeBps > settlement.MaxBps {
		return nil, fmt.Errorf("escrow: fee bps out of range: %d", clone.FeeBps)
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid status: %d", clone.Status)
	}
	if len(clone.Milestones) > 0 {
		var total uint64
		for i, ms := range clone.Milestones {
			if ms == nil {
				return nil, fmt.Errorf("escrow: milestone %d is nil", i)
			}
			if strings.TrimSpace(ms.Name) == "" {
				return nil, fmt.Errorf("escrow: milestone %d name required", i)
			}
			if ms.Amount == nil || ms.Amount.Sign() < 0 {
				return nil, fmt.Errorf("escrow: milestone %d amount must be non-negative", i)
			}
			total += uint64(ms.ShareBps)
		}
		if total != uint64(settlement.MaxBps) {
			return nil, fmt.Errorf("escrow: milestone shares sum to %d bps, want %d", total, settlement.MaxBps)
		}
	}
	return clone, nil
}
