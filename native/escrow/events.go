package escrow

import (
	"math/big"
	"strconv"

	"architex/core/events"
	"architex/native/settlement"
)

const (
	// EventTypeCreated is emitted when a new escrow is persisted.
	EventTypeCreated = "escrow.created"
	// EventTypeClaimed is emitted when a provider claims an open contract.
	EventTypeClaimed = "escrow.claimed"
	// EventTypeSubmitted is emitted when work is delivered.
	EventTypeSubmitted = "escrow.submitted"
	// EventTypeReleased is emitted when a contract settles in full.
	EventTypeReleased = "escrow.released"
	// EventTypeMilestoneReleased is emitted per milestone payout.
	EventTypeMilestoneReleased = "escrow.milestone_released"
	// EventTypeFrozen is emitted when a contract enters arbitration hold.
	EventTypeFrozen = "escrow.frozen"
	// EventTypeConfiscated is emitted when remaining funds move to treasury.
	EventTypeConfiscated = "escrow.confiscated"
	// EventTypeResolved is emitted when a ruling settles a frozen contract.
	EventTypeResolved = "escrow.resolved"
	// EventTypeDeposited is emitted when a payment credits an account.
	EventTypeDeposited = "escrow.deposited"
	// EventTypeStaked is emitted when balance moves into governance stake.
	EventTypeStaked = "escrow.staked"
	// EventTypeFeedback is emitted when a settled contract receives
	// party feedback.
	EventTypeFeedback = "escrow.feedback"
)

func baseAttributes(c *Contract) map[string]string {
	attrs := make(map[string]string)
	if c == nil {
		return attrs
	}
	attrs["id"] = c.ID
	attrs["client"] = c.Client
	if c.Provider != "" {
		attrs["provider"] = c.Provider
	}
	if c.Amount != nil {
		attrs["amount"] = c.Amount.String()
	}
	attrs["status"] = c.Status.String()
	return attrs
}

func newCreatedEvent(c *Contract) events.Event {
	attrs := baseAttributes(c)
	if c != nil {
		attrs["milestones"] = strconv.Itoa(len(c.Milestones))
		attrs["feeBps"] = strconv.FormatUint(uint64(c.FeeBps), 10)
	}
	return events.Event{Type: EventTypeCreated, Attributes: attrs}
}

func newClaimedEvent(c *Contract) events.Event {
	return events.Event{Type: EventTypeClaimed, Attributes: baseAttributes(c)}
}

func newSubmittedEvent(c *Contract) events.Event {
	return events.Event{Type: EventTypeSubmitted, Attributes: baseAttributes(c)}
}

func splitAttributes(attrs map[string]string, split settlement.Split) map[string]string {
	if split.Fee != nil {
		attrs["fee"] = split.Fee.String()
	}
	if split.Payout != nil {
		attrs["payout"] = split.Payout.String()
	}
	return attrs
}

func newReleasedEvent(c *Contract, split settlement.Split) events.Event {
	return events.Event{Type: EventTypeReleased, Attributes: splitAttributes(baseAttributes(c), split)}
}

func newMilestoneReleasedEvent(c *Contract, index int, split settlement.Split) events.Event {
	attrs := splitAttributes(baseAttributes(c), split)
	attrs["milestone"] = strconv.Itoa(index)
	return events.Event{Type: EventTypeMilestoneReleased, Attributes: attrs}
}

func newFrozenEvent(c *Contract) events.Event {
	return events.Event{Type: EventTypeFrozen, Attributes: baseAttributes(c)}
}

func newConfiscatedEvent(c *Contract) events.Event {
	attrs := baseAttributes(c)
	if c != nil && c.Reason != "" {
		attrs["reason"] = c.Reason
	}
	return events.Event{Type: EventTypeConfiscated, Attributes: attrs}
}

func newDepositedEvent(account string, amount *big.Int) events.Event {
	return events.Event{Type: EventTypeDeposited, Attributes: map[string]string{
		"account": account,
		"amount":  amount.String(),
	}}
}

func newStakedEvent(account string, amount *big.Int) events.Event {
	return events.Event{Type: EventTypeStaked, Attributes: map[string]string{
		"account": account,
		"amount":  amount.String(),
	}}
}

func newFeedbackEvent(c *Contract, from, recipient string) events.Event {
	attrs := baseAttributes(c)
	attrs["from"] = from
	attrs["recipient"] = recipient
	return events.Event{Type: EventTypeFeedback, Attributes: attrs}
}

func newResolvedEvent(c *Contract, winner string, winnerSplitBps uint32) events.Event {
	attrs := baseAttributes(c)
	attrs["winner"] = winner
	attrs["winnerSplitBps"] = strconv.FormatUint(uint64(winnerSplitBps), 10)
	return events.Event{Type: EventTypeResolved, Attributes: attrs}
}
