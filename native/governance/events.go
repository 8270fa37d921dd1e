package governance

import (
	"strconv"

	"architex/core/events"
)

const (
	// EventTypeProposed is emitted when a new proposal is accepted.
	EventTypeProposed = "gov.proposed"
	// EventTypeVote is emitted when a ballot is recorded.
	EventTypeVote = "gov.vote"
	// EventTypeFinalized is emitted when the verdict is settled.
	EventTypeFinalized = "gov.finalized"
	// EventTypeExecuted is emitted when a passed proposal is executed.
	EventTypeExecuted = "gov.executed"
)

func proposalAttributes(p *Proposal) map[string]string {
	attrs := make(map[string]string)
	if p == nil {
		return attrs
	}
	attrs["id"] = formatID(p.ID)
	attrs["creator"] = p.Creator
	attrs["status"] = p.Status.String()
	if p.VotesFor != nil {
		attrs["votesFor"] = p.VotesFor.String()
	}
	if p.VotesAgainst != nil {
		attrs["votesAgainst"] = p.VotesAgainst.String()
	}
	attrs["quorumReached"] = strconv.FormatBool(p.QuorumReached)
	return attrs
}

func newProposedEvent(p *Proposal) events.Event {
	attrs := proposalAttributes(p)
	if p != nil {
		attrs["title"] = p.Title
		attrs["votingEnd"] = strconv.FormatInt(p.VotingEnd, 10)
	}
	return events.Event{Type: EventTypeProposed, Attributes: attrs}
}

func newVoteEvent(p *Proposal, v *Vote) events.Event {
	attrs := proposalAttributes(p)
	if v != nil {
		attrs["voter"] = v.Voter
		attrs["support"] = strconv.FormatBool(v.Support)
		if v.Power != nil {
			attrs["power"] = v.Power.String()
		}
	}
	return events.Event{Type: EventTypeVote, Attributes: attrs}
}

func newFinalizedEvent(p *Proposal, t *Tally) events.Event {
	attrs := proposalAttributes(p)
	if t != nil {
		attrs["passed"] = strconv.FormatBool(t.Passed)
		if t.NetworkPower != nil {
			attrs["networkPower"] = t.NetworkPower.String()
		}
	}
	return events.Event{Type: EventTypeFinalized, Attributes: attrs}
}

func newExecutedEvent(p *Proposal) events.Event {
	return events.Event{Type: EventTypeExecuted, Attributes: proposalAttributes(p)}
}
