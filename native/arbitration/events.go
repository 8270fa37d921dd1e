package arbitration

import (
	"strconv"

	"architex/core/events"
)

const (
	// EventTypeOpened is emitted when a dispute is filed.
	EventTypeOpened = "dispute.opened"
	// EventTypeEvidence is emitted per evidence submission.
	EventTypeEvidence = "dispute.evidence"
	// EventTypeAssigned is emitted when an arbitrator takes the case.
	EventTypeAssigned = "dispute.assigned"
	// EventTypeResolved is emitted when a ruling closes the dispute.
	EventTypeResolved = "dispute.resolved"
)

func disputeAttributes(d *Dispute) map[string]string {
	attrs := make(map[string]string)
	if d == nil {
		return attrs
	}
	attrs["id"] = d.ID
	attrs["contract"] = d.ContractID
	attrs["initiator"] = d.Initiator
	attrs["respondent"] = d.Respondent
	attrs["status"] = d.Status.String()
	if d.ArbitratorID != "" {
		attrs["arbitrator"] = d.ArbitratorID
	}
	return attrs
}

func newOpenedEvent(d *Dispute) events.Event {
	return events.Event{Type: EventTypeOpened, Attributes: disputeAttributes(d)}
}

func newEvidenceEvent(d *Dispute, submitter string) events.Event {
	attrs := disputeAttributes(d)
	attrs["submitter"] = submitter
	attrs["evidenceCount"] = strconv.Itoa(len(d.Evidence))
	return events.Event{Type: EventTypeEvidence, Attributes: attrs}
}

func newAssignedEvent(d *Dispute) events.Event {
	return events.Event{Type: EventTypeAssigned, Attributes: disputeAttributes(d)}
}

func newResolvedEvent(d *Dispute) events.Event {
	attrs := disputeAttributes(d)
	if d != nil && d.Ruling != nil {
		attrs["winner"] = d.Ruling.Winner
		attrs["winnerSplitBps"] = strconv.FormatUint(uint64(d.Ruling.WinnerSplitBps), 10)
	}
	return events.Event{Type: EventTypeResolved, Attributes: attrs}
}
