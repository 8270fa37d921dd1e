package arbitration

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"architex/core/events"
	"architex/core/types"
	"architex/native/escrow"
)

type engineState interface {
	DisputePut(*Dispute) error
	DisputeGet(id string) (*Dispute, bool, error)
	DisputeByContract(contractID string) (*Dispute, bool, error)
	ArbitratorPut(*ArbitratorProfile) error
	ArbitratorGet(id string) (*ArbitratorProfile, bool, error)
	ArbitratorList() ([]*ArbitratorProfile, error)
	InteractionPut(*InteractionRecord) error
	HasInteraction(a, b string) (bool, error)
	GetAccount(id string) (*types.Account, error)
	PutAccount(id string, account *types.Account) error
}

// escrowBackend is the slice of the escrow engine the dispute lifecycle
// drives: freezing on filing and applying the ruling split on resolution.
type escrowBackend interface {
	Get(id string) (*escrow.Contract, error)
	Freeze(id string) (*escrow.Contract, error)
	ResolveRuling(id, winner string, winnerSplitBps uint32) (*escrow.Contract, error)
}

// Engine runs the dispute lifecycle: filing freezes the contract, the COI
// matcher proposes an arbitrator, and the ruling settles the frozen funds.
type Engine struct {
	state   engineState
	escrow  escrowBackend
	emitter events.Emitter
	nowFn   func() int64
	idFn    func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an arbitration engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		idFn:    func() string { return uuid.NewString() },
		locks:   make(map[string]*sync.Mutex),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEscrow wires the escrow engine the dispute lifecycle drives.
func (e *Engine) SetEscrow(backend escrowBackend) { e.escrow = backend }

// SetEmitter configures the event emitter. Nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetIDFunc overrides dispute/evidence id generation for tests.
func (e *Engine) SetIDFunc(id func() string) {
	if id == nil {
		e.idFn = func() string { return uuid.NewString() }
		return
	}
	e.idFn = id
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) lockDispute(key string) func() {
	e.mu.Lock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (e *Engine) loadDispute(id string) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	dispute, ok, err := e.state.DisputeGet(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDisputeNotFound, id)
	}
	return dispute, nil
}

// Open files a dispute against a contract. The initiator must be one of the
// contract parties; the counterparty becomes the respondent. Filing freezes
// the contract, so settlement is blocked until a ruling or confiscation.
func (e *Engine) Open(contractID, initiator, reason string) (*Dispute, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if e.escrow == nil {
		return nil, fmt.Errorf("arbitration: escrow backend not configured")
	}
	contractID = strings.TrimSpace(contractID)
	initiator = strings.TrimSpace(initiator)
	if contractID == "" || initiator == "" {
		return nil, fmt.Errorf("arbitration: contract id and initiator required")
	}
	unlock := e.lockDispute("contract/" + contractID)
	defer unlock()

	if existing, ok, err := e.state.DisputeByContract(contractID); err != nil {
		return nil, err
	} else if ok && existing.Status != DisputeResolved {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDispute, contractID)
	}
	contract, err := e.escrow.Get(contractID)
	if err != nil {
		return nil, err
	}
	var respondent string
	switch initiator {
	case contract.Client:
		respondent = contract.Provider
	case contract.Provider:
		respondent = contract.Client
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotParty, initiator)
	}
	if respondent == "" {
		return nil, fmt.Errorf("arbitration: contract has no counterparty to dispute")
	}
	if _, err := e.escrow.Freeze(contractID); err != nil {
		return nil, err
	}
	now := e.now()
	dispute := &Dispute{
		ID:         e.idFn(),
		ContractID: contractID,
		Initiator:  initiator,
		Respondent: respondent,
		Reason:     strings.TrimSpace(reason),
		Status:     DisputeOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	e.emit(newOpenedEvent(dispute))
	return dispute.Clone(), nil
}

// Get returns the stored dispute.
func (e *Engine) Get(id string) (*Dispute, error) {
	return e.loadDispute(id)
}

// SubmitEvidence appends an evidence record from one of the dispute
// parties. Evidence is accepted until the dispute is resolved.
func (e *Engine) SubmitEvidence(disputeID, submitter, description, uri string) (*Dispute, error) {
	submitter = strings.TrimSpace(submitter)
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("arbitration: evidence description required")
	}
	unlock := e.lockDispute(disputeID)
	defer unlock()

	dispute, err := e.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == DisputeResolved {
		return nil, fmt.Errorf("%w: %s", ErrDisputeClosed, dispute.ID)
	}
	if submitter != dispute.Initiator && submitter != dispute.Respondent {
		return nil, fmt.Errorf("%w: %s", ErrNotParty, submitter)
	}
	now := e.now()
	dispute.Evidence = append(dispute.Evidence, &Evidence{
		ID:          e.idFn(),
		Submitter:   submitter,
		Description: description,
		URI:         strings.TrimSpace(uri),
		SubmittedAt: now,
	})
	dispute.UpdatedAt = now
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	e.emit(newEvidenceEvent(dispute, submitter))
	return dispute.Clone(), nil
}

// EligibleArbitrators runs the conflict-of-interest filter over the stored
// arbitrator pool for the dispute.
func (e *Engine) EligibleArbitrators(disputeID string) ([]*ArbitratorProfile, error) {
	dispute, err := e.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}
	candidates, err := e.state.ArbitratorList()
	if err != nil {
		return nil, err
	}
	return FindEligibleArbitrators(dispute, candidates, e.state)
}

// AssignArbitrator selects the highest-ranked eligible arbitrator for an
// open dispute. When the filter leaves no candidate the dispute stays open
// and unassigned; callers retry after the pool changes.
func (e *Engine) AssignArbitrator(disputeID string) (*Dispute, error) {
	unlock := e.lockDispute(disputeID)
	defer unlock()

	dispute, err := e.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status != DisputeOpen {
		return nil, fmt.Errorf("%w: dispute in status %s", ErrDisputeClosed, dispute.Status)
	}
	candidates, err := e.state.ArbitratorList()
	if err != nil {
		return nil, err
	}
	eligible, err := FindEligibleArbitrators(dispute, candidates, e.state)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, fmt.Errorf("%w: dispute %s", ErrNoEligibleArbitrator, dispute.ID)
	}
	now := e.now()
	dispute.ArbitratorID = eligible[0].ID
	dispute.Status = DisputeArbitration
	dispute.UpdatedAt = now
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	e.emit(newAssignedEvent(dispute))
	return dispute.Clone(), nil
}

// Resolve records the arbitrator's ruling and applies it to the frozen
// contract: the winner receives the awarded share of the remaining balance.
// The losing party's dispute record and the arbitrator's case count are
// updated, and ruling interactions are recorded so the arbitrator is
// excluded from future cases involving either party.
func (e *Engine) Resolve(disputeID, arbitratorID, winner string, winnerSplitBps uint32, notes string) (*Dispute, error) {
	arbitratorID = strings.TrimSpace(arbitratorID)
	winner = strings.TrimSpace(winner)
	unlock := e.lockDispute(disputeID)
	defer unlock()

	dispute, err := e.loadDispute(disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.Status == DisputeResolved {
		return nil, fmt.Errorf("%w: %s", ErrDisputeClosed, dispute.ID)
	}
	if dispute.ArbitratorID == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotAssigned, dispute.ID)
	}
	if arbitratorID != dispute.ArbitratorID {
		return nil, fmt.Errorf("%w: expected %s", ErrArbitratorMismatch, dispute.ArbitratorID)
	}
	var loser string
	switch winner {
	case dispute.Initiator:
		loser = dispute.Respondent
	case dispute.Respondent:
		loser = dispute.Initiator
	default:
		return nil, fmt.Errorf("%w: winner %s", ErrNotParty, winner)
	}
	if e.escrow == nil {
		return nil, fmt.Errorf("arbitration: escrow backend not configured")
	}
	if _, err := e.escrow.ResolveRuling(dispute.ContractID, winner, winnerSplitBps); err != nil {
		return nil, err
	}
	now := e.now()
	dispute.Ruling = &Ruling{
		Winner:         winner,
		WinnerSplitBps: winnerSplitBps,
		Notes:          strings.TrimSpace(notes),
		IssuedAt:       now,
	}
	dispute.Status = DisputeResolved
	dispute.UpdatedAt = now
	if err := e.state.DisputePut(dispute); err != nil {
		return nil, err
	}
	if err := e.recordLoss(loser); err != nil {
		return nil, err
	}
	if err := e.recordCaseSolved(dispute.ArbitratorID); err != nil {
		return nil, err
	}
	for _, party := range []string{dispute.Initiator, dispute.Respondent} {
		if err := e.RecordInteraction(InteractionRuling, dispute.ArbitratorID, party); err != nil {
			return nil, err
		}
	}
	e.emit(newResolvedEvent(dispute))
	return dispute.Clone(), nil
}

func (e *Engine) recordLoss(party string) error {
	if party == "" {
		return nil
	}
	account, err := e.state.GetAccount(party)
	if err != nil {
		return err
	}
	account = account.Normalize()
	account.DisputesLost++
	return e.state.PutAccount(party, account)
}

func (e *Engine) recordCaseSolved(arbitratorID string) error {
	profile, ok, err := e.state.ArbitratorGet(arbitratorID)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	profile.CasesSolved++
	return e.state.ArbitratorPut(profile)
}

// RegisterArbitrator adds or updates an arbitrator profile in the pool.
func (e *Engine) RegisterArbitrator(profile *ArbitratorProfile) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if profile == nil || strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("arbitration: arbitrator id required")
	}
	stored := profile.Clone()
	stored.ID = strings.TrimSpace(stored.ID)
	return e.state.ArbitratorPut(stored)
}

// RecordInteraction persists a relationship record between two parties for
// future conflict-of-interest checks.
func (e *Engine) RecordInteraction(kind InteractionKind, partyA, partyB string) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	partyA = strings.TrimSpace(partyA)
	partyB = strings.TrimSpace(partyB)
	if partyA == "" || partyB == "" || partyA == partyB {
		return fmt.Errorf("arbitration: two distinct parties required")
	}
	if !kind.Valid() {
		return fmt.Errorf("arbitration: invalid interaction kind %q", kind)
	}
	return e.state.InteractionPut(&InteractionRecord{
		ID:         e.idFn(),
		Kind:       kind,
		PartyA:     partyA,
		PartyB:     partyB,
		RecordedAt: e.now(),
	})
}
