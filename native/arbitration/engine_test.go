package arbitration

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"architex/core/events"
	"architex/core/types"
	"architex/native/escrow"
)

type mockState struct {
	disputes     map[string]*Dispute
	byContract   map[string]string
	arbitrators  []*ArbitratorProfile
	interactions map[string]bool
	accounts     map[string]*types.Account
}

func newMockState() *mockState {
	return &mockState{
		disputes:     make(map[string]*Dispute),
		byContract:   make(map[string]string),
		interactions: make(map[string]bool),
		accounts:     make(map[string]*types.Account),
	}
}

func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

func (m *mockState) DisputePut(d *Dispute) error {
	sanitized, err := SanitizeDispute(d)
	if err != nil {
		return err
	}
	m.disputes[sanitized.ID] = sanitized.Clone()
	m.byContract[sanitized.ContractID] = sanitized.ID
	return nil
}

func (m *mockState) DisputeGet(id string) (*Dispute, bool, error) {
	dispute, ok := m.disputes[id]
	if !ok {
		return nil, false, nil
	}
	return dispute.Clone(), true, nil
}

func (m *mockState) DisputeByContract(contractID string) (*Dispute, bool, error) {
	id, ok := m.byContract[contractID]
	if !ok {
		return nil, false, nil
	}
	return m.DisputeGet(id)
}

func (m *mockState) ArbitratorPut(p *ArbitratorProfile) error {
	for i, existing := range m.arbitrators {
		if existing.ID == p.ID {
			m.arbitrators[i] = p.Clone()
			return nil
		}
	}
	m.arbitrators = append(m.arbitrators, p.Clone())
	return nil
}

func (m *mockState) ArbitratorGet(id string) (*ArbitratorProfile, bool, error) {
	for _, p := range m.arbitrators {
		if p.ID == id {
			return p.Clone(), true, nil
		}
	}
	return nil, false, nil
}

func (m *mockState) ArbitratorList() ([]*ArbitratorProfile, error) {
	out := make([]*ArbitratorProfile, len(m.arbitrators))
	for i, p := range m.arbitrators {
		out[i] = p.Clone()
	}
	return out, nil
}

func (m *mockState) InteractionPut(r *InteractionRecord) error {
	m.interactions[pairKey(r.PartyA, r.PartyB)] = true
	return nil
}

func (m *mockState) HasInteraction(a, b string) (bool, error) {
	return m.interactions[pairKey(a, b)], nil
}

func (m *mockState) GetAccount(id string) (*types.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return (&types.Account{}).Normalize(), nil
	}
	return account.Clone(), nil
}

func (m *mockState) PutAccount(id string, account *types.Account) error {
	m.accounts[id] = account.Clone()
	return nil
}

type mockEscrow struct {
	contracts map[string]*escrow.Contract
	frozen    []string
	resolved  []string
}

func newMockEscrow() *mockEscrow {
	return &mockEscrow{contracts: make(map[string]*escrow.Contract)}
}

func (m *mockEscrow) add(id, client, provider string, status escrow.Status) {
	m.contracts[id] = &escrow.Contract{
		ID:        id,
		Client:    client,
		Provider:  provider,
		Amount:    big.NewInt(1000),
		Remaining: big.NewInt(1000),
		Status:    status,
	}
}

func (m *mockEscrow) Get(id string) (*escrow.Contract, error) {
	contract, ok := m.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", escrow.ErrNotFound, id)
	}
	return contract.Clone(), nil
}

func (m *mockEscrow) Freeze(id string) (*escrow.Contract, error) {
	contract, ok := m.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", escrow.ErrNotFound, id)
	}
	if contract.Status.Terminal() {
		return nil, escrow.ErrAlreadyReleased
	}
	contract.Status = escrow.StatusFrozen
	m.frozen = append(m.frozen, id)
	return contract.Clone(), nil
}

func (m *mockEscrow) ResolveRuling(id, winner string, winnerSplitBps uint32) (*escrow.Contract, error) {
	contract, ok := m.contracts[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", escrow.ErrNotFound, id)
	}
	if contract.Status != escrow.StatusFrozen {
		return nil, escrow.ErrInvalidState
	}
	contract.Status = escrow.StatusResolved
	m.resolved = append(m.resolved, id)
	return contract.Clone(), nil
}

func newTestEngine(state *mockState, backend *mockEscrow) (*Engine, *events.Recorder) {
	engine := NewEngine()
	engine.SetState(state)
	engine.SetEscrow(backend)
	recorder := events.NewRecorder()
	engine.SetEmitter(recorder)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	seq := 0
	engine.SetIDFunc(func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	})
	return engine, recorder
}

func TestOpenDisputeFreezesContract(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, recorder := newTestEngine(state, backend)

	dispute, err := engine.Open("c1", "alice", "goods not delivered")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if dispute.Respondent != "bob" {
		t.Fatalf("expected respondent bob, got %s", dispute.Respondent)
	}
	if dispute.Status != DisputeOpen {
		t.Fatalf("expected open status, got %s", dispute.Status)
	}
	if len(backend.frozen) != 1 || backend.frozen[0] != "c1" {
		t.Fatalf("expected contract frozen, got %v", backend.frozen)
	}
	evts := recorder.Events()
	if len(evts) != 1 || evts[0].Type != EventTypeOpened {
		t.Fatalf("expected opened event, got %+v", evts)
	}
}

func TestOpenDisputeRejectsNonParty(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, _ := newTestEngine(state, backend)

	if _, err := engine.Open("c1", "mallory", ""); !errors.Is(err, ErrNotParty) {
		t.Fatalf("expected not party error, got %v", err)
	}
	if len(backend.frozen) != 0 {
		t.Fatalf("contract frozen by rejected dispute")
	}
}

func TestOpenDuplicateDisputeFails(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, _ := newTestEngine(state, backend)

	if _, err := engine.Open("c1", "alice", ""); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := engine.Open("c1", "bob", ""); !errors.Is(err, ErrDuplicateDispute) {
		t.Fatalf("expected duplicate dispute error, got %v", err)
	}
}

func TestSubmitEvidence(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, _ := newTestEngine(state, backend)

	dispute, err := engine.Open("c1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dispute, err = engine.SubmitEvidence(dispute.ID, "bob", "delivery receipt", "ipfs://receipt")
	if err != nil {
		t.Fatalf("submit evidence: %v", err)
	}
	if len(dispute.Evidence) != 1 || dispute.Evidence[0].Submitter != "bob" {
		t.Fatalf("expected bob's evidence recorded, got %+v", dispute.Evidence)
	}
	if _, err := engine.SubmitEvidence(dispute.ID, "mallory", "fake", ""); !errors.Is(err, ErrNotParty) {
		t.Fatalf("expected not party error, got %v", err)
	}
}

func TestAssignArbitratorPicksTopEligible(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, _ := newTestEngine(state, backend)

	for _, p := range []*ArbitratorProfile{
		{ID: "arb-low", ReputationScore: 70},
		{ID: "arb-conflicted", ReputationScore: 99},
		{ID: "arb-best", ReputationScore: 95},
		{ID: "arb-good", ReputationScore: 88},
	} {
		if err := engine.RegisterArbitrator(p); err != nil {
			t.Fatalf("register %s: %v", p.ID, err)
		}
	}
	if err := engine.RecordInteraction(InteractionTransaction, "arb-conflicted", "alice"); err != nil {
		t.Fatalf("record interaction: %v", err)
	}

	dispute, err := engine.Open("c1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	dispute, err = engine.AssignArbitrator(dispute.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if dispute.ArbitratorID != "arb-best" {
		t.Fatalf("expected arb-best assigned, got %s", dispute.ArbitratorID)
	}
	if dispute.Status != DisputeArbitration {
		t.Fatalf("expected arbitration status, got %s", dispute.Status)
	}
}

func TestAssignArbitratorNoneEligible(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, _ := newTestEngine(state, backend)

	if err := engine.RegisterArbitrator(&ArbitratorProfile{ID: "arb", ReputationScore: 50}); err != nil {
		t.Fatalf("register: %v", err)
	}
	dispute, err := engine.Open("c1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := engine.AssignArbitrator(dispute.ID); !errors.Is(err, ErrNoEligibleArbitrator) {
		t.Fatalf("expected no eligible arbitrator, got %v", err)
	}
	stored, _, err := state.DisputeGet(dispute.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != DisputeOpen || stored.ArbitratorID != "" {
		t.Fatalf("dispute mutated by failed assignment: %+v", stored)
	}
}

func TestResolveAppliesRuling(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, recorder := newTestEngine(state, backend)

	if err := engine.RegisterArbitrator(&ArbitratorProfile{ID: "arb", ReputationScore: 90}); err != nil {
		t.Fatalf("register: %v", err)
	}
	dispute, err := engine.Open("c1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := engine.AssignArbitrator(dispute.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	resolved, err := engine.Resolve(dispute.ID, "arb", "alice", 8_000, "provider failed to deliver")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != DisputeResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	if resolved.Ruling == nil || resolved.Ruling.Winner != "alice" || resolved.Ruling.WinnerSplitBps != 8_000 {
		t.Fatalf("unexpected ruling: %+v", resolved.Ruling)
	}
	if len(backend.resolved) != 1 {
		t.Fatalf("ruling not applied to escrow")
	}
	// Loser's record carries the loss and the arbitrator's case count grows.
	bob, err := state.GetAccount("bob")
	if err != nil {
		t.Fatalf("get bob: %v", err)
	}
	if bob.DisputesLost != 1 {
		t.Fatalf("expected 1 dispute lost, got %d", bob.DisputesLost)
	}
	arb, ok, err := state.ArbitratorGet("arb")
	if err != nil || !ok {
		t.Fatalf("get arbitrator: %v", err)
	}
	if arb.CasesSolved != 1 {
		t.Fatalf("expected 1 case solved, got %d", arb.CasesSolved)
	}
	// Ruling interactions now disqualify the arbitrator for both parties.
	for _, party := range []string{"alice", "bob"} {
		conflicted, err := state.HasInteraction("arb", party)
		if err != nil {
			t.Fatalf("has interaction: %v", err)
		}
		if !conflicted {
			t.Fatalf("expected ruling interaction with %s", party)
		}
	}
	last := recorder.Events()[len(recorder.Events())-1]
	if last.Type != EventTypeResolved {
		t.Fatalf("expected resolved event, got %s", last.Type)
	}
}

func TestResolveWrongArbitrator(t *testing.T) {
	state := newMockState()
	backend := newMockEscrow()
	backend.add("c1", "alice", "bob", escrow.StatusLocked)
	engine, _ := newTestEngine(state, backend)

	if err := engine.RegisterArbitrator(&ArbitratorProfile{ID: "arb", ReputationScore: 90}); err != nil {
		t.Fatalf("register: %v", err)
	}
	dispute, err := engine.Open("c1", "alice", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := engine.Resolve(dispute.ID, "arb", "alice", 5_000, ""); !errors.Is(err, ErrNotAssigned) {
		t.Fatalf("expected not assigned error, got %v", err)
	}
	if _, err := engine.AssignArbitrator(dispute.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := engine.Resolve(dispute.ID, "impostor", "alice", 5_000, ""); !errors.Is(err, ErrArbitratorMismatch) {
		t.Fatalf("expected arbitrator mismatch, got %v", err)
	}
}
