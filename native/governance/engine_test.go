package governance

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"architex/core/events"
)

type mockState struct {
	nextID       uint64
	proposals    map[uint64]*Proposal
	votes        map[string]*Vote
	networkPower *big.Int
}

func newMockState(networkPower int64) *mockState {
	return &mockState{
		proposals:    make(map[uint64]*Proposal),
		votes:        make(map[string]*Vote),
		networkPower: big.NewInt(networkPower),
	}
}

func voteKey(proposalID uint64, voter string) string {
	return fmt.Sprintf("%d/%s", proposalID, voter)
}

func (m *mockState) NextProposalID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) ProposalPut(p *Proposal) error {
	m.proposals[p.ID] = p.Clone()
	return nil
}

func (m *mockState) ProposalGet(id uint64) (*Proposal, bool, error) {
	proposal, ok := m.proposals[id]
	if !ok {
		return nil, false, nil
	}
	return proposal.Clone(), true, nil
}

func (m *mockState) VotePut(v *Vote) error {
	m.votes[voteKey(v.ProposalID, v.Voter)] = v.Clone()
	return nil
}

func (m *mockState) VoteGet(proposalID uint64, voter string) (*Vote, bool, error) {
	vote, ok := m.votes[voteKey(proposalID, voter)]
	if !ok {
		return nil, false, nil
	}
	return vote.Clone(), true, nil
}

func (m *mockState) TotalVotingPower() (*big.Int, error) {
	return new(big.Int).Set(m.networkPower), nil
}

type testClock struct{ now int64 }

func (c *testClock) Now() int64      { return c.now }
func (c *testClock) Advance(d int64) { c.now += d }

func newTestEngine(state *mockState) (*Engine, *testClock, *events.Recorder) {
	engine := NewEngine()
	engine.SetState(state)
	clock := &testClock{now: 1_700_000_000}
	engine.SetNowFunc(clock.Now)
	recorder := events.NewRecorder()
	engine.SetEmitter(recorder)
	return engine, clock, recorder
}

func TestProposeRequiresMinimumPower(t *testing.T) {
	engine, _, _ := newTestEngine(newMockState(1_000_000))

	if _, err := engine.Propose("alice", "raise fee", "", big.NewInt(499)); !errors.Is(err, ErrInsufficientPower) {
		t.Fatalf("expected insufficient power, got %v", err)
	}
	proposal, err := engine.Propose("alice", "raise fee", "bump the standard rate", big.NewInt(500))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if proposal.ID != 1 || proposal.Status != ProposalStatusActive {
		t.Fatalf("unexpected proposal: %+v", proposal)
	}
	if proposal.VotingEnd != proposal.VotingStart+DefaultVotingPeriodSeconds {
		t.Fatalf("unexpected voting window: %d..%d", proposal.VotingStart, proposal.VotingEnd)
	}
}

func TestCastVoteAccumulatesAndTracksQuorum(t *testing.T) {
	// Network power 1,000,000 with 30% quorum needs 300,000 decisive power.
	engine, _, _ := newTestEngine(newMockState(1_000_000))

	proposal, err := engine.Propose("alice", "raise fee", "", big.NewInt(1_000))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	proposal, err = engine.CastVote(proposal.ID, "bob", true, big.NewInt(200_000))
	if err != nil {
		t.Fatalf("vote bob: %v", err)
	}
	if proposal.QuorumReached {
		t.Fatalf("quorum reached at 200k of 1M")
	}
	proposal, err = engine.CastVote(proposal.ID, "carol", false, big.NewInt(150_000))
	if err != nil {
		t.Fatalf("vote carol: %v", err)
	}
	if !proposal.QuorumReached {
		t.Fatalf("quorum not reached at 350k of 1M")
	}
	if proposal.VotesFor.Cmp(big.NewInt(200_000)) != 0 || proposal.VotesAgainst.Cmp(big.NewInt(150_000)) != 0 {
		t.Fatalf("unexpected tally: for=%s against=%s", proposal.VotesFor, proposal.VotesAgainst)
	}
}

func TestCastVoteRejectsDuplicates(t *testing.T) {
	engine, _, _ := newTestEngine(newMockState(1_000_000))

	proposal, err := engine.Propose("alice", "raise fee", "", big.NewInt(1_000))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := engine.CastVote(proposal.ID, "bob", true, big.NewInt(100)); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if _, err := engine.CastVote(proposal.ID, "bob", false, big.NewInt(100)); !errors.Is(err, ErrAlreadyVoted) {
		t.Fatalf("expected already voted, got %v", err)
	}
	stored, err := engine.Get(proposal.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.VotesFor.Cmp(big.NewInt(100)) != 0 || stored.VotesAgainst.Sign() != 0 {
		t.Fatalf("duplicate ballot mutated tally: for=%s against=%s", stored.VotesFor, stored.VotesAgainst)
	}
}

func TestCastVoteAfterWindowCloses(t *testing.T) {
	engine, clock, _ := newTestEngine(newMockState(1_000_000))

	proposal, err := engine.Propose("alice", "raise fee", "", big.NewInt(1_000))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	clock.Advance(DefaultVotingPeriodSeconds + 1)
	if _, err := engine.CastVote(proposal.ID, "bob", true, big.NewInt(100)); !errors.Is(err, ErrVotingClosed) {
		t.Fatalf("expected voting closed, got %v", err)
	}
}

func TestFinalizeVerdicts(t *testing.T) {
	cases := []struct {
		name       string
		votesFor   int64
		against    int64
		wantStatus ProposalStatus
		wantQuorum bool
	}{
		{"passes above threshold", 200_000, 150_000, ProposalStatusPassed, true},
		{"rejected below quorum", 100_000, 50_000, ProposalStatusRejected, false},
		{"rejected at exact threshold", 510_000, 490_000, ProposalStatusRejected, true},
		{"passes just above threshold", 510_001, 489_999, ProposalStatusPassed, true},
		{"rejected with no ballots", 0, 0, ProposalStatusRejected, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, clock, _ := newTestEngine(newMockState(1_000_000))
			proposal, err := engine.Propose("alice", "raise fee", "", big.NewInt(1_000))
			if err != nil {
				t.Fatalf("propose: %v", err)
			}
			if tc.votesFor > 0 {
				if _, err := engine.CastVote(proposal.ID, "bob", true, big.NewInt(tc.votesFor)); err != nil {
					t.Fatalf("vote for: %v", err)
				}
			}
			if tc.against > 0 {
				if _, err := engine.CastVote(proposal.ID, "carol", false, big.NewInt(tc.against)); err != nil {
					t.Fatalf("vote against: %v", err)
				}
			}
			clock.Advance(DefaultVotingPeriodSeconds + 1)
			finalized, tally, err := engine.Finalize(proposal.ID)
			if err != nil {
				t.Fatalf("finalize: %v", err)
			}
			if finalized.Status != tc.wantStatus {
				t.Fatalf("expected %s, got %s", tc.wantStatus, finalized.Status)
			}
			if tally.QuorumReached != tc.wantQuorum {
				t.Fatalf("expected quorum %v, got %v", tc.wantQuorum, tally.QuorumReached)
			}
		})
	}
}

func TestFinalizeBeforeWindowEnds(t *testing.T) {
	engine, _, _ := newTestEngine(newMockState(1_000_000))

	proposal, err := engine.Propose("alice", "raise fee", "", big.NewInt(1_000))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, _, err := engine.Finalize(proposal.ID); !errors.Is(err, ErrVotingOpen) {
		t.Fatalf("expected voting open, got %v", err)
	}
}

func TestExecuteRequiresPassed(t *testing.T) {
	engine, clock, recorder := newTestEngine(newMockState(1_000_000))

	proposal, err := engine.Propose("alice", "raise fee", "", big.NewInt(1_000))
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := engine.Execute(proposal.ID); !errors.Is(err, ErrNotPassed) {
		t.Fatalf("expected not passed, got %v", err)
	}
	if _, err := engine.CastVote(proposal.ID, "bob", true, big.NewInt(400_000)); err != nil {
		t.Fatalf("vote: %v", err)
	}
	clock.Advance(DefaultVotingPeriodSeconds + 1)
	if _, _, err := engine.Finalize(proposal.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	executed, err := engine.Execute(proposal.ID)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if executed.Status != ProposalStatusExecuted {
		t.Fatalf("expected executed, got %s", executed.Status)
	}
	if _, err := engine.Execute(proposal.ID); !errors.Is(err, ErrNotPassed) {
		t.Fatalf("expected second execute rejected, got %v", err)
	}
	evts := recorder.Events()
	last := evts[len(evts)-1]
	if last.Type != EventTypeExecuted {
		t.Fatalf("expected executed event, got %s", last.Type)
	}
}

func TestUnknownProposal(t *testing.T) {
	engine, _, _ := newTestEngine(newMockState(1_000_000))
	if _, err := engine.Get(42); !errors.Is(err, ErrProposalNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
