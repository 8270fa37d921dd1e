package governance

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"architex/core/events"
)

const (
	// QuorumBps is the share of total network voting power that must
	// participate for a proposal to be decidable.
	QuorumBps = 3_000
	// PassThresholdBps is the share of decisive (for + against) power the
	// yes side must strictly exceed for a proposal to pass.
	PassThresholdBps = 5_100
	// DefaultVotingPeriodSeconds is the voting window applied when no
	// override is configured.
	DefaultVotingPeriodSeconds = 7 * 24 * 60 * 60

	maxBps = 10_000
)

// MinProposalPower is the voting-power floor for creating a proposal.
var MinProposalPower = big.NewInt(500)

type engineState interface {
	NextProposalID() (uint64, error)
	ProposalPut(*Proposal) error
	ProposalGet(id uint64) (*Proposal, bool, error)
	VotePut(*Vote) error
	VoteGet(proposalID uint64, voter string) (*Vote, bool, error)
	TotalVotingPower() (*big.Int, error)
}

// Engine runs the proposal lifecycle. Tallies accumulate as ballots arrive;
// finalization after the voting window applies the quorum and pass-threshold
// rules and execution closes out passed proposals.
type Engine struct {
	state               engineState
	emitter             events.Emitter
	nowFn               func() int64
	votingPeriodSeconds int64

	mu    sync.Mutex
	locks map[uint64]*sync.Mutex
}

// NewEngine constructs a governance engine with a no-op emitter and the
// default voting period.
func NewEngine() *Engine {
	return &Engine{
		emitter:             events.NoopEmitter{},
		nowFn:               func() int64 { return time.Now().Unix() },
		votingPeriodSeconds: DefaultVotingPeriodSeconds,
		locks:               make(map[uint64]*sync.Mutex),
	}
}

// SetState wires the engine to its persistence backend.
func (e *Engine) SetState(state engineState) { e.state = state }

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

// SetVotingPeriod overrides the voting window length. Non-positive values
// restore the default.
func (e *Engine) SetVotingPeriod(seconds int64) {
	if seconds <= 0 {
		e.votingPeriodSeconds = DefaultVotingPeriodSeconds
		return
	}
	e.votingPeriodSeconds = seconds
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

func (e *Engine) lockProposal(id uint64) func() {
	e.mu.Lock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	e.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (e *Engine) loadProposal(id uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	proposal, ok, err := e.state.ProposalGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrProposalNotFound, id)
	}
	return proposal.Normalize(), nil
}

// Propose admits a new proposal. The creator's voting power must meet the
// proposal floor; the voting window opens immediately.
func (e *Engine) Propose(creator, title, summary string, power *big.Int) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	creator = strings.TrimSpace(creator)
	title = strings.TrimSpace(title)
	if creator == "" {
		return nil, fmt.Errorf("governance: creator required")
	}
	if title == "" {
		return nil, fmt.Errorf("governance: title required")
	}
	if power == nil || power.Cmp(MinProposalPower) < 0 {
		return nil, fmt.Errorf("%w: minimum %s required", ErrInsufficientPower, MinProposalPower)
	}
	id, err := e.state.NextProposalID()
	if err != nil {
		return nil, err
	}
	now := e.now()
	proposal := &Proposal{
		ID:           id,
		Title:        title,
		Summary:      strings.TrimSpace(summary),
		Creator:      creator,
		Status:       ProposalStatusActive,
		VotesFor:     big.NewInt(0),
		VotesAgainst: big.NewInt(0),
		VotingStart:  now,
		VotingEnd:    now + e.votingPeriodSeconds,
		UpdatedAt:    now,
	}
	if err := e.state.ProposalPut(proposal); err != nil {
		return nil, err
	}
	e.emit(newProposedEvent(proposal))
	return proposal.Clone(), nil
}

// Get returns the stored proposal.
func (e *Engine) Get(id uint64) (*Proposal, error) {
	proposal, err := e.loadProposal(id)
	if err != nil {
		return nil, err
	}
	return proposal.Clone(), nil
}

// CastVote records a ballot on an active proposal. A voter gets exactly one
// ballot per proposal; duplicates are rejected and leave the tally untouched.
// Each accepted ballot updates the running quorum flag against the current
// network voting power.
func (e *Engine) CastVote(proposalID uint64, voter string, support bool, power *big.Int) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	voter = strings.TrimSpace(voter)
	if voter == "" {
		return nil, fmt.Errorf("governance: voter required")
	}
	if power == nil || power.Sign() <= 0 {
		return nil, fmt.Errorf("governance: voting power must be positive")
	}
	unlock := e.lockProposal(proposalID)
	defer unlock()

	proposal, err := e.loadProposal(proposalID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	if proposal.Status != ProposalStatusActive || now > proposal.VotingEnd {
		return nil, fmt.Errorf("%w: proposal %d", ErrVotingClosed, proposalID)
	}
	if _, ok, err := e.state.VoteGet(proposalID, voter); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s on proposal %d", ErrAlreadyVoted, voter, proposalID)
	}

	vote := &Vote{
		ProposalID: proposalID,
		Voter:      voter,
		Support:    support,
		Power:      new(big.Int).Set(power),
		Timestamp:  now,
	}
	if support {
		proposal.VotesFor = new(big.Int).Add(proposal.VotesFor, power)
	} else {
		proposal.VotesAgainst = new(big.Int).Add(proposal.VotesAgainst, power)
	}
	networkPower, err := e.state.TotalVotingPower()
	if err != nil {
		return nil, err
	}
	proposal.QuorumReached = meetsQuorum(proposal.VotesFor, proposal.VotesAgainst, networkPower)
	proposal.UpdatedAt = now

	if err := e.state.VotePut(vote); err != nil {
		return nil, err
	}
	if err := e.state.ProposalPut(proposal); err != nil {
		return nil, err
	}
	e.emit(newVoteEvent(proposal, vote))
	return proposal.Clone(), nil
}

// Finalize closes the voting window and settles the verdict. The proposal
// must still be active and the window must have elapsed. Passing requires
// quorum and a yes share strictly above the pass threshold.
func (e *Engine) Finalize(proposalID uint64) (*Proposal, *Tally, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	unlock := e.lockProposal(proposalID)
	defer unlock()

	proposal, err := e.loadProposal(proposalID)
	if err != nil {
		return nil, nil, err
	}
	if proposal.Status != ProposalStatusActive {
		return nil, nil, fmt.Errorf("%w: proposal %d in status %s", ErrVotingClosed, proposalID, proposal.Status)
	}
	now := e.now()
	if now <= proposal.VotingEnd {
		return nil, nil, fmt.Errorf("%w: proposal %d ends at %d", ErrVotingOpen, proposalID, proposal.VotingEnd)
	}
	networkPower, err := e.state.TotalVotingPower()
	if err != nil {
		return nil, nil, err
	}
	tally := &Tally{
		VotesFor:      new(big.Int).Set(proposal.VotesFor),
		VotesAgainst:  new(big.Int).Set(proposal.VotesAgainst),
		NetworkPower:  networkPower,
		QuorumReached: meetsQuorum(proposal.VotesFor, proposal.VotesAgainst, networkPower),
	}
	tally.Passed = tally.QuorumReached && passesThreshold(proposal.VotesFor, proposal.VotesAgainst)

	proposal.QuorumReached = tally.QuorumReached
	if tally.Passed {
		proposal.Status = ProposalStatusPassed
	} else {
		proposal.Status = ProposalStatusRejected
	}
	proposal.UpdatedAt = now
	if err := e.state.ProposalPut(proposal); err != nil {
		return nil, nil, err
	}
	e.emit(newFinalizedEvent(proposal, tally))
	return proposal.Clone(), tally, nil
}

// Execute closes out a passed proposal. Execution is idempotency-guarded: a
// proposal executes at most once.
func (e *Engine) Execute(proposalID uint64) (*Proposal, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	unlock := e.lockProposal(proposalID)
	defer unlock()

	proposal, err := e.loadProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Status != ProposalStatusPassed {
		return nil, fmt.Errorf("%w: proposal %d in status %s", ErrNotPassed, proposalID, proposal.Status)
	}
	proposal.Status = ProposalStatusExecuted
	proposal.UpdatedAt = e.now()
	if err := e.state.ProposalPut(proposal); err != nil {
		return nil, err
	}
	e.emit(newExecutedEvent(proposal))
	return proposal.Clone(), nil
}

// meetsQuorum reports whether the decisive power clears the quorum share of
// the network power: (for + against) * 10_000 >= network * QuorumBps.
func meetsQuorum(votesFor, votesAgainst, networkPower *big.Int) bool {
	if networkPower == nil || networkPower.Sign() <= 0 {
		return false
	}
	decisive := new(big.Int).Add(votesFor, votesAgainst)
	lhs := decisive.Mul(decisive, big.NewInt(maxBps))
	rhs := new(big.Int).Mul(networkPower, big.NewInt(QuorumBps))
	return lhs.Cmp(rhs) >= 0
}

// passesThreshold reports whether the yes side strictly exceeds the pass
// threshold share of decisive power: for * 10_000 > (for + against) * PassThresholdBps.
func passesThreshold(votesFor, votesAgainst *big.Int) bool {
	decisive := new(big.Int).Add(votesFor, votesAgainst)
	if decisive.Sign() <= 0 {
		return false
	}
	lhs := new(big.Int).Mul(votesFor, big.NewInt(maxBps))
	rhs := decisive.Mul(decisive, big.NewInt(PassThresholdBps))
	return lhs.Cmp(rhs) > 0
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
