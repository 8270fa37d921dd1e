package escrow

import (
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"architex/core/events"
	"architex/core/types"
	"architex/native/settlement"
)

// HighValueThreshold is the contract amount at or above which an escrow is
// automatically split into the fixed two-stage milestone schedule.
var HighValueThreshold = big.NewInt(500)

// HighValueShares is the fixed upfront/completion milestone split applied to
// high-value contracts.
var HighValueShares = []uint32{3_000, 7_000}

var highValueNames = []string{"upfront", "completion"}

type engineState interface {
	EscrowPut(*Contract) error
	EscrowGet(id string) (*Contract, bool, error)
	// EscrowSettle commits the contract and the supplied accounts as one
	// atomic write.
	EscrowSettle(contract *Contract, accounts map[string]*types.Account) error
	GetAccount(id string) (*types.Account, error)
	PutAccount(id string, account *types.Account) error
}

// Engine applies escrow state transitions against the ledger store. Every
// operation validates the current state before mutating anything and fails
// fast with a typed error; a per-contract mutex makes each
// read-validate-mutate-persist sequence atomic with respect to concurrent
// callers.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	treasury string
	nowFn    func() int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewEngine creates an escrow engine with a no-op emitter and the default
// treasury account. Callers override both via the setters.
func NewEngine() *Engine {
	return &Engine{
		emitter:  events.NoopEmitter{},
		treasury: types.TreasuryAccountID,
		nowFn:    func() int64 { return time.Now().Unix() },
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTreasury configures the account that receives fees and confiscations.
func (e *Engine) SetTreasury(account string) {
	trimmed := strings.TrimSpace(account)
	if trimmed == "" {
		trimmed = types.TreasuryAccountID
	}
	e.treasury = trimmed
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
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

// lockKey serializes operations per keyed resource. The unlock func must be
// called exactly once.
func (e *Engine) lockKey(key string) func() {
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

func (e *Engine) lockContract(id string) func() { return e.lockKey("contract/" + id) }

func (e *Engine) lockAccount(id string) func() { return e.lockKey("account/" + id) }

func (e *Engine) loadContract(id string) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	contract, ok, err := e.state.EscrowGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return contract, nil
}

func (e *Engine) storeContract(c *Contract) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return e.state.EscrowPut(c)
}

// ledger stages account mutations for a single transition. Nothing is
// persisted until commit, which writes the staged accounts and the contract
// record in one batch.
type ledger struct {
	state    engineState
	accounts map[string]*types.Account
}

func (e *Engine) newLedger() *ledger {
	return &ledger{state: e.state, accounts: make(map[string]*types.Account)}
}

func (l *ledger) account(id string) (*types.Account, error) {
	if account, ok := l.accounts[id]; ok {
		return account, nil
	}
	account, err := l.state.GetAccount(id)
	if err != nil {
		return nil, err
	}
	account = account.Normalize()
	l.accounts[id] = account
	return account, nil
}

// transfer moves amount between two ledger accounts. Zero amounts are a
// no-op; balances never go negative.
func (l *ledger) transfer(from, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("escrow: negative transfer amount")
	}
	if from == to {
		return nil
	}
	fromAcc, err := l.account(from)
	if err != nil {
		return err
	}
	toAcc, err := l.account(to)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s", ErrInsufficientBalance, from)
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amount)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amount)
	return nil
}

// addVolume adds the settled gross amount to a party's traded volume.
func (l *ledger) addVolume(party string, amount *big.Int) error {
	if strings.TrimSpace(party) == "" || amount == nil || amount.Sign() <= 0 {
		return nil
	}
	account, err := l.account(party)
	if err != nil {
		return err
	}
	account.VolumeTraded = new(big.Int).Add(account.VolumeTraded, amount)
	return nil
}

// commit persists the contract together with any staged account changes.
func (e *Engine) commit(contract *Contract, led *ledger) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if led == nil || len(led.accounts) == 0 {
		return e.state.EscrowPut(contract)
	}
	return e.state.EscrowSettle(contract, led.accounts)
}

// CreateParams describes a new escrow. When B2B is set the commission rate
// is resolved from the tiered volume schedule instead of the standard rate.
type CreateParams struct {
	ID       string
	Client   string
	Provider string
	Amount   *big.Int
	Memo     string
	B2B      bool
}

// Create initialises and persists a new escrow, debiting the client account
// into the vault. Contracts at or above HighValueThreshold receive the fixed
// upfront/completion milestone schedule and start locked; smaller contracts
// start open awaiting a provider claim.
func (e *Engine) Create(params CreateParams) (*Contract, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	id := strings.TrimSpace(params.ID)
	if id == "" {
		return nil, fmt.Errorf("escrow: contract id required")
	}
	client := strings.TrimSpace(params.Client)
	if client == "" {
		return nil, fmt.Errorf("escrow: client required")
	}
	if params.Amount == nil || params.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive")
	}
	unlock := e.lockContract(id)
	defer unlock()

	if _, ok, err := e.state.EscrowGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateContract, id)
	}

	amount := new(big.Int).Set(params.Amount)
	feeBps := settlement.StandardFeeBps
	if params.B2B {
		feeBps = settlement.B2BFeeBps(amount)
	}
	now := e.now()
	contract := &Contract{
		ID:        id,
		Client:    client,
		Provider:  strings.TrimSpace(params.Provider),
		Amount:    amount,
		Remaining: new(big.Int).Set(amount),
		FeeBps:    feeBps,
		Status:    StatusOpen,
		Memo:      strings.TrimSpace(params.Memo),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if amount.Cmp(HighValueThreshold) >= 0 {
		if contract.Provider == "" {
			return nil, fmt.Errorf("escrow: provider required for milestone contract")
		}
		amounts, err := settlement.ShareAmounts(amount, HighValueShares)
		if err != nil {
			return nil, err
		}
		contract.Milestones = make([]*Milestone, len(HighValueShares))
		for i, share := range HighValueShares {
			contract.Milestones[i] = &Milestone{
				Name:     highValueNames[i],
				ShareBps: share,
				Amount:   amounts[i],
				Status:   MilestoneLocked,
			}
		}
		contract.Status = StatusLocked
	}
	led := e.newLedger()
	if err := led.transfer(contract.Client, types.VaultAccountID, amount); err != nil {
		return nil, err
	}
	if err := e.commit(contract, led); err != nil {
		return nil, err
	}
	e.emit(newCreatedEvent(contract))
	return contract.Clone(), nil
}

// Deposit credits a completed payment into the party's spendable balance.
// This is the ingress for funds: the payment gateway's completion callback
// lands here before any escrow can be created.
func (e *Engine) Deposit(account string, amount *big.Int) (*types.Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, fmt.Errorf("escrow: account required")
	}
	if account == types.VaultAccountID || account == e.treasury {
		return nil, fmt.Errorf("escrow: cannot deposit into system account %s", account)
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive")
	}
	unlock := e.lockAccount(account)
	defer unlock()

	stored, err := e.state.GetAccount(account)
	if err != nil {
		return nil, err
	}
	stored = stored.Normalize()
	stored.Balance = new(big.Int).Add(stored.Balance, amount)
	if err := e.state.PutAccount(account, stored); err != nil {
		return nil, err
	}
	e.emit(newDepositedEvent(account, amount))
	return stored.Clone(), nil
}

// Stake moves part of the spendable balance into the governance stake. The
// staked amount feeds the trust composite and the derived voting power.
func (e *Engine) Stake(account string, amount *big.Int) (*types.Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, fmt.Errorf("escrow: account required")
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("escrow: amount must be positive")
	}
	unlock := e.lockAccount(account)
	defer unlock()

	stored, err := e.state.GetAccount(account)
	if err != nil {
		return nil, err
	}
	stored = stored.Normalize()
	if stored.Balance.Cmp(amount) < 0 {
		return nil, fmt.Errorf("%w: account %s", ErrInsufficientBalance, account)
	}
	stored.Balance = new(big.Int).Sub(stored.Balance, amount)
	stored.Stake = new(big.Int).Add(stored.Stake, amount)
	if err := e.state.PutAccount(account, stored); err != nil {
		return nil, err
	}
	e.emit(newStakedEvent(account, amount))
	return stored.Clone(), nil
}

// Get returns the stored contract.
func (e *Engine) Get(id string) (*Contract, error) {
	contract, err := e.loadContract(strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// Claim assigns an open contract to the claiming provider.
func (e *Engine) Claim(id, provider string) (*Contract, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return nil, fmt.Errorf("escrow: provider required")
	}
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != StatusOpen {
		return nil, fmt.Errorf("%w: cannot claim in status %s", ErrInvalidState, contract.Status)
	}
	if contract.Provider != "" && contract.Provider != provider {
		return nil, fmt.Errorf("%w: contract reserved for %s", ErrProviderMismatch, contract.Provider)
	}
	contract.Provider = provider
	contract.Status = StatusAssigned
	contract.UpdatedAt = e.now()
	if err := e.storeContract(contract); err != nil {
		return nil, err
	}
	e.emit(newClaimedEvent(contract))
	return contract.Clone(), nil
}

// SubmitWork marks the assigned work as delivered.
func (e *Engine) SubmitWork(id, provider string) (*Contract, error) {
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != StatusAssigned {
		return nil, fmt.Errorf("%w: cannot submit in status %s", ErrInvalidState, contract.Status)
	}
	if provider = strings.TrimSpace(provider); provider != "" && provider != contract.Provider {
		return nil, fmt.Errorf("%w: assigned to %s", ErrProviderMismatch, contract.Provider)
	}
	contract.Status = StatusSubmitted
	contract.UpdatedAt = e.now()
	if err := e.storeContract(contract); err != nil {
		return nil, err
	}
	e.emit(newSubmittedEvent(contract))
	return contract.Clone(), nil
}

// ReleaseFunds settles a contract without milestones after the work has been
// submitted: payout to the provider, commission to the treasury. Terminal.
func (e *Engine) ReleaseFunds(id string) (*Contract, settlement.Split, error) {
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, settlement.Split{}, err
	}
	if len(contract.Milestones) > 0 {
		return nil, settlement.Split{}, fmt.Errorf("%w: milestone contract requires per-milestone release", ErrInvalidState)
	}
	if contract.Status != StatusSubmitted {
		return nil, settlement.Split{}, fmt.Errorf("%w: cannot release in status %s", ErrInvalidState, contract.Status)
	}
	split, err := settlement.Apply(contract.Remaining, contract.FeeBps)
	if err != nil {
		return nil, settlement.Split{}, err
	}
	led := e.newLedger()
	if err := e.payout(led, contract, split); err != nil {
		return nil, settlement.Split{}, err
	}
	contract.Remaining = big.NewInt(0)
	contract.Status = StatusCompleted
	contract.UpdatedAt = e.now()
	if err := e.commit(contract, led); err != nil {
		return nil, settlement.Split{}, err
	}
	e.emit(newReleasedEvent(contract, split))
	return contract.Clone(), split, nil
}

// ReleaseMilestone pays out a single locked milestone. The contract becomes
// fully released once every milestone has been paid, and partially released
// otherwise. Releasing the same index twice fails with ErrInvalidState and
// leaves all state unchanged.
func (e *Engine) ReleaseMilestone(id string, index int) (*Contract, settlement.Split, error) {
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, settlement.Split{}, err
	}
	if len(contract.Milestones) == 0 {
		return nil, settlement.Split{}, fmt.Errorf("%w: contract has no milestones", ErrInvalidState)
	}
	if contract.Status != StatusLocked && contract.Status != StatusPartiallyReleased {
		return nil, settlement.Split{}, fmt.Errorf("%w: cannot release milestone in status %s", ErrInvalidState, contract.Status)
	}
	if index < 0 || index >= len(contract.Milestones) {
		return nil, settlement.Split{}, fmt.Errorf("%w: index %d", ErrMilestoneNotFound, index)
	}
	milestone := contract.Milestones[index]
	if milestone.Status != MilestoneLocked {
		return nil, settlement.Split{}, fmt.Errorf("%w: milestone %d already released", ErrInvalidState, index)
	}
	split, err := settlement.Apply(milestone.Amount, contract.FeeBps)
	if err != nil {
		return nil, settlement.Split{}, err
	}
	led := e.newLedger()
	if err := e.payout(led, contract, split); err != nil {
		return nil, settlement.Split{}, err
	}
	now := e.now()
	milestone.Status = MilestoneReleased
	milestone.ReleasedAt = now
	contract.Remaining = new(big.Int).Sub(contract.Remaining, milestone.Amount)
	if contract.AllMilestonesReleased() {
		contract.Status = StatusReleased
	} else {
		contract.Status = StatusPartiallyReleased
	}
	contract.UpdatedAt = now
	if err := e.commit(contract, led); err != nil {
		return nil, settlement.Split{}, err
	}
	e.emit(newMilestoneReleasedEvent(contract, index, split))
	return contract.Clone(), split, nil
}

// payout stages a computed split out of the vault: net to the provider, fee
// to the treasury. Both parties' traded volume grows by the gross amount.
func (e *Engine) payout(led *ledger, contract *Contract, split settlement.Split) error {
	if contract.Provider == "" {
		return fmt.Errorf("escrow: contract has no provider")
	}
	if err := led.transfer(types.VaultAccountID, contract.Provider, split.Payout); err != nil {
		return err
	}
	if err := led.transfer(types.VaultAccountID, e.treasury, split.Fee); err != nil {
		return err
	}
	if err := led.addVolume(contract.Client, split.Amount); err != nil {
		return err
	}
	return led.addVolume(contract.Provider, split.Amount)
}

// Freeze suspends a contract pending dispute arbitration. Freezing an
// already frozen contract is a no-op. Fully settled contracts report
// ErrAlreadyReleased; other terminal states are invalid.
func (e *Engine) Freeze(id string) (*Contract, error) {
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	switch contract.Status {
	case StatusReleased, StatusCompleted:
		return nil, fmt.Errorf("%w: contract %s", ErrAlreadyReleased, id)
	case StatusFrozen:
		return contract.Clone(), nil
	case StatusConfiscated, StatusResolved:
		return nil, fmt.Errorf("%w: cannot freeze in status %s", ErrInvalidState, contract.Status)
	}
	contract.Status = StatusFrozen
	contract.UpdatedAt = e.now()
	if err := e.storeContract(contract); err != nil {
		return nil, err
	}
	e.emit(newFrozenEvent(contract))
	return contract.Clone(), nil
}

// Confiscate moves the remaining balance of a frozen or locked contract to
// the treasury, recording the reason. Terminal.
func (e *Engine) Confiscate(id, reason string) (*Contract, error) {
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != StatusFrozen && contract.Status != StatusLocked {
		return nil, fmt.Errorf("%w: cannot confiscate in status %s", ErrInvalidState, contract.Status)
	}
	led := e.newLedger()
	if err := led.transfer(types.VaultAccountID, e.treasury, contract.Remaining); err != nil {
		return nil, err
	}
	contract.Remaining = big.NewInt(0)
	contract.Status = StatusConfiscated
	contract.Reason = strings.TrimSpace(reason)
	contract.UpdatedAt = e.now()
	if err := e.commit(contract, led); err != nil {
		return nil, err
	}
	e.emit(newConfiscatedEvent(contract))
	return contract.Clone(), nil
}

// ResolveRuling settles a frozen contract according to an arbitration
// ruling: the winner receives winnerSplitBps of the remaining balance and
// the counterparty the rest. No commission applies to ruling payouts.
func (e *Engine) ResolveRuling(id, winner string, winnerSplitBps uint32) (*Contract, error) {
	winner = strings.TrimSpace(winner)
	if winnerSplitBps > settlement.MaxBps {
		return nil, fmt.Errorf("escrow: winner split bps out of range: %d", winnerSplitBps)
	}
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	if contract.Status != StatusFrozen {
		return nil, fmt.Errorf("%w: cannot resolve in status %s", ErrInvalidState, contract.Status)
	}
	var loser string
	switch winner {
	case contract.Client:
		loser = contract.Provider
	case contract.Provider:
		loser = contract.Client
	default:
		return nil, fmt.Errorf("escrow: winner %q is not a contract party", winner)
	}
	winnerAmt := new(big.Int).Mul(contract.Remaining, big.NewInt(int64(winnerSplitBps)))
	winnerAmt.Div(winnerAmt, big.NewInt(int64(settlement.MaxBps)))
	loserAmt := new(big.Int).Sub(contract.Remaining, winnerAmt)
	led := e.newLedger()
	if err := led.transfer(types.VaultAccountID, winner, winnerAmt); err != nil {
		return nil, err
	}
	if loser != "" {
		if err := led.transfer(types.VaultAccountID, loser, loserAmt); err != nil {
			return nil, err
		}
	} else if loserAmt.Sign() > 0 {
		// No counterparty to refund; the remainder goes to the treasury.
		if err := led.transfer(types.VaultAccountID, e.treasury, loserAmt); err != nil {
			return nil, err
		}
	}
	contract.Remaining = big.NewInt(0)
	contract.Status = StatusResolved
	contract.UpdatedAt = e.now()
	if err := e.commit(contract, led); err != nil {
		return nil, err
	}
	e.emit(newResolvedEvent(contract, winner, winnerSplitBps))
	return contract.Clone(), nil
}

// LeaveFeedback records a party's thumbs-up on a fully settled contract and
// credits the counterparty's likes. Each party may leave feedback once; the
// feedback marker and the like commit together.
func (e *Engine) LeaveFeedback(id, from string) (*Contract, error) {
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, fmt.Errorf("escrow: feedback party required")
	}
	unlock := e.lockContract(id)
	defer unlock()

	contract, err := e.loadContract(id)
	if err != nil {
		return nil, err
	}
	switch contract.Status {
	case StatusCompleted, StatusReleased:
	default:
		return nil, fmt.Errorf("%w: feedback requires a settled contract, status %s", ErrInvalidState, contract.Status)
	}
	var recipient string
	switch from {
	case contract.Client:
		recipient = contract.Provider
	case contract.Provider:
		recipient = contract.Client
	default:
		return nil, fmt.Errorf("escrow: %q is not a contract party", from)
	}
	if recipient == "" {
		return nil, fmt.Errorf("escrow: contract has no counterparty")
	}
	for _, prior := range contract.FeedbackBy {
		if prior == from {
			return nil, fmt.Errorf("%w: feedback already left by %s", ErrInvalidState, from)
		}
	}
	led := e.newLedger()
	account, err := led.account(recipient)
	if err != nil {
		return nil, err
	}
	account.Likes++
	contract.FeedbackBy = append(contract.FeedbackBy, from)
	contract.UpdatedAt = e.now()
	if err := e.commit(contract, led); err != nil {
		return nil, err
	}
	e.emit(newFeedbackEvent(contract, from, recipient))
	return contract.Clone(), nil
}
