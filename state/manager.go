package state

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"architex/core/types"
	"architex/native/arbitration"
	"architex/native/escrow"
	"architex/native/governance"
	"architex/native/trust"
	"architex/storage"
)

// Key prefixes. Record keys are prefix + natural id; secondary indexes map a
// lookup key onto the primary id.
const (
	accountPrefix         = "account/"
	escrowPrefix          = "escrow/"
	disputePrefix         = "dispute/"
	disputeContractPrefix = "dispute-contract/"
	arbitratorPrefix      = "arbitrator/"
	interactionPrefix     = "interaction/"
	interactionPairPrefix = "coi/"
	interactionByPrefix   = "coi-party/"
	proposalPrefix        = "gov/proposal/"
	votePrefix            = "gov/vote/"
	proposalSeqKey        = "gov/seq"

	secondsPerDay = 24 * 60 * 60
)

// Manager is the typed persistence layer shared by the native engines. Each
// engine sees only the narrow slice of this surface its state interface
// declares; the manager owns key layout, JSON encoding, and the secondary
// indexes.
type Manager struct {
	db    storage.Database
	nowFn func() int64

	seqMu sync.Mutex
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{
		db:    db,
		nowFn: func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source used for account-age derivation.
func (m *Manager) SetNowFunc(now func() int64) {
	if now == nil {
		m.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	m.nowFn = now
}

func (m *Manager) now() int64 { return m.nowFn() }

func (m *Manager) putJSON(key string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", key, err)
	}
	return m.db.Put([]byte(key), encoded)
}

func (m *Manager) getJSON(key string, out interface{}) (bool, error) {
	raw, ok, err := m.db.Get([]byte(key))
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %s: %w", key, err)
	}
	return true, nil
}

// --- Accounts ---

// GetAccount loads the account record, returning a zeroed account for
// unknown ids so engines can treat every party as having an account.
func (m *Manager) GetAccount(id string) (*types.Account, error) {
	account := &types.Account{}
	ok, err := m.getJSON(accountPrefix+id, account)
	if err != nil {
		return nil, err
	}
	if !ok {
		return (&types.Account{CreatedAt: m.now()}).Normalize(), nil
	}
	return account.Normalize(), nil
}

// PutAccount persists the account record.
func (m *Manager) PutAccount(id string, account *types.Account) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("state: account id required")
	}
	return m.putJSON(accountPrefix+id, account.Clone().Normalize())
}

// TrustProfile derives the trust composite for an account from its stored
// activity counters.
func (m *Manager) TrustProfile(id string) (trust.Profile, error) {
	account, err := m.GetAccount(id)
	if err != nil {
		return trust.Profile{}, err
	}
	return trust.Compute(m.statsFor(account)), nil
}

// VotingPowerOf derives the governance voting power for an account.
func (m *Manager) VotingPowerOf(id string) (*big.Int, error) {
	account, err := m.GetAccount(id)
	if err != nil {
		return nil, err
	}
	profile := trust.Compute(m.statsFor(account))
	return trust.VotingPower(account.Stake, profile.Score), nil
}

// TotalVotingPower sums the derived voting power over every stored account.
// System accounts carry no votes.
func (m *Manager) TotalVotingPower() (*big.Int, error) {
	total := big.NewInt(0)
	err := m.db.Iterate([]byte(accountPrefix), func(key, value []byte) error {
		id := strings.TrimPrefix(string(key), accountPrefix)
		if id == types.VaultAccountID || id == types.TreasuryAccountID {
			return nil
		}
		account := &types.Account{}
		if err := json.Unmarshal(value, account); err != nil {
			return fmt.Errorf("state: decode %s: %w", key, err)
		}
		account.Normalize()
		profile := trust.Compute(m.statsFor(account))
		total.Add(total, trust.VotingPower(account.Stake, profile.Score))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return total, nil
}

func (m *Manager) statsFor(account *types.Account) trust.Stats {
	var ageDays uint64
	if account.CreatedAt > 0 {
		if elapsed := m.now() - account.CreatedAt; elapsed > 0 {
			ageDays = uint64(elapsed / secondsPerDay)
		}
	}
	return trust.Stats{
		VolumeTraded:   account.VolumeTraded,
		Staked:         account.Stake,
		LikesReceived:  account.Likes,
		AccountAgeDays: ageDays,
		DisputesLost:   account.DisputesLost,
	}
}

// --- Escrow contracts ---

// EscrowPut validates and persists the contract.
func (m *Manager) EscrowPut(contract *escrow.Contract) error {
	sanitized, err := escrow.Sanitize(contract)
	if err != nil {
		return err
	}
	return m.putJSON(escrowPrefix+sanitized.ID, sanitized)
}

// EscrowSettle persists the contract record together with every account a
// settlement touched as one atomic batch. A payout can therefore never land
// without its contract transition, and vice versa.
func (m *Manager) EscrowSettle(contract *escrow.Contract, accounts map[string]*types.Account) error {
	sanitized, err := escrow.Sanitize(contract)
	if err != nil {
		return err
	}
	batch := &storage.Batch{}
	encoded, err := json.Marshal(sanitized)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", escrowPrefix+sanitized.ID, err)
	}
	batch.Put([]byte(escrowPrefix+sanitized.ID), encoded)
	for id, account := range accounts {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("state: account id required")
		}
		encoded, err := json.Marshal(account.Clone().Normalize())
		if err != nil {
			return fmt.Errorf("state: encode %s: %w", accountPrefix+id, err)
		}
		batch.Put([]byte(accountPrefix+id), encoded)
	}
	return m.db.Write(batch)
}

// EscrowGet loads the contract by id.
func (m *Manager) EscrowGet(id string) (*escrow.Contract, bool, error) {
	contract := &escrow.Contract{}
	ok, err := m.getJSON(escrowPrefix+id, contract)
	if err != nil || !ok {
		return nil, ok, err
	}
	return contract, true, nil
}

// --- Disputes ---

// DisputePut validates and persists the dispute, maintaining the
// contract-to-dispute index.
func (m *Manager) DisputePut(dispute *arbitration.Dispute) error {
	sanitized, err := arbitration.SanitizeDispute(dispute)
	if err != nil {
		return err
	}
	if err := m.putJSON(disputePrefix+sanitized.ID, sanitized); err != nil {
		return err
	}
	return m.db.Put([]byte(disputeContractPrefix+sanitized.ContractID), []byte(sanitized.ID))
}

// DisputeGet loads a dispute by id.
func (m *Manager) DisputeGet(id string) (*arbitration.Dispute, bool, error) {
	dispute := &arbitration.Dispute{}
	ok, err := m.getJSON(disputePrefix+id, dispute)
	if err != nil || !ok {
		return nil, ok, err
	}
	return dispute, true, nil
}

// DisputeList returns every stored dispute in key order.
func (m *Manager) DisputeList() ([]*arbitration.Dispute, error) {
	var out []*arbitration.Dispute
	err := m.db.Iterate([]byte(disputePrefix), func(key, value []byte) error {
		dispute := &arbitration.Dispute{}
		if err := json.Unmarshal(value, dispute); err != nil {
			return fmt.Errorf("state: decode %s: %w", key, err)
		}
		out = append(out, dispute)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DisputeByContract resolves the dispute most recently filed for a contract
// through the secondary index.
func (m *Manager) DisputeByContract(contractID string) (*arbitration.Dispute, bool, error) {
	raw, ok, err := m.db.Get([]byte(disputeContractPrefix + contractID))
	if err != nil || !ok {
		return nil, ok, err
	}
	return m.DisputeGet(string(raw))
}

// --- Arbitrators ---

// ArbitratorPut persists the arbitrator profile.
func (m *Manager) ArbitratorPut(profile *arbitration.ArbitratorProfile) error {
	if profile == nil || strings.TrimSpace(profile.ID) == "" {
		return fmt.Errorf("state: arbitrator id required")
	}
	return m.putJSON(arbitratorPrefix+profile.ID, profile)
}

// ArbitratorGet loads a single arbitrator profile.
func (m *Manager) ArbitratorGet(id string) (*arbitration.ArbitratorProfile, bool, error) {
	profile := &arbitration.ArbitratorProfile{}
	ok, err := m.getJSON(arbitratorPrefix+id, profile)
	if err != nil || !ok {
		return nil, ok, err
	}
	return profile, true, nil
}

// ArbitratorList returns every registered arbitrator in key order.
func (m *Manager) ArbitratorList() ([]*arbitration.ArbitratorProfile, error) {
	var out []*arbitration.ArbitratorProfile
	err := m.db.Iterate([]byte(arbitratorPrefix), func(key, value []byte) error {
		profile := &arbitration.ArbitratorProfile{}
		if err := json.Unmarshal(value, profile); err != nil {
			return fmt.Errorf("state: decode %s: %w", key, err)
		}
		out = append(out, profile)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Interactions (conflict-of-interest index) ---

// interactionPairDigest derives an order-independent key for a participant
// pair so the conflict probe is a single point lookup.
func interactionPairDigest(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%x", ethcrypto.Keccak256([]byte(a), []byte{0x00}, []byte(b)))
}

// InteractionPut stores the interaction record and updates both the pair
// index and the per-participant indexes.
func (m *Manager) InteractionPut(record *arbitration.InteractionRecord) error {
	if record == nil || strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("state: interaction id required")
	}
	if err := m.putJSON(interactionPrefix+record.ID, record); err != nil {
		return err
	}
	digest := interactionPairDigest(record.PartyA, record.PartyB)
	if err := m.db.Put([]byte(interactionPairPrefix+digest), []byte(record.ID)); err != nil {
		return err
	}
	for _, party := range []string{record.PartyA, record.PartyB} {
		key := interactionByPrefix + party + "/" + record.ID
		if err := m.db.Put([]byte(key), []byte(record.ID)); err != nil {
			return err
		}
	}
	return nil
}

// HasInteraction probes the pair index for any prior record between the two
// parties, in either order.
func (m *Manager) HasInteraction(a, b string) (bool, error) {
	_, ok, err := m.db.Get([]byte(interactionPairPrefix + interactionPairDigest(a, b)))
	return ok, err
}

// InteractionsFor returns every interaction record involving the party.
func (m *Manager) InteractionsFor(party string) ([]*arbitration.InteractionRecord, error) {
	var out []*arbitration.InteractionRecord
	err := m.db.Iterate([]byte(interactionByPrefix+party+"/"), func(_, value []byte) error {
		record := &arbitration.InteractionRecord{}
		ok, err := m.getJSON(interactionPrefix+string(value), record)
		if err != nil {
			return err
		}
		if ok {
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// --- Governance ---

func proposalKey(id uint64) string { return fmt.Sprintf("%s%020d", proposalPrefix, id) }

func voteKey(proposalID uint64, voter string) string {
	return fmt.Sprintf("%s%020d/%s", votePrefix, proposalID, voter)
}

// NextProposalID allocates the next monotonic proposal identifier.
func (m *Manager) NextProposalID() (uint64, error) {
	m.seqMu.Lock()
	defer m.seqMu.Unlock()
	raw, ok, err := m.db.Get([]byte(proposalSeqKey))
	if err != nil {
		return 0, err
	}
	var next uint64 = 1
	if ok && len(raw) == 8 {
		next = binary.BigEndian.Uint64(raw) + 1
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, next)
	if err := m.db.Put([]byte(proposalSeqKey), buf); err != nil {
		return 0, err
	}
	return next, nil
}

// ProposalPut persists the proposal.
func (m *Manager) ProposalPut(proposal *governance.Proposal) error {
	if proposal == nil || proposal.ID == 0 {
		return fmt.Errorf("state: proposal id required")
	}
	return m.putJSON(proposalKey(proposal.ID), proposal.Clone().Normalize())
}

// ProposalGet loads a proposal by id.
func (m *Manager) ProposalGet(id uint64) (*governance.Proposal, bool, error) {
	proposal := &governance.Proposal{}
	ok, err := m.getJSON(proposalKey(id), proposal)
	if err != nil || !ok {
		return nil, ok, err
	}
	return proposal.Normalize(), true, nil
}

// ProposalList returns every stored proposal in id order.
func (m *Manager) ProposalList() ([]*governance.Proposal, error) {
	var out []*governance.Proposal
	err := m.db.Iterate([]byte(proposalPrefix), func(key, value []byte) error {
		proposal := &governance.Proposal{}
		if err := json.Unmarshal(value, proposal); err != nil {
			return fmt.Errorf("state: decode %s: %w", key, err)
		}
		out = append(out, proposal.Normalize())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VotePut persists the ballot.
func (m *Manager) VotePut(vote *governance.Vote) error {
	if vote == nil || vote.ProposalID == 0 || strings.TrimSpace(vote.Voter) == "" {
		return fmt.Errorf("state: vote requires proposal id and voter")
	}
	return m.putJSON(voteKey(vote.ProposalID, vote.Voter), vote)
}

// VoteList returns every ballot recorded for the proposal.
func (m *Manager) VoteList(proposalID uint64) ([]*governance.Vote, error) {
	prefix := fmt.Sprintf("%s%020d/", votePrefix, proposalID)
	var out []*governance.Vote
	err := m.db.Iterate([]byte(prefix), func(key, value []byte) error {
		vote := &governance.Vote{}
		if err := json.Unmarshal(value, vote); err != nil {
			return fmt.Errorf("state: decode %s: %w", key, err)
		}
		out = append(out, vote)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// VoteGet loads the ballot for a (proposal, voter) pair.
func (m *Manager) VoteGet(proposalID uint64, voter string) (*governance.Vote, bool, error) {
	vote := &governance.Vote{}
	ok, err := m.getJSON(voteKey(proposalID, voter), vote)
	if err != nil || !ok {
		return nil, ok, err
	}
	return vote, true, nil
}
