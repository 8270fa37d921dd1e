package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"architex/core/types"
	"architex/native/arbitration"
	"architex/native/escrow"
	"architex/native/governance"
	"architex/native/trust"
	"architex/storage"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager := NewManager(storage.NewMemDB())
	manager.SetNowFunc(func() int64 { return 1_700_000_000 })
	return manager
}

func TestAccountRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	// Unknown accounts come back zeroed and usable.
	account, err := manager.GetAccount("alice")
	require.NoError(t, err)
	require.NotNil(t, account.Balance)
	require.Zero(t, account.Balance.Sign())

	account.Balance = big.NewInt(1_500)
	account.Stake = big.NewInt(200)
	account.Likes = 3
	require.NoError(t, manager.PutAccount("alice", account))

	loaded, err := manager.GetAccount("alice")
	require.NoError(t, err)
	require.Equal(t, int64(1_500), loaded.Balance.Int64())
	require.Equal(t, int64(200), loaded.Stake.Int64())
	require.Equal(t, uint64(3), loaded.Likes)

	// The stored copy is isolated from later caller mutation.
	account.Balance.SetInt64(0)
	loaded, err = manager.GetAccount("alice")
	require.NoError(t, err)
	require.Equal(t, int64(1_500), loaded.Balance.Int64())
}

func TestEscrowPutSanitizes(t *testing.T) {
	manager := newTestManager(t)

	err := manager.EscrowPut(&escrow.Contract{ID: "  ", Client: "alice", Amount: big.NewInt(100)})
	require.Error(t, err)

	contract := &escrow.Contract{
		ID:        "c1",
		Client:    "alice",
		Provider:  "bob",
		Amount:    big.NewInt(100),
		Remaining: big.NewInt(100),
		FeeBps:    1_000,
		Status:    escrow.StatusOpen,
	}
	require.NoError(t, manager.EscrowPut(contract))

	loaded, ok, err := manager.EscrowGet("c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice", loaded.Client)
	require.Equal(t, int64(100), loaded.Amount.Int64())

	_, ok, err = manager.EscrowGet("missing")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEscrowSettleWritesContractAndAccounts(t *testing.T) {
	manager := newTestManager(t)

	contract := &escrow.Contract{
		ID:        "c1",
		Client:    "alice",
		Provider:  "bob",
		Amount:    big.NewInt(100),
		Remaining: big.NewInt(0),
		FeeBps:    1_000,
		Status:    escrow.StatusCompleted,
	}
	accounts := map[string]*types.Account{
		"bob":          {Balance: big.NewInt(90)},
		"sys:treasury": {Balance: big.NewInt(10)},
	}
	require.NoError(t, manager.EscrowSettle(contract, accounts))

	loaded, ok, err := manager.EscrowGet("c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, escrow.StatusCompleted, loaded.Status)

	bob, err := manager.GetAccount("bob")
	require.NoError(t, err)
	require.Equal(t, int64(90), bob.Balance.Int64())
	treasury, err := manager.GetAccount("sys:treasury")
	require.NoError(t, err)
	require.Equal(t, int64(10), treasury.Balance.Int64())

	// An invalid contract rejects the whole settle before anything lands.
	err = manager.EscrowSettle(&escrow.Contract{ID: ""}, map[string]*types.Account{
		"carol": {Balance: big.NewInt(5)},
	})
	require.Error(t, err)
	carol, err := manager.GetAccount("carol")
	require.NoError(t, err)
	require.Zero(t, carol.Balance.Sign())
}

func TestDisputeContractIndex(t *testing.T) {
	manager := newTestManager(t)

	dispute := &arbitration.Dispute{
		ID:         "d1",
		ContractID: "c1",
		Initiator:  "alice",
		Respondent: "bob",
		Status:     arbitration.DisputeOpen,
	}
	require.NoError(t, manager.DisputePut(dispute))

	byContract, ok, err := manager.DisputeByContract("c1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "d1", byContract.ID)

	_, ok, err = manager.DisputeByContract("c2")
	require.NoError(t, err)
	require.False(t, ok)

	list, err := manager.DisputeList()
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestInteractionIndexes(t *testing.T) {
	manager := newTestManager(t)

	record := &arbitration.InteractionRecord{
		ID:     "i1",
		Kind:   arbitration.InteractionTransaction,
		PartyA: "arb",
		PartyB: "alice",
	}
	require.NoError(t, manager.InteractionPut(record))

	// The pair probe is order-independent.
	for _, pair := range [][2]string{{"arb", "alice"}, {"alice", "arb"}} {
		found, err := manager.HasInteraction(pair[0], pair[1])
		require.NoError(t, err)
		require.True(t, found)
	}
	found, err := manager.HasInteraction("arb", "bob")
	require.NoError(t, err)
	require.False(t, found)

	// Both participants can list the record.
	for _, party := range []string{"arb", "alice"} {
		records, err := manager.InteractionsFor(party)
		require.NoError(t, err)
		require.Len(t, records, 1)
		require.Equal(t, "i1", records[0].ID)
	}
	records, err := manager.InteractionsFor("bob")
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestProposalSequenceAndRoundTrip(t *testing.T) {
	manager := newTestManager(t)

	first, err := manager.NextProposalID()
	require.NoError(t, err)
	second, err := manager.NextProposalID()
	require.NoError(t, err)
	require.Equal(t, uint64(1), first)
	require.Equal(t, uint64(2), second)

	proposal := &governance.Proposal{
		ID:       first,
		Title:    "raise fee",
		Creator:  "alice",
		Status:   governance.ProposalStatusActive,
		VotesFor: big.NewInt(100),
	}
	require.NoError(t, manager.ProposalPut(proposal))

	loaded, ok, err := manager.ProposalGet(first)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "raise fee", loaded.Title)
	require.NotNil(t, loaded.VotesAgainst)

	list, err := manager.ProposalList()
	require.NoError(t, err)
	require.Len(t, list, 1)

	vote := &governance.Vote{ProposalID: first, Voter: "bob", Support: true, Power: big.NewInt(10)}
	require.NoError(t, manager.VotePut(vote))
	stored, ok, err := manager.VoteGet(first, "bob")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, stored.Support)
	_, ok, err = manager.VoteGet(first, "carol")
	require.NoError(t, err)
	require.False(t, ok)

	// Ballots list per proposal and do not bleed across proposals.
	require.NoError(t, manager.VotePut(&governance.Vote{ProposalID: second, Voter: "dave", Support: false, Power: big.NewInt(5)}))
	ballots, err := manager.VoteList(first)
	require.NoError(t, err)
	require.Len(t, ballots, 1)
	require.Equal(t, "bob", ballots[0].Voter)
}

func TestTotalVotingPowerSkipsSystemAccounts(t *testing.T) {
	manager := newTestManager(t)

	alice := &types.Account{Stake: big.NewInt(2_000), CreatedAt: 1_700_000_000}
	bob := &types.Account{Stake: big.NewInt(500), CreatedAt: 1_700_000_000}
	require.NoError(t, manager.PutAccount("alice", alice))
	require.NoError(t, manager.PutAccount("bob", bob))
	require.NoError(t, manager.PutAccount(types.TreasuryAccountID, &types.Account{Balance: big.NewInt(1_000_000)}))

	expected := big.NewInt(0)
	for _, account := range []*types.Account{alice, bob} {
		profile := trust.Compute(trust.Stats{Staked: account.Stake})
		expected.Add(expected, trust.VotingPower(account.Stake, profile.Score))
	}
	total, err := manager.TotalVotingPower()
	require.NoError(t, err)
	require.Zero(t, expected.Cmp(total))
}

func TestVotingPowerOfMatchesTrustDerivation(t *testing.T) {
	manager := newTestManager(t)

	account := &types.Account{
		Stake:        big.NewInt(1_000),
		VolumeTraded: big.NewInt(500),
		Likes:        100,
		CreatedAt:    1_700_000_000 - 365*24*60*60,
	}
	require.NoError(t, manager.PutAccount("alice", account))

	profile, err := manager.TrustProfile("alice")
	require.NoError(t, err)
	require.Equal(t, 100, profile.Score)
	require.Equal(t, trust.LevelAuthority, profile.Level)

	power, err := manager.VotingPowerOf("alice")
	require.NoError(t, err)
	require.Zero(t, power.Cmp(trust.VotingPower(account.Stake, profile.Score)))
}
