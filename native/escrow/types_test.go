package escrow

import (
	"math/big"
	"testing"
)

func TestSanitizeRejectsBadContracts(t *testing.T) {
	base := func() *Contract {
		return &Contract{
			ID:        "c1",
			Client:    "alice",
			Amount:    big.NewInt(100),
			Remaining: big.NewInt(100),
			Status:    StatusOpen,
		}
	}
	cases := []struct {
		name   string
		mutate func(*Contract)
	}{
		{"empty id", func(c *Contract) { c.ID = "  " }},
		{"empty client", func(c *Contract) { c.Client = "" }},
		{"negative amount", func(c *Contract) { c.Amount = big.NewInt(-1) }},
		{"fee out of range", func(c *Contract) { c.FeeBps = 10_001 }},
		{"invalid status", func(c *Contract) { c.Status = Status(99) }},
		{"milestone shares short", func(c *Contract) {
			c.Milestones = []*Milestone{{Name: "upfront", ShareBps: 3_000, Amount: big.NewInt(30)}}
		}},
		{"unnamed milestone", func(c *Contract) {
			c.Milestones = []*Milestone{
				{Name: "", ShareBps: 3_000, Amount: big.NewInt(30)},
				{Name: "completion", ShareBps: 7_000, Amount: big.NewInt(70)},
			}
		}},
	}
	for _, tc := range cases {
		contract := base()
		tc.mutate(contract)
		if _, err := Sanitize(contract); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if _, err := Sanitize(nil); err == nil {
		t.Fatalf("expected error for nil contract")
	}
}

func TestSanitizeDoesNotMutateOriginal(t *testing.T) {
	contract := &Contract{
		ID:        " c1 ",
		Client:    " alice ",
		Amount:    big.NewInt(100),
		Remaining: big.NewInt(100),
		Status:    StatusOpen,
	}
	sanitized, err := Sanitize(contract)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.ID != "c1" || sanitized.Client != "alice" {
		t.Fatalf("expected trimmed fields, got %q/%q", sanitized.ID, sanitized.Client)
	}
	if contract.ID != " c1 " {
		t.Fatalf("original mutated: %q", contract.ID)
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusReleased, StatusConfiscated, StatusResolved}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("expected %s terminal", s)
		}
	}
	active := []Status{StatusOpen, StatusAssigned, StatusSubmitted, StatusLocked, StatusPartiallyReleased, StatusFrozen}
	for _, s := range active {
		if s.Terminal() {
			t.Fatalf("expected %s non-terminal", s)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	contract := &Contract{
		ID:        "c1",
		Client:    "alice",
		Amount:    big.NewInt(1000),
		Remaining: big.NewInt(1000),
		Status:    StatusLocked,
		Milestones: []*Milestone{
			{Name: "upfront", ShareBps: 3_000, Amount: big.NewInt(300)},
			{Name: "completion", ShareBps: 7_000, Amount: big.NewInt(700)},
		},
	}
	clone := contract.Clone()
	clone.Amount.SetInt64(5)
	clone.Milestones[0].Status = MilestoneReleased
	if contract.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("clone shares amount with original")
	}
	if contract.Milestones[0].Status != MilestoneLocked {
		t.Fatalf("clone shares milestones with original")
	}
}

func TestComputeIDDeterministic(t *testing.T) {
	a := ComputeID("alice", "bob", "listing-42")
	b := ComputeID(" alice ", "bob", "listing-42")
	if a != b {
		t.Fatalf("expected trimmed inputs to match: %s vs %s", a, b)
	}
	if a == ComputeID("alice", "bob", "listing-43") {
		t.Fatalf("expected distinct ids for distinct references")
	}
	if len(a) != 64 {
		t.Fatalf("expected 32-byte hex id, got %d chars", len(a))
	}
}
