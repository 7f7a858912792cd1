package state

import (
	"errors"
	"math/big"
	"testing"

	"checksvault/native/registry"
	"checksvault/native/vault"
	"checksvault/storage"
)

func testAddress(fill byte) [20]byte {
	var a [20]byte
	for i := range a {
		a[i] = fill
	}
	return a
}

func newTestStack(t *testing.T) (*Manager, *vault.Engine) {
	t.Helper()
	mgr := NewManager(storage.NewManager(storage.NewMemDB()))
	engine := vault.NewEngine(mgr, testAddress(0xFE))
	return mgr, engine
}

func mustMint(t *testing.T, mgr *Manager, owner [20]byte, id uint64, rank uint8) {
	t.Helper()
	if err := mgr.Registry().Mint(owner, id, rank); err != nil {
		t.Fatalf("mint %d: %v", id, err)
	}
}

func mustAmount(t *testing.T, rank uint8) *big.Int {
	t.Helper()
	amount, err := vault.AmountForRank(rank)
	if err != nil {
		t.Fatalf("amount for rank %d: %v", rank, err)
	}
	return amount
}

func TestDepositRedeemRoundTrip(t *testing.T) {
	mgr, engine := newTestStack(t)
	alice := testAddress(0xA1)
	mustMint(t, mgr, alice, 1, 3)

	if err := engine.Deposit(alice, []uint64{1}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	owner, err := mgr.Registry().OwnerOf(1)
	if err != nil || owner != engine.Address() {
		t.Fatalf("item should be in custody, owner %x (%v)", owner, err)
	}
	want := mustAmount(t, 3)
	balance, err := mgr.Token().BalanceOf(alice)
	if err != nil || balance.Cmp(want) != 0 {
		t.Fatalf("balance %s (%v), want %s", balance, err, want)
	}

	if err := engine.Redeem(alice, 1); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	owner, err = mgr.Registry().OwnerOf(1)
	if err != nil || owner != alice {
		t.Fatalf("item should be released, owner %x (%v)", owner, err)
	}
	balance, _ = mgr.Token().BalanceOf(alice)
	supply, _ := mgr.Token().TotalIssued()
	if balance.Sign() != 0 || supply.Sign() != 0 {
		t.Fatalf("round trip must be neutral, balance %s supply %s", balance, supply)
	}
}

func TestFailedDepositLeavesNoTrace(t *testing.T) {
	mgr, engine := newTestStack(t)
	alice, bob := testAddress(0xA1), testAddress(0xB2)
	mustMint(t, mgr, alice, 1, 2)
	mustMint(t, mgr, bob, 2, 2)

	// Alice holds no grant over bob's item, so the second element of the
	// batch fails and the whole call must unwind.
	err := engine.Deposit(alice, []uint64{1, 2})
	if !errors.Is(err, vault.ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	owner, err := mgr.Registry().OwnerOf(1)
	if err != nil || owner != alice {
		t.Fatalf("first item must stay with alice, owner %x (%v)", owner, err)
	}
	balance, _ := mgr.Token().BalanceOf(alice)
	supply, _ := mgr.Token().TotalIssued()
	if balance.Sign() != 0 || supply.Sign() != 0 {
		t.Fatalf("failed deposit must not issue, balance %s supply %s", balance, supply)
	}
}

func TestOperatorDepositCreditsPriorOwner(t *testing.T) {
	mgr, engine := newTestStack(t)
	alice, operator := testAddress(0xA1), testAddress(0xB2)
	mustMint(t, mgr, alice, 1, 4)
	if err := mgr.Registry().SetApprovalForAll(alice, operator, true); err != nil {
		t.Fatalf("set approval for all: %v", err)
	}

	if err := engine.Deposit(operator, []uint64{1}); err != nil {
		t.Fatalf("operator deposit: %v", err)
	}
	want := mustAmount(t, 4)
	aliceBalance, _ := mgr.Token().BalanceOf(alice)
	operatorBalance, _ := mgr.Token().BalanceOf(operator)
	if aliceBalance.Cmp(want) != 0 {
		t.Fatalf("prior owner balance %s, want %s", aliceBalance, want)
	}
	if operatorBalance.Sign() != 0 {
		t.Fatalf("operator must not be credited, got %s", operatorBalance)
	}
}

func TestErrorTranslation(t *testing.T) {
	mgr, engine := newTestStack(t)
	alice := testAddress(0xA1)

	if err := engine.Deposit(alice, []uint64{99}); !errors.Is(err, vault.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	// Two custodied items of different ranks: the vault's preconditions pass
	// and the registry's structural rejection must surface translated.
	mustMint(t, mgr, alice, 1, 2)
	mustMint(t, mgr, alice, 2, 3)
	if err := engine.Deposit(alice, []uint64{1, 2}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.MergePair(alice, 1, 2); !errors.Is(err, vault.ErrRegistryRejected) {
		t.Fatalf("expected ErrRegistryRejected, got %v", err)
	}
	broke := testAddress(0xD4)
	if err := engine.Redeem(broke, 1); !errors.Is(err, vault.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestRedeemChargesCurrentRankAfterMerge(t *testing.T) {
	mgr, engine := newTestStack(t)
	alice := testAddress(0xA1)
	mustMint(t, mgr, alice, 1, 2)
	mustMint(t, mgr, alice, 2, 2)

	if err := engine.Deposit(alice, []uint64{1, 2}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := engine.MergePair(alice, 1, 2); err != nil {
		t.Fatalf("merge: %v", err)
	}

	// Alice was credited 2x amount(2); the survivor now costs amount(3),
	// which is the same total. The round trip stays neutral through the
	// merge because pairwise merges conserve value.
	if err := engine.Redeem(alice, 1); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	balance, _ := mgr.Token().BalanceOf(alice)
	supply, _ := mgr.Token().TotalIssued()
	if balance.Sign() != 0 || supply.Sign() != 0 {
		t.Fatalf("merge round trip must be neutral, balance %s supply %s", balance, supply)
	}
	item, err := mgr.Registry().GetItem(1)
	if err != nil || item.Rank != 3 || item.Owner != alice {
		t.Fatalf("survivor %+v (%v), want rank 3 owned by alice", item, err)
	}
	if _, err := mgr.Registry().GetItem(2); !errors.Is(err, registry.ErrItemConsumed) {
		t.Fatalf("burned item must stay a tombstone, got %v", err)
	}
}

func TestAggregateFillsSupplyExactly(t *testing.T) {
	mgr, engine := newTestStack(t)
	ids := make([]uint64, vault.AggregateCount)
	owners := make([][20]byte, vault.AggregateCount)
	for i := range ids {
		ids[i] = uint64(i + 1)
		owners[i] = testAddress(byte(i + 1))
		mustMint(t, mgr, owners[i], ids[i], vault.AggregateRank)
		if err := engine.Deposit(owners[i], []uint64{ids[i]}); err != nil {
			t.Fatalf("deposit %d: %v", ids[i], err)
		}
	}

	supply, err := engine.TotalIssued()
	if err != nil {
		t.Fatalf("total issued: %v", err)
	}
	if supply.Cmp(engine.MaxSupplyAmount()) != 0 {
		t.Fatalf("64 deposits of the aggregate rank must fill the supply, got %s", supply)
	}

	// The ceiling is hard: nothing else converts while the supply is full.
	extra := testAddress(0xEE)
	mustMint(t, mgr, extra, 1000, 0)
	if err := engine.Deposit(extra, []uint64{1000}); !errors.Is(err, vault.ErrSupplyCeiling) {
		t.Fatalf("expected ErrSupplyCeiling, got %v", err)
	}

	if err := engine.MergeAggregate(owners[0], ids); err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	survivor, err := mgr.Registry().GetItem(ids[0])
	if err != nil || survivor.Rank != vault.MaxRank {
		t.Fatalf("survivor %+v (%v), want maximal rank", survivor, err)
	}
	for _, id := range ids[1:] {
		if _, err := mgr.Registry().GetItem(id); !errors.Is(err, registry.ErrItemConsumed) {
			t.Fatalf("item %d should be consumed, got %v", id, err)
		}
	}
	// Crystallizing inside custody moves no value.
	supply, _ = engine.TotalIssued()
	if supply.Cmp(engine.MaxSupplyAmount()) != 0 {
		t.Fatalf("aggregate must not change the issued total, got %s", supply)
	}

	// The survivor now costs the entire ceiling. Each depositor holds only
	// their own 1/64th share, so none of them alone can take it out.
	if err := engine.Redeem(owners[1], ids[0]); !errors.Is(err, vault.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance for a single depositor, got %v", err)
	}
	survivorOwner, err := mgr.Registry().OwnerOf(ids[0])
	if err != nil || survivorOwner != engine.Address() {
		t.Fatalf("survivor must stay in custody, owner %x (%v)", survivorOwner, err)
	}
}

func TestMaximalRankDepositFillsSupply(t *testing.T) {
	mgr, engine := newTestStack(t)
	alice, bob := testAddress(0xA1), testAddress(0xB2)
	mustMint(t, mgr, alice, 1, vault.MaxRank)
	mustMint(t, mgr, bob, 2, 0)

	if err := engine.Deposit(alice, []uint64{1}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	supply, _ := engine.TotalIssued()
	if supply.Cmp(engine.MaxSupplyAmount()) != 0 {
		t.Fatalf("maximal-rank deposit must fill the supply, got %s", supply)
	}
	if err := engine.Deposit(bob, []uint64{2}); !errors.Is(err, vault.ErrSupplyCeiling) {
		t.Fatalf("expected ErrSupplyCeiling, got %v", err)
	}

	// Releasing the item drains everything again.
	if err := engine.Redeem(alice, 1); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	supply, _ = engine.TotalIssued()
	if supply.Sign() != 0 {
		t.Fatalf("supply should be empty after redemption, got %s", supply)
	}
	if err := engine.Deposit(bob, []uint64{2}); err != nil {
		t.Fatalf("deposit after drain: %v", err)
	}
}

func TestIssuedMatchesBalanceSum(t *testing.T) {
	mgr, engine := newTestStack(t)
	holders := []struct {
		addr [20]byte
		id   uint64
		rank uint8
	}{
		{testAddress(0xA1), 1, 0},
		{testAddress(0xB2), 2, 3},
		{testAddress(0xC3), 3, 5},
	}
	for _, h := range holders {
		mustMint(t, mgr, h.addr, h.id, h.rank)
		if err := engine.Deposit(h.addr, []uint64{h.id}); err != nil {
			t.Fatalf("deposit %d: %v", h.id, err)
		}
	}

	sum := new(big.Int)
	for _, h := range holders {
		balance, err := mgr.Token().BalanceOf(h.addr)
		if err != nil {
			t.Fatalf("balance: %v", err)
		}
		sum.Add(sum, balance)
	}
	supply, err := engine.TotalIssued()
	if err != nil {
		t.Fatalf("total issued: %v", err)
	}
	if sum.Cmp(supply) != 0 {
		t.Fatalf("issued %s, balance sum %s", supply, sum)
	}
}
