package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"checksvault/core/events"
)

type mockRegistry struct {
	items      map[uint64]Item
	authorized map[uint64][20]byte // additional operator with transfer rights
	transfers  int
	pairCalls  int
	aggCalls   int
	lastSwap   bool
	mergeErr   error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		items:      make(map[uint64]Item),
		authorized: make(map[uint64][20]byte),
	}
}

func (r *mockRegistry) GetItem(id uint64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	return item, nil
}

func (r *mockRegistry) IsAuthorized(owner, operator [20]byte, id uint64) (bool, error) {
	if operator == owner {
		return true, nil
	}
	return r.authorized[id] == operator, nil
}

func (r *mockRegistry) Transfer(from, to [20]byte, id uint64) error {
	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if item.Owner != from {
		return fmt.Errorf("%w: transfer of %d", ErrNotAuthorized, id)
	}
	item.Owner = to
	r.items[id] = item
	r.transfers++
	return nil
}

func (r *mockRegistry) MergePair(keepID, burnID uint64, swap bool) error {
	r.pairCalls++
	r.lastSwap = swap
	if r.mergeErr != nil {
		return r.mergeErr
	}
	keep := r.items[keepID]
	keep.Rank++
	r.items[keepID] = keep
	delete(r.items, burnID)
	return nil
}

func (r *mockRegistry) MergeAggregate(ids []uint64) error {
	r.aggCalls++
	if r.mergeErr != nil {
		return r.mergeErr
	}
	survivor := r.items[ids[0]]
	survivor.Rank = MaxRank
	r.items[ids[0]] = survivor
	for _, id := range ids[1:] {
		delete(r.items, id)
	}
	return nil
}

type mockLedger struct {
	balances map[[20]byte]*big.Int
	supply   *big.Int
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		balances: make(map[[20]byte]*big.Int),
		supply:   big.NewInt(0),
	}
}

func (l *mockLedger) balance(addr [20]byte) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return big.NewInt(0)
}

func (l *mockLedger) Credit(addr [20]byte, amount *big.Int) error {
	l.balances[addr] = new(big.Int).Add(l.balance(addr), amount)
	l.supply = new(big.Int).Add(l.supply, amount)
	return nil
}

func (l *mockLedger) Debit(addr [20]byte, amount *big.Int) error {
	bal := l.balance(addr)
	if bal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, bal, amount)
	}
	l.balances[addr] = new(big.Int).Sub(bal, amount)
	l.supply = new(big.Int).Sub(l.supply, amount)
	return nil
}

func (l *mockLedger) TotalIssued() (*big.Int, error) {
	return new(big.Int).Set(l.supply), nil
}

type mockTx struct {
	reg       *mockRegistry
	tok       *mockLedger
	committed bool
	discarded bool
}

func (t *mockTx) Registry() ItemRegistry { return t.reg }
func (t *mockTx) Token() FungibleLedger  { return t.tok }
func (t *mockTx) Commit() error          { t.committed = true; return nil }
func (t *mockTx) Discard()               { t.discarded = true }

type mockBinder struct {
	tx    *mockTx
	begun int
}

func (b *mockBinder) Begin() (TxContext, error) {
	b.begun++
	return b.tx, nil
}

type captureEmitter struct {
	events []events.Event
}

func (c *captureEmitter) Emit(event events.Event) {
	c.events = append(c.events, event)
}

func testAddress(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestEngine() (*Engine, *mockBinder, *captureEmitter) {
	binder := &mockBinder{tx: &mockTx{reg: newMockRegistry(), tok: newMockLedger()}}
	engine := NewEngine(binder, testAddress(0xEE))
	emitter := &captureEmitter{}
	engine.SetEmitter(emitter)
	return engine, binder, emitter
}

func TestDepositCreditsPriorOwner(t *testing.T) {
	engine, binder, emitter := newTestEngine()
	owner := testAddress(0xAA)
	operator := testAddress(0xBB)
	reg, tok := binder.tx.reg, binder.tx.tok
	reg.items[7] = Item{ID: 7, Rank: 3, Owner: owner}
	reg.authorized[7] = operator

	if err := engine.Deposit(operator, []uint64{7}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	amount, _ := AmountForRank(3)
	if got := tok.balance(owner); got.Cmp(amount) != 0 {
		t.Fatalf("owner credited %s, want %s", got, amount)
	}
	if got := tok.balance(operator); got.Sign() != 0 {
		t.Fatalf("operator must not be credited, got %s", got)
	}
	if reg.items[7].Owner != engine.Address() {
		t.Fatalf("item not in vault custody")
	}
	if !binder.tx.committed || binder.tx.discarded {
		t.Fatalf("expected commit, got committed=%v discarded=%v", binder.tx.committed, binder.tx.discarded)
	}
	if len(emitter.events) != 1 {
		t.Fatalf("expected one event, got %d", len(emitter.events))
	}
	if emitter.events[0].EventType() != events.TypeVaultDeposited {
		t.Fatalf("unexpected event type %s", emitter.events[0].EventType())
	}
}

func TestDepositUnauthorizedCaller(t *testing.T) {
	engine, binder, emitter := newTestEngine()
	reg := binder.tx.reg
	reg.items[1] = Item{ID: 1, Rank: 0, Owner: testAddress(0xAA)}

	err := engine.Deposit(testAddress(0xCC), []uint64{1})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}
	if reg.transfers != 0 {
		t.Fatalf("no transfer should happen, got %d", reg.transfers)
	}
	if !binder.tx.discarded || binder.tx.committed {
		t.Fatalf("expected abort")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("no events expected on abort")
	}
}

func TestDepositSupplyCeiling(t *testing.T) {
	engine, binder, _ := newTestEngine()
	owner := testAddress(0xAA)
	reg, tok := binder.tx.reg, binder.tx.tok
	reg.items[1] = Item{ID: 1, Rank: 0, Owner: owner}
	tok.supply = new(big.Int).Set(MaxSupply)

	err := engine.Deposit(owner, []uint64{1})
	if !errors.Is(err, ErrSupplyCeiling) {
		t.Fatalf("expected ErrSupplyCeiling, got %v", err)
	}
	if reg.transfers != 0 {
		t.Fatalf("ceiling must be checked before the transfer")
	}
}

func TestDepositMaximalRankFillsSupply(t *testing.T) {
	engine, binder, _ := newTestEngine()
	owner := testAddress(0xAA)
	reg, tok := binder.tx.reg, binder.tx.tok
	reg.items[1] = Item{ID: 1, Rank: MaxRank, Owner: owner}
	reg.items[2] = Item{ID: 2, Rank: 0, Owner: owner}

	if err := engine.Deposit(owner, []uint64{1}); err != nil {
		t.Fatalf("deposit maximal: %v", err)
	}
	if tok.supply.Cmp(MaxSupply) != 0 {
		t.Fatalf("supply %s, want full ceiling %s", tok.supply, MaxSupply)
	}
	binder.tx.committed, binder.tx.discarded = false, false
	err := engine.Deposit(owner, []uint64{2})
	if !errors.Is(err, ErrSupplyCeiling) {
		t.Fatalf("expected ErrSupplyCeiling for any further deposit, got %v", err)
	}
}

func TestDepositBatchAllOrNothing(t *testing.T) {
	engine, binder, emitter := newTestEngine()
	owner := testAddress(0xAA)
	reg := binder.tx.reg
	reg.items[1] = Item{ID: 1, Rank: 0, Owner: owner}
	// Item 2 does not exist.

	err := engine.Deposit(owner, []uint64{1, 2})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	if binder.tx.committed {
		t.Fatalf("batch must not commit on partial failure")
	}
	if !binder.tx.discarded {
		t.Fatalf("batch must be discarded")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("no events on aborted batch")
	}
}

func TestDepositEmptyBatch(t *testing.T) {
	engine, binder, _ := newTestEngine()
	if err := engine.Deposit(testAddress(0xAA), nil); err == nil {
		t.Fatalf("expected error for empty batch")
	}
	if binder.begun != 0 {
		t.Fatalf("empty batch must not open a transaction")
	}
}

func TestRedeemChargesCurrentRank(t *testing.T) {
	engine, binder, emitter := newTestEngine()
	caller := testAddress(0xAA)
	reg, tok := binder.tx.reg, binder.tx.tok
	// Deposited at rank 2, merged up to rank 4 while in custody.
	reg.items[9] = Item{ID: 9, Rank: 4, Owner: engine.Address()}
	funded, _ := AmountForRank(4)
	tok.balances[caller] = new(big.Int).Set(funded)
	tok.supply = new(big.Int).Set(funded)

	if err := engine.Redeem(caller, 9); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if got := tok.balance(caller); got.Sign() != 0 {
		t.Fatalf("caller should be debited in full, has %s", got)
	}
	if reg.items[9].Owner != caller {
		t.Fatalf("item not released to caller")
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType() != events.TypeVaultRedeemed {
		t.Fatalf("unexpected events %+v", emitter.events)
	}
}

func TestRedeemInsufficientBalance(t *testing.T) {
	engine, binder, _ := newTestEngine()
	caller := testAddress(0xAA)
	reg, tok := binder.tx.reg, binder.tx.tok
	reg.items[9] = Item{ID: 9, Rank: 4, Owner: engine.Address()}
	tok.balances[caller] = big.NewInt(1)

	err := engine.Redeem(caller, 9)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if reg.items[9].Owner != engine.Address() {
		t.Fatalf("item must stay in custody")
	}
	if !binder.tx.discarded {
		t.Fatalf("expected abort")
	}
}

func TestRedeemRequiresCustody(t *testing.T) {
	engine, binder, _ := newTestEngine()
	caller := testAddress(0xAA)
	binder.tx.reg.items[9] = Item{ID: 9, Rank: 4, Owner: caller}

	err := engine.Redeem(caller, 9)
	if !errors.Is(err, ErrNotInCustody) {
		t.Fatalf("expected ErrNotInCustody, got %v", err)
	}
}

func TestReceiveValueAlwaysRejected(t *testing.T) {
	engine, binder, _ := newTestEngine()
	from := testAddress(0xAA)

	if err := engine.ReceiveValue(from, big.NewInt(5), nil); !errors.Is(err, ErrUnsolicitedValue) {
		t.Fatalf("expected ErrUnsolicitedValue, got %v", err)
	}
	if err := engine.ReceiveValue(from, big.NewInt(5), []byte("deposit")); !errors.Is(err, ErrUnsolicitedValue) {
		t.Fatalf("expected ErrUnsolicitedValue with data, got %v", err)
	}
	if err := engine.ReceiveValue(from, nil, nil); !errors.Is(err, ErrUnsolicitedValue) {
		t.Fatalf("expected ErrUnsolicitedValue with nil amount, got %v", err)
	}
	if binder.begun != 0 {
		t.Fatalf("value rejection must not touch state")
	}
}
