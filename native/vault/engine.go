package vault

import (
	"fmt"
	"math/big"
	"sync"

	"checksvault/core/events"
)

// Item is the vault's read-only view of a collectible reported by the
// registry.
type Item struct {
	ID    uint64
	Rank  uint8
	Owner [20]byte
}

// ItemRegistry is the registry surface the vault depends on. Implementations
// fail loudly on nonexistent or consumed items; the vault never duplicates
// the registry's structural checks, only its own business preconditions.
type ItemRegistry interface {
	GetItem(id uint64) (Item, error)
	IsAuthorized(owner, operator [20]byte, id uint64) (bool, error)
	Transfer(from, to [20]byte, id uint64) error
	MergePair(keepID, burnID uint64, swap bool) error
	MergeAggregate(ids []uint64) error
}

// FungibleLedger is the balance substrate the vault issues against. Credit
// and Debit move the global issued counter together with the balance.
type FungibleLedger interface {
	Credit(addr [20]byte, amount *big.Int) error
	Debit(addr [20]byte, amount *big.Int) error
	TotalIssued() (*big.Int, error)
}

// TxContext binds both collaborators to one atomic unit of work. Either the
// whole operation commits or none of it does.
type TxContext interface {
	Registry() ItemRegistry
	Token() FungibleLedger
	Commit() error
	Discard()
}

// StateBinder opens transaction contexts for the engine.
type StateBinder interface {
	Begin() (TxContext, error)
}

// Engine is the conversion engine: it takes items into custody against
// freshly issued fungible units and releases them again when the units are
// burned back. Operations execute strictly one at a time and run to commit
// or full abort; the collaborators are passive state packages and never call
// back into the engine.
type Engine struct {
	mu      sync.Mutex
	state   StateBinder
	address [20]byte
	emitter events.Emitter
}

// NewEngine constructs an engine custodying items under the given address.
func NewEngine(state StateBinder, address [20]byte) *Engine {
	return &Engine{
		state:   state,
		address: address,
		emitter: events.NoopEmitter{},
	}
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

// Address returns the custody address items are parked under.
func (e *Engine) Address() [20]byte { return e.address }

// Deposit takes every listed item into custody and credits each item's prior
// owner with the conversion amount for its rank. The batch is all-or-nothing:
// a failure on any item aborts the whole call with no state change, so the
// supply-ceiling check always evaluates against a consistent state.
func (e *Engine) Deposit(caller [20]byte, itemIDs []uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	if len(itemIDs) == 0 {
		return errEmptyBatch
	}
	tx, err := e.state.Begin()
	if err != nil {
		return err
	}
	reg, tok := tx.Registry(), tx.Token()
	emitted := make([]events.Event, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := e.ensureDepositable(reg, caller, id)
		if err != nil {
			tx.Discard()
			return err
		}
		amount, err := AmountForRank(item.Rank)
		if err != nil {
			tx.Discard()
			return err
		}
		total, err := tok.TotalIssued()
		if err != nil {
			tx.Discard()
			return err
		}
		if new(big.Int).Add(total, amount).Cmp(MaxSupply) > 0 {
			tx.Discard()
			return fmt.Errorf("%w: item %d converts to %s with %s already issued", ErrSupplyCeiling, id, amount, total)
		}
		if err := reg.Transfer(item.Owner, e.address, id); err != nil {
			tx.Discard()
			return err
		}
		if err := tok.Credit(item.Owner, amount); err != nil {
			tx.Discard()
			return err
		}
		emitted = append(emitted, events.VaultDeposited{ItemID: id, Rank: item.Rank, Owner: item.Owner, Amount: amount})
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.emitAll(emitted)
	return nil
}

// Redeem burns the conversion amount for the item's current rank from the
// caller and releases the item from custody. The current rank may differ
// from the rank at deposit time if merges happened in between; the price to
// take a specific item out floats with its rarity.
func (e *Engine) Redeem(caller [20]byte, itemID uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	tx, err := e.state.Begin()
	if err != nil {
		return err
	}
	reg, tok := tx.Registry(), tx.Token()
	item, err := e.ensureCustody(reg, itemID)
	if err != nil {
		tx.Discard()
		return err
	}
	amount, err := AmountForRank(item.Rank)
	if err != nil {
		tx.Discard()
		return err
	}
	if err := tok.Debit(caller, amount); err != nil {
		tx.Discard()
		return err
	}
	if err := reg.Transfer(e.address, caller, itemID); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.emitAll([]events.Event{events.VaultRedeemed{ItemID: itemID, Rank: item.Rank, Redeemer: caller, Amount: amount}})
	return nil
}

// ReceiveValue rejects bare value transfers directed at the vault,
// unconditionally and regardless of accompanying data.
func (e *Engine) ReceiveValue(from [20]byte, amount *big.Int, data []byte) error {
	return fmt.Errorf("%w: %s from %#x", ErrUnsolicitedValue, formatAmount(amount), from)
}

// TotalIssued reports the current global issued counter.
func (e *Engine) TotalIssued() (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return nil, errNilState
	}
	tx, err := e.state.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Discard()
	return tx.Token().TotalIssued()
}

// MaxSupplyAmount reports the immutable issuance ceiling.
func (e *Engine) MaxSupplyAmount() *big.Int {
	return new(big.Int).Set(MaxSupply)
}

func (e *Engine) emitAll(emitted []events.Event) {
	if e.emitter == nil {
		return
	}
	for _, event := range emitted {
		e.emitter.Emit(event)
	}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
