package state

import (
	"errors"
	"fmt"
	"math/big"

	"checksvault/native/registry"
	"checksvault/native/token"
	"checksvault/native/vault"
	"checksvault/storage"
)

// Manager binds the vault engine to the persistent collaborators. Every
// engine operation runs against a storage batch that commits atomically or
// not at all, which is what gives multi-item deposits and merges their
// all-or-nothing semantics.
type Manager struct {
	store *storage.Manager
}

// NewManager wraps the storage manager.
func NewManager(store *storage.Manager) *Manager {
	return &Manager{store: store}
}

// Registry returns a registry view reading and writing live state, for
// wiring and read-only RPC paths outside engine transactions.
func (m *Manager) Registry() *registry.Registry {
	return registry.New(m.store)
}

// Token returns a ledger view over live state.
func (m *Manager) Token() *token.Ledger {
	return token.NewLedger(m.store)
}

// Begin implements vault.StateBinder.
func (m *Manager) Begin() (vault.TxContext, error) {
	if m == nil || m.store == nil {
		return nil, errors.New("state: manager not configured")
	}
	batch := m.store.Batch()
	return &txContext{
		batch: batch,
		reg:   registryAdapter{inner: registry.New(batch)},
		tok:   ledgerAdapter{inner: token.NewLedger(batch)},
	}, nil
}

type txContext struct {
	batch *storage.Batch
	reg   registryAdapter
	tok   ledgerAdapter
}

func (t *txContext) Registry() vault.ItemRegistry { return t.reg }
func (t *txContext) Token() vault.FungibleLedger  { return t.tok }
func (t *txContext) Commit() error                { return t.batch.Commit() }
func (t *txContext) Discard()                     { t.batch.Discard() }

// registryAdapter narrows the registry to the vault's view and translates
// registry sentinels into the vault's error kinds: missing and consumed
// items collapse into the vault's not-found kind, every other structural
// rejection surfaces as a registry rejection.
type registryAdapter struct {
	inner *registry.Registry
}

func (a registryAdapter) GetItem(id uint64) (vault.Item, error) {
	item, err := a.inner.GetItem(id)
	if err != nil {
		return vault.Item{}, translateRegistryError(err)
	}
	return vault.Item{ID: item.ID, Rank: item.Rank, Owner: item.Owner}, nil
}

func (a registryAdapter) IsAuthorized(owner, operator [20]byte, id uint64) (bool, error) {
	ok, err := a.inner.IsAuthorized(owner, operator, id)
	if err != nil {
		return false, translateRegistryError(err)
	}
	return ok, nil
}

func (a registryAdapter) Transfer(from, to [20]byte, id uint64) error {
	return translateRegistryError(a.inner.Transfer(from, to, id))
}

func (a registryAdapter) MergePair(keepID, burnID uint64, swap bool) error {
	return translateRegistryError(a.inner.MergePair(keepID, burnID, swap))
}

func (a registryAdapter) MergeAggregate(ids []uint64) error {
	return translateRegistryError(a.inner.MergeAggregate(ids))
}

func translateRegistryError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, registry.ErrItemNotFound), errors.Is(err, registry.ErrItemConsumed):
		return fmt.Errorf("%w: %s", vault.ErrItemNotFound, err)
	case errors.Is(err, registry.ErrNotAuthorized),
		errors.Is(err, registry.ErrRankMismatch),
		errors.Is(err, registry.ErrDuplicateItem),
		errors.Is(err, registry.ErrBadAggregate),
		errors.Is(err, registry.ErrInvalidRank):
		return fmt.Errorf("%w: %s", vault.ErrRegistryRejected, err)
	default:
		return err
	}
}

// ledgerAdapter translates the token ledger's sentinels into the vault's
// error kinds.
type ledgerAdapter struct {
	inner *token.Ledger
}

func (a ledgerAdapter) Credit(addr [20]byte, amount *big.Int) error {
	return a.inner.Credit(addr, amount)
}

func (a ledgerAdapter) Debit(addr [20]byte, amount *big.Int) error {
	err := a.inner.Debit(addr, amount)
	if errors.Is(err, token.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %s", vault.ErrInsufficientBalance, err)
	}
	return err
}

func (a ledgerAdapter) TotalIssued() (*big.Int, error) {
	return a.inner.TotalIssued()
}
