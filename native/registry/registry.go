package registry

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"checksvault/storage"
)

// Structural constants of the collection. Ranks run 0..MaxRank; the maximal
// rank is reachable only through the aggregate merge, which consumes
// AggregateCount items of AggregateRank.
const (
	MaxRank        uint8 = 7
	AggregateRank  uint8 = MaxRank - 1
	AggregateCount       = 64
)

var (
	ErrItemNotFound  = errors.New("registry: item not found")
	ErrItemConsumed  = errors.New("registry: item consumed")
	ErrItemExists    = errors.New("registry: item already exists")
	ErrNotAuthorized = errors.New("registry: not authorized")
	ErrInvalidRank   = errors.New("registry: invalid rank")
	ErrRankMismatch  = errors.New("registry: rank mismatch")
	ErrDuplicateItem = errors.New("registry: duplicate item")
	ErrBadAggregate  = errors.New("registry: aggregate set rejected")
)

var (
	itemPrefix     = []byte("registry/item/")
	approvalPrefix = []byte("registry/approval/")
	operatorPrefix = []byte("registry/operator/")
)

// Item is a uniquely identified collectible tracked by the registry. Consumed
// items stay in the arena as tombstones; identifiers are never reused.
type Item struct {
	ID       uint64
	Rank     uint8
	Seed     uint64
	Owner    [20]byte
	Consumed bool
}

// Clone returns a copy callers can mutate freely.
func (it *Item) Clone() *Item {
	if it == nil {
		return nil
	}
	clone := *it
	return &clone
}

// Registry owns the item arena and the transfer-authorization bookkeeping.
type Registry struct {
	state storage.State
}

// New constructs a registry bound to the provided state backend.
func New(state storage.State) *Registry {
	return &Registry{state: state}
}

// Mint creates a new item with the given rank. The seed driving the item's
// rendering is derived from the identifier and is stable across restarts.
func (r *Registry) Mint(owner [20]byte, id uint64, rank uint8) error {
	if r == nil || r.state == nil {
		return errNotInitialised
	}
	if rank > MaxRank {
		return fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}
	var existing Item
	ok, err := r.state.KVGet(itemKey(id), &existing)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %d", ErrItemExists, id)
	}
	item := &Item{ID: id, Rank: rank, Seed: deriveSeed(id), Owner: owner}
	return r.state.KVPut(itemKey(id), item)
}

// Exists reports whether an item was ever minted under id, consumed or not.
func (r *Registry) Exists(id uint64) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNotInitialised
	}
	var item Item
	return r.state.KVGet(itemKey(id), &item)
}

// GetItem returns the live item stored under id. Consumed items report
// ErrItemConsumed.
func (r *Registry) GetItem(id uint64) (*Item, error) {
	if r == nil || r.state == nil {
		return nil, errNotInitialised
	}
	return r.loadLive(id)
}

// OwnerOf returns the current custodian of a live item.
func (r *Registry) OwnerOf(id uint64) ([20]byte, error) {
	item, err := r.GetItem(id)
	if err != nil {
		return [20]byte{}, err
	}
	return item.Owner, nil
}

// Approve grants operator transfer rights over the single item. The caller
// must be the item's owner or a blanket-approved operator of the owner.
// Approving the zero address clears the grant.
func (r *Registry) Approve(caller, operator [20]byte, id uint64) error {
	item, err := r.GetItem(id)
	if err != nil {
		return err
	}
	if caller != item.Owner {
		blanket, err := r.IsApprovedForAll(item.Owner, caller)
		if err != nil {
			return err
		}
		if !blanket {
			return fmt.Errorf("%w: %x may not approve item %d", ErrNotAuthorized, caller, id)
		}
	}
	if operator == ([20]byte{}) {
		return r.state.KVDelete(approvalKey(id))
	}
	return r.state.KVPut(approvalKey(id), operator[:])
}

// GetApproved returns the single-item grantee, or the zero address when the
// item carries no grant.
func (r *Registry) GetApproved(id uint64) ([20]byte, error) {
	if _, err := r.GetItem(id); err != nil {
		return [20]byte{}, err
	}
	var raw []byte
	ok, err := r.state.KVGet(approvalKey(id), &raw)
	if err != nil || !ok {
		return [20]byte{}, err
	}
	var operator [20]byte
	copy(operator[:], raw)
	return operator, nil
}

// SetApprovalForAll grants or revokes blanket transfer rights for every item
// the owner holds, current and future.
func (r *Registry) SetApprovalForAll(owner, operator [20]byte, approved bool) error {
	if r == nil || r.state == nil {
		return errNotInitialised
	}
	if !approved {
		return r.state.KVDelete(operatorKey(owner, operator))
	}
	return r.state.KVPut(operatorKey(owner, operator), true)
}

// IsApprovedForAll reports whether operator holds a blanket grant from owner.
func (r *Registry) IsApprovedForAll(owner, operator [20]byte) (bool, error) {
	if r == nil || r.state == nil {
		return false, errNotInitialised
	}
	var approved bool
	ok, err := r.state.KVGet(operatorKey(owner, operator), &approved)
	if err != nil || !ok {
		return false, err
	}
	return approved, nil
}

// IsAuthorized evaluates the transfer predicate for operator on the item: the
// owner itself, a single-item grantee, or a blanket-approved operator. Always
// queried live, never cached.
func (r *Registry) IsAuthorized(owner, operator [20]byte, id uint64) (bool, error) {
	if operator == owner {
		return true, nil
	}
	approved, err := r.GetApproved(id)
	if err != nil {
		return false, err
	}
	if approved == operator {
		return true, nil
	}
	return r.IsApprovedForAll(owner, operator)
}

// Transfer moves custody of a live item from one holder to another and clears
// any single-item grant. Authorization of the initiating caller is the
// caller's concern; the registry only verifies that from currently owns the
// item.
func (r *Registry) Transfer(from, to [20]byte, id uint64) error {
	item, err := r.GetItem(id)
	if err != nil {
		return err
	}
	if item.Owner != from {
		return fmt.Errorf("%w: %x does not own item %d", ErrNotAuthorized, from, id)
	}
	updated := item.Clone()
	updated.Owner = to
	if err := r.state.KVPut(itemKey(id), updated); err != nil {
		return err
	}
	return r.state.KVDelete(approvalKey(id))
}

// MergePair combines two live items of equal rank held by the same owner: the
// kept item advances one rank, the burned item becomes a tombstone. The swap
// flag exchanges the items' seeds first, so the surviving render can adopt
// the burned item's look. The maximal rank is not reachable pairwise.
func (r *Registry) MergePair(keepID, burnID uint64, swap bool) error {
	if keepID == burnID {
		return fmt.Errorf("%w: %d", ErrDuplicateItem, keepID)
	}
	keep, err := r.GetItem(keepID)
	if err != nil {
		return err
	}
	burn, err := r.GetItem(burnID)
	if err != nil {
		return err
	}
	if keep.Owner != burn.Owner {
		return fmt.Errorf("%w: items %d and %d have different custodians", ErrNotAuthorized, keepID, burnID)
	}
	if keep.Rank != burn.Rank {
		return fmt.Errorf("%w: %d vs %d", ErrRankMismatch, keep.Rank, burn.Rank)
	}
	if keep.Rank >= AggregateRank {
		return fmt.Errorf("%w: rank %d only aggregates", ErrRankMismatch, keep.Rank)
	}
	kept := keep.Clone()
	burned := burn.Clone()
	if swap {
		kept.Seed, burned.Seed = burned.Seed, kept.Seed
	}
	kept.Rank++
	burned.Consumed = true
	if err := r.state.KVPut(itemKey(keepID), kept); err != nil {
		return err
	}
	if err := r.state.KVPut(itemKey(burnID), burned); err != nil {
		return err
	}
	return r.state.KVDelete(approvalKey(burnID))
}

// MergeAggregate crystallizes AggregateCount items of AggregateRank, all held
// by one custodian, into a single item of the maximal rank. The first element
// survives; every other item becomes a tombstone.
func (r *Registry) MergeAggregate(ids []uint64) error {
	if len(ids) != AggregateCount {
		return fmt.Errorf("%w: need %d items, got %d", ErrBadAggregate, AggregateCount, len(ids))
	}
	seen := make(map[uint64]struct{}, len(ids))
	items := make([]*Item, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateItem, id)
		}
		seen[id] = struct{}{}
		item, err := r.GetItem(id)
		if err != nil {
			return err
		}
		if item.Rank != AggregateRank {
			return fmt.Errorf("%w: item %d has rank %d, need %d", ErrRankMismatch, id, item.Rank, AggregateRank)
		}
		items = append(items, item)
	}
	custodian := items[0].Owner
	for _, item := range items[1:] {
		if item.Owner != custodian {
			return fmt.Errorf("%w: item %d has a different custodian", ErrNotAuthorized, item.ID)
		}
	}
	survivor := items[0].Clone()
	survivor.Rank = MaxRank
	if err := r.state.KVPut(itemKey(survivor.ID), survivor); err != nil {
		return err
	}
	for _, item := range items[1:] {
		burned := item.Clone()
		burned.Consumed = true
		if err := r.state.KVPut(itemKey(burned.ID), burned); err != nil {
			return err
		}
		if err := r.state.KVDelete(approvalKey(burned.ID)); err != nil {
			return err
		}
	}
	return nil
}

var errNotInitialised = errors.New("registry: not initialised")

func (r *Registry) loadLive(id uint64) (*Item, error) {
	var item Item
	ok, err := r.state.KVGet(itemKey(id), &item)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrItemNotFound, id)
	}
	if item.Consumed {
		return nil, fmt.Errorf("%w: %d", ErrItemConsumed, id)
	}
	return &item, nil
}

func deriveSeed(id uint64) uint64 {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	digest := ethcrypto.Keccak256(buf[:])
	return binary.BigEndian.Uint64(digest[:8])
}

func itemKey(id uint64) []byte {
	buf := make([]byte, len(itemPrefix)+8)
	copy(buf, itemPrefix)
	binary.BigEndian.PutUint64(buf[len(itemPrefix):], id)
	return buf
}

func approvalKey(id uint64) []byte {
	buf := make([]byte, len(approvalPrefix)+8)
	copy(buf, approvalPrefix)
	binary.BigEndian.PutUint64(buf[len(approvalPrefix):], id)
	return buf
}

func operatorKey(owner, operator [20]byte) []byte {
	buf := make([]byte, len(operatorPrefix)+40)
	copy(buf, operatorPrefix)
	copy(buf[len(operatorPrefix):], owner[:])
	copy(buf[len(operatorPrefix)+20:], operator[:])
	return buf
}
