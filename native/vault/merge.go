package vault

import (
	"fmt"

	"checksvault/core/events"
)

// Merge orchestration. Both operations are permissionless ratchets over items
// already in vault custody: anyone may call them, nobody's external holdings
// are at risk, and the outcome is irreversible. The ordering rules are
// business rules of this engine and are checked before any registry call;
// every structural rule (rank compatibility, set shape) stays with the
// registry and is not duplicated here.

// MergePair asks the registry to fold burnID into keepID, advancing keepID
// one rank and consuming burnID. The strict keepID < burnID ordering is a
// public precondition.
func (e *Engine) MergePair(caller [20]byte, keepID, burnID uint64) error {
	if keepID >= burnID {
		return fmt.Errorf("%w: keep %d must be lower than burn %d", ErrInvalidOrder, keepID, burnID)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	tx, err := e.state.Begin()
	if err != nil {
		return err
	}
	reg := tx.Registry()
	keep, err := e.ensureCustody(reg, keepID)
	if err != nil {
		tx.Discard()
		return err
	}
	if _, err := e.ensureCustody(reg, burnID); err != nil {
		tx.Discard()
		return err
	}
	if err := reg.MergePair(keepID, burnID, false); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.emitAll([]events.Event{events.VaultMerged{KeepID: keepID, BurnID: burnID, NewRank: keep.Rank + 1, Caller: caller}})
	return nil
}

// MergeAggregate crystallizes a full set of AggregateCount rank-six items in
// custody into one item of the maximal rank. The first element must be the
// numerically smallest of the set, verified by a full scan; the smallest-ID
// survivor rule is a deterministic tie-break every participant can see in
// advance.
func (e *Engine) MergeAggregate(caller [20]byte, itemIDs []uint64) error {
	if len(itemIDs) > 0 {
		survivor := itemIDs[0]
		for _, id := range itemIDs[1:] {
			if id < survivor {
				return fmt.Errorf("%w: item %d is lower than first element %d", ErrInvalidOrder, id, survivor)
			}
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		return errNilState
	}
	tx, err := e.state.Begin()
	if err != nil {
		return err
	}
	reg := tx.Registry()
	for _, id := range itemIDs {
		if _, err := e.ensureCustody(reg, id); err != nil {
			tx.Discard()
			return err
		}
	}
	if err := reg.MergeAggregate(itemIDs); err != nil {
		tx.Discard()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	var consumed []uint64
	if len(itemIDs) > 1 {
		consumed = append(consumed, itemIDs[1:]...)
	}
	e.emitAll([]events.Event{events.VaultAggregated{SurvivorID: itemIDs[0], Consumed: consumed, Caller: caller}})
	return nil
}
