package vault

import "fmt"

// Custody preconditions. Both helpers re-query the registry at time of use;
// authorization is never cached, so a revoked grant takes effect immediately.

// ensureDepositable confirms the item exists and that the caller is either
// its owner or holds one of the two transfer grants (single-item or blanket).
func (e *Engine) ensureDepositable(reg ItemRegistry, caller [20]byte, id uint64) (Item, error) {
	item, err := reg.GetItem(id)
	if err != nil {
		return Item{}, err
	}
	authorized, err := reg.IsAuthorized(item.Owner, caller, id)
	if err != nil {
		return Item{}, err
	}
	if !authorized {
		return Item{}, fmt.Errorf("%w: %#x may not move item %d", ErrNotAuthorized, caller, id)
	}
	return item, nil
}

// ensureCustody confirms the item exists and is currently parked under the
// vault's own address.
func (e *Engine) ensureCustody(reg ItemRegistry, id uint64) (Item, error) {
	item, err := reg.GetItem(id)
	if err != nil {
		return Item{}, err
	}
	if item.Owner != e.address {
		return Item{}, fmt.Errorf("%w: item %d", ErrNotInCustody, id)
	}
	return item, nil
}
