package vault

import "errors"

var (
	// ErrSupplyCeiling rejects a deposit that would push the issued total
	// over MaxSupply.
	ErrSupplyCeiling = errors.New("vault: supply ceiling exceeded")
	// ErrInsufficientBalance rejects a redemption debit larger than the
	// caller's balance.
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	// ErrInvalidOrder rejects merge calls that violate the public ordering
	// preconditions.
	ErrInvalidOrder = errors.New("vault: invalid merge order")
	// ErrNotAuthorized rejects deposit calls where the caller holds neither
	// ownership nor a transfer grant for the item.
	ErrNotAuthorized = errors.New("vault: caller not authorized")
	// ErrItemNotFound covers items that do not exist or were consumed by an
	// earlier merge.
	ErrItemNotFound = errors.New("vault: item not found")
	// ErrNotInCustody rejects redeem/merge calls naming items the vault does
	// not currently hold.
	ErrNotInCustody = errors.New("vault: item not in custody")
	// ErrRegistryRejected propagates a structural rejection from the item
	// registry, e.g. a rank mismatch or a malformed aggregate set.
	ErrRegistryRejected = errors.New("vault: registry rejected operation")
	// ErrUnsolicitedValue rejects bare value transfers directed at the
	// vault; only item deposits are accepted.
	ErrUnsolicitedValue = errors.New("vault: unsolicited value rejected")

	errNilState   = errors.New("vault: state binder not configured")
	errEmptyBatch = errors.New("vault: deposit requires at least one item")
)
