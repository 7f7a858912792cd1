package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"checksvault/core/types"
)

const (
	TypeVaultDeposited  = "vault.deposited"
	TypeVaultRedeemed   = "vault.redeemed"
	TypeVaultMerged     = "vault.merged"
	TypeVaultAggregated = "vault.aggregated"
)

// VaultDeposited is emitted once per item taken into custody by a deposit.
type VaultDeposited struct {
	ItemID uint64
	Rank   uint8
	Owner  [20]byte
	Amount *big.Int
}

// EventType implements the Event interface.
func (VaultDeposited) EventType() string { return TypeVaultDeposited }

// Event converts the deposit to the generic representation.
func (e VaultDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposited,
		Attributes: map[string]string{
			"itemId": strconv.FormatUint(e.ItemID, 10),
			"rank":   strconv.FormatUint(uint64(e.Rank), 10),
			"owner":  formatAddress(e.Owner),
			"amount": formatAmount(e.Amount),
		},
	}
}

// VaultRedeemed is emitted when an item leaves custody via redemption.
type VaultRedeemed struct {
	ItemID   uint64
	Rank     uint8
	Redeemer [20]byte
	Amount   *big.Int
}

// EventType implements the Event interface.
func (VaultRedeemed) EventType() string { return TypeVaultRedeemed }

// Event converts the redemption to the generic representation.
func (e VaultRedeemed) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultRedeemed,
		Attributes: map[string]string{
			"itemId":   strconv.FormatUint(e.ItemID, 10),
			"rank":     strconv.FormatUint(uint64(e.Rank), 10),
			"redeemer": formatAddress(e.Redeemer),
			"amount":   formatAmount(e.Amount),
		},
	}
}

// VaultMerged is emitted after a successful pairwise merge.
type VaultMerged struct {
	KeepID  uint64
	BurnID  uint64
	NewRank uint8
	Caller  [20]byte
}

// EventType implements the Event interface.
func (VaultMerged) EventType() string { return TypeVaultMerged }

// Event converts the merge to the generic representation.
func (e VaultMerged) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultMerged,
		Attributes: map[string]string{
			"keepId":  strconv.FormatUint(e.KeepID, 10),
			"burnId":  strconv.FormatUint(e.BurnID, 10),
			"newRank": strconv.FormatUint(uint64(e.NewRank), 10),
			"caller":  formatAddress(e.Caller),
		},
	}
}

// VaultAggregated is emitted after a successful aggregate merge to the
// maximal rank.
type VaultAggregated struct {
	SurvivorID uint64
	Consumed   []uint64
	Caller     [20]byte
}

// EventType implements the Event interface.
func (VaultAggregated) EventType() string { return TypeVaultAggregated }

// Event converts the aggregate merge to the generic representation.
func (e VaultAggregated) Event() *types.Event {
	consumed := make([]string, 0, len(e.Consumed))
	for _, id := range e.Consumed {
		consumed = append(consumed, strconv.FormatUint(id, 10))
	}
	return &types.Event{
		Type: TypeVaultAggregated,
		Attributes: map[string]string{
			"survivorId": strconv.FormatUint(e.SurvivorID, 10),
			"consumed":   strings.Join(consumed, ","),
			"caller":     formatAddress(e.Caller),
		},
	}
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
