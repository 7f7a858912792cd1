package vault

import (
	"fmt"
	"math/big"
)

// Rank geometry of the collection. Each rank step doubles the conversion
// amount; the maximal rank breaks the progression on purpose and is worth the
// entire supply ceiling, because an item of that rank is the whole collection
// folded into one.
const (
	// MaxRank is the terminal rank an item can reach.
	MaxRank uint8 = 7
	// AggregateRank is the rank every input to the aggregate merge must hold.
	AggregateRank uint8 = MaxRank - 1
	// AggregateCount is the number of AggregateRank items consumed to reach
	// MaxRank in one call.
	AggregateCount = 64

	rankDivisor = 4096
)

// Unit is the fungible base unit (18 decimals).
var Unit = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// MaxSupply is the global issuance ceiling. It equals one Unit, which keeps
// the table conservation-exact: two rank-r items convert to the same amount
// as the rank-r+1 item a merge produces, and AggregateCount rank-6 items are
// worth exactly the ceiling.
var MaxSupply = new(big.Int).Set(Unit)

// AmountForRank maps a rank to its fungible conversion amount. Rank fully
// determines the amount; no other item attribute participates. The division
// truncates. A rank outside [0, MaxRank] means the registry reported a value
// it guarantees never to produce.
func AmountForRank(rank uint8) (*big.Int, error) {
	if rank > MaxRank {
		return nil, fmt.Errorf("vault: rank %d out of range", rank)
	}
	if rank == MaxRank {
		return new(big.Int).Set(MaxSupply), nil
	}
	scaled := new(big.Int).Lsh(Unit, uint(rank))
	return scaled.Div(scaled, big.NewInt(rankDivisor)), nil
}
