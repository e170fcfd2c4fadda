package interfaces

import (
	"math/big"
	"time"
)

// Price is the quote for registering or renewing a name. Base is the
// duration-proportional rent; Premium applies during post-expiry decay.
// Both are denominated in the oracle's smallest unit.
type Price struct {
	Base    *big.Int
	Premium *big.Int
}

// Total returns Base + Premium.
func (p Price) Total() *big.Int {
	return new(big.Int).Add(p.Base, p.Premium)
}

// PriceOracle quotes rent for a label over a duration. The curve behind
// the quote (grace periods, premium decay) is the oracle's concern; the
// registrar only compares the total against the payment offered.
type PriceOracle interface {
	RentPrice(label string, duration time.Duration) (Price, error)
}
