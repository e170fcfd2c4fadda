package registrar

import (
	"math/big"
	"time"

	"github.com/namechain/registry/interfaces"
)

// FixedPriceOracle quotes rent at a flat per-second rate with no premium.
// The production premium-decay curve lives behind interfaces.PriceOracle;
// this implementation covers deployments and tests that only need base
// rent.
type FixedPriceOracle struct {
	// RatePerSecond is the base rent per second, in the oracle's
	// smallest unit.
	RatePerSecond *big.Int
}

// RentPrice implements interfaces.PriceOracle.
func (o *FixedPriceOracle) RentPrice(label string, duration time.Duration) (interfaces.Price, error) {
	seconds := big.NewInt(int64(duration / time.Second))
	return interfaces.Price{
		Base:    new(big.Int).Mul(o.RatePerSecond, seconds),
		Premium: new(big.Int),
	}, nil
}

var _ interfaces.PriceOracle = (*FixedPriceOracle)(nil)
