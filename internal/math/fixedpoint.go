// internal/math/fixedpoint.go
package math

import (
	"math/big"
	"sync"
)

// DecimalConfig defines fixed-point precision
type DecimalConfig struct {
	DecimalPrecision int   // Number of decimal places
	Scale            int64 // 10^DecimalPrecision
}

var (
	// Standard configs
	QuoteConfig = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // 0.000001 USD (micro-USD)
	RateConfig  = DecimalConfig{DecimalPrecision: 6, Scale: 1_000_000} // fraction; 750_000 = 75%
)

// SecondsPerYear is the accrual base for APY-denominated rates.
const SecondsPerYear int64 = 365 * 24 * 60 * 60

// HealthFactorInfinite is the sentinel for debt-free collateral.
const HealthFactorInfinite int64 = 1<<63 - 1

// Int128 is a pooled big.Int for intermediate calculations
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	int128Pool.Put(v)
}

// MultiplyInt128 performs a * b using int128 to prevent overflow
func MultiplyInt128(a, b int64) *big.Int {
	result := getInt128()
	result.Mul(big.NewInt(a), big.NewInt(b))
	return result
}

// DivideInt128 performs numerator / denominator with rounding
func DivideInt128(numerator *big.Int, denominator int64, roundingMode RoundingMode) int64 {
	denom := big.NewInt(denominator)
	quotient := getInt128()
	remainder := getInt128()

	quotient.DivMod(numerator, denom, remainder)

	// Apply rounding
	result := quotient.Int64()

	if roundingMode == RoundHalfEven {
		// Banker's rounding: if remainder == denominator/2, round to even
		half := big.NewInt(denominator / 2)
		cmp := remainder.Cmp(half)

		if cmp > 0 {
			// remainder > half: round up
			result++
		} else if cmp == 0 && denominator%2 == 0 {
			// remainder == half and even denominator: round to even
			if result%2 != 0 {
				result++
			}
		}
	}

	putInt128(quotient)
	putInt128(remainder)

	return result
}

// MulDiv computes a * b / denominator, keeping the intermediate product in a
// pooled big.Int for its whole lifetime. Callers outside this package should
// use this rather than pairing MultiplyInt128 with DivideInt128, since the
// pool helpers are not exported.
func MulDiv(a, b, denominator int64, roundingMode RoundingMode) int64 {
	raw := MultiplyInt128(a, b)
	result := DivideInt128(raw, denominator, roundingMode)
	putInt128(raw)
	return result
}

type RoundingMode int

const (
	RoundHalfEven RoundingMode = iota // Banker's rounding (default)
	RoundDown
	RoundUp
)

// ComputeMaxBorrow returns the borrow ceiling for a collateral value at maxLTV.
// Rounds down so the ceiling is never more permissive than the exact limit.
func ComputeMaxBorrow(collateralValue, maxLTV int64) int64 {
	raw := MultiplyInt128(collateralValue, maxLTV)
	result := DivideInt128(raw, RateConfig.Scale, RoundDown)
	putInt128(raw)
	return result
}

// ComputeLTV returns loanAmount / collateralValue as a scale-1e6 fraction.
func ComputeLTV(loanAmount, collateralValue int64) int64 {
	if loanAmount == 0 {
		return 0
	}
	raw := MultiplyInt128(loanAmount, RateConfig.Scale)
	result := DivideInt128(raw, collateralValue, RoundHalfEven)
	putInt128(raw)
	return result
}

// ComputeHealthFactor returns (collateralValue * liquidationThreshold) / loanAmount
// as a scale-1e6 ratio. liquidationThreshold is a scale-1e6 fraction.
// Debt-free collateral yields HealthFactorInfinite.
func ComputeHealthFactor(collateralValue, liquidationThreshold, loanAmount int64) int64 {
	if loanAmount == 0 {
		return HealthFactorInfinite
	}
	raw := MultiplyInt128(collateralValue, liquidationThreshold)
	result := DivideInt128(raw, loanAmount, RoundHalfEven)
	putInt128(raw)
	return result
}

// ComputeAccruedRewards returns the yield accrued on principal at an APY rate
// (scale-1e6 fraction) over elapsedSeconds. Rounds down; never negative.
func ComputeAccruedRewards(principal, rate, elapsedSeconds int64) int64 {
	if principal <= 0 || rate <= 0 || elapsedSeconds <= 0 {
		return 0
	}

	// accrued = principal * rate * elapsed / (scale * seconds_per_year)
	raw := MultiplyInt128(principal, rate)
	raw.Mul(raw, big.NewInt(elapsedSeconds))
	result := DivideInt128(raw, RateConfig.Scale*SecondsPerYear, RoundDown)
	putInt128(raw)

	return result
}
