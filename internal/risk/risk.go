// Package risk classifies collateral positions by health factor and turns
// the classification into operator-facing guidance.
package risk

import (
	"math/big"

	"YieldLedger/internal/ledger"
	fpmath "YieldLedger/internal/math"
)

// Classification buckets a health factor. Thresholds are scale-1e6 fractions
// of the liquidation point: below 1.2 the position is in liquidation range.
type Classification int32

const (
	ClassHealthy Classification = iota
	ClassWatch
	ClassAtRisk
	ClassLiquidationRisk
)

const (
	healthyFloor = 2_000_000 // HF >= 2.0
	watchFloor   = 1_500_000 // HF >= 1.5
	atRiskFloor  = 1_200_000 // HF >= 1.2
)

func (c Classification) String() string {
	switch c {
	case ClassHealthy:
		return "healthy"
	case ClassWatch:
		return "watch"
	case ClassAtRisk:
		return "at_risk"
	case ClassLiquidationRisk:
		return "liquidation_risk"
	default:
		return "unknown"
	}
}

// Classify buckets a single health factor.
func Classify(healthFactor int64) Classification {
	switch {
	case healthFactor >= healthyFloor:
		return ClassHealthy
	case healthFactor >= watchFloor:
		return ClassWatch
	case healthFactor >= atRiskFloor:
		return ClassAtRisk
	default:
		return ClassLiquidationRisk
	}
}

// RecommendedActions returns guidance for the classification, ordered most
// urgent first.
func RecommendedActions(c Classification) []string {
	switch c {
	case ClassLiquidationRisk:
		return []string{
			"Repay loan immediately to avoid liquidation",
			"Add more collateral to improve health factor",
		}
	case ClassAtRisk:
		return []string{
			"Consider repaying part of the loan",
			"Add more collateral to improve health factor",
		}
	case ClassWatch:
		return []string{
			"Monitor collateral value closely",
		}
	default:
		return []string{
			"Position is healthy",
		}
	}
}

// Assessment is the full risk view of one collateral position.
type Assessment struct {
	HealthFactor   int64
	Classification Classification
	Actions        []string
	MaxBorrow      int64 // micro-USD headroom ceiling at current value
	Available      int64 // micro-USD still drawable
}

// Assess evaluates one collateral record against its protocol's max LTV.
func Assess(asset ledger.CollateralAsset, maxLTV int64) Assessment {
	class := Classify(asset.HealthFactor)
	maxBorrow := fpmath.ComputeMaxBorrow(asset.CollateralValue, maxLTV)
	available := maxBorrow - asset.LoanAmount
	if available < 0 {
		available = 0
	}
	return Assessment{
		HealthFactor:   asset.HealthFactor,
		Classification: class,
		Actions:        RecommendedActions(class),
		MaxBorrow:      maxBorrow,
		Available:      available,
	}
}

// PortfolioHealthFactor folds many positions into one number: the mean health
// factor over debt-bearing positions. Debt-free positions sit at the infinite
// sentinel and would swamp the mean, so they are excluded; a portfolio with
// no debt at all reports the sentinel itself.
// TODO: weight by loan amount once the dashboard exposes per-position drill-down.
func PortfolioHealthFactor(assets []ledger.CollateralAsset) int64 {
	sum := new(big.Int)
	var count int64
	for _, a := range assets {
		if !a.IsActive || a.LoanAmount == 0 {
			continue
		}
		sum.Add(sum, big.NewInt(a.HealthFactor))
		count++
	}
	if count == 0 {
		return fpmath.HealthFactorInfinite
	}
	sum.Div(sum, big.NewInt(count))
	return sum.Int64()
}
