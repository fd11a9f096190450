// Package report produces platform-wide summary snapshots.
package report

import (
	"math/big"

	"YieldLedger/internal/position"
	"YieldLedger/internal/registry"
)

// DeFiMetrics is a point-in-time platform summary.
type DeFiMetrics struct {
	TotalValueLocked int64 // micro-USD across lending and yield pools
	TotalSupplied    int64 // micro-USD supplied to lending pools
	TotalBorrowed    int64 // micro-USD borrowed from lending pools
	TotalStaked      int64 // micro-USD in yield pools
	TotalRewardsPaid int64 // micro-USD distributed by yield pools
	AverageAPY       int64 // scale-1e6, mean across active yield pools
	ActiveUsers      int64
	ProtocolCount    int64
	PoolCount        int64
}

// Reporter derives DeFiMetrics from the registry and the position aggregator.
type Reporter struct {
	registry   *registry.Registry
	aggregator *position.Aggregator
}

func NewReporter(reg *registry.Registry, agg *position.Aggregator) *Reporter {
	return &Reporter{registry: reg, aggregator: agg}
}

// Snapshot computes the current metrics. An empty platform yields all zeros
// rather than division errors.
func (r *Reporter) Snapshot() DeFiMetrics {
	var m DeFiMetrics

	lending := r.registry.LendingPools()
	yield := r.registry.YieldPools()

	for _, p := range lending {
		m.TotalValueLocked += p.TVL
		m.TotalSupplied += p.TotalSupply
		m.TotalBorrowed += p.TotalBorrow
	}

	apySum := new(big.Int)
	var activePools int64
	for _, p := range yield {
		m.TotalValueLocked += p.TotalStaked
		m.TotalStaked += p.TotalStaked
		m.TotalRewardsPaid += p.TotalRewards
		if p.IsActive {
			apySum.Add(apySum, big.NewInt(p.APY))
			activePools++
		}
	}
	if activePools > 0 {
		apySum.Div(apySum, big.NewInt(activePools))
		m.AverageAPY = apySum.Int64()
	}

	m.ActiveUsers = int64(len(r.aggregator.ActiveOwners()))
	m.ProtocolCount = int64(r.registry.ProtocolCount())
	m.PoolCount = int64(len(lending) + len(yield))

	return m
}

// AverageUtilization returns the mean utilization of active lending pools as
// a scale-1e6 fraction, 0 when there are none.
func (r *Reporter) AverageUtilization() int64 {
	pools := r.registry.LendingPools()
	sum := new(big.Int)
	var count int64
	for _, p := range pools {
		if !p.IsActive {
			continue
		}
		sum.Add(sum, big.NewInt(p.UtilizationRate()))
		count++
	}
	if count == 0 {
		return 0
	}
	sum.Div(sum, big.NewInt(count))
	return sum.Int64()
}
