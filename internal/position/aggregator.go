// Package position derives per-owner portfolio views from the ledgers.
// Views are rebuilt from ledger state on every read and never cached, so a
// stale snapshot cannot survive a mutation.
package position

import (
	"sort"
	"time"

	"YieldLedger/internal/ledger"
	"YieldLedger/internal/risk"
)

// UserPosition is the aggregate view of one owner's holdings.
type UserPosition struct {
	Address       string
	TotalSupplied int64 // micro-USD collateral value
	TotalBorrowed int64 // micro-USD outstanding loans
	TotalStaked   int64 // micro-USD staked principal
	TotalRewards  int64 // micro-USD rewards claimed to date
	HealthFactor  int64 // portfolio-level, scale-1e6
	Collaterals   []ledger.CollateralAsset
	Stakes        []ledger.StakedAsset
	LastActivity  time.Time
}

// Aggregator rebuilds UserPosition views on demand.
type Aggregator struct {
	collateral *ledger.CollateralLedger
	staking    *ledger.StakingLedger
}

func NewAggregator(cl *ledger.CollateralLedger, sl *ledger.StakingLedger) *Aggregator {
	return &Aggregator{collateral: cl, staking: sl}
}

// Rebuild assembles the owner's position from current ledger state. An owner
// with no active holdings gets a zeroed position, not an error.
func (a *Aggregator) Rebuild(owner string) UserPosition {
	collaterals := a.collateral.ActiveByOwner(owner)
	stakes := a.staking.ActiveByOwner(owner)

	pos := UserPosition{
		Address:     owner,
		Collaterals: collaterals,
		Stakes:      stakes,
	}

	for _, c := range collaterals {
		pos.TotalSupplied += c.CollateralValue
		pos.TotalBorrowed += c.LoanAmount
		if c.LastValuation.After(pos.LastActivity) {
			pos.LastActivity = c.LastValuation
		}
	}
	for _, s := range stakes {
		pos.TotalStaked += s.StakedAmount
		pos.TotalRewards += s.AccumulatedRewards
		if s.LastRewardClaim.After(pos.LastActivity) {
			pos.LastActivity = s.LastRewardClaim
		}
	}
	pos.HealthFactor = risk.PortfolioHealthFactor(collaterals)

	return pos
}

// ActiveOwners returns the distinct owners with any active holding, sorted.
func (a *Aggregator) ActiveOwners() []string {
	seen := make(map[string]bool)
	for _, o := range a.collateral.ActiveOwners() {
		seen[o] = true
	}
	for _, o := range a.staking.ActiveOwners() {
		seen[o] = true
	}
	owners := make([]string, 0, len(seen))
	for o := range seen {
		owners = append(owners, o)
	}
	sort.Strings(owners)
	return owners
}
