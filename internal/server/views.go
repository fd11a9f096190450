package server

import (
	"time"

	"YieldLedger/internal/engine"
	"YieldLedger/internal/ledger"
	fpmath "YieldLedger/internal/math"
	"YieldLedger/internal/position"
	"YieldLedger/internal/registry"
)

// JSON views of the domain types. Amounts stay in micro-USD and rates in
// scale-1e6 fractions; clients format for display. The infinite health
// factor sentinel is rendered as null.

type collateralJSON struct {
	ID                   string    `json:"id"`
	Contract             string    `json:"contract"`
	TokenID              string    `json:"token_id"`
	Owner                string    `json:"owner"`
	Protocol             string    `json:"protocol"`
	CollateralValue      int64     `json:"collateral_value"`
	LoanAmount           int64     `json:"loan_amount"`
	LoanAsset            string    `json:"loan_asset,omitempty"`
	LTV                  int64     `json:"ltv"`
	LiquidationThreshold int64     `json:"liquidation_threshold"`
	HealthFactor         *int64    `json:"health_factor"`
	IsActive             bool      `json:"is_active"`
	LastValuation        time.Time `json:"last_valuation"`
}

func collateralView(a ledger.CollateralAsset) collateralJSON {
	return collateralJSON{
		ID:                   a.ID.String(),
		Contract:             a.Contract,
		TokenID:              a.TokenID,
		Owner:                a.Owner,
		Protocol:             string(a.Protocol),
		CollateralValue:      a.CollateralValue,
		LoanAmount:           a.LoanAmount,
		LoanAsset:            a.LoanAsset,
		LTV:                  a.LTV,
		LiquidationThreshold: a.LiquidationThreshold,
		HealthFactor:         finiteOrNil(a.HealthFactor),
		IsActive:             a.IsActive,
		LastValuation:        a.LastValuation,
	}
}

type stakeJSON struct {
	ID                 string    `json:"id"`
	Contract           string    `json:"contract"`
	TokenID            string    `json:"token_id"`
	Owner              string    `json:"owner"`
	PoolID             string    `json:"pool_id"`
	StakedAmount       int64     `json:"staked_amount"`
	YieldRate          int64     `json:"yield_rate"`
	AccumulatedRewards int64     `json:"accumulated_rewards"`
	StakingTime        time.Time `json:"staking_time"`
	LastRewardClaim    time.Time `json:"last_reward_claim"`
	LockupEnds         time.Time `json:"lockup_ends"`
	IsActive           bool      `json:"is_active"`
}

func stakeView(s ledger.StakedAsset) stakeJSON {
	return stakeJSON{
		ID:                 s.ID.String(),
		Contract:           s.Contract,
		TokenID:            s.TokenID,
		Owner:              s.Owner,
		PoolID:             s.PoolID,
		StakedAmount:       s.StakedAmount,
		YieldRate:          s.YieldRate,
		AccumulatedRewards: s.AccumulatedRewards,
		StakingTime:        s.StakingTime,
		LastRewardClaim:    s.LastRewardClaim,
		LockupEnds:         s.LockupEnds,
		IsActive:           s.IsActive,
	}
}

type healthJSON struct {
	Collateral     collateralJSON `json:"collateral"`
	HealthFactor   *int64         `json:"health_factor"`
	Classification string         `json:"classification"`
	Actions        []string       `json:"recommended_actions"`
	MaxBorrow      int64          `json:"max_borrow"`
	Available      int64          `json:"available_to_borrow"`
}

func healthView(h engine.CollateralHealth) healthJSON {
	return healthJSON{
		Collateral:     collateralView(h.Asset),
		HealthFactor:   finiteOrNil(h.Assessment.HealthFactor),
		Classification: h.Assessment.Classification.String(),
		Actions:        h.Assessment.Actions,
		MaxBorrow:      h.Assessment.MaxBorrow,
		Available:      h.Assessment.Available,
	}
}

type positionJSON struct {
	Address       string           `json:"address"`
	TotalSupplied int64            `json:"total_supplied"`
	TotalBorrowed int64            `json:"total_borrowed"`
	TotalStaked   int64            `json:"total_staked"`
	TotalRewards  int64            `json:"total_rewards"`
	HealthFactor  *int64           `json:"health_factor"`
	Collaterals   []collateralJSON `json:"collaterals"`
	Stakes        []stakeJSON      `json:"stakes"`
	LastActivity  time.Time        `json:"last_activity"`
}

func positionView(p position.UserPosition) positionJSON {
	collaterals := make([]collateralJSON, 0, len(p.Collaterals))
	for _, c := range p.Collaterals {
		collaterals = append(collaterals, collateralView(c))
	}
	stakes := make([]stakeJSON, 0, len(p.Stakes))
	for _, s := range p.Stakes {
		stakes = append(stakes, stakeView(s))
	}
	return positionJSON{
		Address:       p.Address,
		TotalSupplied: p.TotalSupplied,
		TotalBorrowed: p.TotalBorrowed,
		TotalStaked:   p.TotalStaked,
		TotalRewards:  p.TotalRewards,
		HealthFactor:  finiteOrNil(p.HealthFactor),
		Collaterals:   collaterals,
		Stakes:        stakes,
		LastActivity:  p.LastActivity,
	}
}

type lendingPoolJSON struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Asset           string `json:"asset"`
	Protocol        string `json:"protocol"`
	TotalSupply     int64  `json:"total_supply"`
	TotalBorrow     int64  `json:"total_borrow"`
	SupplyRate      int64  `json:"supply_rate"`
	BorrowRate      int64  `json:"borrow_rate"`
	UtilizationRate int64  `json:"utilization_rate"`
	TVL             int64  `json:"tvl"`
	IsActive        bool   `json:"is_active"`
}

func lendingPoolView(p registry.LendingPool) lendingPoolJSON {
	return lendingPoolJSON{
		ID:              p.ID,
		Name:            p.Name,
		Asset:           p.Asset,
		Protocol:        string(p.Protocol),
		TotalSupply:     p.TotalSupply,
		TotalBorrow:     p.TotalBorrow,
		SupplyRate:      p.SupplyRate,
		BorrowRate:      p.BorrowRate,
		UtilizationRate: p.UtilizationRate(),
		TVL:             p.TVL,
		IsActive:        p.IsActive,
	}
}

type yieldPoolJSON struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	RewardToken       string   `json:"reward_token"`
	TotalStaked       int64    `json:"total_staked"`
	TotalRewards      int64    `json:"total_rewards"`
	APY               int64    `json:"apy"`
	MinStakingPeriod  int64    `json:"min_staking_period_seconds"`
	LockupPeriod      int64    `json:"lockup_period_seconds"`
	Capacity          int64    `json:"capacity,omitempty"`
	IsActive          bool     `json:"is_active"`
	AllowedCollateral []string `json:"allowed_collateral,omitempty"`
}

func yieldPoolView(p registry.YieldPool) yieldPoolJSON {
	return yieldPoolJSON{
		ID:                p.ID,
		Name:              p.Name,
		RewardToken:       p.RewardToken,
		TotalStaked:       p.TotalStaked,
		TotalRewards:      p.TotalRewards,
		APY:               p.APY,
		MinStakingPeriod:  int64(p.MinStakingPeriod.Seconds()),
		LockupPeriod:      int64(p.LockupPeriod.Seconds()),
		Capacity:          p.Capacity,
		IsActive:          p.IsActive,
		AllowedCollateral: p.AllowedCollateral,
	}
}

type strategyJSON struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	APY          int64  `json:"apy"`
	Risk         string `json:"risk"`
	Protocol     string `json:"protocol"`
	MinAmount    int64  `json:"min_amount"`
	LockupPeriod int64  `json:"lockup_period_seconds"`
	AutoCompound bool   `json:"auto_compound"`
}

func strategyView(s registry.YieldStrategy) strategyJSON {
	return strategyJSON{
		ID:           s.ID,
		Name:         s.Name,
		Description:  s.Description,
		APY:          s.APY,
		Risk:         string(s.Risk),
		Protocol:     string(s.Protocol),
		MinAmount:    s.MinAmount,
		LockupPeriod: int64(s.LockupPeriod.Seconds()),
		AutoCompound: s.AutoCompound,
	}
}

func finiteOrNil(hf int64) *int64 {
	if hf == fpmath.HealthFactorInfinite {
		return nil
	}
	return &hf
}
