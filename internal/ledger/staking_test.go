package ledger_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"YieldLedger/internal/ledger"
	"YieldLedger/internal/registry"
)

const yearSeconds = 365 * 24 * 60 * 60

func newStakingFixture() (*registry.Registry, *ledger.StakingLedger) {
	reg := newTestRegistry()
	reg.AddYieldPool(registry.YieldPool{
		ID:                "rwa-carbon-credits",
		Name:              "Carbon Credit Yield",
		RewardToken:       "OCT",
		APY:               152_000, // 15.2%
		LockupPeriod:      14 * 24 * time.Hour,
		Capacity:          100_000 * usd,
		IsActive:          true,
		AllowedCollateral: []string{"0xcarbon"},
	})
	reg.AddYieldPool(registry.YieldPool{
		ID:       "rwa-retired",
		Name:     "Retired Pool",
		APY:      50_000,
		IsActive: false,
	})
	return reg, ledger.NewStakingLedger(reg)
}

// ============================================================================
// Test: Stake
// ============================================================================

func TestStaking_Stake_SnapshotsRate(t *testing.T) {
	_, sl := newStakingFixture()

	stake, err := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if stake.YieldRate != 125_000 {
		t.Errorf("yield rate = %d, want pool APY 125_000", stake.YieldRate)
	}
	if !stake.LastRewardClaim.Equal(t0) {
		t.Errorf("accrual clock should start at stake time, got %v", stake.LastRewardClaim)
	}
	if !stake.LockupEnds.Equal(t0.Add(30 * 24 * time.Hour)) {
		t.Errorf("lockup ends = %v, want stake time plus lockup", stake.LockupEnds)
	}
}

func TestStaking_Stake_UpdatesPoolCounter(t *testing.T) {
	reg, sl := newStakingFixture()

	sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)
	sl.Stake("bob", "0xnft", "8", "rwa-real-estate", 5_000*usd, t0)

	pool, _ := reg.YieldPool("rwa-real-estate")
	if pool.TotalStaked != 15_000*usd {
		t.Errorf("pool totalStaked = %d, want %d", pool.TotalStaked, int64(15_000*usd))
	}
}

func TestStaking_Stake_UnknownPool(t *testing.T) {
	_, sl := newStakingFixture()

	_, err := sl.Stake("alice", "0xnft", "7", "no-such-pool", 10_000*usd, t0)
	if !errors.Is(err, registry.ErrUnknownPool) {
		t.Fatalf("want ErrUnknownPool, got %v", err)
	}
}

func TestStaking_Stake_InactivePool(t *testing.T) {
	_, sl := newStakingFixture()

	_, err := sl.Stake("alice", "0xnft", "7", "rwa-retired", 10_000*usd, t0)
	if !errors.Is(err, registry.ErrPoolInactive) {
		t.Fatalf("want ErrPoolInactive, got %v", err)
	}
}

func TestStaking_Stake_CollateralNotAllowed(t *testing.T) {
	_, sl := newStakingFixture()

	_, err := sl.Stake("alice", "0xnft", "7", "rwa-carbon-credits", 10_000*usd, t0)
	if !errors.Is(err, ledger.ErrNotAllowed) {
		t.Fatalf("want ErrNotAllowed, got %v", err)
	}
}

func TestStaking_Stake_CapacityExceeded(t *testing.T) {
	reg, sl := newStakingFixture()

	if _, err := sl.Stake("alice", "0xcarbon", "1", "rwa-carbon-credits", 90_000*usd, t0); err != nil {
		t.Fatalf("stake within capacity: %v", err)
	}
	_, err := sl.Stake("bob", "0xcarbon", "2", "rwa-carbon-credits", 20_000*usd, t0)
	if !errors.Is(err, registry.ErrCapacityExceeded) {
		t.Fatalf("want ErrCapacityExceeded, got %v", err)
	}

	// The rejected stake must not move the counter.
	pool, _ := reg.YieldPool("rwa-carbon-credits")
	if pool.TotalStaked != 90_000*usd {
		t.Errorf("pool totalStaked = %d, want %d", pool.TotalStaked, int64(90_000*usd))
	}
}

// ============================================================================
// Test: Claim
// ============================================================================

func TestStaking_Claim_ReferenceAccrual(t *testing.T) {
	_, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	// One year at 12.5% on 10k is exactly 1250.
	oneYear := t0.Add(yearSeconds * time.Second)
	got, claimed, err := sl.Claim("alice", stake.ID, oneYear)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed != 1_250*usd {
		t.Errorf("claimed = %d, want %d", claimed, int64(1_250*usd))
	}
	if got.AccumulatedRewards != 1_250*usd {
		t.Errorf("accumulated = %d, want %d", got.AccumulatedRewards, int64(1_250*usd))
	}
	if !got.LastRewardClaim.Equal(oneYear) {
		t.Errorf("accrual clock should reset to claim time, got %v", got.LastRewardClaim)
	}
}

func TestStaking_Claim_Idempotent(t *testing.T) {
	_, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	later := t0.Add(90 * 24 * time.Hour)
	if _, _, err := sl.Claim("alice", stake.ID, later); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// A second claim at the same instant has nothing to pay.
	got, claimed, err := sl.Claim("alice", stake.ID, later)
	if !errors.Is(err, ledger.ErrNothingToClaim) {
		t.Fatalf("want ErrNothingToClaim, got %v", err)
	}
	if claimed != 0 {
		t.Errorf("second claim paid %d, want 0", claimed)
	}
	first, _ := sl.Get(stake.ID)
	if got.AccumulatedRewards != first.AccumulatedRewards {
		t.Error("no-op claim must not change accumulated rewards")
	}
}

func TestStaking_Claim_CreditsPoolRewards(t *testing.T) {
	reg, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	sl.Claim("alice", stake.ID, t0.Add(yearSeconds*time.Second))

	pool, _ := reg.YieldPool("rwa-real-estate")
	if pool.TotalRewards != 1_250*usd {
		t.Errorf("pool totalRewards = %d, want %d", pool.TotalRewards, int64(1_250*usd))
	}
	if pool.TotalStaked != 10_000*usd {
		t.Errorf("claim must not touch totalStaked, got %d", pool.TotalStaked)
	}
}

func TestStaking_Claim_NotOwner(t *testing.T) {
	_, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	_, _, err := sl.Claim("mallory", stake.ID, t0.Add(time.Hour))
	if !errors.Is(err, ledger.ErrNotOwner) {
		t.Fatalf("want ErrNotOwner, got %v", err)
	}
}

func TestStaking_Claim_UnknownStake(t *testing.T) {
	_, sl := newStakingFixture()

	_, _, err := sl.Claim("alice", uuid.New(), t0)
	if !errors.Is(err, ledger.ErrUnknownStake) {
		t.Fatalf("want ErrUnknownStake, got %v", err)
	}
}

// ============================================================================
// Test: Compound
// ============================================================================

func TestStaking_Compound_GrowsPrincipal(t *testing.T) {
	reg, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	oneYear := t0.Add(yearSeconds * time.Second)
	got, compounded, err := sl.Compound("alice", stake.ID, oneYear)
	if err != nil {
		t.Fatalf("compound: %v", err)
	}
	if compounded != 1_250*usd {
		t.Errorf("compounded = %d, want %d", compounded, int64(1_250*usd))
	}
	if got.StakedAmount != 11_250*usd {
		t.Errorf("principal = %d, want %d", got.StakedAmount, int64(11_250*usd))
	}
	if got.AccumulatedRewards != 0 {
		t.Errorf("compound must not credit accumulated rewards, got %d", got.AccumulatedRewards)
	}

	pool, _ := reg.YieldPool("rwa-real-estate")
	if pool.TotalStaked != 11_250*usd {
		t.Errorf("pool totalStaked = %d, want %d", pool.TotalStaked, int64(11_250*usd))
	}
}

// ============================================================================
// Test: Unstake
// ============================================================================

func TestStaking_Unstake_DuringLockup(t *testing.T) {
	_, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	_, _, _, err := sl.Unstake("alice", stake.ID, t0.Add(29*24*time.Hour))
	if !errors.Is(err, ledger.ErrStillLocked) {
		t.Fatalf("want ErrStillLocked, got %v", err)
	}

	got, _ := sl.Get(stake.ID)
	if !got.IsActive {
		t.Error("rejected unstake must leave the stake active")
	}
}

func TestStaking_Unstake_AfterLockup(t *testing.T) {
	reg, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	oneYear := t0.Add(yearSeconds * time.Second)
	got, principal, rewards, err := sl.Unstake("alice", stake.ID, oneYear)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if principal != 10_000*usd {
		t.Errorf("principal = %d, want %d", principal, int64(10_000*usd))
	}
	if rewards != 1_250*usd {
		t.Errorf("exit rewards = %d, want %d", rewards, int64(1_250*usd))
	}
	if got.IsActive {
		t.Error("unstaked record should be inactive")
	}
	if got.AccumulatedRewards != 1_250*usd {
		t.Errorf("accumulated = %d, want %d", got.AccumulatedRewards, int64(1_250*usd))
	}

	pool, _ := reg.YieldPool("rwa-real-estate")
	if pool.TotalStaked != 0 {
		t.Errorf("pool totalStaked should return to zero, got %d", pool.TotalStaked)
	}
	if pool.TotalRewards != 1_250*usd {
		t.Errorf("pool totalRewards = %d, want %d", pool.TotalRewards, int64(1_250*usd))
	}
}

func TestStaking_Unstake_ExactLockupBoundary(t *testing.T) {
	_, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	if _, _, _, err := sl.Unstake("alice", stake.ID, t0.Add(30*24*time.Hour)); err != nil {
		t.Fatalf("unstake exactly at lockup end should succeed: %v", err)
	}
}

// ============================================================================
// Test: EmergencyWithdraw
// ============================================================================

func TestStaking_Emergency_ForfeitsPendingOnly(t *testing.T) {
	reg, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	// Claim 90 days of rewards, then bail out mid-lockup 10 days later.
	claimTime := t0.Add(90 * 24 * time.Hour)
	_, claimed, err := sl.Claim("alice", stake.ID, claimTime)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	exitTime := claimTime.Add(10 * 24 * time.Hour)
	got, principal, forfeited, err := sl.EmergencyWithdraw("alice", stake.ID, exitTime)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if principal != 10_000*usd {
		t.Errorf("principal = %d, want %d", principal, int64(10_000*usd))
	}
	if forfeited <= 0 {
		t.Error("ten days of accrual should be forfeited")
	}
	// Already-claimed rewards survive the exit.
	if got.AccumulatedRewards != claimed {
		t.Errorf("accumulated = %d, want claimed %d preserved", got.AccumulatedRewards, claimed)
	}
	if got.IsActive {
		t.Error("emergency-withdrawn record should be inactive")
	}

	// Forfeited rewards are never credited to the pool's distributed total.
	pool, _ := reg.YieldPool("rwa-real-estate")
	if pool.TotalRewards != claimed {
		t.Errorf("pool totalRewards = %d, want %d", pool.TotalRewards, claimed)
	}
	if pool.TotalStaked != 0 {
		t.Errorf("pool totalStaked should return to zero, got %d", pool.TotalStaked)
	}
}

func TestStaking_Emergency_IgnoresLockup(t *testing.T) {
	_, sl := newStakingFixture()
	stake, _ := sl.Stake("alice", "0xnft", "7", "rwa-real-estate", 10_000*usd, t0)

	if _, _, _, err := sl.EmergencyWithdraw("alice", stake.ID, t0.Add(time.Hour)); err != nil {
		t.Fatalf("emergency withdraw during lockup should succeed: %v", err)
	}
}

// ============================================================================
// Test: counter conservation across a mixed history
// ============================================================================

func TestStaking_PoolCounterConservation(t *testing.T) {
	reg, sl := newStakingFixture()

	a, _ := sl.Stake("alice", "0xnft", "1", "rwa-real-estate", 10_000*usd, t0)
	b, _ := sl.Stake("bob", "0xnft", "2", "rwa-real-estate", 20_000*usd, t0)
	c, _ := sl.Stake("carol", "0xnft", "3", "rwa-real-estate", 30_000*usd, t0)

	oneYear := t0.Add(yearSeconds * time.Second)
	if _, _, _, err := sl.Unstake("alice", a.ID, oneYear); err != nil {
		t.Fatalf("unstake a: %v", err)
	}
	if _, compounded, err := sl.Compound("bob", b.ID, oneYear); err != nil || compounded <= 0 {
		t.Fatalf("compound b: %v", err)
	}
	if _, _, _, err := sl.EmergencyWithdraw("carol", c.ID, oneYear); err != nil {
		t.Fatalf("emergency c: %v", err)
	}

	// Pool counter equals the sum of surviving active principals.
	pool, _ := reg.YieldPool("rwa-real-estate")
	if pool.TotalStaked != sl.TotalStaked() {
		t.Errorf("pool totalStaked %d diverged from ledger total %d", pool.TotalStaked, sl.TotalStaked())
	}
	bNow, _ := sl.Get(b.ID)
	if pool.TotalStaked != bNow.StakedAmount {
		t.Errorf("pool totalStaked = %d, want bob's principal %d", pool.TotalStaked, bNow.StakedAmount)
	}
}
