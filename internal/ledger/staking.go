package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"YieldLedger/internal/registry"
)

// StakedAsset is one NFT locked in a yield pool.
type StakedAsset struct {
	ID                 uuid.UUID
	Contract           string
	TokenID            string
	Owner              string
	PoolID             string
	StakedAmount       int64 // micro-USD principal
	YieldRate          int64 // APY snapshot at stake time, scale-1e6
	AccumulatedRewards int64 // micro-USD claimed to date
	StakingTime        time.Time
	LastRewardClaim    time.Time
	LockupEnds         time.Time
	IsActive           bool
}

// StakingLedger exclusively owns StakedAsset records. The same serialization
// rule as the collateral side applies: claim/compound/unstake read
// lastRewardClaim and write it back, so they hold the ledger lock throughout.
type StakingLedger struct {
	mu       sync.RWMutex
	stakes   map[uuid.UUID]*StakedAsset
	registry *registry.Registry
}

func NewStakingLedger(reg *registry.Registry) *StakingLedger {
	return &StakingLedger{
		stakes:   make(map[uuid.UUID]*StakedAsset),
		registry: reg,
	}
}

// Stake locks an NFT valued at stakedAmount into the pool. The pool's APY is
// snapshotted onto the record: later catalog changes never reprice an
// existing stake. Capacity and liveness are enforced atomically by the
// registry reservation.
func (sl *StakingLedger) Stake(
	owner, contract, tokenID, poolID string,
	stakedAmount int64,
	now time.Time,
) (StakedAsset, error) {
	if stakedAmount <= 0 {
		return StakedAsset{}, fmt.Errorf("staked amount must be positive, got %d", stakedAmount)
	}

	pool, ok := sl.registry.YieldPool(poolID)
	if !ok {
		return StakedAsset{}, fmt.Errorf("yield pool %q: %w", poolID, registry.ErrUnknownPool)
	}
	if !pool.Allows(contract) {
		return StakedAsset{}, fmt.Errorf("pool %q does not accept contract %s: %w",
			poolID, contract, ErrNotAllowed)
	}

	// ReserveStake re-checks liveness and capacity under the registry lock,
	// so a pool drained concurrently still rejects correctly.
	if err := sl.registry.ReserveStake(poolID, stakedAmount); err != nil {
		return StakedAsset{}, err
	}

	stake := &StakedAsset{
		ID:              uuid.New(),
		Contract:        contract,
		TokenID:         tokenID,
		Owner:           owner,
		PoolID:          poolID,
		StakedAmount:    stakedAmount,
		YieldRate:       pool.APY,
		StakingTime:     now,
		LastRewardClaim: now,
		LockupEnds:      now.Add(pool.LockupPeriod),
		IsActive:        true,
	}

	sl.mu.Lock()
	sl.stakes[stake.ID] = stake
	sl.mu.Unlock()

	return *stake, nil
}

// Claim pays out pending rewards and resets the accrual clock. A claim with
// nothing pending is a no-op reported as ErrNothingToClaim so callers can
// distinguish it from a real payout.
func (sl *StakingLedger) Claim(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (StakedAsset, int64, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	stake, err := sl.activeStake(owner, stakeID)
	if err != nil {
		return StakedAsset{}, 0, err
	}

	pending := PendingRewards(stake, now)
	if pending <= 0 {
		return *stake, 0, fmt.Errorf("stake %s: %w", stakeID, ErrNothingToClaim)
	}

	if err := sl.registry.ReleaseStake(stake.PoolID, 0, pending); err != nil {
		return StakedAsset{}, 0, err
	}
	stake.AccumulatedRewards += pending
	stake.LastRewardClaim = now

	return *stake, pending, nil
}

// Compound folds pending rewards into the staked principal instead of paying
// them out. Grown principal accrues at the snapshotted rate from now on.
func (sl *StakingLedger) Compound(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (StakedAsset, int64, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	stake, err := sl.activeStake(owner, stakeID)
	if err != nil {
		return StakedAsset{}, 0, err
	}

	pending := PendingRewards(stake, now)
	if pending <= 0 {
		return *stake, 0, fmt.Errorf("stake %s: %w", stakeID, ErrNothingToClaim)
	}

	if err := sl.registry.AddCompounded(stake.PoolID, pending); err != nil {
		return StakedAsset{}, 0, err
	}
	stake.StakedAmount += pending
	stake.LastRewardClaim = now

	return *stake, pending, nil
}

// Unstake exits the pool after lockup, claiming any pending rewards on the
// way out. Returns the principal released and the rewards paid with it.
func (sl *StakingLedger) Unstake(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (StakedAsset, int64, int64, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	stake, err := sl.activeStake(owner, stakeID)
	if err != nil {
		return StakedAsset{}, 0, 0, err
	}
	if now.Before(stake.LockupEnds) {
		return StakedAsset{}, 0, 0, fmt.Errorf("stake %s locked until %s: %w",
			stakeID, stake.LockupEnds.Format(time.RFC3339), ErrStillLocked)
	}

	pending := PendingRewards(stake, now)
	principal := stake.StakedAmount

	if err := sl.registry.ReleaseStake(stake.PoolID, principal, pending); err != nil {
		return StakedAsset{}, 0, 0, err
	}
	stake.AccumulatedRewards += pending
	stake.LastRewardClaim = now
	stake.IsActive = false

	return *stake, principal, pending, nil
}

// EmergencyWithdraw exits immediately, lockup or not. Pending rewards are
// forfeited as the penalty; rewards already claimed stay with the owner.
// Returns the principal released and the amount forfeited.
func (sl *StakingLedger) EmergencyWithdraw(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (StakedAsset, int64, int64, error) {
	sl.mu.Lock()
	defer sl.mu.Unlock()

	stake, err := sl.activeStake(owner, stakeID)
	if err != nil {
		return StakedAsset{}, 0, 0, err
	}

	forfeited := PendingRewards(stake, now)
	principal := stake.StakedAmount

	if err := sl.registry.ReleaseStake(stake.PoolID, principal, 0); err != nil {
		return StakedAsset{}, 0, 0, err
	}
	stake.LastRewardClaim = now
	stake.IsActive = false

	return *stake, principal, forfeited, nil
}

// activeStake requires sl.mu held.
func (sl *StakingLedger) activeStake(owner string, stakeID uuid.UUID) (*StakedAsset, error) {
	stake, ok := sl.stakes[stakeID]
	if !ok || !stake.IsActive {
		return nil, fmt.Errorf("stake %s: %w", stakeID, ErrUnknownStake)
	}
	if stake.Owner != owner {
		return nil, fmt.Errorf("stake %s: %w", stakeID, ErrNotOwner)
	}
	return stake, nil
}

// Get returns a copy of the record, active or not.
func (sl *StakingLedger) Get(stakeID uuid.UUID) (StakedAsset, bool) {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	stake, ok := sl.stakes[stakeID]
	if !ok {
		return StakedAsset{}, false
	}
	return *stake, true
}

// ActiveByOwner returns copies of the owner's active stakes, ordered by ID.
func (sl *StakingLedger) ActiveByOwner(owner string) []StakedAsset {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	result := make([]StakedAsset, 0)
	for _, stake := range sl.stakes {
		if stake.Owner == owner && stake.IsActive {
			result = append(result, *stake)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result
}

// ActiveOwners returns the distinct owners holding active stakes.
func (sl *StakingLedger) ActiveOwners() []string {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	seen := make(map[string]bool)
	for _, stake := range sl.stakes {
		if stake.IsActive {
			seen[stake.Owner] = true
		}
	}
	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	return owners
}

// TotalStaked sums principal across all active stakes.
func (sl *StakingLedger) TotalStaked() int64 {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	var total int64
	for _, stake := range sl.stakes {
		if stake.IsActive {
			total += stake.StakedAmount
		}
	}
	return total
}
