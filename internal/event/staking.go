// internal/event/staking.go
package event

import "github.com/google/uuid"

type AssetStaked struct {
	StakeID      uuid.UUID `json:"stake_id"`
	Owner        string    `json:"owner"`
	Contract     string    `json:"contract"`
	TokenID      string    `json:"token_id"`
	PoolID       string    `json:"pool_id"`
	StakedAmount int64     `json:"staked_amount"`
	YieldRate    int64     `json:"yield_rate"` // APY snapshot, scale-1e6
}

func (e *AssetStaked) Kind() EventType {
	return EventTypeAssetStaked
}

type RewardsClaimed struct {
	StakeID            uuid.UUID `json:"stake_id"`
	Owner              string    `json:"owner"`
	PoolID             string    `json:"pool_id"`
	Claimed            int64     `json:"claimed"`
	AccumulatedRewards int64     `json:"accumulated_rewards"` // post-claim total
}

func (e *RewardsClaimed) Kind() EventType {
	return EventTypeRewardsClaimed
}

type RewardsCompounded struct {
	StakeID      uuid.UUID `json:"stake_id"`
	Owner        string    `json:"owner"`
	PoolID       string    `json:"pool_id"`
	Compounded   int64     `json:"compounded"`
	StakedAmount int64     `json:"staked_amount"` // post-compound principal
}

func (e *RewardsCompounded) Kind() EventType {
	return EventTypeRewardsCompounded
}

type AssetUnstaked struct {
	StakeID   uuid.UUID `json:"stake_id"`
	Owner     string    `json:"owner"`
	PoolID    string    `json:"pool_id"`
	Principal int64     `json:"principal"`
	Rewards   int64     `json:"rewards"` // claimed on exit
}

func (e *AssetUnstaked) Kind() EventType {
	return EventTypeAssetUnstaked
}

type EmergencyWithdrawal struct {
	StakeID   uuid.UUID `json:"stake_id"`
	Owner     string    `json:"owner"`
	PoolID    string    `json:"pool_id"`
	Principal int64     `json:"principal"`
	Forfeited int64     `json:"forfeited"` // pending rewards given up
}

func (e *EmergencyWithdrawal) Kind() EventType {
	return EventTypeEmergencyWithdrawal
}
