package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeCollateralDeposited
	EventTypeLoanCreated
	EventTypeLoanRepaid
	EventTypeCollateralToppedUp
	EventTypeCollateralWithdrawn
	EventTypeAssetStaked
	EventTypeRewardsClaimed
	EventTypeRewardsCompounded
	EventTypeAssetUnstaked
	EventTypeEmergencyWithdrawal
)

// Envelope wraps every domain event emitted by the engine.
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Event type discriminator
	EventType EventType

	// Address of the owner whose position changed
	Owner string

	// Versioned input timestamp (NOT wall-clock of emission)
	Timestamp time.Time

	// Typed event-specific payload
	Payload Event
}

// Event is the interface all event payloads must implement
type Event interface {
	// Kind returns the discriminator
	Kind() EventType
}

func (et EventType) String() string {
	switch et {
	case EventTypeCollateralDeposited:
		return "CollateralDeposited"
	case EventTypeLoanCreated:
		return "LoanCreated"
	case EventTypeLoanRepaid:
		return "LoanRepaid"
	case EventTypeCollateralToppedUp:
		return "CollateralToppedUp"
	case EventTypeCollateralWithdrawn:
		return "CollateralWithdrawn"
	case EventTypeAssetStaked:
		return "AssetStaked"
	case EventTypeRewardsClaimed:
		return "RewardsClaimed"
	case EventTypeRewardsCompounded:
		return "RewardsCompounded"
	case EventTypeAssetUnstaked:
		return "AssetUnstaked"
	case EventTypeEmergencyWithdrawal:
		return "EmergencyWithdrawal"
	default:
		return "Unknown"
	}
}

// Subject returns the snake_case token used in NATS subjects and the
// event_log.events event_type column.
func (et EventType) Subject() string {
	switch et {
	case EventTypeCollateralDeposited:
		return "collateral_deposited"
	case EventTypeLoanCreated:
		return "loan_created"
	case EventTypeLoanRepaid:
		return "loan_repaid"
	case EventTypeCollateralToppedUp:
		return "collateral_topped_up"
	case EventTypeCollateralWithdrawn:
		return "collateral_withdrawn"
	case EventTypeAssetStaked:
		return "asset_staked"
	case EventTypeRewardsClaimed:
		return "rewards_claimed"
	case EventTypeRewardsCompounded:
		return "rewards_compounded"
	case EventTypeAssetUnstaked:
		return "asset_unstaked"
	case EventTypeEmergencyWithdrawal:
		return "emergency_withdrawal"
	default:
		return "unknown"
	}
}
