// internal/event/collateral.go
package event

import "github.com/google/uuid"

type CollateralDeposited struct {
	CollateralID    uuid.UUID `json:"collateral_id"`
	Owner           string    `json:"owner"`
	Contract        string    `json:"contract"`
	TokenID         string    `json:"token_id"`
	Protocol        string    `json:"protocol"`
	CollateralValue int64     `json:"collateral_value"` // micro-USD
}

func (e *CollateralDeposited) Kind() EventType {
	return EventTypeCollateralDeposited
}

type LoanCreated struct {
	CollateralID uuid.UUID `json:"collateral_id"`
	Owner        string    `json:"owner"`
	Asset        string    `json:"asset"`
	Amount       int64     `json:"amount"`
	LoanAmount   int64     `json:"loan_amount"` // post-borrow total
	HealthFactor int64     `json:"health_factor"`
}

func (e *LoanCreated) Kind() EventType {
	return EventTypeLoanCreated
}

type LoanRepaid struct {
	CollateralID uuid.UUID `json:"collateral_id"`
	Owner        string    `json:"owner"`
	Amount       int64     `json:"amount"`
	LoanAmount   int64     `json:"loan_amount"` // post-repay remainder
	HealthFactor int64     `json:"health_factor"`
}

func (e *LoanRepaid) Kind() EventType {
	return EventTypeLoanRepaid
}

type CollateralToppedUp struct {
	CollateralID    uuid.UUID `json:"collateral_id"`
	Owner           string    `json:"owner"`
	AddedValue      int64     `json:"added_value"`
	CollateralValue int64     `json:"collateral_value"` // post-topup total
	HealthFactor    int64     `json:"health_factor"`
}

func (e *CollateralToppedUp) Kind() EventType {
	return EventTypeCollateralToppedUp
}

type CollateralWithdrawn struct {
	CollateralID uuid.UUID `json:"collateral_id"`
	Owner        string    `json:"owner"`
	Contract     string    `json:"contract"`
	TokenID      string    `json:"token_id"`
}

func (e *CollateralWithdrawn) Kind() EventType {
	return EventTypeCollateralWithdrawn
}
