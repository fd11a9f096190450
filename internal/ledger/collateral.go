package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	fpmath "YieldLedger/internal/math"
	"YieldLedger/internal/registry"
)

// CollateralAsset is one NFT pledged as loan collateral.
type CollateralAsset struct {
	ID                   uuid.UUID
	Contract             string
	TokenID              string
	Owner                string
	CollateralValue      int64  // micro-USD, oracle-derived
	LoanAmount           int64  // micro-USD drawn against it
	LoanAsset            string // asset of the outstanding loan; empty when debt-free
	LTV                  int64  // derived, scale-1e6
	LiquidationThreshold int64  // scale-1e6, protocol-defined
	HealthFactor         int64  // derived, scale-1e6
	IsActive             bool
	Protocol             registry.Protocol
	LastValuation        time.Time
}

// recompute refreshes the derived fields after a balance change.
// Negative debt or debt against worthless collateral means the ledger's own
// invariants were violated upstream — unreachable, so assert.
func (a *CollateralAsset) recompute() {
	if a.LoanAmount < 0 {
		panic(fmt.Sprintf("FATAL: collateral %s has negative loan amount %d", a.ID, a.LoanAmount))
	}
	if a.LoanAmount > 0 && a.CollateralValue <= 0 {
		panic(fmt.Sprintf("FATAL: collateral %s has debt %d against value %d", a.ID, a.LoanAmount, a.CollateralValue))
	}
	a.LTV = fpmath.ComputeLTV(a.LoanAmount, a.CollateralValue)
	a.HealthFactor = fpmath.ComputeHealthFactor(a.CollateralValue, a.LiquidationThreshold, a.LoanAmount)
}

// CollateralLedger exclusively owns CollateralAsset records. All mutations
// serialize under the ledger lock: borrow/repay/withdraw read-then-write
// loanAmount and must not interleave on the same record.
type CollateralLedger struct {
	mu       sync.RWMutex
	assets   map[uuid.UUID]*CollateralAsset
	registry *registry.Registry
}

func NewCollateralLedger(reg *registry.Registry) *CollateralLedger {
	return &CollateralLedger{
		assets:   make(map[uuid.UUID]*CollateralAsset),
		registry: reg,
	}
}

// Deposit creates a new collateral record with no debt. The valuation comes
// from the external oracle; the ledger treats it as an opaque USD number.
func (cl *CollateralLedger) Deposit(
	owner, contract, tokenID string,
	protocol registry.Protocol,
	collateralValue int64,
	now time.Time,
) (CollateralAsset, error) {
	proto, ok := cl.registry.Protocol(protocol)
	if !ok {
		return CollateralAsset{}, fmt.Errorf("protocol %q: %w", protocol, ErrUnknownProtocol)
	}
	if collateralValue <= 0 {
		return CollateralAsset{}, fmt.Errorf("collateral valuation must be positive, got %d", collateralValue)
	}

	asset := &CollateralAsset{
		ID:                   uuid.New(),
		Contract:             contract,
		TokenID:              tokenID,
		Owner:                owner,
		CollateralValue:      collateralValue,
		LoanAmount:           0,
		LiquidationThreshold: proto.LiquidationThreshold,
		IsActive:             true,
		Protocol:             protocol,
		LastValuation:        now,
	}
	asset.recompute()

	cl.mu.Lock()
	cl.assets[asset.ID] = asset
	cl.mu.Unlock()

	return *asset, nil
}

// Borrow draws amount against the collateral. The LTV ceiling applies to the
// cumulative post-borrow loan, so repeated borrows cannot creep past max LTV.
// A collateral record carries at most one loan asset at a time: loanAmount is
// a single balance and repayments route through one pool, so a borrow in a
// second asset is rejected until the first loan is fully repaid.
// A missing protocol entry fails closed — never silently treated as healthy.
func (cl *CollateralLedger) Borrow(
	owner string,
	collateralID uuid.UUID,
	amount int64,
	borrowAsset string,
) (CollateralAsset, error) {
	if amount <= 0 {
		return CollateralAsset{}, fmt.Errorf("borrow amount must be positive, got %d", amount)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	asset, ok := cl.assets[collateralID]
	if !ok || !asset.IsActive {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrUnknownCollateral)
	}
	if asset.Owner != owner {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrNotOwner)
	}
	if asset.LoanAsset != "" && asset.LoanAsset != borrowAsset {
		return CollateralAsset{}, fmt.Errorf("outstanding loan is in %s, requested %s: %w",
			asset.LoanAsset, borrowAsset, ErrAssetMismatch)
	}

	proto, ok := cl.registry.Protocol(asset.Protocol)
	if !ok {
		return CollateralAsset{}, fmt.Errorf("protocol %q: %w", asset.Protocol, ErrUnknownProtocol)
	}
	if !cl.registry.HasLendingPool(asset.Protocol, borrowAsset) {
		return CollateralAsset{}, fmt.Errorf("no %s pool for asset %q: %w",
			asset.Protocol, borrowAsset, registry.ErrUnknownPool)
	}

	newLoan := asset.LoanAmount + amount
	maxBorrow := fpmath.ComputeMaxBorrow(asset.CollateralValue, proto.MaxLTV)
	if newLoan > maxBorrow {
		return CollateralAsset{}, fmt.Errorf(
			"loan %d would exceed limit %d (collateral %d at max LTV %d): %w",
			newLoan, maxBorrow, asset.CollateralValue, proto.MaxLTV, ErrLTVExceeded)
	}

	// All checks passed — mutate.
	if err := cl.registry.RecordBorrow(asset.Protocol, borrowAsset, amount); err != nil {
		return CollateralAsset{}, err
	}
	asset.LoanAmount = newLoan
	asset.LoanAsset = borrowAsset
	asset.recompute()

	return *asset, nil
}

// Repay reduces the outstanding loan.
func (cl *CollateralLedger) Repay(
	owner string,
	collateralID uuid.UUID,
	amount int64,
) (CollateralAsset, error) {
	if amount <= 0 {
		return CollateralAsset{}, fmt.Errorf("repay amount must be positive, got %d", amount)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	asset, ok := cl.assets[collateralID]
	if !ok || !asset.IsActive {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrUnknownCollateral)
	}
	if asset.Owner != owner {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrNotOwner)
	}
	if amount > asset.LoanAmount {
		return CollateralAsset{}, fmt.Errorf("repay %d exceeds outstanding %d: %w",
			amount, asset.LoanAmount, ErrOverRepay)
	}

	if asset.LoanAsset != "" {
		if err := cl.registry.RecordRepay(asset.Protocol, asset.LoanAsset, amount); err != nil {
			return CollateralAsset{}, err
		}
	}
	asset.LoanAmount -= amount
	if asset.LoanAmount == 0 {
		// Fully repaid: the next borrow may pick a different asset.
		asset.LoanAsset = ""
	}
	asset.recompute()

	return *asset, nil
}

// AddCollateral tops up the collateral value; strictly improves the health
// factor, so no policy checks beyond ownership.
func (cl *CollateralLedger) AddCollateral(
	owner string,
	collateralID uuid.UUID,
	extraValue int64,
	now time.Time,
) (CollateralAsset, error) {
	if extraValue <= 0 {
		return CollateralAsset{}, fmt.Errorf("added value must be positive, got %d", extraValue)
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	asset, ok := cl.assets[collateralID]
	if !ok || !asset.IsActive {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrUnknownCollateral)
	}
	if asset.Owner != owner {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrNotOwner)
	}

	asset.CollateralValue += extraValue
	asset.LastValuation = now
	asset.recompute()

	return *asset, nil
}

// Withdraw deactivates the record. Only permitted once the loan is fully
// repaid, regardless of how healthy the position looks.
func (cl *CollateralLedger) Withdraw(
	owner string,
	collateralID uuid.UUID,
) (CollateralAsset, error) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	asset, ok := cl.assets[collateralID]
	if !ok || !asset.IsActive {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrUnknownCollateral)
	}
	if asset.Owner != owner {
		return CollateralAsset{}, fmt.Errorf("collateral %s: %w", collateralID, ErrNotOwner)
	}
	if asset.LoanAmount > 0 {
		return CollateralAsset{}, fmt.Errorf("outstanding loan %d: %w", asset.LoanAmount, ErrOutstandingLoan)
	}

	asset.IsActive = false
	return *asset, nil
}

// Get returns a copy of the record, active or not.
func (cl *CollateralLedger) Get(collateralID uuid.UUID) (CollateralAsset, bool) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	asset, ok := cl.assets[collateralID]
	if !ok {
		return CollateralAsset{}, false
	}
	return *asset, true
}

// ActiveByOwner returns copies of the owner's active records, ordered by ID
// for deterministic aggregation.
func (cl *CollateralLedger) ActiveByOwner(owner string) []CollateralAsset {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	result := make([]CollateralAsset, 0)
	for _, asset := range cl.assets {
		if asset.Owner == owner && asset.IsActive {
			result = append(result, *asset)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result
}

// ActiveOwners returns the distinct owners holding active collateral.
func (cl *CollateralLedger) ActiveOwners() []string {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	seen := make(map[string]bool)
	for _, asset := range cl.assets {
		if asset.IsActive {
			seen[asset.Owner] = true
		}
	}
	owners := make([]string, 0, len(seen))
	for owner := range seen {
		owners = append(owners, owner)
	}
	return owners
}

// TotalSupplied sums collateral value across all active records.
func (cl *CollateralLedger) TotalSupplied() int64 {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	var total int64
	for _, asset := range cl.assets {
		if asset.IsActive {
			total += asset.CollateralValue
		}
	}
	return total
}

// TotalBorrowed sums outstanding loans across all active records.
func (cl *CollateralLedger) TotalBorrowed() int64 {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	var total int64
	for _, asset := range cl.assets {
		if asset.IsActive {
			total += asset.LoanAmount
		}
	}
	return total
}
