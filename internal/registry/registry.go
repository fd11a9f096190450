package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	fpmath "YieldLedger/internal/math"
)

// Pool-side failures. The ledgers wrap these with operation context.
var (
	ErrUnknownPool      = errors.New("unknown pool")
	ErrPoolInactive     = errors.New("pool is not active")
	ErrCapacityExceeded = errors.New("pool capacity exceeded")
)

// Protocol identifies a supported lending venue. Closed set.
type Protocol string

const (
	ProtocolAave     Protocol = "aave"
	ProtocolCompound Protocol = "compound"
	ProtocolOneChain Protocol = "onechain"
)

// RiskTier classifies a yield strategy.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// DefaultMaxLTV applies when a protocol entry does not override it.
const DefaultMaxLTV int64 = 750_000 // 75%

// LendingProtocol is a static catalog entry for a lending venue.
type LendingProtocol struct {
	Name                 string
	Protocol             Protocol
	Address              string
	MaxLTV               int64 // scale-1e6 fraction
	LiquidationThreshold int64 // scale-1e6 fraction
	IsActive             bool
	SupportedAssets      []string
	TotalTVL             int64 // micro-USD
}

// LendingPool tracks per-asset supply and borrow for one protocol.
type LendingPool struct {
	ID          string
	Name        string
	Asset       string
	Protocol    Protocol
	TotalSupply int64 // micro-USD
	TotalBorrow int64 // micro-USD
	SupplyRate  int64 // scale-1e6 APY fraction
	BorrowRate  int64 // scale-1e6 APY fraction
	TVL         int64 // micro-USD
	IsActive    bool
}

// UtilizationRate returns totalBorrow / totalSupply as a scale-1e6 fraction.
func (p LendingPool) UtilizationRate() int64 {
	if p.TotalSupply == 0 {
		return 0
	}
	return fpmath.MulDiv(p.TotalBorrow, fpmath.RateConfig.Scale, p.TotalSupply, fpmath.RoundHalfEven)
}

// YieldPool tracks one staking strategy's aggregate state.
type YieldPool struct {
	ID                string
	Name              string
	RewardToken       string
	TotalStaked       int64 // micro-USD
	TotalRewards      int64 // micro-USD distributed
	APY               int64 // scale-1e6 fraction
	MinStakingPeriod  time.Duration
	LockupPeriod      time.Duration
	Capacity          int64 // micro-USD; 0 = uncapped
	IsActive          bool
	AllowedCollateral []string // NFT contract addresses accepted by the pool
}

// Allows reports whether the pool accepts the given collateral contract.
// An empty allow-list accepts everything.
func (p YieldPool) Allows(contract string) bool {
	if len(p.AllowedCollateral) == 0 {
		return true
	}
	for _, c := range p.AllowedCollateral {
		if c == contract {
			return true
		}
	}
	return false
}

// YieldStrategy is a static catalog entry describing a packaged strategy.
type YieldStrategy struct {
	ID           string
	Name         string
	Description  string
	APY          int64 // scale-1e6 fraction
	Risk         RiskTier
	Protocol     Protocol
	MinAmount    int64 // micro-USD
	LockupPeriod time.Duration
	AutoCompound bool
}

// Registry is the catalog of pools, protocols and strategies.
// Catalog entries are loaded at construction; the only mutation paths
// afterwards are the ledger-driven counter updates below. All counter
// updates for one pool happen under the registry lock, so concurrent
// stakes never lose increments.
type Registry struct {
	mu           sync.RWMutex
	protocols    map[Protocol]*LendingProtocol
	lendingPools map[string]*LendingPool
	yieldPools   map[string]*YieldPool
	strategies   map[string]*YieldStrategy
}

func New() *Registry {
	return &Registry{
		protocols:    make(map[Protocol]*LendingProtocol),
		lendingPools: make(map[string]*LendingPool),
		yieldPools:   make(map[string]*YieldPool),
		strategies:   make(map[string]*YieldStrategy),
	}
}

// --- catalog loading (construction time) ---

func (r *Registry) AddProtocol(p LendingProtocol) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.MaxLTV == 0 {
		p.MaxLTV = DefaultMaxLTV
	}
	r.protocols[p.Protocol] = &p
}

func (r *Registry) AddLendingPool(p LendingPool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lendingPools[p.ID] = &p
}

func (r *Registry) AddYieldPool(p YieldPool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.yieldPools[p.ID] = &p
}

func (r *Registry) AddStrategy(s YieldStrategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[s.ID] = &s
}

// --- reads (copies, never internal pointers) ---

func (r *Registry) Protocol(p Protocol) (LendingProtocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.protocols[p]
	if !ok {
		return LendingProtocol{}, false
	}
	return *entry, true
}

func (r *Registry) YieldPool(id string) (YieldPool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.yieldPools[id]
	if !ok {
		return YieldPool{}, false
	}
	return *pool, true
}

func (r *Registry) LendingPool(id string) (LendingPool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	pool, ok := r.lendingPools[id]
	if !ok {
		return LendingPool{}, false
	}
	return *pool, true
}

func (r *Registry) LendingPools() []LendingPool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]LendingPool, 0, len(r.lendingPools))
	for _, p := range r.lendingPools {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *Registry) YieldPools() []YieldPool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]YieldPool, 0, len(r.yieldPools))
	for _, p := range r.yieldPools {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *Registry) Strategies() []YieldStrategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]YieldStrategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (r *Registry) ProtocolCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.protocols)
}

// --- ledger-driven counter mutations ---

// ReserveStake atomically checks pool liveness and capacity, then adds amount
// to the pool's totalStaked. The check-and-increment is a single critical
// section: two concurrent stakes cannot both fit into the last slot.
func (r *Registry) ReserveStake(poolID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.yieldPools[poolID]
	if !ok {
		return fmt.Errorf("yield pool %q: %w", poolID, ErrUnknownPool)
	}
	if !pool.IsActive {
		return fmt.Errorf("yield pool %q: %w", poolID, ErrPoolInactive)
	}
	if pool.Capacity > 0 && pool.TotalStaked+amount > pool.Capacity {
		return fmt.Errorf("yield pool %q: staked %d + %d exceeds capacity %d: %w",
			poolID, pool.TotalStaked, amount, pool.Capacity, ErrCapacityExceeded)
	}

	pool.TotalStaked += amount
	return nil
}

// ReleaseStake removes principal from totalStaked and credits distributed
// rewards, both under one lock acquisition.
func (r *Registry) ReleaseStake(poolID string, principal, rewards int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.yieldPools[poolID]
	if !ok {
		return fmt.Errorf("yield pool %q: %w", poolID, ErrUnknownPool)
	}

	pool.TotalStaked -= principal
	pool.TotalRewards += rewards
	if pool.TotalStaked < 0 {
		panic(fmt.Sprintf("FATAL: yield pool %s totalStaked went negative (%d)", poolID, pool.TotalStaked))
	}
	return nil
}

// AddCompounded grows totalStaked by rewards folded back into principal.
// Compounding tracks the pool's liability and asset side together, so no
// capacity check applies here.
func (r *Registry) AddCompounded(poolID string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool, ok := r.yieldPools[poolID]
	if !ok {
		return fmt.Errorf("yield pool %q: %w", poolID, ErrUnknownPool)
	}

	pool.TotalStaked += amount
	return nil
}

// RecordBorrow adds a drawn loan to the matching lending pool's totalBorrow.
func (r *Registry) RecordBorrow(protocol Protocol, asset string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool := r.findLendingPool(protocol, asset)
	if pool == nil {
		return fmt.Errorf("no lending pool for %s/%s: %w", protocol, asset, ErrUnknownPool)
	}

	pool.TotalBorrow += amount
	return nil
}

// RecordRepay reverses RecordBorrow.
func (r *Registry) RecordRepay(protocol Protocol, asset string, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pool := r.findLendingPool(protocol, asset)
	if pool == nil {
		return fmt.Errorf("no lending pool for %s/%s: %w", protocol, asset, ErrUnknownPool)
	}

	pool.TotalBorrow -= amount
	if pool.TotalBorrow < 0 {
		panic(fmt.Sprintf("FATAL: lending pool %s totalBorrow went negative (%d)", pool.ID, pool.TotalBorrow))
	}
	return nil
}

// HasLendingPool reports whether a pool exists for protocol/asset. Used to
// reject borrows against venues we do not track before any state changes.
func (r *Registry) HasLendingPool(protocol Protocol, asset string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.findLendingPool(protocol, asset) != nil
}

// findLendingPool requires r.mu held.
func (r *Registry) findLendingPool(protocol Protocol, asset string) *LendingPool {
	for _, p := range r.lendingPools {
		if p.Protocol == protocol && p.Asset == asset {
			return p
		}
	}
	return nil
}
