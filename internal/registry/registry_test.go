package registry_test

import (
	"errors"
	"sync"
	"testing"

	"YieldLedger/internal/registry"
)

const usd = 1_000_000

// ============================================================================
// Test: catalog reads
// ============================================================================

func TestFixture_Catalog(t *testing.T) {
	reg := registry.Fixture()

	if reg.ProtocolCount() != 3 {
		t.Errorf("protocol count = %d, want 3", reg.ProtocolCount())
	}
	if got := len(reg.LendingPools()); got != 3 {
		t.Errorf("lending pools = %d, want 3", got)
	}
	if got := len(reg.YieldPools()); got != 3 {
		t.Errorf("yield pools = %d, want 3", got)
	}
	if got := len(reg.Strategies()); got != 3 {
		t.Errorf("strategies = %d, want 3", got)
	}

	aave, ok := reg.Protocol(registry.ProtocolAave)
	if !ok {
		t.Fatal("aave protocol missing")
	}
	if aave.MaxLTV != 750_000 || aave.LiquidationThreshold != 800_000 {
		t.Errorf("aave bounds = %d/%d, want 750_000/800_000", aave.MaxLTV, aave.LiquidationThreshold)
	}

	pool, ok := reg.YieldPool("rwa-real-estate")
	if !ok {
		t.Fatal("real estate pool missing")
	}
	if pool.APY != 125_000 {
		t.Errorf("real estate APY = %d, want 125_000", pool.APY)
	}
}

func TestListings_SortedByID(t *testing.T) {
	reg := registry.Fixture()

	pools := reg.YieldPools()
	for i := 1; i < len(pools); i++ {
		if pools[i-1].ID >= pools[i].ID {
			t.Fatalf("yield pools not sorted: %s before %s", pools[i-1].ID, pools[i].ID)
		}
	}
}

func TestReads_ReturnCopies(t *testing.T) {
	reg := registry.Fixture()

	pool, _ := reg.YieldPool("rwa-real-estate")
	pool.TotalStaked = 0

	again, _ := reg.YieldPool("rwa-real-estate")
	if again.TotalStaked == 0 {
		t.Error("mutating a returned pool must not affect the registry")
	}
}

func TestAddProtocol_DefaultMaxLTV(t *testing.T) {
	reg := registry.New()
	reg.AddProtocol(registry.LendingProtocol{
		Protocol:             registry.ProtocolAave,
		LiquidationThreshold: 800_000,
		IsActive:             true,
	})

	p, _ := reg.Protocol(registry.ProtocolAave)
	if p.MaxLTV != registry.DefaultMaxLTV {
		t.Errorf("max LTV = %d, want default %d", p.MaxLTV, registry.DefaultMaxLTV)
	}
}

// ============================================================================
// Test: UtilizationRate
// ============================================================================

func TestUtilizationRate(t *testing.T) {
	p := registry.LendingPool{TotalSupply: 50_000_000 * usd, TotalBorrow: 35_000_000 * usd}
	if got := p.UtilizationRate(); got != 700_000 {
		t.Errorf("utilization = %d, want 700_000", got)
	}

	empty := registry.LendingPool{}
	if got := empty.UtilizationRate(); got != 0 {
		t.Errorf("empty pool utilization = %d, want 0", got)
	}
}

// ============================================================================
// Test: ReserveStake capacity under contention
// ============================================================================

func TestReserveStake_ConcurrentCapacity(t *testing.T) {
	reg := registry.New()
	reg.AddYieldPool(registry.YieldPool{
		ID:       "capped",
		Capacity: 10 * usd,
		IsActive: true,
	})

	// 20 goroutines race for 10 one-dollar slots.
	var wg sync.WaitGroup
	var mu sync.Mutex
	var won int
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.ReserveStake("capped", 1*usd); err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if won != 10 {
		t.Errorf("winners = %d, want exactly 10", won)
	}
	pool, _ := reg.YieldPool("capped")
	if pool.TotalStaked != 10*usd {
		t.Errorf("totalStaked = %d, want %d", pool.TotalStaked, int64(10*usd))
	}
}

func TestReserveStake_Errors(t *testing.T) {
	reg := registry.Fixture()
	reg.AddYieldPool(registry.YieldPool{ID: "paused", IsActive: false})

	if err := reg.ReserveStake("nope", 1*usd); !errors.Is(err, registry.ErrUnknownPool) {
		t.Errorf("want ErrUnknownPool, got %v", err)
	}
	if err := reg.ReserveStake("paused", 1*usd); !errors.Is(err, registry.ErrPoolInactive) {
		t.Errorf("want ErrPoolInactive, got %v", err)
	}
}

// ============================================================================
// Test: borrow counters
// ============================================================================

func TestRecordBorrowRepay_RoundTrip(t *testing.T) {
	reg := registry.Fixture()
	start, _ := reg.LendingPool("aave-usdc")

	if err := reg.RecordBorrow(registry.ProtocolAave, "USDC", 500*usd); err != nil {
		t.Fatalf("record borrow: %v", err)
	}
	if err := reg.RecordRepay(registry.ProtocolAave, "USDC", 500*usd); err != nil {
		t.Fatalf("record repay: %v", err)
	}

	end, _ := reg.LendingPool("aave-usdc")
	if end.TotalBorrow != start.TotalBorrow {
		t.Errorf("totalBorrow = %d, want restored %d", end.TotalBorrow, start.TotalBorrow)
	}
}

func TestRecordBorrow_UnknownPool(t *testing.T) {
	reg := registry.Fixture()
	err := reg.RecordBorrow(registry.ProtocolAave, "DOGE", 1*usd)
	if !errors.Is(err, registry.ErrUnknownPool) {
		t.Errorf("want ErrUnknownPool, got %v", err)
	}
}
