// Package engine is the single entry point for all yield ledger operations.
// It validates through the ledgers, emits domain events on two channels
// (blocking persist, best-effort publish) and rebuilds the caller's position
// after every mutation.
package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"YieldLedger/internal/event"
	"YieldLedger/internal/ledger"
	"YieldLedger/internal/observability"
	"YieldLedger/internal/oracle"
	"YieldLedger/internal/position"
	"YieldLedger/internal/registry"
	"YieldLedger/internal/report"
	"YieldLedger/internal/risk"
)

// Engine wires the registry, the ledgers and the event channels.
// The clock is always an explicit argument: the engine never reads wall time
// itself, so a given input history produces the same ledger state anywhere.
type Engine struct {
	sequence int64 // atomic

	registry   *registry.Registry
	collateral *ledger.CollateralLedger
	staking    *ledger.StakingLedger
	aggregator *position.Aggregator
	reporter   *report.Reporter
	oracle     oracle.ValuationOracle

	metrics *observability.Metrics
	logger  zerolog.Logger

	persistChan chan<- event.Envelope
	publishChan chan<- event.Envelope
}

func New(
	reg *registry.Registry,
	valuer oracle.ValuationOracle,
	persistChan, publishChan chan<- event.Envelope,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Engine {
	cl := ledger.NewCollateralLedger(reg)
	sl := ledger.NewStakingLedger(reg)
	agg := position.NewAggregator(cl, sl)

	return &Engine{
		registry:    reg,
		collateral:  cl,
		staking:     sl,
		aggregator:  agg,
		reporter:    report.NewReporter(reg, agg),
		oracle:      valuer,
		metrics:     metrics,
		logger:      logger,
		persistChan: persistChan,
		publishChan: publishChan,
	}
}

// emit assigns the next sequence and fans the event out. The persist send
// blocks: an event that cannot be durably queued must hold up its caller.
// The publish send never blocks; a slow broker loses events, counted but
// tolerated.
func (e *Engine) emit(owner string, payload event.Event, now time.Time) {
	env := event.Envelope{
		Sequence:  atomic.AddInt64(&e.sequence, 1),
		EventType: payload.Kind(),
		Owner:     owner,
		Timestamp: now,
		Payload:   payload,
	}

	if e.metrics != nil {
		e.metrics.EventsEmitted.WithLabelValues(env.EventType.String()).Inc()
		e.metrics.EngineSequence.Set(float64(env.Sequence))
	}

	if e.persistChan != nil {
		select {
		case e.persistChan <- env:
		default:
			if e.metrics != nil {
				e.metrics.PersistBackpressure.Inc()
			}
			e.persistChan <- env
		}
	}

	if e.publishChan != nil {
		select {
		case e.publishChan <- env:
		default:
			if e.metrics != nil {
				e.metrics.PublishDrops.Inc()
			}
			e.logger.Warn().
				Int64("sequence", env.Sequence).
				Str("event_type", env.EventType.String()).
				Msg("publish channel full, event dropped")
		}
	}
}

func (e *Engine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		e.metrics.OpsRejected.WithLabelValues(op, "error").Inc()
	} else {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
	}
}

// --- collateral operations ---

// DepositCollateral values the NFT through the oracle and books it as
// collateral under the given protocol.
func (e *Engine) DepositCollateral(
	ctx context.Context,
	owner, contract, tokenID string,
	protocol registry.Protocol,
	now time.Time,
) (ledger.CollateralAsset, error) {
	start := time.Now()

	value, err := e.oracle.Value(ctx, contract, tokenID)
	if err != nil {
		e.observe("deposit_collateral", start, err)
		return ledger.CollateralAsset{}, err
	}

	asset, err := e.collateral.Deposit(owner, contract, tokenID, protocol, value, now)
	e.observe("deposit_collateral", start, err)
	if err != nil {
		return ledger.CollateralAsset{}, err
	}

	e.emit(owner, &event.CollateralDeposited{
		CollateralID:    asset.ID,
		Owner:           owner,
		Contract:        contract,
		TokenID:         tokenID,
		Protocol:        string(protocol),
		CollateralValue: asset.CollateralValue,
	}, now)

	e.logger.Info().
		Str("collateral_id", asset.ID.String()).
		Str("owner", owner).
		Int64("value", asset.CollateralValue).
		Msg("collateral deposited")

	return asset, nil
}

// Borrow draws a loan against collateral.
func (e *Engine) Borrow(
	owner string,
	collateralID uuid.UUID,
	amount int64,
	borrowAsset string,
	now time.Time,
) (ledger.CollateralAsset, error) {
	start := time.Now()

	asset, err := e.collateral.Borrow(owner, collateralID, amount, borrowAsset)
	e.observe("borrow", start, err)
	if err != nil {
		return ledger.CollateralAsset{}, err
	}

	e.emit(owner, &event.LoanCreated{
		CollateralID: asset.ID,
		Owner:        owner,
		Asset:        borrowAsset,
		Amount:       amount,
		LoanAmount:   asset.LoanAmount,
		HealthFactor: asset.HealthFactor,
	}, now)

	return asset, nil
}

// Repay pays down a loan.
func (e *Engine) Repay(
	owner string,
	collateralID uuid.UUID,
	amount int64,
	now time.Time,
) (ledger.CollateralAsset, error) {
	start := time.Now()

	asset, err := e.collateral.Repay(owner, collateralID, amount)
	e.observe("repay", start, err)
	if err != nil {
		return ledger.CollateralAsset{}, err
	}

	e.emit(owner, &event.LoanRepaid{
		CollateralID: asset.ID,
		Owner:        owner,
		Amount:       amount,
		LoanAmount:   asset.LoanAmount,
		HealthFactor: asset.HealthFactor,
	}, now)

	return asset, nil
}

// TopUpCollateral adds value to existing collateral.
func (e *Engine) TopUpCollateral(
	owner string,
	collateralID uuid.UUID,
	addedValue int64,
	now time.Time,
) (ledger.CollateralAsset, error) {
	start := time.Now()

	asset, err := e.collateral.AddCollateral(owner, collateralID, addedValue, now)
	e.observe("topup_collateral", start, err)
	if err != nil {
		return ledger.CollateralAsset{}, err
	}

	e.emit(owner, &event.CollateralToppedUp{
		CollateralID:    asset.ID,
		Owner:           owner,
		AddedValue:      addedValue,
		CollateralValue: asset.CollateralValue,
		HealthFactor:    asset.HealthFactor,
	}, now)

	return asset, nil
}

// WithdrawCollateral releases debt-free collateral back to the owner.
func (e *Engine) WithdrawCollateral(
	owner string,
	collateralID uuid.UUID,
	now time.Time,
) (ledger.CollateralAsset, error) {
	start := time.Now()

	asset, err := e.collateral.Withdraw(owner, collateralID)
	e.observe("withdraw_collateral", start, err)
	if err != nil {
		return ledger.CollateralAsset{}, err
	}

	e.emit(owner, &event.CollateralWithdrawn{
		CollateralID: asset.ID,
		Owner:        owner,
		Contract:     asset.Contract,
		TokenID:      asset.TokenID,
	}, now)

	return asset, nil
}

// CollateralHealth assesses one collateral position against its protocol.
type CollateralHealth struct {
	Asset      ledger.CollateralAsset
	Assessment risk.Assessment
}

func (e *Engine) CollateralHealth(collateralID uuid.UUID) (CollateralHealth, error) {
	asset, ok := e.collateral.Get(collateralID)
	if !ok {
		return CollateralHealth{}, ledger.ErrUnknownCollateral
	}
	maxLTV := registry.DefaultMaxLTV
	if proto, ok := e.registry.Protocol(asset.Protocol); ok {
		maxLTV = proto.MaxLTV
	}
	return CollateralHealth{
		Asset:      asset,
		Assessment: risk.Assess(asset, maxLTV),
	}, nil
}

// --- staking operations ---

// StakeAsset values the NFT through the oracle and locks it into the pool.
func (e *Engine) StakeAsset(
	ctx context.Context,
	owner, contract, tokenID, poolID string,
	now time.Time,
) (ledger.StakedAsset, error) {
	start := time.Now()

	value, err := e.oracle.Value(ctx, contract, tokenID)
	if err != nil {
		e.observe("stake", start, err)
		return ledger.StakedAsset{}, err
	}

	stake, err := e.staking.Stake(owner, contract, tokenID, poolID, value, now)
	e.observe("stake", start, err)
	if err != nil {
		return ledger.StakedAsset{}, err
	}

	e.emit(owner, &event.AssetStaked{
		StakeID:      stake.ID,
		Owner:        owner,
		Contract:     contract,
		TokenID:      tokenID,
		PoolID:       poolID,
		StakedAmount: stake.StakedAmount,
		YieldRate:    stake.YieldRate,
	}, now)

	e.logger.Info().
		Str("stake_id", stake.ID.String()).
		Str("owner", owner).
		Str("pool", poolID).
		Int64("amount", stake.StakedAmount).
		Msg("asset staked")

	return stake, nil
}

// ClaimRewards pays out pending rewards. A no-op claim returns the current
// record, zero amount and ledger.ErrNothingToClaim.
func (e *Engine) ClaimRewards(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (ledger.StakedAsset, int64, error) {
	start := time.Now()

	stake, claimed, err := e.staking.Claim(owner, stakeID, now)
	e.observe("claim", start, err)
	if err != nil {
		return stake, 0, err
	}

	e.emit(owner, &event.RewardsClaimed{
		StakeID:            stake.ID,
		Owner:              owner,
		PoolID:             stake.PoolID,
		Claimed:            claimed,
		AccumulatedRewards: stake.AccumulatedRewards,
	}, now)

	return stake, claimed, nil
}

// CompoundRewards folds pending rewards into principal.
func (e *Engine) CompoundRewards(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (ledger.StakedAsset, int64, error) {
	start := time.Now()

	stake, compounded, err := e.staking.Compound(owner, stakeID, now)
	e.observe("compound", start, err)
	if err != nil {
		return stake, 0, err
	}

	e.emit(owner, &event.RewardsCompounded{
		StakeID:      stake.ID,
		Owner:        owner,
		PoolID:       stake.PoolID,
		Compounded:   compounded,
		StakedAmount: stake.StakedAmount,
	}, now)

	return stake, compounded, nil
}

// Unstake exits a pool after lockup.
func (e *Engine) Unstake(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (ledger.StakedAsset, int64, int64, error) {
	start := time.Now()

	stake, principal, rewards, err := e.staking.Unstake(owner, stakeID, now)
	e.observe("unstake", start, err)
	if err != nil {
		return ledger.StakedAsset{}, 0, 0, err
	}

	e.emit(owner, &event.AssetUnstaked{
		StakeID:   stake.ID,
		Owner:     owner,
		PoolID:    stake.PoolID,
		Principal: principal,
		Rewards:   rewards,
	}, now)

	return stake, principal, rewards, nil
}

// EmergencyWithdraw exits a pool immediately, forfeiting pending rewards.
func (e *Engine) EmergencyWithdraw(
	owner string,
	stakeID uuid.UUID,
	now time.Time,
) (ledger.StakedAsset, int64, int64, error) {
	start := time.Now()

	stake, principal, forfeited, err := e.staking.EmergencyWithdraw(owner, stakeID, now)
	e.observe("emergency_withdraw", start, err)
	if err != nil {
		return ledger.StakedAsset{}, 0, 0, err
	}

	e.emit(owner, &event.EmergencyWithdrawal{
		StakeID:   stake.ID,
		Owner:     owner,
		PoolID:    stake.PoolID,
		Principal: principal,
		Forfeited: forfeited,
	}, now)

	e.logger.Warn().
		Str("stake_id", stake.ID.String()).
		Str("owner", owner).
		Int64("forfeited", forfeited).
		Msg("emergency withdrawal")

	return stake, principal, forfeited, nil
}

// --- reads ---

// Position rebuilds the owner's aggregate view from current ledger state.
func (e *Engine) Position(owner string) position.UserPosition {
	return e.aggregator.Rebuild(owner)
}

// PendingRewards previews a stake's unclaimed accrual without mutating it.
func (e *Engine) PendingRewards(stakeID uuid.UUID, now time.Time) (int64, error) {
	stake, ok := e.staking.Get(stakeID)
	if !ok {
		return 0, ledger.ErrUnknownStake
	}
	return ledger.PendingRewards(&stake, now), nil
}

// LendingPools lists the lending catalog.
func (e *Engine) LendingPools() []registry.LendingPool {
	return e.registry.LendingPools()
}

// YieldPools lists the staking catalog.
func (e *Engine) YieldPools() []registry.YieldPool {
	return e.registry.YieldPools()
}

// Strategies lists the packaged strategies.
func (e *Engine) Strategies() []registry.YieldStrategy {
	return e.registry.Strategies()
}

// Metrics produces the platform summary and refreshes the exported gauges.
func (e *Engine) Metrics() report.DeFiMetrics {
	m := e.reporter.Snapshot()
	if e.metrics != nil {
		e.metrics.TotalValueLocked.Set(float64(m.TotalValueLocked / 1_000_000))
		e.metrics.TotalStaked.Set(float64(m.TotalStaked / 1_000_000))
		e.metrics.ActiveUsers.Set(float64(m.ActiveUsers))
	}
	return m
}

// Sequence returns the last emitted event sequence.
func (e *Engine) Sequence() int64 {
	return atomic.LoadInt64(&e.sequence)
}

// ResumeSequence sets the starting sequence, typically the highest sequence
// already written to the event log. Call before the engine takes traffic.
func (e *Engine) ResumeSequence(seq int64) {
	atomic.StoreInt64(&e.sequence, seq)
}
