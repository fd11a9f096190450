// Package server exposes the engine over HTTP/JSON.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"YieldLedger/internal/engine"
	"YieldLedger/internal/ledger"
	"YieldLedger/internal/observability"
	"YieldLedger/internal/oracle"
	"YieldLedger/internal/registry"
)

// Server wires the engine into a chi router. It owns the clock: every inbound
// mutation is stamped here, so the engine stays a pure function of its inputs.
type Server struct {
	engine  *engine.Engine
	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

func New(eng *engine.Engine, metrics *observability.Metrics, logger zerolog.Logger) *Server {
	return &Server{
		engine:  eng,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the clock, for tests.
func (s *Server) WithClock(now func() time.Time) *Server {
	s.now = now
	return s
}

// Router builds the HTTP route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/collateral", s.handleDeposit)
		r.Route("/collateral/{id}", func(r chi.Router) {
			r.Post("/borrow", s.handleBorrow)
			r.Post("/repay", s.handleRepay)
			r.Post("/topup", s.handleTopUp)
			r.Post("/withdraw", s.handleWithdraw)
			r.Get("/health", s.handleCollateralHealth)
		})

		r.Post("/stakes", s.handleStake)
		r.Route("/stakes/{id}", func(r chi.Router) {
			r.Post("/claim", s.handleClaim)
			r.Post("/compound", s.handleCompound)
			r.Post("/unstake", s.handleUnstake)
			r.Post("/emergency", s.handleEmergency)
			r.Get("/rewards", s.handlePendingRewards)
		})

		r.Get("/positions/{owner}", s.handlePosition)
		r.Get("/pools/lending", s.handleLendingPools)
		r.Get("/pools/yield", s.handleYieldPools)
		r.Get("/strategies", s.handleStrategies)
		r.Get("/metrics", s.handleMetrics)
	})

	return r
}

// --- request/response shapes ---

type depositRequest struct {
	Owner    string `json:"owner"`
	Contract string `json:"contract"`
	TokenID  string `json:"token_id"`
	Protocol string `json:"protocol"`
}

type borrowRequest struct {
	Owner  string `json:"owner"`
	Amount int64  `json:"amount"`
	Asset  string `json:"asset"`
}

type amountRequest struct {
	Owner  string `json:"owner"`
	Amount int64  `json:"amount"`
}

type ownerRequest struct {
	Owner string `json:"owner"`
}

type stakeRequest struct {
	Owner    string `json:"owner"`
	Contract string `json:"contract"`
	TokenID  string `json:"token_id"`
	PoolID   string `json:"pool_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- handlers ---

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req depositRequest
	if !s.decode(w, r, &req) {
		return
	}
	asset, err := s.engine.DepositCollateral(
		r.Context(), req.Owner, req.Contract, req.TokenID,
		registry.Protocol(req.Protocol), s.now(),
	)
	if err != nil {
		s.writeError(w, "deposit", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, collateralView(asset))
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req borrowRequest
	if !s.decode(w, r, &req) {
		return
	}
	asset, err := s.engine.Borrow(req.Owner, id, req.Amount, req.Asset, s.now())
	if err != nil {
		s.writeError(w, "borrow", err)
		return
	}
	s.writeJSON(w, http.StatusOK, collateralView(asset))
}

func (s *Server) handleRepay(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	asset, err := s.engine.Repay(req.Owner, id, req.Amount, s.now())
	if err != nil {
		s.writeError(w, "repay", err)
		return
	}
	s.writeJSON(w, http.StatusOK, collateralView(asset))
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}
	asset, err := s.engine.TopUpCollateral(req.Owner, id, req.Amount, s.now())
	if err != nil {
		s.writeError(w, "topup", err)
		return
	}
	s.writeJSON(w, http.StatusOK, collateralView(asset))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if !s.decode(w, r, &req) {
		return
	}
	asset, err := s.engine.WithdrawCollateral(req.Owner, id, s.now())
	if err != nil {
		s.writeError(w, "withdraw", err)
		return
	}
	s.writeJSON(w, http.StatusOK, collateralView(asset))
}

func (s *Server) handleCollateralHealth(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	health, err := s.engine.CollateralHealth(id)
	if err != nil {
		s.writeError(w, "collateral_health", err)
		return
	}
	s.writeJSON(w, http.StatusOK, healthView(health))
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req stakeRequest
	if !s.decode(w, r, &req) {
		return
	}
	stake, err := s.engine.StakeAsset(r.Context(), req.Owner, req.Contract, req.TokenID, req.PoolID, s.now())
	if err != nil {
		s.writeError(w, "stake", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, stakeView(stake))
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if !s.decode(w, r, &req) {
		return
	}
	stake, claimed, err := s.engine.ClaimRewards(req.Owner, id, s.now())
	// Claiming with nothing pending is reported as a normal response with a
	// zero amount, not a failure.
	if err != nil && !errors.Is(err, ledger.ErrNothingToClaim) {
		s.writeError(w, "claim", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"claimed": claimed,
		"stake":   stakeView(stake),
	})
}

func (s *Server) handleCompound(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if !s.decode(w, r, &req) {
		return
	}
	stake, compounded, err := s.engine.CompoundRewards(req.Owner, id, s.now())
	if err != nil && !errors.Is(err, ledger.ErrNothingToClaim) {
		s.writeError(w, "compound", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"compounded": compounded,
		"stake":      stakeView(stake),
	})
}

func (s *Server) handleUnstake(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if !s.decode(w, r, &req) {
		return
	}
	stake, principal, rewards, err := s.engine.Unstake(req.Owner, id, s.now())
	if err != nil {
		s.writeError(w, "unstake", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal": principal,
		"rewards":   rewards,
		"stake":     stakeView(stake),
	})
}

func (s *Server) handleEmergency(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var req ownerRequest
	if !s.decode(w, r, &req) {
		return
	}
	stake, principal, forfeited, err := s.engine.EmergencyWithdraw(req.Owner, id, s.now())
	if err != nil {
		s.writeError(w, "emergency", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"principal": principal,
		"forfeited": forfeited,
		"stake":     stakeView(stake),
	})
}

func (s *Server) handlePendingRewards(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	pending, err := s.engine.PendingRewards(id, s.now())
	if err != nil {
		s.writeError(w, "pending_rewards", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"pending": pending})
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	owner := chi.URLParam(r, "owner")
	pos := s.engine.Position(owner)
	s.writeJSON(w, http.StatusOK, positionView(pos))
	s.countQuery("position", http.StatusOK, start)
}

func (s *Server) handleLendingPools(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pools := s.engine.LendingPools()
	views := make([]lendingPoolJSON, 0, len(pools))
	for _, p := range pools {
		views = append(views, lendingPoolView(p))
	}
	s.writeJSON(w, http.StatusOK, views)
	s.countQuery("lending_pools", http.StatusOK, start)
}

func (s *Server) handleYieldPools(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	pools := s.engine.YieldPools()
	views := make([]yieldPoolJSON, 0, len(pools))
	for _, p := range pools {
		views = append(views, yieldPoolView(p))
	}
	s.writeJSON(w, http.StatusOK, views)
	s.countQuery("yield_pools", http.StatusOK, start)
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	strategies := s.engine.Strategies()
	views := make([]strategyJSON, 0, len(strategies))
	for _, st := range strategies {
		views = append(views, strategyView(st))
	}
	s.writeJSON(w, http.StatusOK, views)
	s.countQuery("strategies", http.StatusOK, start)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	m := s.engine.Metrics()
	s.writeJSON(w, http.StatusOK, map[string]int64{
		"total_value_locked": m.TotalValueLocked,
		"total_supplied":     m.TotalSupplied,
		"total_borrowed":     m.TotalBorrowed,
		"total_staked":       m.TotalStaked,
		"total_rewards_paid": m.TotalRewardsPaid,
		"average_apy":        m.AverageAPY,
		"active_users":       m.ActiveUsers,
		"protocol_count":     m.ProtocolCount,
		"pool_count":         m.PoolCount,
	})
	s.countQuery("metrics", http.StatusOK, start)
}

// --- plumbing ---

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("encode response")
	}
}

// writeError maps domain errors to HTTP statuses: lookups that found nothing
// are 404, ownership violations 403, malformed inputs 400 and policy
// rejections 409.
func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnknownCollateral),
		errors.Is(err, ledger.ErrUnknownStake),
		errors.Is(err, ledger.ErrUnknownProtocol),
		errors.Is(err, registry.ErrUnknownPool):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrOverRepay),
		errors.Is(err, oracle.ErrNoValuation):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrLTVExceeded),
		errors.Is(err, ledger.ErrStillLocked),
		errors.Is(err, ledger.ErrOutstandingLoan),
		errors.Is(err, ledger.ErrNotAllowed),
		errors.Is(err, ledger.ErrAssetMismatch),
		errors.Is(err, registry.ErrPoolInactive),
		errors.Is(err, registry.ErrCapacityExceeded):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		// Parameter validation errors from the ledgers arrive unwrapped.
		status = http.StatusBadRequest
	}

	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(op, http.StatusText(status)).Inc()
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) countQuery(endpoint string, status int, start time.Time) {
	if s.metrics != nil {
		s.metrics.QueryRequests.WithLabelValues(endpoint, http.StatusText(status)).Inc()
		s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
