// Package oracle abstracts NFT valuation. The engine never prices collateral
// itself; it asks an oracle and books the answer.
package oracle

import (
	"context"
	"errors"
	"sync"
)

// ErrNoValuation means the oracle has no price for the asset.
var ErrNoValuation = errors.New("no valuation available")

// ValuationOracle prices an NFT in micro-USD.
type ValuationOracle interface {
	Value(ctx context.Context, contract, tokenID string) (int64, error)
}

// StaticOracle serves valuations from an in-memory table, with an optional
// per-contract fallback for tokens not listed individually. Used for local
// runs and tests; production wires a market-data client behind the same
// interface.
type StaticOracle struct {
	mu        sync.RWMutex
	tokens    map[string]int64 // contract/tokenID
	contracts map[string]int64 // contract-wide fallback
}

func NewStaticOracle() *StaticOracle {
	return &StaticOracle{
		tokens:    make(map[string]int64),
		contracts: make(map[string]int64),
	}
}

// SetToken prices one specific token.
func (o *StaticOracle) SetToken(contract, tokenID string, value int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tokens[contract+"/"+tokenID] = value
}

// SetContract sets the fallback price for every token of a contract.
func (o *StaticOracle) SetContract(contract string, value int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.contracts[contract] = value
}

func (o *StaticOracle) Value(ctx context.Context, contract, tokenID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	if v, ok := o.tokens[contract+"/"+tokenID]; ok {
		return v, nil
	}
	if v, ok := o.contracts[contract]; ok {
		return v, nil
	}
	return 0, ErrNoValuation
}
