package model

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow: window below 2 observations. Fatal before any market is processed.
	ErrInvalidWindow = errors.New("invalid window: must be at least 2")
	// ErrInvalidThreshold: extremes threshold outside [0, 50).
	ErrInvalidThreshold = errors.New("invalid extremes threshold: must be in [0, 50)")
	// ErrEmptySeries: no records to compute from. Per market.
	ErrEmptySeries = errors.New("empty series")
	// ErrMisalignedSeries: rows and date axis disagree. Wiring bug, fatal.
	ErrMisalignedSeries = errors.New("misaligned series")
	ErrUnknownMarket    = errors.New("unknown market")
	ErrNoMarketData     = errors.New("no records for market")
	ErrInvalidRecord    = errors.New("invalid position record")
	ErrPartialFailure   = errors.New("some markets failed")
	ErrNoResults        = errors.New("no market produced results")
)

// MarketFailed records why one market was skipped in a run.
type MarketFailed struct {
	MarketID string
	Cause    error
}

func (e *MarketFailed) Error() string {
	return fmt.Sprintf("market %s failed: %v", e.MarketID, e.Cause)
}

func (e *MarketFailed) Unwrap() error { return e.Cause }
