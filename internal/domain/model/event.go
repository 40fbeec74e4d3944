package model

import "time"

type EventKind string

const (
	EventOversold   EventKind = "OVERSOLD"
	EventOverbought EventKind = "OVERBOUGHT"
	EventBullCross  EventKind = "BULL_CROSS"
	EventBearCross  EventKind = "BEAR_CROSS"
)

// EventKinds in the order they are emitted for a single row.
func EventKinds() []EventKind {
	return []EventKind{EventOversold, EventOverbought, EventBullCross, EventBearCross}
}

// ExtremeEvent marks a row whose percentile entered an extreme zone or crossed 50.
type ExtremeEvent struct {
	MarketID   string    `json:"market"`
	ReportDate time.Time `json:"date"`
	Kind       EventKind `json:"kind"`
	Percentile float64   `json:"percentile"`
}
