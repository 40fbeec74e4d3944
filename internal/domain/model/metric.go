package model

import "time"

// MetricRow holds the indicators derived for one PositionRecord.
// WindowLen is how many trailing observations were used (shorter at the start of a series).
type MetricRow struct {
	MarketID   string    `json:"market"`
	ReportDate time.Time `json:"date"`
	Long       int64     `json:"long"`
	Short      int64     `json:"short"`
	Net        int64     `json:"net"`
	COTIndex   Optional  `json:"cot_index"`
	Percentile Optional  `json:"percentile"`
	ZScore     Optional  `json:"zscore"`
	WindowLen  int       `json:"window_len"`
}

// Dates returns the date axis of rows.
func Dates(rows []MetricRow) []time.Time {
	out := make([]time.Time, len(rows))
	for i, r := range rows {
		out[i] = r.ReportDate
	}
	return out
}

// MarketResult is what one market's pipeline run hands to exporters and sinks.
type MarketResult struct {
	Market    Market         `json:"market"`
	Report    ReportType     `json:"report"`
	Group     TraderGroup    `json:"group"`
	Window    int            `json:"window"`
	Threshold float64        `json:"extremes"`
	Rows      []MetricRow    `json:"rows"`
	Events    []ExtremeEvent `json:"events"`
}

// ExtremeHigh and ExtremeLow flag rows inside the zones, per row rather than per crossing.
func (r *MarketResult) ExtremeHigh(row MetricRow) bool {
	v, ok := row.Percentile.Get()
	return ok && v >= 100-r.Threshold
}

func (r *MarketResult) ExtremeLow(row MetricRow) bool {
	v, ok := row.Percentile.Get()
	return ok && v <= r.Threshold
}

// Latest returns the last row, if any.
func (r *MarketResult) Latest() (MetricRow, bool) {
	if r == nil || len(r.Rows) == 0 {
		return MetricRow{}, false
	}
	return r.Rows[len(r.Rows)-1], true
}
