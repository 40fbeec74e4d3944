package service

import (
	"fmt"
	"time"

	"cotscan/internal/domain/model"
)

// Midline separates short-biased from long-biased positioning history.
const Midline = 50.0

// ExtremesDetector emits edge-triggered extreme events and 50-line crossings.
// A run of rows inside an extreme zone yields one event, at the first row of the run.
type ExtremesDetector struct {
	extreme float64
}

// NewExtremesDetector takes the distance from 0/100 that counts as extreme, e.g. 5.
func NewExtremesDetector(extremePct float64) (*ExtremesDetector, error) {
	if extremePct < 0 || extremePct >= Midline {
		return nil, fmt.Errorf("%w: got %g", model.ErrInvalidThreshold, extremePct)
	}
	return &ExtremesDetector{extreme: extremePct}, nil
}

func (d *ExtremesDetector) Threshold() float64 { return d.extreme }

// Low and High are the zone bounds on the 0-100 percentile scale.
func (d *ExtremesDetector) Low() float64  { return d.extreme }
func (d *ExtremesDetector) High() float64 { return 100 - d.extreme }

// Zone reports whether p sits in the oversold (-1) or overbought (+1) zone.
func (d *ExtremesDetector) Zone(p model.Optional) int {
	v, ok := p.Get()
	switch {
	case !ok:
		return 0
	case v <= d.Low():
		return -1
	case v >= d.High():
		return +1
	default:
		return 0
	}
}

// DetectRows runs Detect on the rows' own date axis.
func (d *ExtremesDetector) DetectRows(marketID string, rows []model.MetricRow) ([]model.ExtremeEvent, error) {
	return d.Detect(marketID, model.Dates(rows), rows)
}

// Detect scans rows aligned with dates. Rows without a percentile are skipped
// and do not become the "previous" row for the next comparison.
func (d *ExtremesDetector) Detect(marketID string, dates []time.Time, rows []model.MetricRow) ([]model.ExtremeEvent, error) {
	if len(dates) != len(rows) {
		return nil, fmt.Errorf("%w: %d dates for %d rows", model.ErrMisalignedSeries, len(dates), len(rows))
	}

	var (
		events  []model.ExtremeEvent
		prev    float64
		hasPrev bool
	)
	for i, row := range rows {
		if !row.ReportDate.Equal(dates[i]) {
			return nil, fmt.Errorf("%w: row %d dated %s, axis %s", model.ErrMisalignedSeries,
				i, row.ReportDate.Format(time.DateOnly), dates[i].Format(time.DateOnly))
		}
		p, ok := row.Percentile.Get()
		if !ok {
			continue
		}

		emit := func(kind model.EventKind) {
			events = append(events, model.ExtremeEvent{
				MarketID:   marketID,
				ReportDate: dates[i],
				Kind:       kind,
				Percentile: p,
			})
		}

		if p <= d.Low() && (!hasPrev || prev > d.Low()) {
			emit(model.EventOversold)
		}
		if p >= d.High() && (!hasPrev || prev < d.High()) {
			emit(model.EventOverbought)
		}
		if hasPrev {
			if prev < Midline && p >= Midline {
				emit(model.EventBullCross)
			}
			if prev >= Midline && p < Midline {
				emit(model.EventBearCross)
			}
		}

		prev, hasPrev = p, true
	}
	return events, nil
}
