package service

import (
	"fmt"

	"cotscan/internal/domain/model"
)

// MinWindow is the smallest usable trailing window.
const MinWindow = 2

// MetricsEngine derives Net, COT Index, Percentile and Z-score over a trailing window.
// It holds no state between calls and is safe for concurrent use.
type MetricsEngine struct {
	window int
}

func NewMetricsEngine(window int) (*MetricsEngine, error) {
	if window < MinWindow {
		return nil, fmt.Errorf("%w: got %d", model.ErrInvalidWindow, window)
	}
	return &MetricsEngine{window: window}, nil
}

func (e *MetricsEngine) Window() int { return e.window }

// Compute maps an ordered series to an aligned slice of MetricRow.
// Rows before the window fills use all history available so far.
func (e *MetricsEngine) Compute(records []model.PositionRecord) ([]model.MetricRow, error) {
	if len(records) == 0 {
		return nil, model.ErrEmptySeries
	}

	nets := make([]int64, len(records))
	for i, r := range records {
		nets[i] = r.Net()
	}

	w := newRollingWindow(e.window, nets)
	rows := make([]model.MetricRow, len(records))
	for i, r := range records {
		w.advance()
		rows[i] = model.MetricRow{
			MarketID:   r.MarketID,
			ReportDate: r.ReportDate,
			Long:       r.Long,
			Short:      r.Short,
			Net:        nets[i],
			COTIndex:   cotIndex(nets[i], w.min(), w.max()),
			Percentile: percentile(w, i),
			ZScore:     zScore(w, nets[i]),
			WindowLen:  w.len(),
		}
	}
	return rows, nil
}

func cotIndex(net, lo, hi int64) model.Optional {
	if hi <= lo {
		return model.None()
	}
	return model.Some(100 * float64(net-lo) / float64(hi-lo))
}

// percentile is the mid-rank: values below count fully, ties count half.
func percentile(w *rollingWindow, i int) model.Optional {
	n := w.len()
	if n == 0 {
		return model.None()
	}
	less, equal := w.rankOf(i)
	return model.Some(100 * (float64(less) + 0.5*float64(equal)) / float64(n))
}

func zScore(w *rollingWindow, net int64) model.Optional {
	if w.len() < 2 || w.max() == w.min() {
		return model.None()
	}
	sd := w.sampleStdDev()
	if sd == 0 {
		return model.None()
	}
	return model.Some((float64(net) - w.mean()) / sd)
}
