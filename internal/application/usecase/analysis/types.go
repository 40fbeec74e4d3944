package analysis

import (
	"errors"
	"time"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

// Recorder receives run metrics. *metrics.Run implements it.
type Recorder interface {
	MarketProcessed(rt model.ReportType, res *model.MarketResult)
	MarketFailed(rt model.ReportType)
	Observe(stage string, start time.Time)
	Finished(at time.Time)
}

type nopRecorder struct{}

func (nopRecorder) MarketProcessed(model.ReportType, *model.MarketResult) {}
func (nopRecorder) MarketFailed(model.ReportType)                         {}
func (nopRecorder) Observe(string, time.Time)                             {}
func (nopRecorder) Finished(time.Time)                                    {}

// Report is the outcome of one run: a result or a failure per requested market.
type Report struct {
	RunID      string
	Report     model.ReportType
	Group      model.TraderGroup
	Window     int
	Extreme    float64
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []*model.MarketResult
	Failures   []*model.MarketFailed
}

// Err is nil when every market succeeded. Otherwise it wraps ErrNoResults
// (nothing succeeded) or ErrPartialFailure, joined with each failure.
func (r *Report) Err() error {
	if len(r.Failures) == 0 && len(r.Results) > 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures)+1)
	if len(r.Results) == 0 {
		errs = append(errs, model.ErrNoResults)
	} else {
		errs = append(errs, model.ErrPartialFailure)
	}
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Failure returns the failure recorded for a market, if any.
func (r *Report) Failure(marketID string) (*model.MarketFailed, bool) {
	for _, f := range r.Failures {
		if f.MarketID == marketID {
			return f, true
		}
	}
	return nil, false
}

// Result returns the result recorded for a market, if any.
func (r *Report) Result(marketID string) (*model.MarketResult, bool) {
	for _, res := range r.Results {
		if res.Market.ID == marketID {
			return res, true
		}
	}
	return nil, false
}

func (r *Report) Summary() port.RunSummary {
	s := port.RunSummary{
		RunID:      r.RunID,
		Report:     r.Report,
		Group:      r.Group,
		Window:     r.Window,
		Extreme:    r.Extreme,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Failed:     make(map[string]string, len(r.Failures)),
	}
	for _, res := range r.Results {
		s.Succeeded = append(s.Succeeded, res.Market.ID)
	}
	for _, f := range r.Failures {
		s.Failed[f.MarketID] = f.Cause.Error()
	}
	return s
}
