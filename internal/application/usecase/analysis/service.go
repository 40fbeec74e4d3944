package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
	dsvc "cotscan/internal/domain/service"
)

const defaultWorkers = 4

type ServiceDeps struct {
	Source  port.PositionSource
	Repo    port.ResultRepository
	Sink    port.Sink
	Metrics Recorder

	// Markets is the alias table, keyed by upper-case id.
	Markets  map[string]model.Market
	Selected []string

	Report  model.ReportType
	Group   model.TraderGroup
	Window  int
	Extreme float64
	Workers int

	// Optional inclusive date range; zero bounds are open.
	Start time.Time
	End   time.Time
}

type Service struct {
	deps     ServiceDeps
	engine   *dsvc.MetricsEngine
	detector *dsvc.ExtremesDetector
	selected []string
}

// NewService checks the parameters before any market is touched.
func NewService(deps ServiceDeps) (*Service, error) {
	engine, err := dsvc.NewMetricsEngine(deps.Window)
	if err != nil {
		return nil, err
	}
	detector, err := dsvc.NewExtremesDetector(deps.Extreme)
	if err != nil {
		return nil, err
	}
	if deps.Source == nil {
		return nil, errors.New("analysis: no position source")
	}
	if deps.Group == "" {
		deps.Group = deps.Report.DefaultGroup()
	}
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	if deps.Sink == nil {
		deps.Sink = NewNoopSink()
	}
	if deps.Metrics == nil {
		deps.Metrics = nopRecorder{}
	}
	if deps.Workers <= 0 {
		deps.Workers = defaultWorkers
	}

	selected := dedupe(deps.Selected)
	if len(selected) == 0 {
		return nil, errors.New("analysis: no markets selected")
	}
	return &Service{deps: deps, engine: engine, detector: detector, selected: selected}, nil
}

// Run analyses every selected market. A market's failure is recorded in the
// report and does not stop the others; only contract violations abort the run.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	rep := &Report{
		RunID:     uuid.NewString(),
		Report:    s.deps.Report,
		Group:     s.deps.Group,
		Window:    s.engine.Window(),
		Extreme:   s.detector.Threshold(),
		StartedAt: time.Now(),
	}
	logger := log.With().Str("run", rep.RunID).Logger()
	logger.Info().
		Strs("markets", s.selected).
		Str("source", s.deps.Source.Name()).
		Str("export", s.deps.Repo.Name()).
		Int("window", rep.Window).
		Float64("extremes", rep.Extreme).
		Msg("analysis started")

	results := make([]*model.MarketResult, len(s.selected))
	failures := make([]*model.MarketFailed, len(s.selected))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.Workers)
	for i, id := range s.selected {
		g.Go(func() error {
			res, err := s.analyse(gctx, rep.RunID, id)
			if errors.Is(err, model.ErrMisalignedSeries) {
				return fmt.Errorf("market %s: %w", id, err)
			}
			if err != nil {
				failures[i] = &model.MarketFailed{MarketID: id, Cause: err}
				s.deps.Metrics.MarketFailed(s.deps.Report)
				logger.Warn().Err(err).Str("market", id).Msg("market failed")
				return nil
			}
			results[i] = res
			s.deps.Metrics.MarketProcessed(s.deps.Report, res)
			if err := s.deps.Sink.WriteResult(res); err != nil {
				logger.Warn().Err(err).Str("market", id).Msg("render failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := range s.selected {
		if results[i] != nil {
			rep.Results = append(rep.Results, results[i])
		}
		if failures[i] != nil {
			rep.Failures = append(rep.Failures, failures[i])
		}
	}
	rep.FinishedAt = time.Now()
	s.deps.Metrics.Finished(rep.FinishedAt)

	summary := rep.Summary()
	if err := s.deps.Repo.Flush(ctx, summary); err != nil {
		return rep, fmt.Errorf("flush %s: %w", s.deps.Repo.Name(), err)
	}
	if err := s.deps.Sink.WriteSummary(summary); err != nil {
		logger.Warn().Err(err).Msg("render summary failed")
	}

	logger.Info().
		Int("ok", len(rep.Results)).
		Int("failed", len(rep.Failures)).
		Dur("took", rep.FinishedAt.Sub(rep.StartedAt)).
		Msg("analysis finished")
	return rep, nil
}

func (s *Service) analyse(ctx context.Context, runID, id string) (*model.MarketResult, error) {
	market, ok := s.deps.Markets[id]
	if !ok {
		return nil, model.ErrUnknownMarket
	}

	start := time.Now()
	records, err := s.deps.Source.Fetch(ctx, market, s.deps.Group)
	s.deps.Metrics.Observe("fetch", start)
	if err != nil {
		return nil, err
	}
	records = filterPeriod(records, s.deps.Start, s.deps.End)

	start = time.Now()
	rows, err := s.engine.Compute(records)
	s.deps.Metrics.Observe("compute", start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	events, err := s.detector.Detect(market.ID, model.Dates(rows), rows)
	s.deps.Metrics.Observe("detect", start)
	if err != nil {
		return nil, err
	}

	res := &model.MarketResult{
		Market:    market,
		Report:    s.deps.Report,
		Group:     s.deps.Group,
		Window:    s.engine.Window(),
		Threshold: s.detector.Threshold(),
		Rows:      rows,
		Events:    events,
	}

	start = time.Now()
	err = s.deps.Repo.SaveResult(ctx, runID, res)
	s.deps.Metrics.Observe("export", start)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", s.deps.Repo.Name(), err)
	}
	return res, nil
}

func filterPeriod(recs []model.PositionRecord, start, end time.Time) []model.PositionRecord {
	if start.IsZero() && end.IsZero() {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if !start.IsZero() && r.ReportDate.Before(start) {
			continue
		}
		if !end.IsZero() && r.ReportDate.After(end) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		u := strings.ToUpper(strings.TrimSpace(id))
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		out = append(out, u)
	}
	return out
}
