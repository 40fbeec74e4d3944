package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

type fakeSource struct {
	series map[string][]model.PositionRecord
	errs   map[string]error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(ctx context.Context, m model.Market, g model.TraderGroup) ([]model.PositionRecord, error) {
	if err := f.errs[m.ID]; err != nil {
		return nil, err
	}
	return f.series[m.ID], nil
}

type recordingRepo struct {
	mu      sync.Mutex
	saved   map[string]*model.MarketResult
	flushed []port.RunSummary
	failOn  string
}

func (r *recordingRepo) Name() string { return "recording" }

func (r *recordingRepo) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	if res.Market.ID == r.failOn {
		return errors.New("disk full")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saved == nil {
		r.saved = map[string]*model.MarketResult{}
	}
	r.saved[res.Market.ID] = res
	return nil
}

func (r *recordingRepo) Flush(ctx context.Context, run port.RunSummary) error {
	r.flushed = append(r.flushed, run)
	return nil
}

func (r *recordingRepo) Close() error { return nil }

type recordingSink struct {
	mu      sync.Mutex
	results int
	summary *port.RunSummary
}

func (s *recordingSink) WriteResult(res *model.MarketResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results++
	return nil
}

func (s *recordingSink) WriteSummary(run port.RunSummary) error {
	s.summary = &run
	return nil
}

func weekly(id string, nets ...int64) []model.PositionRecord {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]model.PositionRecord, len(nets))
	for i, n := range nets {
		long, short := n, int64(0)
		if n < 0 {
			long, short = 0, -n
		}
		out[i] = model.PositionRecord{MarketID: id, ReportDate: start.AddDate(0, 0, 7*i), Long: long, Short: short}
	}
	return out
}

var table = map[string]model.Market{
	"GC": {ID: "GC", Keyword: "GOLD"},
	"CL": {ID: "CL", Keyword: "CRUDE OIL"},
	"ES": {ID: "ES", Keyword: "E-MINI S&P 500"},
}

func TestNewServiceRejectsBadParameters(t *testing.T) {
	src := &fakeSource{}

	_, err := NewService(ServiceDeps{Source: src, Markets: table, Selected: []string{"GC"}, Window: 1, Extreme: 5})
	assert.ErrorIs(t, err, model.ErrInvalidWindow)

	_, err = NewService(ServiceDeps{Source: src, Markets: table, Selected: []string{"GC"}, Window: 3, Extreme: 50})
	assert.ErrorIs(t, err, model.ErrInvalidThreshold)

	_, err = NewService(ServiceDeps{Source: src, Markets: table, Selected: []string{" "}, Window: 3, Extreme: 5})
	assert.Error(t, err)
}

func TestRunIsolatesFailingMarkets(t *testing.T) {
	src := &fakeSource{
		series: map[string][]model.PositionRecord{
			"GC": weekly("GC", 10, 20, 15, -5, 30),
			"ES": weekly("ES", 1, 2, 3),
		},
		errs: map[string]error{"CL": errors.New("download failed")},
	}
	repo := &recordingRepo{}
	sink := &recordingSink{}

	svc, err := NewService(ServiceDeps{
		Source:   src,
		Repo:     repo,
		Sink:     sink,
		Markets:  table,
		Selected: []string{"gc", "CL", "ZZ", "GC", "ES"},
		Report:   model.ReportLegacy,
		Window:   3,
		Extreme:  5,
		Workers:  2,
	})
	require.NoError(t, err)

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Results, 2)
	assert.Equal(t, "GC", rep.Results[0].Market.ID)
	assert.Equal(t, "ES", rep.Results[1].Market.ID)
	assert.Len(t, rep.Results[0].Rows, 5)
	assert.Equal(t, model.GroupNonCommercial, rep.Results[0].Group)

	require.Len(t, rep.Failures, 2)
	assert.Equal(t, "CL", rep.Failures[0].MarketID)
	zz, ok := rep.Failure("ZZ")
	require.True(t, ok)
	assert.ErrorIs(t, zz, model.ErrUnknownMarket)

	runErr := rep.Err()
	assert.ErrorIs(t, runErr, model.ErrPartialFailure)
	assert.ErrorIs(t, runErr, model.ErrUnknownMarket)
	assert.NotErrorIs(t, runErr, model.ErrNoResults)

	assert.Len(t, repo.saved, 2)
	require.Len(t, repo.flushed, 1)
	assert.Equal(t, []string{"GC", "ES"}, repo.flushed[0].Succeeded)
	assert.Equal(t, "download failed", repo.flushed[0].Failed["CL"])
	assert.Equal(t, 2, sink.results)
	require.NotNil(t, sink.summary)
	assert.Equal(t, rep.RunID, sink.summary.RunID)
}

func TestRunExportFailureIsPerMarket(t *testing.T) {
	src := &fakeSource{series: map[string][]model.PositionRecord{
		"GC": weekly("GC", 1, 2, 3),
		"ES": weekly("ES", 3, 2, 1),
	}}
	repo := &recordingRepo{failOn: "ES"}

	svc, err := NewService(ServiceDeps{Source: src, Repo: repo, Markets: table,
		Selected: []string{"GC", "ES"}, Report: model.ReportTFF, Window: 2, Extreme: 10})
	require.NoError(t, err)

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Results, 1)
	f, ok := rep.Failure("ES")
	require.True(t, ok)
	assert.Contains(t, f.Error(), "disk full")
}

func TestRunEmptySeriesAndNoResults(t *testing.T) {
	src := &fakeSource{series: map[string][]model.PositionRecord{"GC": nil}}

	svc, err := NewService(ServiceDeps{Source: src, Markets: table, Selected: []string{"GC"},
		Report: model.ReportLegacy, Window: 3, Extreme: 5})
	require.NoError(t, err)

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rep.Results)
	assert.ErrorIs(t, rep.Err(), model.ErrNoResults)
	assert.ErrorIs(t, rep.Err(), model.ErrEmptySeries)
}

func TestRunAppliesPeriod(t *testing.T) {
	src := &fakeSource{series: map[string][]model.PositionRecord{"GC": weekly("GC", 1, 2, 3, 4, 5)}}

	svc, err := NewService(ServiceDeps{Source: src, Markets: table, Selected: []string{"GC"},
		Report: model.ReportLegacy, Window: 3, Extreme: 5,
		Start: time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 23, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, rep.Err())
	rows := rep.Results[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, int64(2), rows[0].Net)
	assert.Equal(t, int64(4), rows[2].Net)
}

func TestRunEventsMatchDetector(t *testing.T) {
	// Rising then collapsing net walks the percentile through both zones.
	src := &fakeSource{series: map[string][]model.PositionRecord{
		"GC": weekly("GC", 10, 20, 30, 40, 5, -10, -20),
	}}

	svc, err := NewService(ServiceDeps{Source: src, Markets: table, Selected: []string{"GC"},
		Report: model.ReportLegacy, Window: 4, Extreme: 15})
	require.NoError(t, err)

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)
	res := rep.Results[0]

	kinds := make([]model.EventKind, 0, len(res.Events))
	for _, ev := range res.Events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []model.EventKind{
		model.EventOverbought, model.EventOversold, model.EventBearCross,
	}, kinds)
}
