package cftc

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotscan/internal/domain/model"
)

type fakeFetcher struct {
	calls int32
	body  string
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, rt model.ReportType) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	time.Sleep(5 * time.Millisecond)
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

var gold = model.Market{ID: "GC", Keyword: "GOLD"}

func TestSourceFetch(t *testing.T) {
	f := &fakeFetcher{body: disaggSample}
	src := NewSource(f, SourceOptions{Report: model.ReportDisaggregated})

	recs, err := src.Fetch(context.Background(), gold, model.GroupManagedMoney)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, 3, src.Store().Len("GC"))
	assert.Equal(t, "cftc:disaggregated", src.Name())
}

func TestSourceFetchesReportOnce(t *testing.T) {
	f := &fakeFetcher{body: disaggSample}
	src := NewSource(f, SourceOptions{Report: model.ReportDisaggregated})

	var wg sync.WaitGroup
	for _, m := range []model.Market{gold, {ID: "SI", Keyword: "SILVER"}, gold} {
		wg.Add(1)
		go func(m model.Market) {
			defer wg.Done()
			_, err := src.Fetch(context.Background(), m, model.GroupManagedMoney)
			assert.NoError(t, err)
		}(m)
	}
	wg.Wait()
	_, _ = src.Fetch(context.Background(), gold, model.GroupManagedMoney)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.calls))
}

func TestSourcePeriodFilter(t *testing.T) {
	f := &fakeFetcher{body: disaggSample}
	src := NewSource(f, SourceOptions{
		Report: model.ReportDisaggregated,
		Start:  time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
	})
	recs, err := src.Fetch(context.Background(), gold, model.GroupManagedMoney)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSourceErrors(t *testing.T) {
	src := NewSource(&fakeFetcher{body: disaggSample}, SourceOptions{Report: model.ReportDisaggregated})
	_, err := src.Fetch(context.Background(), model.Market{ID: "ZZ", Keyword: "PLATINUM"}, model.GroupManagedMoney)
	assert.ErrorIs(t, err, model.ErrNoMarketData)

	boom := errors.New("boom")
	src = NewSource(&fakeFetcher{err: boom}, SourceOptions{Report: model.ReportDisaggregated})
	_, err = src.Fetch(context.Background(), gold, model.GroupManagedMoney)
	assert.ErrorIs(t, err, boom)
}
