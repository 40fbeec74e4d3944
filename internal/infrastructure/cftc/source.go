package cftc

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"cotscan/internal/domain/model"
	"cotscan/internal/domain/series"
)

// Fetcher returns the raw report file for a report type.
type Fetcher interface {
	Fetch(ctx context.Context, rt model.ReportType) ([]byte, error)
}

// Source implements port.PositionSource over one CFTC report type. The report
// file is fetched once per Source even when markets are requested concurrently.
type Source struct {
	fetcher    Fetcher
	report     model.ReportType
	store      *series.Store
	start, end time.Time

	sf  singleflight.Group
	mu  sync.Mutex
	raw []byte
}

type SourceOptions struct {
	Report model.ReportType
	Start  time.Time
	End    time.Time
	Store  *series.Store
}

func NewSource(f Fetcher, opts SourceOptions) *Source {
	st := opts.Store
	if st == nil {
		st = series.NewStore()
	}
	return &Source{
		fetcher: f,
		report:  opts.Report,
		store:   st,
		start:   opts.Start,
		end:     opts.End,
	}
}

func (s *Source) Name() string { return "cftc:" + string(s.report) }

// Store exposes the records loaded so far.
func (s *Source) Store() *series.Store { return s.store }

func (s *Source) load(ctx context.Context) ([]byte, error) {
	v, err, _ := s.sf.Do("raw", func() (interface{}, error) {
		s.mu.Lock()
		cached := s.raw
		s.mu.Unlock()
		if cached != nil {
			return cached, nil
		}

		b, err := s.fetcher.Fetch(ctx, s.report)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.raw = b
		s.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Source) Fetch(ctx context.Context, market model.Market, group model.TraderGroup) ([]model.PositionRecord, error) {
	raw, err := s.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s report: %w", s.report, err)
	}

	rows, err := Parse(bytes.NewReader(raw), s.report, group, market.Keyword)
	if err != nil {
		return nil, fmt.Errorf("parse %s report: %w", s.report, err)
	}
	recs := Records(market.ID, rows)
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s (keyword %q)", model.ErrNoMarketData, market.ID, market.Keyword)
	}

	s.store.Reset(market.ID)
	if err := s.store.Put(recs...); err != nil {
		return nil, err
	}
	out := s.store.Between(market.ID, s.start, s.end)

	log.Info().
		Str("market", market.ID).
		Int("rows", len(out)).
		Int("parsed", len(recs)).
		Msg("series loaded")
	return out, nil
}
