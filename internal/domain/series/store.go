package series

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cotscan/internal/domain/model"
)

// Store holds date-ordered position records per market.
// One record per (market, date); a later Put for the same key replaces the earlier one.
type Store struct {
	mu      sync.RWMutex
	markets map[string][]model.PositionRecord
}

func NewStore() *Store {
	return &Store{markets: make(map[string][]model.PositionRecord)}
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Put validates and inserts records, keeping each market sorted by date.
// Nothing is stored if any record is invalid.
func (s *Store) Put(records ...model.PositionRecord) error {
	for i := range records {
		if err := validate(records[i]); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	touched := map[string]struct{}{}
	for _, r := range records {
		r.MarketID = normalizeID(r.MarketID)
		r.ReportDate = day(r.ReportDate)
		s.markets[r.MarketID] = upsert(s.markets[r.MarketID], r)
		touched[r.MarketID] = struct{}{}
	}
	for id := range touched {
		sort.SliceStable(s.markets[id], func(i, j int) bool {
			return s.markets[id][i].ReportDate.Before(s.markets[id][j].ReportDate)
		})
	}
	return nil
}

func validate(r model.PositionRecord) error {
	switch {
	case normalizeID(r.MarketID) == "":
		return fmt.Errorf("%w: empty market id", model.ErrInvalidRecord)
	case r.ReportDate.IsZero():
		return fmt.Errorf("%w: %s: zero report date", model.ErrInvalidRecord, r.MarketID)
	case r.Long < 0 || r.Short < 0:
		return fmt.Errorf("%w: %s %s: negative position (long=%d short=%d)",
			model.ErrInvalidRecord, r.MarketID, r.ReportDate.Format(time.DateOnly), r.Long, r.Short)
	}
	return nil
}

// upsert replaces the record with the same date or appends.
func upsert(recs []model.PositionRecord, r model.PositionRecord) []model.PositionRecord {
	for i := range recs {
		if recs[i].ReportDate.Equal(r.ReportDate) {
			recs[i] = r
			return recs
		}
	}
	return append(recs, r)
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Series returns a copy of the ordered records for a market.
func (s *Store) Series(marketID string) []model.PositionRecord {
	return s.Between(marketID, time.Time{}, time.Time{})
}

// Between returns records with start <= date <= end. A zero bound is open.
func (s *Store) Between(marketID string, start, end time.Time) []model.PositionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.markets[normalizeID(marketID)]
	out := make([]model.PositionRecord, 0, len(recs))
	for _, r := range recs {
		if !start.IsZero() && r.ReportDate.Before(day(start)) {
			continue
		}
		if !end.IsZero() && r.ReportDate.After(day(end)) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *Store) Len(marketID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markets[normalizeID(marketID)])
}

// Markets returns the stored market ids, sorted.
func (s *Store) Markets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.markets))
	for id := range s.markets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Reset drops everything stored for a market.
func (s *Store) Reset(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.markets, normalizeID(marketID))
}
