package cftc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"cotscan/internal/domain/model"
)

// Row is one parsed line of a CFTC report for one trader group.
type Row struct {
	Name         string
	ContractCode string
	Date         time.Time
	OpenInterest int64
	Long         int64
	Short        int64
}

// Parse reads a comma-delimited CFTC report and returns the lines whose market
// name contains keyword (case-insensitive). Lines without a valid date are
// skipped, which also drops header lines.
func Parse(r io.Reader, rt model.ReportType, g model.TraderGroup, keyword string) ([]Row, error) {
	cols, ok := layoutFor(rt, g)
	if !ok {
		return nil, fmt.Errorf("group %s not published in %s report", g, rt)
	}
	needle := strings.ToUpper(strings.TrimSpace(keyword))
	if needle == "" {
		return nil, errors.New("empty market keyword")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var (
		out     []Row
		skipped int
	)
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if len(rec) == 0 || !strings.Contains(strings.ToUpper(rec[colName]), needle) {
			continue
		}
		row, err := parseRow(rec, cols)
		if err != nil {
			skipped++
			log.Debug().Err(err).Int("line", line).Str("keyword", needle).Msg("skip cftc line")
			continue
		}
		out = append(out, row)
	}
	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Str("keyword", needle).Msg("cftc lines skipped")
	}
	return out, nil
}

func parseRow(rec []string, cols columns) (Row, error) {
	need := max(cols.long, cols.short, colOpenInterest, colContractCode) + 1
	if len(rec) < need {
		return Row{}, fmt.Errorf("short line: %d fields, want %d", len(rec), need)
	}
	date, err := parseDate(rec)
	if err != nil {
		return Row{}, err
	}
	row := Row{
		Name:         strings.TrimSpace(rec[colName]),
		ContractCode: strings.TrimSpace(rec[colContractCode]),
		Date:         date,
	}
	if row.OpenInterest, err = parseCount(rec[colOpenInterest]); err != nil {
		return Row{}, fmt.Errorf("open interest: %w", err)
	}
	if row.Long, err = parseCount(rec[cols.long]); err != nil {
		return Row{}, fmt.Errorf("long: %w", err)
	}
	if row.Short, err = parseCount(rec[cols.short]); err != nil {
		return Row{}, fmt.Errorf("short: %w", err)
	}
	return row, nil
}

func parseDate(rec []string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, strings.TrimSpace(rec[colDateISO])); err == nil {
		return t, nil
	}
	t, err := time.Parse("060102", strings.TrimSpace(rec[colDateYYMMDD]))
	if err != nil {
		return time.Time{}, fmt.Errorf("report date: %w", err)
	}
	return t, nil
}

func parseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == "." {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// Records picks one contract among the matched rows and converts it to
// position records for market id. When a keyword matches several contracts
// (e.g. GOLD and MICRO GOLD) the one with most reports wins, then the one
// with the larger latest open interest.
func Records(marketID string, rows []Row) []model.PositionRecord {
	if len(rows) == 0 {
		return nil
	}

	type group struct {
		rows   []Row
		lastOI int64
		last   time.Time
	}
	groups := map[string]*group{}
	order := []string{}
	for _, r := range rows {
		g := groups[r.ContractCode]
		if g == nil {
			g = &group{}
			groups[r.ContractCode] = g
			order = append(order, r.ContractCode)
		}
		g.rows = append(g.rows, r)
		if !r.Date.Before(g.last) {
			g.last, g.lastOI = r.Date, r.OpenInterest
		}
	}

	best := order[0]
	for _, code := range order[1:] {
		g, b := groups[code], groups[best]
		if len(g.rows) > len(b.rows) || (len(g.rows) == len(b.rows) && g.lastOI > b.lastOI) {
			best = code
		}
	}
	if len(order) > 1 {
		log.Debug().
			Str("market", marketID).
			Int("contracts", len(order)).
			Str("picked", groups[best].rows[0].Name).
			Msg("keyword matched several contracts")
	}

	out := make([]model.PositionRecord, 0, len(groups[best].rows))
	for _, r := range groups[best].rows {
		out = append(out, model.PositionRecord{
			MarketID:   marketID,
			ReportDate: r.Date,
			Long:       r.Long,
			Short:      r.Short,
		})
	}
	return out
}
