package file

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

const CSVFileName = "cot_data.csv"

var csvHeader = []string{
	"market", "report", "group", "date", "long", "short", "net",
	"cot_index", "percentile", "zscore", "window_len", "extreme_high", "extreme_low",
}

// CSVExporter writes every market's rows to <outdir>/cot_data.csv on Flush.
type CSVExporter struct {
	outDir string
	buf    buffer
}

func NewCSVExporter(outDir string) *CSVExporter {
	return &CSVExporter{outDir: outDir, buf: newBuffer()}
}

func (e *CSVExporter) Name() string { return "csv" }

func (e *CSVExporter) Path() string { return filepath.Join(e.outDir, CSVFileName) }

func (e *CSVExporter) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	e.buf.add(res)
	return nil
}

func (e *CSVExporter) Flush(ctx context.Context, run port.RunSummary) error {
	if err := ensureDir(e.outDir); err != nil {
		return err
	}
	f, err := os.Create(e.Path())
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	n := 0
	for _, res := range e.buf.ordered(run) {
		for _, row := range res.Rows {
			if err := w.Write(csvRecord(res, row)); err != nil {
				return err
			}
			n++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	log.Info().Str("path", e.Path()).Int("rows", n).Msg("csv exported")
	return f.Close()
}

func (e *CSVExporter) Close() error { return nil }

func csvRecord(res *model.MarketResult, row model.MetricRow) []string {
	return []string{
		res.Market.ID,
		string(res.Report),
		string(res.Group),
		row.ReportDate.Format("2006-01-02"),
		strconv.FormatInt(row.Long, 10),
		strconv.FormatInt(row.Short, 10),
		strconv.FormatInt(row.Net, 10),
		row.COTIndex.Format(4),
		row.Percentile.Format(4),
		row.ZScore.Format(4),
		strconv.Itoa(row.WindowLen),
		strconv.FormatBool(res.ExtremeHigh(row)),
		strconv.FormatBool(res.ExtremeLow(row)),
	}
}

var _ port.ResultRepository = (*CSVExporter)(nil)
