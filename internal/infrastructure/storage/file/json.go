package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

const (
	JSONFileName   = "cot_data.json"
	EventsFileName = "cot_events.json"
)

// jsonRecord is one row of cot_data.json.
type jsonRecord struct {
	Market      string            `json:"market"`
	Report      model.ReportType  `json:"report"`
	Group       model.TraderGroup `json:"group"`
	Date        string            `json:"date"`
	Long        int64             `json:"long"`
	Short       int64             `json:"short"`
	Net         int64             `json:"net"`
	COTIndex    model.Optional    `json:"cot_index"`
	Percentile  model.Optional    `json:"percentile"`
	ZScore      model.Optional    `json:"zscore"`
	WindowLen   int               `json:"window_len"`
	ExtremeHigh bool              `json:"extreme_high"`
	ExtremeLow  bool              `json:"extreme_low"`
}

type jsonEvent struct {
	Market     string          `json:"market"`
	Date       string          `json:"date"`
	Kind       model.EventKind `json:"kind"`
	Percentile float64         `json:"percentile"`
}

// JSONExporter writes <outdir>/cot_data.json and <outdir>/cot_events.json on Flush.
type JSONExporter struct {
	outDir string
	buf    buffer
}

func NewJSONExporter(outDir string) *JSONExporter {
	return &JSONExporter{outDir: outDir, buf: newBuffer()}
}

func (e *JSONExporter) Name() string { return "json" }

func (e *JSONExporter) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	e.buf.add(res)
	return nil
}

func (e *JSONExporter) Flush(ctx context.Context, run port.RunSummary) error {
	if err := ensureDir(e.outDir); err != nil {
		return err
	}

	records := []jsonRecord{}
	events := []jsonEvent{}
	for _, res := range e.buf.ordered(run) {
		for _, row := range res.Rows {
			records = append(records, jsonRecord{
				Market:      res.Market.ID,
				Report:      res.Report,
				Group:       res.Group,
				Date:        row.ReportDate.Format("2006-01-02"),
				Long:        row.Long,
				Short:       row.Short,
				Net:         row.Net,
				COTIndex:    row.COTIndex,
				Percentile:  row.Percentile,
				ZScore:      row.ZScore,
				WindowLen:   row.WindowLen,
				ExtremeHigh: res.ExtremeHigh(row),
				ExtremeLow:  res.ExtremeLow(row),
			})
		}
		for _, ev := range res.Events {
			events = append(events, jsonEvent{
				Market:     ev.MarketID,
				Date:       ev.ReportDate.Format("2006-01-02"),
				Kind:       ev.Kind,
				Percentile: ev.Percentile,
			})
		}
	}

	dataPath := filepath.Join(e.outDir, JSONFileName)
	if err := writeJSON(dataPath, records); err != nil {
		return err
	}
	eventsPath := filepath.Join(e.outDir, EventsFileName)
	if err := writeJSON(eventsPath, events); err != nil {
		return err
	}
	log.Info().Str("path", dataPath).Int("rows", len(records)).Int("events", len(events)).Msg("json exported")
	return nil
}

func (e *JSONExporter) Close() error { return nil }

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

var _ port.ResultRepository = (*JSONExporter)(nil)
