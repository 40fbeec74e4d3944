package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

func d(day int) time.Time { return time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC) }

func TestWriteResultPlain(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSinkTo(&buf, false)

	res := &model.MarketResult{
		Market:    model.Market{ID: "GC", Display: "Gold"},
		Threshold: 5,
		Rows: []model.MetricRow{
			{ReportDate: d(2), Net: 100, Percentile: model.Some(50)},
			{ReportDate: d(9), Net: -1200, COTIndex: model.Some(0), Percentile: model.Some(4.5), ZScore: model.Some(-1.234)},
		},
		Events: []model.ExtremeEvent{
			{ReportDate: d(2), Kind: model.EventBullCross, Percentile: 60},
			{ReportDate: d(3), Kind: model.EventOverbought, Percentile: 96},
			{ReportDate: d(4), Kind: model.EventBearCross, Percentile: 40},
			{ReportDate: d(9), Kind: model.EventOversold, Percentile: 4.5},
		},
	}
	require.NoError(t, sink.WriteResult(res))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "[COT] GC (Gold) 2024-01-09 net=-1200 idx=0.0 pct=4.5 z=-1.23 EXTREME LOW", lines[0])
	assert.Contains(t, lines[1], "OVERBOUGHT")
	assert.Contains(t, lines[3], "OVERSOLD")
	assert.NotContains(t, buf.String(), "\033[")
}

func TestWriteResultAbsentValues(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSinkTo(&buf, false)

	res := &model.MarketResult{
		Market: model.Market{ID: "ES"},
		Rows:   []model.MetricRow{{ReportDate: d(2), Net: 5, Percentile: model.Some(50)}},
	}
	require.NoError(t, sink.WriteResult(res))
	assert.Equal(t, "[COT] ES 2024-01-02 net=+5 idx=-- pct=50.0 z=--\n", buf.String())
}

func TestWriteSummaryListsFailures(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSinkTo(&buf, true)

	require.NoError(t, sink.WriteSummary(port.RunSummary{
		Report:    model.ReportLegacy,
		Group:     model.GroupNonCommercial,
		Window:    156,
		Extreme:   5,
		Succeeded: []string{"GC"},
		Failed:    map[string]string{"ZZ": "unknown market"},
	}))
	out := buf.String()
	assert.Contains(t, out, "window=156")
	assert.Contains(t, out, ansiRed+"1"+ansiReset)
	assert.Contains(t, out, "unknown market")
}
