package svc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotscan/internal/application/usecase/analysis"
	"cotscan/internal/domain/model"
	"cotscan/internal/infrastructure/config"
)

// Legacy layout: name, yymmdd, date, contract code, market code, region,
// commodity code, open interest, noncommercial long, noncommercial short.
const legacyGold = `"GOLD - COMMODITY EXCHANGE INC.",240102,2024-01-02,088691,CMX ,01,088 ,500000,100000,40000
"GOLD - COMMODITY EXCHANGE INC.",240109,2024-01-09,088691,CMX ,01,088 ,510000,120000,40000
"GOLD - COMMODITY EXCHANGE INC.",240116,2024-01-16,088691,CMX ,01,088 ,505000,90000,45000
"GOLD - COMMODITY EXCHANGE INC.",240123,2024-01-23,088691,CMX ,01,088 ,520000,150000,30000
"EURO FX - CHICAGO MERCANTILE EXCHANGE",240123,2024-01-23,099741,CME ,01,099 ,700000,200000,100000
`

func testConfig(t *testing.T, url string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.App.Quiet = true
	cfg.Analysis.Markets = []string{"gc", "ZZ"}
	cfg.Analysis.Window = 3
	cfg.Analysis.Workers = 2
	cfg.Report.Type = "legacy"
	cfg.Report.URLs = map[string]string{"legacy": url}
	cfg.Report.CacheDir = filepath.Join(dir, "cache")
	cfg.Export.OutDir = filepath.Join(dir, "out")
	cfg.Export.Formats = []string{"csv", "json", "sqlite"}
	cfg.Metrics.Textfile = filepath.Join(dir, "cotscan.prom")
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestServiceContextEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(legacyGold))
	}))
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	sc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer sc.Close()

	assert.Equal(t, "csv+json+sqlite", sc.Repo().Name())
	assert.Equal(t, "cftc:legacy", sc.Source().Name())

	svc, err := analysis.NewService(sc.BuildAnalysisServiceDeps())
	require.NoError(t, err)

	rep, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Results, 1)
	gc := rep.Results[0]
	assert.Equal(t, model.GroupNonCommercial, gc.Group)
	require.Len(t, gc.Rows, 4)
	assert.Equal(t, int64(120000), gc.Rows[3].Net)

	zz, ok := rep.Failure("ZZ")
	require.True(t, ok)
	assert.ErrorIs(t, zz, model.ErrUnknownMarket)
	assert.ErrorIs(t, rep.Err(), model.ErrPartialFailure)

	assert.Equal(t, int32(1), hits.Load())
	assert.FileExists(t, filepath.Join(cfg.Report.CacheDir, "legacy.txt"))
	assert.FileExists(t, filepath.Join(cfg.Export.OutDir, "cot_data.csv"))
	assert.FileExists(t, filepath.Join(cfg.Export.OutDir, "cot_data.json"))
	assert.FileExists(t, filepath.Join(cfg.Export.OutDir, "cot_events.json"))
	assert.FileExists(t, cfg.Storage.SQLite.Path)

	require.NoError(t, sc.WriteMetrics())
	b, err := os.ReadFile(cfg.Metrics.Textfile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(b), `cotscan_markets_failed_total{report="legacy"} 1`))
}

func TestServiceContextWithoutFormatsUsesNoopRepo(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Export.Formats = []string{}

	sc, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer sc.Close()

	deps := sc.BuildAnalysisServiceDeps()
	assert.Equal(t, "none", deps.Repo.Name())
	assert.Equal(t, []string{"GC", "ZZ"}, deps.Selected)
}

func TestServiceContextRedisUnavailable(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:0")
	cfg.Export.Formats = []string{"redis"}
	cfg.Storage.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}
