package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cotscan/internal/domain/model"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadTOML(t *testing.T) {
	p := writeFile(t, "config.toml", `
[analysis]
window = 52
markets = [" gc", "EUR", "gc"]
start = "2020-01-01"

[report]
type = "TFF"

[export]
formats = ["CSV", "sqlite"]
outdir = "/tmp/out"

[[markets]]
id = "gc"
keyword = "GOLD"
`)
	cfg, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 52, cfg.Analysis.Window)
	assert.Equal(t, 5.0, cfg.Analysis.Extremes)
	assert.Equal(t, 4, cfg.Analysis.Workers)
	assert.Equal(t, []string{"GC", "EUR"}, cfg.Analysis.Markets)
	assert.Equal(t, model.ReportTFF, cfg.ReportType())
	assert.Equal(t, model.GroupLeveragedFunds, cfg.TraderGroup())
	assert.Equal(t, []string{"csv", "sqlite"}, cfg.Export.Formats)
	assert.Equal(t, filepath.Join("/tmp/out", "cot.db"), cfg.Storage.SQLite.Path)
	assert.Equal(t, "./cot_cache", cfg.Report.CacheDir)

	start, end := cfg.Period()
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.True(t, end.IsZero())

	require.Len(t, cfg.Markets, 1)
	assert.Equal(t, "GC", cfg.Markets[0].ID)
	_, ok := cfg.MarketTable()["EUR"]
	assert.False(t, ok, "explicit table replaces the defaults")
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", `
analysis:
  window: 26
  extremes: 10
  markets: [ES]
report:
  type: legacy
  group: commercial
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 26, cfg.Analysis.Window)
	assert.Equal(t, 10.0, cfg.Analysis.Extremes)
	assert.Equal(t, model.GroupCommercial, cfg.TraderGroup())
	assert.Len(t, cfg.Markets, len(model.DefaultMarkets()))
	assert.Equal(t, []string{FormatCSV}, cfg.Export.Formats)
}

func TestExplicitZeroSurvivesDefaults(t *testing.T) {
	files := map[string]string{
		"config.toml": "[analysis]\nextremes = 0\nmarkets = [\"GC\"]\n",
		"config.yaml": "analysis:\n  extremes: 0\n  markets: [GC]\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(writeFile(t, name, body))
			require.NoError(t, err)
			assert.Equal(t, 0.0, cfg.Analysis.Extremes)
			assert.Equal(t, 156, cfg.Analysis.Window)
		})
	}
}

func TestExplicitZeroWindowIsRejected(t *testing.T) {
	files := map[string]string{
		"config.toml": "[analysis]\nwindow = 0\nmarkets = [\"GC\"]\n",
		"config.yml":  "analysis:\n  window: 0\n  markets: [GC]\n",
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, name, body))
			assert.ErrorIs(t, err, model.ErrInvalidWindow)
		})
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *Config){
		"window":      func(c *Config) { c.Analysis.Window = 1 },
		"extremes":    func(c *Config) { c.Analysis.Extremes = 50 },
		"no markets":  func(c *Config) { c.Analysis.Markets = nil },
		"report type": func(c *Config) { c.Report.Type = "weekly" },
		"group":       func(c *Config) { c.Report.Group = "managed_money"; c.Report.Type = "legacy" },
		"format":      func(c *Config) { c.Export.Formats = []string{"xlsx"} },
		"start":       func(c *Config) { c.Analysis.Start = "01/02/2020" },
		"range":       func(c *Config) { c.Analysis.Start = "2021-01-01"; c.Analysis.End = "2020-01-01" },
		"postgres":    func(c *Config) { c.Export.Formats = []string{"postgres"} },
		"workers":     func(c *Config) { c.Analysis.Workers = 0 },
		"log format":  func(c *Config) { c.App.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Analysis.Markets = []string{"GC"}
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateWindowIsTyped(t *testing.T) {
	cfg := Default()
	cfg.Analysis.Markets = []string{"GC"}
	cfg.Analysis.Window = 0
	assert.ErrorIs(t, cfg.Validate(), model.ErrInvalidWindow)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COTSCAN_OUTDIR", "/data/out")
	t.Setenv("COTSCAN_POSTGRES_DSN", "postgres://x")

	cfg, err := Read("")
	require.NoError(t, err)
	assert.Equal(t, "/data/out", cfg.Export.OutDir)
	assert.Equal(t, "postgres://x", cfg.Storage.Postgres.DSN)
}

func TestRepoConfigFileLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.toml"))
	require.NoError(t, err)
	assert.Equal(t, model.ReportDisaggregated, cfg.ReportType())
	assert.Len(t, cfg.Markets, 5)
}
