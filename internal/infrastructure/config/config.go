package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"cotscan/internal/domain/model"
)

const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatSQLite   = "sqlite"
	FormatPostgres = "postgres"
	FormatRedis    = "redis"
)

type Config struct {
	App struct {
		Verbose   bool   `toml:"verbose" yaml:"verbose"`
		LogFormat string `toml:"log_format" yaml:"log_format" default:"console" validate:"oneof=console json"`
		Quiet     bool   `toml:"quiet" yaml:"quiet"`
	} `toml:"app" yaml:"app"`

	Analysis struct {
		Window   int      `toml:"window" yaml:"window" default:"156"`
		Extremes float64  `toml:"extremes" yaml:"extremes" default:"5"`
		Workers  int      `toml:"workers" yaml:"workers" default:"4" validate:"min=1,max=64"`
		Markets  []string `toml:"markets" yaml:"markets"`
		Start    string   `toml:"start" yaml:"start"`
		End      string   `toml:"end" yaml:"end"`
	} `toml:"analysis" yaml:"analysis"`

	Report struct {
		Type          string            `toml:"type" yaml:"type" default:"disaggregated"`
		Group         string            `toml:"group" yaml:"group"`
		CacheDir      string            `toml:"cache_dir" yaml:"cache_dir" default:"./cot_cache"`
		ForceDownload bool              `toml:"force_download" yaml:"force_download"`
		URLs          map[string]string `toml:"urls" yaml:"urls"`
	} `toml:"report" yaml:"report"`

	HTTP struct {
		TimeoutSeconds int     `toml:"timeout_seconds" yaml:"timeout_seconds" default:"60" validate:"min=1"`
		RatePerSecond  float64 `toml:"rate_per_second" yaml:"rate_per_second" default:"1" validate:"gt=0"`
		Burst          int     `toml:"burst" yaml:"burst" default:"2" validate:"min=1"`
		UserAgent      string  `toml:"user_agent" yaml:"user_agent" default:"cotscan/1.0"`
	} `toml:"http" yaml:"http"`

	Markets []model.Market `toml:"markets" yaml:"markets" validate:"dive"`

	Export struct {
		Formats []string `toml:"formats" yaml:"formats" validate:"dive,oneof=csv json sqlite postgres redis"`
		OutDir  string   `toml:"outdir" yaml:"outdir" default:"./cot_out"`
	} `toml:"export" yaml:"export"`

	Storage struct {
		SQLite struct {
			Path string `toml:"path" yaml:"path"`
		} `toml:"sqlite" yaml:"sqlite"`

		Postgres struct {
			DSN string `toml:"dsn" yaml:"dsn"`
		} `toml:"postgres" yaml:"postgres"`

		Redis struct {
			Addr          string `toml:"addr" yaml:"addr" default:"127.0.0.1:6379"`
			Password      string `toml:"password" yaml:"password"`
			DB            int    `toml:"db" yaml:"db"`
			Prefix        string `toml:"prefix" yaml:"prefix" default:"cot"`
			TTLSeconds    int    `toml:"ttl_seconds" yaml:"ttl_seconds" default:"86400"`
			SignalStream  string `toml:"signal_stream" yaml:"signal_stream"`
			SignalChannel string `toml:"signal_channel" yaml:"signal_channel"`
			CacheRaw      bool   `toml:"cache_raw" yaml:"cache_raw"`
		} `toml:"redis" yaml:"redis"`
	} `toml:"storage" yaml:"storage"`

	Metrics struct {
		Textfile string `toml:"textfile" yaml:"textfile"`
	} `toml:"metrics" yaml:"metrics"`

	start, end time.Time
}

// Default returns a config with every default applied, as if loaded from an empty file.
func Default() *Config {
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// Load reads path (see Read) and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read decodes a TOML (or .yaml/.yml) file, applies defaults and COTSCAN_*
// environment overrides (after reading .env if present). It does not validate,
// so callers can layer command-line flags on top first. An empty path means defaults only.
func Read(path string) (*Config, error) {
	var (
		cfg Config
		set explicitKeys
	)
	if strings.TrimSpace(path) != "" {
		var err error
		if set, err = decodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	set.restore(&cfg)

	_ = godotenv.Load()
	applyEnv(&cfg)
	return &cfg, nil
}

// explicitKeys holds numeric keys present in the file. defaults.Set cannot
// tell an explicit zero from an absent key, so these are put back afterwards.
type explicitKeys struct {
	Analysis struct {
		Window   *int     `yaml:"window"`
		Extremes *float64 `yaml:"extremes"`
	} `yaml:"analysis"`
}

func (k explicitKeys) restore(cfg *Config) {
	if k.Analysis.Window != nil {
		cfg.Analysis.Window = *k.Analysis.Window
	}
	if k.Analysis.Extremes != nil {
		cfg.Analysis.Extremes = *k.Analysis.Extremes
	}
}

func decodeFile(path string, cfg *Config) (explicitKeys, error) {
	var set explicitKeys
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		b, err := os.ReadFile(path)
		if err != nil {
			return set, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return set, fmt.Errorf("parse config: %w", err)
		}
		if err := yaml.Unmarshal(b, &set); err != nil {
			return set, fmt.Errorf("parse config: %w", err)
		}
	default:
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return set, fmt.Errorf("parse config: %w", err)
		}
		if md.IsDefined("analysis", "window") {
			w := cfg.Analysis.Window
			set.Analysis.Window = &w
		}
		if md.IsDefined("analysis", "extremes") {
			e := cfg.Analysis.Extremes
			set.Analysis.Extremes = &e
		}
	}
	return set, nil
}

func applyDefaults(cfg *Config) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("config defaults: %w", err)
	}
	if len(cfg.Markets) == 0 {
		cfg.Markets = model.DefaultMarkets()
	}
	if len(cfg.Export.Formats) == 0 {
		cfg.Export.Formats = []string{FormatCSV}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("COTSCAN_CACHE_DIR"); v != "" {
		cfg.Report.CacheDir = v
	}
	if v := os.Getenv("COTSCAN_OUTDIR"); v != "" {
		cfg.Export.OutDir = v
	}
	if v := os.Getenv("COTSCAN_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("COTSCAN_REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := os.Getenv("COTSCAN_REDIS_PASSWORD"); v != "" {
		cfg.Storage.Redis.Password = v
	}
}

var validate = validator.New()

// Validate normalizes and checks the config. It is safe to call again after
// command-line overrides.
func (cfg *Config) Validate() error {
	if cfg.Analysis.Window < 2 {
		return fmt.Errorf("analysis.window: %w (got %d)", model.ErrInvalidWindow, cfg.Analysis.Window)
	}
	if cfg.Analysis.Extremes < 0 || cfg.Analysis.Extremes >= 50 {
		return fmt.Errorf("analysis.extremes: %w (got %g)", model.ErrInvalidThreshold, cfg.Analysis.Extremes)
	}

	cfg.Markets = normalizeMarkets(cfg.Markets)
	cfg.Analysis.Markets = normalizeSymbols(cfg.Analysis.Markets)
	if len(cfg.Analysis.Markets) == 0 {
		return errors.New("analysis.markets is empty")
	}
	cfg.Export.Formats = normalizeFormats(cfg.Export.Formats)
	if strings.TrimSpace(cfg.Storage.SQLite.Path) == "" {
		cfg.Storage.SQLite.Path = filepath.Join(cfg.Export.OutDir, "cot.db")
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	rt := model.ReportType(strings.ToLower(strings.TrimSpace(cfg.Report.Type)))
	if !rt.Valid() {
		return fmt.Errorf("report.type %q unknown (want one of %v)", cfg.Report.Type, model.ReportTypes())
	}
	cfg.Report.Type = string(rt)
	if strings.TrimSpace(cfg.Report.Group) == "" {
		cfg.Report.Group = string(rt.DefaultGroup())
	}
	cfg.Report.Group = strings.ToLower(strings.TrimSpace(cfg.Report.Group))
	if !rt.HasGroup(model.TraderGroup(cfg.Report.Group)) {
		return fmt.Errorf("report.group %q not published in %s report (want one of %v)", cfg.Report.Group, rt, rt.Groups())
	}

	var err error
	if cfg.start, err = parseDate("analysis.start", cfg.Analysis.Start); err != nil {
		return err
	}
	if cfg.end, err = parseDate("analysis.end", cfg.Analysis.End); err != nil {
		return err
	}
	if !cfg.start.IsZero() && !cfg.end.IsZero() && cfg.end.Before(cfg.start) {
		return errors.New("analysis.end is before analysis.start")
	}

	if cfg.HasFormat(FormatPostgres) && strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
		return errors.New("storage.postgres.dsn empty but postgres export enabled")
	}
	if (cfg.HasFormat(FormatRedis) || cfg.Storage.Redis.CacheRaw) && strings.TrimSpace(cfg.Storage.Redis.Addr) == "" {
		return errors.New("storage.redis.addr empty but redis enabled")
	}
	return nil
}

func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: want YYYY-MM-DD: %w", field, err)
	}
	return t, nil
}

// ReportType and TraderGroup are valid after Validate.
func (cfg *Config) ReportType() model.ReportType   { return model.ReportType(cfg.Report.Type) }
func (cfg *Config) TraderGroup() model.TraderGroup { return model.TraderGroup(cfg.Report.Group) }

// Period returns the inclusive date filter; zero values are open bounds.
func (cfg *Config) Period() (start, end time.Time) { return cfg.start, cfg.end }

func (cfg *Config) HTTPTimeout() time.Duration {
	return time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second
}

func (cfg *Config) RedisTTL() time.Duration {
	return time.Duration(cfg.Storage.Redis.TTLSeconds) * time.Second
}

func (cfg *Config) HasFormat(f string) bool {
	for _, x := range cfg.Export.Formats {
		if x == f {
			return true
		}
	}
	return false
}

// RedisEnabled reports whether any component needs a Redis connection.
func (cfg *Config) RedisEnabled() bool {
	return cfg.HasFormat(FormatRedis) || cfg.Storage.Redis.CacheRaw
}

// MarketTable indexes the alias table by id.
func (cfg *Config) MarketTable() map[string]model.Market {
	out := make(map[string]model.Market, len(cfg.Markets))
	for _, m := range cfg.Markets {
		out[m.ID] = m
	}
	return out
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// normalizeMarkets upper-cases ids; a later entry with the same id wins.
func normalizeMarkets(in []model.Market) []model.Market {
	idx := map[string]int{}
	out := make([]model.Market, 0, len(in))
	for _, m := range in {
		m.ID = strings.ToUpper(strings.TrimSpace(m.ID))
		m.Keyword = strings.TrimSpace(m.Keyword)
		if i, ok := idx[m.ID]; ok {
			out[i] = m
			continue
		}
		idx[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}

func normalizeFormats(in []string) []string {
	out := normalizeSymbols(in)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}
