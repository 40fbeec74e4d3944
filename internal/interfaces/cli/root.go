package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"cotscan/internal/application/usecase/analysis"
	"cotscan/internal/domain/model"
	"cotscan/internal/infrastructure/config"
	"cotscan/internal/infrastructure/logger"
	"cotscan/internal/infrastructure/svc"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFatal   = 1
	ExitPartial = 2
)

// ExitError carries the exit code a failed run should end the process with.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

type options struct {
	configPath      string
	markets         []string
	report          string
	group           string
	start           string
	end             string
	outDir          string
	export          []string
	window          int
	extremes        float64
	cacheDir        string
	forceDownload   bool
	dbPath          string
	workers         int
	verbose         bool
	quiet           bool
	logFormat       string
	metricsTextfile string
}

// NewRootCommand builds the cotscan command.
func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "cotscan",
		Short: "Commitments of Traders analyzer",
		Long: `cotscan downloads CFTC Commitments of Traders reports, computes net
positioning, a rolling COT index, percentile rank and z-score per market,
flags extremes and 50-line crossings, and exports the results.

Example usage:
  cotscan --markets EUR,GC --report disaggregated
  cotscan --markets GC --report legacy --group commercial --export csv,json,sqlite
  cotscan --config configs/config.toml --start 2020-01-01 --window 52`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.Flags(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to config.toml (or .yaml)")
	f.StringSliceVar(&opts.markets, "markets", nil, "Markets to analyse, e.g. EUR,GC")
	f.StringVar(&opts.report, "report", "", "Report type: "+joinReports())
	f.StringVar(&opts.group, "group", "", "Trader group (defaults to the report's first group)")
	f.StringVar(&opts.start, "start", "", "First report date (YYYY-MM-DD)")
	f.StringVar(&opts.end, "end", "", "Last report date (YYYY-MM-DD)")
	f.StringVar(&opts.outDir, "outdir", "", "Export directory")
	f.StringSliceVar(&opts.export, "export", nil, "Export formats: csv,json,sqlite,postgres,redis")
	f.IntVar(&opts.window, "window", 0, "Rolling window in reports")
	f.Float64Var(&opts.extremes, "extremes", 0, "Extreme zone width in percent")
	f.StringVar(&opts.cacheDir, "cache", "", "Report cache directory")
	f.BoolVar(&opts.forceDownload, "force-download", false, "Ignore cached report files")
	f.StringVar(&opts.dbPath, "db", "", "SQLite database path")
	f.IntVar(&opts.workers, "workers", 0, "Markets analysed in parallel")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print results")
	f.StringVar(&opts.logFormat, "log-format", "", "Log format: console or json")
	f.StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write run metrics to this Prometheus textfile")
	return cmd
}

func joinReports() string {
	rts := model.ReportTypes()
	out := make([]string, len(rts))
	for i, rt := range rts {
		out[i] = string(rt)
	}
	return strings.Join(out, ", ")
}

// applyFlags layers explicitly set flags over the file config.
func applyFlags(fs *pflag.FlagSet, opts *options, cfg *config.Config) {
	if fs.Changed("markets") {
		cfg.Analysis.Markets = opts.markets
	}
	if fs.Changed("report") {
		cfg.Report.Type = opts.report
		if !fs.Changed("group") {
			// a group from the file may not exist in the new report
			cfg.Report.Group = ""
		}
	}
	if fs.Changed("group") {
		cfg.Report.Group = opts.group
	}
	if fs.Changed("start") {
		cfg.Analysis.Start = opts.start
	}
	if fs.Changed("end") {
		cfg.Analysis.End = opts.end
	}
	if fs.Changed("outdir") {
		cfg.Export.OutDir = opts.outDir
	}
	if fs.Changed("export") {
		cfg.Export.Formats = opts.export
	}
	if fs.Changed("window") {
		cfg.Analysis.Window = opts.window
	}
	if fs.Changed("extremes") {
		cfg.Analysis.Extremes = opts.extremes
	}
	if fs.Changed("cache") {
		cfg.Report.CacheDir = opts.cacheDir
	}
	if fs.Changed("force-download") {
		cfg.Report.ForceDownload = opts.forceDownload
	}
	if fs.Changed("db") {
		cfg.Storage.SQLite.Path = opts.dbPath
	}
	if fs.Changed("workers") {
		cfg.Analysis.Workers = opts.workers
	}
	if fs.Changed("verbose") {
		cfg.App.Verbose = opts.verbose
	}
	if fs.Changed("quiet") {
		cfg.App.Quiet = opts.quiet
	}
	if fs.Changed("log-format") {
		cfg.App.LogFormat = opts.logFormat
	}
	if fs.Changed("metrics-textfile") {
		cfg.Metrics.Textfile = opts.metricsTextfile
	}
}

func run(ctx context.Context, fs *pflag.FlagSet, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Read(opts.configPath)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	applyFlags(fs, opts, cfg)

	logger.Setup(logger.Options{Verbose: cfg.App.Verbose, Format: cfg.App.LogFormat})
	if err := cfg.Validate(); err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	sc, err := svc.New(ctx, cfg)
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}
	defer sc.Close()

	service, err := analysis.NewService(sc.BuildAnalysisServiceDeps())
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	rep, err := service.Run(ctx)
	if mErr := sc.WriteMetrics(); mErr != nil {
		log.Warn().Err(mErr).Msg("metrics not written")
	}
	if err != nil {
		return &ExitError{Code: ExitFatal, Err: err}
	}

	if err := rep.Err(); err != nil {
		if errors.Is(err, model.ErrNoResults) {
			return &ExitError{Code: ExitFatal, Err: err}
		}
		return &ExitError{Code: ExitPartial, Err: err}
	}
	return nil
}

// Execute runs the command with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code == ExitPartial {
			log.Warn().Err(exitErr.Err).Msg("finished with failures")
		} else {
			log.Error().Err(exitErr.Err).Msg("cotscan failed")
		}
		return exitErr.Code
	}
	// flag parsing and other cobra errors
	fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
	return ExitFatal
}
