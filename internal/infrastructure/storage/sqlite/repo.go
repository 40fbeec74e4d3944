package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

const dateLayout = "2006-01-02"

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Name() string { return "sqlite" }

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS cot_runs (
  run_id TEXT PRIMARY KEY,
  report TEXT NOT NULL,
  trader_group TEXT NOT NULL,
  window_size INTEGER NOT NULL,
  extremes REAL NOT NULL,
  started_at INTEGER NOT NULL,
  finished_at INTEGER NOT NULL,
  succeeded TEXT NOT NULL,
  failed TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cot_metrics (
  market TEXT NOT NULL,
  report TEXT NOT NULL,
  trader_group TEXT NOT NULL,
  report_date TEXT NOT NULL,
  long_pos INTEGER NOT NULL,
  short_pos INTEGER NOT NULL,
  net INTEGER NOT NULL,
  cot_index REAL,
  percentile REAL,
  zscore REAL,
  window_len INTEGER NOT NULL,
  extreme_high INTEGER NOT NULL,
  extreme_low INTEGER NOT NULL,
  run_id TEXT NOT NULL,
  PRIMARY KEY(market, report, trader_group, report_date)
);
CREATE INDEX IF NOT EXISTS idx_cot_metrics_date ON cot_metrics(report_date);

CREATE TABLE IF NOT EXISTS cot_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  market TEXT NOT NULL,
  report_date TEXT NOT NULL,
  kind TEXT NOT NULL,
  percentile REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cot_events_market ON cot_events(market, report_date);
CREATE INDEX IF NOT EXISTS idx_cot_events_run ON cot_events(run_id);
`)
	return err
}

// SaveResult upserts every metric row and appends the events of one market in a single transaction.
func (r *Repo) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	metricStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cot_metrics(market, report, trader_group, report_date, long_pos, short_pos, net,
			cot_index, percentile, zscore, window_len, extreme_high, extreme_low, run_id)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(market, report, trader_group, report_date) DO UPDATE SET
		long_pos=excluded.long_pos, short_pos=excluded.short_pos, net=excluded.net,
		cot_index=excluded.cot_index, percentile=excluded.percentile, zscore=excluded.zscore,
		window_len=excluded.window_len, extreme_high=excluded.extreme_high,
		extreme_low=excluded.extreme_low, run_id=excluded.run_id
	`)
	if err != nil {
		return err
	}
	defer metricStmt.Close()

	for _, row := range res.Rows {
		_, err := metricStmt.ExecContext(ctx,
			res.Market.ID, string(res.Report), string(res.Group), row.ReportDate.Format(dateLayout),
			row.Long, row.Short, row.Net,
			row.COTIndex.Null(), row.Percentile.Null(), row.ZScore.Null(),
			row.WindowLen, res.ExtremeHigh(row), res.ExtremeLow(row), runID)
		if err != nil {
			return fmt.Errorf("sqlite: upsert %s %s: %w", res.Market.ID, row.ReportDate.Format(dateLayout), err)
		}
	}

	// events are per run; replace what an earlier save of the same run wrote
	if _, err := tx.ExecContext(ctx, `DELETE FROM cot_events WHERE run_id=? AND market=?`, runID, res.Market.ID); err != nil {
		return err
	}
	for _, ev := range res.Events {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cot_events(run_id, market, report_date, kind, percentile) VALUES(?, ?, ?, ?, ?)`,
			runID, ev.MarketID, ev.ReportDate.Format(dateLayout), string(ev.Kind), ev.Percentile)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) Flush(ctx context.Context, run port.RunSummary) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cot_runs(run_id, report, trader_group, window_size, extremes, started_at, finished_at, succeeded, failed)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
		finished_at=excluded.finished_at, succeeded=excluded.succeeded, failed=excluded.failed
	`, run.RunID, string(run.Report), string(run.Group), run.Window, run.Extreme,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		strings.Join(run.Succeeded, ","), joinFailures(run.Failed))
	return err
}

// MetricCount returns how many metric rows are stored for a market.
func (r *Repo) MetricCount(ctx context.Context, marketID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cot_metrics WHERE market=?`, marketID).Scan(&n)
	return n, err
}

// LatestMetric returns the most recent stored row for a market.
func (r *Repo) LatestMetric(ctx context.Context, marketID string) (model.MetricRow, error) {
	var (
		row         model.MetricRow
		date        string
		idx, pct, z sql.NullFloat64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT market, report_date, long_pos, short_pos, net, cot_index, percentile, zscore, window_len
		FROM cot_metrics WHERE market=? ORDER BY report_date DESC LIMIT 1`, marketID).
		Scan(&row.MarketID, &date, &row.Long, &row.Short, &row.Net, &idx, &pct, &z, &row.WindowLen)
	if err != nil {
		return model.MetricRow{}, err
	}
	if row.ReportDate, err = parseDate(date); err != nil {
		return model.MetricRow{}, err
	}
	row.COTIndex = model.FromNull(idx)
	row.Percentile = model.FromNull(pct)
	row.ZScore = model.FromNull(z)
	return row, nil
}

// Events lists stored events for a market in date order.
func (r *Repo) Events(ctx context.Context, marketID string) ([]model.ExtremeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT market, report_date, kind, percentile FROM cot_events
		WHERE market=? ORDER BY report_date, id`, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ExtremeEvent
	for rows.Next() {
		var (
			ev   model.ExtremeEvent
			date string
			kind string
		)
		if err := rows.Scan(&ev.MarketID, &date, &kind, &ev.Percentile); err != nil {
			return nil, err
		}
		if ev.ReportDate, err = parseDate(date); err != nil {
			return nil, err
		}
		ev.Kind = model.EventKind(kind)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// RunFailures returns the failed markets recorded for a run.
func (r *Repo) RunFailures(ctx context.Context, runID string) (string, error) {
	var failed string
	err := r.db.QueryRowContext(ctx, `SELECT failed FROM cot_runs WHERE run_id=?`, runID).Scan(&failed)
	return failed, err
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

func joinFailures(failed map[string]string) string {
	keys := make([]string, 0, len(failed))
	for k := range failed {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+failed[k])
	}
	return strings.Join(parts, "; ")
}

var _ port.ResultRepository = (*Repo)(nil)
