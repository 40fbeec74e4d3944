package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Name() string { return "postgres" }

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS cot_runs (
  run_id TEXT PRIMARY KEY,
  report TEXT NOT NULL,
  trader_group TEXT NOT NULL,
  window_size INTEGER NOT NULL,
  extremes DOUBLE PRECISION NOT NULL,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  succeeded TEXT NOT NULL,
  failed TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cot_metrics (
  market TEXT NOT NULL,
  report TEXT NOT NULL,
  trader_group TEXT NOT NULL,
  report_date DATE NOT NULL,
  long_pos BIGINT NOT NULL,
  short_pos BIGINT NOT NULL,
  net BIGINT NOT NULL,
  cot_index DOUBLE PRECISION,
  percentile DOUBLE PRECISION,
  zscore DOUBLE PRECISION,
  window_len INTEGER NOT NULL,
  extreme_high BOOLEAN NOT NULL,
  extreme_low BOOLEAN NOT NULL,
  run_id TEXT NOT NULL,
  PRIMARY KEY(market, report, trader_group, report_date)
);
CREATE INDEX IF NOT EXISTS idx_cot_metrics_date ON cot_metrics(report_date);

CREATE TABLE IF NOT EXISTS cot_events (
  id BIGSERIAL PRIMARY KEY,
  run_id TEXT NOT NULL,
  market TEXT NOT NULL,
  report_date DATE NOT NULL,
  kind TEXT NOT NULL,
  percentile DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cot_events_market ON cot_events(market, report_date);
`)
	return err
}

func (r *Repo) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range res.Rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cot_metrics(market, report, trader_group, report_date, long_pos, short_pos, net,
				cot_index, percentile, zscore, window_len, extreme_high, extreme_low, run_id)
			VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT(market, report, trader_group, report_date) DO UPDATE SET
			long_pos=EXCLUDED.long_pos, short_pos=EXCLUDED.short_pos, net=EXCLUDED.net,
			cot_index=EXCLUDED.cot_index, percentile=EXCLUDED.percentile, zscore=EXCLUDED.zscore,
			window_len=EXCLUDED.window_len, extreme_high=EXCLUDED.extreme_high,
			extreme_low=EXCLUDED.extreme_low, run_id=EXCLUDED.run_id
		`, res.Market.ID, string(res.Report), string(res.Group), row.ReportDate,
			row.Long, row.Short, row.Net,
			row.COTIndex.Null(), row.Percentile.Null(), row.ZScore.Null(),
			row.WindowLen, res.ExtremeHigh(row), res.ExtremeLow(row), runID)
		if err != nil {
			return fmt.Errorf("postgres: upsert %s: %w", res.Market.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cot_events WHERE run_id=$1 AND market=$2`, runID, res.Market.ID); err != nil {
		return err
	}
	for _, ev := range res.Events {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO cot_events(run_id, market, report_date, kind, percentile) VALUES($1, $2, $3, $4, $5)`,
			runID, ev.MarketID, ev.ReportDate, string(ev.Kind), ev.Percentile)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *Repo) Flush(ctx context.Context, run port.RunSummary) error {
	failed := make([]string, 0, len(run.Failed))
	for k, v := range run.Failed {
		failed = append(failed, k+": "+v)
	}
	sort.Strings(failed)

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cot_runs(run_id, report, trader_group, window_size, extremes, started_at, finished_at, succeeded, failed)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(run_id) DO UPDATE SET
		finished_at=EXCLUDED.finished_at, succeeded=EXCLUDED.succeeded, failed=EXCLUDED.failed
	`, run.RunID, string(run.Report), string(run.Group), run.Window, run.Extreme,
		run.StartedAt, run.FinishedAt, strings.Join(run.Succeeded, ","), strings.Join(failed, "; "))
	return err
}

var _ port.ResultRepository = (*Repo)(nil)
