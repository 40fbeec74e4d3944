package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

type Repo struct {
	rdb          *redis.Client
	prefix       string
	ttl          time.Duration
	keyLatest    string // prefix + ":latest"
	keyLastRun   string // prefix + ":last_run"
	signalStream string
	signalChan   string
}

// LatestMetric is the per-market snapshot kept in the latest hash.
type LatestMetric struct {
	Market      string            `json:"market"`
	Report      model.ReportType  `json:"report"`
	Group       model.TraderGroup `json:"group"`
	Date        string            `json:"date"`
	Net         int64             `json:"net"`
	COTIndex    model.Optional    `json:"cot_index"`
	Percentile  model.Optional    `json:"percentile"`
	ZScore      model.Optional    `json:"zscore"`
	ExtremeHigh bool              `json:"extreme_high"`
	ExtremeLow  bool              `json:"extreme_low"`
	RunID       string            `json:"run_id"`
}

type signalMessage struct {
	RunID      string  `json:"run_id"`
	Market     string  `json:"market"`
	Date       string  `json:"date"`
	Kind       string  `json:"kind"`
	Percentile float64 `json:"percentile"`
}

// The client is owned by the caller; Close leaves it open.
func New(rdb *redis.Client, prefix string, ttl time.Duration, signalStream, signalChan string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "cot"
	}
	if strings.TrimSpace(signalStream) == "" {
		signalStream = prefix + ":signals"
	}
	if strings.TrimSpace(signalChan) == "" {
		signalChan = prefix + ":signals:pub"
	}
	return &Repo{
		rdb:          rdb,
		prefix:       prefix,
		ttl:          ttl,
		keyLatest:    prefix + ":latest",
		keyLastRun:   prefix + ":last_run",
		signalStream: signalStream,
		signalChan:   signalChan,
	}
}

func (r *Repo) Name() string { return "redis" }

func (r *Repo) Close() error { return nil }

func latestField(res *model.MarketResult) string {
	return res.Market.ID + ":" + string(res.Report) + ":" + string(res.Group)
}

func latestPayload(runID string, res *model.MarketResult, row model.MetricRow) string {
	b, _ := json.Marshal(LatestMetric{
		Market:      res.Market.ID,
		Report:      res.Report,
		Group:       res.Group,
		Date:        row.ReportDate.Format(time.DateOnly),
		Net:         row.Net,
		COTIndex:    row.COTIndex,
		Percentile:  row.Percentile,
		ZScore:      row.ZScore,
		ExtremeHigh: res.ExtremeHigh(row),
		ExtremeLow:  res.ExtremeLow(row),
		RunID:       runID,
	})
	return string(b)
}

func signalPayload(runID string, ev model.ExtremeEvent) string {
	b, _ := json.Marshal(signalMessage{
		RunID:      runID,
		Market:     ev.MarketID,
		Date:       ev.ReportDate.Format(time.DateOnly),
		Kind:       string(ev.Kind),
		Percentile: ev.Percentile,
	})
	return string(b)
}

func signalValues(runID string, ev model.ExtremeEvent) []any {
	return []any{
		"run_id", runID,
		"market", ev.MarketID,
		"date", ev.ReportDate.Format(time.DateOnly),
		"kind", string(ev.Kind),
		"percentile", ev.Percentile,
	}
}

// SaveResult stores the latest row of the market in the hash, then
// appends each event to the stream and publishes it.
func (r *Repo) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	if row, ok := res.Latest(); ok {
		// Hash: field = "GC:disaggregated:managed_money" -> json
		pipe := r.rdb.Pipeline()
		pipe.HSet(ctx, r.keyLatest, latestField(res), latestPayload(runID, res, row))
		if r.ttl > 0 {
			pipe.Expire(ctx, r.keyLatest, r.ttl)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
	}

	for _, ev := range res.Events {
		// 1) Stream: XADD <stream> * run_id market date kind percentile
		_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: r.signalStream,
			Values: signalValues(runID, ev),
		}).Result()
		if err != nil {
			return err
		}
		// 2) PubSub: PUBLISH <channel> json
		if err := r.rdb.Publish(ctx, r.signalChan, signalPayload(runID, ev)).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) Flush(ctx context.Context, run port.RunSummary) error {
	b, err := json.Marshal(map[string]any{
		"run_id":      run.RunID,
		"report":      run.Report,
		"group":       run.Group,
		"window":      run.Window,
		"extremes":    run.Extreme,
		"started_at":  run.StartedAt.UTC().Format(time.RFC3339),
		"finished_at": run.FinishedAt.UTC().Format(time.RFC3339),
		"succeeded":   run.Succeeded,
		"failed":      run.Failed,
	})
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.keyLastRun, string(b), r.ttl).Err()
}

// Latest reads the stored snapshot of one market.
func (r *Repo) Latest(ctx context.Context, marketID string, rt model.ReportType, g model.TraderGroup) (LatestMetric, bool, error) {
	s, err := r.rdb.HGet(ctx, r.keyLatest, marketID+":"+string(rt)+":"+string(g)).Result()
	if errors.Is(err, redis.Nil) {
		return LatestMetric{}, false, nil
	}
	if err != nil {
		return LatestMetric{}, false, err
	}
	var lm LatestMetric
	if err := json.Unmarshal([]byte(s), &lm); err != nil {
		return LatestMetric{}, false, err
	}
	return lm, true, nil
}

var _ port.ResultRepository = (*Repo)(nil)
