package port

import (
	"context"
	"time"

	"cotscan/internal/domain/model"
)

// RunSummary is what exporters see about the run as a whole.
type RunSummary struct {
	RunID      string
	Report     model.ReportType
	Group      model.TraderGroup
	Window     int
	Extreme    float64
	StartedAt  time.Time
	FinishedAt time.Time
	Succeeded  []string
	Failed     map[string]string // market -> cause
}

// ResultRepository receives each market's result, then a Flush once all markets are done.
// SaveResult may be called concurrently for different markets.
type ResultRepository interface {
	Name() string
	SaveResult(ctx context.Context, runID string, res *model.MarketResult) error
	Flush(ctx context.Context, run RunSummary) error
	Close() error
}
