package analysis

import (
	"context"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

type noopRepo struct{}

// NewNoopRepo discards results; used when no export format is selected.
func NewNoopRepo() port.ResultRepository { return &noopRepo{} }

func (n *noopRepo) Name() string { return "none" }
func (n *noopRepo) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	return nil
}
func (n *noopRepo) Flush(ctx context.Context, run port.RunSummary) error { return nil }
func (n *noopRepo) Close() error                                         { return nil }

type noopSink struct{}

// NewNoopSink renders nothing; used in quiet mode.
func NewNoopSink() port.Sink { return noopSink{} }

func (noopSink) WriteResult(res *model.MarketResult) error { return nil }
func (noopSink) WriteSummary(run port.RunSummary) error    { return nil }
