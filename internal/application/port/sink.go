package port

import "cotscan/internal/domain/model"

type Sink interface {
	// One market's summary and events
	WriteResult(res *model.MarketResult) error
	// Run totals, after every market
	WriteSummary(run RunSummary) error
}
