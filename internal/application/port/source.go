package port

import (
	"context"

	"cotscan/internal/domain/model"
)

// PositionSource supplies a date-ordered, deduplicated series for one market.
type PositionSource interface {
	Name() string
	Fetch(ctx context.Context, market model.Market, group model.TraderGroup) ([]model.PositionRecord, error)
}
