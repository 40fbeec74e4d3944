package file

import (
	"fmt"
	"os"
	"sync"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

// buffer collects results until Flush, so each exporter writes one combined file per run.
type buffer struct {
	mu      sync.Mutex
	results map[string]*model.MarketResult
}

func newBuffer() buffer {
	return buffer{results: make(map[string]*model.MarketResult)}
}

func (b *buffer) add(res *model.MarketResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[res.Market.ID] = res
}

// ordered returns the buffered results of succeeded markets in run order.
// A market saved here but failed by another repo is left out.
func (b *buffer) ordered(run port.RunSummary) []*model.MarketResult {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*model.MarketResult, 0, len(b.results))
	seen := make(map[string]bool, len(b.results))
	for _, id := range run.Succeeded {
		if res, ok := b.results[id]; ok && !seen[id] {
			out = append(out, res)
			seen[id] = true
		}
	}
	return out
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
