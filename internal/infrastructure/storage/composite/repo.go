package composite

import (
	"context"
	"strings"

	"cotscan/internal/application/port"
	"cotscan/internal/domain/model"
)

// Repo fans every call out to all repos and returns the first error.
type Repo struct {
	repos []port.ResultRepository
}

func New(repos ...port.ResultRepository) *Repo {
	// nil repos are skipped
	out := make([]port.ResultRepository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Name() string {
	names := make([]string, 0, len(r.repos))
	for _, repo := range r.repos {
		names = append(names, repo.Name())
	}
	return strings.Join(names, "+")
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) SaveResult(ctx context.Context, runID string, res *model.MarketResult) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.SaveResult(ctx, runID, res); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) Flush(ctx context.Context, run port.RunSummary) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Flush(ctx, run); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every repo, last opened first.
func (r *Repo) Close() error {
	var firstErr error
	for i := len(r.repos) - 1; i >= 0; i-- {
		if err := r.repos[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.ResultRepository = (*Repo)(nil)
