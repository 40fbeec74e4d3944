package cftc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"cotscan/internal/domain/model"
)

// RawCache is an optional second-level cache for downloaded report files.
type RawCache interface {
	GetRaw(ctx context.Context, key string) ([]byte, bool, error)
	SetRaw(ctx context.Context, key string, b []byte) error
}

type ClientOptions struct {
	URLs          map[model.ReportType]string
	CacheDir      string
	ForceDownload bool
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	UserAgent     string
	Raw           RawCache
	HTTPClient    *http.Client
}

// Client downloads CFTC report files, caching them under CacheDir/<report>.txt.
type Client struct {
	opts    ClientOptions
	http    *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewClient(opts ClientOptions) *Client {
	urls := make(map[model.ReportType]string, len(DefaultURLs))
	for k, v := range DefaultURLs {
		urls[k] = v
	}
	for k, v := range opts.URLs {
		urls[k] = v
	}
	opts.URLs = urls

	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	st := gobreaker.Settings{
		Name:     "cftc",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	}

	return &Client{
		opts:    opts,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.Burst),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

func (c *Client) cachePath(rt model.ReportType) string {
	return filepath.Join(c.opts.CacheDir, string(rt)+".txt")
}

func rawKey(rt model.ReportType) string { return "raw:" + string(rt) }

// Fetch returns the report file, from disk or Redis cache unless ForceDownload is set.
func (c *Client) Fetch(ctx context.Context, rt model.ReportType) ([]byte, error) {
	url, ok := c.opts.URLs[rt]
	if !ok || url == "" {
		return nil, fmt.Errorf("unknown report type %q", rt)
	}
	path := c.cachePath(rt)

	if !c.opts.ForceDownload {
		if c.opts.CacheDir != "" {
			if b, err := os.ReadFile(path); err == nil {
				log.Info().Str("file", path).Msg("using cached report")
				return b, nil
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read cache: %w", err)
			}
		}

		if c.opts.Raw != nil {
			b, hit, err := c.opts.Raw.GetRaw(ctx, rawKey(rt))
			if err != nil {
				log.Warn().Err(err).Str("report", string(rt)).Msg("raw cache get failed")
			} else if hit {
				log.Info().Str("report", string(rt)).Msg("using redis cached report")
				c.writeCache(path, b)
				return b, nil
			}
		}
	}

	b, err := c.download(ctx, url)
	if err != nil {
		return nil, err
	}
	c.writeCache(path, b)
	if c.opts.Raw != nil {
		if err := c.opts.Raw.SetRaw(ctx, rawKey(rt), b); err != nil {
			log.Warn().Err(err).Str("report", string(rt)).Msg("raw cache set failed")
		}
	}
	return b, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	log.Info().Str("url", url).Msg("downloading report")
	out, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		if c.opts.UserAgent != "" {
			req.Header.Set("User-Agent", c.opts.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("download %s: http %d", url, resp.StatusCode)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]byte), nil
}

// writeCache is best effort; a failed write only costs a re-download next run.
func (c *Client) writeCache(path string, b []byte) {
	if c.opts.CacheDir == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn().Err(err).Str("dir", filepath.Dir(path)).Msg("create cache dir failed")
		return
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("write cache failed")
		return
	}
	log.Info().Str("file", path).Msg("report cached")
}
