package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"StockChart/internal/model"
)

var (
	// ErrPageFailed means a page kept failing after all retries.
	ErrPageFailed = errors.New("page fetch failed")
	// ErrMaxPagesExceeded means the upstream kept returning full pages past the safety bound.
	ErrMaxPagesExceeded = errors.New("max pages exceeded")
)

// idleCloser is implemented by fetchers that hold pooled connections.
type idleCloser interface {
	CloseIdleConnections()
}

// Options tunes the pagination loop.
type Options struct {
	PageSize      int
	MaxPages      int // safety bound on page requests; 0 disables it
	MaxRetries    int // extra attempts for a failed page
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		PageSize:      50,
		MaxPages:      1000,
		MaxRetries:    2,
		RetryDelay:    time.Second,
		MaxRetryDelay: 10 * time.Second,
	}
}

// ReplayFetcher serves canned pages, page N from Pages[N-1]. Requests past the
// end get an empty page. Useful for development and testing.
type ReplayFetcher struct {
	Pages []model.Page

	mu    sync.Mutex
	calls int
}

func (m *ReplayFetcher) Name() string { return "replay" }

func (m *ReplayFetcher) FetchPage(_ context.Context, req model.FetchRequest) model.Page {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if req.Page < 1 || req.Page > len(m.Pages) {
		return model.EmptyPage()
	}
	return m.Pages[req.Page-1]
}

// Calls reports how many pages were requested.
func (m *ReplayFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Collector walks the pages of one symbol and date range.
type Collector struct {
	Fetcher PageFetcher
	Options Options
	Logger  *logrus.Logger
}

// NewCollector creates a new Collector.
func NewCollector(fetcher PageFetcher, opts Options, logger *logrus.Logger) *Collector {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultOptions().PageSize
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &Collector{Fetcher: fetcher, Options: opts, Logger: logger}
}

// Collect fetches pages sequentially until a short page, an empty page, a
// failure that outlives its retries, or the page bound. On error the records
// gathered so far are still returned.
func (c *Collector) Collect(ctx context.Context, q model.Query) (*model.Dataset, error) {
	ds := model.NewDataset(q)
	if ic, ok := c.Fetcher.(idleCloser); ok {
		defer ic.CloseIdleConnections()
	}

	pageSize := c.Options.PageSize
	if pageSize <= 0 {
		pageSize = DefaultOptions().PageSize
	}
	log := c.log().WithFields(logrus.Fields{"symbol": q.Symbol, "source": c.Fetcher.Name()})

	for page := 1; ; page++ {
		if c.Options.MaxPages > 0 && page > c.Options.MaxPages {
			return ds, fmt.Errorf("%w: stopped after %d pages with %d records", ErrMaxPagesExceeded, c.Options.MaxPages, ds.Len())
		}

		res, err := c.fetchWithRetry(ctx, model.FetchRequest{
			Symbol:   q.Symbol,
			From:     q.From,
			To:       q.To,
			PageSize: pageSize,
			Page:     page,
		}, log)
		if err != nil {
			return ds, err
		}
		if res.Outcome == model.PageEmpty {
			log.WithField("page", page).Debug("empty page, collection done")
			return ds, nil
		}

		ds.Append(res.Records...)
		ds.Pages++
		if len(res.Records) < pageSize {
			log.WithFields(logrus.Fields{"pages": ds.Pages, "records": ds.Len()}).Info("last page reached")
			return ds, nil
		}
	}
}

func (c *Collector) fetchWithRetry(ctx context.Context, req model.FetchRequest, log logrus.FieldLogger) (model.Page, error) {
	delay := c.Options.RetryDelay
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.Page{}, err
		}
		res := c.Fetcher.FetchPage(ctx, req)
		if res.Outcome != model.PageFailed {
			return res, nil
		}
		if attempt >= c.Options.MaxRetries {
			return res, fmt.Errorf("%w: page %d after %d attempts: %w", ErrPageFailed, req.Page, attempt+1, res.Err)
		}

		log.WithError(res.Err).Warnf("page %d failed (attempt %d/%d), retrying in %v",
			req.Page, attempt+1, c.Options.MaxRetries+1, delay)
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return model.Page{}, ctx.Err()
			case <-t.C:
			}
		}
		delay *= 2
		if c.Options.MaxRetryDelay > 0 && delay > c.Options.MaxRetryDelay {
			delay = c.Options.MaxRetryDelay
		}
	}
}

func (c *Collector) log() *logrus.Logger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}
