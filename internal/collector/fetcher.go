package collector

import (
	"context"
	"net/http"

	"StockChart/internal/model"
)

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=collector_test -destination=mock_fetcher_test.go -source=fetcher.go
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// PageFetcher fetches one page of price records. Failures are reported
// through the returned Page, never as a panic or separate error.
type PageFetcher interface {
	FetchPage(ctx context.Context, req model.FetchRequest) model.Page
	Name() string
}
