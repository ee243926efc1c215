package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"StockChart/internal/model"
)

// DefaultSSIBaseURL is the SSI iBoard daily stock-price endpoint.
const DefaultSSIBaseURL = "https://iboard-api.ssi.com.vn/statistics/company/stock-price"

const userAgent = "Mozilla/5.0 (compatible; StockChart/1.0)"

// SSIFetcher implements PageFetcher against the SSI iBoard API.
type SSIFetcher struct {
	BaseURL string
	Client  HTTPClient
	Logger  *logrus.Logger
}

// NewSSIFetcher creates a fetcher with optional proxy support.
func NewSSIFetcher(baseURL, proxyURL string, timeout time.Duration, logger *logrus.Logger) *SSIFetcher {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if baseURL == "" {
		baseURL = DefaultSSIBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SSIFetcher{
		BaseURL: baseURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		Logger: logger,
	}
}

func (f *SSIFetcher) Name() string { return "ssi" }

// ssiResponse is the part of the stock-price payload we consume.
type ssiResponse struct {
	Data []model.Record `json:"data"`
}

// FetchPage issues a single GET for one page. A missing or empty "data" list
// is a terminal empty page; everything else that goes wrong is a failed page.
func (f *SSIFetcher) FetchPage(ctx context.Context, fr model.FetchRequest) model.Page {
	log := f.log().WithFields(logrus.Fields{"symbol": fr.Symbol, "page": fr.Page})

	endpoint := f.BaseURL + "?" + fr.Params().Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.FailedPage(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.Client.Do(req)
	if err != nil {
		log.WithError(err).Warn("page request failed")
		return model.FailedPage(fmt.Errorf("fetch page %d: %w", fr.Page, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.WithField("status", resp.StatusCode).Warn("failed to retrieve data")
		return model.FailedPage(fmt.Errorf("fetch page %d: status %d, body: %s", fr.Page, resp.StatusCode, string(body)))
	}

	var payload ssiResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.WithError(err).Warn("decode page failed")
		return model.FailedPage(fmt.Errorf("decode page %d: %w", fr.Page, err))
	}

	log.WithField("records", len(payload.Data)).Debug("page fetched")
	return model.FilledPage(payload.Data)
}

// CloseIdleConnections releases pooled connections held by the HTTP client.
func (f *SSIFetcher) CloseIdleConnections() {
	if c, ok := f.Client.(idleCloser); ok {
		c.CloseIdleConnections()
	}
}

func (f *SSIFetcher) log() *logrus.Logger {
	if f.Logger == nil {
		return logrus.StandardLogger()
	}
	return f.Logger
}
