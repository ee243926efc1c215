package collector_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"StockChart/internal/collector"
	"StockChart/internal/model"
)

func testRequest(page int) model.FetchRequest {
	q := testQuery()
	return model.FetchRequest{Symbol: q.Symbol, From: q.From, To: q.To, PageSize: 50, Page: page}
}

func newTestServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSSIFetcher_Records(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, http.StatusOK, `{"code":"SUCCESS","data":[{"tradingDate":"29/12/2023","closePrice":96500},{"tradingDate":"28/12/2023","closePrice":95000}]}`)
	f := collector.NewSSIFetcher(srv.URL, "", 5*time.Second, testLogger())

	page := f.FetchPage(t.Context(), testRequest(1))
	require.Equal(t, model.PageRecords, page.Outcome)
	require.Len(t, page.Records, 2)
	require.Equal(t, "29/12/2023", page.Records[0].String("tradingDate"))
}

func TestSSIFetcher_NullRowKeepsPage(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, http.StatusOK, `{"data":[{"tradingDate":"29/12/2023","openPrice":96000,"highestPrice":97000,"lowestPrice":95500,"closePrice":96500,"totalMatchVol":10},null]}`)
	f := collector.NewSSIFetcher(srv.URL, "", 5*time.Second, testLogger())

	page := f.FetchPage(t.Context(), testRequest(1))
	require.Equal(t, model.PageRecords, page.Outcome)
	require.Len(t, page.Records, 2)

	ds := model.NewDataset(testQuery())
	ds.Append(page.Records...)
	candles, skipped := ds.Candles(model.DefaultFieldMap())
	require.Len(t, candles, 1)
	require.Equal(t, 1, skipped)
}

func TestSSIFetcher_MissingDataKeyIsEmpty(t *testing.T) {
	t.Parallel()

	for name, body := range map[string]string{
		"no data key": `{"code":"SUCCESS"}`,
		"null data":   `{"data":null}`,
		"empty list":  `{"data":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, http.StatusOK, body)
			f := collector.NewSSIFetcher(srv.URL, "", 5*time.Second, testLogger())
			page := f.FetchPage(t.Context(), testRequest(1))
			require.Equal(t, model.PageEmpty, page.Outcome)
			require.NoError(t, page.Err)
		})
	}
}

func TestSSIFetcher_FailedPages(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		status int
		body   string
	}{
		"server error": {http.StatusInternalServerError, `oops`},
		"forbidden":    {http.StatusForbidden, `{"data":[{"a":1}]}`},
		"bad json":     {http.StatusOK, `{"data":[`},
	} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, tc.status, tc.body)
			f := collector.NewSSIFetcher(srv.URL, "", 5*time.Second, testLogger())
			page := f.FetchPage(t.Context(), testRequest(1))
			require.Equal(t, model.PageFailed, page.Outcome)
			require.Error(t, page.Err)
		})
	}
}

func TestSSIFetcher_QueryParameters(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	baseURL := "http://localhost:8080/stock-price"

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, http.MethodGet, req.Method)
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "unexpected url: %s", req.URL.String())
			q := req.URL.Query()
			require.Equal(t, "FPT", q.Get("symbol"))
			require.Equal(t, "2", q.Get("page"))
			require.Equal(t, "50", q.Get("pageSize"))
			require.Equal(t, "01/01/2023", q.Get("fromDate"))
			require.Equal(t, "31/12/2023", q.Get("toDate"))
			require.Equal(t, "application/json", req.Header.Get("Accept"))

			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader(`{"data":[{"a":1}]}`)),
			}, nil
		}).
		Times(1)

	f := &collector.SSIFetcher{BaseURL: baseURL, Client: httpClient, Logger: testLogger()}
	page := f.FetchPage(t.Context(), testRequest(2))
	require.Equal(t, model.PageRecords, page.Outcome)
}

func TestSSIFetcher_TransportError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	cause := errors.New("dial tcp: connection refused")
	httpClient.EXPECT().Do(gomock.Any()).Return(nil, cause).Times(1)

	f := &collector.SSIFetcher{BaseURL: "http://localhost:1", Client: httpClient, Logger: testLogger()}
	page := f.FetchPage(t.Context(), testRequest(1))
	require.Equal(t, model.PageFailed, page.Outcome)
	require.ErrorIs(t, page.Err, cause)
}

func TestSSIFetcher_CollectEndToEnd(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Query().Get("page") == "1" {
			_, _ = io.WriteString(w, `{"data":[{"seq":1},{"seq":2}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[{"seq":3}]}`)
	}))
	t.Cleanup(srv.Close)

	opts := noDelay()
	opts.PageSize = 2
	c := collector.NewCollector(collector.NewSSIFetcher(srv.URL, "", 5*time.Second, testLogger()), opts, testLogger())
	ds, err := c.Collect(t.Context(), testQuery())
	require.NoError(t, err)
	require.Equal(t, 3, ds.Len())
	require.EqualValues(t, 2, hits.Load())
}
