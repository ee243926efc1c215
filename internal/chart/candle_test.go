package chart

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"StockChart/internal/model"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sampleDataset() *model.Dataset {
	ds := model.NewDataset(model.Query{
		Symbol: "FPT",
		From:   time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		To:     time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	// Newest first, the way the upstream returns them.
	ds.Append(
		priceRecord("29/12/2023", 96000, 97000, 95500, 96500, 1200000),
		priceRecord("28/12/2023", 95500, 96200, 95000, 96000, 900000),
		model.NewRecord("tradingDate", "not a date", "openPrice", json.Number("1")),
		priceRecord("27/12/2023", 95000, 95800, 94800, 95500, 800000),
	)
	return ds
}

func priceRecord(date string, o, h, l, c, v int) model.Record {
	n := func(x int) json.Number { return json.Number(strconv.Itoa(x)) }
	return model.NewRecord(
		"tradingDate", date,
		"openPrice", n(o),
		"highestPrice", n(h),
		"lowestPrice", n(l),
		"closePrice", n(c),
		"totalMatchVol", n(v),
	)
}

func TestRender_WritesPage(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(Options{Dir: dir, MAPeriods: []int{2}}, quietLogger())
	var opened string
	r.open = func(p string) error { opened = p; return nil }
	r.Options.OpenBrowser = true

	path, err := r.Render(sampleDataset())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "FPT_01122023_31122023.html"), path)
	require.Equal(t, path, opened)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(b)
	require.Contains(t, html, "FPT Price")
	require.Contains(t, html, "Volume")
	require.Contains(t, html, "2023-12-27")
	require.Contains(t, html, "MA2")
	// Ascending order on the axis.
	require.Less(t, strings.Index(html, "2023-12-27"), strings.Index(html, "2023-12-29"))
}

func TestRender_PriceAndVolumeShareOneZoom(t *testing.T) {
	r := NewRenderer(Options{Dir: t.TempDir(), RangePreset: Range1M}, quietLogger())
	path, err := r.Render(sampleDataset())
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(b)
	require.Equal(t, 1, strings.Count(html, "echarts.init("))
	require.Equal(t, 2, strings.Count(html, `"xAxisIndex":[0,1]`))
	require.Contains(t, html, `"gridIndex":1`)
	require.Contains(t, html, `"name":"Volume","type":"bar","xAxisIndex":1,"yAxisIndex":1`)
}

func TestRender_RangeSelectorButtons(t *testing.T) {
	r := NewRenderer(Options{Dir: t.TempDir()}, quietLogger())
	path, err := r.Render(sampleDataset())
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	html := string(b)
	for _, preset := range []string{Range1M, Range6M, RangeYTD, Range1Y, RangeAll} {
		require.Contains(t, html, `"range":"`+preset+`"`)
	}
	require.Contains(t, html, `dispatchAction({type: "dataZoom"`)
	require.NotContains(t, html, "%MY_ECHARTS%")
}

func TestRangeButtons_StartsFollowPresets(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 365)
	for i := range candles {
		candles[i] = model.Candle{Date: start.AddDate(0, 0, i)}
	}

	js, err := rangeButtons(candles)
	require.NoError(t, err)
	raw := js[strings.Index(js, "[{"):strings.Index(js, "}]")+2]

	var presets []rangePreset
	require.NoError(t, json.Unmarshal([]byte(raw), &presets))
	require.Len(t, presets, 5)
	for _, p := range presets {
		require.Equal(t, ZoomStart(candles, p.Range), p.Start, p.Range)
	}
	require.Equal(t, "All", presets[4].Label)
	require.Zero(t, presets[4].Start)
}

func TestRender_NoBrowserWhenDisabled(t *testing.T) {
	r := NewRenderer(Options{Dir: t.TempDir()}, quietLogger())
	called := false
	r.open = func(string) error { called = true; return nil }

	_, err := r.Render(sampleDataset())
	require.NoError(t, err)
	require.False(t, called)
}

func TestRender_EmptyDataset(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	r := NewRenderer(Options{Dir: dir}, quietLogger())

	_, err := r.Render(model.NewDataset(model.Query{Symbol: "FPT"}))
	require.ErrorIs(t, err, ErrNoData)

	_, statErr := os.Stat(dir)
	require.True(t, os.IsNotExist(statErr))
}

func TestZoomStart(t *testing.T) {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]model.Candle, 365)
	for i := range candles {
		candles[i] = model.Candle{Date: start.AddDate(0, 0, i)}
	}

	require.Equal(t, float32(0), ZoomStart(candles, RangeAll))
	require.Equal(t, float32(0), ZoomStart(candles, RangeYTD))
	require.Equal(t, float32(0), ZoomStart(candles, Range1Y))
	require.Equal(t, float32(0), ZoomStart(nil, Range1M))

	oneMonth := ZoomStart(candles, Range1M)
	require.Greater(t, oneMonth, float32(90))
	require.Less(t, oneMonth, float32(95))

	sixMonths := ZoomStart(candles, "6M")
	require.Greater(t, sixMonths, float32(45))
	require.Less(t, sixMonths, oneMonth)
}

func TestValidRange(t *testing.T) {
	for _, p := range []string{"", "all", "1m", "6M", "ytd", "1y"} {
		require.True(t, ValidRange(p), p)
	}
	require.False(t, ValidRange("2w"))
}
