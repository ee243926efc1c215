package chart

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"StockChart/internal/calculator"
	"StockChart/internal/model"
)

// ErrNoData is returned when no record can be plotted.
var ErrNoData = errors.New("no data to plot")

// Range presets for the initial zoom window.
const (
	RangeAll   = "all"
	Range1M    = "1m"
	Range6M    = "6m"
	RangeYTD   = "ytd"
	Range1Y    = "1y"
	dateFormat = "2006-01-02"
)

// ValidRange reports whether preset is a known range preset.
func ValidRange(preset string) bool {
	switch strings.ToLower(preset) {
	case "", RangeAll, Range1M, Range6M, RangeYTD, Range1Y:
		return true
	}
	return false
}

// Options configures the rendered page.
type Options struct {
	Dir         string
	RangePreset string
	MAPeriods   []int
	Fields      model.FieldMap
	OpenBrowser bool
	Width       string
	Height      string
}

// Renderer draws a candlestick grid above a volume grid in one chart, sharing
// the date axis zoom, and writes it as an HTML page.
type Renderer struct {
	Options Options
	Logger  *logrus.Logger

	open func(path string) error
}

func NewRenderer(o Options, logger *logrus.Logger) *Renderer {
	if o.Dir == "" {
		o.Dir = "Data"
	}
	if o.Width == "" {
		o.Width = "800px"
	}
	if o.Height == "" {
		o.Height = "700px"
	}
	o.Fields = o.Fields.WithDefaults()
	return &Renderer{Options: o, Logger: logger, open: browser.OpenFile}
}

// Path returns the HTML path for a query.
func (r *Renderer) Path(q model.Query) string {
	return filepath.Join(r.Options.Dir, q.FileStem()+".html")
}

// Render writes the chart page and, if configured, opens it in the system
// viewer. Records with an unparseable date are left out of the chart.
func (r *Renderer) Render(ds *model.Dataset) (string, error) {
	candles, skipped := ds.Candles(r.Options.Fields)
	log := r.log().WithField("symbol", ds.Query.Symbol)
	if skipped > 0 {
		log.WithField("skipped", skipped).Warn("records without a usable date or price left out of chart")
	}
	if len(candles) == 0 {
		return "", ErrNoData
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })

	page, err := r.buildPage(ds.Query.Symbol, candles)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.Options.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := r.Path(ds.Query)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create chart file: %w", err)
	}
	if err := page.Render(f); err != nil {
		f.Close()
		return "", fmt.Errorf("render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close chart file: %w", err)
	}
	log.WithField("path", path).Info("chart written")

	if r.Options.OpenBrowser && r.open != nil {
		if err := r.open(path); err != nil {
			log.WithError(err).Warn("open chart viewer failed")
		}
	}
	return path, nil
}

func (r *Renderer) buildPage(symbol string, candles []model.Candle) (*components.Page, error) {
	dates := make([]string, len(candles))
	klineData := make([]opts.KlineData, len(candles))
	volData := make([]opts.BarData, len(candles))
	for i, c := range candles {
		dates[i] = c.Date.Format(dateFormat)
		// echarts order: open, close, lowest, highest
		klineData[i] = opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}}
		volData[i] = opts.BarData{Value: c.Volume}
	}

	// One zoom window drives both grids.
	start := ZoomStart(candles, r.Options.RangePreset)
	zoom := []opts.DataZoom{
		{Type: "slider", Start: start, End: 100, XAxisIndex: []int{0, 1}},
		{Type: "inside", Start: start, End: 100, XAxisIndex: []int{0, 1}},
	}

	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       fmt.Sprintf("%s PT1D Candlestick Chart", symbol),
			Width:           r.Options.Width,
			Height:          r.Options.Height,
			BackgroundColor: "#B0C4DE",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s Price", symbol),
			Subtitle: fmt.Sprintf("%s PT1D Candlestick Chart", symbol),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		// price row above volume row, 0.7/0.2 of the plot height
		charts.WithGridOpts(
			opts.Grid{Left: "10%", Right: "8%", Top: "12%", Height: "52%"},
			opts.Grid{Left: "10%", Right: "8%", Top: "70%", Height: "15%"},
		),
		charts.WithYAxisOpts(opts.YAxis{Name: "Price (VND/share)", Scale: opts.Bool(true)}),
		charts.WithDataZoomOpts(zoom...),
	)
	kline.ExtendXAxis(opts.XAxis{GridIndex: 1, Data: dates, AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}})
	kline.ExtendYAxis(opts.YAxis{GridIndex: 1, Name: "Volume", SplitNumber: 2})
	kline.SetXAxis(dates).AddSeries("OHLC", klineData)

	for _, period := range r.Options.MAPeriods {
		line, err := maLine(dates, candles, period)
		if err != nil {
			r.log().WithError(err).Warnf("skip MA%d overlay", period)
			continue
		}
		kline.Overlap(line)
	}

	bar := charts.NewBar()
	bar.SetXAxis(dates).AddSeries("Volume", volData,
		charts.WithBarChartOpts(opts.BarChart{XAxisIndex: 1, YAxisIndex: 1}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "red"}),
	)
	kline.Overlap(bar)

	js, err := rangeButtons(candles)
	if err != nil {
		return nil, err
	}
	kline.AddJSFuncs(js)

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s PT1D Candlestick Chart", symbol)
	page.AddCharts(kline)
	return page, nil
}

// rangePreset is one button of the in-page range selector.
type rangePreset struct {
	Range string  `json:"range"`
	Label string  `json:"label"`
	Start float32 `json:"start"`
}

var rangeLabels = []struct{ preset, label string }{
	{Range1M, "1M"},
	{Range6M, "6M"},
	{RangeYTD, "YTD"},
	{Range1Y, "1Y"},
	{RangeAll, "All"},
}

// rangeButtons returns a script that puts one button per range preset above
// the chart. Each button moves the shared zoom window.
func rangeButtons(candles []model.Candle) (string, error) {
	presets := make([]rangePreset, len(rangeLabels))
	for i, l := range rangeLabels {
		presets[i] = rangePreset{Range: l.preset, Label: l.label, Start: ZoomStart(candles, l.preset)}
	}
	b, err := json.Marshal(presets)
	if err != nil {
		return "", fmt.Errorf("encode range presets: %w", err)
	}
	return `(function () {` +
		`var chart = %MY_ECHARTS%;` +
		`var bar = document.createElement("div");` +
		`bar.className = "range-selector";` +
		`bar.style.cssText = "margin:8px 0;text-align:center";` +
		string(b) + `.forEach(function (p) {` +
		`var btn = document.createElement("button");` +
		`btn.textContent = p.label;` +
		`btn.dataset.range = p.range;` +
		`btn.style.margin = "0 4px";` +
		`btn.onclick = function () { chart.dispatchAction({type: "dataZoom", start: p.start, end: 100}); };` +
		`bar.appendChild(btn);` +
		`});` +
		`var dom = chart.getDom();` +
		`dom.parentNode.insertBefore(bar, dom);` +
		`})();`, nil
}

func maLine(dates []string, candles []model.Candle, period int) (*charts.Line, error) {
	sma, err := calculator.SMASeries(calculator.Closes(candles), period)
	if err != nil {
		return nil, err
	}
	data := make([]opts.LineData, len(sma))
	for i, v := range sma {
		if math.IsNaN(v) {
			data[i] = opts.LineData{Value: "-"}
			continue
		}
		data[i] = opts.LineData{Value: v}
	}
	line := charts.NewLine()
	line.SetXAxis(dates).AddSeries(fmt.Sprintf("MA%d", period), data)
	return line, nil
}

// ZoomStart converts a range preset into the start percentage of the zoom
// window, measured back from the last candle. candles must be date-sorted.
func ZoomStart(candles []model.Candle, preset string) float32 {
	if len(candles) == 0 {
		return 0
	}
	last := candles[len(candles)-1].Date
	var cutoff time.Time
	switch strings.ToLower(preset) {
	case Range1M:
		cutoff = last.AddDate(0, -1, 0)
	case Range6M:
		cutoff = last.AddDate(0, -6, 0)
	case Range1Y:
		cutoff = last.AddDate(-1, 0, 0)
	case RangeYTD:
		cutoff = time.Date(last.Year(), 1, 1, 0, 0, 0, 0, last.Location())
	default:
		return 0
	}
	idx := sort.Search(len(candles), func(i int) bool { return !candles[i].Date.Before(cutoff) })
	return float32(idx) / float32(len(candles)) * 100
}

func (r *Renderer) log() *logrus.Logger {
	if r.Logger == nil {
		return logrus.StandardLogger()
	}
	return r.Logger
}
