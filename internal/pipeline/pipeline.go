package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"StockChart/internal/calculator"
	"StockChart/internal/chart"
	"StockChart/internal/collector"
	"StockChart/internal/config"
	"StockChart/internal/exporter"
	"StockChart/internal/model"
	"StockChart/internal/recorder"
)

// Collector gathers every record for a query.
type Collector interface {
	Collect(ctx context.Context, q model.Query) (*model.Dataset, error)
}

// Writer saves a dataset and returns the written path.
type Writer interface {
	Write(ds *model.Dataset) (string, error)
}

// Renderer draws a dataset and returns the written path.
type Renderer interface {
	Render(ds *model.Dataset) (string, error)
}

// Summary describes the outcome of one run.
type Summary struct {
	SessionID       string
	Query           model.Query
	Source          string
	Pages           int
	Records         int
	Status          string
	Err             error
	SpreadsheetPath string
	ChartPath       string
	High            float64
	Low             float64
	LastClose       float64
	LastDate        time.Time
	Position        float64         // last close within [Low, High], 0..1
	SMA             map[int]float64 // latest SMA per period, when enough data
	Elapsed         time.Duration
}

// HasPrices reports whether High, Low and LastClose were computed.
func (s *Summary) HasPrices() bool { return !s.LastDate.IsZero() }

// Runner wires collection, export, rendering and history for one query.
type Runner struct {
	Collector Collector
	Writer    Writer
	Renderer  Renderer
	Recorder  recorder.Recorder
	Fields    model.FieldMap
	MAPeriods []int
	Logger    *logrus.Logger

	now func() time.Time
}

func NewRunner(c Collector, w Writer, r Renderer, rec recorder.Recorder, fields model.FieldMap, logger *logrus.Logger) *Runner {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Runner{
		Collector: c,
		Writer:    w,
		Renderer:  r,
		Recorder:  rec,
		Fields:    fields.WithDefaults(),
		Logger:    logger,
		now:       time.Now,
	}
}

// FromConfig builds a Runner against the SSI service. openBrowser controls
// whether the chart is shown once written; the daemon passes false.
func FromConfig(cfg *config.Config, logger *logrus.Logger, openBrowser bool) *Runner {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	fetcher := collector.NewSSIFetcher(cfg.DataSource.BaseURL, cfg.Proxy, cfg.Timeout(), logger)
	col := collector.NewCollector(fetcher, cfg.CollectorOptions(), logger)
	w := exporter.NewWriter(cfg.Output.Dir, logger)
	r := chart.NewRenderer(chart.Options{
		Dir:         cfg.Output.Dir,
		RangePreset: cfg.Output.RangePreset,
		MAPeriods:   cfg.Output.MAPeriods,
		Fields:      cfg.Fields,
		OpenBrowser: openBrowser && cfg.Output.OpenBrowser,
	}, logger)

	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	runner := NewRunner(col, w, r, rec, cfg.Fields, logger)
	runner.MAPeriods = cfg.Output.MAPeriods
	return runner
}

// Close releases the recorder.
func (p *Runner) Close() error {
	return p.Recorder.Close()
}

// Run collects the query, then writes the spreadsheet and renders the chart
// concurrently from the same dataset. A partial dataset from a failed
// collection is still exported; the collection error is returned alongside
// the summary. An empty dataset is reported, not treated as a failure.
func (p *Runner) Run(ctx context.Context, q model.Query, source string) (*Summary, error) {
	now := p.now
	if now == nil {
		now = time.Now
	}
	start := now()
	sum := &Summary{SessionID: uuid.NewString(), Query: q, Source: source}
	log := p.log().WithFields(logrus.Fields{"session": sum.SessionID, "symbol": q.Symbol})
	log.Infof("fetching %s from %s to %s", q.Symbol, q.FromParam(), q.ToParam())

	ds, collectErr := p.Collector.Collect(ctx, q)
	switch {
	case collectErr == nil:
	case errors.Is(collectErr, collector.ErrMaxPagesExceeded):
		log.WithError(collectErr).Error("collection hit the page bound, keeping partial data")
	default:
		log.WithError(collectErr).Warn("collection ended early, keeping partial data")
	}
	if ds == nil {
		ds = model.NewDataset(q)
	}
	sum.Pages = ds.Pages
	sum.Records = ds.Len()

	if ds.Empty() {
		log.Info("no data returned for this range")
	}
	exportErr := p.export(ds, sum, log)
	p.fillStats(ds, sum)

	sum.Err = errors.Join(collectErr, exportErr)
	sum.Status = status(ds, collectErr, exportErr)
	sum.Elapsed = now().Sub(start)

	p.record(ds, sum, start, log)
	log.WithFields(logrus.Fields{
		"records": sum.Records,
		"pages":   sum.Pages,
		"status":  sum.Status,
	}).Info("session finished")
	return sum, sum.Err
}

func (p *Runner) export(ds *model.Dataset, sum *Summary, log logrus.FieldLogger) error {
	var g errgroup.Group
	if p.Writer != nil {
		g.Go(func() error {
			path, err := p.Writer.Write(ds)
			if err != nil {
				if errors.Is(err, exporter.ErrNoData) {
					return nil
				}
				return fmt.Errorf("write spreadsheet: %w", err)
			}
			sum.SpreadsheetPath = path
			return nil
		})
	}
	if p.Renderer != nil {
		g.Go(func() error {
			path, err := p.Renderer.Render(ds)
			if err != nil {
				if errors.Is(err, chart.ErrNoData) {
					log.Warn("no plottable rows, chart skipped")
					return nil
				}
				return fmt.Errorf("render chart: %w", err)
			}
			sum.ChartPath = path
			return nil
		})
	}
	return g.Wait()
}

func (p *Runner) fillStats(ds *model.Dataset, sum *Summary) {
	candles, _ := ds.Candles(p.Fields)
	high, low, err := calculator.PeriodRange(candles)
	if err != nil {
		return
	}
	sum.High, sum.Low = high, low

	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Date.Before(candles[j].Date) })
	last := candles[len(candles)-1]
	sum.LastDate, sum.LastClose = last.Date, last.Close
	sum.Position, _ = calculator.RangePosition(last.Close, high, low)

	closes := calculator.Closes(candles)
	for _, period := range p.MAPeriods {
		v, err := calculator.CalculateSMA(closes, period)
		if err != nil {
			continue
		}
		if sum.SMA == nil {
			sum.SMA = make(map[int]float64)
		}
		sum.SMA[period] = v
	}
}

func (p *Runner) record(ds *model.Dataset, sum *Summary, start time.Time, log logrus.FieldLogger) {
	s := &recorder.Session{
		ID:              sum.SessionID,
		Symbol:          sum.Query.Symbol,
		From:            sum.Query.From,
		To:              sum.Query.To,
		StartedAt:       start,
		FinishedAt:      start.Add(sum.Elapsed),
		Pages:           sum.Pages,
		Records:         sum.Records,
		Status:          sum.Status,
		SpreadsheetPath: sum.SpreadsheetPath,
		ChartPath:       sum.ChartPath,
		Source:          sum.Source,
	}
	if sum.Err != nil {
		s.Error = sum.Err.Error()
	}
	if err := p.Recorder.RecordSession(s); err != nil {
		log.WithError(err).Warn("record session failed")
		return
	}
	if err := p.Recorder.RecordPrices(sum.SessionID, ds.Records, p.Fields); err != nil {
		log.WithError(err).Warn("record prices failed")
	}
}

func status(ds *model.Dataset, collectErr, exportErr error) string {
	switch {
	case ds.Empty() && collectErr != nil:
		return recorder.StatusFailed
	case ds.Empty():
		return recorder.StatusEmpty
	case exportErr != nil:
		return recorder.StatusFailed
	case collectErr != nil:
		return recorder.StatusPartial
	default:
		return recorder.StatusOK
	}
}

func (p *Runner) log() *logrus.Logger {
	if p.Logger == nil {
		return logrus.StandardLogger()
	}
	return p.Logger
}
