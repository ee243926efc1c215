package exporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"StockChart/internal/model"
)

// ErrNoData is returned when there is nothing to write.
var ErrNoData = errors.New("no data to save")

// DefaultDir is where spreadsheets land when no directory is configured.
const DefaultDir = "Data"

const sheetName = "Sheet1"

// Writer saves a dataset as an .xlsx workbook, one row per record.
type Writer struct {
	Dir    string
	Logger *logrus.Logger
}

func NewWriter(dir string, logger *logrus.Logger) *Writer {
	if dir == "" {
		dir = DefaultDir
	}
	return &Writer{Dir: dir, Logger: logger}
}

// Path returns the workbook path for a query.
func (w *Writer) Path(q model.Query) string {
	return filepath.Join(w.Dir, q.FileStem()+".xlsx")
}

// Write creates the output directory if needed and writes the workbook. The
// header row is the union of record keys in first-seen order.
func (w *Writer) Write(ds *model.Dataset) (string, error) {
	if ds.Empty() {
		w.log().Info("No data to save.")
		return "", ErrNoData
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return "", fmt.Errorf("stream writer: %w", err)
	}

	columns := Columns(ds.Records)
	header := make([]interface{}, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := sw.SetRow("A1", header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, rec := range ds.Records {
		row := make([]interface{}, len(columns))
		for j, col := range columns {
			v, _ := rec.Get(col)
			row[j] = cellValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return "", fmt.Errorf("flush sheet: %w", err)
	}

	path := w.Path(ds.Query)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	w.log().WithFields(logrus.Fields{"path": path, "rows": ds.Len()}).Infof("Data saved to %s in folder %s.", path, w.Dir)
	return path, nil
}

// Columns returns every key seen across records, in first-seen order.
func Columns(records []model.Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	return cols
}

// cellValue converts a decoded JSON value to something excelize writes natively.
func cellValue(v any) interface{} {
	switch x := v.(type) {
	case nil:
		return ""
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return x.String()
		}
		if d.IsInteger() {
			return d.IntPart()
		}
		f, _ := d.Float64()
		return f
	case string, bool, float64, int, int64:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

func (w *Writer) log() *logrus.Logger {
	if w.Logger == nil {
		return logrus.StandardLogger()
	}
	return w.Logger
}
