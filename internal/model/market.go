package model

import (
	"fmt"
	"time"
)

// Candle represents a single daily candlestick bar.
type Candle struct {
	Date   time.Time // zero when the record's date could not be parsed
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// FieldMap names the record fields that carry the candle values.
type FieldMap struct {
	Date   string `yaml:"date"`
	Open   string `yaml:"open"`
	High   string `yaml:"high"`
	Low    string `yaml:"low"`
	Close  string `yaml:"close"`
	Volume string `yaml:"volume"`
}

// DefaultFieldMap matches the SSI stock-price payload.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Date:   "tradingDate",
		Open:   "openPrice",
		High:   "highestPrice",
		Low:    "lowestPrice",
		Close:  "closePrice",
		Volume: "totalMatchVol",
	}
}

// WithDefaults fills empty field names from DefaultFieldMap.
func (m FieldMap) WithDefaults() FieldMap {
	d := DefaultFieldMap()
	if m.Date == "" {
		m.Date = d.Date
	}
	if m.Open == "" {
		m.Open = d.Open
	}
	if m.High == "" {
		m.High = d.High
	}
	if m.Low == "" {
		m.Low = d.Low
	}
	if m.Close == "" {
		m.Close = d.Close
	}
	if m.Volume == "" {
		m.Volume = d.Volume
	}
	return m
}

// RecordDateLayouts are tried in order when parsing a record's trading date.
var RecordDateLayouts = []string{
	DateLayout,
	"2006-01-02",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Candle extracts a Candle from the record. An unparseable date does not fail
// the conversion; it leaves Date zero. Missing or non-numeric price and volume
// fields do.
func (r Record) Candle(fields FieldMap) (Candle, error) {
	var c Candle
	if t, err := r.Time(fields.Date, RecordDateLayouts...); err == nil {
		c.Date = t
	}

	targets := []struct {
		name string
		dst  *float64
	}{
		{fields.Open, &c.Open},
		{fields.High, &c.High},
		{fields.Low, &c.Low},
		{fields.Close, &c.Close},
		{fields.Volume, &c.Volume},
	}
	for _, t := range targets {
		v, err := r.Float(t.name)
		if err != nil {
			return Candle{}, fmt.Errorf("candle: %w", err)
		}
		*t.dst = v
	}
	return c, nil
}
