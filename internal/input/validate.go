package input

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"StockChart/internal/model"
)

var (
	ErrInvalidSymbol = errors.New("invalid stock symbol: it must be exactly 3 characters")
	ErrInvalidDate   = errors.New("invalid date: it must be in the format dd/mm/yyyy")
	ErrDateOrder     = errors.New("end date is before start date")
)

// NormalizeSymbol trims and upper-cases a ticker.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ValidateSymbol reports whether symbol is exactly three characters long.
func ValidateSymbol(symbol string) bool {
	return utf8.RuneCountInString(symbol) == 3
}

// ValidateDate reports whether s is a real calendar date in dd/mm/yyyy.
func ValidateDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// ParseDate parses a dd/mm/yyyy date. Impossible dates such as 31/02 fail.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// NewQuery validates raw text fields and builds a Query.
func NewQuery(symbol, from, to string) (model.Query, error) {
	start, err := ParseDate(from)
	if err != nil {
		return model.Query{}, err
	}
	end, err := ParseDate(to)
	if err != nil {
		return model.Query{}, err
	}
	return BuildQuery(symbol, start, end)
}

// BuildQuery validates an already parsed range. Dates are truncated to the day.
func BuildQuery(symbol string, from, to time.Time) (model.Query, error) {
	symbol = NormalizeSymbol(symbol)
	if !ValidateSymbol(symbol) {
		return model.Query{}, fmt.Errorf("%w: %q", ErrInvalidSymbol, symbol)
	}
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) {
		return model.Query{}, fmt.Errorf("%w: %s < %s", ErrDateOrder, to.Format(model.DateLayout), from.Format(model.DateLayout))
	}
	return model.Query{Symbol: symbol, From: from, To: to}, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
