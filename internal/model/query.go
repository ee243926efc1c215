package model

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the dd/mm/yyyy format used for input and by the price service.
const DateLayout = "02/01/2006"

// Query is a validated symbol and date range. Every front end produces one.
type Query struct {
	Symbol string
	From   time.Time
	To     time.Time
}

// FromParam returns the start date in DateLayout.
func (q Query) FromParam() string { return q.From.Format(DateLayout) }

// ToParam returns the end date in DateLayout.
func (q Query) ToParam() string { return q.To.Format(DateLayout) }

// FileStem is the base name shared by exported files: SYMBOL_ddmmyyyy_ddmmyyyy.
func (q Query) FileStem() string {
	return q.Symbol + "_" + digitsOnly(q.FromParam()) + "_" + digitsOnly(q.ToParam())
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// FetchRequest describes one page request.
type FetchRequest struct {
	Symbol   string
	From     time.Time
	To       time.Time
	PageSize int
	Page     int // 1-based
}

// Params encodes the request as price-service query parameters.
func (r FetchRequest) Params() url.Values {
	v := url.Values{}
	v.Set("symbol", r.Symbol)
	v.Set("page", strconv.Itoa(r.Page))
	v.Set("pageSize", strconv.Itoa(r.PageSize))
	v.Set("fromDate", r.From.Format(DateLayout))
	v.Set("toDate", r.To.Format(DateLayout))
	return v
}
