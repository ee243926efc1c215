package model

import "errors"

// PageOutcome tags the result of a single page fetch.
type PageOutcome int

const (
	PageRecords PageOutcome = iota // success with at least one record
	PageEmpty                      // success, no more data
	PageFailed                     // transport or upstream failure, retryable
)

func (o PageOutcome) String() string {
	switch o {
	case PageRecords:
		return "RECORDS"
	case PageEmpty:
		return "EMPTY"
	case PageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Page is the tagged result of one page fetch.
type Page struct {
	Outcome PageOutcome
	Records []Record
	Err     error // set only when Outcome is PageFailed
}

// FilledPage wraps fetched records; an empty slice yields an empty page.
func FilledPage(records []Record) Page {
	if len(records) == 0 {
		return EmptyPage()
	}
	return Page{Outcome: PageRecords, Records: records}
}

func EmptyPage() Page { return Page{Outcome: PageEmpty} }

func FailedPage(err error) Page {
	if err == nil {
		err = errors.New("unknown page failure")
	}
	return Page{Outcome: PageFailed, Err: err}
}
