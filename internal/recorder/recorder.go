package recorder

import (
	"time"

	"StockChart/internal/model"
)

// Session statuses.
const (
	StatusOK      = "OK"
	StatusPartial = "PARTIAL"
	StatusEmpty   = "EMPTY"
	StatusFailed  = "FAILED"
)

// Session is one collect-and-export run.
type Session struct {
	ID              string
	Symbol          string
	From            time.Time
	To              time.Time
	StartedAt       time.Time
	FinishedAt      time.Time
	Pages           int
	Records         int
	Status          string
	Error           string
	SpreadsheetPath string
	ChartPath       string
	Source          string // "cli", "cron:<job>", "telegram"
}

// Recorder persists session history for later inspection.
type Recorder interface {
	RecordSession(s *Session) error
	RecordPrices(sessionID string, records []model.Record, fields model.FieldMap) error
	RecentSessions(limit int) ([]Session, error)
	Close() error
}
