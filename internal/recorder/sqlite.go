package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"StockChart/internal/model"
)

// SQLiteRecorder persists session history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *logrus.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *logrus.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so the history can be read while a session is writing.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetch_sessions (
			id               TEXT PRIMARY KEY,
			symbol           TEXT NOT NULL,
			from_date        TEXT,
			to_date          TEXT,
			started_at       INTEGER NOT NULL,
			finished_at      INTEGER,
			pages            INTEGER,
			records          INTEGER,
			status           TEXT,
			error            TEXT,
			spreadsheet_path TEXT,
			chart_path       TEXT,
			source           TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_started ON fetch_sessions(started_at)`,

		`CREATE TABLE IF NOT EXISTS price_records (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id   TEXT NOT NULL,
			seq          INTEGER NOT NULL,
			trading_date TEXT,
			open_price   REAL,
			high_price   REAL,
			low_price    REAL,
			close_price  REAL,
			volume       REAL,
			payload      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prices_session ON price_records(session_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordSession inserts or updates the session row.
func (r *SQLiteRecorder) RecordSession(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var finished any
	if !s.FinishedAt.IsZero() {
		finished = s.FinishedAt.Unix()
	}
	_, err := r.db.Exec(`INSERT OR REPLACE INTO fetch_sessions
		(id, symbol, from_date, to_date, started_at, finished_at, pages, records,
		 status, error, spreadsheet_path, chart_path, source)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.ID, s.Symbol, s.From.Format(time.DateOnly), s.To.Format(time.DateOnly),
		s.StartedAt.Unix(), finished, s.Pages, s.Records,
		s.Status, s.Error, s.SpreadsheetPath, s.ChartPath, s.Source,
	)
	return err
}

// RecordPrices stores every record of a session in one transaction. Rows whose
// prices cannot be read are kept with NULL price columns; the JSON payload is
// always stored.
func (r *SQLiteRecorder) RecordPrices(sessionID string, records []model.Record, fields model.FieldMap) error {
	if len(records) == 0 {
		return nil
	}
	fields = fields.WithDefaults()

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO price_records
		(session_id, seq, trading_date, open_price, high_price, low_price, close_price, volume, payload)
		VALUES (?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("marshal record %d: %w", i, err)
		}
		var date, open, high, low, closePrice, volume any
		if c, err := rec.Candle(fields); err == nil {
			if !c.Date.IsZero() {
				date = c.Date.Format(time.DateOnly)
			}
			open, high, low, closePrice, volume = c.Open, c.High, c.Low, c.Close, c.Volume
		}
		if _, err := stmt.Exec(sessionID, i, date, open, high, low, closePrice, volume, string(payload)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// RecentSessions returns the latest sessions, newest first.
func (r *SQLiteRecorder) RecentSessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Query(`SELECT id, symbol, from_date, to_date, started_at,
		COALESCE(finished_at, 0), pages, records, status, error,
		spreadsheet_path, chart_path, source
		FROM fetch_sessions ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			s                 Session
			from, to          string
			started, finished int64
		)
		if err := rows.Scan(&s.ID, &s.Symbol, &from, &to, &started, &finished,
			&s.Pages, &s.Records, &s.Status, &s.Error,
			&s.SpreadsheetPath, &s.ChartPath, &s.Source); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.From, _ = time.Parse(time.DateOnly, from)
		s.To, _ = time.Parse(time.DateOnly, to)
		s.StartedAt = time.Unix(started, 0)
		if finished > 0 {
			s.FinishedAt = time.Unix(finished, 0)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
