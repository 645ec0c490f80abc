package prices

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/clients/alphavantage"
)

// HistoryStore persists daily closes per symbol so the performance
// endpoint can serve a trailing window without refetching, and can
// degrade to stored history when the source is down.
type HistoryStore struct {
	db  *sql.DB
	log zerolog.Logger
}

const historySchema = `
CREATE TABLE IF NOT EXISTS daily_closes (
    symbol TEXT NOT NULL,
    date TEXT NOT NULL,
    close TEXT NOT NULL,
    PRIMARY KEY (symbol, date)
);
`

// NewHistoryStore opens (or creates) the price history database
func NewHistoryStore(path string, log zerolog.Logger) (*HistoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	if _, err := db.Exec(historySchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &HistoryStore{
		db:  db,
		log: log.With().Str("component", "history_store").Logger(),
	}, nil
}

// Close closes the history database
func (h *HistoryStore) Close() error {
	return h.db.Close()
}

// Conn exposes the underlying connection for health checks
func (h *HistoryStore) Conn() *sql.DB {
	return h.db
}

// UpsertCloses stores daily closes for a symbol, replacing existing
// rows for the same date.
func (h *HistoryStore) UpsertCloses(symbol string, closes []alphavantage.DailyClose) error {
	if len(closes) == 0 {
		return nil
	}

	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_closes (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT(symbol, date) DO UPDATE SET close = excluded.close`)
	if err != nil {
		return fmt.Errorf("failed to prepare history upsert: %w", err)
	}
	defer stmt.Close()

	for _, c := range closes {
		if _, err := stmt.Exec(symbol, c.Date.Format("2006-01-02"), c.Close.String()); err != nil {
			return fmt.Errorf("failed to upsert close for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit history upsert: %w", err)
	}

	return nil
}

// GetCloses returns stored closes for a symbol since the given date,
// oldest first.
func (h *HistoryStore) GetCloses(symbol string, since time.Time) ([]alphavantage.DailyClose, error) {
	rows, err := h.db.Query(`
		SELECT date, close FROM daily_closes
		WHERE symbol = ? AND date >= ?
		ORDER BY date ASC`,
		symbol, since.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes: %w", err)
	}
	defer rows.Close()

	var closes []alphavantage.DailyClose
	for rows.Next() {
		var dateStr, closeStr string
		if err := rows.Scan(&dateStr, &closeStr); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}

		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored date %q: %w", dateStr, err)
		}

		price, err := decimal.NewFromString(closeStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored close %q: %w", closeStr, err)
		}

		closes = append(closes, alphavantage.DailyClose{Date: date, Close: price})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}

	return closes, nil
}
