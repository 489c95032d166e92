package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage is an append-only audit trail of confirmed payments and session
// lifecycle events. The in-memory registry remains the source of truth; rows
// written here are operational record only and are never loaded back.
type Storage struct {
	db *sql.DB
}

// Session lifecycle events recorded in the trail.
const (
	EventActivated = "activada"
	EventEnded     = "finalizada"
	EventExpired   = "expirada_extendida"
)

// New opens (creating if needed) the audit database.
func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS confirmed_payments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			user_name TEXT NOT NULL,
			service TEXT NOT NULL,
			session_type TEXT NOT NULL,
			price_usd REAL NOT NULL,
			confirmed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_confirmed_payments_chat_id ON confirmed_payments(chat_id)`,

		`CREATE TABLE IF NOT EXISTS session_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id INTEGER NOT NULL,
			session_type TEXT NOT NULL,
			event TEXT NOT NULL,
			at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_chat_id ON session_events(chat_id)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// RecordConfirmedPayment appends a confirmed payment to the trail.
func (s *Storage) RecordConfirmedPayment(chatID int64, userName, service, sessionType string, priceUSD float64) error {
	_, err := s.db.Exec(
		`INSERT INTO confirmed_payments (chat_id, user_name, service, session_type, price_usd, confirmed_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		chatID, userName, service, sessionType, priceUSD, time.Now().Unix(),
	)
	return err
}

// RecordSessionEvent appends a session lifecycle event to the trail.
func (s *Storage) RecordSessionEvent(chatID int64, sessionType, event string) error {
	_, err := s.db.Exec(
		`INSERT INTO session_events (chat_id, session_type, event, at) VALUES (?, ?, ?, ?)`,
		chatID, sessionType, event, time.Now().Unix(),
	)
	return err
}

// CountConfirmedPayments returns the all-time number of confirmed payments.
func (s *Storage) CountConfirmedPayments() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM confirmed_payments`).Scan(&count)
	return count, err
}
