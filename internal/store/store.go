// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store persists per-user key-value properties (provider
// preferences, API keys, portfolio entries) and price alerts in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_properties (
	user_id INTEGER NOT NULL,
	key     TEXT    NOT NULL,
	value   TEXT    NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (user_id, key)
);
CREATE TABLE IF NOT EXISTS price_alerts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	chat_id    INTEGER NOT NULL,
	symbol     TEXT    NOT NULL,
	condition  TEXT    NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	fired_at   TIMESTAMP
);
`

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the sqlite database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err = db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing database handle. Tests use it with sqlmock.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetUserProperty returns the stored value for (userID, key), or def when
// absent. Lookup errors are logged and fall back to def; callers on the
// routing path must never fail because of the store.
func (s *Store) GetUserProperty(ctx context.Context, userID int64, key, def string) string {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM user_properties WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Errorf("store: get property %q for user %d: %v", key, userID, err)
		}
		return def
	}
	return value
}

// SetUserProperty upserts a property value.
func (s *Store) SetUserProperty(ctx context.Context, userID int64, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_properties (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set property %q for user %d: %w", key, userID, err)
	}
	return nil
}

// Alert is a stored price alert. Condition is an expression over the
// variable "price", e.g. "price >= 3000".
type Alert struct {
	ID        int64
	UserID    int64
	ChatID    int64
	Symbol    string
	Condition string
	CreatedAt time.Time
}

// AddAlert stores a new price alert and returns its id.
func (s *Store) AddAlert(ctx context.Context, userID, chatID int64, symbol, condition string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO price_alerts (user_id, chat_id, symbol, condition) VALUES (?, ?, ?, ?)`,
		userID, chatID, symbol, condition)
	if err != nil {
		return 0, fmt.Errorf("add alert: %w", err)
	}
	return res.LastInsertId()
}

// ActiveAlerts returns alerts that have not fired yet.
func (s *Store) ActiveAlerts(ctx context.Context) ([]Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, chat_id, symbol, condition, created_at FROM price_alerts WHERE fired_at IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer func() {
		if errClose := rows.Close(); errClose != nil {
			log.Errorf("store: close alert rows: %v", errClose)
		}
	}()

	var out []Alert
	for rows.Next() {
		var a Alert
		if err = rows.Scan(&a.ID, &a.UserID, &a.ChatID, &a.Symbol, &a.Condition, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAlertFired records that an alert was delivered.
func (s *Store) MarkAlertFired(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE price_alerts SET fired_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark alert %d fired: %w", id, err)
	}
	return nil
}
