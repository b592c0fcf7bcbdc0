// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db), mock
}

func TestGetUserProperty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT value FROM user_properties`).
		WithArgs(int64(42), "ai_provider").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("gemini"))

	got := s.GetUserProperty(context.Background(), 42, "ai_provider", "groq")
	assert.Equal(t, "gemini", got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserPropertyMissingReturnsDefault(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT value FROM user_properties`).
		WithArgs(int64(42), "ai_provider").
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	got := s.GetUserProperty(context.Background(), 42, "ai_provider", "groq")
	assert.Equal(t, "groq", got)
}

func TestGetUserPropertyErrorReturnsDefault(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT value FROM user_properties`).
		WillReturnError(errors.New("disk I/O error"))

	got := s.GetUserProperty(context.Background(), 42, "ai_model", "fallback")
	assert.Equal(t, "fallback", got)
}

func TestSetUserProperty(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO user_properties`).
		WithArgs(int64(42), "ai_provider", "anthropic", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, s.SetUserProperty(context.Background(), 42, "ai_provider", "anthropic"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAlert(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO price_alerts`).
		WithArgs(int64(42), int64(-100), "ETH", "price >= 3000").
		WillReturnResult(sqlmock.NewResult(7, 1))

	id, err := s.AddAlert(context.Background(), 42, -100, "ETH", "price >= 3000")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestActiveAlerts(t *testing.T) {
	s, mock := newMockStore(t)

	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, user_id, chat_id, symbol, condition, created_at FROM price_alerts`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "chat_id", "symbol", "condition", "created_at"}).
			AddRow(int64(1), int64(42), int64(-100), "BTC", "price >= 100000", created).
			AddRow(int64(2), int64(43), int64(-100), "ETH", "price < 2000", created))

	alerts, err := s.ActiveAlerts(context.Background())
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "BTC", alerts[0].Symbol)
	assert.Equal(t, "price < 2000", alerts[1].Condition)
}

func TestMarkAlertFired(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE price_alerts SET fired_at`).
		WithArgs(sqlmock.AnyArg(), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.MarkAlertFired(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
