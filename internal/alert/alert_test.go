// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package alert

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobius-labs/mobius/internal/market"
	"github.com/mobius-labs/mobius/internal/store"
)

func TestCompileCondition(t *testing.T) {
	for _, cond := range []string{
		"price >= 3000",
		"price < 0.5",
		"price > 100 and price < 200",
	} {
		_, err := CompileCondition(cond)
		assert.NoError(t, err, "condition %q", cond)
	}
}

func TestCompileConditionRejectsInvalid(t *testing.T) {
	for _, cond := range []string{
		"",
		"price +",
		"volume > 100",
		"price",
	} {
		_, err := CompileCondition(cond)
		assert.Error(t, err, "condition %q", cond)
	}
}

func TestEvalCondition(t *testing.T) {
	program, err := CompileCondition("price >= 3000")
	require.NoError(t, err)

	hit, err := EvalCondition(program, 3500)
	require.NoError(t, err)
	assert.True(t, hit)

	hit, err = EvalCondition(program, 2999.99)
	require.NoError(t, err)
	assert.False(t, hit)
}

type capturingNotifier struct {
	chatIDs []int64
	texts   []string
}

func (n *capturingNotifier) SendAlert(chatID int64, text string) {
	n.chatIDs = append(n.chatIDs, chatID)
	n.texts = append(n.texts, text)
}

func TestCheckOnceFiresAndMarks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	created := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, user_id, chat_id, symbol, condition, created_at FROM price_alerts`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "chat_id", "symbol", "condition", "created_at"}).
			AddRow(int64(1), int64(42), int64(-100), "ETH", "price >= 3000", created).
			AddRow(int64(2), int64(42), int64(-100), "ETH", "price >= 10000", created))
	mock.ExpectExec(`UPDATE price_alerts SET fired_at`).
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	coingecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"ethereum":{"usd":3450.25,"usd_24h_change":1.2}}`))
	}))
	defer coingecko.Close()

	notifier := &capturingNotifier{}
	checker := NewChecker(store.NewWithDB(db), market.NewClient(coingecko.URL, ""), notifier, time.Minute)
	checker.CheckOnce(context.Background())

	// Only the satisfied condition fires; the 10000 threshold stays armed.
	require.Len(t, notifier.texts, 1)
	assert.Equal(t, int64(-100), notifier.chatIDs[0])
	assert.Contains(t, notifier.texts[0], "ETH")
	assert.Contains(t, notifier.texts[0], "3450.25")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOnceSkipsSymbolOnQuoteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	created := time.Now().UTC()
	mock.ExpectQuery(`SELECT id, user_id, chat_id, symbol, condition, created_at FROM price_alerts`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "chat_id", "symbol", "condition", "created_at"}).
			AddRow(int64(1), int64(42), int64(-100), "BTC", "price >= 1", created))

	coingecko := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer coingecko.Close()

	notifier := &capturingNotifier{}
	checker := NewChecker(store.NewWithDB(db), market.NewClient(coingecko.URL, ""), notifier, time.Minute)
	checker.CheckOnce(context.Background())

	assert.Empty(t, notifier.texts)
}

func TestCheckOnceNoAlerts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT id, user_id, chat_id, symbol, condition, created_at FROM price_alerts`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "user_id", "chat_id", "symbol", "condition", "created_at"}))

	notifier := &capturingNotifier{}
	checker := NewChecker(store.NewWithDB(db), market.NewClient("http://127.0.0.1:0", ""), notifier, time.Minute)
	checker.CheckOnce(context.Background())

	assert.Empty(t, notifier.texts)
}
