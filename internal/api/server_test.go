// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/mobius-labs/mobius/internal/config"
	"github.com/mobius-labs/mobius/internal/provider"
	"github.com/mobius-labs/mobius/internal/ratelimit"
)

type nilStore struct{}

func (nilStore) GetUserProperty(_ context.Context, _ int64, _, def string) string { return def }
func (nilStore) SetUserProperty(_ context.Context, _ int64, _, _ string) error    { return nil }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := &config.Config{
		Providers: map[string]config.ProviderConfig{},
		StatusAPI: config.StatusAPIConfig{SecretKey: string(hashed)},
	}
	limiter := ratelimit.NewLimiter(provider.LimitTable())
	manager := provider.NewManager(cfg, nilStore{}, limiter)
	return NewServer(cfg, limiter, manager), "hunter2"
}

func TestHealthzIsPublic(t *testing.T) {
	server, _ := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	server.engine().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", gjson.Get(w.Body.String(), "status").String())
}

func TestStatusRequiresSecretKey(t *testing.T) {
	server, secret := newTestServer(t)
	engine := server.engine()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, gjson.Get(w.Body.String(), "providers").Exists())
}

func TestLimitsListsModelTable(t *testing.T) {
	server, secret := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/limits", nil)
	req.Header.Set("Authorization", "Bearer "+secret)
	server.engine().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	models := gjson.Get(w.Body.String(), "models")
	require.True(t, models.IsArray())
	assert.Equal(t, len(provider.Models), len(models.Array()))
}
