// Copyright 2026 The Mobius Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ratelimit implements the per-(provider, model) sliding-window
// limiter gating outbound LLM calls. The window covers the last 60
// seconds for request and token budgets; daily request counters reset on
// UTC date change rather than a rolling 24 hours.
//
// The limiter is cooperative: CanMakeRequest is a pure check and
// RecordRequest books usage afterwards. A single mutex serializes each
// operation but not the check→call→record sequence, so two concurrent
// callers can both pass the check before either records. This mirrors the
// bot's documented behavior and is a known limitation, not an invariant.
package ratelimit

import (
	"sync"
	"time"
)

const windowSize = 60 * time.Second

// Limits is the static budget for one (provider, model) pair.
type Limits struct {
	RequestsPerMinute int `json:"requests_per_minute"`
	TokensPerMinute   int `json:"tokens_per_minute"`
	RequestsPerDay    int `json:"requests_per_day"`
}

type windowEntry struct {
	at     time.Time
	tokens int
}

type state struct {
	window     []windowEntry
	dailyCount int
	dailyDate  string // UTC date of the daily counter, "2006-01-02"
}

// Limiter tracks usage for registered (provider, model) pairs. Pairs that
// were never registered are always admitted (fail-open), which keeps test
// and unregistered providers usable.
type Limiter struct {
	mu     sync.Mutex
	limits map[string]Limits
	states map[string]*state
	now    func() time.Time
}

// NewLimiter creates a limiter over the given static limit table.
func NewLimiter(limits map[string]Limits) *Limiter {
	return &Limiter{
		limits: limits,
		states: make(map[string]*state),
		now:    time.Now,
	}
}

// SetClock overrides the limiter's clock. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func key(provider, model string) string { return provider + ":" + model }

// CanMakeRequest reports whether a call for (provider, model) with the
// given estimated token count fits the budgets right now. It consumes no
// quota; pair it with RecordRequest after the call is actually made.
func (l *Limiter) CanMakeRequest(provider, model string, estimatedTokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limits, registered := l.limits[key(provider, model)]
	if !registered {
		return true
	}

	st := l.stateLocked(provider, model)
	now := l.now()
	l.purgeLocked(st, now)
	l.rollDailyLocked(st, now)

	if limits.RequestsPerMinute > 0 && len(st.window) >= limits.RequestsPerMinute {
		return false
	}
	if limits.TokensPerMinute > 0 {
		total := estimatedTokens
		for _, e := range st.window {
			total += e.tokens
		}
		if total > limits.TokensPerMinute {
			return false
		}
	}
	if limits.RequestsPerDay > 0 && st.dailyCount >= limits.RequestsPerDay {
		return false
	}
	return true
}

// RecordRequest books a completed call against the window and the daily
// counter. Unregistered pairs are recorded too so a later registration
// starts from real usage.
func (l *Limiter) RecordRequest(provider, model string, tokensUsed int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st := l.stateLocked(provider, model)
	now := l.now()
	l.purgeLocked(st, now)
	l.rollDailyLocked(st, now)

	st.window = append(st.window, windowEntry{at: now, tokens: tokensUsed})
	st.dailyCount++
}

// WaitTime returns how long a caller should wait before the oldest window
// entry expires, floored at zero. Unknown or empty pairs wait nothing.
func (l *Limiter) WaitTime(provider, model string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.states[key(provider, model)]
	if !ok {
		return 0
	}
	now := l.now()
	l.purgeLocked(st, now)
	if len(st.window) == 0 {
		return 0
	}
	wait := windowSize - now.Sub(st.window[0].at)
	if wait < 0 {
		return 0
	}
	return wait
}

// Usage is a point-in-time view of one pair's consumption, for the status
// API.
type Usage struct {
	Provider         string `json:"provider"`
	Model            string `json:"model"`
	RequestsInWindow int    `json:"requests_in_window"`
	TokensInWindow   int    `json:"tokens_in_window"`
	DailyCount       int    `json:"daily_count"`
	Limits           Limits `json:"limits"`
}

// Snapshot returns current usage for every tracked pair.
func (l *Limiter) Snapshot() []Usage {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make([]Usage, 0, len(l.states))
	for k, st := range l.states {
		l.purgeLocked(st, now)
		l.rollDailyLocked(st, now)
		tokens := 0
		for _, e := range st.window {
			tokens += e.tokens
		}
		provider, model := splitKey(k)
		out = append(out, Usage{
			Provider:         provider,
			Model:            model,
			RequestsInWindow: len(st.window),
			TokensInWindow:   tokens,
			DailyCount:       st.dailyCount,
			Limits:           l.limits[k],
		})
	}
	return out
}

func (l *Limiter) stateLocked(provider, model string) *state {
	k := key(provider, model)
	st, ok := l.states[k]
	if !ok {
		st = &state{dailyDate: l.now().UTC().Format("2006-01-02")}
		l.states[k] = st
	}
	return st
}

func (l *Limiter) purgeLocked(st *state, now time.Time) {
	cutoff := now.Add(-windowSize)
	idx := 0
	for idx < len(st.window) && !st.window[idx].at.After(cutoff) {
		idx++
	}
	if idx > 0 {
		st.window = append([]windowEntry(nil), st.window[idx:]...)
	}
}

func (l *Limiter) rollDailyLocked(st *state, now time.Time) {
	today := now.UTC().Format("2006-01-02")
	if st.dailyDate != today {
		st.dailyDate = today
		st.dailyCount = 0
	}
}

func splitKey(k string) (provider, model string) {
	for i := 0; i < len(k); i++ {
		if k[i] == ':' {
			return k[:i], k[i+1:]
		}
	}
	return k, ""
}
