package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() map[string]Limits {
	return map[string]Limits{
		"groq:small": {RequestsPerMinute: 3, TokensPerMinute: 1000, RequestsPerDay: 10},
	}
}

func TestUnknownPairFailsOpen(t *testing.T) {
	l := NewLimiter(testLimits())
	assert.True(t, l.CanMakeRequest("nosuch", "model", 1_000_000))
	assert.Equal(t, time.Duration(0), l.WaitTime("nosuch", "model"))
}

func TestCheckConsumesNoQuota(t *testing.T) {
	l := NewLimiter(testLimits())
	for i := 0; i < 100; i++ {
		assert.True(t, l.CanMakeRequest("groq", "small", 10))
	}
	// Still all three request slots available.
	l.RecordRequest("groq", "small", 10)
	l.RecordRequest("groq", "small", 10)
	assert.True(t, l.CanMakeRequest("groq", "small", 10))
}

func TestSlidingWindowDenial(t *testing.T) {
	l := NewLimiter(testLimits())
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		require.True(t, l.CanMakeRequest("groq", "small", 10))
		l.RecordRequest("groq", "small", 10)
		now = now.Add(time.Second)
	}

	assert.False(t, l.CanMakeRequest("groq", "small", 10))
	wait := l.WaitTime("groq", "small")
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, 60*time.Second)

	// Once the oldest entry falls out of the window, a slot frees up.
	now = base.Add(61 * time.Second)
	assert.True(t, l.CanMakeRequest("groq", "small", 10))
}

func TestTokenBudgetDenial(t *testing.T) {
	l := NewLimiter(testLimits())
	l.RecordRequest("groq", "small", 900)
	assert.False(t, l.CanMakeRequest("groq", "small", 200))
	assert.True(t, l.CanMakeRequest("groq", "small", 50))
}

func TestDailyCounterResetsOnUTCDateChange(t *testing.T) {
	l := NewLimiter(map[string]Limits{"groq:small": {RequestsPerDay: 2}})
	now := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	l.SetClock(func() time.Time { return now })

	l.RecordRequest("groq", "small", 1)
	now = now.Add(20 * time.Second)
	l.RecordRequest("groq", "small", 1)

	now = time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC)
	assert.False(t, l.CanMakeRequest("groq", "small", 1))

	// Crossing the UTC date boundary resets the daily counter, even
	// though less than a minute has passed.
	now = time.Date(2026, 3, 2, 0, 0, 1, 0, time.UTC)
	assert.True(t, l.CanMakeRequest("groq", "small", 1))
}

func TestWaitTimeEmptyWindow(t *testing.T) {
	l := NewLimiter(testLimits())
	l.RecordRequest("groq", "small", 1)
	now := time.Now().Add(2 * time.Minute)
	l.SetClock(func() time.Time { return now })
	assert.Equal(t, time.Duration(0), l.WaitTime("groq", "small"))
}

func TestSnapshot(t *testing.T) {
	l := NewLimiter(testLimits())
	l.RecordRequest("groq", "small", 42)
	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "groq", snap[0].Provider)
	assert.Equal(t, "small", snap[0].Model)
	assert.Equal(t, 1, snap[0].RequestsInWindow)
	assert.Equal(t, 42, snap[0].TokensInWindow)
	assert.Equal(t, 1, snap[0].DailyCount)
}
