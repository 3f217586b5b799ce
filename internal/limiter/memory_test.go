package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemory_LockoutAndReset(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: 5 * time.Minute})
	m.now = func() time.Time { return now }
	ip := HashIP("1.2.3.4")

	blocked, _, err := m.Failure(ctx, "bob", ip)
	require.NoError(t, err)
	require.False(t, blocked)

	blocked, wait, err := m.Failure(ctx, "bob", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 5*time.Minute, wait)

	ok, wait, _ := m.Allow(ctx, "bob", ip)
	require.False(t, ok)
	require.Equal(t, 5*time.Minute, wait)

	ok, _, _ = m.Allow(ctx, "bob", HashIP("5.6.7.8"))
	require.True(t, ok, "other address is unaffected")

	now = now.Add(6 * time.Minute)
	ok, _, _ = m.Allow(ctx, "bob", ip)
	require.True(t, ok)

	require.NoError(t, m.Success(ctx, "bob", ip))
	ok, _, _ = m.Allow(ctx, "bob", ip)
	require.True(t, ok)
}

func TestMemory_WindowRestartsCount(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(Policy{Window: time.Minute, MaxFails: 2, BlockFor: time.Minute})
	m.now = func() time.Time { return now }
	ip := HashIP("1.2.3.4")

	_, _, _ = m.Failure(ctx, "bob", ip)
	now = now.Add(2 * time.Minute)
	blocked, _, _ := m.Failure(ctx, "bob", ip)
	require.False(t, blocked)
}

func TestPolicy_ZeroFallsBackToDefault(t *testing.T) {
	require.Equal(t, DefaultPolicy, Policy{}.normalized())
}
