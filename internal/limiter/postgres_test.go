package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newPG(t *testing.T) (*PG, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewPG(mock, Policy{Window: 15 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute})
	l.now = func() time.Time { return now }
	return l, mock, now
}

func TestPG_Allow(t *testing.T) {
	l, mock, now := newPG(t)
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	mock.ExpectQuery(`SELECT blocked_until FROM login_attempts WHERE username=\$1 AND ip_hash=\$2`).
		WithArgs("alice", ip).
		WillReturnError(pgx.ErrNoRows)
	ok, wait, err := l.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.True(t, ok)
	require.Zero(t, wait)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("alice", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(4 * time.Minute)))
	ok, wait, err = l.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 4*time.Minute, wait)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("alice", ip).
		WillReturnRows(pgxmock.NewRows([]string{"blocked_until"}).AddRow(now.Add(-time.Second)))
	ok, _, err = l.Allow(ctx, "alice", ip)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectQuery(`SELECT blocked_until`).
		WithArgs("alice", ip).
		WillReturnError(errors.New("db down"))
	ok, _, err = l.Allow(ctx, "alice", ip)
	require.Error(t, err)
	require.False(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Failure_BlocksAtThreshold(t *testing.T) {
	l, mock, now := newPG(t)
	ctx := context.Background()
	ip := HashIP("10.0.0.1")

	mock.ExpectQuery(`INSERT INTO login_attempts .* RETURNING fail_count`).
		WithArgs("alice", ip, now, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))
	blocked, _, err := l.Failure(ctx, "alice", ip)
	require.NoError(t, err)
	require.False(t, blocked)

	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs("alice", ip, now, 15*time.Minute).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE login_attempts SET blocked_until=\$3`).
		WithArgs("alice", ip, now.Add(10*time.Minute)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	blocked, wait, err := l.Failure(ctx, "alice", ip)
	require.NoError(t, err)
	require.True(t, blocked)
	require.Equal(t, 10*time.Minute, wait)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPG_Success_ClearsRow(t *testing.T) {
	l, mock, _ := newPG(t)
	ip := HashIP("10.0.0.1")

	mock.ExpectExec(`DELETE FROM login_attempts WHERE username=\$1 AND ip_hash=\$2`).
		WithArgs("alice", ip).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, l.Success(context.Background(), "alice", ip))

	mock.ExpectExec(`DELETE FROM login_attempts`).
		WithArgs("alice", ip).
		WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Success(context.Background(), "alice", ip))
}
