package pool

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	p, err := Open(context.Background(), Settings{
		Name:    "test",
		Driver:  DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "pool.db"),
		MinIdle: 1,
		MaxPool: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

type plainProvider struct{}

func (plainProvider) Acquire(context.Context) (Conn, error) {
	return nil, errors.New("dial tcp 10.0.0.1:1433: connect: connection refused")
}

func intPtr(v int) *int { return &v }

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Settings{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestAcquireAndStats(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)

	_, err = conn.ExecContext(ctx, "CREATE TABLE t (id INTEGER)")
	require.NoError(t, err)

	s := p.Stats()
	assert.Equal(t, "test", s.Name)
	assert.Equal(t, 1, s.Active)
	assert.Equal(t, 1, s.MinIdle)
	assert.Equal(t, 4, s.MaxPool)

	require.NoError(t, conn.Close())
	assert.Equal(t, 0, p.Stats().Active)
}

func TestResizeValidation(t *testing.T) {
	p := openTestDB(t)

	_, err := p.Resize(intPtr(-1), nil)
	assert.ErrorIs(t, err, ErrInvalidPoolSize)

	_, err = p.Resize(nil, intPtr(0))
	assert.ErrorIs(t, err, ErrInvalidPoolSize)

	_, err = p.Resize(intPtr(5), intPtr(3))
	assert.ErrorIs(t, err, ErrInvalidPoolSize)

	msg, err := p.Resize(intPtr(2), intPtr(8))
	require.NoError(t, err)
	assert.Contains(t, msg, "minIdle=2")
	assert.Contains(t, msg, "maxPool=8")
	assert.Equal(t, 8, p.Stats().MaxPool)
	assert.Equal(t, 8, p.SQL().Stats().MaxOpenConnections)

	// nil keeps the current bound
	_, err = p.Resize(nil, intPtr(6))
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stats().MinIdle)
}

func TestEvictIdle(t *testing.T) {
	p := openTestDB(t)
	ctx := context.Background()

	conn, err := p.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	require.Equal(t, 1, p.Stats().Idle)

	msg := EvictIdleConnections(p)
	assert.Contains(t, msg, "evicted from pool 'test'")
	assert.Equal(t, 0, p.Stats().Idle)
	assert.Equal(t, 1, p.Stats().MinIdle)
}

func TestPoolEventsUseInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	p, err := Open(context.Background(), Settings{
		Name:    "logged",
		Driver:  DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "logged.db"),
		MaxPool: 2,
		Logger:  slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	EvictIdleConnections(p)
	ResizePool(p, intPtr(1), intPtr(3))

	out := buf.String()
	assert.Contains(t, out, "pool opened")
	assert.Contains(t, out, "idle connections evicted")
	assert.Contains(t, out, "pool resized")
	assert.Contains(t, out, "pool=logged")
}

func TestFacadeWithoutController(t *testing.T) {
	assert.Contains(t, EvictIdleConnections(plainProvider{}), "does not support eviction")
	assert.Contains(t, ResizePool(plainProvider{}, intPtr(1), intPtr(2)), "does not support resizing")
	_, ok := Describe(plainProvider{})
	assert.False(t, ok)
}

func TestResizePoolReportsErrors(t *testing.T) {
	p := openTestDB(t)
	msg := ResizePool(p, intPtr(9), intPtr(1))
	assert.Contains(t, msg, "Failed to update pool settings")
}

func TestTestConnection(t *testing.T) {
	p := openTestDB(t)
	st := TestConnection(context.Background(), p)
	require.True(t, st.OK, st.Message)
	assert.Contains(t, st.Product, "SQLite 3.")
	assert.Equal(t, DriverSQLite, st.Driver)
	assert.Equal(t, 0, p.Stats().Active)
}

func TestTestConnectionFailure(t *testing.T) {
	st := TestConnection(context.Background(), plainProvider{})
	assert.False(t, st.OK)
	assert.Contains(t, st.Message, "connection refused")
	assert.NotEmpty(t, st.Hint)
}

func TestDuckDB(t *testing.T) {
	p, err := Open(context.Background(), Settings{Driver: DriverDuckDB, MaxPool: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	st := TestConnection(context.Background(), p)
	require.True(t, st.OK, st.Message)
	assert.Contains(t, st.Product, "DuckDB")
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "server=db;user=sa;password=***", MaskDSN("server=db;user=sa;password=hunter2"))
	assert.Equal(t, "postgres://bob:xxxxx@db:5432/app", MaskDSN("postgres://bob:secret@db:5432/app"))
	assert.Equal(t, "/tmp/app.db", MaskDSN("/tmp/app.db"))
}

func TestTarget(t *testing.T) {
	server, db := Target("postgres", "postgres://bob@db.internal:5432/app?sslmode=disable")
	assert.Equal(t, "db.internal:5432", server)
	assert.Equal(t, "app", db)

	server, db = Target(DriverSQLite, "/var/data/load.db?_busy_timeout=1")
	assert.Equal(t, DriverSQLite, server)
	assert.Equal(t, "load.db", db)

	_, db = Target(DriverDuckDB, "")
	assert.Equal(t, "in-memory", db)
}

func TestTroubleshootingHint(t *testing.T) {
	assert.Contains(t, TroubleshootingHint("database is locked"), "write lock")
	assert.Contains(t, TroubleshootingHint("unable to open database file: no such file or directory"), "path")
	assert.Empty(t, TroubleshootingHint("syntax error"))
}
