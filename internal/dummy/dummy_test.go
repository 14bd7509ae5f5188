package dummy

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlstress/internal/pool"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	p, err := pool.Open(ctx, pool.Settings{
		Driver:  pool.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "demo.db"),
		MaxPool: 2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	db := p.SQL()

	n, err := Seed(ctx, db, 250)
	require.NoError(t, err)
	assert.Equal(t, 250, n)

	// seeding again only tops up
	n, err = Seed(ctx, db, 300)
	require.NoError(t, err)
	assert.Equal(t, 50, n)

	n, err = Seed(ctx, db, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count))
	assert.Equal(t, 300, count)

	for _, q := range SampleQueries {
		_, err := db.Exec(q)
		assert.NoError(t, err, q)
	}
}
