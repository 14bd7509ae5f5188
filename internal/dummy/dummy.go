// Package dummy prepares a small SQLite database to point sqlstress at when
// no real server is available.
package dummy

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

var categories = []string{"books", "games", "garden", "kitchen", "music", "tools"}

// SampleQueries are handy statements against the demo schema.
var SampleQueries = []string{
	"SELECT COUNT(*) FROM products",
	"SELECT id, sku, name, price_cents FROM products WHERE category = 'games' ORDER BY price_cents DESC LIMIT 20",
	"WITH c AS (SELECT category, AVG(price_cents) AS avg_price FROM products GROUP BY category) SELECT * FROM c",
	"INSERT INTO events (product_id, kind, payload) VALUES (1, 'view', 'load-test')",
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// Seed migrates db and tops products up to rows entries. It returns the
// number of products inserted.
func Seed(ctx context.Context, db *sql.DB, rows int) (int, error) {
	if err := RunMigrations(ctx, db); err != nil {
		return 0, err
	}

	var have int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&have); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if have >= rows {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO products (id, sku, name, category, price_cents, stock) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	rng := rand.New(rand.NewSource(int64(rows)))
	for id := have + 1; id <= rows; id++ {
		cat := categories[rng.Intn(len(categories))]
		_, err := stmt.ExecContext(ctx,
			id,
			fmt.Sprintf("SKU-%06d", id),
			fmt.Sprintf("%s item %d", cat, id),
			cat,
			100+rng.Intn(99900),
			rng.Intn(500),
		)
		if err != nil {
			return 0, fmt.Errorf("insert product %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return rows - have, nil
}
