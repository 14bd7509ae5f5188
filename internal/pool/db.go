package pool

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite = "sqlite3"
	DriverDuckDB = "duckdb"

	pingTimeout = 5 * time.Second

	sqliteBusyTimeout = "5000"
	sqliteJournalMode = "WAL"
)

// ErrInvalidPoolSize is returned by Resize for bounds that cannot be applied.
var ErrInvalidPoolSize = errors.New("invalid pool size")

// Settings describe how to open and bound a pool.
type Settings struct {
	Name            string
	Driver          string
	DSN             string
	MinIdle         int
	MaxPool         int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// Logger receives pool events; nil means slog.Default().
	Logger *slog.Logger
}

// DB is a Provider backed by *sql.DB. The idle floor maps onto
// database/sql's idle retention bound since the stdlib pool does not
// pre-warm connections.
type DB struct {
	db     *sql.DB
	name   string
	driver string
	dsn    string
	logger *slog.Logger

	mu      sync.Mutex
	minIdle int
	maxPool int
}

// Open opens and verifies a pool. The caller owns Close.
func Open(ctx context.Context, s Settings) (*DB, error) {
	if s.Driver == "" {
		s.Driver = DriverSQLite
	}
	dsn, err := driverDSN(s.Driver, s.DSN)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(s.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.Driver, err)
	}

	p := Wrap(db, s)
	if s.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(s.ConnMaxLifetime)
	}
	if s.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(s.ConnMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", s.Driver, err)
	}

	p.logger.Debug("pool opened", "name", p.name, "driver", s.Driver, "dsn", MaskDSN(s.DSN), "min_idle", p.minIdle, "max_pool", p.maxPool)
	return p, nil
}

// Wrap adopts an already opened *sql.DB and applies the bounds in s.
func Wrap(db *sql.DB, s Settings) *DB {
	maxPool := s.MaxPool
	if maxPool < 1 {
		maxPool = 10
	}
	minIdle := s.MinIdle
	if minIdle < 0 {
		minIdle = 0
	}
	if minIdle > maxPool {
		minIdle = maxPool
	}
	name := s.Name
	if name == "" {
		name = "sqlstress-pool"
	}
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	db.SetMaxOpenConns(maxPool)
	db.SetMaxIdleConns(minIdle)

	return &DB{
		db:      db,
		name:    name,
		driver:  s.Driver,
		dsn:     s.DSN,
		logger:  logger,
		minIdle: minIdle,
		maxPool: maxPool,
	}
}

func driverDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return "", errors.New("sqlite3: empty DSN")
		}
		params := url.Values{}
		params.Set("_busy_timeout", sqliteBusyTimeout)
		params.Set("_journal_mode", sqliteJournalMode)
		params.Set("_foreign_keys", "on")
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + params.Encode(), nil
	case DriverDuckDB:
		return dsn, nil
	default:
		return "", fmt.Errorf("unsupported driver %q (want %s or %s)", driver, DriverSQLite, DriverDuckDB)
	}
}

// Acquire checks out a dedicated connection.
func (p *DB) Acquire(ctx context.Context) (Conn, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SQL exposes the underlying pool.
func (p *DB) SQL() *sql.DB { return p.db }

func (p *DB) Name() string   { return p.name }
func (p *DB) Driver() string { return p.driver }
func (p *DB) DSN() string    { return p.dsn }

func (p *DB) Close() error {
	return p.db.Close()
}

// EvictIdle closes every idle connection, then restores the idle bound.
func (p *DB) EvictIdle() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	before := p.db.Stats().Idle
	p.db.SetMaxIdleConns(0)
	p.db.SetMaxIdleConns(p.minIdle)

	p.logger.Info("idle connections evicted", "pool", p.name, "closed", before)
	return fmt.Sprintf("Idle connections evicted from pool '%s' (%d closed)", p.name, before), nil
}

func (p *DB) Resize(minIdle, maxPool *int) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	newMin, newMax := p.minIdle, p.maxPool
	if minIdle != nil {
		newMin = *minIdle
	}
	if maxPool != nil {
		newMax = *maxPool
	}

	switch {
	case newMin < 0:
		return "", fmt.Errorf("%w: minIdle must be >= 0, got %d", ErrInvalidPoolSize, newMin)
	case newMax < 1:
		return "", fmt.Errorf("%w: maxPool must be >= 1, got %d", ErrInvalidPoolSize, newMax)
	case newMin > newMax:
		return "", fmt.Errorf("%w: minIdle (%d) exceeds maxPool (%d)", ErrInvalidPoolSize, newMin, newMax)
	}

	p.db.SetMaxOpenConns(newMax)
	p.db.SetMaxIdleConns(newMin)
	p.minIdle, p.maxPool = newMin, newMax

	p.logger.Info("pool resized", "pool", p.name, "min_idle", newMin, "max_pool", newMax)
	return fmt.Sprintf("Pool '%s' updated: minIdle=%d, maxPool=%d", p.name, newMin, newMax), nil
}

func (p *DB) Stats() Stats {
	p.mu.Lock()
	minIdle, maxPool := p.minIdle, p.maxPool
	p.mu.Unlock()

	s := p.db.Stats()
	return Stats{
		Name:      p.name,
		Active:    s.InUse,
		Idle:      s.Idle,
		Total:     s.OpenConnections,
		WaitCount: s.WaitCount,
		MinIdle:   minIdle,
		MaxPool:   maxPool,
	}
}
