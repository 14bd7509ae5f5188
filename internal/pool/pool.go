// Package pool wraps a database/sql connection pool behind the small surface
// the load runner needs: acquire a scoped connection, and optionally inspect
// or reshape the pool at runtime.
package pool

import (
	"context"
	"database/sql"
	"fmt"
)

// Conn is a scoped connection checked out of a pool. Close returns it.
// *sql.Conn satisfies it.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	Close() error
}

// Provider hands out scoped connections. Acquire blocks until a connection
// is available or ctx is done. Implementations must be safe for concurrent use.
type Provider interface {
	Acquire(ctx context.Context) (Conn, error)
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Name      string `json:"name"`
	Active    int    `json:"active"`
	Idle      int    `json:"idle"`
	Total     int    `json:"total"`
	WaitCount int64  `json:"wait_count"`
	MinIdle   int    `json:"min_idle"`
	MaxPool   int    `json:"max_pool"`
}

// Controller is implemented by providers that can be reshaped at runtime.
type Controller interface {
	EvictIdle() (string, error)
	Resize(minIdle, maxPool *int) (string, error)
	Stats() Stats
}

// EvictIdleConnections asks the provider to drop its idle connections and
// returns a human-readable outcome. It never fails.
func EvictIdleConnections(p Provider) string {
	c, ok := p.(Controller)
	if !ok {
		return "Connection provider does not support eviction, nothing to do"
	}
	msg, err := c.EvictIdle()
	if err != nil {
		return fmt.Sprintf("Failed to evict idle connections: %v", err)
	}
	return msg
}

// ResizePool updates the idle floor and/or the pool ceiling. Nil leaves a
// bound unchanged. It never fails; problems are reported in the message.
func ResizePool(p Provider, minIdle, maxPool *int) string {
	c, ok := p.(Controller)
	if !ok {
		return "Connection provider does not support resizing, nothing to do"
	}
	msg, err := c.Resize(minIdle, maxPool)
	if err != nil {
		return fmt.Sprintf("Failed to update pool settings: %v", err)
	}
	return msg
}

// Describe returns pool statistics when the provider exposes them.
func Describe(p Provider) (Stats, bool) {
	c, ok := p.(Controller)
	if !ok {
		return Stats{}, false
	}
	return c.Stats(), true
}
