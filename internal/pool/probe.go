package pool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ConnectionStatus is the outcome of TestConnection.
type ConnectionStatus struct {
	OK        bool          `json:"ok"`
	Message   string        `json:"message"`
	Product   string        `json:"product,omitempty"`
	Driver    string        `json:"driver,omitempty"`
	Latency   time.Duration `json:"latency"`
	ErrorType string        `json:"error_type,omitempty"`
	Hint      string        `json:"hint,omitempty"`
}

type driverNamer interface {
	Driver() string
}

// TestConnection acquires a connection, reads the server version and
// releases it again. Failures come back in the status, not as an error.
func TestConnection(ctx context.Context, p Provider) ConnectionStatus {
	start := time.Now()
	st := ConnectionStatus{}
	if p == nil {
		return failedStatus(st, errors.New("no connection provider configured"), start)
	}
	if dn, ok := p.(driverNamer); ok {
		st.Driver = dn.Driver()
	}

	conn, err := p.Acquire(ctx)
	if err != nil {
		return failedStatus(st, err, start)
	}
	defer conn.Close()

	product, err := productVersion(ctx, conn, st.Driver)
	if err != nil {
		return failedStatus(st, err, start)
	}

	st.OK = true
	st.Message = "Successfully connected to database"
	st.Product = product
	st.Latency = time.Since(start)
	return st
}

func failedStatus(st ConnectionStatus, err error, start time.Time) ConnectionStatus {
	st.OK = false
	st.Message = err.Error()
	st.ErrorType = fmt.Sprintf("%T", err)
	st.Hint = TroubleshootingHint(err.Error())
	st.Latency = time.Since(start)
	return st
}

func productVersion(ctx context.Context, conn Conn, driver string) (string, error) {
	var q, product string
	switch driver {
	case DriverSQLite:
		q, product = "SELECT sqlite_version()", "SQLite"
	case DriverDuckDB:
		q, product = "SELECT version()", "DuckDB"
	default:
		q, product = "SELECT 1", "Database"
	}

	rows, err := conn.QueryContext(ctx, q)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var version string
	if rows.Next() {
		if err := rows.Scan(&version); err != nil {
			return "", err
		}
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	if driver != DriverSQLite && driver != DriverDuckDB {
		return product, nil
	}
	return product + " " + version, nil
}

// TroubleshootingHint maps common connection failure messages to advice.
// Returns "" when nothing specific applies.
func TroubleshootingHint(msg string) string {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "login failed") || strings.Contains(m, "authentication failed") || strings.Contains(m, "password"):
		return "Check the credentials in the DSN (SQLSTRESS_DB_DSN or DB_URL)."
	case strings.Contains(m, "unable to open database file") || strings.Contains(m, "no such file"):
		return "Check that the database path exists and the directory is writable."
	case strings.Contains(m, "database is locked") || strings.Contains(m, "busy"):
		return "Another process holds a write lock. Close other writers or raise the busy timeout."
	case strings.Contains(m, "permission denied") || strings.Contains(m, "read-only"):
		return "The database file is not writable by this user."
	case strings.Contains(m, "connection refused") || strings.Contains(m, "timed out") || strings.Contains(m, "deadline exceeded"):
		return "The server did not answer in time. Check the host, port and firewall rules."
	case strings.Contains(m, "unknown host") || strings.Contains(m, "no such host"):
		return "Verify the server name in the DSN."
	case strings.Contains(m, "ssl") || strings.Contains(m, "certificate"):
		return "TLS negotiation failed. Check the encryption settings in the DSN."
	}
	return ""
}
