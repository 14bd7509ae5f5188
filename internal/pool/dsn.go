package pool

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

var passwordParam = regexp.MustCompile(`(?i)(password|pwd)=([^;&\s]+)`)

// MaskDSN hides credentials in a DSN so it can be shown or logged.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			dsn = u.Redacted()
		}
	}
	return passwordParam.ReplaceAllString(dsn, "${1}=***")
}

// Target extracts a display server and database name from a DSN.
func Target(driver, dsn string) (server, database string) {
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	if u, err := url.Parse(path); err == nil && u.Host != "" {
		db := strings.TrimPrefix(u.Path, "/")
		if db == "" {
			db = "Unknown"
		}
		return u.Host, db
	}

	path = strings.TrimPrefix(path, "file:")
	if path == "" || path == ":memory:" {
		return "embedded", "in-memory"
	}
	return driver, filepath.Base(path)
}
