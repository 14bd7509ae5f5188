package runner

import "strings"

// IsQuery reports whether sql is expected to return rows. Only the leading
// keyword is inspected, so e.g. stored procedure calls that return rows are
// treated as statements.
func IsQuery(sql string) bool {
	s := strings.ToLower(strings.TrimSpace(sql))
	return strings.HasPrefix(s, "select") || strings.HasPrefix(s, "with ")
}
