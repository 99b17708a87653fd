package duckdb

import "strings"

// normalizeDSN strips the duckdb:// prefix. An empty DSN opens an in-memory
// database.
func normalizeDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "duckdb://")
	if dsn == "" {
		return ":memory:"
	}
	return dsn
}
