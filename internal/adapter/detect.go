package adapter

import "strings"

// Detect guesses the adapter for a DSN from its scheme, file extension or
// shape. A .sql script (or "-" for stdin) is loaded into SQLite. It returns
// "" when nothing matches.
func Detect(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(lower, "mysql://"):
		return "mysql"
	case strings.HasPrefix(lower, "sqlite://") || strings.HasPrefix(lower, "file:"):
		return "sqlite"
	case strings.HasPrefix(lower, "duckdb://"):
		return "duckdb"
	case IsScript(lower):
		return "sqlite"
	case strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite") || strings.HasSuffix(lower, ".sqlite3"):
		return "sqlite"
	case strings.HasSuffix(lower, ".duckdb"):
		return "duckdb"
	case strings.Contains(lower, "@tcp("):
		return "mysql"
	}
	// key=value and user@host forms are PostgreSQL.
	if strings.Contains(dsn, "@") || strings.Contains(lower, "host=") {
		return "postgres"
	}
	return ""
}

// IsScript reports whether source names DDL text rather than a database:
// a .sql file, or "-" for stdin.
func IsScript(source string) bool {
	return source == "-" || strings.HasSuffix(strings.ToLower(source), ".sql")
}
