package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/schema"

	_ "modernc.org/sqlite"
)

func init() {
	adapter.Register(&sqliteAdapter{})
}

// sqliteAdapter implements adapter.Adapter for SQLite databases.
type sqliteAdapter struct{}

func (a *sqliteAdapter) Name() string     { return "sqlite" }
func (a *sqliteAdapter) DefaultPort() int { return 0 }

func (a *sqliteAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	return open(ctx, normalizeDSN(dsn))
}

func open(ctx context.Context, dsn string) (*sqliteConn, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if dsn == ":memory:" {
		// Every pooled connection would get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite enable foreign keys: %w", err)
	}

	dbName := dsn
	if dsn != ":memory:" {
		dbName = filepath.Base(dsn)
	}

	return &sqliteConn{
		db:     db,
		dsn:    dsn,
		dbName: dbName,
		run:    &adapter.Runner{DB: db, Name: "sqlite"},
	}, nil
}

// OpenScript loads a SQL script into a fresh in-memory database, so a
// schema dump can be browsed like a database file.
func OpenScript(ctx context.Context, name, script string) (adapter.Connection, error) {
	conn, err := open(ctx, ":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := conn.db.ExecContext(ctx, script); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite load %s: %w", name, err)
	}
	conn.dbName = filepath.Base(name)
	return conn, nil
}

// normalizeDSN strips common SQLite URI prefixes.
func normalizeDSN(dsn string) string {
	if strings.HasPrefix(dsn, "sqlite://") {
		return strings.TrimPrefix(dsn, "sqlite://")
	}
	if strings.HasPrefix(dsn, "file:") {
		return strings.TrimPrefix(dsn, "file:")
	}
	return dsn
}

// sqliteConn implements adapter.Connection.
type sqliteConn struct {
	db     *sql.DB
	dsn    string
	dbName string
	run    *adapter.Runner
}

func (c *sqliteConn) AdapterName() string      { return "sqlite" }
func (c *sqliteConn) DatabaseName() string     { return c.dbName }
func (c *sqliteConn) Dialect() adapter.Dialect { return adapter.SQLiteDialect }

func (c *sqliteConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *sqliteConn) Close() error {
	return c.db.Close()
}

// SchemaDDL returns the stored CREATE TABLE text of every user table in
// creation order, the same text the sqlite3 shell prints for .schema.
func (c *sqliteConn) SchemaDDL(ctx context.Context) (string, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT sql FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL ORDER BY rowid")
	if err != nil {
		return "", fmt.Errorf("sqlite schema: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("sqlite schema scan: %w", err)
		}
		stmts = append(stmts, stmt+";")
	}
	return strings.Join(stmts, "\n"), rows.Err()
}

// Tables returns all user tables in the database.
func (c *sqliteConn) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("sqlite tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("sqlite tables scan: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Columns returns column metadata for the given table using PRAGMA table_info.
func (c *sqliteConn) Columns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("sqlite columns: %w", err)
	}
	defer rows.Close()

	var columns []schema.Column
	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return nil, fmt.Errorf("sqlite columns scan: %w", err)
		}
		columns = append(columns, schema.Column{
			Name:        name,
			Type:        colType,
			Constraints: adapter.ConstraintText(notNull != 0, dfltValue, pk > 0),
		})
	}
	return columns, rows.Err()
}

// Execute runs a query and returns the result.
func (c *sqliteConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	return c.run.Execute(ctx, query)
}

// Update applies an edited row.
func (c *sqliteConn) Update(ctx context.Context, req adapter.UpdateRequest) (*adapter.QueryResult, error) {
	query, args, err := adapter.SQLiteDialect.BuildUpdate(req)
	if err != nil {
		return nil, err
	}
	return c.run.Exec(ctx, query, args...)
}

// Cancel cancels any in-flight query.
func (c *sqliteConn) Cancel() error {
	return c.run.Cancel()
}
