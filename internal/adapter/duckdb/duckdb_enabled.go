//go:build duckdb

package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/schema"
)

func init() {
	adapter.Register(&duckdbAdapter{})
}

// ---------------------------------------------------------------------------
// Adapter
// ---------------------------------------------------------------------------

type duckdbAdapter struct{}

func (a *duckdbAdapter) Name() string     { return "duckdb" }
func (a *duckdbAdapter) DefaultPort() int { return 0 }

func (a *duckdbAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	dsn = normalizeDSN(dsn)

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("duckdb: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("duckdb: ping: %w", err)
	}

	name := dsn
	if dsn != ":memory:" {
		name = filepath.Base(dsn)
	}
	return &duckdbConn{
		db:     db,
		dbName: name,
		run:    &adapter.Runner{DB: db, Name: "duckdb"},
	}, nil
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

type duckdbConn struct {
	db     *sql.DB
	dbName string
	run    *adapter.Runner
}

func (c *duckdbConn) DatabaseName() string     { return c.dbName }
func (c *duckdbConn) AdapterName() string      { return "duckdb" }
func (c *duckdbConn) Dialect() adapter.Dialect { return adapter.DuckDBDialect }

func (c *duckdbConn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *duckdbConn) Close() error {
	return c.db.Close()
}

// Cancel cancels the currently running query, if any.
func (c *duckdbConn) Cancel() error {
	return c.run.Cancel()
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// SchemaDDL returns the CREATE TABLE text DuckDB keeps in duckdb_tables().
func (c *duckdbConn) SchemaDDL(ctx context.Context) (string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT sql
		FROM duckdb_tables()
		WHERE schema_name = current_schema() AND NOT internal AND NOT temporary
		ORDER BY table_oid`)
	if err != nil {
		return "", fmt.Errorf("duckdb: schema: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("duckdb: schema scan: %w", err)
		}
		stmt = strings.TrimSpace(stmt)
		if !strings.HasSuffix(stmt, ";") {
			stmt += ";"
		}
		stmts = append(stmts, stmt)
	}
	return strings.Join(stmts, "\n"), rows.Err()
}

func (c *duckdbConn) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("duckdb: tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("duckdb: tables scan: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (c *duckdbConn) Columns(ctx context.Context, table string) ([]schema.Column, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage k
				  ON k.constraint_name = tc.constraint_name
				 AND k.table_schema    = tc.table_schema
				 AND k.table_name      = tc.table_name
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_schema    = c.table_schema
				  AND tc.table_name      = c.table_name
				  AND k.column_name      = c.column_name
			) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = current_schema() AND c.table_name = ?
		ORDER BY c.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("duckdb: columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, dtype, nullable string
			dflt                  sql.NullString
			isPK                  bool
		)
		if err := rows.Scan(&name, &dtype, &nullable, &dflt, &isPK); err != nil {
			return nil, fmt.Errorf("duckdb: columns scan: %w", err)
		}
		cols = append(cols, schema.Column{
			Name:        name,
			Type:        dtype,
			Constraints: adapter.ConstraintText(nullable == "NO", dflt, isPK),
		})
	}
	return cols, rows.Err()
}

// ---------------------------------------------------------------------------
// Execute
// ---------------------------------------------------------------------------

func (c *duckdbConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	return c.run.Execute(ctx, query)
}

func (c *duckdbConn) Update(ctx context.Context, req adapter.UpdateRequest) (*adapter.QueryResult, error) {
	query, args, err := adapter.DuckDBDialect.BuildUpdate(req)
	if err != nil {
		return nil, err
	}
	return c.run.Exec(ctx, query, args...)
}
