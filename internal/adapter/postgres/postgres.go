package postgres

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/schema"
)

func init() {
	adapter.Register(&postgresAdapter{})
}

// postgresAdapter implements adapter.Adapter for PostgreSQL.
type postgresAdapter struct{}

func (a *postgresAdapter) Name() string     { return "postgres" }
func (a *postgresAdapter) DefaultPort() int { return 5432 }

func (a *postgresAdapter) Connect(ctx context.Context, dsn string) (adapter.Connection, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	return &pgConn{
		pool:   pool,
		dbName: extractDBName(dsn),
	}, nil
}

// extractDBName parses the database name from the DSN.
func extractDBName(dsn string) string {
	if dsn == "" {
		return ""
	}
	// Try URL format first (postgres://... or postgresql://...)
	u, err := url.Parse(dsn)
	if err == nil && u.Scheme != "" {
		return strings.TrimPrefix(u.Path, "/")
	}
	// Fallback: keyword=value format (e.g. "host=localhost dbname=myapp")
	for _, part := range strings.Fields(dsn) {
		if strings.HasPrefix(part, "dbname=") {
			return strings.TrimPrefix(part, "dbname=")
		}
	}
	return ""
}

// pgConn implements adapter.Connection for PostgreSQL. Everything is scoped
// to current_schema().
type pgConn struct {
	pool     *pgxpool.Pool
	dbName   string
	inflight adapter.Inflight
}

func (c *pgConn) DatabaseName() string     { return c.dbName }
func (c *pgConn) AdapterName() string      { return "postgres" }
func (c *pgConn) Dialect() adapter.Dialect { return adapter.PostgresDialect }

func (c *pgConn) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *pgConn) Close() error {
	c.pool.Close()
	return nil
}

// Cancel cancels every running query.
func (c *pgConn) Cancel() error {
	c.inflight.Cancel()
	return nil
}

func (c *pgConn) track(ctx context.Context) (context.Context, func()) {
	return c.inflight.Track(ctx)
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// pgTable is one table as read from the catalogs, before it is rendered
// back into DDL.
type pgTable struct {
	name        string
	columns     []pgColumn
	constraints []string // pg_get_constraintdef output
}

type pgColumn struct {
	name    string
	typ     string
	notNull bool
	dflt    *string
}

// SchemaDDL rebuilds CREATE TABLE statements from the system catalogs, in
// OID order. PostgreSQL keeps no DDL text of its own.
func (c *pgConn) SchemaDDL(ctx context.Context) (string, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT c.relname,
		        a.attname,
		        format_type(a.atttypid, a.atttypmod),
		        a.attnotnull,
		        pg_get_expr(d.adbin, d.adrelid)
		 FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
		 LEFT JOIN pg_attrdef d ON d.adrelid = c.oid AND d.adnum = a.attnum
		 WHERE c.relkind IN ('r', 'p')
		   AND n.nspname = current_schema()
		 ORDER BY c.oid, a.attnum`)
	if err != nil {
		return "", fmt.Errorf("schema columns: %w", err)
	}
	defer rows.Close()

	var tables []*pgTable
	byName := map[string]*pgTable{}
	for rows.Next() {
		var (
			table string
			col   pgColumn
		)
		if err := rows.Scan(&table, &col.name, &col.typ, &col.notNull, &col.dflt); err != nil {
			return "", fmt.Errorf("schema columns scan: %w", err)
		}
		t, ok := byName[table]
		if !ok {
			t = &pgTable{name: table}
			byName[table] = t
			tables = append(tables, t)
		}
		t.columns = append(t.columns, col)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("schema columns: %w", err)
	}

	crows, err := c.pool.Query(ctx,
		`SELECT c.relname, pg_get_constraintdef(con.oid)
		 FROM pg_constraint con
		 JOIN pg_class c ON c.oid = con.conrelid
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 WHERE con.contype IN ('p', 'f')
		   AND n.nspname = current_schema()
		 ORDER BY c.oid, con.contype DESC, con.conname`)
	if err != nil {
		return "", fmt.Errorf("schema constraints: %w", err)
	}
	defer crows.Close()

	for crows.Next() {
		var table, def string
		if err := crows.Scan(&table, &def); err != nil {
			return "", fmt.Errorf("schema constraints scan: %w", err)
		}
		if t, ok := byName[table]; ok {
			t.constraints = append(t.constraints, def)
		}
	}
	if err := crows.Err(); err != nil {
		return "", fmt.Errorf("schema constraints: %w", err)
	}
	return buildDDL(tables), nil
}

// buildDDL renders catalog rows as CREATE TABLE statements.
func buildDDL(tables []*pgTable) string {
	d := adapter.PostgresDialect
	var sb strings.Builder
	for i, t := range tables {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "CREATE TABLE %s (", d.Quote(t.name))
		var elems []string
		for _, col := range t.columns {
			e := d.Quote(col.name) + " " + col.typ
			if col.notNull {
				e += " NOT NULL"
			}
			if col.dflt != nil {
				e += " DEFAULT " + *col.dflt
			}
			elems = append(elems, e)
		}
		elems = append(elems, t.constraints...)
		for j, e := range elems {
			if j > 0 {
				sb.WriteString(",")
			}
			sb.WriteString("\n  " + e)
		}
		sb.WriteString("\n);")
	}
	return sb.String()
}

func (c *pgConn) Tables(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT table_name
		 FROM information_schema.tables
		 WHERE table_schema = current_schema()
		   AND table_type   = 'BASE TABLE'
		 ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("tables scan: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (c *pgConn) Columns(ctx context.Context, table string) ([]schema.Column, error) {
	pkSet, err := c.primaryKeyColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := c.pool.Query(ctx,
		`SELECT column_name,
		        data_type,
		        is_nullable,
		        column_default
		 FROM information_schema.columns
		 WHERE table_schema = current_schema()
		   AND table_name   = $1
		 ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			name, dtype, nullable string
			dflt                  pgtype.Text
		)
		if err := rows.Scan(&name, &dtype, &nullable, &dflt); err != nil {
			return nil, fmt.Errorf("columns scan: %w", err)
		}
		var constraints []string
		if pkSet[name] {
			constraints = append(constraints, "PRIMARY KEY")
		}
		if nullable == "NO" {
			constraints = append(constraints, "NOT NULL")
		}
		if dflt.Valid {
			constraints = append(constraints, "DEFAULT "+dflt.String)
		}
		cols = append(cols, schema.Column{
			Name:        name,
			Type:        strings.ToUpper(dtype),
			Constraints: strings.Join(constraints, " "),
		})
	}
	return cols, rows.Err()
}

// primaryKeyColumns returns a set of column names that belong to the primary key.
func (c *pgConn) primaryKeyColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT a.attname
		 FROM pg_index i
		 JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		 WHERE i.indrelid = (quote_ident(current_schema()) || '.' || quote_ident($1))::regclass
		   AND i.indisprimary`, table)
	if err != nil {
		return nil, fmt.Errorf("primary keys: %w", err)
	}
	defer rows.Close()

	pk := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("primary keys scan: %w", err)
		}
		pk[name] = true
	}
	return pk, rows.Err()
}

// ---------------------------------------------------------------------------
// Query Execution
// ---------------------------------------------------------------------------

func (c *pgConn) Execute(ctx context.Context, query string) (*adapter.QueryResult, error) {
	ctx, done := c.track(ctx)
	defer done()

	start := time.Now()
	if isSelectQuery(query) {
		return c.executeSelect(ctx, query, start)
	}
	return c.exec(ctx, start, query)
}

// Update applies an edited row with $n placeholders.
func (c *pgConn) Update(ctx context.Context, req adapter.UpdateRequest) (*adapter.QueryResult, error) {
	query, args, err := adapter.PostgresDialect.BuildUpdate(req)
	if err != nil {
		return nil, err
	}
	ctx, done := c.track(ctx)
	defer done()
	return c.exec(ctx, time.Now(), query, args...)
}

func (c *pgConn) executeSelect(ctx context.Context, query string, start time.Time) (*adapter.QueryResult, error) {
	rows, err := c.pool.Query(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("execute: %w", err)
	}
	defer rows.Close()

	cols := fieldDescToMeta(rows.FieldDescriptions())

	var result [][]string
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("execute values: %w", err)
		}
		result = append(result, valuesToStrings(vals))
	}
	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("execute rows: %w", err)
	}

	return &adapter.QueryResult{
		Columns:  cols,
		Rows:     result,
		RowCount: int64(len(result)),
		Duration: time.Since(start),
		IsSelect: true,
	}, nil
}

func (c *pgConn) exec(ctx context.Context, start time.Time, query string, args ...any) (*adapter.QueryResult, error) {
	tag, err := c.pool.Exec(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, adapter.ErrCancelled
		}
		return nil, fmt.Errorf("execute: %w", err)
	}

	return &adapter.QueryResult{
		RowCount: tag.RowsAffected(),
		Duration: time.Since(start),
		Message:  tag.String(),
	}, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// isSelectQuery determines if a query is a SELECT-like statement. Leading
// comments are skipped and PostgreSQL's TABLE shorthand counts.
func isSelectQuery(query string) bool {
	q := strings.TrimSpace(query)
	for {
		if strings.HasPrefix(q, "--") {
			if idx := strings.Index(q, "\n"); idx >= 0 {
				q = strings.TrimSpace(q[idx+1:])
				continue
			}
			return false
		}
		if strings.HasPrefix(q, "/*") {
			if idx := strings.Index(q, "*/"); idx >= 0 {
				q = strings.TrimSpace(q[idx+2:])
				continue
			}
			return false
		}
		break
	}
	return adapter.IsQuery(q) || strings.HasPrefix(strings.ToUpper(q), "TABLE ")
}

var typeMap = pgtype.NewMap()

// fieldDescToMeta converts pgx field descriptions to adapter ColumnMeta.
func fieldDescToMeta(fds []pgconn.FieldDescription) []adapter.ColumnMeta {
	cols := make([]adapter.ColumnMeta, len(fds))
	for i, fd := range fds {
		cols[i] = adapter.ColumnMeta{
			Name: fd.Name,
			Type: typeName(fd.DataTypeOID),
		}
	}
	return cols
}

// typeName resolves a type OID through pgx's registered types.
func typeName(oid uint32) string {
	if t, ok := typeMap.TypeForOID(oid); ok {
		return t.Name
	}
	return "oid:" + strconv.FormatUint(uint64(oid), 10)
}

// valuesToStrings converts a row of decoded values to strings.
func valuesToStrings(vals []any) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = valueToString(v)
	}
	return out
}

// valueToString converts a single database value to its display text.
func valueToString(v any) string {
	switch val := v.(type) {
	case nil:
		return adapter.NullText
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case bool:
		return strconv.FormatBool(val)
	case int16:
		return strconv.FormatInt(int64(val), 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case [16]byte:
		// UUID
		return fmt.Sprintf("%x-%x-%x-%x-%x", val[0:4], val[4:6], val[6:8], val[8:10], val[10:16])
	case pgtype.Numeric:
		dv, err := val.Value()
		if err != nil || dv == nil {
			return adapter.NullText
		}
		return fmt.Sprint(dv)
	case []any:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = valueToString(e)
		}
		return "{" + strings.Join(parts, ",") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}
