package adapter

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sadopc/dbviewer/internal/schema"
)

var (
	ErrNotConnected = errors.New("not connected to database")
	ErrCancelled    = errors.New("query cancelled")
)

// NullText is how NULL values appear in result rows.
const NullText = "NULL"

// Adapter creates database connections.
type Adapter interface {
	Connect(ctx context.Context, dsn string) (Connection, error)
	Name() string
	DefaultPort() int
}

// Connection represents an active database connection.
type Connection interface {
	// SchemaDDL returns the CREATE TABLE statements of every user table,
	// separated by semicolons, in creation order where the engine keeps it.
	SchemaDDL(ctx context.Context) (string, error)

	// Introspection
	Tables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]schema.Column, error)

	// Query execution
	Execute(ctx context.Context, query string) (*QueryResult, error)
	Update(ctx context.Context, req UpdateRequest) (*QueryResult, error)
	Cancel() error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Info
	DatabaseName() string
	AdapterName() string
	Dialect() Dialect
}

// QueryResult holds the result of a query execution.
type QueryResult struct {
	Columns  []ColumnMeta
	Rows     [][]string
	RowCount int64 // -1 if unknown
	Duration time.Duration
	IsSelect bool
	Message  string
}

// ColumnMeta holds metadata about a result column.
type ColumnMeta struct {
	Name     string
	Type     string
	Nullable bool
}

// Registry holds registered adapters by name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry.
func Register(a Adapter) {
	Registry[a.Name()] = a
}

// Names returns the registered adapter names, sorted.
func Names() []string {
	out := make([]string, 0, len(Registry))
	for n := range Registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
