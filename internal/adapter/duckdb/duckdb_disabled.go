//go:build !duckdb

package duckdb

import (
	"context"
	"errors"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/schema"
)

var errDisabled = errors.New("DuckDB support not compiled in. Rebuild with -tags duckdb")

func init() {
	adapter.Register(&disabledAdapter{})
}

type disabledAdapter struct{}

func (d *disabledAdapter) Name() string     { return "duckdb" }
func (d *disabledAdapter) DefaultPort() int { return 0 }

func (d *disabledAdapter) Connect(_ context.Context, _ string) (adapter.Connection, error) {
	return nil, errDisabled
}

// disabledConnection is never instantiated but satisfies the interface at compile time.
var _ adapter.Connection = (*disabledConnection)(nil)

type disabledConnection struct{}

func (c *disabledConnection) SchemaDDL(_ context.Context) (string, error) { return "", errDisabled }
func (c *disabledConnection) Tables(_ context.Context) ([]string, error)  { return nil, errDisabled }
func (c *disabledConnection) Columns(_ context.Context, _ string) ([]schema.Column, error) {
	return nil, errDisabled
}
func (c *disabledConnection) Execute(_ context.Context, _ string) (*adapter.QueryResult, error) {
	return nil, errDisabled
}
func (c *disabledConnection) Update(_ context.Context, _ adapter.UpdateRequest) (*adapter.QueryResult, error) {
	return nil, errDisabled
}
func (c *disabledConnection) Cancel() error                { return errDisabled }
func (c *disabledConnection) Ping(_ context.Context) error { return errDisabled }
func (c *disabledConnection) Close() error                 { return errDisabled }
func (c *disabledConnection) DatabaseName() string         { return "" }
func (c *disabledConnection) AdapterName() string          { return "duckdb" }
func (c *disabledConnection) Dialect() adapter.Dialect     { return adapter.DuckDBDialect }
