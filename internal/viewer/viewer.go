// Package viewer answers the request messages of internal/msg against one
// database connection. The TUI, the HTTP and stdio bridges and the CLI all go
// through Service.Handle.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/sadopc/dbviewer/internal/adapter"
	"github.com/sadopc/dbviewer/internal/audit"
	"github.com/sadopc/dbviewer/internal/ddl"
	"github.com/sadopc/dbviewer/internal/diagram"
	"github.com/sadopc/dbviewer/internal/history"
	"github.com/sadopc/dbviewer/internal/msg"
	"github.com/sadopc/dbviewer/internal/schema"
)

var (
	ErrNotSelect   = errors.New("query is not a single read-only statement")
	ErrNoKeyValue  = errors.New("record has no value for the primary key")
	ErrUnknownKey  = errors.New("table has no primary key")
	ErrKeyMismatch = errors.New("primary key column not in table")
)

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Layout   diagram.LayoutPolicy
	Diagram  diagram.Options
	RowLimit int

	// Audit and History are optional.
	Audit   *audit.Logger
	History *history.History
}

// Service binds a connection to schema extraction, diagram rendering,
// table queries and record edits. It keeps no state between calls besides
// the connection.
type Service struct {
	conn adapter.Connection
	opts Options
}

// New returns a Service over conn.
func New(conn adapter.Connection, opts Options) *Service {
	if opts.Layout == nil {
		opts.Layout = diagram.DefaultGrid()
	}
	if opts.Diagram == (diagram.Options{}) {
		opts.Diagram = diagram.DefaultOptions()
	}
	return &Service{conn: conn, opts: opts}
}

// Conn returns the underlying connection.
func (s *Service) Conn() adapter.Connection { return s.conn }

// ExtractSchema dumps the database DDL and extracts the schema from it.
func (s *Service) ExtractSchema(ctx context.Context) (*ddl.Result, error) {
	text, err := s.conn.SchemaDDL(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema dump: %w", err)
	}
	return ddl.Extract(text), nil
}

// Diagram renders the extracted schema. Positions, when given, pin the
// named tables and the configured layout places the rest.
func (s *Service) Diagram(ctx context.Context, positions map[string]diagram.Point) (*diagram.Result, error) {
	res, err := s.ExtractSchema(ctx)
	if err != nil {
		return nil, err
	}
	layout := s.opts.Layout
	if len(positions) > 0 {
		layout = diagram.FixedLayout{Positions: positions, Fallback: layout}
	}
	return diagram.Render(res.Schema, layout, s.opts.Diagram), nil
}

// Tables lists every table with its columns, marking key columns.
func (s *Service) Tables(ctx context.Context) ([]msg.TableInfo, error) {
	names, err := s.conn.Tables(ctx)
	if err != nil {
		return nil, err
	}
	extracted, err := s.ExtractSchema(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]msg.TableInfo, 0, len(names))
	for _, name := range names {
		cols, err := s.conn.Columns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("columns of %s: %w", name, err)
		}
		info := msg.TableInfo{Name: name, Columns: make([]msg.ResultColumn, 0, len(cols))}
		fkTable, _ := extracted.Schema.Lookup(name)
		for _, c := range cols {
			info.Columns = append(info.Columns, msg.ResultColumn{
				Name:         c.Name,
				Type:         c.Type,
				IsPrimaryKey: c.IsPrimaryKey(),
				IsForeignKey: fkTable != nil && fkTable.IsForeignKeyColumn(c.Name),
			})
		}
		out = append(out, info)
	}
	return out, nil
}

// QueryTable previews a table, or runs the given SELECT. Result columns that
// belong to the queried table's primary key or foreign keys are marked.
func (s *Service) QueryTable(ctx context.Context, req msg.QueryTableMsg) (msg.DisplayQueryResultsMsg, error) {
	table, query := req.TableName, strings.TrimSpace(req.SelectQuery)
	switch {
	case query == "" && table == "":
		return msg.DisplayQueryResultsMsg{}, adapter.ErrNoTable
	case query == "":
		query = s.conn.Dialect().SelectTable(table, s.rowLimit())
	case table == "":
		table, _ = ddl.SelectTarget(query)
	}

	if !ddl.ReadOnly(query) {
		return msg.DisplayQueryResultsMsg{}, ErrNotSelect
	}

	start := time.Now()
	res, err := s.conn.Execute(ctx, query)
	s.audit(audit.ActionQuery, table, query, start, res, err)
	if err != nil {
		return msg.DisplayQueryResultsMsg{}, err
	}

	out := msg.DisplayQueryResultsMsg{
		TableName:   table,
		Columns:     make([]msg.ResultColumn, len(res.Columns)),
		Rows:        make([]msg.Record, 0, len(res.Rows)),
		SelectQuery: query,
	}
	for i, c := range res.Columns {
		out.Columns[i] = msg.ResultColumn{Name: c.Name, Type: c.Type}
	}
	if table != "" {
		if err := s.markKeys(ctx, table, out.Columns); err != nil {
			return msg.DisplayQueryResultsMsg{}, err
		}
	}

	for _, row := range res.Rows {
		rec := make(msg.Record, len(out.Columns))
		for i, c := range out.Columns {
			if i >= len(row) || row[i] == adapter.NullText {
				rec[i] = msg.Null(c.Name)
				continue
			}
			rec[i] = msg.Text(c.Name, row[i])
		}
		out.Rows = append(out.Rows, rec)
	}
	return out, nil
}

// markKeys flags primary key columns from live introspection and foreign
// key columns from the extracted schema. Empty result types are filled in
// from the declared column type.
func (s *Service) markKeys(ctx context.Context, table string, cols []msg.ResultColumn) error {
	live, err := s.conn.Columns(ctx, table)
	if err != nil {
		return fmt.Errorf("columns of %s: %w", table, err)
	}
	declared := schema.Table{Name: table, Columns: live}

	extracted, err := s.ExtractSchema(ctx)
	if err != nil {
		return err
	}
	fkTable, _ := extracted.Schema.Lookup(table)

	for i := range cols {
		c, ok := declared.Column(cols[i].Name)
		if !ok {
			continue
		}
		cols[i].IsPrimaryKey = c.IsPrimaryKey()
		cols[i].IsForeignKey = fkTable != nil && fkTable.IsForeignKeyColumn(c.Name)
		if cols[i].Type == "" {
			cols[i].Type = c.Type
		}
	}
	return nil
}

// UpdateRecord writes an edited row back, keyed by every primary key
// column. Primary and foreign key columns are never assigned.
func (s *Service) UpdateRecord(ctx context.Context, req msg.UpdateRecordMsg) (msg.RecordUpdatedMsg, error) {
	if req.TableName == "" {
		return msg.RecordUpdatedMsg{}, adapter.ErrNoTable
	}
	live, err := s.conn.Columns(ctx, req.TableName)
	if err != nil {
		return msg.RecordUpdatedMsg{}, fmt.Errorf("columns of %s: %w", req.TableName, err)
	}
	declared := &schema.Table{Name: req.TableName, Columns: live}

	keys, err := updateKeys(declared, req)
	if err != nil {
		return msg.RecordUpdatedMsg{}, err
	}

	extracted, err := s.ExtractSchema(ctx)
	if err != nil {
		return msg.RecordUpdatedMsg{}, err
	}
	fkTable, _ := extracted.Schema.Lookup(req.TableName)

	upd := adapter.UpdateRequest{Table: req.TableName, Keys: keys}
	for _, f := range req.Record {
		c, ok := declared.Column(f.Name)
		if !ok || c.IsPrimaryKey() || isKey(keys, c.Name) {
			continue
		}
		if fkTable != nil && fkTable.IsForeignKeyColumn(c.Name) {
			continue
		}
		upd.Values = append(upd.Values, adapter.Assignment{Column: c.Name, Value: f.Value, Type: c.Type})
	}

	stmt, _, err := s.conn.Dialect().BuildUpdate(upd)
	if err != nil {
		return msg.RecordUpdatedMsg{}, err
	}
	start := time.Now()
	res, err := s.conn.Update(ctx, upd)
	s.audit(audit.ActionUpdate, req.TableName, stmt, start, res, err)
	if err != nil {
		return msg.RecordUpdatedMsg{}, err
	}
	return msg.RecordUpdatedMsg{TableName: req.TableName, RowsAffected: res.RowCount}, nil
}

// updateKeys picks the columns that identify the edited row. A named key
// that belongs to the primary key brings the rest of the primary key with
// it; a named key outside it (a unique column, rowid) is used alone. Every
// key column needs a non-NULL value in the record.
func updateKeys(t *schema.Table, req msg.UpdateRecordMsg) ([]adapter.Assignment, error) {
	pk := t.PrimaryKey()
	names := pk
	if req.PrimaryKey != "" {
		c, ok := t.Column(req.PrimaryKey)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyMismatch, req.PrimaryKey)
		}
		if !slices.ContainsFunc(pk, func(n string) bool { return strings.EqualFold(n, c.Name) }) {
			names = []string{c.Name}
		}
	}
	if len(names) == 0 {
		return nil, ErrUnknownKey
	}

	keys := make([]adapter.Assignment, 0, len(names))
	for _, name := range names {
		c, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyMismatch, name)
		}
		v, ok := req.Record.Get(c.Name)
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s", ErrNoKeyValue, c.Name)
		}
		typ := c.Type
		if req.PrimaryKeyType != "" && strings.EqualFold(c.Name, req.PrimaryKey) {
			typ = req.PrimaryKeyType
		}
		keys = append(keys, adapter.Assignment{Column: c.Name, Value: v, Type: typ})
	}
	return keys, nil
}

func isKey(keys []adapter.Assignment, name string) bool {
	for _, k := range keys {
		if strings.EqualFold(k.Column, name) {
			return true
		}
	}
	return false
}

// Handle answers one request. Failures come back as msg.ErrorMsg.
func (s *Service) Handle(ctx context.Context, req msg.Request) msg.Response {
	start := time.Now()
	resp, target, rows, err := s.dispatch(ctx, req)
	s.remember(req, target, rows, start, err)
	if err != nil {
		return msg.NewError(req, err)
	}
	return resp
}

func (s *Service) dispatch(ctx context.Context, req msg.Request) (resp msg.Response, target string, rows int64, err error) {
	switch r := req.(type) {
	case msg.ExtractSchemaMsg:
		res, err := s.ExtractSchema(ctx)
		if err != nil {
			return nil, "", 0, err
		}
		return msg.LoadSchemaMsg{Schema: res.Schema, Diagnostics: res.Diagnostics}, "", int64(res.Schema.Len()), nil

	case msg.QueryDatabaseMsg:
		tables, err := s.Tables(ctx)
		if err != nil {
			return nil, "", 0, err
		}
		return msg.DisplayTablesMsg{Tables: tables}, "", int64(len(tables)), nil

	case msg.QueryTableMsg:
		target = r.TableName
		if r.SelectQuery != "" {
			target = r.SelectQuery
		}
		out, err := s.QueryTable(ctx, r)
		if err != nil {
			return nil, target, 0, err
		}
		return out, target, int64(len(out.Rows)), nil

	case msg.UpdateRecordMsg:
		out, err := s.UpdateRecord(ctx, r)
		if err != nil {
			return nil, r.TableName, 0, err
		}
		return out, r.TableName, out.RowsAffected, nil

	case msg.RenderDiagramMsg:
		res, err := s.Diagram(ctx, r.Positions)
		if err != nil {
			return nil, "", 0, err
		}
		return msg.DisplayDiagramMsg{Scene: res.Scene, Warnings: res.Warnings}, "", int64(len(res.Scene.Boxes)), nil

	case nil:
		return nil, "", 0, msg.ErrUnknownCommand
	}
	return nil, "", 0, fmt.Errorf("%w: %s", msg.ErrUnknownCommand, req.Command())
}

func (s *Service) rowLimit() int {
	if s.opts.RowLimit > 0 {
		return s.opts.RowLimit
	}
	return 100
}

func (s *Service) audit(action, table, stmt string, start time.Time, res *adapter.QueryResult, err error) {
	if s.opts.Audit == nil {
		return
	}
	e := audit.Entry{
		Action:     action,
		Table:      table,
		Statement:  stmt,
		Adapter:    s.conn.AdapterName(),
		Database:   s.conn.DatabaseName(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if res != nil {
		e.RowCount = res.RowCount
	}
	if err != nil {
		e.Error = err.Error()
	}
	s.opts.Audit.Log(e)
}

func (s *Service) remember(req msg.Request, target string, rows int64, start time.Time, err error) {
	if s.opts.History == nil || req == nil {
		return
	}
	// History is best-effort; a failed write must not fail the request.
	_ = s.opts.History.Add(history.Entry{
		Command:    string(req.Command()),
		Target:     target,
		Adapter:    s.conn.AdapterName(),
		Database:   s.conn.DatabaseName(),
		ExecutedAt: start.UTC(),
		DurationMS: time.Since(start).Milliseconds(),
		RowCount:   rows,
		IsError:    err != nil,
	})
}
