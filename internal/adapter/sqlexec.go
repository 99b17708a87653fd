package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// IsQuery reports whether the statement returns rows.
func IsQuery(query string) bool {
	trimmed := strings.TrimSpace(strings.ToUpper(query))
	for _, prefix := range []string{"SELECT", "PRAGMA", "EXPLAIN", "WITH", "SHOW", "DESCRIBE", "DESC ", "VALUES"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// ConstraintText renders introspected column facts the way DDL spells them.
func ConstraintText(notNull bool, dflt sql.NullString, pk bool) string {
	var parts []string
	if pk {
		parts = append(parts, "PRIMARY KEY")
	}
	if notNull {
		parts = append(parts, "NOT NULL")
	}
	if dflt.Valid {
		parts = append(parts, "DEFAULT "+dflt.String)
	}
	return strings.Join(parts, " ")
}

// Inflight tracks the cancel functions of running statements. Requests from
// the bridges run concurrently, so Cancel reaches every one of them.
type Inflight struct {
	mu      sync.Mutex
	seq     int
	cancels map[int]context.CancelFunc
}

// Track derives a cancellable context and registers it until done is called.
func (f *Inflight) Track(ctx context.Context) (_ context.Context, done func()) {
	ctx, cancel := context.WithCancel(ctx)
	f.mu.Lock()
	if f.cancels == nil {
		f.cancels = make(map[int]context.CancelFunc)
	}
	f.seq++
	id := f.seq
	f.cancels[id] = cancel
	f.mu.Unlock()
	return ctx, func() {
		f.mu.Lock()
		delete(f.cancels, id)
		f.mu.Unlock()
		cancel()
	}
}

// Cancel cancels every tracked statement and returns how many there were.
func (f *Inflight) Cancel() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cancel := range f.cancels {
		cancel()
	}
	return len(f.cancels)
}

// Len returns the number of statements in flight.
func (f *Inflight) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cancels)
}

// Runner executes statements on a database/sql handle and lets another
// goroutine cancel the ones in flight.
type Runner struct {
	DB   *sql.DB
	Name string // error prefix, e.g. "sqlite"

	inflight Inflight
}

func (r *Runner) track(ctx context.Context) (context.Context, func()) {
	return r.inflight.Track(ctx)
}

// Cancel cancels every in-flight statement.
func (r *Runner) Cancel() error {
	r.inflight.Cancel()
	return nil
}

// Execute runs a query or statement, choosing by IsQuery.
func (r *Runner) Execute(ctx context.Context, query string) (*QueryResult, error) {
	ctx, done := r.track(ctx)
	defer done()

	start := time.Now()
	if IsQuery(query) {
		return r.query(ctx, query, start)
	}
	return r.exec(ctx, start, query)
}

// Exec runs a statement with bind arguments.
func (r *Runner) Exec(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	ctx, done := r.track(ctx)
	defer done()
	return r.exec(ctx, time.Now(), query, args...)
}

func (r *Runner) query(ctx context.Context, query string, start time.Time) (*QueryResult, error) {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%s query: %w", r.Name, err)
	}
	defer rows.Close()

	cols, data, err := ScanRows(rows)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%s rows: %w", r.Name, err)
	}
	return &QueryResult{
		Columns:  cols,
		Rows:     data,
		RowCount: int64(len(data)),
		Duration: time.Since(start),
		IsSelect: true,
	}, nil
}

func (r *Runner) exec(ctx context.Context, start time.Time, query string, args ...any) (*QueryResult, error) {
	result, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%s exec: %w", r.Name, err)
	}
	affected, _ := result.RowsAffected()
	return &QueryResult{
		RowCount: affected,
		Duration: time.Since(start),
		Message:  fmt.Sprintf("%d row(s) affected", affected),
	}, nil
}

// ScanRows reads column metadata and every row as text. NULL becomes
// NullText.
func ScanRows(rows *sql.Rows) ([]ColumnMeta, [][]string, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, nil, fmt.Errorf("column types: %w", err)
	}
	cols := make([]ColumnMeta, len(colTypes))
	for i, ct := range colTypes {
		cols[i] = ColumnMeta{Name: ct.Name(), Type: ct.DatabaseTypeName()}
		if nullable, ok := ct.Nullable(); ok {
			cols[i].Nullable = nullable
		}
	}

	dest := make([]any, len(cols))
	for i := range dest {
		dest[i] = new(sql.NullString)
	}
	var data [][]string
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range dest {
			ns := v.(*sql.NullString)
			if ns.Valid {
				row[i] = ns.String
			} else {
				row[i] = NullText
			}
		}
		data = append(data, row)
	}
	return cols, data, rows.Err()
}
