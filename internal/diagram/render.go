package diagram

import (
	"fmt"

	"github.com/sadopc/dbviewer/internal/schema"
)

// WarningKind classifies a rendering warning.
type WarningKind string

const (
	// WarnMissingPosition: the layout policy did not place a table.
	WarnMissingPosition WarningKind = "missing_position"
	// WarnMissingTable: a foreign key targets a table not in the schema;
	// its edges are omitted.
	WarnMissingTable WarningKind = "missing_table"
	// WarnUnknownColumn: a foreign key names a column the table does not
	// declare; its position in the key list is used instead.
	WarnUnknownColumn WarningKind = "unknown_column"
)

// Warning reports a degraded but still drawn part of the scene.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Table   string      `json:"table"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s (table %s)", w.Kind, w.Message, w.Table)
}

// Result is a rendered scene plus warnings.
type Result struct {
	Scene    *Scene    `json:"scene"`
	Warnings []Warning `json:"warnings"`
}

// Render lays out the schema and produces a scene. It is a pure function of
// its inputs. A nil layout uses DefaultGrid.
func Render(s *schema.Schema, layout LayoutPolicy, opts Options) *Result {
	opts = opts.withDefaults()
	if layout == nil {
		layout = DefaultGrid()
	}
	r := &renderer{opts: opts, warnings: []Warning{}}

	tables := s.Tables()
	r.place(tables, layout)

	scene := &Scene{Marker: Arrowhead(), Boxes: []Box{}, Edges: []Edge{}}
	for _, t := range tables {
		scene.Boxes = append(scene.Boxes, r.box(t))
	}
	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			scene.Edges = append(scene.Edges, r.edges(s, t, fk, scene.Marker.ID)...)
		}
	}

	for _, b := range scene.Boxes {
		if w := b.Rect.Right() + opts.Margin; w > scene.Width {
			scene.Width = w
		}
		if h := b.Rect.Bottom() + opts.Margin; h > scene.Height {
			scene.Height = h
		}
	}
	return &Result{Scene: scene, Warnings: r.warnings}
}

type renderer struct {
	opts      Options
	positions map[string]Point
	warnings  []Warning
}

func (r *renderer) warn(kind WarningKind, table, format string, args ...any) {
	r.warnings = append(r.warnings, Warning{Kind: kind, Table: table, Message: fmt.Sprintf(format, args...)})
}

// place asks the policy for positions and puts any table it skipped on a
// grid below the lowest placed box.
func (r *renderer) place(tables []*schema.Table, layout LayoutPolicy) {
	placed := layout.Place(tables, r.opts)
	r.positions = make(map[string]Point, len(tables))

	var missing []*schema.Table
	bottom := 0.0
	for _, t := range tables {
		p, ok := placed[t.Name]
		if !ok {
			missing = append(missing, t)
			continue
		}
		r.positions[t.Name] = p
		if b := p.Y + r.opts.TableHeight(len(t.Columns)); b > bottom {
			bottom = b
		}
	}
	if len(missing) == 0 {
		return
	}

	grid := DefaultGrid()
	if len(r.positions) > 0 {
		grid.Origin.Y = bottom + grid.GapY
	}
	for _, t := range missing {
		r.warn(WarnMissingPosition, t.Name, "layout gave no position; placed on fallback grid")
	}
	for name, p := range grid.Place(missing, r.opts) {
		r.positions[name] = p
	}
}

func (r *renderer) box(t *schema.Table) Box {
	p := r.positions[t.Name]
	cx := p.X + r.opts.TableWidth/2
	b := Box{
		Table: t.Name,
		Rect:  Rect{X: p.X, Y: p.Y, Width: r.opts.TableWidth, Height: r.opts.TableHeight(len(t.Columns))},
		Title: Text{X: cx, Y: p.Y + r.opts.TitleOffset, Content: t.Name},
	}
	b.Columns = make([]Text, len(t.Columns))
	for i, c := range t.Columns {
		b.Columns[i] = Text{X: cx, Y: p.Y + r.opts.HeaderHeight + float64(i)*r.opts.RowHeight, Content: c.Label()}
	}
	return b
}

// anchor is the point an edge attaches to for the row'th column of a box.
func (r *renderer) anchor(table string, row int) Point {
	p := r.positions[table]
	return Point{
		X: p.X + r.opts.TableWidth/2,
		Y: p.Y + r.opts.HeaderHeight + float64(row)*r.opts.RowHeight,
	}
}

// rows maps key columns to box rows: the declared column index, or the
// column's position in the key list when the table does not declare it.
func (r *renderer) rows(t *schema.Table, cols []string) []int {
	out := make([]int, len(cols))
	for i, c := range cols {
		idx := t.ColumnIndex(c)
		if idx < 0 {
			r.warn(WarnUnknownColumn, t.Name, "foreign key column %s is not declared", c)
			idx = i
		}
		out[i] = idx
	}
	return out
}

// edges draws one arrow for every (from, to) column pair of the key, the
// full cross product, so a key of m and n columns yields m*n edges.
func (r *renderer) edges(s *schema.Schema, t *schema.Table, fk schema.ForeignKey, marker string) []Edge {
	target, ok := s.Lookup(fk.ToTable)
	if !ok {
		r.warn(WarnMissingTable, t.Name, "foreign key references %s, which is not in the schema", fk.ToTable)
		return nil
	}

	fromRows := r.rows(t, fk.FromColumns)
	toRows := r.rows(target, fk.ToColumns)
	out := make([]Edge, 0, len(fk.FromColumns)*len(fk.ToColumns))
	for i, fc := range fk.FromColumns {
		start := r.anchor(t.Name, fromRows[i])
		for j, tc := range fk.ToColumns {
			end := r.anchor(target.Name, toRows[j])
			out = append(out, Edge{
				FromTable:  t.Name,
				FromColumn: fc,
				ToTable:    target.Name,
				ToColumn:   tc,
				From:       start,
				To:         end,
				Label: Text{
					X:       (start.X + end.X) / 2,
					Y:       (start.Y+end.Y)/2 - r.opts.LabelOffset,
					Content: fc + " -> " + tc,
				},
				Marker: marker,
			})
		}
	}
	return out
}
