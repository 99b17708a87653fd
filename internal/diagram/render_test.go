package diagram

import (
	"bytes"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/dbviewer/internal/schema"
)

func shop() *schema.Schema {
	s := schema.New()
	s.Add(schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", Constraints: "PRIMARY KEY"},
			{Name: "name", Type: "TEXT"},
		},
	})
	s.Add(schema.Table{
		Name: "orders",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", Constraints: "PRIMARY KEY"},
			{Name: "user_id", Type: "INTEGER"},
		},
		ForeignKeys: []schema.ForeignKey{{FromColumns: []string{"user_id"}, ToTable: "users", ToColumns: []string{"id"}}},
	})
	s.Add(schema.Table{
		Name: "order_items",
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", Constraints: "PRIMARY KEY"},
			{Name: "order_id", Type: "INTEGER"},
			{Name: "product", Type: "TEXT"},
		},
		ForeignKeys: []schema.ForeignKey{{FromColumns: []string{"order_id"}, ToTable: "orders", ToColumns: []string{"id"}}},
	})
	return s
}

// ---------------------------------------------------------------------------
// Geometry
// ---------------------------------------------------------------------------

func TestRenderBoxes(t *testing.T) {
	res := Render(shop(), DefaultGrid(), DefaultOptions())
	require.Empty(t, res.Warnings)
	require.Len(t, res.Scene.Boxes, 3)

	users := res.Scene.Boxes[0]
	assert.Equal(t, "users", users.Table)
	assert.Equal(t, Rect{X: 100, Y: 100, Width: 150, Height: 140}, users.Rect)
	assert.Equal(t, Text{X: 175, Y: 120, Content: "users"}, users.Title)
	assert.Equal(t, []Text{
		{X: 175, Y: 140, Content: "id (INTEGER)"},
		{X: 175, Y: 160, Content: "name (TEXT)"},
	}, users.Columns)

	var xs []float64
	for _, b := range res.Scene.Boxes {
		xs = append(xs, b.Rect.X)
	}
	assert.Equal(t, []float64{100, 300, 500}, xs)
	assert.Equal(t, 160.0, res.Scene.Boxes[2].Rect.Height)
}

func TestRenderEdges(t *testing.T) {
	res := Render(shop(), DefaultGrid(), DefaultOptions())
	require.Len(t, res.Scene.Edges, 2)

	e := res.Scene.Edges[0]
	assert.Equal(t, "orders", e.FromTable)
	assert.Equal(t, "user_id", e.FromColumn)
	assert.Equal(t, "users", e.ToTable)
	assert.Equal(t, "id", e.ToColumn)
	assert.Equal(t, Point{X: 375, Y: 160}, e.From)
	assert.Equal(t, Point{X: 175, Y: 140}, e.To)
	assert.Equal(t, Text{X: 275, Y: 140, Content: "user_id -> id"}, e.Label)
	assert.Equal(t, "arrowhead", e.Marker)
}

func TestRenderMarker(t *testing.T) {
	res := Render(shop(), nil, Options{})
	m := res.Scene.Marker
	assert.Equal(t, "arrowhead", m.ID)
	assert.Equal(t, [4]float64{0, 0, 10, 10}, m.ViewBox)
	assert.Equal(t, 5.0, m.RefX)
	assert.Equal(t, 5.0, m.RefY)
	assert.Equal(t, 4.0, m.Width)
	assert.Equal(t, "M 0 0 L 10 5 L 0 10 z", m.Path)
}

func TestRenderBounds(t *testing.T) {
	res := Render(shop(), DefaultGrid(), DefaultOptions())
	assert.Equal(t, 670.0, res.Scene.Width)
	assert.Equal(t, 280.0, res.Scene.Height)
}

func TestRenderMargin(t *testing.T) {
	res := Render(shop(), DefaultGrid(), Options{})
	assert.Equal(t, 670.0, res.Scene.Width, "zero margin takes the default")

	res = Render(shop(), DefaultGrid(), Options{Margin: -1})
	assert.Equal(t, 650.0, res.Scene.Width)
	assert.Equal(t, 260.0, res.Scene.Height)
}

// ---------------------------------------------------------------------------
// Properties
// ---------------------------------------------------------------------------

func TestRenderCrossProduct(t *testing.T) {
	s := schema.New()
	s.Add(schema.Table{Name: "b", Columns: []schema.Column{{Name: "p"}, {Name: "q"}}})
	s.Add(schema.Table{
		Name:        "a",
		Columns:     []schema.Column{{Name: "x"}, {Name: "y"}},
		ForeignKeys: []schema.ForeignKey{{FromColumns: []string{"x", "y"}, ToTable: "b", ToColumns: []string{"p", "q"}}},
	})

	res := Render(s, nil, DefaultOptions())
	require.Len(t, res.Scene.Edges, 4)
	var pairs []string
	for _, e := range res.Scene.Edges {
		pairs = append(pairs, e.Label.Content)
	}
	assert.Equal(t, []string{"x -> p", "x -> q", "y -> p", "y -> q"}, pairs)
}

func TestRenderIsDeterministic(t *testing.T) {
	first := Render(shop(), DefaultGrid(), DefaultOptions())
	second := Render(shop(), DefaultGrid(), DefaultOptions())
	assert.Equal(t, first, second)
}

func TestRenderEmptySchema(t *testing.T) {
	res := Render(schema.New(), DefaultGrid(), DefaultOptions())
	assert.Empty(t, res.Scene.Boxes)
	assert.Empty(t, res.Scene.Edges)
	assert.Empty(t, res.Warnings)
	assert.Zero(t, res.Scene.Width)
}

// ---------------------------------------------------------------------------
// Degraded input
// ---------------------------------------------------------------------------

func TestRenderMissingTargetTable(t *testing.T) {
	s := schema.New()
	s.Add(schema.Table{
		Name:        "a",
		Columns:     []schema.Column{{Name: "x"}},
		ForeignKeys: []schema.ForeignKey{{FromColumns: []string{"x"}, ToTable: "ghost", ToColumns: []string{"id"}}},
	})
	res := Render(s, nil, DefaultOptions())
	assert.Empty(t, res.Scene.Edges)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnMissingTable, res.Warnings[0].Kind)
	assert.Equal(t, "a", res.Warnings[0].Table)
}

func TestRenderUndeclaredColumnUsesKeyPosition(t *testing.T) {
	s := schema.New()
	s.Add(schema.Table{Name: "t", Columns: []schema.Column{{Name: "id"}}})
	s.Add(schema.Table{
		Name:        "u",
		Columns:     []schema.Column{{Name: "a"}, {Name: "b"}},
		ForeignKeys: []schema.ForeignKey{{FromColumns: []string{"b"}, ToTable: "t", ToColumns: []string{"nope"}}},
	})
	res := Render(s, nil, DefaultOptions())
	require.Len(t, res.Scene.Edges, 1)
	// "nope" is first in its key list, so it anchors on row 0 of t.
	assert.Equal(t, Point{X: 175, Y: 140}, res.Scene.Edges[0].To)
	// "b" is declared second in u.
	assert.Equal(t, Point{X: 375, Y: 160}, res.Scene.Edges[0].From)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnUnknownColumn, res.Warnings[0].Kind)
}

// ---------------------------------------------------------------------------
// Layout policies
// ---------------------------------------------------------------------------

func TestGridLayoutWraps(t *testing.T) {
	tables := []*schema.Table{
		{Name: "a", Columns: []schema.Column{{Name: "1"}}},
		{Name: "b", Columns: []schema.Column{{Name: "1"}, {Name: "2"}, {Name: "3"}}},
		{Name: "c"},
	}
	grid := GridLayout{Columns: 2, Origin: Point{X: 100, Y: 100}, GapX: 50, GapY: 50}
	got := grid.Place(tables, DefaultOptions())
	assert.Equal(t, map[string]Point{
		"a": {X: 100, Y: 100},
		"b": {X: 300, Y: 100},
		"c": {X: 100, Y: 310},
	}, got)
}

func TestFixedLayoutFallsBackBelow(t *testing.T) {
	layout := FixedLayout{Positions: map[string]Point{
		"users":  {X: 100, Y: 100},
		"orders": {X: 300, Y: 100},
	}}
	res := Render(shop(), layout, DefaultOptions())

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, WarnMissingPosition, res.Warnings[0].Kind)
	assert.Equal(t, "order_items", res.Warnings[0].Table)

	box, ok := res.Scene.Box("order_items")
	require.True(t, ok)
	assert.Equal(t, 100.0, box.Rect.X)
	assert.Equal(t, 290.0, box.Rect.Y)
}

func TestFixedLayoutWithFallbackPolicy(t *testing.T) {
	layout := FixedLayout{
		Positions: map[string]Point{"orders": {X: 10, Y: 20}},
		Fallback:  DefaultGrid(),
	}
	res := Render(shop(), layout, DefaultOptions())
	assert.Empty(t, res.Warnings)
	box, _ := res.Scene.Box("orders")
	assert.Equal(t, Rect{X: 10, Y: 20, Width: 150, Height: 140}, box.Rect)

	users, _ := res.Scene.Box("users")
	assert.Equal(t, Point{X: 100, Y: 210}, Point{X: users.Rect.X, Y: users.Rect.Y})
	items, _ := res.Scene.Box("order_items")
	assert.Equal(t, Point{X: 300, Y: 210}, Point{X: items.Rect.X, Y: items.Rect.Y})
	assertNoOverlap(t, res.Scene)
}

func TestFixedLayoutFallbackStartsBelowPinned(t *testing.T) {
	layout := FixedLayout{
		Positions: map[string]Point{"users": {X: 100, Y: 100}},
		Fallback:  DefaultGrid(),
	}
	res := Render(shop(), layout, DefaultOptions())
	assert.Empty(t, res.Warnings)

	orders, _ := res.Scene.Box("orders")
	assert.Equal(t, Point{X: 100, Y: 290}, Point{X: orders.Rect.X, Y: orders.Rect.Y})
	assertNoOverlap(t, res.Scene)
}

func TestFixedLayoutFallbackAlreadyBelow(t *testing.T) {
	grid := DefaultGrid()
	grid.Origin = Point{X: 0, Y: 1000}
	layout := FixedLayout{Positions: map[string]Point{"users": {X: 0, Y: 0}}, Fallback: grid}

	placed := layout.Place(shop().Tables(), DefaultOptions())
	assert.Equal(t, Point{X: 0, Y: 1000}, placed["orders"])
}

func assertNoOverlap(t *testing.T, scene *Scene) {
	t.Helper()
	for i, a := range scene.Boxes {
		for _, b := range scene.Boxes[i+1:] {
			overlap := a.Rect.X < b.Rect.Right() && b.Rect.X < a.Rect.Right() &&
				a.Rect.Y < b.Rect.Bottom() && b.Rect.Y < a.Rect.Bottom()
			assert.False(t, overlap, "%s %+v overlaps %s %+v", a.Table, a.Rect, b.Table, b.Rect)
		}
	}
}

// ---------------------------------------------------------------------------
// Output
// ---------------------------------------------------------------------------

func TestWriteSVG(t *testing.T) {
	res := Render(shop(), DefaultGrid(), DefaultOptions())
	var buf bytes.Buffer
	require.NoError(t, WriteSVG(&buf, res.Scene, DefaultStyle()))

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(buf.Bytes()))
	root := doc.SelectElement("svg")
	require.NotNil(t, root)
	assert.Equal(t, "670", root.SelectAttrValue("width", ""))

	rects := doc.FindElements("//rect")
	require.Len(t, rects, 3)
	assert.Equal(t, "lightblue", rects[0].SelectAttrValue("fill", ""))
	assert.Equal(t, "140", rects[0].SelectAttrValue("height", ""))

	lines := doc.FindElements("//line")
	require.Len(t, lines, 2)
	assert.Equal(t, "url(#arrowhead)", lines[0].SelectAttrValue("marker-end", ""))
	assert.Equal(t, "2", lines[0].SelectAttrValue("stroke-width", ""))

	markers := doc.FindElements("//defs/marker")
	require.Len(t, markers, 1)
	assert.Equal(t, "0 0 10 10", markers[0].SelectAttrValue("viewBox", ""))
	assert.Equal(t, "auto", markers[0].SelectAttrValue("orient", ""))

	var labels []string
	for _, el := range doc.FindElements("//text") {
		labels = append(labels, el.Text())
	}
	assert.Contains(t, labels, "users")
	assert.Contains(t, labels, "order_id (INTEGER)")
	assert.Contains(t, labels, "user_id -> id")
}

func TestRasterize(t *testing.T) {
	res := Render(shop(), DefaultGrid(), DefaultOptions())
	out := strings.Join(Rasterize(res.Scene, DefaultTextScale()), "\n")

	assert.Contains(t, out, "USERS")
	assert.Contains(t, out, "ORDER_ITEMS")
	assert.Contains(t, out, "id (INTEGER)")
	assert.Contains(t, out, "┌")
	assert.Contains(t, out, "◀", "orders -> users arrow should point left")
}

func TestRasterizeWideRunes(t *testing.T) {
	s := schema.New()
	s.Add(schema.Table{Name: "用户", Columns: []schema.Column{{Name: "名", Type: "TEXT"}}})
	res := Render(s, nil, DefaultOptions())
	out := strings.Join(Rasterize(res.Scene, TextScale{}), "\n")
	assert.Contains(t, out, "用户")
	assert.Contains(t, out, "名 (TEXT)")
}

func TestRasterizeEmpty(t *testing.T) {
	res := Render(schema.New(), nil, DefaultOptions())
	lines := Rasterize(res.Scene, DefaultTextScale())
	assert.Len(t, lines, 1)
	assert.Equal(t, "", lines[0])
}
