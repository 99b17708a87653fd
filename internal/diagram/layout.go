package diagram

import (
	"math"

	"github.com/sadopc/dbviewer/internal/schema"
)

// LayoutPolicy decides where each table's box goes. Tables it leaves out of
// the returned map are placed by the renderer below everything else.
type LayoutPolicy interface {
	Place(tables []*schema.Table, opts Options) map[string]Point
}

// GridLayout places tables left to right in insertion order, wrapping after
// Columns boxes. Each row starts below the tallest box of the previous row.
type GridLayout struct {
	Columns int     `yaml:"columns"`
	Origin  Point   `yaml:"origin"`
	GapX    float64 `yaml:"gap_x"`
	GapY    float64 `yaml:"gap_y"`
}

// DefaultGrid is four boxes per row starting at (100,100), 50 apart. With
// the default options the first row lands at x = 100, 300, 500, 700.
func DefaultGrid() GridLayout {
	return GridLayout{
		Columns: 4,
		Origin:  Point{X: 100, Y: 100},
		GapX:    50,
		GapY:    50,
	}
}

func (g GridLayout) Place(tables []*schema.Table, opts Options) map[string]Point {
	opts = opts.withDefaults()
	cols := g.Columns
	if cols <= 0 {
		cols = DefaultGrid().Columns
	}

	out := make(map[string]Point, len(tables))
	y := g.Origin.Y
	rowHeight := 0.0
	for i, t := range tables {
		col := i % cols
		if col == 0 && i > 0 {
			y += rowHeight + g.GapY
			rowHeight = 0
		}
		out[t.Name] = Point{
			X: g.Origin.X + float64(col)*(opts.TableWidth+g.GapX),
			Y: y,
		}
		if h := opts.TableHeight(len(t.Columns)); h > rowHeight {
			rowHeight = h
		}
	}
	return out
}

// FixedLayout places tables at preset positions. Tables without an entry
// go to Fallback when it is set; otherwise they are left unplaced. Fallback
// positions are shifted down so they start below the lowest pinned box.
type FixedLayout struct {
	Positions map[string]Point
	Fallback  LayoutPolicy
}

func (f FixedLayout) Place(tables []*schema.Table, opts Options) map[string]Point {
	opts = opts.withDefaults()
	out := make(map[string]Point, len(tables))
	var rest []*schema.Table
	bottom := 0.0
	for _, t := range tables {
		p, ok := f.Positions[t.Name]
		if !ok {
			rest = append(rest, t)
			continue
		}
		out[t.Name] = p
		if b := p.Y + opts.TableHeight(len(t.Columns)); b > bottom {
			bottom = b
		}
	}
	if f.Fallback == nil || len(rest) == 0 {
		return out
	}

	placed := f.Fallback.Place(rest, opts)
	if len(out) > 0 && len(placed) > 0 {
		top := math.Inf(1)
		for _, p := range placed {
			top = math.Min(top, p.Y)
		}
		if dy := bottom + gapBelow(f.Fallback) - top; dy > 0 {
			for name, p := range placed {
				placed[name] = Point{X: p.X, Y: p.Y + dy}
			}
		}
	}
	for name, p := range placed {
		out[name] = p
	}
	return out
}

func gapBelow(policy LayoutPolicy) float64 {
	if g, ok := policy.(GridLayout); ok && g.GapY > 0 {
		return g.GapY
	}
	return DefaultGrid().GapY
}
