package diagram

import (
	"math"
	"strings"

	"github.com/mattn/go-runewidth"
)

// TextScale maps scene units onto terminal cells.
type TextScale struct {
	X float64 // scene units per column
	Y float64 // scene units per row
}

// DefaultTextScale fits a default-width box into 21 columns and gives each
// column row of a box one terminal line.
func DefaultTextScale() TextScale {
	return TextScale{X: 7, Y: 20}
}

// skip marks the cell covered by the right half of a wide rune.
const skip rune = -1

type canvas struct {
	cells [][]rune
	w, h  int
}

func newCanvas(w, h int) *canvas {
	c := &canvas{w: w, h: h, cells: make([][]rune, h)}
	for y := range c.cells {
		c.cells[y] = []rune(strings.Repeat(" ", w))
	}
	return c
}

func (c *canvas) in(x, y int) bool { return x >= 0 && y >= 0 && x < c.w && y < c.h }

func (c *canvas) get(x, y int) rune {
	if !c.in(x, y) {
		return 0
	}
	return c.cells[y][x]
}

func (c *canvas) set(x, y int, r rune) {
	if c.in(x, y) {
		c.cells[y][x] = r
	}
}

// write puts s starting at column x, stopping before column limit.
func (c *canvas) write(x, y, limit int, s string) {
	for _, r := range s {
		rw := runewidth.RuneWidth(r)
		if rw == 0 {
			continue
		}
		if x+rw > limit {
			return
		}
		c.set(x, y, r)
		if rw == 2 {
			c.set(x+1, y, skip)
		}
		x += rw
	}
}

func (c *canvas) lines() []string {
	out := make([]string, c.h)
	for y, row := range c.cells {
		var sb strings.Builder
		for _, r := range row {
			if r != skip {
				sb.WriteRune(r)
			}
		}
		out[y] = strings.TrimRight(sb.String(), " ")
	}
	return out
}

// Rasterize draws the scene as lines of text for a terminal. Edges are
// drawn first so boxes cover them; arrowheads sit just outside the target
// box and labels go on blank cells only.
func Rasterize(scene *Scene, scale TextScale) []string {
	if scale.X <= 0 || scale.Y <= 0 {
		scale = DefaultTextScale()
	}
	col := func(v float64) int { return int(math.Floor(v / scale.X)) }
	row := func(v float64) int { return int(math.Floor(v / scale.Y)) }

	c := newCanvas(col(scene.Width)+1, row(scene.Height)+1)

	for _, e := range scene.Edges {
		drawLine(c, col(e.From.X), row(e.From.Y), col(e.To.X), row(e.To.Y))
	}

	type cellRect struct{ x0, y0, x1, y1 int }
	rects := make(map[string]cellRect, len(scene.Boxes))
	for _, b := range scene.Boxes {
		r := cellRect{col(b.Rect.X), row(b.Rect.Y), col(b.Rect.Right()), row(b.Rect.Bottom())}
		rects[b.Table] = r
		drawBox(c, r.x0, r.y0, r.x1, r.y1)
		for i, t := range append([]Text{b.Title}, b.Columns...) {
			label := t.Content
			if i == 0 {
				label = strings.ToUpper(label)
			}
			width := runewidth.StringWidth(label)
			x := col(t.X) - width/2
			if x <= r.x0 {
				x = r.x0 + 1
			}
			c.write(x, row(t.Y), r.x1, label)
		}
	}

	for _, e := range scene.Edges {
		target, ok := rects[e.ToTable]
		if !ok {
			continue
		}
		x0, y0, x1, y1 := col(e.From.X), row(e.From.Y), col(e.To.X), row(e.To.Y)
		inside := func(x, y int) bool {
			return x >= target.x0 && x <= target.x1 && y >= target.y0 && y <= target.y1
		}
		// Walk from the target back towards the source to the first
		// cell outside the target box.
		var ax, ay int
		found := false
		walkLine(x1, y1, x0, y0, func(x, y int) bool {
			if !inside(x, y) {
				ax, ay, found = x, y, true
				return false
			}
			return true
		})
		if found && isBlankOrLine(c.get(ax, ay)) {
			c.set(ax, ay, arrow(x1-ax, y1-ay))
		}
	}

	for _, e := range scene.Edges {
		label := e.Label.Content
		x := col(e.Label.X) - runewidth.StringWidth(label)/2
		y := row(e.Label.Y)
		if blankRun(c, x, y, runewidth.StringWidth(label)) {
			c.write(x, y, c.w, label)
		}
	}
	return c.lines()
}

func isBlankOrLine(r rune) bool {
	return r == ' ' || r == '─' || r == '│' || r == '·'
}

func blankRun(c *canvas, x, y, n int) bool {
	for i := 0; i < n; i++ {
		if !c.in(x+i, y) || !isBlankOrLine(c.get(x+i, y)) {
			return false
		}
	}
	return true
}

func arrow(dx, dy int) rune {
	switch {
	case abs(dx) >= abs(dy) && dx >= 0:
		return '▶'
	case abs(dx) >= abs(dy):
		return '◀'
	case dy > 0:
		return '▼'
	default:
		return '▲'
	}
}

func drawBox(c *canvas, x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			var r rune
			switch {
			case y == y0 && x == x0:
				r = '┌'
			case y == y0 && x == x1:
				r = '┐'
			case y == y1 && x == x0:
				r = '└'
			case y == y1 && x == x1:
				r = '┘'
			case y == y0 || y == y1:
				r = '─'
			case x == x0 || x == x1:
				r = '│'
			default:
				r = ' '
			}
			c.set(x, y, r)
		}
	}
}

func drawLine(c *canvas, x0, y0, x1, y1 int) {
	ch := '·'
	switch {
	case y0 == y1:
		ch = '─'
	case x0 == x1:
		ch = '│'
	}
	walkLine(x0, y0, x1, y1, func(x, y int) bool {
		if c.get(x, y) == ' ' {
			c.set(x, y, ch)
		}
		return true
	})
}

// walkLine visits the cells of a Bresenham line until visit returns false.
func walkLine(x0, y0, x1, y1 int, visit func(x, y int) bool) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if !visit(x0, y0) {
			return
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
