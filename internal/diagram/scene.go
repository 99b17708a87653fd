// Package diagram turns a schema into an entity-relationship scene: one box
// per table and one arrow per foreign-key column pair. The scene is an
// abstract description; svg.go and text.go draw it.
package diagram

// Point is a position in scene coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Text is a label anchored at its horizontal centre.
type Text struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Content string  `json:"content"`
}

// Box is the drawing of one table.
type Box struct {
	Table   string `json:"table"`
	Rect    Rect   `json:"rect"`
	Title   Text   `json:"title"`
	Columns []Text `json:"columns"`
}

// Edge is one arrow between a referencing column and a referenced column.
type Edge struct {
	FromTable  string `json:"fromTable"`
	FromColumn string `json:"fromColumn"`
	ToTable    string `json:"toTable"`
	ToColumn   string `json:"toColumn"`
	From       Point  `json:"from"`
	To         Point  `json:"to"`
	Label      Text   `json:"label"`
	Marker     string `json:"marker"`
}

// Marker is the arrowhead definition shared by every edge in a scene.
type Marker struct {
	ID      string     `json:"id"`
	ViewBox [4]float64 `json:"viewBox"`
	RefX    float64    `json:"refX"`
	RefY    float64    `json:"refY"`
	Width   float64    `json:"width"`
	Height  float64    `json:"height"`
	Path    string     `json:"path"`
}

// Arrowhead is the marker every rendered scene uses.
func Arrowhead() Marker {
	return Marker{
		ID:      "arrowhead",
		ViewBox: [4]float64{0, 0, 10, 10},
		RefX:    5,
		RefY:    5,
		Width:   4,
		Height:  4,
		Path:    "M 0 0 L 10 5 L 0 10 z",
	}
}

// Scene is a fully laid-out diagram.
type Scene struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Marker Marker  `json:"marker"`
	Boxes  []Box   `json:"boxes"`
	Edges  []Edge  `json:"edges"`
}

// Box returns the box drawn for the named table.
func (s *Scene) Box(table string) (Box, bool) {
	for _, b := range s.Boxes {
		if b.Table == table {
			return b, true
		}
	}
	return Box{}, false
}

// Options holds the presentation constants. Zero fields take the defaults;
// a negative Margin means no margin.
type Options struct {
	TableWidth   float64 `json:"tableWidth" yaml:"table_width"`
	BaseHeight   float64 `json:"baseHeight" yaml:"base_height"`
	RowHeight    float64 `json:"rowHeight" yaml:"row_height"`
	HeaderHeight float64 `json:"headerHeight" yaml:"header_height"`
	TitleOffset  float64 `json:"titleOffset" yaml:"title_offset"`
	LabelOffset  float64 `json:"labelOffset" yaml:"label_offset"`
	Margin       float64 `json:"margin" yaml:"margin"`
}

// DefaultOptions returns the standard box geometry: 150 wide, 100 tall plus
// 20 per column, columns listed from 40 below the top edge.
func DefaultOptions() Options {
	return Options{
		TableWidth:   150,
		BaseHeight:   100,
		RowHeight:    20,
		HeaderHeight: 40,
		TitleOffset:  20,
		LabelOffset:  10,
		Margin:       20,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TableWidth <= 0 {
		o.TableWidth = d.TableWidth
	}
	if o.BaseHeight <= 0 {
		o.BaseHeight = d.BaseHeight
	}
	if o.RowHeight <= 0 {
		o.RowHeight = d.RowHeight
	}
	if o.HeaderHeight <= 0 {
		o.HeaderHeight = d.HeaderHeight
	}
	if o.TitleOffset <= 0 {
		o.TitleOffset = d.TitleOffset
	}
	if o.LabelOffset == 0 {
		o.LabelOffset = d.LabelOffset
	}
	switch {
	case o.Margin < 0:
		o.Margin = 0
	case o.Margin == 0:
		o.Margin = d.Margin
	}
	return o
}

// TableHeight returns the height of a box listing n columns.
func (o Options) TableHeight(n int) float64 {
	return o.BaseHeight + float64(n)*o.RowHeight
}
