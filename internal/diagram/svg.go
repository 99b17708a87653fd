package diagram

import (
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
)

// Style holds the SVG paint settings.
type Style struct {
	BoxFill   string  `yaml:"box_fill"`
	Stroke    string  `yaml:"stroke"`
	EdgeWidth float64 `yaml:"edge_width"`
	FontSize  float64 `yaml:"font_size"`
}

// DefaultStyle is light blue boxes with black outlines and 2px arrows.
func DefaultStyle() Style {
	return Style{BoxFill: "lightblue", Stroke: "black", EdgeWidth: 2, FontSize: 12}
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// SVG builds the scene as an SVG document.
func SVG(scene *Scene, style Style) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("width", num(scene.Width))
	svg.CreateAttr("height", num(scene.Height))
	svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %s %s", num(scene.Width), num(scene.Height)))
	svg.CreateAttr("font-family", "sans-serif")
	svg.CreateAttr("font-size", num(style.FontSize))

	m := scene.Marker
	marker := svg.CreateElement("defs").CreateElement("marker")
	marker.CreateAttr("id", m.ID)
	marker.CreateAttr("viewBox", fmt.Sprintf("%s %s %s %s", num(m.ViewBox[0]), num(m.ViewBox[1]), num(m.ViewBox[2]), num(m.ViewBox[3])))
	marker.CreateAttr("refX", num(m.RefX))
	marker.CreateAttr("refY", num(m.RefY))
	marker.CreateAttr("markerWidth", num(m.Width))
	marker.CreateAttr("markerHeight", num(m.Height))
	marker.CreateAttr("orient", "auto")
	path := marker.CreateElement("path")
	path.CreateAttr("d", m.Path)
	path.CreateAttr("fill", style.Stroke)

	for _, b := range scene.Boxes {
		g := svg.CreateElement("g")
		g.CreateAttr("class", "table")
		g.CreateAttr("data-table", b.Table)

		rect := g.CreateElement("rect")
		rect.CreateAttr("x", num(b.Rect.X))
		rect.CreateAttr("y", num(b.Rect.Y))
		rect.CreateAttr("width", num(b.Rect.Width))
		rect.CreateAttr("height", num(b.Rect.Height))
		rect.CreateAttr("fill", style.BoxFill)
		rect.CreateAttr("stroke", style.Stroke)

		title := text(g, b.Title)
		title.CreateAttr("font-weight", "bold")
		for _, c := range b.Columns {
			text(g, c)
		}
	}

	for _, e := range scene.Edges {
		g := svg.CreateElement("g")
		g.CreateAttr("class", "relation")

		line := g.CreateElement("line")
		line.CreateAttr("x1", num(e.From.X))
		line.CreateAttr("y1", num(e.From.Y))
		line.CreateAttr("x2", num(e.To.X))
		line.CreateAttr("y2", num(e.To.Y))
		line.CreateAttr("stroke", style.Stroke)
		line.CreateAttr("stroke-width", num(style.EdgeWidth))
		line.CreateAttr("marker-end", "url(#"+e.Marker+")")

		text(g, e.Label)
	}

	doc.Indent(2)
	return doc
}

func text(parent *etree.Element, t Text) *etree.Element {
	el := parent.CreateElement("text")
	el.CreateAttr("x", num(t.X))
	el.CreateAttr("y", num(t.Y))
	el.CreateAttr("text-anchor", "middle")
	el.SetText(t.Content)
	return el
}

// WriteSVG serialises the scene as an SVG document.
func WriteSVG(w io.Writer, scene *Scene, style Style) error {
	if _, err := SVG(scene, style).WriteTo(w); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}
