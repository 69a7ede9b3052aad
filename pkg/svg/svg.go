// Package svg renders a minimal SVG document: polylines, circles, and
// text, each with fill/stroke styling and a tagged-union color.
package svg

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ColorKind discriminates the Color tagged union.
type ColorKind int

const (
	ColorNone ColorKind = iota
	ColorNamed
	ColorRGB
	ColorRGBA
)

// Color is a tagged union over {none, named string, rgb, rgba},
// mirroring the persisted Color oneof (monostate | string | rgb | rgba).
type Color struct {
	Kind    ColorKind
	Name    string
	R, G, B uint8
	A       float64
}

// None is the unset/"none" color.
var None = Color{Kind: ColorNone}

// Named constructs a color from a CSS color keyword.
func Named(name string) Color { return Color{Kind: ColorNamed, Name: name} }

// RGB constructs an opaque rgb() color.
func RGB(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

// RGBA constructs a translucent rgba() color.
func RGBA(r, g, b uint8, a float64) Color { return Color{Kind: ColorRGBA, R: r, G: g, B: b, A: a} }

// String renders the color's SVG attribute value.
func (c Color) String() string {
	switch c.Kind {
	case ColorNamed:
		return c.Name
	case ColorRGB:
		return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
	case ColorRGBA:
		return fmt.Sprintf("rgba(%d,%d,%d,%s)", c.R, c.G, c.B, formatFloat(c.A))
	default:
		return "none"
	}
}

// Point is a 2D coordinate within the SVG viewport.
type Point struct {
	X, Y float64
}

// LineCap is the stroke-linecap attribute value.
type LineCap int

const (
	CapButt LineCap = iota
	CapRound
	CapSquare
)

func (c LineCap) String() string {
	switch c {
	case CapRound:
		return "round"
	case CapSquare:
		return "square"
	default:
		return "butt"
	}
}

// LineJoin is the stroke-linejoin attribute value.
type LineJoin int

const (
	JoinMiter LineJoin = iota
	JoinRound
	JoinBevel
)

func (j LineJoin) String() string {
	switch j {
	case JoinRound:
		return "round"
	case JoinBevel:
		return "bevel"
	default:
		return "miter"
	}
}

// PathStyle holds the fill/stroke attributes shared by Circle,
// Polyline, and Text. Fill is always written (None renders as
// fill="none"); Stroke is written only when it is not None.
type PathStyle struct {
	Fill        Color
	Stroke      Color
	StrokeWidth float64
	HasWidth    bool
	LineCap     LineCap
	HasLineCap  bool
	LineJoin    LineJoin
	HasLineJoin bool
}

func (s PathStyle) writeAttrs(b *strings.Builder) {
	fmt.Fprintf(b, " fill=\"%s\"", s.Fill)
	if s.Stroke.Kind != ColorNone {
		fmt.Fprintf(b, " stroke=\"%s\"", s.Stroke)
	}
	if s.HasWidth {
		fmt.Fprintf(b, " stroke-width=\"%s\"", formatFloat(s.StrokeWidth))
	}
	if s.HasLineCap {
		fmt.Fprintf(b, " stroke-linecap=\"%s\"", s.LineCap)
	}
	if s.HasLineJoin {
		fmt.Fprintf(b, " stroke-linejoin=\"%s\"", s.LineJoin)
	}
}

// Element is anything that can render itself as one SVG tag.
type Element interface {
	writeSVG(b *strings.Builder)
}

// Circle is an SVG <circle> element.
type Circle struct {
	Center Point
	Radius float64
	Style  PathStyle
}

func (c Circle) writeSVG(b *strings.Builder) {
	fmt.Fprintf(b, "<circle cx=\"%s\" cy=\"%s\" r=\"%s\"", formatFloat(c.Center.X), formatFloat(c.Center.Y), formatFloat(c.Radius))
	c.Style.writeAttrs(b)
	b.WriteString(" />")
}

// Polyline is an SVG <polyline> element.
type Polyline struct {
	Points []Point
	Style  PathStyle
}

func (p Polyline) writeSVG(b *strings.Builder) {
	b.WriteString("<polyline points=\"")
	for i, pt := range p.Points {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatFloat(pt.X))
		b.WriteByte(',')
		b.WriteString(formatFloat(pt.Y))
	}
	b.WriteString("\"")
	p.Style.writeAttrs(b)
	b.WriteString(" />")
}

// Text is an SVG <text> element. Data is XML-escaped on entry by
// NewText, never by writeSVG, so the escaping happens exactly once.
type Text struct {
	Pos        Point
	Offset     Point
	FontSize   uint32
	FontFamily string
	FontWeight string
	Data       string // already escaped
	Style      PathStyle
}

// NewText builds a Text element, escaping data for XML use.
func NewText(data string) Text {
	return Text{Data: escapeText(data)}
}

func (t Text) writeSVG(b *strings.Builder) {
	fmt.Fprintf(b, "<text x=\"%s\" y=\"%s\" dx=\"%s\" dy=\"%s\" font-size=\"%d\"",
		formatFloat(t.Pos.X), formatFloat(t.Pos.Y), formatFloat(t.Offset.X), formatFloat(t.Offset.Y), t.FontSize)
	if t.FontFamily != "" {
		fmt.Fprintf(b, " font-family=\"%s\"", t.FontFamily)
	}
	if t.FontWeight != "" {
		fmt.Fprintf(b, " font-weight=\"%s\"", t.FontWeight)
	}
	t.Style.writeAttrs(b)
	b.WriteString(">")
	b.WriteString(t.Data)
	b.WriteString("</text>")
}

// escapeText escapes the five XML-significant characters.
func escapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString("&quot;")
		case '\'':
			b.WriteString("&apos;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		case '&':
			b.WriteString("&amp;")
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Document is an ordered collection of SVG elements; later-added
// elements draw on top of earlier ones.
type Document struct {
	elements []Element
}

// Add appends an element to the document.
func (d *Document) Add(e Element) {
	d.elements = append(d.elements, e)
}

// Render writes the full SVG document to w.
func (d *Document) Render(w io.Writer) error {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n")
	b.WriteString("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\">\n")
	for _, e := range d.elements {
		b.WriteString("  ")
		e.writeSVG(&b)
		b.WriteString("\n")
	}
	b.WriteString("</svg>")
	_, err := io.WriteString(w, b.String())
	return err
}

// String renders the document to a string.
func (d *Document) String() string {
	var b strings.Builder
	d.Render(&b)
	return b.String()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
