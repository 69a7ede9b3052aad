package svg

import (
	"strings"
	"testing"
)

func TestColorString(t *testing.T) {
	tests := []struct {
		name string
		c    Color
		want string
	}{
		{"none", None, "none"},
		{"named", Named("green"), "green"},
		{"rgb", RGB(255, 160, 0), "rgb(255,160,0)"},
		{"rgba", RGBA(255, 255, 255, 0.85), "rgba(255,255,255,0.85)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTextEscapesXML(t *testing.T) {
	tt := NewText(`Fish & "Chips" <stop>`)
	if tt.Data != "Fish &amp; &quot;Chips&quot; &lt;stop&gt;" {
		t.Errorf("escaped data = %q", tt.Data)
	}
}

func TestDocumentRender(t *testing.T) {
	doc := &Document{}
	doc.Add(Polyline{
		Points: []Point{{X: 10, Y: 20}, {X: 30, Y: 40}},
		Style: PathStyle{
			Fill:        None,
			Stroke:      Named("green"),
			StrokeWidth: 14,
			HasWidth:    true,
			LineCap:     CapRound,
			HasLineCap:  true,
			LineJoin:    JoinRound,
			HasLineJoin: true,
		},
	})
	doc.Add(Circle{Center: Point{X: 10, Y: 20}, Radius: 5, Style: PathStyle{Fill: Named("white")}})

	out := doc.String()
	if !strings.HasPrefix(out, "<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\">") {
		t.Fatalf("unexpected document prolog:\n%s", out)
	}
	if !strings.Contains(out, `<polyline points="10,20 30,40" fill="none" stroke="green" stroke-width="14" stroke-linecap="round" stroke-linejoin="round" />`) {
		t.Errorf("polyline not rendered as expected:\n%s", out)
	}
	if !strings.Contains(out, `<circle cx="10" cy="20" r="5" fill="white" />`) {
		t.Errorf("circle not rendered as expected:\n%s", out)
	}
	if strings.Index(out, "<polyline") > strings.Index(out, "<circle") {
		t.Error("elements must render in insertion order")
	}
	if !strings.HasSuffix(out, "</svg>") {
		t.Errorf("document must close the svg root:\n%s", out)
	}
}

func TestTextRenderCarriesFontAttributes(t *testing.T) {
	txt := NewText("Marushkino")
	txt.Pos = Point{X: 50, Y: 60}
	txt.Offset = Point{X: 7, Y: -3}
	txt.FontSize = 20
	txt.FontFamily = "Verdana"
	txt.FontWeight = "bold"
	txt.Style = PathStyle{Fill: Named("black")}

	var b strings.Builder
	txt.writeSVG(&b)
	out := b.String()
	for _, want := range []string{
		`x="50"`, `y="60"`, `dx="7"`, `dy="-3"`,
		`font-size="20"`, `font-family="Verdana"`, `font-weight="bold"`,
		">Marushkino</text>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}
