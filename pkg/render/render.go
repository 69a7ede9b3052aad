// Package render projects stop coordinates onto an SVG canvas and
// draws the transit map: bus polylines, bus name labels, stop
// circles, and stop name labels, in that fixed draw order.
package render

import (
	"sort"

	"transitcat/pkg/catalog"
	"transitcat/pkg/svg"
)

// Settings configures the map canvas and palette.
type Settings struct {
	Width, Height float64
	Padding       float64

	LineWidth  float64
	StopRadius float64

	BusLabelFontSize  uint32
	BusLabelOffset    [2]float64
	StopLabelFontSize uint32
	StopLabelOffset   [2]float64

	UnderlayerColor svg.Color
	UnderlayerWidth float64

	ColorPalette []svg.Color
}

const epsilon = 1e-6

func isZero(v float64) bool {
	if v < 0 {
		v = -v
	}
	return v < epsilon
}

// Coord is one (lat, lng) pair fed to the projector. The full
// per-occurrence list is part of the persisted map-render input, so it
// carries no stop name.
type Coord struct {
	Lat, Lng float64
}

// Projector maps (lat, lng) coordinates onto SVG canvas points.
type Projector struct {
	padding   float64
	minLon    float64
	maxLat    float64
	zoomCoeff float64
}

// NewProjector builds a Projector calibrated to the bounding box of
// points. points may contain duplicates (one entry per stop
// occurrence across all bus routes, not deduplicated by name) — that
// does not change the computed bounding box.
func NewProjector(points []Coord, maxWidth, maxHeight, padding float64) Projector {
	p := Projector{padding: padding}
	if len(points) == 0 {
		return p
	}

	minLon, maxLon := points[0].Lng, points[0].Lng
	minLat, maxLat := points[0].Lat, points[0].Lat
	for _, pt := range points[1:] {
		if pt.Lng < minLon {
			minLon = pt.Lng
		}
		if pt.Lng > maxLon {
			maxLon = pt.Lng
		}
		if pt.Lat < minLat {
			minLat = pt.Lat
		}
		if pt.Lat > maxLat {
			maxLat = pt.Lat
		}
	}
	p.minLon = minLon
	p.maxLat = maxLat

	var widthZoom, heightZoom float64
	var haveWidthZoom, haveHeightZoom bool
	if !isZero(maxLon - minLon) {
		widthZoom = (maxWidth - 2*padding) / (maxLon - minLon)
		haveWidthZoom = true
	}
	if !isZero(maxLat - minLat) {
		heightZoom = (maxHeight - 2*padding) / (maxLat - minLat)
		haveHeightZoom = true
	}

	switch {
	case haveWidthZoom && haveHeightZoom:
		p.zoomCoeff = min(widthZoom, heightZoom)
	case haveWidthZoom:
		p.zoomCoeff = widthZoom
	case haveHeightZoom:
		p.zoomCoeff = heightZoom
	}

	return p
}

// Project converts a (lat, lng) pair into an SVG point.
func (p Projector) Project(lat, lng float64) svg.Point {
	return svg.Point{
		X: (lng-p.minLon)*p.zoomCoeff + p.padding,
		Y: (p.maxLat-lat)*p.zoomCoeff + p.padding,
	}
}

// activeBus is a bus that appears on the map (at least two stops).
type activeBus struct {
	name        string
	isRoundtrip bool
}

// collect gathers the active buses (sorted by name), active stops
// (sorted by name), and per-occurrence coordinates (bus ingestion
// order, one entry per stop occurrence, not deduplicated) needed to
// render cat. Buses with fewer than two stops are degenerate and not
// drawn; their stops do not make the active set either.
func collect(cat *catalog.Catalog) (buses []activeBus, coords []Coord, stopNames []string) {
	stopSet := make(map[string]struct{})
	for _, b := range cat.Buses() {
		if len(b.Stops) < 2 {
			continue
		}
		buses = append(buses, activeBus{name: b.Name, isRoundtrip: b.IsRoundtrip})
		for _, stopName := range b.Stops {
			stop, ok := cat.FindStop(stopName)
			if !ok {
				continue
			}
			coords = append(coords, Coord{Lat: stop.Lat, Lng: stop.Lng})
			stopSet[stopName] = struct{}{}
		}
	}
	sort.Slice(buses, func(i, j int) bool { return buses[i].name < buses[j].name })
	for name := range stopSet {
		stopNames = append(stopNames, name)
	}
	sort.Strings(stopNames)
	return buses, coords, stopNames
}

// ActiveCoordinates returns the per-occurrence (lat, lng) list the
// projector is calibrated with: every stop of every active bus, in bus
// ingestion order. The artifact stores this list verbatim so the query
// phase rebuilds the exact same projector.
func ActiveCoordinates(cat *catalog.Catalog) []Coord {
	_, coords, _ := collect(cat)
	return coords
}

// Render builds the full SVG document for the catalog's transit map,
// calibrating the projector from the catalog itself.
func Render(cat *catalog.Catalog, settings Settings) *svg.Document {
	return RenderWithCoordinates(cat, settings, ActiveCoordinates(cat))
}

// RenderWithCoordinates is Render with the projector input supplied by
// the caller — the query phase passes the persisted active-coordinate
// list instead of recollecting it.
func RenderWithCoordinates(cat *catalog.Catalog, settings Settings, coords []Coord) *svg.Document {
	buses, _, stopNames := collect(cat)
	proj := NewProjector(coords, settings.Width, settings.Height, settings.Padding)

	doc := &svg.Document{}
	drawLinesBuses(doc, cat, proj, settings, buses)
	drawNamesBuses(doc, cat, proj, settings, buses)
	drawCircleStops(doc, cat, proj, settings, stopNames)
	drawNamesStops(doc, cat, proj, settings, stopNames)
	return doc
}

func paletteColor(settings Settings, i int) svg.Color {
	if len(settings.ColorPalette) == 0 {
		return svg.None
	}
	return settings.ColorPalette[i%len(settings.ColorPalette)]
}

func drawLinesBuses(doc *svg.Document, cat *catalog.Catalog, proj Projector, settings Settings, buses []activeBus) {
	for i, ab := range buses {
		bus, ok := cat.FindBus(ab.name)
		if !ok {
			continue
		}
		line := svg.Polyline{
			Style: svg.PathStyle{
				Fill:        svg.None,
				Stroke:      paletteColor(settings, i),
				StrokeWidth: settings.LineWidth,
				HasWidth:    true,
				LineCap:     svg.CapRound,
				HasLineCap:  true,
				LineJoin:    svg.JoinRound,
				HasLineJoin: true,
			},
		}
		for _, stopName := range bus.Stops {
			stop, ok := cat.FindStop(stopName)
			if !ok {
				continue
			}
			line.Points = append(line.Points, proj.Project(stop.Lat, stop.Lng))
		}
		doc.Add(line)
	}
}

func busLabel(proj Projector, settings Settings, stop catalog.Stop, name string, fill svg.Color, underlayer bool) svg.Text {
	t := svg.NewText(name)
	t.Pos = proj.Project(stop.Lat, stop.Lng)
	t.Offset = svg.Point{X: settings.BusLabelOffset[0], Y: settings.BusLabelOffset[1]}
	t.FontSize = settings.BusLabelFontSize
	t.FontFamily = "Verdana"
	t.FontWeight = "bold"
	if underlayer {
		t.Style = svg.PathStyle{
			Fill:        settings.UnderlayerColor,
			Stroke:      settings.UnderlayerColor,
			StrokeWidth: settings.UnderlayerWidth,
			HasWidth:    true,
			LineCap:     svg.CapRound,
			HasLineCap:  true,
			LineJoin:    svg.JoinRound,
			HasLineJoin: true,
		}
	} else {
		t.Style = svg.PathStyle{Fill: fill}
	}
	return t
}

func drawNamesBuses(doc *svg.Document, cat *catalog.Catalog, proj Projector, settings Settings, buses []activeBus) {
	for i, ab := range buses {
		bus, ok := cat.FindBus(ab.name)
		if !ok || len(bus.Stops) == 0 {
			continue
		}
		color := paletteColor(settings, i)
		start, ok := cat.FindStop(bus.Stops[0])
		if !ok {
			continue
		}
		doc.Add(busLabel(proj, settings, start, bus.Name, color, true))
		doc.Add(busLabel(proj, settings, start, bus.Name, color, false))

		mid := len(bus.Stops) / 2
		if !ab.isRoundtrip && bus.Stops[mid] != bus.Stops[0] {
			midStop, ok := cat.FindStop(bus.Stops[mid])
			if ok {
				doc.Add(busLabel(proj, settings, midStop, bus.Name, color, true))
				doc.Add(busLabel(proj, settings, midStop, bus.Name, color, false))
			}
		}
	}
}

func drawCircleStops(doc *svg.Document, cat *catalog.Catalog, proj Projector, settings Settings, stopNames []string) {
	for _, name := range stopNames {
		stop, ok := cat.FindStop(name)
		if !ok {
			continue
		}
		doc.Add(svg.Circle{
			Center: proj.Project(stop.Lat, stop.Lng),
			Radius: settings.StopRadius,
			Style:  svg.PathStyle{Fill: svg.Named("white")},
		})
	}
}

func drawNamesStops(doc *svg.Document, cat *catalog.Catalog, proj Projector, settings Settings, stopNames []string) {
	for _, name := range stopNames {
		stop, ok := cat.FindStop(name)
		if !ok {
			continue
		}
		pos := proj.Project(stop.Lat, stop.Lng)
		offset := svg.Point{X: settings.StopLabelOffset[0], Y: settings.StopLabelOffset[1]}

		bg := svg.NewText(name)
		bg.Pos, bg.Offset = pos, offset
		bg.FontSize = settings.StopLabelFontSize
		bg.FontFamily = "Verdana"
		bg.Style = svg.PathStyle{
			Fill:        settings.UnderlayerColor,
			Stroke:      settings.UnderlayerColor,
			StrokeWidth: settings.UnderlayerWidth,
			HasWidth:    true,
			LineCap:     svg.CapRound,
			HasLineCap:  true,
			LineJoin:    svg.JoinRound,
			HasLineJoin: true,
		}
		doc.Add(bg)

		fg := svg.NewText(name)
		fg.Pos, fg.Offset = pos, offset
		fg.FontSize = settings.StopLabelFontSize
		fg.FontFamily = "Verdana"
		fg.Style = svg.PathStyle{Fill: svg.Named("black")}
		doc.Add(fg)
	}
}
