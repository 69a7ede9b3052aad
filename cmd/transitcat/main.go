// Command transitcat builds a transit routing artifact from a JSON
// configuration document and answers batches of stat queries against
// one. Usage:
//
//	transitcat make_base < base_config.json
//	transitcat process_requests < query_config.json > answers.json
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"transitcat/pkg/catalog"
	"transitcat/pkg/config"
	"transitcat/pkg/dispatch"
	"transitcat/pkg/graph"
	"transitcat/pkg/render"
	"transitcat/pkg/router"
	"transitcat/pkg/serialize"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "Usage: transitcat make_base|process_requests")
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "make_base":
		err = makeBase(os.Stdin)
	case "process_requests":
		err = processRequests(os.Stdin, os.Stdout)
	default:
		fmt.Fprintln(os.Stderr, "Usage: transitcat make_base|process_requests")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("transitcat %s: %v", os.Args[1], err)
	}
}

func makeBase(r io.Reader) error {
	start := time.Now()

	log.Println("Reading configuration...")
	var doc config.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}
	if doc.RoutingSettings == nil {
		return fmt.Errorf("missing routing_settings")
	}
	if doc.RoutingSettings.BusWaitTime < 1 {
		return fmt.Errorf("bus_wait_time must be at least 1 minute, got %d", doc.RoutingSettings.BusWaitTime)
	}
	if doc.RoutingSettings.BusVelocity <= 0 {
		return fmt.Errorf("bus_velocity must be positive, got %v", doc.RoutingSettings.BusVelocity)
	}
	if doc.RenderSettings == nil {
		return fmt.Errorf("missing render_settings")
	}

	log.Println("Building catalog...")
	cat, err := buildCatalog(doc.BaseRequests)
	if err != nil {
		return fmt.Errorf("build catalog: %w", err)
	}
	log.Printf("Catalog: %d stops, %d buses", cat.StopCount(), len(cat.Buses()))

	log.Println("Building routing graph...")
	g := graph.Build(cat, float64(doc.RoutingSettings.BusWaitTime), doc.RoutingSettings.BusVelocity)
	log.Printf("Graph: %d vertices, %d edges", g.VertexCount, len(g.Edges))

	log.Println("Precomputing all-pairs routes...")
	rt := router.Precompute(g)

	log.Println("Serializing artifact...")
	artifact := buildArtifact(cat, g, rt, doc.RoutingSettings, doc.RenderSettings)
	if err := serialize.Write(doc.SerializationSettings.File, artifact); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}

	log.Printf("Done in %s. Output: %s", time.Since(start).Round(time.Millisecond), doc.SerializationSettings.File)
	return nil
}

func processRequests(r io.Reader, w io.Writer) error {
	start := time.Now()

	var doc config.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("decode configuration: %w", err)
	}

	log.Printf("Loading artifact %s...", doc.SerializationSettings.File)
	artifact, err := serialize.Read(doc.SerializationSettings.File)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}

	cat, g, rt, settings, coords := rehydrate(artifact)

	d := dispatch.New(cat, g, rt, settings, coords)
	log.Printf("Answering %d requests...", len(doc.StatRequests))
	results, err := d.Process(context.Background(), doc.StatRequests)
	if err != nil {
		return fmt.Errorf("process requests: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encode responses: %w", err)
	}

	log.Printf("Done in %s", time.Since(start).Round(time.Millisecond))
	return nil
}

func buildCatalog(requests []config.BaseRequest) (*catalog.Catalog, error) {
	var stops []catalog.StopRequest
	var buses []catalog.BusRequest
	for _, req := range requests {
		switch req.Type {
		case "Stop":
			stops = append(stops, catalog.StopRequest{
				Name:          req.Name,
				Lat:           req.Latitude,
				Lng:           req.Longitude,
				RoadDistances: req.RoadDistances,
			})
		case "Bus":
			buses = append(buses, catalog.BusRequest{
				Name:        req.Name,
				Stops:       req.Stops,
				IsRoundtrip: req.IsRoundtrip,
			})
		default:
			return nil, fmt.Errorf("unknown base request type %q", req.Type)
		}
	}
	return catalog.Build(stops, buses)
}

func buildArtifact(cat *catalog.Catalog, g *graph.Graph, rt *router.Router, routing *config.RoutingSettings, rs *config.RenderSettings) *serialize.Artifact {
	stops := cat.Stops()
	a := &serialize.Artifact{
		StopNames:   make([]string, len(stops)),
		StopLat:     make([]float64, len(stops)),
		StopLng:     make([]float64, len(stops)),
		BusWaitTime: float64(routing.BusWaitTime),
		BusVelocity: routing.BusVelocity,
		VertexCount: g.VertexCount,
	}
	for i, s := range stops {
		a.StopNames[i] = s.Name
		a.StopLat[i] = s.Lat
		a.StopLng[i] = s.Lng
	}
	for i, from := range stops {
		fromIdx := cat.StopIndex(from.Name)
		for j, to := range stops {
			if i == j {
				continue
			}
			toIdx := cat.StopIndex(to.Name)
			meters := cat.Distance(from.Name, to.Name)
			if meters != 0 {
				a.Distances = append(a.Distances, serialize.Distance{
					FromIdx: uint32(fromIdx), ToIdx: uint32(toIdx), Meters: meters,
				})
			}
		}
	}

	for _, bus := range cat.Buses() {
		idx := make([]uint32, len(bus.Stops))
		for i, name := range bus.Stops {
			idx[i] = uint32(cat.StopIndex(name))
		}
		a.Buses = append(a.Buses, serialize.Bus{Name: bus.Name, StopIdx: idx, IsRoundtrip: bus.IsRoundtrip})
	}

	underlayer, palette := rs.Resolved()
	paletteRecords := make([]serialize.Color, len(palette))
	for i, c := range palette {
		paletteRecords[i] = serialize.ColorFromSVG(c)
	}
	a.Render = serialize.RenderSettings{
		Width: rs.Width, Height: rs.Height, Padding: rs.Padding,
		LineWidth: rs.LineWidth, StopRadius: rs.StopRadius,
		BusLabelFontSize: rs.BusLabelFontSize, BusLabelOffset: rs.BusLabelOffset,
		StopLabelFontSize: rs.StopLabelFontSize, StopLabelOffset: rs.StopLabelOffset,
		UnderlayerColor: serialize.ColorFromSVG(underlayer), UnderlayerWidth: rs.UnderlayerWidth,
		Palette: paletteRecords,
	}

	coords := render.ActiveCoordinates(cat)
	a.ActiveLat = make([]float64, len(coords))
	a.ActiveLng = make([]float64, len(coords))
	for i, c := range coords {
		a.ActiveLat[i] = c.Lat
		a.ActiveLng[i] = c.Lng
	}

	for _, e := range g.Edges {
		a.Edges = append(a.Edges, serialize.Edge{
			From: uint32(e.From), To: uint32(e.To), Weight: e.Weight,
			Name: e.Name, SpanCount: uint32(e.SpanCount),
		})
	}

	cellCount := g.VertexCount * g.VertexCount
	a.CellWeight = make([]float64, cellCount)
	a.CellHasPath = make([]byte, cellCount)
	a.CellPrevEdge = make([]uint32, cellCount)
	a.CellHasPrev = make([]byte, cellCount)
	router.ExportCells(rt, a.CellWeight, a.CellHasPath, a.CellPrevEdge, a.CellHasPrev)

	return a
}

func rehydrate(a *serialize.Artifact) (*catalog.Catalog, *graph.Graph, *router.Router, render.Settings, []render.Coord) {
	stops := make([]catalog.StopRequest, len(a.StopNames))
	for i, name := range a.StopNames {
		stops[i] = catalog.StopRequest{Name: name, Lat: a.StopLat[i], Lng: a.StopLng[i]}
	}
	distByStop := make([]map[string]uint32, len(a.StopNames))
	for _, d := range a.Distances {
		if distByStop[d.FromIdx] == nil {
			distByStop[d.FromIdx] = make(map[string]uint32)
		}
		distByStop[d.FromIdx][a.StopNames[d.ToIdx]] = d.Meters
	}
	for i := range stops {
		stops[i].RoadDistances = distByStop[i]
	}

	buses := make([]catalog.BusRequest, len(a.Buses))
	for i, b := range a.Buses {
		names := make([]string, len(b.StopIdx))
		for j, idx := range b.StopIdx {
			names[j] = a.StopNames[idx]
		}
		buses[i] = catalog.BusRequest{Name: b.Name, Stops: names, IsRoundtrip: b.IsRoundtrip}
	}
	// The persisted sequence is already in post-expansion form, so use
	// the pre-expanded constructor — catalog.Build would otherwise
	// expand a non-roundtrip sequence a second time.
	cat, err := catalog.BuildPreExpanded(stops, buses)
	if err != nil {
		log.Fatalf("rehydrate catalog: %v", err)
	}

	g := graph.NewGraph(a.VertexCount)
	for _, e := range a.Edges {
		g.AddEdge(graph.Edge{
			From: graph.VertexID(e.From), To: graph.VertexID(e.To),
			Weight: e.Weight, Name: e.Name, SpanCount: int(e.SpanCount),
		})
	}

	rt := router.ImportCells(g, a.VertexCount, a.CellWeight, a.CellHasPath, a.CellPrevEdge, a.CellHasPrev)

	underlayer := a.Render.UnderlayerColor.ToSVG()
	settings := render.Settings{
		Width: a.Render.Width, Height: a.Render.Height, Padding: a.Render.Padding,
		LineWidth: a.Render.LineWidth, StopRadius: a.Render.StopRadius,
		BusLabelFontSize: a.Render.BusLabelFontSize, BusLabelOffset: a.Render.BusLabelOffset,
		StopLabelFontSize: a.Render.StopLabelFontSize, StopLabelOffset: a.Render.StopLabelOffset,
		UnderlayerColor: underlayer, UnderlayerWidth: a.Render.UnderlayerWidth,
	}
	for _, c := range a.Render.Palette {
		settings.ColorPalette = append(settings.ColorPalette, c.ToSVG())
	}

	coords := make([]render.Coord, len(a.ActiveLat))
	for i := range coords {
		coords[i] = render.Coord{Lat: a.ActiveLat[i], Lng: a.ActiveLng[i]}
	}

	return cat, g, rt, settings, coords
}
