// Package dispatch answers stat_requests against a built transit
// system: stop and bus lookups, map rendering, and route queries.
// Requests are answered independently — an entry naming an unknown
// stop, bus, or unroutable pair reports "not found" in its slot
// without aborting the batch.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"transitcat/pkg/catalog"
	"transitcat/pkg/config"
	"transitcat/pkg/geo"
	"transitcat/pkg/graph"
	"transitcat/pkg/render"
	"transitcat/pkg/router"
)

// ErrorResponse replaces any response whose subject could not be
// resolved: unknown stop, unknown bus, unroutable pair.
type ErrorResponse struct {
	RequestID    int    `json:"request_id"`
	ErrorMessage string `json:"error_message"`
}

// StopResponse answers a Stop stat request. Buses is always present,
// empty for a stop no bus visits.
type StopResponse struct {
	RequestID int      `json:"request_id"`
	Buses     []string `json:"buses"`
}

// BusResponse answers a Bus stat request.
type BusResponse struct {
	RequestID       int     `json:"request_id"`
	Curvature       float64 `json:"curvature"`
	RouteLength     uint32  `json:"route_length"`
	StopCount       int     `json:"stop_count"`
	UniqueStopCount int     `json:"unique_stop_count"`
}

// MapResponse answers a Map stat request.
type MapResponse struct {
	RequestID int    `json:"request_id"`
	Map       string `json:"map"`
}

// RouteItem is one leg of a Route response: either a wait (stop name,
// no span) or a bus ride (bus name, span count).
type RouteItem struct {
	Type      string  `json:"type"`
	StopName  string  `json:"stop_name,omitempty"`
	Bus       string  `json:"bus,omitempty"`
	SpanCount int     `json:"span_count,omitempty"`
	Time      float64 `json:"time"`
}

// RouteResponse answers a Route stat request. A same-stop route is a
// valid empty itinerary, not an error, so Items and TotalTime are
// always present.
type RouteResponse struct {
	RequestID int         `json:"request_id"`
	Items     []RouteItem `json:"items"`
	TotalTime float64     `json:"total_time"`
}

const notFound = "not found"

// Dispatcher holds everything needed to answer stat requests against
// one built system.
type Dispatcher struct {
	cat      *catalog.Catalog
	g        *graph.Graph
	r        *router.Router
	settings render.Settings
	coords   []render.Coord

	mapOnce sync.Once
	mapSVG  string

	itemsPool sync.Pool
}

// New builds a Dispatcher over an already-built catalog, routing
// graph, precomputed router, and render settings. coords is the
// projector calibration list — the persisted active coordinates when
// serving from an artifact, or render.ActiveCoordinates(cat) when the
// catalog was just built.
func New(cat *catalog.Catalog, g *graph.Graph, r *router.Router, settings render.Settings, coords []render.Coord) *Dispatcher {
	d := &Dispatcher{cat: cat, g: g, r: r, settings: settings, coords: coords}
	d.itemsPool.New = func() any {
		s := make([]RouteItem, 0, 16)
		return &s
	}
	return d
}

// Process answers every request in order, returning one response per
// request in the same order. Each response's concrete type is one of
// StopResponse, BusResponse, MapResponse, RouteResponse, or
// ErrorResponse. An unknown request type is malformed input and aborts
// the whole batch.
func (d *Dispatcher) Process(ctx context.Context, requests []config.StatRequest) ([]any, error) {
	results := make([]any, len(requests))
	for i, req := range requests {
		switch req.Type {
		case "Stop":
			results[i] = d.stop(req)
		case "Bus":
			results[i] = d.bus(req)
		case "Map":
			results[i] = d.mapRequest(req)
		case "Route":
			results[i] = d.route(ctx, req)
		default:
			return nil, fmt.Errorf("unknown stat request type %q (id %d)", req.Type, req.ID)
		}
	}
	return results, nil
}

func (d *Dispatcher) stop(req config.StatRequest) any {
	buses, ok := d.cat.BusesAtStop(req.Name)
	if !ok {
		return ErrorResponse{RequestID: req.ID, ErrorMessage: notFound}
	}
	return StopResponse{RequestID: req.ID, Buses: buses}
}

func (d *Dispatcher) bus(req config.StatRequest) any {
	bus, ok := d.cat.FindBus(req.Name)
	if !ok {
		return ErrorResponse{RequestID: req.ID, ErrorMessage: notFound}
	}

	var roadDistance uint32
	var straightDistance float64
	unique := make(map[string]struct{}, len(bus.Stops))
	for i := 0; i+1 < len(bus.Stops); i++ {
		from, _ := d.cat.FindStop(bus.Stops[i])
		to, _ := d.cat.FindStop(bus.Stops[i+1])
		roadDistance += d.cat.Distance(bus.Stops[i], bus.Stops[i+1])
		straightDistance += geo.GreatCircle(from.Lat, from.Lng, to.Lat, to.Lng)
		unique[bus.Stops[i]] = struct{}{}
	}
	if len(bus.Stops) > 0 {
		unique[bus.Stops[len(bus.Stops)-1]] = struct{}{}
	}

	var curvature float64
	if straightDistance != 0 {
		curvature = float64(roadDistance) / straightDistance
	}

	return BusResponse{
		RequestID:       req.ID,
		Curvature:       curvature,
		RouteLength:     roadDistance,
		StopCount:       len(bus.Stops),
		UniqueStopCount: len(unique),
	}
}

func (d *Dispatcher) mapRequest(req config.StatRequest) MapResponse {
	d.mapOnce.Do(func() {
		doc := render.RenderWithCoordinates(d.cat, d.settings, d.coords)
		d.mapSVG = doc.String()
	})
	return MapResponse{RequestID: req.ID, Map: d.mapSVG}
}

func (d *Dispatcher) route(ctx context.Context, req config.StatRequest) any {
	fromIdx := d.cat.StopIndex(req.From)
	toIdx := d.cat.StopIndex(req.To)
	if fromIdx < 0 || toIdx < 0 {
		return ErrorResponse{RequestID: req.ID, ErrorMessage: notFound}
	}

	info, err := d.r.BuildRoute(ctx, graph.WaitVertex(fromIdx), graph.WaitVertex(toIdx))
	if err != nil {
		return ErrorResponse{RequestID: req.ID, ErrorMessage: notFound}
	}

	itemsPtr := d.itemsPool.Get().(*[]RouteItem)
	items := (*itemsPtr)[:0]
	defer func() {
		*itemsPtr = items[:0]
		d.itemsPool.Put(itemsPtr)
	}()

	var total float64
	for _, eid := range info.Edges {
		e := d.g.Edges[eid]
		if e.SpanCount == 0 {
			items = append(items, RouteItem{Type: "Wait", StopName: e.Name, Time: e.Weight})
		} else {
			items = append(items, RouteItem{Type: "Bus", Bus: e.Name, SpanCount: e.SpanCount, Time: e.Weight})
		}
		total += e.Weight
	}

	out := make([]RouteItem, len(items))
	copy(out, items)

	return RouteResponse{RequestID: req.ID, Items: out, TotalTime: total}
}
