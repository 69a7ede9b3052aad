package dispatch

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"transitcat/pkg/catalog"
	"transitcat/pkg/config"
	"transitcat/pkg/graph"
	"transitcat/pkg/render"
	"transitcat/pkg/router"
)

func buildTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	stops := []catalog.StopRequest{
		{Name: "A", Lat: 55.0, Lng: 37.0, RoadDistances: map[string]uint32{"B": 3000}},
		{Name: "B", Lat: 55.01, Lng: 37.0, RoadDistances: map[string]uint32{"C": 3000}},
		{Name: "C", Lat: 55.02, Lng: 37.0},
	}
	buses := []catalog.BusRequest{
		{Name: "1", Stops: []string{"A", "B", "C", "A"}, IsRoundtrip: true},
	}
	cat, err := catalog.Build(stops, buses)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g := graph.Build(cat, 6, 60)
	r := router.Precompute(g)
	settings := render.Settings{Width: 200, Height: 200, Padding: 10, ColorPalette: nil}
	return New(cat, g, r, settings, render.ActiveCoordinates(cat))
}

func process(t *testing.T, d *Dispatcher, reqs []config.StatRequest) []any {
	t.Helper()
	results, err := d.Process(context.Background(), reqs)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return results
}

func TestDispatchStopNotFound(t *testing.T) {
	d := buildTestDispatcher(t)
	results := process(t, d, []config.StatRequest{{ID: 1, Type: "Stop", Name: "Nonexistent"}})
	resp, ok := results[0].(ErrorResponse)
	if !ok {
		t.Fatalf("expected ErrorResponse, got %T", results[0])
	}
	if resp.ErrorMessage != "not found" || resp.RequestID != 1 {
		t.Errorf("expected not found for id 1, got %+v", resp)
	}
}

func TestDispatchStopFound(t *testing.T) {
	d := buildTestDispatcher(t)
	results := process(t, d, []config.StatRequest{{ID: 1, Type: "Stop", Name: "A"}})
	resp := results[0].(StopResponse)
	if len(resp.Buses) != 1 || resp.Buses[0] != "1" {
		t.Errorf("expected buses=[1], got %+v", resp)
	}
}

func TestDispatchStopNoBusesMarshalsEmptyArray(t *testing.T) {
	stops := []catalog.StopRequest{{Name: "A", Lat: 55.0, Lng: 37.0}}
	cat, err := catalog.Build(stops, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g := graph.Build(cat, 6, 60)
	d := New(cat, g, router.Precompute(g), render.Settings{}, nil)

	results := process(t, d, []config.StatRequest{{ID: 1, Type: "Stop", Name: "A"}})
	out, err := json.Marshal(results[0])
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"buses":[]`) {
		t.Errorf("a bus-less stop must answer with an empty buses array, got %s", out)
	}
}

func TestDispatchBusStats(t *testing.T) {
	d := buildTestDispatcher(t)
	results := process(t, d, []config.StatRequest{{ID: 1, Type: "Bus", Name: "1"}})
	resp := results[0].(BusResponse)
	if resp.StopCount != 4 {
		t.Errorf("StopCount = %d, want 4", resp.StopCount)
	}
	if resp.UniqueStopCount != 3 {
		t.Errorf("UniqueStopCount = %d, want 3", resp.UniqueStopCount)
	}
	if resp.RouteLength != 6000 {
		t.Errorf("RouteLength = %d, want 6000", resp.RouteLength)
	}
}

func TestDispatchRoutePreservesOrderAndHandlesMixedBatch(t *testing.T) {
	d := buildTestDispatcher(t)
	reqs := []config.StatRequest{
		{ID: 1, Type: "Stop", Name: "A"},
		{ID: 2, Type: "Route", From: "A", To: "B"},
		{ID: 3, Type: "Bus", Name: "nope"},
	}
	results := process(t, d, reqs)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if _, ok := results[0].(StopResponse); !ok {
		t.Errorf("results[0] should be StopResponse, got %T", results[0])
	}
	routeResp, ok := results[1].(RouteResponse)
	if !ok {
		t.Fatalf("results[1] should be RouteResponse, got %T", results[1])
	}
	if len(routeResp.Items) != 2 {
		t.Errorf("expected wait+ride items, got %+v", routeResp.Items)
	}
	errResp, ok := results[2].(ErrorResponse)
	if !ok || errResp.ErrorMessage != "not found" {
		t.Errorf("results[2] should report not found, got %+v", results[2])
	}
}

func TestDispatchRouteSameStop(t *testing.T) {
	d := buildTestDispatcher(t)
	results := process(t, d, []config.StatRequest{{ID: 7, Type: "Route", From: "A", To: "A"}})
	resp, ok := results[0].(RouteResponse)
	if !ok {
		t.Fatalf("expected RouteResponse, got %T", results[0])
	}
	if resp.TotalTime != 0 || len(resp.Items) != 0 {
		t.Errorf("same-stop route should be empty with zero total, got %+v", resp)
	}
	out, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(out), `"items":[]`) || !strings.Contains(string(out), `"total_time":0`) {
		t.Errorf("empty itinerary must still carry items and total_time, got %s", out)
	}
}

func TestDispatchUnknownRequestTypeAbortsBatch(t *testing.T) {
	d := buildTestDispatcher(t)
	reqs := []config.StatRequest{
		{ID: 1, Type: "Stop", Name: "A"},
		{ID: 2, Type: "Teleport", Name: "A"},
	}
	if _, err := d.Process(context.Background(), reqs); err == nil {
		t.Fatal("expected an error for an unknown request type")
	}
}

func TestDispatchMapCaches(t *testing.T) {
	d := buildTestDispatcher(t)
	results := process(t, d, []config.StatRequest{{ID: 1, Type: "Map"}, {ID: 2, Type: "Map"}})
	first := results[0].(MapResponse)
	second := results[1].(MapResponse)
	if first.Map == "" {
		t.Fatal("expected non-empty map SVG")
	}
	if first.Map != second.Map {
		t.Error("two Map requests against the same dispatcher should return identical SVG")
	}
}
