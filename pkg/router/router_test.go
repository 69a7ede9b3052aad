package router

import (
	"context"
	"testing"

	"transitcat/pkg/catalog"
	"transitcat/pkg/graph"
)

func buildThreeStopCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	stops := []catalog.StopRequest{
		{Name: "A", Lat: 0, Lng: 0, RoadDistances: map[string]uint32{"B": 3000}},
		{Name: "B", Lat: 0, Lng: 0, RoadDistances: map[string]uint32{"C": 3000}},
		{Name: "C", Lat: 0, Lng: 0},
	}
	buses := []catalog.BusRequest{{Name: "1", Stops: []string{"A", "B", "C", "A"}, IsRoundtrip: true}}
	c, err := catalog.Build(stops, buses)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return c
}

func TestBuildRouteSameStop(t *testing.T) {
	c := buildThreeStopCatalog(t)
	g := graph.Build(c, 6, 60)
	r := Precompute(g)

	aIdx := c.StopIndex("A")
	info, err := r.BuildRoute(context.Background(), graph.WaitVertex(aIdx), graph.WaitVertex(aIdx))
	if err != nil {
		t.Fatalf("BuildRoute: %v", err)
	}
	if info.Weight != 0 || len(info.Edges) != 0 {
		t.Errorf("same-stop route should be zero-weight and edgeless, got %+v", info)
	}
}

func TestBuildRouteWaitThenRide(t *testing.T) {
	c := buildThreeStopCatalog(t)
	g := graph.Build(c, 6, 60) // 60 km/h = 1000 m/min; 3000m leg = 3min
	r := Precompute(g)

	aIdx, bIdx := c.StopIndex("A"), c.StopIndex("B")
	info, err := r.BuildRoute(context.Background(), graph.WaitVertex(aIdx), graph.WaitVertex(bIdx))
	if err != nil {
		t.Fatalf("BuildRoute: %v", err)
	}
	if len(info.Edges) != 2 {
		t.Fatalf("expected wait+ride edges, got %d edges: %+v", len(info.Edges), info)
	}
	wait := g.Edges[info.Edges[0]]
	ride := g.Edges[info.Edges[1]]
	if wait.SpanCount != 0 {
		t.Errorf("first edge should be a wait edge, got %+v", wait)
	}
	if ride.SpanCount == 0 {
		t.Errorf("second edge should be a ride edge, got %+v", ride)
	}
	wantWeight := 6.0 + 3.0
	if diff := info.Weight - wantWeight; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("total weight = %v, want %v", info.Weight, wantWeight)
	}
}

func TestBuildRouteNoPathToUnreachableVertex(t *testing.T) {
	stops := []catalog.StopRequest{
		{Name: "A", Lat: 0, Lng: 0},
		{Name: "Island", Lat: 10, Lng: 10},
	}
	c, err := catalog.Build(stops, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	g := graph.Build(c, 6, 60)
	r := Precompute(g)

	aIdx, islandIdx := c.StopIndex("A"), c.StopIndex("Island")
	_, err = r.BuildRoute(context.Background(), graph.WaitVertex(aIdx), graph.WaitVertex(islandIdx))
	if err != ErrNoRoute {
		t.Errorf("expected ErrNoRoute, got %v", err)
	}
}
