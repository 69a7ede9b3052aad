// Package router precomputes all-pairs shortest paths over a routing
// graph and answers point-to-point route queries against the result.
package router

import (
	"context"
	"errors"

	"transitcat/pkg/graph"
)

// ErrNoRoute is returned when no path exists between two vertices.
var ErrNoRoute = errors.New("no route found")

// RouteInfo is the outcome of a successful route query: the total
// weight and the ordered edges composing the path.
type RouteInfo struct {
	Weight float64
	Edges  []graph.EdgeID
}

// routeCell is one entry of the dense all-pairs table. HasPath is
// false for unreachable pairs; PrevEdge is the edge arriving at the
// column vertex on the current-best path, used to reconstruct the
// full edge list by walking backward from the destination.
type routeCell struct {
	Weight      float64
	HasPath     bool
	PrevEdge    graph.EdgeID
	HasPrevEdge bool
}

// Router answers shortest-path queries against a dense Floyd-Warshall
// precompute. It holds no mutable state after Precompute, so queries
// are safe for concurrent use.
type Router struct {
	g     *graph.Graph
	cells [][]routeCell
}

// Precompute runs Floyd-Warshall over g and returns a Router ready to
// answer queries. Cost is O(V^3); V is twice the stop count, so this
// is intended to run once during the build phase, not per query.
func Precompute(g *graph.Graph) *Router {
	n := g.VertexCount
	cells := make([][]routeCell, n)
	for i := range cells {
		cells[i] = make([]routeCell, n)
	}
	for i := 0; i < n; i++ {
		cells[i][i] = routeCell{Weight: 0, HasPath: true}
	}

	for v := 0; v < n; v++ {
		for _, eid := range g.EdgesFrom(graph.VertexID(v)) {
			e := g.Edges[eid]
			cur := cells[v][e.To]
			if !cur.HasPath || e.Weight < cur.Weight {
				cells[v][e.To] = routeCell{
					Weight:      e.Weight,
					HasPath:     true,
					PrevEdge:    eid,
					HasPrevEdge: true,
				}
			}
		}
	}

	for k := 0; k < n; k++ {
		row := cells[k]
		for i := 0; i < n; i++ {
			viaK := cells[i][k]
			if !viaK.HasPath {
				continue
			}
			for j := 0; j < n; j++ {
				kj := row[j]
				if !kj.HasPath {
					continue
				}
				candidate := viaK.Weight + kj.Weight
				cur := cells[i][j]
				if !cur.HasPath || candidate < cur.Weight {
					cells[i][j] = routeCell{
						Weight:      candidate,
						HasPath:     true,
						PrevEdge:    kj.PrevEdge,
						HasPrevEdge: kj.HasPrevEdge,
					}
				}
			}
		}
	}

	return &Router{g: g, cells: cells}
}

// ExportCells flattens the dense all-pairs table into the four
// parallel arrays the binary artifact persists (row-major, vertex
// count squared entries each). Callers provide pre-sized
// destinations so the artifact builder controls the allocation.
func ExportCells(r *Router, weight []float64, hasPath []byte, prevEdge []uint32, hasPrevEdge []byte) {
	n := len(r.cells)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := i*n + j
			c := r.cells[i][j]
			weight[idx] = c.Weight
			if c.HasPath {
				hasPath[idx] = 1
			}
			prevEdge[idx] = uint32(c.PrevEdge)
			if c.HasPrevEdge {
				hasPrevEdge[idx] = 1
			}
		}
	}
}

// ImportCells reconstructs a Router from a previously exported dense
// table, without re-running Precompute.
func ImportCells(g *graph.Graph, vertexCount int, weight []float64, hasPath []byte, prevEdge []uint32, hasPrevEdge []byte) *Router {
	cells := make([][]routeCell, vertexCount)
	for i := range cells {
		cells[i] = make([]routeCell, vertexCount)
		for j := 0; j < vertexCount; j++ {
			idx := i*vertexCount + j
			cells[i][j] = routeCell{
				Weight:      weight[idx],
				HasPath:     hasPath[idx] != 0,
				PrevEdge:    graph.EdgeID(prevEdge[idx]),
				HasPrevEdge: hasPrevEdge[idx] != 0,
			}
		}
	}
	return &Router{g: g, cells: cells}
}

// BuildRoute returns the shortest path from -> to, or ErrNoRoute if
// none exists. ctx is checked once up front; a dense table lookup
// never blocks long enough to need mid-flight cancellation.
func (r *Router) BuildRoute(ctx context.Context, from, to graph.VertexID) (RouteInfo, error) {
	if err := ctx.Err(); err != nil {
		return RouteInfo{}, err
	}

	cell := r.cells[from][to]
	if !cell.HasPath {
		return RouteInfo{}, ErrNoRoute
	}
	if from == to {
		return RouteInfo{Weight: 0}, nil
	}

	var edges []graph.EdgeID
	cur := to
	for cur != from {
		c := r.cells[from][cur]
		if !c.HasPrevEdge {
			return RouteInfo{}, ErrNoRoute
		}
		edge := r.g.Edges[c.PrevEdge]
		edges = append(edges, c.PrevEdge)
		cur = edge.From
	}

	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}

	return RouteInfo{Weight: cell.Weight, Edges: edges}, nil
}
