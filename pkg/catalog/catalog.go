// Package catalog holds the in-memory transit network: stops, buses,
// inter-stop road distances, and the stop→buses reverse index.
package catalog

import (
	"fmt"
	"sort"
)

// Stop is a named point in the network. Immutable after construction.
type Stop struct {
	Name string
	Lat  float64
	Lng  float64
}

// Bus is a named route over an ordered sequence of stops.
//
// Stops holds the post-expansion sequence: for a roundtrip bus this is
// the full cycle (first and last entries name the same stop); for a
// non-roundtrip bus it is the one-way sequence followed by its reverse
// with the endpoints not duplicated, length 2n-1 for an n-stop one-way
// route. Expanding at ingest time (rather than lazily at query time)
// is load-bearing: stop_count, the map's midpoint label placement, and
// the graph builder's turnaround boundary all key off this exact
// sequence.
type Bus struct {
	Name        string
	Stops       []string
	IsRoundtrip bool
}

// distKey is the composite key for the inter-stop distance table.
type distKey struct {
	from, to int
}

// Catalog is the pure-lookup store built once during the build phase
// and reconstructed identically on load. No concurrent mutators.
type Catalog struct {
	stops     []Stop
	stopIndex map[string]int // name -> index in stops (canonical stop order)
	buses     []Bus
	busIndex  map[string]int
	distances map[distKey]uint32
	stopBuses map[string][]string // sorted bus names per stop
}

// ValidationError reports a malformed build document; per the error
// taxonomy this is fatal and aborts the build pipeline.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// StopRequest is the ingest-time shape of one stop, still carrying its
// sparse outgoing road distances.
type StopRequest struct {
	Name          string
	Lat, Lng      float64
	RoadDistances map[string]uint32 // stop name -> meters
}

// BusRequest is the ingest-time shape of one bus, pre-expansion: the
// caller supplies the one-way (or full-cycle, for roundtrip) sequence.
type BusRequest struct {
	Name        string
	Stops       []string
	IsRoundtrip bool
}

// Build constructs a Catalog from the parsed build document. Stops are
// registered in the order given (this becomes the canonical stop
// order used everywhere else — graph vertex IDs, the SVG active-stop
// iteration, the persisted stop_names vector).
func Build(stopReqs []StopRequest, busReqs []BusRequest) (*Catalog, error) {
	return build(stopReqs, busReqs, true)
}

// BuildPreExpanded constructs a Catalog from stop sequences that are
// already in post-expansion form — as persisted artifacts store them
// — skipping the non-roundtrip expansion Build performs. IsRoundtrip
// is kept as given, since renderers still need the true flag even
// though the sequence itself no longer needs expanding.
func BuildPreExpanded(stopReqs []StopRequest, busReqs []BusRequest) (*Catalog, error) {
	return build(stopReqs, busReqs, false)
}

func build(stopReqs []StopRequest, busReqs []BusRequest, expand bool) (*Catalog, error) {
	c := &Catalog{
		stopIndex: make(map[string]int, len(stopReqs)),
		busIndex:  make(map[string]int, len(busReqs)),
		distances: make(map[distKey]uint32),
		stopBuses: make(map[string][]string),
	}

	for _, sr := range stopReqs {
		if _, exists := c.stopIndex[sr.Name]; exists {
			return nil, &ValidationError{Msg: fmt.Sprintf("duplicate stop name %q", sr.Name)}
		}
		c.stopIndex[sr.Name] = len(c.stops)
		c.stops = append(c.stops, Stop{Name: sr.Name, Lat: sr.Lat, Lng: sr.Lng})
	}

	// Fill the distance table. Sparse, directional input; the reverse
	// direction is filled with the same value only if it was not
	// separately provided — an explicit reverse entry always wins,
	// so later passes over the same pair must not clobber it.
	for _, sr := range stopReqs {
		fromIdx, ok := c.stopIndex[sr.Name]
		if !ok {
			return nil, &ValidationError{Msg: fmt.Sprintf("unknown stop %q in stop requests", sr.Name)}
		}
		for toName, meters := range sr.RoadDistances {
			toIdx, ok := c.stopIndex[toName]
			if !ok {
				return nil, &ValidationError{Msg: fmt.Sprintf("road_distances of %q references unknown stop %q", sr.Name, toName)}
			}
			reverseKey := distKey{from: toIdx, to: fromIdx}
			if _, reverseExplicit := c.distances[reverseKey]; reverseExplicit {
				c.distances[distKey{from: fromIdx, to: toIdx}] = meters
				continue
			}
			c.distances[distKey{from: fromIdx, to: toIdx}] = meters
			c.distances[reverseKey] = meters
		}
	}

	for _, br := range busReqs {
		if _, exists := c.busIndex[br.Name]; exists {
			return nil, &ValidationError{Msg: fmt.Sprintf("duplicate bus name %q", br.Name)}
		}
		for _, name := range br.Stops {
			if _, ok := c.stopIndex[name]; !ok {
				return nil, &ValidationError{Msg: fmt.Sprintf("bus %q references unknown stop %q", br.Name, name)}
			}
		}

		stops := br.Stops
		if expand && !br.IsRoundtrip && len(stops) > 1 {
			expanded := make([]string, 0, 2*len(stops)-1)
			expanded = append(expanded, stops...)
			for i := len(stops) - 2; i >= 0; i-- {
				expanded = append(expanded, stops[i])
			}
			stops = expanded
		}

		c.busIndex[br.Name] = len(c.buses)
		c.buses = append(c.buses, Bus{Name: br.Name, Stops: stops, IsRoundtrip: br.IsRoundtrip})
	}

	busNamesPerStop := make(map[string]map[string]struct{}, len(c.stops))
	for _, s := range c.stops {
		busNamesPerStop[s.Name] = make(map[string]struct{})
	}
	for _, b := range c.buses {
		for _, stopName := range b.Stops {
			busNamesPerStop[stopName][b.Name] = struct{}{}
		}
	}
	for stopName, set := range busNamesPerStop {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		c.stopBuses[stopName] = names
	}

	return c, nil
}

// FindStop looks up a stop by exact name.
func (c *Catalog) FindStop(name string) (Stop, bool) {
	idx, ok := c.stopIndex[name]
	if !ok {
		return Stop{}, false
	}
	return c.stops[idx], true
}

// FindBus looks up a bus by exact name.
func (c *Catalog) FindBus(name string) (Bus, bool) {
	idx, ok := c.busIndex[name]
	if !ok {
		return Bus{}, false
	}
	return c.buses[idx], true
}

// BusesAtStop returns the lexicographically sorted bus names serving a
// stop. The second return is false only when the stop itself is
// unknown; a known stop with no buses returns an empty, non-nil slice.
func (c *Catalog) BusesAtStop(name string) ([]string, bool) {
	if _, ok := c.stopIndex[name]; !ok {
		return nil, false
	}
	return c.stopBuses[name], true
}

// Distance returns the road distance in meters from "from" to "to".
// Returns 0 if the pair is absent — per the catalog's contract, 0 is
// the "unknown" sentinel, not a genuine zero-length edge.
func (c *Catalog) Distance(from, to string) uint32 {
	fromIdx, ok := c.stopIndex[from]
	if !ok {
		return 0
	}
	toIdx, ok := c.stopIndex[to]
	if !ok {
		return 0
	}
	return c.distances[distKey{from: fromIdx, to: toIdx}]
}

// StopIndex returns the canonical-order index of a stop, or -1.
func (c *Catalog) StopIndex(name string) int {
	idx, ok := c.stopIndex[name]
	if !ok {
		return -1
	}
	return idx
}

// Stops returns the stops in canonical ingestion order.
func (c *Catalog) Stops() []Stop { return c.stops }

// Buses returns the buses in ingestion order.
func (c *Catalog) Buses() []Bus { return c.buses }

// StopCount returns the number of stops.
func (c *Catalog) StopCount() int { return len(c.stops) }
