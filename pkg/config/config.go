// Package config defines the JSON wire format read from stdin by
// both the make_base and process_requests commands, and the color
// value that appears, shaped two different ways, inside it.
package config

import (
	"encoding/json"
	"fmt"

	"transitcat/pkg/svg"
)

// Document is the top-level stdin payload. Only the fields relevant
// to the command being run need be present; callers decode the
// subset they need and ignore the rest.
type Document struct {
	BaseRequests          []BaseRequest         `json:"base_requests,omitempty"`
	StatRequests          []StatRequest         `json:"stat_requests,omitempty"`
	RenderSettings        *RenderSettings       `json:"render_settings,omitempty"`
	RoutingSettings       *RoutingSettings      `json:"routing_settings,omitempty"`
	SerializationSettings SerializationSettings `json:"serialization_settings"`
}

// SerializationSettings names the artifact file written by make_base
// and read by process_requests.
type SerializationSettings struct {
	File string `json:"file"`
}

// RoutingSettings configures the routing graph's wait and ride edge
// weights.
type RoutingSettings struct {
	BusWaitTime int     `json:"bus_wait_time"` // minutes
	BusVelocity float64 `json:"bus_velocity"`  // km/h
}

// BaseRequest is one entry of base_requests: either a Stop or a Bus,
// discriminated by Type. Unused fields for the other type are left
// zero after decoding.
type BaseRequest struct {
	Type string `json:"type"`

	// Stop fields.
	Name          string            `json:"name"`
	Latitude      float64           `json:"latitude"`
	Longitude     float64           `json:"longitude"`
	RoadDistances map[string]uint32 `json:"road_distances,omitempty"`

	// Bus fields.
	Stops       []string `json:"stops,omitempty"`
	IsRoundtrip bool     `json:"is_roundtrip,omitempty"`
}

// StatRequest is one entry of stat_requests: Stop, Bus, Map, or
// Route, discriminated by Type.
type StatRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`

	// Stop and Bus share Name.
	Name string `json:"name,omitempty"`

	// Route fields.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// RenderSettings mirrors the JSON shape of the map rendering config.
// Colors arrive as either a string or a 3/4-element array, so they
// decode through rawColor and get resolved to svg.Color afterward.
type RenderSettings struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	Padding float64 `json:"padding"`

	LineWidth  float64 `json:"line_width"`
	StopRadius float64 `json:"stop_radius"`

	BusLabelFontSize uint32     `json:"bus_label_font_size"`
	BusLabelOffset   [2]float64 `json:"bus_label_offset"`

	StopLabelFontSize uint32     `json:"stop_label_font_size"`
	StopLabelOffset   [2]float64 `json:"stop_label_offset"`

	UnderlayerColor rawColor `json:"underlayer_color"`
	UnderlayerWidth float64  `json:"underlayer_width"`

	ColorPalette []rawColor `json:"color_palette"`
}

// rawColor decodes the Color oneof's three JSON shapes: a bare
// string (named color), a 3-element array (rgb), or a 4-element
// array (rgba).
type rawColor struct {
	color svg.Color
}

func (c *rawColor) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		c.color = svg.Named(asString)
		return nil
	}

	var asArray []float64
	if err := json.Unmarshal(data, &asArray); err != nil {
		return fmt.Errorf("color must be a string or a 3/4-element array: %w", err)
	}
	switch len(asArray) {
	case 3:
		c.color = svg.RGB(uint8(asArray[0]), uint8(asArray[1]), uint8(asArray[2]))
	case 4:
		c.color = svg.RGBA(uint8(asArray[0]), uint8(asArray[1]), uint8(asArray[2]), asArray[3])
	default:
		return fmt.Errorf("color array must have 3 or 4 elements, got %d", len(asArray))
	}
	return nil
}

// Color returns the decoded svg.Color.
func (c rawColor) Color() svg.Color { return c.color }

// Resolved converts the wire RenderSettings into render.Settings-ready
// plain values. Kept in this package (rather than pkg/render) so
// pkg/render never needs to know about JSON decoding.
func (rs *RenderSettings) Resolved() (underlayer svg.Color, palette []svg.Color) {
	underlayer = rs.UnderlayerColor.Color()
	palette = make([]svg.Color, len(rs.ColorPalette))
	for i, c := range rs.ColorPalette {
		palette[i] = c.Color()
	}
	return underlayer, palette
}
