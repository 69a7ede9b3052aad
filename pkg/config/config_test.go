package config

import (
	"encoding/json"
	"testing"

	"transitcat/pkg/svg"
)

func TestRenderSettingsColorShapes(t *testing.T) {
	doc := `{
		"width": 600, "height": 400, "padding": 50,
		"line_width": 14, "stop_radius": 5,
		"bus_label_font_size": 20, "bus_label_offset": [7, 15],
		"stop_label_font_size": 20, "stop_label_offset": [7, -3],
		"underlayer_color": [255, 255, 255, 0.85],
		"underlayer_width": 3,
		"color_palette": ["green", [255, 160, 0]]
	}`

	var rs RenderSettings
	if err := json.Unmarshal([]byte(doc), &rs); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	underlayer, palette := rs.Resolved()
	if underlayer.Kind != svg.ColorRGBA {
		t.Errorf("underlayer should decode as rgba, got %+v", underlayer)
	}
	if len(palette) != 2 {
		t.Fatalf("expected 2 palette colors, got %d", len(palette))
	}
	if palette[0].Kind != svg.ColorNamed || palette[0].Name != "green" {
		t.Errorf("palette[0] should be named \"green\", got %+v", palette[0])
	}
	if palette[1].Kind != svg.ColorRGB || palette[1].R != 255 || palette[1].G != 160 {
		t.Errorf("palette[1] should be rgb(255,160,0), got %+v", palette[1])
	}
}

func TestBaseRequestDecode(t *testing.T) {
	doc := `{"base_requests": [
		{"type": "Stop", "name": "A", "latitude": 55.1, "longitude": 37.2, "road_distances": {"B": 900}},
		{"type": "Bus", "name": "1", "stops": ["A", "B"], "is_roundtrip": false}
	], "serialization_settings": {"file": "db.bin"}}`

	var d Document
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(d.BaseRequests) != 2 {
		t.Fatalf("expected 2 base requests, got %d", len(d.BaseRequests))
	}
	if d.BaseRequests[0].RoadDistances["B"] != 900 {
		t.Errorf("road_distances not decoded correctly: %+v", d.BaseRequests[0])
	}
	if d.SerializationSettings.File != "db.bin" {
		t.Errorf("serialization_settings.file = %q, want db.bin", d.SerializationSettings.File)
	}
}

func TestStatRequestDecode(t *testing.T) {
	doc := `{"stat_requests": [
		{"id": 1, "type": "Stop", "name": "A"},
		{"id": 2, "type": "Route", "from": "A", "to": "B"}
	], "serialization_settings": {"file": "db.bin"}}`

	var d Document
	if err := json.Unmarshal([]byte(doc), &d); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(d.StatRequests) != 2 {
		t.Fatalf("expected 2 stat requests, got %d", len(d.StatRequests))
	}
	if d.StatRequests[1].From != "A" || d.StatRequests[1].To != "B" {
		t.Errorf("Route request not decoded correctly: %+v", d.StatRequests[1])
	}
}
