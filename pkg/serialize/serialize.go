// Package serialize persists a built transit artifact (catalog,
// render settings, and the precomputed routing graph) to a single
// binary file and reconstructs it from that file. Every write goes
// through a CRC32 trailer and an atomic rename.
package serialize

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"

	"transitcat/pkg/svg"
)

const (
	magicBytes  = "TRANSITCAT"
	fileVersion = uint32(1)
)

// fileHeader is the fixed-size binary header.
type fileHeader struct {
	Magic       [10]byte
	Version     uint32
	StopCount   uint32
	DistCount   uint32
	BusCount    uint32
	BusStopLen  uint32 // total flattened bus-stop index count
	VertexCount uint32
	EdgeCount   uint32
	PaletteLen  uint32
	ActiveCount uint32 // projector calibration coordinate count
}

// Color is the flat, serializable shape of svg.Color.
type Color struct {
	Kind byte
	Name string
	R, G, B uint8
	A       float64
}

// ColorFromSVG converts an svg.Color into its persisted shape.
func ColorFromSVG(c svg.Color) Color {
	return Color{Kind: byte(c.Kind), Name: c.Name, R: c.R, G: c.G, B: c.B, A: c.A}
}

// ToSVG converts a persisted Color back into an svg.Color.
func (c Color) ToSVG() svg.Color {
	return svg.Color{Kind: svg.ColorKind(c.Kind), Name: c.Name, R: c.R, G: c.G, B: c.B, A: c.A}
}

// RenderSettings is the persisted shape of map rendering config.
type RenderSettings struct {
	Width, Height     float64
	Padding           float64
	LineWidth         float64
	StopRadius        float64
	BusLabelFontSize  uint32
	BusLabelOffset    [2]float64
	StopLabelFontSize uint32
	StopLabelOffset   [2]float64
	UnderlayerColor   Color
	UnderlayerWidth   float64
	Palette           []Color
}

// Edge is the persisted shape of a graph.Edge.
type Edge struct {
	From, To  uint32
	Weight    float64
	Name      string
	SpanCount uint32
}

// Distance is one sparse directional road-distance entry.
type Distance struct {
	FromIdx, ToIdx uint32
	Meters         uint32
}

// Bus is the persisted shape of a catalog.Bus: its post-expansion
// stop sequence stored as stop indices, not names.
type Bus struct {
	Name        string
	StopIdx     []uint32
	IsRoundtrip bool
}

// Artifact is everything needed to answer queries without the
// original JSON build document: the catalog, the render settings,
// and the fully precomputed routing graph (edges plus the dense
// all-pairs table).
type Artifact struct {
	StopNames []string
	StopLat   []float64
	StopLng   []float64
	Distances []Distance
	Buses     []Bus

	Render RenderSettings

	// ActiveLat/ActiveLng is the flat per-occurrence coordinate list
	// the map projector was calibrated with at build time, stored so
	// the query phase renders against the exact same viewport.
	ActiveLat []float64
	ActiveLng []float64

	BusWaitTime float64
	BusVelocity float64
	Edges       []Edge

	VertexCount  int
	CellWeight   []float64
	CellHasPath  []byte // 0/1, len VertexCount*VertexCount
	CellPrevEdge []uint32
	CellHasPrev  []byte // 0/1
}

// Write serializes a to path via a temp file and atomic rename, so a
// crash mid-write never corrupts an existing artifact.
func Write(path string, a *Artifact) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	bw := bufio.NewWriter(f)
	cw := &crc32Writer{w: bw, hash: crc32.NewIEEE()}

	totalBusStops := 0
	for _, b := range a.Buses {
		totalBusStops += len(b.StopIdx)
	}

	hdr := fileHeader{
		Version:     fileVersion,
		StopCount:   uint32(len(a.StopNames)),
		DistCount:   uint32(len(a.Distances)),
		BusCount:    uint32(len(a.Buses)),
		BusStopLen:  uint32(totalBusStops),
		VertexCount: uint32(a.VertexCount),
		EdgeCount:   uint32(len(a.Edges)),
		PaletteLen:  uint32(len(a.Render.Palette)),
		ActiveCount: uint32(len(a.ActiveLat)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(cw, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, name := range a.StopNames {
		if err := writeString(cw, name); err != nil {
			return fmt.Errorf("write stop name: %w", err)
		}
	}
	if err := writeFloat64Slice(cw, a.StopLat); err != nil {
		return fmt.Errorf("write stop lat: %w", err)
	}
	if err := writeFloat64Slice(cw, a.StopLng); err != nil {
		return fmt.Errorf("write stop lng: %w", err)
	}

	for _, d := range a.Distances {
		if err := binary.Write(cw, binary.LittleEndian, d); err != nil {
			return fmt.Errorf("write distance: %w", err)
		}
	}

	for _, b := range a.Buses {
		if err := writeString(cw, b.Name); err != nil {
			return fmt.Errorf("write bus name: %w", err)
		}
		if err := binary.Write(cw, binary.LittleEndian, uint32(len(b.StopIdx))); err != nil {
			return fmt.Errorf("write bus stop count: %w", err)
		}
		if err := writeUint32Slice(cw, b.StopIdx); err != nil {
			return fmt.Errorf("write bus stops: %w", err)
		}
		if err := writeBool(cw, b.IsRoundtrip); err != nil {
			return fmt.Errorf("write bus roundtrip flag: %w", err)
		}
	}

	if err := writeRenderSettings(cw, &a.Render); err != nil {
		return fmt.Errorf("write render settings: %w", err)
	}
	if err := writeFloat64Slice(cw, a.ActiveLat); err != nil {
		return fmt.Errorf("write active lat: %w", err)
	}
	if err := writeFloat64Slice(cw, a.ActiveLng); err != nil {
		return fmt.Errorf("write active lng: %w", err)
	}

	if err := binary.Write(cw, binary.LittleEndian, a.BusWaitTime); err != nil {
		return fmt.Errorf("write bus wait time: %w", err)
	}
	if err := binary.Write(cw, binary.LittleEndian, a.BusVelocity); err != nil {
		return fmt.Errorf("write bus velocity: %w", err)
	}
	for _, e := range a.Edges {
		if err := binary.Write(cw, binary.LittleEndian, e.From); err != nil {
			return fmt.Errorf("write edge from: %w", err)
		}
		if err := binary.Write(cw, binary.LittleEndian, e.To); err != nil {
			return fmt.Errorf("write edge to: %w", err)
		}
		if err := binary.Write(cw, binary.LittleEndian, e.Weight); err != nil {
			return fmt.Errorf("write edge weight: %w", err)
		}
		if err := writeString(cw, e.Name); err != nil {
			return fmt.Errorf("write edge name: %w", err)
		}
		if err := binary.Write(cw, binary.LittleEndian, e.SpanCount); err != nil {
			return fmt.Errorf("write edge span count: %w", err)
		}
	}

	if err := writeFloat64Slice(cw, a.CellWeight); err != nil {
		return fmt.Errorf("write cell weight: %w", err)
	}
	if _, err := cw.Write(a.CellHasPath); err != nil {
		return fmt.Errorf("write cell has-path: %w", err)
	}
	if err := writeUint32Slice(cw, a.CellPrevEdge); err != nil {
		return fmt.Errorf("write cell prev edge: %w", err)
	}
	if _, err := cw.Write(a.CellHasPrev); err != nil {
		return fmt.Errorf("write cell has-prev: %w", err)
	}

	checksum := cw.hash.Sum32()
	if err := binary.Write(bw, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Read deserializes an Artifact from path, validating the header,
// magic bytes, version, and trailing CRC32.
func Read(path string) (*Artifact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	cr := &crc32Reader{r: br, hash: crc32.NewIEEE()}

	var hdr fileHeader
	if err := binary.Read(cr, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != fileVersion {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}

	a := &Artifact{VertexCount: int(hdr.VertexCount)}

	a.StopNames = make([]string, hdr.StopCount)
	for i := range a.StopNames {
		s, err := readString(cr)
		if err != nil {
			return nil, fmt.Errorf("read stop name: %w", err)
		}
		a.StopNames[i] = s
	}
	if a.StopLat, err = readFloat64Slice(cr, int(hdr.StopCount)); err != nil {
		return nil, fmt.Errorf("read stop lat: %w", err)
	}
	if a.StopLng, err = readFloat64Slice(cr, int(hdr.StopCount)); err != nil {
		return nil, fmt.Errorf("read stop lng: %w", err)
	}

	a.Distances = make([]Distance, hdr.DistCount)
	for i := range a.Distances {
		if err := binary.Read(cr, binary.LittleEndian, &a.Distances[i]); err != nil {
			return nil, fmt.Errorf("read distance: %w", err)
		}
	}

	a.Buses = make([]Bus, hdr.BusCount)
	for i := range a.Buses {
		name, err := readString(cr)
		if err != nil {
			return nil, fmt.Errorf("read bus name: %w", err)
		}
		var n uint32
		if err := binary.Read(cr, binary.LittleEndian, &n); err != nil {
			return nil, fmt.Errorf("read bus stop count: %w", err)
		}
		stopIdx, err := readUint32Slice(cr, int(n))
		if err != nil {
			return nil, fmt.Errorf("read bus stops: %w", err)
		}
		roundtrip, err := readBool(cr)
		if err != nil {
			return nil, fmt.Errorf("read bus roundtrip flag: %w", err)
		}
		a.Buses[i] = Bus{Name: name, StopIdx: stopIdx, IsRoundtrip: roundtrip}
	}

	render, err := readRenderSettings(cr, int(hdr.PaletteLen))
	if err != nil {
		return nil, fmt.Errorf("read render settings: %w", err)
	}
	a.Render = render

	if a.ActiveLat, err = readFloat64Slice(cr, int(hdr.ActiveCount)); err != nil {
		return nil, fmt.Errorf("read active lat: %w", err)
	}
	if a.ActiveLng, err = readFloat64Slice(cr, int(hdr.ActiveCount)); err != nil {
		return nil, fmt.Errorf("read active lng: %w", err)
	}

	if err := binary.Read(cr, binary.LittleEndian, &a.BusWaitTime); err != nil {
		return nil, fmt.Errorf("read bus wait time: %w", err)
	}
	if err := binary.Read(cr, binary.LittleEndian, &a.BusVelocity); err != nil {
		return nil, fmt.Errorf("read bus velocity: %w", err)
	}

	a.Edges = make([]Edge, hdr.EdgeCount)
	for i := range a.Edges {
		var e Edge
		if err := binary.Read(cr, binary.LittleEndian, &e.From); err != nil {
			return nil, fmt.Errorf("read edge from: %w", err)
		}
		if err := binary.Read(cr, binary.LittleEndian, &e.To); err != nil {
			return nil, fmt.Errorf("read edge to: %w", err)
		}
		if err := binary.Read(cr, binary.LittleEndian, &e.Weight); err != nil {
			return nil, fmt.Errorf("read edge weight: %w", err)
		}
		name, err := readString(cr)
		if err != nil {
			return nil, fmt.Errorf("read edge name: %w", err)
		}
		e.Name = name
		if err := binary.Read(cr, binary.LittleEndian, &e.SpanCount); err != nil {
			return nil, fmt.Errorf("read edge span count: %w", err)
		}
		a.Edges[i] = e
	}

	cellCount := int(hdr.VertexCount) * int(hdr.VertexCount)
	if a.CellWeight, err = readFloat64Slice(cr, cellCount); err != nil {
		return nil, fmt.Errorf("read cell weight: %w", err)
	}
	a.CellHasPath = make([]byte, cellCount)
	if _, err := io.ReadFull(cr, a.CellHasPath); err != nil {
		return nil, fmt.Errorf("read cell has-path: %w", err)
	}
	if a.CellPrevEdge, err = readUint32Slice(cr, cellCount); err != nil {
		return nil, fmt.Errorf("read cell prev edge: %w", err)
	}
	a.CellHasPrev = make([]byte, cellCount)
	if _, err := io.ReadFull(cr, a.CellHasPrev); err != nil {
		return nil, fmt.Errorf("read cell has-prev: %w", err)
	}

	expectedCRC := cr.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(br, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	return a, nil
}

func writeRenderSettings(w io.Writer, rs *RenderSettings) error {
	fields := []float64{rs.Width, rs.Height, rs.Padding, rs.LineWidth, rs.StopRadius}
	if err := writeFloat64Slice(w, fields); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rs.BusLabelFontSize); err != nil {
		return err
	}
	if err := writeFloat64Slice(w, rs.BusLabelOffset[:]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rs.StopLabelFontSize); err != nil {
		return err
	}
	if err := writeFloat64Slice(w, rs.StopLabelOffset[:]); err != nil {
		return err
	}
	if err := writeColor(w, rs.UnderlayerColor); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rs.UnderlayerWidth); err != nil {
		return err
	}
	for _, c := range rs.Palette {
		if err := writeColor(w, c); err != nil {
			return err
		}
	}
	return nil
}

func readRenderSettings(r io.Reader, paletteLen int) (RenderSettings, error) {
	var rs RenderSettings
	fields, err := readFloat64Slice(r, 5)
	if err != nil {
		return rs, err
	}
	rs.Width, rs.Height, rs.Padding, rs.LineWidth, rs.StopRadius = fields[0], fields[1], fields[2], fields[3], fields[4]

	if err := binary.Read(r, binary.LittleEndian, &rs.BusLabelFontSize); err != nil {
		return rs, err
	}
	off, err := readFloat64Slice(r, 2)
	if err != nil {
		return rs, err
	}
	rs.BusLabelOffset = [2]float64{off[0], off[1]}

	if err := binary.Read(r, binary.LittleEndian, &rs.StopLabelFontSize); err != nil {
		return rs, err
	}
	off, err = readFloat64Slice(r, 2)
	if err != nil {
		return rs, err
	}
	rs.StopLabelOffset = [2]float64{off[0], off[1]}

	rs.UnderlayerColor, err = readColor(r)
	if err != nil {
		return rs, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rs.UnderlayerWidth); err != nil {
		return rs, err
	}

	rs.Palette = make([]Color, paletteLen)
	for i := range rs.Palette {
		rs.Palette[i], err = readColor(r)
		if err != nil {
			return rs, err
		}
	}
	return rs, nil
}

func writeColor(w io.Writer, c Color) error {
	if err := binary.Write(w, binary.LittleEndian, c.Kind); err != nil {
		return err
	}
	if err := writeString(w, c.Name); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, [3]uint8{c.R, c.G, c.B}); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, c.A)
}

func readColor(r io.Reader) (Color, error) {
	var c Color
	if err := binary.Read(r, binary.LittleEndian, &c.Kind); err != nil {
		return c, err
	}
	name, err := readString(r)
	if err != nil {
		return c, err
	}
	c.Name = name
	var rgb [3]uint8
	if err := binary.Read(r, binary.LittleEndian, &rgb); err != nil {
		return c, err
	}
	c.R, c.G, c.B = rgb[0], rgb[1], rgb[2]
	if err := binary.Read(r, binary.LittleEndian, &c.A); err != nil {
		return c, err
	}
	return c, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeBool(w io.Writer, b bool) error {
	var v byte
	if b {
		v = 1
	}
	_, err := w.Write([]byte{v})
	return err
}

func readBool(r io.Reader) (bool, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, err
	}
	return buf[0] != 0, nil
}

// Zero-copy bulk array I/O for the large numeric payloads (the
// all-pairs weight/edge tables): reinterpreting the slice backing
// array as bytes avoids a per-element encode/decode pass.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
