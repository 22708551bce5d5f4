package decode

import (
	"testing"

	"github.com/mmp/squall/grib"

	"github.com/climatearchive/cfsarchive/grid"
)

func TestBand(t *testing.T) {
	// A 2x2 one-degree grid with cell-center coordinates. The message
	// carries the GridNi/GridNj placeholders the reader actually
	// produces (GridNj is always 1, GridNi the flat point count):
	// Band must succeed regardless, going by the coordinate arrays and
	// the point count alone.
	g := grid.Grid{
		Name: "TEST",
		ResY: 1, ResX: 1,
		BBox: grid.BBox{Left: -1, Bottom: -1, Right: 1, Top: 1},
	}
	msg := &grib.GRIB2{
		Data:       []float32{1, 2, 3, 4},
		Latitudes:  []float32{0.5, 0.5, -0.5, -0.5},
		Longitudes: []float32{-0.5, 0.5, -0.5, 0.5},
		GridNi:     4,
		GridNj:     1,
	}
	f := &GRIB2File{path: "test", fields: []*grib.GRIB2{msg}}

	buf := make([]float32, 4)
	if err := f.Band(1, g, buf); err != nil {
		t.Fatal(err)
	}
	for i, want := range []float32{1, 2, 3, 4} {
		if buf[i] != want {
			t.Errorf("buf[%d] = %v, want %v", i, buf[i], want)
		}
	}

	if err := f.Band(2, g, buf); err == nil {
		t.Error("expected an error for a band past the end of the file")
	}
	if err := f.Band(0, g, buf); err == nil {
		t.Error("expected an error for band 0 (bands are 1-based)")
	}

	// A message whose point count does not cover the grid is rejected.
	short := &grib.GRIB2{
		Data:       []float32{1, 2},
		Latitudes:  []float32{0.5, 0.5},
		Longitudes: []float32{-0.5, 0.5},
		GridNi:     2,
		GridNj:     1,
	}
	f = &GRIB2File{path: "test", fields: []*grib.GRIB2{short}}
	if _, ok := f.Band(1, g, buf).(*GridMismatchError); !ok {
		t.Error("expected a *GridMismatchError for a short message")
	}
}

func TestCheckGRIB2BBoxMatch(t *testing.T) {
	g := grid.PGB
	msg := &grib.GRIB2{
		Latitudes:  []float32{float32(g.BBox.Top), float32(g.BBox.Bottom)},
		Longitudes: []float32{float32(g.BBox.Left), float32(g.BBox.Right)},
	}
	if err := checkGRIB2BBox(msg, g); err != nil {
		t.Errorf("expected matching bbox to pass, got %v", err)
	}
}

func TestCheckGRIB2BBoxMismatch(t *testing.T) {
	g := grid.PGB
	msg := &grib.GRIB2{
		Latitudes:  []float32{10, -10},
		Longitudes: []float32{10, -10},
	}
	if err := checkGRIB2BBox(msg, g); err == nil {
		t.Error("expected a mismatched bbox to be rejected")
	}
}

func TestCheckGRIB2BBoxLon360(t *testing.T) {
	g := grid.FLX
	// Cell centers, as real producers encode them: the first center is
	// 0 and the last is one half-cell inside the right edge; a negative
	// longitude normalizes onto the last center.
	msg := &grib.GRIB2{
		Latitudes:  []float32{float32(g.BBox.Top - g.ResY/2), float32(g.BBox.Bottom + g.ResY/2)},
		Longitudes: []float32{0, float32(-g.ResX)}, // -0.9375 normalizes to 359.0625
	}
	if err := checkGRIB2BBox(msg, g); err != nil {
		t.Errorf("expected lon360-normalized bbox to pass, got %v", err)
	}
}
