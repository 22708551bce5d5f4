/*
Copyright © 2024 the cfsarchive authors.
This file is part of cfsarchive.

cfsarchive is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

cfsarchive is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with cfsarchive.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package decode reads the two upstream source formats, GRIB2 and
// NetCDF, into dense float32 tiles whose resolution and bounding box
// have been checked against the grid the caller expects.
package decode

import (
	"fmt"
	"math"
	"os"

	"github.com/mmp/squall/grib"

	"github.com/climatearchive/cfsarchive/grid"
)

// GridMismatchError reports that a decoded file's geo-referencing does
// not match the grid the caller expected.
type GridMismatchError struct {
	File string
	Want grid.Grid
	Got  string
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("decode: %s: expected grid %s, got %s", e.File, e.Want.Name, e.Got)
}

const bboxTolerance = 1e-2

// GRIB2File is one decoded GRIB2 file: every message parsed once, with
// bands extracted on demand. The ingesters open each downloaded file
// once per day and pull all their variables' bands out of it, rather
// than re-parsing the file per variable.
type GRIB2File struct {
	path   string
	fields []*grib.GRIB2
}

// OpenGRIB2 parses every message of the GRIB2 file at path.
func OpenGRIB2(path string) (*GRIB2File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode: opening %s: %v", path, err)
	}
	defer f.Close()

	fields, err := grib.Read(f)
	if err != nil {
		return nil, fmt.Errorf("decode: reading GRIB2 messages from %s: %v", path, err)
	}
	return &GRIB2File{path: path, fields: fields}, nil
}

// Band copies the band'th (1-based) message into a pre-allocated
// float32 buffer of length h*w, where (h, w) = g.Size(). It verifies
// that the message covers g: the point count must equal h*w and the
// coordinate extent must match g's bounding box (within floating-point
// tolerance), returning a *GridMismatchError if not. The message's
// GridNi/GridNj fields are not consulted: the reader fills them with
// placeholder values (GridNj is always 1), so the per-point coordinate
// arrays are the only trustworthy geometry.
func (f *GRIB2File) Band(band int, g grid.Grid, buf []float32) error {
	if band < 1 || band > len(f.fields) {
		return fmt.Errorf("decode: %s: band %d out of range (file has %d messages)", f.path, band, len(f.fields))
	}
	msg := f.fields[band-1]

	h, w := g.Size()
	if len(buf) != h*w {
		return fmt.Errorf("decode: %s: buffer has %d elements, want %d", f.path, len(buf), h*w)
	}
	if len(msg.Data) != h*w {
		return &GridMismatchError{File: f.path, Want: g, Got: fmt.Sprintf("%d points", len(msg.Data))}
	}
	if err := checkGRIB2BBox(msg, g); err != nil {
		return &GridMismatchError{File: f.path, Want: g, Got: err.Error()}
	}
	copy(buf, msg.Data)
	return nil
}

// ReadGRIB2Band decodes a single band of the GRIB2 file at path. When
// more than one band of the same file is needed, open it once with
// OpenGRIB2 instead.
func ReadGRIB2Band(path string, band int, g grid.Grid, buf []float32) error {
	f, err := OpenGRIB2(path)
	if err != nil {
		return err
	}
	return f.Band(band, g, buf)
}

// checkGRIB2BBox verifies that the corner coordinates carried by msg
// match g's bounding box within bboxTolerance degrees.
func checkGRIB2BBox(msg *grib.GRIB2, g grid.Grid) error {
	if len(msg.Latitudes) == 0 || len(msg.Longitudes) == 0 {
		return fmt.Errorf("no coordinates present")
	}
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	for i := range msg.Latitudes {
		lat, lon := float64(msg.Latitudes[i]), float64(msg.Longitudes[i])
		if g.Lon360 && lon < 0 {
			lon += 360
		}
		if !g.Lon360 && lon > g.BBox.Right+bboxTolerance {
			lon -= 360
		}
		minLat, maxLat = math.Min(minLat, lat), math.Max(maxLat, lat)
		minLon, maxLon = math.Min(minLon, lon), math.Max(maxLon, lon)
	}
	// Producers encode either the cell edges or the cell centers as the
	// corner coordinates; accept both.
	if math.Abs(minLat-g.BBox.Bottom) > bboxTolerance && math.Abs(minLat-(g.BBox.Bottom+g.ResY/2)) > bboxTolerance {
		return fmt.Errorf("min latitude %v does not match grid bottom %v", minLat, g.BBox.Bottom)
	}
	if math.Abs(maxLat-g.BBox.Top) > bboxTolerance && math.Abs(maxLat-(g.BBox.Top-g.ResY/2)) > bboxTolerance {
		return fmt.Errorf("max latitude %v does not match grid top %v", maxLat, g.BBox.Top)
	}
	if math.Abs(minLon-g.BBox.Left) > bboxTolerance && math.Abs(minLon-(g.BBox.Left+g.ResX/2)) > bboxTolerance {
		return fmt.Errorf("min longitude %v does not match grid left %v", minLon, g.BBox.Left)
	}
	if math.Abs(maxLon-g.BBox.Right) > bboxTolerance && math.Abs(maxLon-(g.BBox.Right-g.ResX/2)) > bboxTolerance {
		return fmt.Errorf("max longitude %v does not match grid right %v", maxLon, g.BBox.Right)
	}
	return nil
}
