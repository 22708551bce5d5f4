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

// Package grid holds the fixed grid geometries used by the archive and
// the pure coordinate math that maps a world point onto a grid cell.
package grid

import (
	"fmt"
	"math"
)

// BBox is a bounding box in EPSG:4326 degrees: (left, bottom, right, top).
type BBox struct {
	Left, Bottom, Right, Top float64
}

// Grid is a fixed resolution/extent lat-lon grid.
type Grid struct {
	Name       string
	ResY, ResX float64
	BBox       BBox
	Lon360     bool // true if the longitude convention is [0, 360)
}

// The four fixed grids named in the archive layout.
var (
	Reanalysis = Grid{
		Name: "REANALYSIS",
		ResY: 0.5, ResX: 0.5,
		BBox:   BBox{Left: -180.25, Bottom: -90.25, Right: 179.75, Top: 90.25},
		Lon360: false,
	}
	FLX = Grid{
		Name: "FLX",
		ResY: 180.0 / 190.0, ResX: 360.0 / 384.0,
		BBox:   BBox{Left: -0.46875, Bottom: -90.2493, Right: 359.5307, Top: 89.7507},
		Lon360: true,
	}
	PGB = Grid{
		Name: "PGB",
		ResY: 1.0, ResX: 1.0,
		BBox:   BBox{Left: -180.5, Bottom: -90.5, Right: 179.5, Top: 90.5},
		Lon360: false,
	}
	Projection = Grid{
		Name: "PROJECTION",
		ResY: 0.25, ResX: 0.25,
		BBox:   BBox{Left: 0.125, Bottom: -59.875, Right: 359.875, Top: 89.875},
		Lon360: true,
	}
)

// byName indexes the fixed grids for lookup by their family/name tag.
var byName = map[string]Grid{
	Reanalysis.Name: Reanalysis,
	FLX.Name:        FLX,
	PGB.Name:        PGB,
	Projection.Name: Projection,
}

// ByName returns the fixed grid with the given name, e.g. "FLX" or "PGB".
func ByName(name string) (Grid, error) {
	g, ok := byName[name]
	if !ok {
		return Grid{}, fmt.Errorf("grid: no such grid %q", name)
	}
	return g, nil
}

// OutOfBoundsError reports that a coordinate falls outside a grid's bbox.
type OutOfBoundsError struct {
	Grid     string
	Lat, Lon float64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("grid: (%v, %v) is outside the bounds of grid %s", e.Lat, e.Lon, e.Grid)
}

// Size returns the (height, width) of g in grid cells.
func (g Grid) Size() (h, w int) {
	h = int(math.Ceil((g.BBox.Top - g.BBox.Bottom) / g.ResY))
	w = int(math.Ceil((g.BBox.Right - g.BBox.Left) / g.ResX))
	return h, w
}

// Index converts a (lat, lon) coordinate into a (row, col) grid index.
// If g uses the [0, 360) longitude convention, a negative lon is first
// offset by 360. Points outside the bbox (inclusive) return an
// *OutOfBoundsError.
func (g Grid) Index(lat, lon float64) (row, col int, err error) {
	if g.Lon360 && lon < 0 {
		lon += 360
	}
	if lat < g.BBox.Bottom || lat > g.BBox.Top || lon < g.BBox.Left || lon > g.BBox.Right {
		return 0, 0, &OutOfBoundsError{Grid: g.Name, Lat: lat, Lon: lon}
	}
	row = int(math.Round((g.BBox.Top - lat) / g.ResY))
	col = int(math.Round((lon - g.BBox.Left) / g.ResX))
	h, w := g.Size()
	if row < 0 {
		row = 0
	} else if row >= h {
		row = h - 1
	}
	if col < 0 {
		col = 0
	} else if col >= w {
		col = w - 1
	}
	return row, col, nil
}
