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

package decode

import (
	"bytes"
	"fmt"
	"math"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"

	"github.com/climatearchive/cfsarchive/grid"
)

// readOnlyBlob adapts an in-memory blob to cdf's ReaderWriterAt; the
// decoder never writes.
type readOnlyBlob struct {
	*bytes.Reader
}

func (readOnlyBlob) WriteAt(p []byte, off int64) (int, error) {
	return 0, fmt.Errorf("decode: netcdf blob is read-only")
}

// ReadNetCDF reads variable name out of the in-memory NetCDF blob b,
// returning a (D, H, W) dense array where (H, W) = g.Size(), with the
// variable's fill value (and the common 1e20 missing-value convention)
// mapped to NaN. It verifies that the variable's spatial dimensions
// match g and returns a *GridMismatchError if not.
func ReadNetCDF(b []byte, name string, g grid.Grid) (*sparse.DenseArray, error) {
	f, err := cdf.Open(readOnlyBlob{bytes.NewReader(b)})
	if err != nil {
		return nil, fmt.Errorf("decode: opening netcdf blob: %v", err)
	}

	dims := f.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("decode: variable %q not present in netcdf file", name)
	}
	if len(dims) != 3 {
		return nil, fmt.Errorf("decode: variable %q has %d dimensions, want 3 (time, lat, lon)", name, len(dims))
	}
	d, h, w := dims[0], dims[1], dims[2]
	wantH, wantW := g.Size()
	if h != wantH || w != wantW {
		return nil, &GridMismatchError{File: "<blob>", Want: g, Got: fmt.Sprintf("%dx%d", h, w)}
	}

	fill := math.Inf(1)
	if v, ok := f.Header.GetAttribute(name, "_FillValue").([]float32); ok && len(v) == 1 {
		fill = float64(v[0])
	}

	nread := d * h * w
	r := f.Reader(name, []int{0, 0, 0}, []int{d, h, w})
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("decode: reading variable %q: %v", name, err)
	}
	vals, ok := buf.([]float32)
	if !ok {
		return nil, fmt.Errorf("decode: variable %q: unexpected netcdf value type %T", name, buf)
	}

	out := sparse.ZerosDense(d, h, w)
	for i, v := range vals {
		x := float64(v)
		if x == fill || x >= 1e20 {
			x = math.NaN()
		}
		out.Elements[i] = x
	}
	return out, nil
}
