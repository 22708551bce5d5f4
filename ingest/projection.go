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

package ingest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/climatearchive/cfsarchive/catalog"
	"github.com/climatearchive/cfsarchive/decode"
	"github.com/climatearchive/cfsarchive/fetch"
	"github.com/climatearchive/cfsarchive/grid"
	"github.com/climatearchive/cfsarchive/internal/dates"
	"github.com/climatearchive/cfsarchive/store"
)

// projectionBlockYears is the write granularity: up to four contiguous
// calendar years are buffered and written as one slab.
const projectionBlockYears = 4

// ProjectionIngester runs the PROJECTION pipeline: for each variable,
// it downloads one NetCDF file per year from the NEX-GDDP-CMIP6
// bucket, assembles up to four contiguous years into one buffer, and
// writes the buffer into the variable's array in a single slab. Blocks
// are processed and discarded one at a time, so memory is bounded by a
// single block's buffer rather than the variable's full 1950-2100
// history. Progress is recorded per variable in the array's
// "years" attribute as "first,last"; a rerun resumes at last + 1.
type ProjectionIngester struct {
	Store   *store.Store
	Fetch   *fetch.Client
	BaseURL string
	// DownloadDir holds the downloaded NetCDF files. Files already
	// present there are treated as cache hits.
	DownloadDir string
}

// yearURL builds the upstream NEX-GDDP-CMIP6 URL for one variable's
// one year of daily data. Years through 2014 come from the
// "historical" experiment, later years from "ssp245".
func (ing *ProjectionIngester) yearURL(variable string, year int) string {
	kind := dates.YearKind(year)
	return fmt.Sprintf("%s/NEX-GDDP-CMIP6/ACCESS-CM2/%s/r1i1p1f1/%s/%s_day_ACCESS-CM2_%s_r1i1p1f1_gn_%d.nc",
		ing.BaseURL, kind, variable, variable, kind, year)
}

// dayOffset returns the number of days between Jan 1 of the first
// projection year and Jan 1 of year.
func dayOffset(year int) int {
	n := 0
	for y := dates.ProjectionFirstYear; y < year; y++ {
		n += dates.DaysInYear(y)
	}
	return n
}

func totalProjectionDays() int {
	return dayOffset(dates.ProjectionLastYear + 1)
}

// Run ingests every PROJECTION variable's years not yet recorded in
// its array's "years" attribute.
func (ing *ProjectionIngester) Run(ctx context.Context) error {
	g := grid.Projection
	h, w := g.Size()
	total := totalProjectionDays()

	group := ing.Store.Group(projectionGroupName)
	for _, name := range catalog.ProjectionVariables() {
		arr, err := group.CreateArray(ctx, name, []int{total, h, w}, dates.WindowDays)
		if err != nil {
			return fmt.Errorf("ingest: opening projection array for %s: %v", name, err)
		}

		firstYear := dates.ProjectionFirstYear
		if v, ok, err := arr.Attr(ctx, yearsAttr); err != nil {
			return fmt.Errorf("ingest: reading %s/%s.attrs.%s: %v", projectionGroupName, name, yearsAttr, err)
		} else if ok {
			var first, last int
			if _, err := fmt.Sscanf(v, "%d,%d", &first, &last); err != nil {
				return fmt.Errorf("ingest: parsing %s/%s.attrs.%s %q: %v", projectionGroupName, name, yearsAttr, v, err)
			}
			firstYear = last + 1
		}

		for year := firstYear; year <= dates.ProjectionLastYear; year += projectionBlockYears {
			lastYear := year + projectionBlockYears - 1
			if lastYear > dates.ProjectionLastYear {
				lastYear = dates.ProjectionLastYear
			}
			if err := ing.ingestBlock(ctx, arr, name, g, year, lastYear); err != nil {
				return err
			}
			if err := arr.SetAttr(ctx, yearsAttr, fmt.Sprintf("%d,%d", dates.ProjectionFirstYear, lastYear)); err != nil {
				return fmt.Errorf("ingest: recording progress for %s: %v", name, err)
			}
		}
	}
	return nil
}

// ingestBlock downloads and decodes the years [firstYear, lastYear]
// one NetCDF file at a time, concatenates them into a single buffer,
// and writes it with one slab write. A year missing upstream leaves
// its span of the buffer NaN rather than aborting the block.
func (ing *ProjectionIngester) ingestBlock(ctx context.Context, arr *store.Array, name string, g grid.Grid, firstYear, lastYear int) error {
	h, w := g.Size()
	cell := h * w
	wantDays := dayOffset(lastYear+1) - dayOffset(firstYear)
	buf := make([]float32, wantDays*cell)
	nan := float32(math.NaN())
	for i := range buf {
		buf[i] = nan
	}

	yearOffset := 0
	for y := firstYear; y <= lastYear; y++ {
		wantYearDays := dates.DaysInYear(y)
		blob, err := ing.loadYear(ctx, name, y)
		if err != nil {
			return err
		}
		if blob == nil {
			logrus.WithFields(logrus.Fields{"variable": name, "year": y}).
				Warn("ingest: projection year not available upstream")
			yearOffset += wantYearDays
			continue
		}

		tile, err := decode.ReadNetCDF(blob, name, g)
		if err != nil {
			return fmt.Errorf("ingest: decoding projection year %d of %s: %v", y, name, err)
		}
		if tile.Shape[0] != wantYearDays {
			return fmt.Errorf("ingest: projection year %d of %s has %d days, want %d", y, name, tile.Shape[0], wantYearDays)
		}
		off := yearOffset * cell
		for i, x := range tile.Elements {
			buf[off+i] = float32(x)
		}
		yearOffset += wantYearDays
	}

	offset := dayOffset(firstYear)
	logrus.WithFields(logrus.Fields{"variable": name, "years": fmt.Sprintf("%d-%d", firstYear, lastYear)}).
		Info("ingest: saving projection block")
	return arr.WriteSlab(ctx, offset, offset+wantDays, buf)
}

// loadYear returns one year's NetCDF bytes, from DownloadDir if the
// file was downloaded before, otherwise from upstream (persisting it
// to DownloadDir on the way). A nil slice with nil error means the
// year is not available upstream.
func (ing *ProjectionIngester) loadYear(ctx context.Context, name string, year int) ([]byte, error) {
	if err := os.MkdirAll(ing.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: creating download directory %s: %v", ing.DownloadDir, err)
	}
	path := filepath.Join(ing.DownloadDir, fmt.Sprintf("%s_%d.nc", name, year))
	if b, err := os.ReadFile(path); err == nil {
		logrus.WithField("path", path).Info("ingest: reading cached file")
		return b, nil
	}

	url := ing.yearURL(name, year)
	logrus.WithField("url", url).Info("ingest: downloading")
	res, err := ing.Fetch.Fetch(ctx, url)
	if err != nil {
		return nil, &UpstreamFailedError{URL: url, Err: err}
	}
	switch res.Outcome {
	case fetch.Ok:
	case fetch.NotFound:
		return nil, nil
	case fetch.RateLimited:
		return nil, &RateLimitedError{URL: url}
	default:
		return nil, &UpstreamFailedError{URL: url, Err: fmt.Errorf("unexpected outcome %v", res.Outcome)}
	}
	if err := os.WriteFile(path, res.Body, 0o644); err != nil {
		return nil, fmt.Errorf("ingest: writing %s: %v", path, err)
	}
	return res.Body, nil
}
