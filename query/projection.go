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

package query

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ctessum/sparse"

	"github.com/climatearchive/cfsarchive/catalog"
	"github.com/climatearchive/cfsarchive/grid"
	"github.com/climatearchive/cfsarchive/internal/dates"
	"github.com/climatearchive/cfsarchive/store"
)

const projectionGroupName = "projection"

var (
	projectionFirstDate = dates.ProjectionFirstDate
	projectionLastDate  = time.Date(dates.ProjectionLastYear, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// ProjectionEngine answers point queries against the PROJECTION
// archive, which (unlike ANALYSIS/FORECAST) has a single fixed
// 1950-2100 date range and its own grid, so it validates independently
// rather than sharing AnalysisForecastEngine's boundary logic.
type ProjectionEngine struct {
	Store *store.Store
}

// Query returns the variables' daily values at (lat, lon) over
// [begin, end], both inclusive, as a (len(variables), days) matrix.
// Dates outside the archive's fixed year range are rejected.
func (e *ProjectionEngine) Query(ctx context.Context, begin, end time.Time, lat, lon float64, variables []string) (*sparse.DenseArray, error) {
	if begin.After(end) {
		return nil, &InvalidDateRangeError{Begin: begin, End: end}
	}
	if begin.Before(projectionFirstDate) {
		return nil, &OutOfRangeDateError{Requested: begin, First: projectionFirstDate, Last: projectionLastDate}
	}
	if end.After(projectionLastDate) {
		return nil, &OutOfRangeDateError{Requested: end, First: projectionFirstDate, Last: projectionLastDate}
	}
	for _, name := range variables {
		if !catalog.IsProjectionVariable(name) {
			return nil, fmt.Errorf("query: no such projection variable %q", name)
		}
	}

	row, col, err := grid.Projection.Index(lat, lon)
	if err != nil {
		return nil, err
	}
	h, w := grid.Projection.Size()

	beginIdx := dates.DayIndex(projectionFirstDate, begin)
	endIdx := dates.DayIndex(projectionFirstDate, end) + 1
	days := endIdx - beginIdx
	out := sparse.ZerosDense(len(variables), days)
	for i := range out.Elements {
		out.Elements[i] = math.NaN()
	}

	group := e.Store.Group(projectionGroupName)
	for i, name := range variables {
		arr, err := group.OpenArray(ctx, name)
		if err != nil {
			continue // never ingested: leave NaN
		}
		dst := out.Elements[i*days : (i+1)*days]
		if err := readColumnInto(ctx, arr, beginIdx, endIdx, row, col, h, w, dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}
