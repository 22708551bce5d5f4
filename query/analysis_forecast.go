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

const (
	analysisForecastGroupName = "analysis_forecast"
	reanalysisGroupName       = analysisForecastGroupName + "/reanalysis"
	forecastGroupName         = analysisForecastGroupName + "/forecast"
	dateLayout                = "2006-01-02"
)

// AnalysisForecastEngine answers point queries against the combined
// reanalysis/forecast archive.
type AnalysisForecastEngine struct {
	Store *store.Store
}

// Query returns the variables' daily values at (lat, lon) over
// [begin, end], both inclusive, as a (len(variables), days) matrix in
// catalog units, with NaN for any day the archive holds no data for.
//
// The split between reanalysis and forecast is anchored on today, the
// caller's notion of the current UTC date: begin >= today is served
// entirely from the forecast arrays (whose row 0 is
// updated - ReanalysisLastDateOffset), end <= today entirely from
// reanalysis, and a range spanning today from both, concatenated with
// today itself taken from reanalysis. Days either archive region does
// not actually hold read back as NaN rather than as an error; only a
// wholly unready archive (no analysis_forecast.attrs.updated) is
// rejected.
func (e *AnalysisForecastEngine) Query(ctx context.Context, today, begin, end time.Time, lat, lon float64, variables []string) (*sparse.DenseArray, error) {
	if begin.After(end) {
		return nil, &InvalidDateRangeError{Begin: begin, End: end}
	}
	vars := make([]catalog.Variable, len(variables))
	for i, name := range variables {
		v, err := catalog.AnalysisForecastVariable(name)
		if err != nil {
			return nil, err
		}
		vars[i] = v
	}

	group := e.Store.Group(analysisForecastGroupName)
	updatedStr, ok, err := group.Attr(ctx, "updated")
	if err != nil {
		return nil, fmt.Errorf("query: reading %s.attrs.updated: %v", analysisForecastGroupName, err)
	}
	if !ok {
		return nil, &ArchiveNotReadyError{Reason: "the analysis/forecast archive has not been ingested yet"}
	}
	updated, err := time.Parse(dateLayout, updatedStr)
	if err != nil {
		return nil, fmt.Errorf("query: parsing %s.attrs.updated %q: %v", analysisForecastGroupName, updatedStr, err)
	}
	firstForecastDay := dates.AddDays(updated, -dates.ReanalysisLastDateOffset)

	days := dates.DayIndex(begin, end) + 1
	out := sparse.ZerosDense(len(vars), days)
	for i := range out.Elements {
		out.Elements[i] = math.NaN()
	}

	switch {
	case !begin.Before(today):
		err = e.readForecast(ctx, firstForecastDay, begin, end, lat, lon, vars, out, 0)
	case !end.After(today):
		err = e.readReanalysis(ctx, begin, end, lat, lon, vars, out, 0)
	default:
		// today splits the range: [begin, today] from reanalysis,
		// [today + 1, end] from forecast.
		if err = e.readReanalysis(ctx, begin, today, lat, lon, vars, out, 0); err == nil {
			err = e.readForecast(ctx, firstForecastDay, dates.AddDays(today, 1), end, lat, lon, vars, out, dates.DayIndex(begin, today)+1)
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readReanalysis fills columns [dayOff, dayOff + days) of out from the
// reanalysis arrays, which all live on the 0.5-degree reanalysis grid
// regardless of variable family.
func (e *AnalysisForecastEngine) readReanalysis(ctx context.Context, begin, end time.Time, lat, lon float64, vars []catalog.Variable, out *sparse.DenseArray, dayOff int) error {
	row, col, err := grid.Reanalysis.Index(lat, lon)
	if err != nil {
		return err
	}
	h, w := grid.Reanalysis.Size()
	group := e.Store.Group(reanalysisGroupName)
	beginIdx := dates.DayIndex(dates.ReanalysisFirstDate, begin)
	endIdx := dates.DayIndex(dates.ReanalysisFirstDate, end) + 1
	nDays := out.Shape[1]
	for i, v := range vars {
		arr, err := group.OpenArray(ctx, v.Name)
		if err != nil {
			continue // never ingested: leave NaN
		}
		dst := out.Elements[i*nDays+dayOff : i*nDays+dayOff+(endIdx-beginIdx)]
		if err := readColumnInto(ctx, arr, beginIdx, endIdx, row, col, h, w, dst); err != nil {
			return err
		}
	}
	return nil
}

// readForecast fills columns [dayOff, dayOff + days) of out from the
// forecast arrays, whose row 0 is firstForecastDay and whose grid
// depends on each variable's family.
func (e *AnalysisForecastEngine) readForecast(ctx context.Context, firstForecastDay, begin, end time.Time, lat, lon float64, vars []catalog.Variable, out *sparse.DenseArray, dayOff int) error {
	flxRow, flxCol, err := grid.FLX.Index(lat, lon)
	if err != nil {
		return err
	}
	pgbRow, pgbCol, err := grid.PGB.Index(lat, lon)
	if err != nil {
		return err
	}
	group := e.Store.Group(forecastGroupName)
	beginIdx := dates.DayIndex(firstForecastDay, begin)
	endIdx := dates.DayIndex(firstForecastDay, end) + 1
	nDays := out.Shape[1]
	for i, v := range vars {
		g, row, col := grid.FLX, flxRow, flxCol
		if v.Family == catalog.FamilyPGB {
			g, row, col = grid.PGB, pgbRow, pgbCol
		}
		h, w := g.Size()
		arr, err := group.OpenArray(ctx, v.Name)
		if err != nil {
			continue // never ingested: leave NaN
		}
		dst := out.Elements[i*nDays+dayOff : i*nDays+dayOff+(endIdx-beginIdx)]
		if err := readColumnInto(ctx, arr, beginIdx, endIdx, row, col, h, w, dst); err != nil {
			return err
		}
	}
	return nil
}

// readColumnInto reads dimension-0 rows [beginIdx, endIdx) of arr,
// extracting the (row, col) cell of each (h, w) slice, and writes the
// values into dst. beginIdx may be negative and endIdx may exceed the
// array's extent; ReadSlab clamps both, so only the actual overlap is
// copied in, at its correct offset into dst, leaving the rest of dst
// (already NaN-filled by the caller) untouched.
func readColumnInto(ctx context.Context, arr *store.Array, beginIdx, endIdx, row, col, h, w int, dst []float64) error {
	if endIdx <= beginIdx {
		return nil
	}
	buf, err := arr.ReadSlab(ctx, beginIdx, endIdx)
	if err != nil {
		return fmt.Errorf("query: reading slab [%d, %d): %v", beginIdx, endIdx, err)
	}
	cell := h * w
	off := row*w + col
	dstOff := 0
	if beginIdx < 0 {
		dstOff = -beginIdx
	}
	for i := 0; i < len(buf)/cell; i++ {
		dst[dstOff+i] = float64(buf[i*cell+off])
	}
	return nil
}
