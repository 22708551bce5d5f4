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

// Package catalog holds the immutable tables describing the variables
// carried by the two archived products, and the daily reducer that
// collapses a sub-daily tile into one daily value.
package catalog

import (
	"fmt"

	"github.com/ctessum/sparse"
)

// Reducer is the daily aggregate statistic applied along the time axis
// of a sub-daily tile.
type Reducer int

const (
	// Mean is the arithmetic mean. All samples along the reduced axis
	// must be present (non-NaN) for a non-NaN result. Reanalysis
	// ingestion skips the whole day when any of the four HH files are
	// missing; forecast ingestion leaves a missing file's slot NaN, so
	// that day's mean comes out NaN.
	Mean Reducer = iota
	Sum
	Min
	Max
)

func (r Reducer) String() string {
	switch r {
	case Mean:
		return "mean"
	case Sum:
		return "sum"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return fmt.Sprintf("Reducer(%d)", int(r))
	}
}

// Family selects which physical grid a variable's values live on.
type Family string

const (
	FamilyFLX Family = "FLX"
	FamilyPGB Family = "PGB"
)

// Variable describes one ANALYSIS/FORECAST variable.
type Variable struct {
	Name           string
	ForecastBand   int // 1-based GRIB2 band number in the forecast product
	ReanalysisBand int // 1-based GRIB2 band number in the reanalysis product
	Reducer        Reducer
	Family         Family
}

// analysisForecast is the static table of ANALYSIS/FORECAST variables:
// the GRIB2 band each variable occupies in the forecast and reanalysis
// products, the statistic that collapses its four 6-hourly samples into
// a daily value, and the family that selects its forecast grid.
//
// TMIN's reanalysis band is 601, identical to TMAX's. This matches the
// upstream source catalog exactly and may be a bug in it; see
// DESIGN.md's "TMIN mapping" note. Do not silently correct it here.
var analysisForecast = []Variable{
	{Name: "DLWRF", ForecastBand: 9, ReanalysisBand: 571, Reducer: Mean, Family: FamilyFLX},
	{Name: "DSWRF", ForecastBand: 12, ReanalysisBand: 576, Reducer: Mean, Family: FamilyFLX},
	{Name: "GFLUX", ForecastBand: 14, ReanalysisBand: 644, Reducer: Mean, Family: FamilyFLX},
	{Name: "LHTFL", ForecastBand: 2, ReanalysisBand: 564, Reducer: Mean, Family: FamilyFLX},
	{Name: "PRATE", ForecastBand: 13, ReanalysisBand: 591, Reducer: Sum, Family: FamilyFLX},
	{Name: "PRES", ForecastBand: 19, ReanalysisBand: 600, Reducer: Mean, Family: FamilyFLX},
	{Name: "QMAX", ForecastBand: 22, ReanalysisBand: 603, Reducer: Max, Family: FamilyFLX},
	{Name: "QMIN", ForecastBand: 23, ReanalysisBand: 604, Reducer: Min, Family: FamilyFLX},
	{Name: "SHTFL", ForecastBand: 1, ReanalysisBand: 563, Reducer: Mean, Family: FamilyFLX},
	{Name: "SNOD", ForecastBand: 28, ReanalysisBand: 625, Reducer: Max, Family: FamilyFLX},
	{Name: "SOILW_0-0.1m", ForecastBand: 4, ReanalysisBand: 566, Reducer: Max, Family: FamilyFLX},
	{Name: "SOILW_0.1-0.4m", ForecastBand: 5, ReanalysisBand: 567, Reducer: Max, Family: FamilyFLX},
	{Name: "SOILW_0.4-1m", ForecastBand: 24, ReanalysisBand: 617, Reducer: Max, Family: FamilyFLX},
	{Name: "SOILW_1-2m", ForecastBand: 25, ReanalysisBand: 618, Reducer: Max, Family: FamilyFLX},
	{Name: "SPFH", ForecastBand: 18, ReanalysisBand: 599, Reducer: Mean, Family: FamilyFLX},
	{Name: "TMAX", ForecastBand: 20, ReanalysisBand: 601, Reducer: Max, Family: FamilyFLX},
	{Name: "TMIN", ForecastBand: 21, ReanalysisBand: 601, Reducer: Min, Family: FamilyFLX},
	{Name: "TMP", ForecastBand: 17, ReanalysisBand: 598, Reducer: Mean, Family: FamilyFLX},
	{Name: "TMP_0m", ForecastBand: 3, ReanalysisBand: 565, Reducer: Mean, Family: FamilyFLX},
	{Name: "TMP_0_0.1m", ForecastBand: 6, ReanalysisBand: 568, Reducer: Mean, Family: FamilyFLX},
	{Name: "TMP_0.1_0.4m", ForecastBand: 7, ReanalysisBand: 569, Reducer: Mean, Family: FamilyFLX},
	{Name: "TMP_0.4_1m", ForecastBand: 26, ReanalysisBand: 619, Reducer: Mean, Family: FamilyFLX},
	{Name: "TMP_1-2m", ForecastBand: 27, ReanalysisBand: 620, Reducer: Mean, Family: FamilyFLX},
	{Name: "UGRD", ForecastBand: 15, ReanalysisBand: 596, Reducer: Mean, Family: FamilyFLX},
	{Name: "ULWRF", ForecastBand: 10, ReanalysisBand: 572, Reducer: Mean, Family: FamilyFLX},
	{Name: "USWRF", ForecastBand: 11, ReanalysisBand: 575, Reducer: Mean, Family: FamilyFLX},
	{Name: "VGRD", ForecastBand: 16, ReanalysisBand: 597, Reducer: Mean, Family: FamilyFLX},
	{Name: "WEASD", ForecastBand: 8, ReanalysisBand: 570, Reducer: Sum, Family: FamilyFLX},
	{Name: "RH", ForecastBand: 1, ReanalysisBand: 368, Reducer: Mean, Family: FamilyPGB},
}

var analysisForecastByName map[string]Variable

func init() {
	analysisForecastByName = make(map[string]Variable, len(analysisForecast))
	for _, v := range analysisForecast {
		analysisForecastByName[v.Name] = v
	}
}

// AnalysisForecastVariables returns all ANALYSIS/FORECAST variable
// definitions, in catalog order.
func AnalysisForecastVariables() []Variable {
	out := make([]Variable, len(analysisForecast))
	copy(out, analysisForecast)
	return out
}

// AnalysisForecastVariable looks up one ANALYSIS/FORECAST variable by
// name.
func AnalysisForecastVariable(name string) (Variable, error) {
	v, ok := analysisForecastByName[name]
	if !ok {
		return Variable{}, fmt.Errorf("catalog: no such analysis/forecast variable %q", name)
	}
	return v, nil
}

// projectionVariables is the static table of PROJECTION variable names.
// Each binds only to its source NetCDF variable name; the daily
// reducer, if any, is pre-applied upstream.
var projectionVariables = []string{
	"hurs", "huss", "pr", "rlds", "rsds", "sfcWind", "tas", "tasmin", "tasmax",
}

// ProjectionVariables returns the names of all PROJECTION variables.
func ProjectionVariables() []string {
	out := make([]string, len(projectionVariables))
	copy(out, projectionVariables)
	return out
}

// IsProjectionVariable reports whether name is a known PROJECTION
// variable.
func IsProjectionVariable(name string) bool {
	for _, v := range projectionVariables {
		if v == name {
			return true
		}
	}
	return false
}

// Reduce collapses tile, a (n, h, w) dense array holding n sub-daily
// samples, into an (h, w) dense array using r. Reduce panics if tile's
// shape does not have exactly 3 dimensions.
func Reduce(r Reducer, tile *sparse.DenseArray) *sparse.DenseArray {
	if len(tile.Shape) != 3 {
		panic(fmt.Sprintf("catalog: Reduce: expected a 3-d tile, got shape %v", tile.Shape))
	}
	n, h, w := tile.Shape[0], tile.Shape[1], tile.Shape[2]
	out := sparse.ZerosDense(h, w)
	cell := h * w
	for i := 0; i < cell; i++ {
		switch r {
		case Mean:
			var sum float64
			for t := 0; t < n; t++ {
				sum += tile.Elements[t*cell+i]
			}
			out.Elements[i] = sum / float64(n)
		case Sum:
			var sum float64
			for t := 0; t < n; t++ {
				sum += tile.Elements[t*cell+i]
			}
			out.Elements[i] = sum
		case Min:
			m := tile.Elements[i]
			for t := 1; t < n; t++ {
				if v := tile.Elements[t*cell+i]; v < m {
					m = v
				}
			}
			out.Elements[i] = m
		case Max:
			m := tile.Elements[i]
			for t := 1; t < n; t++ {
				if v := tile.Elements[t*cell+i]; v > m {
					m = v
				}
			}
			out.Elements[i] = m
		default:
			panic(fmt.Sprintf("catalog: Reduce: unknown reducer %v", r))
		}
	}
	return out
}
