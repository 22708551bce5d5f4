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

// Package dates centralizes the archive's date arithmetic anchors and
// the small helpers built on them, shared by the ingest and query
// packages.
package dates

import "time"

const (
	// WindowDays is the length, in days, of a reanalysis staging
	// window: four calendar years' worth of daily slots.
	WindowDays = 1461

	// ForecastHorizon is the number of days a forecast cycle covers.
	ForecastHorizon = 180

	// ReanalysisLastDateOffset is the gap, in days, between "today"
	// and the last day reanalysis data is expected to be available
	// for; this is also where the forecast window begins.
	ReanalysisLastDateOffset = 3

	// ProjectionFirstYear and ProjectionLastYear bound the PROJECTION
	// archive's fixed year range.
	ProjectionFirstYear = 1950
	ProjectionLastYear  = 2100

	// ProjectionLastHistoricalYear is the last year sourced from the
	// "historical" CMIP6 experiment; years after it come from "ssp245".
	ProjectionLastHistoricalYear = 2014
)

// ReanalysisFirstDate is the first day the reanalysis archive covers.
var ReanalysisFirstDate = time.Date(2011, time.April, 1, 0, 0, 0, 0, time.UTC)

// ProjectionFirstDate is the anchor date (Jan 1 of the first projection
// year) that projection day indices are measured from.
var ProjectionFirstDate = time.Date(ProjectionFirstYear, time.January, 1, 0, 0, 0, 0, time.UTC)

// DayIndex returns the number of whole days from 'from' to 'date'
// (negative if date precedes from).
func DayIndex(from, date time.Time) int {
	return int(date.Sub(from).Hours() / 24)
}

// AddDays returns t advanced by n days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// WindowStart returns the start date of the 1461-day window containing
// dayIndex days after 'from'.
func WindowStart(from time.Time, dayIndex int) time.Time {
	windowStartDay := (dayIndex / WindowDays) * WindowDays
	return AddDays(from, windowStartDay)
}

// DayInWindow returns dayIndex's offset within its 1461-day window.
func DayInWindow(dayIndex int) int {
	return dayIndex % WindowDays
}

// IsLeap reports whether year is a leap year in the proleptic Gregorian
// calendar.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInYear returns the number of days in year (365 or 366).
func DaysInYear(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

// YearKind returns the CMIP6 experiment name a projection year is
// sourced from: "historical" through 2014, "ssp245" after.
func YearKind(year int) string {
	if year <= ProjectionLastHistoricalYear {
		return "historical"
	}
	return "ssp245"
}
