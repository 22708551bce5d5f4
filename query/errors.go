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

// Package query answers point-and-date-range requests against the
// archive, resolving each request to the store reads it needs and
// assembling the results into a (variables, days) matrix.
package query

import (
	"fmt"
	"time"
)

// InvalidDateRangeError reports a request whose first date follows its
// last date.
type InvalidDateRangeError struct {
	Begin, End time.Time
}

func (e *InvalidDateRangeError) Error() string {
	return "query: first date must be less than or equal to last"
}

// OutOfRangeDateError reports a projection request outside the
// archive's fixed year range.
type OutOfRangeDateError struct {
	Requested   time.Time
	First, Last time.Time
}

func (e *OutOfRangeDateError) Error() string {
	return fmt.Sprintf("query: date %s is out of range [%s; %s]",
		e.Requested.Format("2006-01-02"), e.First.Format("2006-01-02"), e.Last.Format("2006-01-02"))
}

// ArchiveNotReadyError reports that the archive (or the part of it a
// query needs) has not been ingested yet.
type ArchiveNotReadyError struct {
	Reason string
}

func (e *ArchiveNotReadyError) Error() string {
	return fmt.Sprintf("query: archive not ready: %s", e.Reason)
}
