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

// Package ingest implements the three download-and-merge pipelines
// (ANALYSIS/reanalysis, FORECAST, PROJECTION) that populate the
// chunked archive.
package ingest

import "fmt"

// RateLimitedError reports that an upstream endpoint served an HTML
// body on a 2xx response, its way of signaling throttling. It is
// always fatal to the ingestion run that observed it.
type RateLimitedError struct {
	URL string
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("ingest: %s: upstream is rate-limiting (HTML body on 2xx)", e.URL)
}

// UpstreamFailedError reports a non-OK, non-404 status that survived
// all retries.
type UpstreamFailedError struct {
	URL string
	Err error
}

func (e *UpstreamFailedError) Error() string {
	return fmt.Sprintf("ingest: %s: upstream request failed: %v", e.URL, e.Err)
}

func (e *UpstreamFailedError) Unwrap() error { return e.Err }
