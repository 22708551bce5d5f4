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
	"time"

	"github.com/sirupsen/logrus"

	"github.com/climatearchive/cfsarchive/internal/dates"
	"github.com/climatearchive/cfsarchive/store"
)

// Archive group paths and attribute keys. The reanalysis and forecast
// groups nest under "analysis_forecast"; "_tmp" is the reanalysis
// ingester's staging ring.
const (
	analysisForecastGroupName = "analysis_forecast"
	reanalysisGroupName       = analysisForecastGroupName + "/reanalysis"
	tmpGroupName              = reanalysisGroupName + "/_tmp"
	forecastGroupName         = analysisForecastGroupName + "/forecast"
	projectionGroupName       = "projection"

	lastAttr    = "last"
	updatedAttr = "updated"
	yearsAttr   = "years"

	dateLayout = "2006-01-02"
)

// hhs are the four 6-hourly sample times both CFS products publish.
var hhs = [4]string{"00", "06", "12", "18"}

// AnalysisForecast runs one full ANALYSIS/FORECAST ingestion cycle:
// catch the reanalysis archive up to today - ReanalysisLastDateOffset,
// re-ingest the forecast horizon, and stamp
// analysis_forecast.attrs.updated with today. The stamp makes the
// cycle idempotent within a UTC day: if updated is already today (or
// later), nothing is downloaded.
func AnalysisForecast(ctx context.Context, s *store.Store, reanalysis *ReanalysisIngester, forecast *ForecastIngester, today time.Time) error {
	group := s.Group(analysisForecastGroupName)
	if updated, ok, err := group.Attr(ctx, updatedAttr); err != nil {
		return fmt.Errorf("ingest: reading %s.attrs.%s: %v", analysisForecastGroupName, updatedAttr, err)
	} else if ok {
		u, err := time.Parse(dateLayout, updated)
		if err != nil {
			return fmt.Errorf("ingest: parsing %s.attrs.%s %q: %v", analysisForecastGroupName, updatedAttr, updated, err)
		}
		if dates.DayIndex(u, today) < 1 {
			logrus.Info("No forecast update required")
			return nil
		}
	}

	forecastBegin := dates.AddDays(today, -dates.ReanalysisLastDateOffset)
	if err := reanalysis.Run(ctx, forecastBegin); err != nil {
		return err
	}
	if err := forecast.Run(ctx, today); err != nil {
		return err
	}
	return group.SetAttr(ctx, updatedAttr, today.Format(dateLayout))
}
