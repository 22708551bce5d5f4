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
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"github.com/climatearchive/cfsarchive/catalog"
	"github.com/climatearchive/cfsarchive/decode"
	"github.com/climatearchive/cfsarchive/fetch"
	"github.com/climatearchive/cfsarchive/grid"
	"github.com/climatearchive/cfsarchive/internal/dates"
	"github.com/climatearchive/cfsarchive/store"
)

// flxParams and pgbParams are the NOMADS filter_cfs_{flx,pgb}.pl
// query-string flags that select each family's variables and vertical
// levels. These mirror the upstream catalog's own request shape
// exactly; they are not something this archive could derive from the
// GRIB2 band table.
var flxParams = map[string]string{
	"var_DLWRF": "on", "var_DSWRF": "on", "var_GFLUX": "on", "var_LHTFL": "on",
	"var_PRATE": "on", "var_PRES": "on", "var_QMAX": "on", "var_QMIN": "on",
	"var_SHTFL": "on", "var_SNOD": "on", "var_SOILW": "on", "var_SPFH": "on",
	"var_TMAX": "on", "var_TMIN": "on", "var_TMP": "on", "var_UGRD": "on",
	"var_ULWRF": "on", "var_USWRF": "on", "var_VGRD": "on", "var_WEASD": "on",
	"lev_0-0.1_m_below_ground": "on", "lev_0.1-0.4_m_below_ground": "on",
	"lev_0.4-1_m_below_ground": "on", "lev_1-2_m_below_ground": "on",
	"lev_2_m_above_ground": "on", "lev_10_m_above_ground": "on", "lev_surface": "on",
}

var pgbParams = map[string]string{
	"var_RH":               "on",
	"lev_2_m_above_ground": "on",
}

// ForecastIngester runs the FORECAST pipeline: for today's CFS cycle,
// it downloads the four 6-hourly samples per family (FLX, PGB) per day
// over the forecast horizon from NOMADS' filter_cfs_*.pl CGI endpoint,
// reduces each day's (4, H, W) tile to one daily value per variable,
// and overwrites that variable's forecast array wholesale. Unlike the
// ANALYSIS pipeline, a missing sample does not abort the day: its slot
// in the tile is left NaN and the reducer runs on the whole tile. Mean
// and Sum then yield NaN for that day; Min and Max skip a NaN in any
// slot but the first (00), and yield NaN when the 00 sample is the
// missing one.
type ForecastIngester struct {
	Store   *store.Store
	Fetch   *fetch.Client
	BaseURL string // e.g. "https://nomads.ncep.noaa.gov/cgi-bin"
	// DownloadDir holds the downloaded GRIB2 files for this cycle.
	// Files already present there are treated as cache hits.
	DownloadDir string
}

// forecastURL builds the filter_cfs_{flx,pgb}.pl request for one
// 6-hourly sample of one forecast day. The request is always scoped to
// today's 00Z run directory even though the sample dates it asks for
// run from three days before today through the end of the horizon.
func (ing *ForecastIngester) forecastURL(family catalog.Family, today, day time.Time, hh string) string {
	prefix := "flxf"
	params := flxParams
	cgi := "filter_cfs_flx.pl"
	if family == catalog.FamilyPGB {
		prefix = "pgbf"
		params = pgbParams
		cgi = "filter_cfs_pgb.pl"
	}
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	q.Set("dir", fmt.Sprintf("/cfs.%s/00/6hrly_grib_01", today.Format("20060102")))
	q.Set("file", fmt.Sprintf("%s%s%s.01.%s00.grb2", prefix, day.Format("20060102"), hh, today.Format("20060102")))
	return fmt.Sprintf("%s/%s?%s", ing.BaseURL, cgi, q.Encode())
}

// Run downloads and merges today's forecast cycle, covering
// [today - ReanalysisLastDateOffset, yesterday + ForecastHorizon).
func (ing *ForecastIngester) Run(ctx context.Context, today time.Time) error {
	begin := dates.AddDays(today, -dates.ReanalysisLastDateOffset)
	end := dates.AddDays(today, dates.ForecastHorizon-1)

	families := []struct {
		family catalog.Family
		grid   grid.Grid
	}{
		{catalog.FamilyFLX, grid.FLX},
		{catalog.FamilyPGB, grid.PGB},
	}

	forecastGroup := ing.Store.Group(forecastGroupName)
	for _, f := range families {
		var vars []catalog.Variable
		for _, v := range catalog.AnalysisForecastVariables() {
			if v.Family == f.family {
				vars = append(vars, v)
			}
		}
		if err := ing.downloadFamily(ctx, f.family, today, begin, end); err != nil {
			return err
		}
		if err := ing.mergeFamily(ctx, forecastGroup, f.family, f.grid, vars, begin, end); err != nil {
			return err
		}
	}
	return nil
}

// filePath is where one downloaded sample lives in DownloadDir,
// independent of which run directory it was fetched from.
func (ing *ForecastIngester) filePath(family catalog.Family, day time.Time, hh string) string {
	kind := "flx"
	if family == catalog.FamilyPGB {
		kind = "pgb"
	}
	return filepath.Join(ing.DownloadDir, fmt.Sprintf("%s%s%s.grb2", kind, day.Format("20060102"), hh))
}

// downloadFamily fetches every not-yet-present sample of one family's
// forecast window. A 404 is logged and skipped (the merge leaves NaN
// for it); an HTML body on a 2xx response means NOMADS is throttling
// us and aborts the run.
func (ing *ForecastIngester) downloadFamily(ctx context.Context, family catalog.Family, today, begin, end time.Time) error {
	if err := os.MkdirAll(ing.DownloadDir, 0o755); err != nil {
		return fmt.Errorf("ingest: creating download directory %s: %v", ing.DownloadDir, err)
	}
	for day := begin; day.Before(end); day = dates.AddDays(day, 1) {
		for _, hh := range hhs {
			path := ing.filePath(family, day, hh)
			if _, err := os.Stat(path); err == nil {
				logrus.WithField("path", path).Info("ingest: skipping already downloaded file")
				continue
			}
			u := ing.forecastURL(family, today, day, hh)
			res, err := ing.Fetch.Fetch(ctx, u)
			if err != nil {
				return &UpstreamFailedError{URL: u, Err: err}
			}
			switch res.Outcome {
			case fetch.Ok:
				if err := os.WriteFile(path, res.Body, 0o644); err != nil {
					return fmt.Errorf("ingest: writing %s: %v", path, err)
				}
			case fetch.NotFound:
				logrus.WithFields(logrus.Fields{"family": family, "date": day.Format(dateLayout), "hh": hh}).
					Warn("ingest: forecast sample not available")
			case fetch.RateLimited:
				return &RateLimitedError{URL: u}
			default:
				return &UpstreamFailedError{URL: u, Err: fmt.Errorf("unexpected outcome %v", res.Outcome)}
			}
		}
	}
	return nil
}

// mergeFamily reduces the downloaded window into one (days, H, W)
// buffer per variable and writes each buffer over the variable's
// forecast array in a single slab.
func (ing *ForecastIngester) mergeFamily(ctx context.Context, forecastGroup *store.Group, family catalog.Family, g grid.Grid, vars []catalog.Variable, begin, end time.Time) error {
	h, w := g.Size()
	cell := h * w
	days := dates.DayIndex(begin, end)
	nan := float32(math.NaN())

	rows := make(map[string][]float32, len(vars))
	for _, v := range vars {
		buf := make([]float32, days*cell)
		for i := range buf {
			buf[i] = nan
		}
		rows[v.Name] = buf
	}

	buf := make([]float32, cell)
	tiles := make([]*sparse.DenseArray, len(vars))
	for day := 0; day < days; day++ {
		date := dates.AddDays(begin, day)
		for i := range vars {
			tiles[i] = sparse.ZerosDense(len(hhs), h, w)
			for j := range tiles[i].Elements {
				tiles[i].Elements[j] = math.NaN()
			}
		}
		// Parse each of the day's present files once and pull every
		// variable's band out of it; an absent file leaves its slot of
		// every tile NaN.
		for s, hh := range hhs {
			path := ing.filePath(family, date, hh)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			f, err := decode.OpenGRIB2(path)
			if err != nil {
				return fmt.Errorf("ingest: %v", err)
			}
			for i, v := range vars {
				if err := f.Band(v.ForecastBand, g, buf); err != nil {
					return fmt.Errorf("ingest: decoding %s band %d from %s: %v", v.Name, v.ForecastBand, path, err)
				}
				for j, x := range buf {
					tiles[i].Elements[s*cell+j] = float64(x)
				}
			}
		}
		for i, v := range vars {
			daily := catalog.Reduce(v.Reducer, tiles[i])
			off := day * cell
			for j, x := range daily.Elements {
				rows[v.Name][off+j] = float32(x)
			}
		}
	}

	for _, v := range vars {
		arr, err := forecastGroup.CreateArray(ctx, v.Name, []int{days, h, w}, 0)
		if err != nil {
			return fmt.Errorf("ingest: opening forecast array for %s: %v", v.Name, err)
		}
		if err := arr.WriteSlab(ctx, 0, days, rows[v.Name]); err != nil {
			return fmt.Errorf("ingest: writing forecast array for %s: %v", v.Name, err)
		}
		logrus.WithField("variable", v.Name).Info("ingest: saved forecast array")
	}
	return nil
}
