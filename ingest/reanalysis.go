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
	"os"
	"path/filepath"
	"strconv"
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

// ReanalysisIngester runs the ANALYSIS pipeline: day by day, it
// downloads the four 6-hourly CDAS reanalysis files, reduces each
// variable's samples to one daily value, and stages the result in a
// 1461-day (four calendar year) ring under "_tmp" before promoting
// each completed window into the permanent reanalysis arrays.
//
// Progress is tracked by two attributes. reanalysis.attrs.last is the
// last committed date, advanced only when a window is promoted.
// _tmp.attrs.last is the index within the current window of the last
// day staged, advanced after every day; a crash between promotes
// leaves it behind, and the next run resumes from the day after it
// with the already-staged days intact.
type ReanalysisIngester struct {
	Store *store.Store
	Fetch *fetch.Client
	// BaseURL is the root of NCEI's 6-hourly-by-pressure archive; the
	// per-day path (YYYY/YYYYMM/YYYYMMDD/cdas1.tHHz.pgrbh00.grib2) is
	// appended to it.
	BaseURL string
	// DownloadDir holds the downloaded GRIB2 files. Files already
	// present there are treated as cache hits and not fetched again.
	DownloadDir string
}

// reanalysisURL builds the upstream URL for one 6-hourly CDAS file.
func (ing *ReanalysisIngester) reanalysisURL(date time.Time, hh string) string {
	ymd := date.Format("20060102")
	return fmt.Sprintf("%s/%d/%s/%s/cdas1.t%sz.pgrbh00.grib2",
		ing.BaseURL, date.Year(), ymd[:6], ymd, hh)
}

// dayJob is the unit of work handed from the download loop to the
// background uploader: one day's downloaded files to decode and stage,
// addressed by the day's slot in the staging window. Closing the jobs
// channel is the end-of-stream signal.
type dayJob struct {
	day   int // index within the staging window
	date  time.Time
	paths [4]string
}

// Run ingests every day in [reanalysis.attrs.last + 1, end), staging
// into "_tmp" and promoting a window at a time. end is exclusive; the
// caller passes today - ReanalysisLastDateOffset.
func (ing *ReanalysisIngester) Run(ctx context.Context, end time.Time) error {
	group := ing.Store.Group(reanalysisGroupName)
	tmpGroup := ing.Store.Group(tmpGroupName)

	date := dates.ReanalysisFirstDate
	if last, ok, err := group.Attr(ctx, lastAttr); err != nil {
		return fmt.Errorf("ingest: reading %s.attrs.%s: %v", reanalysisGroupName, lastAttr, err)
	} else if ok {
		d, err := time.Parse(dateLayout, last)
		if err != nil {
			return fmt.Errorf("ingest: parsing %s.attrs.%s %q: %v", reanalysisGroupName, lastAttr, last, err)
		}
		date = dates.AddDays(d, 1)
	}
	if !date.Before(end) {
		return nil
	}

	firstDay := dates.DayIndex(dates.ReanalysisFirstDate, date)
	totalDays := dates.DayIndex(dates.ReanalysisFirstDate, end)
	day0 := dates.DayInWindow(firstDay)

	tmpLast := -1
	if s, ok, err := tmpGroup.Attr(ctx, lastAttr); err != nil {
		return fmt.Errorf("ingest: reading %s.attrs.%s: %v", tmpGroupName, lastAttr, err)
	} else if ok {
		tmpLast, err = strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("ingest: parsing %s.attrs.%s %q: %v", tmpGroupName, lastAttr, s, err)
		}
	}
	date, dayResume := resumePoint(date, tmpLast)

	day1 := day0 + totalDays - firstDay
	if day1 > dates.WindowDays {
		day1 = dates.WindowDays
	}

	var lastSuccess time.Time
	for date.Before(end) {
		jobs := make(chan dayJob)
		done := make(chan error, 1)
		go ing.upload(ctx, tmpGroup, jobs, done)

		var runErr error
		workerDone := false
		for day := dayResume; day < day1; day++ {
			paths, err := ing.download(ctx, date)
			if err != nil {
				runErr = err
				break
			}
			if paths == nil {
				logrus.WithField("date", date.Format(dateLayout)).Warn("ingest: day was not found on the server")
			} else {
				lastSuccess = date
				select {
				case jobs <- dayJob{day: day, date: date, paths: *paths}:
				case runErr = <-done:
					workerDone = true
				}
				if runErr != nil {
					break
				}
			}
			date = dates.AddDays(date, 1)
		}
		close(jobs)
		if !workerDone {
			if err := <-done; err != nil && runErr == nil {
				runErr = err
			}
		}
		if runErr != nil {
			return runErr
		}
		if lastSuccess.IsZero() {
			if dayResume == day0 {
				logrus.Warn("ingest: failed to download any reanalysis data")
				return nil
			}
			// Nothing downloaded this run, but an interrupted run left
			// staged days in this window; promote those so the
			// pipeline moves forward instead of wedging on them.
			lastSuccess = dates.AddDays(date, -1)
		}

		lastDay := firstDay + day1 - day0
		if err := ing.promoteWindow(ctx, group, tmpGroup, day0, day1, firstDay, lastDay); err != nil {
			return err
		}
		if err := tmpGroup.ClearAttr(ctx, lastAttr); err != nil {
			return fmt.Errorf("ingest: clearing %s.attrs.%s: %v", tmpGroupName, lastAttr, err)
		}
		if err := group.SetAttr(ctx, lastAttr, lastSuccess.Format(dateLayout)); err != nil {
			return fmt.Errorf("ingest: recording %s.attrs.%s: %v", reanalysisGroupName, lastAttr, err)
		}

		firstDay = lastDay
		day0, dayResume = 0, 0
		day1 = totalDays - firstDay
		if day1 > dates.WindowDays {
			day1 = dates.WindowDays
		}
	}
	return nil
}

// resumePoint returns the first date this run should fetch and its
// slot in the staging window: start (the day after the last committed
// date) unless _tmp holds staged progress from an interrupted run, in
// which case the day after the staged index. tmpLast is _tmp.attrs.last,
// or -1 when absent.
func resumePoint(start time.Time, tmpLast int) (time.Time, int) {
	day0 := dates.DayInWindow(dates.DayIndex(dates.ReanalysisFirstDate, start))
	if tmpLast < 0 {
		return start, day0
	}
	day := tmpLast + 1
	return dates.AddDays(start, day-day0), day
}

// download fetches (or reuses from DownloadDir) the four 6-hourly
// files for day. A 404 on any of them means the day is not on the
// server yet (or at all): download returns (nil, nil) and the caller
// skips the day without writing anything.
func (ing *ReanalysisIngester) download(ctx context.Context, day time.Time) (*[4]string, error) {
	ymd := day.Format("20060102")
	subdir := filepath.Join(ing.DownloadDir, ymd[:6])
	if err := os.MkdirAll(subdir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: creating download directory %s: %v", subdir, err)
	}
	var paths [4]string
	for i, hh := range hhs {
		path := filepath.Join(subdir, fmt.Sprintf("%s.cdas1.t%sz.pgrbh00.grib2", ymd, hh))
		if _, err := os.Stat(path); err == nil {
			paths[i] = path
			continue
		}
		url := ing.reanalysisURL(day, hh)
		logrus.WithField("url", url).Info("ingest: downloading")
		res, err := ing.Fetch.Fetch(ctx, url)
		if err != nil {
			return nil, &UpstreamFailedError{URL: url, Err: err}
		}
		switch res.Outcome {
		case fetch.Ok:
			if err := os.WriteFile(path, res.Body, 0o644); err != nil {
				return nil, fmt.Errorf("ingest: writing %s: %v", path, err)
			}
			paths[i] = path
		case fetch.NotFound:
			return nil, nil
		case fetch.RateLimited:
			return nil, &RateLimitedError{URL: url}
		default:
			return nil, &UpstreamFailedError{URL: url, Err: fmt.Errorf("unexpected outcome %v", res.Outcome)}
		}
	}
	return &paths, nil
}

// upload is the single background worker: it drains jobs strictly in
// order, decoding and staging each day and advancing _tmp.attrs.last
// after each, and reports its terminal error (nil on a clean end of
// stream) on done.
func (ing *ReanalysisIngester) upload(ctx context.Context, tmpGroup *store.Group, jobs <-chan dayJob, done chan<- error) {
	h, w := grid.Reanalysis.Size()
	buf := make([]float32, h*w)
	row := make([]float32, h*w)
	for job := range jobs {
		if err := ing.stageDay(ctx, tmpGroup, job, h, w, buf, row); err != nil {
			done <- err
			return
		}
		if err := tmpGroup.SetAttr(ctx, lastAttr, strconv.Itoa(job.day)); err != nil {
			done <- fmt.Errorf("ingest: recording %s.attrs.%s: %v", tmpGroupName, lastAttr, err)
			return
		}
	}
	done <- nil
}

// stageDay decodes every ANALYSIS/FORECAST variable's four 6-hourly
// samples, reduces them to a daily value, and writes that day's row
// into the variable's slot in the staging ring. Each of the day's four
// files is parsed once; all variables' bands are pulled out of it
// before moving to the next.
func (ing *ReanalysisIngester) stageDay(ctx context.Context, tmpGroup *store.Group, job dayJob, h, w int, buf, row []float32) error {
	vars := catalog.AnalysisForecastVariables()
	tiles := make([]*sparse.DenseArray, len(vars))
	for i := range vars {
		tiles[i] = sparse.ZerosDense(len(hhs), h, w)
	}
	for s, path := range job.paths {
		f, err := decode.OpenGRIB2(path)
		if err != nil {
			return fmt.Errorf("ingest: %v", err)
		}
		for i, v := range vars {
			if err := f.Band(v.ReanalysisBand, grid.Reanalysis, buf); err != nil {
				return fmt.Errorf("ingest: decoding %s band %d from %s: %v", v.Name, v.ReanalysisBand, path, err)
			}
			for j, x := range buf {
				tiles[i].Elements[s*h*w+j] = float64(x)
			}
		}
	}

	for i, v := range vars {
		daily := catalog.Reduce(v.Reducer, tiles[i])
		for j, x := range daily.Elements {
			row[j] = float32(x)
		}
		arr, err := tmpGroup.CreateArray(ctx, v.Name, []int{dates.WindowDays, h, w}, 1)
		if err != nil {
			return fmt.Errorf("ingest: opening staging array for %s: %v", v.Name, err)
		}
		if err := arr.WriteSlab(ctx, job.day, job.day+1, row); err != nil {
			return fmt.Errorf("ingest: staging %s for %s: %v", v.Name, job.date.Format(dateLayout), err)
		}
	}
	return nil
}

// promoteWindow copies every variable's staged rows [day0, day1) out
// of the ring into rows [firstDay, lastDay) of its permanent array,
// growing the array if needed, then resets the staged rows to fill so
// the ring is clean for the next window.
func (ing *ReanalysisIngester) promoteWindow(ctx context.Context, group, tmpGroup *store.Group, day0, day1, firstDay, lastDay int) error {
	h, w := grid.Reanalysis.Size()
	for _, v := range catalog.AnalysisForecastVariables() {
		tmpArr, err := tmpGroup.CreateArray(ctx, v.Name, []int{dates.WindowDays, h, w}, 1)
		if err != nil {
			return fmt.Errorf("ingest: opening staging array for %s: %v", v.Name, err)
		}
		data, err := tmpArr.ReadSlab(ctx, day0, day1)
		if err != nil {
			return fmt.Errorf("ingest: reading staged window for %s: %v", v.Name, err)
		}

		permArr, err := group.CreateArray(ctx, v.Name, []int{lastDay, h, w}, dates.WindowDays)
		if err != nil {
			return fmt.Errorf("ingest: opening permanent array for %s: %v", v.Name, err)
		}
		shape, err := permArr.Shape(ctx)
		if err != nil {
			return fmt.Errorf("ingest: reading shape of permanent array for %s: %v", v.Name, err)
		}
		if shape[0] < lastDay {
			if err := permArr.Resize(ctx, lastDay); err != nil {
				return fmt.Errorf("ingest: growing permanent array for %s: %v", v.Name, err)
			}
		}
		logrus.WithFields(logrus.Fields{"variable": v.Name, "rows": fmt.Sprintf("[%d:%d)", firstDay, lastDay)}).
			Info("ingest: promoting reanalysis window")
		if err := permArr.WriteSlab(ctx, firstDay, lastDay, data); err != nil {
			return fmt.Errorf("ingest: promoting window for %s: %v", v.Name, err)
		}
		if err := tmpArr.Reset(ctx); err != nil {
			return fmt.Errorf("ingest: resetting staging array for %s: %v", v.Name, err)
		}
	}
	return nil
}
