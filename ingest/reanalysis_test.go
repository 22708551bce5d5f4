package ingest

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/climatearchive/cfsarchive/grid"
	"github.com/climatearchive/cfsarchive/internal/dates"
	"github.com/climatearchive/cfsarchive/store"
)

func tempStore(t *testing.T) *store.Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "cfsarchive-ingest-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	s, err := store.Open(context.Background(), dir)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestReanalysisURLFormat(t *testing.T) {
	ing := &ReanalysisIngester{BaseURL: "https://example.test/6-hourly-by-pressure"}
	date := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	url := ing.reanalysisURL(date, "12")
	want := "https://example.test/6-hourly-by-pressure/2024/202403/20240305/cdas1.t12z.pgrbh00.grib2"
	if url != want {
		t.Errorf("reanalysisURL = %q, want %q", url, want)
	}
}

func TestResumePointFresh(t *testing.T) {
	date, day := resumePoint(dates.ReanalysisFirstDate, -1)
	if !date.Equal(dates.ReanalysisFirstDate) || day != 0 {
		t.Errorf("resumePoint(first, -1) = (%v, %d), want (%v, 0)", date, day, dates.ReanalysisFirstDate)
	}
}

// A crash staged 46 days into the current window without advancing
// reanalysis.attrs.last, so the next run must resume from the staged
// progress, not from "last" alone.
func TestResumePointStagedWindow(t *testing.T) {
	// Ten days into some window: last = window start + 9, start = +10.
	windowStart := dates.AddDays(dates.ReanalysisFirstDate, 2*dates.WindowDays)
	start := dates.AddDays(windowStart, 10)

	date, day := resumePoint(start, 45)
	if day != 46 {
		t.Errorf("resumePoint day = %d, want 46", day)
	}
	want := dates.AddDays(windowStart, 46)
	if !date.Equal(want) {
		t.Errorf("resumePoint date = %v, want %v", date, want)
	}
}

func TestResumePointMidWindowNoStaging(t *testing.T) {
	start := dates.AddDays(dates.ReanalysisFirstDate, dates.WindowDays+100)
	date, day := resumePoint(start, -1)
	if !date.Equal(start) || day != 100 {
		t.Errorf("resumePoint = (%v, %d), want (%v, 100)", date, day, start)
	}
}

func TestRunNothingToDo(t *testing.T) {
	ctx := context.Background()
	ing := &ReanalysisIngester{Store: tempStore(t)}
	group := ing.Store.Group(reanalysisGroupName)
	last := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	if err := group.SetAttr(ctx, lastAttr, last.Format(dateLayout)); err != nil {
		t.Fatal(err)
	}
	// end <= last+1: Run must return without touching the network
	// (Fetch is nil and would panic).
	if err := ing.Run(ctx, dates.AddDays(last, 1)); err != nil {
		t.Errorf("Run with nothing to do should be a no-op, got: %v", err)
	}
}

func TestDownloadUsesCachedFiles(t *testing.T) {
	dir := t.TempDir()
	ing := &ReanalysisIngester{DownloadDir: dir}
	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	if err := os.MkdirAll(dir+"/202403", 0o755); err != nil {
		t.Fatal(err)
	}
	for _, hh := range hhs {
		path := dir + "/202403/20240305.cdas1.t" + hh + "z.pgrbh00.grib2"
		if err := os.WriteFile(path, []byte("grib"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// Fetch is nil: a cache miss would panic.
	paths, err := ing.download(context.Background(), day)
	if err != nil {
		t.Fatal(err)
	}
	if paths == nil {
		t.Fatal("expected cached paths, got nil")
	}
	for i, p := range paths {
		if p == "" {
			t.Errorf("path %d is empty", i)
		}
	}
}

// promoteWindow must copy the staged rows into the permanent array at
// the window's offset, leave unstaged days NaN, and reset the staging
// ring.
func TestPromoteWindow(t *testing.T) {
	ctx := context.Background()
	ing := &ReanalysisIngester{Store: tempStore(t)}
	tmpGroup := ing.Store.Group(tmpGroupName)
	group := ing.Store.Group(reanalysisGroupName)

	h, w := grid.Reanalysis.Size()
	cell := h * w
	varName := "TMAX"

	tmpArr, err := tmpGroup.CreateArray(ctx, varName, []int{dates.WindowDays, h, w}, 1)
	if err != nil {
		t.Fatal(err)
	}
	row := make([]float32, cell)
	for i := range row {
		row[i] = 7.5
	}
	// Stage days 3 and 5 of the window; day 4 stays unstaged (a 404 day).
	for _, day := range []int{3, 5} {
		if err := tmpArr.WriteSlab(ctx, day, day+1, row); err != nil {
			t.Fatal(err)
		}
	}

	if err := ing.promoteWindow(ctx, group, tmpGroup, 3, 6, 3, 6); err != nil {
		t.Fatal(err)
	}

	permArr, err := group.OpenArray(ctx, varName)
	if err != nil {
		t.Fatal(err)
	}
	got, err := permArr.ReadSlab(ctx, 3, 6)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 7.5 || got[2*cell] != 7.5 {
		t.Errorf("promoted values = %v, %v, want 7.5", got[0], got[2*cell])
	}
	if !math.IsNaN(float64(got[cell])) {
		t.Errorf("unstaged day read back %v, want NaN", got[cell])
	}

	// The ring is reset: the staged rows read back as fill.
	staged, err := tmpArr.ReadSlab(ctx, 3, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(float64(staged[0])) {
		t.Errorf("staging ring not reset: read back %v, want NaN", staged[0])
	}
}
