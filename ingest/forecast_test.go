package ingest

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/climatearchive/cfsarchive/catalog"
	"github.com/climatearchive/cfsarchive/internal/dates"
)

func TestForecastURLFormat(t *testing.T) {
	ing := &ForecastIngester{BaseURL: "https://example.test/cgi-bin"}
	today := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	day := time.Date(2024, time.March, 8, 0, 0, 0, 0, time.UTC)

	raw := ing.forecastURL(catalog.FamilyFLX, today, day, "06")
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("forecastURL produced an unparseable URL %q: %v", raw, err)
	}
	if got, want := u.Path, "/cgi-bin/filter_cfs_flx.pl"; got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	q := u.Query()
	if got, want := q.Get("dir"), "/cfs.20240305/00/6hrly_grib_01"; got != want {
		t.Errorf("dir = %q, want %q", got, want)
	}
	if got, want := q.Get("file"), "flxf2024030806.01.2024030500.grb2"; got != want {
		t.Errorf("file = %q, want %q", got, want)
	}
	if q.Get("var_TMAX") != "on" || q.Get("lev_surface") != "on" {
		t.Errorf("expected FLX variable/level flags to be set, got %v", q)
	}

	pgbRaw := ing.forecastURL(catalog.FamilyPGB, today, day, "12")
	pgbU, err := url.Parse(pgbRaw)
	if err != nil {
		t.Fatalf("forecastURL (PGB) produced an unparseable URL %q: %v", pgbRaw, err)
	}
	if got, want := pgbU.Path, "/cgi-bin/filter_cfs_pgb.pl"; got != want {
		t.Errorf("PGB path = %q, want %q", got, want)
	}
	if got, want := pgbU.Query().Get("file"), "pgbf2024030812.01.2024030500.grb2"; got != want {
		t.Errorf("PGB file = %q, want %q", got, want)
	}
	if pgbU.Query().Get("var_RH") != "on" {
		t.Errorf("expected PGB variable flags to be set, got %v", pgbU.Query())
	}
}

// The cycle is idempotent within a UTC day: a second invocation on the
// same day must not perform any work.
func TestAnalysisForecastNoUpdateRequired(t *testing.T) {
	ctx := context.Background()
	s := tempStore(t)
	today := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

	if err := s.Group(analysisForecastGroupName).SetAttr(ctx, updatedAttr, today.Format(dateLayout)); err != nil {
		t.Fatal(err)
	}
	// The ingesters are nil: any attempt to run them would panic, so a
	// clean return proves the updated check short-circuited first.
	if err := AnalysisForecast(ctx, s, nil, nil, today); err != nil {
		t.Errorf("AnalysisForecast on an already-ingested day should be a no-op, got: %v", err)
	}
}

func TestForecastWindowBounds(t *testing.T) {
	today := time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC)
	begin := dates.AddDays(today, -dates.ReanalysisLastDateOffset)
	end := dates.AddDays(today, dates.ForecastHorizon-1)
	if got, want := begin.Format(dateLayout), "2025-07-07"; got != want {
		t.Errorf("forecast begin = %s, want %s", got, want)
	}
	// yesterday + 180 days.
	if got, want := end.Format(dateLayout), "2026-01-05"; got != want {
		t.Errorf("forecast end = %s, want %s", got, want)
	}
	if got := dates.DayIndex(begin, end); got != 182 {
		t.Errorf("forecast window covers %d days, want 182", got)
	}
}
