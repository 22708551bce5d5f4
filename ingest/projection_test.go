package ingest

import (
	"strings"
	"testing"

	"github.com/climatearchive/cfsarchive/internal/dates"
)

func TestProjectionYearURL(t *testing.T) {
	ing := &ProjectionIngester{BaseURL: "https://example.test"}

	got := ing.yearURL("tasmax", 2014)
	want := "https://example.test/NEX-GDDP-CMIP6/ACCESS-CM2/historical/r1i1p1f1/tasmax/tasmax_day_ACCESS-CM2_historical_r1i1p1f1_gn_2014.nc"
	if got != want {
		t.Errorf("yearURL(2014) = %q, want %q", got, want)
	}

	// The experiment switches the year after the last historical year.
	if got := ing.yearURL("pr", 2015); !strings.Contains(got, "/ssp245/") {
		t.Errorf("yearURL(2015) = %q, want an ssp245 URL", got)
	}
}

func TestProjectionDayOffsets(t *testing.T) {
	if got := dayOffset(dates.ProjectionFirstYear); got != 0 {
		t.Errorf("dayOffset(first year) = %d, want 0", got)
	}
	// 1950-1953 holds one leap year (1952).
	if got := dayOffset(1954); got != 1461 {
		t.Errorf("dayOffset(1954) = %d, want 1461", got)
	}
	// 151 years from 1950 through 2100: 37 leap years (2100 is not one).
	if got, want := totalProjectionDays(), 151*365+37; got != want {
		t.Errorf("totalProjectionDays = %d, want %d", got, want)
	}
}

func TestProjectionBlockPartition(t *testing.T) {
	// Blocks advance four calendar years at a time from the first
	// year; the final block is a three-year stub ending at 2100.
	var lastFirst, lastLast int
	for year := dates.ProjectionFirstYear; year <= dates.ProjectionLastYear; year += projectionBlockYears {
		lastYear := year + projectionBlockYears - 1
		if lastYear > dates.ProjectionLastYear {
			lastYear = dates.ProjectionLastYear
		}
		if lastFirst != 0 && year != lastLast+1 {
			t.Errorf("gap between block ending %d and block starting %d", lastLast, year)
		}
		lastFirst, lastLast = year, lastYear
	}
	if lastFirst != 2098 || lastLast != 2100 {
		t.Errorf("final block is %d-%d, want 2098-2100", lastFirst, lastLast)
	}
}
