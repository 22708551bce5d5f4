package catalog

import (
	"math"
	"testing"

	"github.com/ctessum/sparse"
)

func tile(vals ...float64) *sparse.DenseArray {
	n := len(vals)
	out := sparse.ZerosDense(n, 1, 1)
	copy(out.Elements, vals)
	return out
}

func TestReduce(t *testing.T) {
	tests := []struct {
		r    Reducer
		vals []float64
		want float64
	}{
		{Mean, []float64{1, 2, 3, 4}, 2.5},
		{Sum, []float64{1, 2, 3, 4}, 10},
		{Min, []float64{4, 1, 3, 2}, 1},
		{Max, []float64{4, 1, 3, 2}, 4},
	}
	for _, tt := range tests {
		got := Reduce(tt.r, tile(tt.vals...))
		if math.Abs(got.Elements[0]-tt.want) > 1e-9 {
			t.Errorf("Reduce(%v, %v) = %v, want %v", tt.r, tt.vals, got.Elements[0], tt.want)
		}
	}
}

func TestTMINSharesTMAXBand(t *testing.T) {
	tmax, err := AnalysisForecastVariable("TMAX")
	if err != nil {
		t.Fatal(err)
	}
	tmin, err := AnalysisForecastVariable("TMIN")
	if err != nil {
		t.Fatal(err)
	}
	if tmin.ReanalysisBand != tmax.ReanalysisBand {
		t.Errorf("expected TMIN's reanalysis band (%d) to match TMAX's (%d), preserving the upstream catalog as-is",
			tmin.ReanalysisBand, tmax.ReanalysisBand)
	}
}

func TestUnknownVariable(t *testing.T) {
	if _, err := AnalysisForecastVariable("NOPE"); err == nil {
		t.Fatal("expected an error for an unknown variable")
	}
}

func TestIsProjectionVariable(t *testing.T) {
	if !IsProjectionVariable("tasmax") {
		t.Error("expected tasmax to be a known projection variable")
	}
	if IsProjectionVariable("nope") {
		t.Error("did not expect nope to be a known projection variable")
	}
}
