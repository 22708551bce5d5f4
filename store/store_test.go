package store

import (
	"context"
	"math"
	"testing"
)

func TestAttrs(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := s.Group("analysis_forecast/reanalysis")

	if _, ok, err := g.Attr(ctx, "last"); err != nil || ok {
		t.Fatalf("expected no 'last' attr yet, got ok=%v err=%v", ok, err)
	}
	if err := g.SetAttr(ctx, "last", "2024-12-31"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := g.Attr(ctx, "last")
	if err != nil || !ok || v != "2024-12-31" {
		t.Fatalf("got (%q, %v, %v), want (2024-12-31, true, nil)", v, ok, err)
	}
	if err := g.ClearAttr(ctx, "last"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := g.Attr(ctx, "last"); ok {
		t.Fatal("expected 'last' to be cleared")
	}
}

func TestArrayWriteReadSlab(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := s.Group("projection")
	arr, err := g.CreateArray(ctx, "tasmax", []int{10, 2, 2}, 4)
	if err != nil {
		t.Fatal(err)
	}

	// Rows 2..5 span two chunks (chunk 0 = rows[0:4), chunk 1 = rows[4:8)).
	data := make([]float32, 3*4)
	for i := range data {
		data[i] = float32(i + 1)
	}
	if err := arr.WriteSlab(ctx, 2, 5, data); err != nil {
		t.Fatal(err)
	}

	got, err := arr.ReadSlab(ctx, 2, 5)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if v != data[i] {
			t.Errorf("ReadSlab[%d] = %v, want %v", i, v, data[i])
		}
	}

	// Unwritten rows should read back as NaN.
	untouched, err := arr.ReadSlab(ctx, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range untouched {
		if !math.IsNaN(float64(v)) {
			t.Errorf("expected NaN for never-written row, got %v", v)
		}
	}

	shape, err := arr.Shape(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if shape[0] != 10 {
		t.Fatalf("got shape %v, want dim0=10", shape)
	}
	if err := arr.Resize(ctx, 20); err != nil {
		t.Fatal(err)
	}
	shape, _ = arr.Shape(ctx)
	if shape[0] != 20 {
		t.Fatalf("after Resize, got shape %v, want dim0=20", shape)
	}
}

func TestChildren(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := s.Group("root")
	if _, err := g.CreateArray(ctx, "TMAX", []int{1, 1, 1}, 0); err != nil {
		t.Fatal(err)
	}
	if err := g.SetAttr(ctx, "updated", "2026-07-31"); err != nil {
		t.Fatal(err)
	}
	children, err := g.Children(ctx)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, c := range children {
		if c == "TMAX" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected TMAX among children, got %v", children)
	}
}

func TestArrayAttrs(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	arr, err := s.Group("projection").CreateArray(ctx, "tasmax", []int{4, 1, 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := arr.Attr(ctx, "years"); err != nil || ok {
		t.Fatalf("expected no 'years' attr yet, got ok=%v err=%v", ok, err)
	}
	if err := arr.SetAttr(ctx, "years", "1950,1953"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := arr.Attr(ctx, "years")
	if err != nil || !ok || v != "1950,1953" {
		t.Fatalf("got (%q, %v, %v), want (1950,1953, true, nil)", v, ok, err)
	}
}

func TestArrayReset(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	arr, err := s.Group("g").CreateArray(ctx, "v", []int{4, 1, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err := arr.WriteSlab(ctx, 0, 4, []float32{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if err := arr.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	got, err := arr.ReadSlab(ctx, 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range got {
		if !math.IsNaN(float64(v)) {
			t.Errorf("after Reset, value[%d] = %v, want NaN", i, v)
		}
	}
	shape, err := arr.Shape(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if shape[0] != 4 {
		t.Errorf("Reset changed shape to %v, want dim0=4", shape)
	}
}

func TestArrayIdempotentCreate(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	g := s.Group("g")
	a1, err := g.CreateArray(ctx, "v", []int{5, 1, 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := a1.WriteSlab(ctx, 0, 1, []float32{7}); err != nil {
		t.Fatal(err)
	}
	// Re-create with a different shape: should be a no-op, keeping the
	// original metadata and data.
	a2, err := g.CreateArray(ctx, "v", []int{99, 1, 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	shape, err := a2.Shape(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if shape[0] != 5 {
		t.Fatalf("expected idempotent create to preserve shape 5, got %d", shape[0])
	}
}
