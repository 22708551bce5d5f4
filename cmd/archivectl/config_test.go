package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archivectl.toml")
	contents := `
Root = "/tmp/cfsarchive"

[Reanalysis]
BaseURL = "https://example.test/6-hourly-by-pressure"

[Fetch]
TimeoutSeconds = 60
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := readConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "/tmp/cfsarchive" {
		t.Errorf("Root = %q, want /tmp/cfsarchive", cfg.Root)
	}
	if cfg.Reanalysis.BaseURL != "https://example.test/6-hourly-by-pressure" {
		t.Errorf("Reanalysis.BaseURL = %q, want the configured URL", cfg.Reanalysis.BaseURL)
	}
	// Base URLs the file does not set keep their defaults.
	if cfg.Forecast.BaseURL == "" || cfg.Projection.BaseURL == "" {
		t.Error("expected default base URLs for sections the file omits")
	}
	if got, want := cfg.fetchTimeout().Seconds(), 60.0; got != want {
		t.Errorf("fetchTimeout = %v, want %v", got, want)
	}
}

// A missing file is fine: the root can come from -d/--data and every
// other setting has a default.
func TestReadConfigFileMissing(t *testing.T) {
	cfg, err := readConfigFile(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Root != "" {
		t.Errorf("Root = %q, want empty", cfg.Root)
	}
	if cfg.Forecast.BaseURL == "" {
		t.Error("expected default base URLs")
	}
}

func TestFormatFloat(t *testing.T) {
	nan := 0.0
	nan /= nan
	tests := []struct {
		v         float64
		precision int
		want      string
	}{
		{nan, 6, "NA"},
		{1.5, 6, "1.5"},
		{1.0, 6, "1"},
		{1.23456789, 3, "1.235"},
		{-0.1000001, 2, "-0.1"},
		{273.149999, 2, "273.15"},
	}
	for _, tt := range tests {
		if got := formatFloat(tt.v, tt.precision); got != tt.want {
			t.Errorf("formatFloat(%v, %d) = %q, want %q", tt.v, tt.precision, got, tt.want)
		}
	}
}
