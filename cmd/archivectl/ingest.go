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

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/climatearchive/cfsarchive/fetch"
	"github.com/climatearchive/cfsarchive/ingest"
)

var downloadDir string

func init() {
	RootCmd.AddCommand(ingestCmd)
	ingestCmd.PersistentFlags().StringVar(&downloadDir, "download-dir", "", "optional local path for persisted downloaded files")
	ingestCmd.AddCommand(ingestAnalysisForecastCmd)
	ingestCmd.AddCommand(ingestProjectionCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run an ingestion pipeline.",
}

var ingestAnalysisForecastCmd = &cobra.Command{
	Use:   "analysis-forecast",
	Short: "Catch up the reanalysis archive and ingest the latest forecast cycle.",
	Long: "analysis-forecast downloads and stages every reanalysis day not yet recorded " +
		"in the archive, then downloads and overwrites the current forecast cycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(runIngestAnalysisForecast(context.Background()))
	},
}

var ingestProjectionCmd = &cobra.Command{
	Use:   "projection",
	Short: "Ingest every not-yet-downloaded projection year.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(runIngestProjection(context.Background()))
	},
}

// resolveDownloadDir returns the directory downloaded files go to:
// the --download-dir flag (persisted across runs, already-present
// files reused), or a scratch directory discarded when the run ends.
func resolveDownloadDir() (string, func(), error) {
	if downloadDir != "" {
		if err := os.MkdirAll(downloadDir, 0o755); err != nil {
			return "", nil, fmt.Errorf("creating download directory %s: %v", downloadDir, err)
		}
		return downloadDir, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "archivectl-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating scratch download directory: %v", err)
	}
	return dir, func() { os.RemoveAll(dir) }, nil
}

func runIngestAnalysisForecast(ctx context.Context) error {
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	dir, cleanup, err := resolveDownloadDir()
	if err != nil {
		return err
	}
	defer cleanup()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	reanalysis := &ingest.ReanalysisIngester{
		Store:       s,
		Fetch:       fetch.New(config.fetchTimeout(), 0),
		BaseURL:     config.Reanalysis.BaseURL,
		DownloadDir: filepath.Join(dir, "reanalysis"),
	}
	forecast := &ingest.ForecastIngester{
		Store: s,
		// NOMADS throttles aggressive clients; keep at least a third
		// of a second between requests to its CGI filter.
		Fetch:       fetch.New(config.fetchTimeout(), time.Second/3),
		BaseURL:     config.Forecast.BaseURL,
		DownloadDir: filepath.Join(dir, "forecast", today.Format("2006-01-02")),
	}
	logrus.WithField("date", today.Format("2006-01-02")).Info("archivectl: running analysis/forecast ingestion")
	return ingest.AnalysisForecast(ctx, s, reanalysis, forecast, today)
}

func runIngestProjection(ctx context.Context) error {
	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	dir, cleanup, err := resolveDownloadDir()
	if err != nil {
		return err
	}
	defer cleanup()

	projection := &ingest.ProjectionIngester{
		Store:       s,
		Fetch:       fetch.New(config.fetchTimeout(), 0),
		BaseURL:     config.Projection.BaseURL,
		DownloadDir: filepath.Join(dir, "projection"),
	}
	return projection.Run(ctx)
}
