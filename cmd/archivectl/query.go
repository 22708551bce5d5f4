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
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ctessum/sparse"
	"github.com/spf13/cobra"

	"github.com/climatearchive/cfsarchive/query"
	"github.com/climatearchive/cfsarchive/store"
)

var (
	outputPath string
	precision  int
)

func init() {
	RootCmd.AddCommand(newDataCmd("cfs2", "Query the reanalysis/forecast archive.", runCfs2))
	RootCmd.AddCommand(newDataCmd("cmip6", "Query the climate-projection archive.", runCmip6))
	RootCmd.PersistentFlags().StringVarP(&outputPath, "output", "o", "stdout", "output file")
	RootCmd.PersistentFlags().IntVarP(&precision, "precision", "p", 6, "number of decimal places for rounding results (1..6)")
}

type dataFunc func(ctx context.Context, s *store.Store, begin, end time.Time, lat, lon float64, variables []string) (*sparse.DenseArray, error)

// newDataCmd builds one of the two query subcommands; both take the
// same positional arguments and differ only in the engine they call.
func newDataCmd(name, short string, run dataFunc) *cobra.Command {
	return &cobra.Command{
		Use:   name + " begin end latitude longitude var...",
		Short: short,
		Args:  cobra.MinimumNArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			return labelErr(runData(context.Background(), args, run))
		},
	}
}

func runCfs2(ctx context.Context, s *store.Store, begin, end time.Time, lat, lon float64, variables []string) (*sparse.DenseArray, error) {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	e := &query.AnalysisForecastEngine{Store: s}
	return e.Query(ctx, today, begin, end, lat, lon, variables)
}

func runCmip6(ctx context.Context, s *store.Store, begin, end time.Time, lat, lon float64, variables []string) (*sparse.DenseArray, error) {
	e := &query.ProjectionEngine{Store: s}
	return e.Query(ctx, begin, end, lat, lon, variables)
}

func runData(ctx context.Context, args []string, run dataFunc) error {
	begin, err := time.Parse("2006-01-02", args[0])
	if err != nil {
		return fmt.Errorf("parsing first date: %v", err)
	}
	end, err := time.Parse("2006-01-02", args[1])
	if err != nil {
		return fmt.Errorf("parsing last date: %v", err)
	}
	lat, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("parsing latitude: %v", err)
	}
	lon, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("parsing longitude: %v", err)
	}
	variables := args[4:]
	if precision < 1 || precision > 6 {
		return fmt.Errorf("precision must be between 1 and 6, got %d", precision)
	}

	s, err := openStore(ctx)
	if err != nil {
		return err
	}
	data, err := run(ctx, s, begin, end, lat, lon, variables)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if outputPath != "stdout" {
		if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
			return fmt.Errorf("creating output directory: %v", err)
		}
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %v", err)
		}
		defer f.Close()
		out = f
	}
	return writeCSV(out, begin, variables, data)
}

// writeCSV renders the (variables, days) matrix one dated row per day:
// a DATE column followed by one column per requested variable, NaN
// rendered as NA.
func writeCSV(out io.Writer, begin time.Time, variables []string, data *sparse.DenseArray) error {
	w := bufio.NewWriter(out)
	w.WriteString("DATE")
	for _, v := range variables {
		w.WriteByte(',')
		w.WriteString(v)
	}
	w.WriteByte('\n')

	days := data.Shape[1]
	date := begin
	for day := 0; day < days; day++ {
		w.WriteString(date.Format("2006-01-02"))
		date = date.AddDate(0, 0, 1)
		for v := range variables {
			w.WriteByte(',')
			w.WriteString(formatFloat(data.Elements[v*days+day], precision))
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}

// formatFloat renders v at the given precision with trailing zeros
// (and a bare trailing point) trimmed; NaN renders as NA.
func formatFloat(v float64, precision int) string {
	if math.IsNaN(v) {
		return "NA"
	}
	s := strconv.FormatFloat(v, 'f', precision, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}
