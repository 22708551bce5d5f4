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

// Command archivectl drives the ingestion and query operations of the
// cfsarchive climate data archive.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/climatearchive/cfsarchive/store"
)

var (
	configFile string
	dataRoot   string

	// config holds the global configuration data, populated by
	// RootCmd's PersistentPreRunE before any subcommand runs.
	config *Config
)

// RootCmd is the main command.
var RootCmd = &cobra.Command{
	Use:   "archivectl",
	Short: "Ingests and queries the CFSv2 reanalysis/forecast and CMIP6 projection archive.",
	Long: `archivectl drives the ingestion pipelines that populate the climate
archive (reanalysis, forecast, and projection) and answers point
queries against it. Use the subcommands below to choose an operation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return labelErr(startup(configFile))
	},
}

func startup(path string) error {
	var err error
	config, err = readConfigFile(path)
	if err != nil {
		return err
	}
	if dataRoot != "" {
		config.Root = dataRoot
	}
	return nil
}

// openStore opens the configured archive root, failing with a usage
// hint when none was given. list-vars is the only subcommand that
// works without one.
func openStore(ctx context.Context) (*store.Store, error) {
	if config.Root == "" {
		return nil, fmt.Errorf("no archive root: set -d/--data or root in %s", configFile)
	}
	return store.Open(ctx, config.Root)
}

func labelErr(err error) error {
	if err != nil {
		return fmt.Errorf("archivectl: %v", err)
	}
	return nil
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "./archivectl.toml", "configuration file location")
	RootCmd.PersistentFlags().StringVarP(&dataRoot, "data", "d", "", "archive store: local path or s3://bucket[/prefix]")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
