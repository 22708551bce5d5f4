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
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds the settings archivectl reads from its TOML file: where
// the archive lives and where each pipeline's source files come from.
// The archive root can also be given (or overridden) with the
// -d/--data flag; AWS credentials always come from the environment.
type Config struct {
	// Root is the archive's store root: a local directory path, or an
	// "s3://bucket/prefix" URI for an S3-compatible backend.
	Root string

	Reanalysis struct {
		BaseURL string
	}
	Forecast struct {
		BaseURL string
	}
	Projection struct {
		BaseURL string
	}
	Fetch struct {
		TimeoutSeconds int
	}
}

func (c *Config) fetchTimeout() time.Duration {
	if c.Fetch.TimeoutSeconds <= 0 {
		return 180 * time.Second
	}
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

func defaultConfig() *Config {
	c := &Config{}
	c.Reanalysis.BaseURL = "https://www.ncei.noaa.gov/data/climate-forecast-system/access/operational-analysis/6-hourly-by-pressure"
	c.Forecast.BaseURL = "https://nomads.ncep.noaa.gov/cgi-bin"
	c.Projection.BaseURL = "https://nex-gddp-cmip6.s3-us-west-2.amazonaws.com"
	return c
}

// readConfigFile reads and decodes the TOML configuration file at
// path. A missing file is not an error: every setting it carries has a
// default or a flag, so the file is only needed to change them. A base
// URL the file leaves empty keeps its default.
func readConfigFile(path string) (*Config, error) {
	config := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("reading configuration file %s: %v", path, err)
	}
	if _, err := toml.Decode(string(b), config); err != nil {
		return nil, fmt.Errorf("parsing configuration file %s: %v", path, err)
	}
	defaults := defaultConfig()
	if config.Reanalysis.BaseURL == "" {
		config.Reanalysis.BaseURL = defaults.Reanalysis.BaseURL
	}
	if config.Forecast.BaseURL == "" {
		config.Forecast.BaseURL = defaults.Forecast.BaseURL
	}
	if config.Projection.BaseURL == "" {
		config.Projection.BaseURL = defaults.Projection.BaseURL
	}
	return config, nil
}
