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

	"github.com/spf13/cobra"

	"github.com/climatearchive/cfsarchive/catalog"
)

func init() {
	RootCmd.AddCommand(listVarsCmd)
}

var listVarsCmd = &cobra.Command{
	Use:   "list-vars",
	Short: "List every ANALYSIS/FORECAST and PROJECTION variable the archive knows about.",
	RunE: func(cmd *cobra.Command, args []string) error {
		printVars()
		return nil
	},
}

func printVars() {
	fmt.Println("ANALYSIS/FORECAST variables:")
	for _, v := range catalog.AnalysisForecastVariables() {
		fmt.Printf("  %-10s family=%-3s reducer=%s\n", v.Name, v.Family, v.Reducer)
	}
	fmt.Println()
	fmt.Println("PROJECTION variables:")
	for _, name := range catalog.ProjectionVariables() {
		fmt.Printf("  %s\n", name)
	}
}
