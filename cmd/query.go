// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvfunds/query"
	"github.com/penny-vault/pvfunds/store"
)

var (
	queryMode string
	queryAsof string
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query name=expression [name=expression...]",
	Short: "Evaluate metric expressions across all tickers",
	Long: `The query sub-command evaluates one or more named metric expressions
against the data library and prints a table with one row per ticker.

Expressions reference data columns by name and may combine them with
arithmetic, e.g.:

    pvfunds query "roe=net_income/net_assets*100" "growth=cagr(net_sales, n=5)"

An output is answered from indicator data when possible and falls back to
quarterly statements otherwise.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		items := make([]query.Item, 0, len(args))
		for _, arg := range args {
			name, expr, found := strings.Cut(arg, "=")
			if !found || name == "" || expr == "" {
				log.Fatal().Str("Arg", arg).Msg("arguments must have the form name=expression")
			}
			items = append(items, query.Item{Name: name, Expr: expr})
		}

		var asof time.Time
		if queryAsof != "" {
			var err error
			if asof, err = time.Parse("2006-01-02", queryAsof); err != nil {
				log.Fatal().Err(err).Str("Asof", queryAsof).Msg("invalid as-of date, expected YYYY-MM-DD")
			}
		}

		mode := query.Mode(queryMode)
		if mode != query.ModeYear && mode != query.ModeQuarter {
			log.Fatal().Str("Mode", queryMode).Msg("mode must be 'year' or 'quarter'")
		}

		myStore, err := store.Open(viper.GetString("data.dir"), true, true)
		if err != nil {
			log.Fatal().Err(err).Msg("could not open data library")
		}
		if myStore.Company == nil {
			log.Fatal().Msg("no company data is loaded, run 'pvfunds fetch --company' first")
		}

		engine := query.NewEngine(myStore)
		frame, err := engine.Values(items, mode, asof)
		if err != nil {
			log.Fatal().Err(err).Msg("query failed")
		}

		renderFrame(myStore, frame)
	},
}

func renderFrame(myStore *store.Store, frame *query.Frame) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	header := table.Row{"ticker", "company"}
	for _, item := range frame.Items {
		header = append(header, item.Name)
	}
	t.AppendHeader(header)

	for _, ticker := range frame.Tickers {
		row := table.Row{ticker, myStore.Company.Name(ticker)}
		for _, col := range frame.Columns {
			row = append(row, formatCell(col, ticker))
		}
		t.AppendRow(row)
	}

	t.Render()
	fmt.Printf("(%d tickers)\n", len(frame.Tickers))
}

func formatCell(col query.Column, ticker int) string {
	val, ok := col[ticker]
	if !ok || math.IsNaN(val) {
		return "-"
	}
	return fmt.Sprintf("%.2f", val)
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryMode, "mode", "year", "aggregation granularity: year (Q4 snapshots) or quarter")
	queryCmd.Flags().StringVar(&queryAsof, "asof", "", "only use data reported on or before this date (YYYY-MM-DD)")
}
