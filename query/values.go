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
package query

import (
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvfunds/data"
	"github.com/penny-vault/pvfunds/store"
)

// Mode selects the aggregation granularity for quarterly data.
type Mode string

const (
	// ModeYear restricts evaluation to Q4 rows, the annual snapshot.
	ModeYear Mode = "year"
	// ModeQuarter evaluates against every reported quarter.
	ModeQuarter Mode = "quarter"
)

// Item is one named output of a query: a display name and the expression
// that produces it.
type Item struct {
	Name string
	Expr string
}

// Column holds one computed output for every evaluated ticker.
type Column map[int]float64

// reportDateColumns are the columns consulted, in order, when an as-of
// date filter is requested.
var reportDateColumns = []string{"disclosed_date", "filing_date"}

// QuarterValues evaluates expressions against the quarterly category, one
// value per ticker per expression. A nil result (with nil error) means no
// expression referenced any known column, so this category contributes
// nothing.
func QuarterValues(cat *store.Category, exprs []string, mode Mode, asof time.Time) ([]Column, error) {
	if cat == nil {
		return nil, nil
	}

	names := cat.Columns.Names()
	if len(ReferencedColumns(exprs, names)) == 0 {
		return nil, nil
	}

	roots := compile(exprs, names)

	out := make([]Column, len(exprs))
	for i := range out {
		out[i] = make(Column, len(cat.Tables))
	}

	for ticker, table := range cat.Tables {
		rows := quarterRows(table, mode, asof)
		evalRows(roots, rows, ticker, out)
	}

	return out, nil
}

// IndicatorValues evaluates expressions against the indicator category.
// Indicator tables hold one snapshot row per ticker, so each expression
// reduces to that row's value.
func IndicatorValues(cat *store.Category, exprs []string) ([]Column, error) {
	if cat == nil {
		return nil, nil
	}

	names := cat.Columns.Names()
	if len(ReferencedColumns(exprs, names)) == 0 {
		return nil, nil
	}

	roots := compile(exprs, names)

	out := make([]Column, len(exprs))
	for i := range out {
		out[i] = make(Column, len(cat.Tables))
	}

	for ticker, table := range cat.Tables {
		rows := table.Rows
		if len(rows) > 1 {
			rows = rows[:1]
		}
		evalRows(roots, rows, ticker, out)
	}

	return out, nil
}

// compile rewrites and parses each expression once. An expression that
// fails to parse evaluates to NaN for every ticker rather than failing
// the whole query.
func compile(exprs []string, names []string) []node {
	roots := make([]node, len(exprs))
	for i, expr := range exprs {
		root, err := parse(RewriteColumns(expr, names))
		if err != nil {
			log.Warn().Err(err).Str("Expression", expr).Msg("could not parse expression")
			continue
		}
		roots[i] = root
	}
	return roots
}

// evalRows evaluates every compiled expression against one ticker's rows.
// A failure is localized: that output becomes NaN for that ticker only.
func evalRows(roots []node, rows []data.Row, ticker int, out []Column) {
	for i, root := range roots {
		if root == nil {
			out[i][ticker] = math.NaN()
			continue
		}
		val, err := evalExpr(root, rows)
		if err != nil {
			log.Debug().Err(err).Int("Ticker", ticker).Msg("expression evaluation failed for ticker")
			val = math.NaN()
		}
		out[i][ticker] = val
	}
}

func quarterRows(table *data.Table, mode Mode, asof time.Time) []data.Row {
	dateCol := ""
	if !asof.IsZero() {
		for _, candidate := range reportDateColumns {
			for _, col := range table.Columns {
				if col == candidate {
					dateCol = candidate
					break
				}
			}
			if dateCol != "" {
				break
			}
		}
	}

	rows := make([]data.Row, 0, len(table.Rows))
	for _, row := range table.Rows {
		if mode == ModeYear {
			if q, ok := row.Int(data.FiscalQuarterColumn); !ok || q != 4 {
				continue
			}
		}
		if dateCol != "" {
			if reported, err := time.Parse("2006-01-02", row[dateCol]); err == nil && reported.After(asof) {
				continue
			}
		}
		rows = append(rows, row)
	}
	return rows
}
