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
package data

import (
	"math"
	"sort"
	"strconv"
)

// Well-known column names shared by every category.
const (
	TickerColumn        = "ticker"
	FiscalYearColumn    = "fiscal_year"
	FiscalQuarterColumn = "fiscal_quarter"
	DayColumn           = "day"
)

// Row is a single record as returned by the API: raw cell text keyed by
// column name. An empty string means the value is missing.
type Row map[string]string

// Float returns the cell parsed as a float64, or NaN when the cell is
// missing or not numeric.
func (row Row) Float(column string) float64 {
	raw, ok := row[column]
	if !ok || raw == "" {
		return math.NaN()
	}

	val, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}

	return val
}

// Int returns the cell parsed as an int. The second return value is false
// when the cell is missing or not an integer.
func (row Row) Int(column string) (int, bool) {
	raw, ok := row[column]
	if !ok || raw == "" {
		return 0, false
	}

	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return val, true
}

// Table is an ordered collection of rows together with the column header
// used when the table is written to disk.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewTable creates an empty table with the given column header.
func NewTable(columns []string) *Table {
	return &Table{
		Columns: columns,
		Rows:    make([]Row, 0),
	}
}

// Append adds a row to the end of the table.
func (table *Table) Append(row Row) {
	table.Rows = append(table.Rows, row)
}

// Len returns the number of rows in the table.
func (table *Table) Len() int {
	if table == nil {
		return 0
	}
	return len(table.Rows)
}

// Concat appends all rows of other to the table, extending the column
// header with any columns not seen before. Column order of the receiver is
// preserved.
func (table *Table) Concat(other *Table) {
	if other == nil {
		return
	}

	known := make(map[string]bool, len(table.Columns))
	for _, col := range table.Columns {
		known[col] = true
	}

	for _, col := range other.Columns {
		if !known[col] {
			table.Columns = append(table.Columns, col)
			known[col] = true
		}
	}

	table.Rows = append(table.Rows, other.Rows...)
}

// SortQuarters stably sorts the rows by (fiscal_year, fiscal_quarter).
// Rows without a parseable period sort first; arrival order is preserved
// within equal keys.
func (table *Table) SortQuarters() {
	sort.SliceStable(table.Rows, func(i, j int) bool {
		yi, _ := table.Rows[i].Int(FiscalYearColumn)
		yj, _ := table.Rows[j].Int(FiscalYearColumn)
		if yi != yj {
			return yi < yj
		}
		qi, _ := table.Rows[i].Int(FiscalQuarterColumn)
		qj, _ := table.Rows[j].Int(FiscalQuarterColumn)
		return qi < qj
	})
}

// DedupeQuarters removes rows sharing the same (fiscal_year,
// fiscal_quarter), keeping the last-arrived row of each period. Upstream
// occasionally returns duplicate periods and there is no way to tell which
// copy is authoritative; keeping the last one matches historical behavior.
// The table must be sorted with SortQuarters first.
func (table *Table) DedupeQuarters() {
	if len(table.Rows) < 2 {
		return
	}

	deduped := make([]Row, 0, len(table.Rows))
	for i, row := range table.Rows {
		if i+1 < len(table.Rows) {
			next := table.Rows[i+1]
			if row[FiscalYearColumn] == next[FiscalYearColumn] &&
				row[FiscalQuarterColumn] == next[FiscalQuarterColumn] {
				continue
			}
		}
		deduped = append(deduped, row)
	}

	table.Rows = deduped
}
