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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quarterRow(year, quarter int, sales string) Row {
	return Row{
		FiscalYearColumn:    strconv.Itoa(year),
		FiscalQuarterColumn: strconv.Itoa(quarter),
		"net_sales":         sales,
	}
}

func TestRowFloat(t *testing.T) {
	row := Row{"net_sales": "1234.5", "company_name_en": "ACME"}

	assert.Equal(t, 1234.5, row.Float("net_sales"))
	assert.True(t, math.IsNaN(row.Float("company_name_en")), "text cell must parse to NaN")
	assert.True(t, math.IsNaN(row.Float("missing")), "missing cell must parse to NaN")
}

func TestRowInt(t *testing.T) {
	row := Row{FiscalQuarterColumn: "4", "net_sales": "12.5"}

	q, ok := row.Int(FiscalQuarterColumn)
	require.True(t, ok)
	assert.Equal(t, 4, q)

	_, ok = row.Int("net_sales")
	assert.False(t, ok, "fractional cell is not an int")

	_, ok = row.Int("missing")
	assert.False(t, ok)
}

func TestTableConcatExtendsColumns(t *testing.T) {
	left := NewTable([]string{TickerColumn, "a"})
	left.Append(Row{TickerColumn: "1301", "a": "1"})

	right := NewTable([]string{TickerColumn, "b"})
	right.Append(Row{TickerColumn: "1301", "b": "2"})

	left.Concat(right)

	assert.Equal(t, []string{TickerColumn, "a", "b"}, left.Columns)
	require.Equal(t, 2, left.Len())
	assert.Equal(t, "2", left.Rows[1]["b"])
}

func TestTableConcatNil(t *testing.T) {
	table := NewTable([]string{TickerColumn})
	table.Concat(nil)
	assert.Equal(t, 0, table.Len())
}

func TestSortQuarters(t *testing.T) {
	table := NewTable([]string{FiscalYearColumn, FiscalQuarterColumn, "net_sales"})
	table.Append(quarterRow(2019, 1, "30"))
	table.Append(quarterRow(2018, 4, "20"))
	table.Append(quarterRow(2018, 1, "10"))

	table.SortQuarters()

	require.Equal(t, 3, table.Len())
	assert.Equal(t, "10", table.Rows[0]["net_sales"])
	assert.Equal(t, "20", table.Rows[1]["net_sales"])
	assert.Equal(t, "30", table.Rows[2]["net_sales"])
}

func TestDedupeQuartersKeepsLast(t *testing.T) {
	table := NewTable([]string{FiscalYearColumn, FiscalQuarterColumn, "net_sales"})
	table.Append(quarterRow(2018, 4, "original"))
	table.Append(quarterRow(2018, 4, "restated"))
	table.Append(quarterRow(2019, 1, "next"))

	table.SortQuarters()
	table.DedupeQuarters()

	require.Equal(t, 2, table.Len())
	assert.Equal(t, "restated", table.Rows[0]["net_sales"], "last arrival for a duplicated period must win")
	assert.Equal(t, "next", table.Rows[1]["net_sales"])
}

func TestDedupeQuartersNoDuplicates(t *testing.T) {
	table := NewTable([]string{FiscalYearColumn, FiscalQuarterColumn, "net_sales"})
	table.Append(quarterRow(2018, 3, "a"))
	table.Append(quarterRow(2018, 4, "b"))

	table.DedupeQuarters()

	assert.Equal(t, 2, table.Len())
}

func TestNilTableLen(t *testing.T) {
	var table *Table
	assert.Equal(t, 0, table.Len())
}
