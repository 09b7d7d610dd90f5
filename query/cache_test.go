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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-vault/pvfunds/data"
	"github.com/penny-vault/pvfunds/store"
)

func testStore(withIndicator bool, indicatorPER string) *store.Store {
	quarterTable := data.NewTable([]string{data.TickerColumn, data.FiscalYearColumn, data.FiscalQuarterColumn, "net_sales", "per"})
	quarterTable.Append(data.Row{
		data.TickerColumn:        "1301",
		data.FiscalYearColumn:    "2019",
		data.FiscalQuarterColumn: "4",
		"net_sales":              "100",
		"per":                    "8",
	})

	myStore := &store.Store{
		Quarter: &store.Category{
			Name: store.CategoryQuarter,
			Columns: data.ColumnDict{
				"net_sales": {Name: "Net sales", Unit: "million JPY"},
				"per":       {Name: "PER", Unit: "times"},
			},
			Tables: map[int]*data.Table{1301: quarterTable},
		},
	}

	if withIndicator {
		indicatorTable := data.NewTable([]string{data.TickerColumn, data.DayColumn, "per"})
		indicatorTable.Append(data.Row{
			data.TickerColumn: "1301",
			data.DayColumn:    "2024-05-31",
			"per":             indicatorPER,
		})

		myStore.Indicator = &store.Category{
			Name: store.CategoryIndicator,
			Columns: data.ColumnDict{
				"per": {Name: "PER", Unit: "times"},
			},
			Tables: map[int]*data.Table{1301: indicatorTable},
		}
	}

	return myStore
}

func TestEngineIndicatorWins(t *testing.T) {
	engine := NewEngine(testStore(true, "15"))

	frame, err := engine.Values([]Item{{Name: "per", Expr: "per"}}, ModeYear, time.Time{})
	require.NoError(t, err)

	require.Len(t, frame.Columns, 1)
	assert.Equal(t, 15.0, frame.Columns[0][1301], "indicator value takes precedence over quarterly")
	assert.Equal(t, []int{1301}, frame.Tickers)
}

func TestEngineFallsBackToQuarter(t *testing.T) {
	// indicator category exists but its per column is wholly undefined
	engine := NewEngine(testStore(true, ""))

	frame, err := engine.Values([]Item{{Name: "per", Expr: "per"}}, ModeYear, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 8.0, frame.Columns[0][1301], "wholly undefined indicator column must fall back to quarterly")
}

func TestEngineNoIndicatorCategory(t *testing.T) {
	engine := NewEngine(testStore(false, ""))

	frame, err := engine.Values([]Item{{Name: "per", Expr: "per"}}, ModeYear, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 8.0, frame.Columns[0][1301])
}

func TestEngineQuarterOnlyColumn(t *testing.T) {
	engine := NewEngine(testStore(true, "15"))

	frame, err := engine.Values([]Item{{Name: "sales", Expr: "net_sales"}}, ModeYear, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, 100.0, frame.Columns[0][1301])
}

func TestEngineMemoizesByExpression(t *testing.T) {
	engine := NewEngine(testStore(true, "15"))

	frame, err := engine.Values([]Item{{Name: "a", Expr: "per"}}, ModeYear, time.Time{})
	require.NoError(t, err)

	// mutate the store; a repeated expression must come from the cache
	engine.store.Indicator.Tables[1301].Rows[0]["per"] = "99"

	frame2, err := engine.Values([]Item{{Name: "b", Expr: "per"}}, ModeYear, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, frame.Columns[0][1301], frame2.Columns[0][1301], "same expression string must be served from cache")
}

func TestEngineDeduplicatesIdenticalExpressions(t *testing.T) {
	engine := NewEngine(testStore(true, "15"))

	frame, err := engine.Values([]Item{
		{Name: "a", Expr: "per"},
		{Name: "b", Expr: "per"},
	}, ModeYear, time.Time{})
	require.NoError(t, err)

	require.Len(t, frame.Columns, 2)
	assert.Equal(t, 15.0, frame.Columns[0][1301])
	assert.Equal(t, 15.0, frame.Columns[1][1301])
}

func TestEngineUnknownExpression(t *testing.T) {
	engine := NewEngine(testStore(true, "15"))

	frame, err := engine.Values([]Item{{Name: "x", Expr: "unknown_column"}}, ModeYear, time.Time{})
	require.NoError(t, err)

	_, ok := frame.Columns[0][1301]
	assert.False(t, ok, "expression referencing no known column yields an empty column")
}

func TestQuarterValuesYearModeUsesQ4Only(t *testing.T) {
	table := data.NewTable([]string{data.TickerColumn, data.FiscalYearColumn, data.FiscalQuarterColumn, "net_sales"})
	for _, row := range []data.Row{
		{data.TickerColumn: "1301", data.FiscalYearColumn: "2019", data.FiscalQuarterColumn: "3", "net_sales": "75"},
		{data.TickerColumn: "1301", data.FiscalYearColumn: "2019", data.FiscalQuarterColumn: "4", "net_sales": "100"},
		{data.TickerColumn: "1301", data.FiscalYearColumn: "2020", data.FiscalQuarterColumn: "1", "net_sales": "25"},
	} {
		table.Append(row)
	}

	category := &store.Category{
		Name:    store.CategoryQuarter,
		Columns: data.ColumnDict{"net_sales": {Name: "Net sales", Unit: "million JPY"}},
		Tables:  map[int]*data.Table{1301: table},
	}

	yearCols, err := QuarterValues(category, []string{"net_sales"}, ModeYear, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 100.0, yearCols[0][1301], "year mode must use the Q4 snapshot")

	quarterCols, err := QuarterValues(category, []string{"net_sales"}, ModeQuarter, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 25.0, quarterCols[0][1301], "quarter mode must use the latest quarter")
}

func TestQuarterValuesAsofFiltersUnreportedRows(t *testing.T) {
	table := data.NewTable([]string{data.TickerColumn, data.FiscalYearColumn, data.FiscalQuarterColumn, "disclosed_date", "net_sales"})
	for _, row := range []data.Row{
		{data.TickerColumn: "1301", data.FiscalYearColumn: "2018", data.FiscalQuarterColumn: "4", "disclosed_date": "2019-02-10", "net_sales": "80"},
		{data.TickerColumn: "1301", data.FiscalYearColumn: "2019", data.FiscalQuarterColumn: "4", "disclosed_date": "2020-02-10", "net_sales": "100"},
	} {
		table.Append(row)
	}

	category := &store.Category{
		Name: store.CategoryQuarter,
		Columns: data.ColumnDict{
			"net_sales":      {Name: "Net sales", Unit: "million JPY"},
			"disclosed_date": {Name: "Disclosed", Unit: ""},
		},
		Tables: map[int]*data.Table{1301: table},
	}

	asof := time.Date(2019, 6, 30, 0, 0, 0, 0, time.UTC)
	cols, err := QuarterValues(category, []string{"net_sales"}, ModeYear, asof)
	require.NoError(t, err)
	assert.Equal(t, 80.0, cols[0][1301], "rows disclosed after the as-of date must be excluded")
}

func TestQuarterValuesNoReferencedColumns(t *testing.T) {
	category := &store.Category{
		Name:    store.CategoryQuarter,
		Columns: data.ColumnDict{"net_sales": {Name: "Net sales", Unit: "million JPY"}},
		Tables:  map[int]*data.Table{},
	}

	cols, err := QuarterValues(category, []string{"1+1"}, ModeYear, time.Time{})
	require.NoError(t, err)
	assert.Nil(t, cols, "no referenced columns means the category contributes nothing")
}

func TestIndicatorValuesLocalizedFailure(t *testing.T) {
	good := data.NewTable([]string{data.TickerColumn, data.DayColumn, "per"})
	good.Append(data.Row{data.TickerColumn: "1301", data.DayColumn: "2024-05-31", "per": "15"})

	bad := data.NewTable([]string{data.TickerColumn, data.DayColumn, "per"})
	bad.Append(data.Row{data.TickerColumn: "1332", data.DayColumn: "2024-05-31", "per": "not-a-number"})

	category := &store.Category{
		Name:    store.CategoryIndicator,
		Columns: data.ColumnDict{"per": {Name: "PER", Unit: "times"}},
		Tables:  map[int]*data.Table{1301: good, 1332: bad},
	}

	cols, err := IndicatorValues(category, []string{"per*2"})
	require.NoError(t, err)

	assert.Equal(t, 30.0, cols[0][1301])
	assert.True(t, math.IsNaN(cols[0][1332]), "an unusable value is undefined for that ticker only")
}
