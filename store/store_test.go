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
package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/penny-vault/pvfunds/api"
	"github.com/penny-vault/pvfunds/data"
	"github.com/penny-vault/pvfunds/fetch"
)

// scriptedSource drives the executor from canned responses.
type scriptedSource struct {
	quarterCalls [][]int
	quarter      func(tickers []int, from, to data.Quarter) (*api.CategoryResult, error)
	indicator    func(tickers []int) (*api.CategoryResult, error)
}

func (source *scriptedSource) Company(_ context.Context) (*api.CategoryResult, error) {
	return nil, nil
}

func (source *scriptedSource) Quarter(_ context.Context, tickers []int, from, to data.Quarter) (*api.CategoryResult, error) {
	source.quarterCalls = append(source.quarterCalls, append([]int{}, tickers...))
	return source.quarter(tickers, from, to)
}

func (source *scriptedSource) Indicator(_ context.Context, tickers []int) (*api.CategoryResult, error) {
	return source.indicator(tickers)
}

func quarterColumns() data.ColumnDict {
	return data.ColumnDict{
		"net_sales": {Name: "Net sales", Unit: "million JPY"},
	}
}

// seedCompany writes a company category with the given tickers to root.
func seedCompany(t *testing.T, root string, tickers []int) {
	t.Helper()

	dir := filepath.Join(root, CategoryCompany)
	require.NoError(t, os.MkdirAll(dir, 0755))

	table := data.NewTable([]string{data.TickerColumn, "company_name_en"})
	for _, ticker := range tickers {
		table.Append(data.Row{
			data.TickerColumn: strconv.Itoa(ticker),
			"company_name_en": "Company " + strconv.Itoa(ticker),
		})
	}

	require.NoError(t, writeCSV(filepath.Join(dir, companyFileName), table))
	require.NoError(t, writeColumns(filepath.Join(dir, columnsFileName), data.ColumnDict{
		"company_name_en": {Name: "Company name", Unit: ""},
	}))
}

func quarterResponse(tickers []int, year int) *api.CategoryResult {
	rows := make(map[int][]data.Row)
	for _, ticker := range tickers {
		rows[ticker] = []data.Row{{
			data.FiscalYearColumn:    strconv.Itoa(year),
			data.FiscalQuarterColumn: "4",
			"net_sales":              "100",
		}}
	}
	return &api.CategoryResult{Columns: quarterColumns(), Rows: rows}
}

func TestFetchQuarterRoundtrip(t *testing.T) {
	root := t.TempDir()
	seedCompany(t, root, []int{1301, 1332})

	myStore, err := Open(root, false, false)
	require.NoError(t, err)
	require.NotNil(t, myStore.Company)

	source := &scriptedSource{
		quarter: func(tickers []int, from, to data.Quarter) (*api.CategoryResult, error) {
			return quarterResponse(tickers, from.Year), nil
		},
	}
	exec := fetch.NewExecutor(source, -1, nil)

	start := data.Quarter{Year: 2018, Num: 1}
	end := data.Quarter{Year: 2018, Num: 4}
	require.NoError(t, myStore.FetchQuarter(context.Background(), exec, start, end, false, nil))

	// per-ticker files, column definitions, and the cache are all on disk
	dir := filepath.Join(root, CategoryQuarter)
	assert.FileExists(t, filepath.Join(dir, "1301.csv"))
	assert.FileExists(t, filepath.Join(dir, "1332.csv"))
	assert.FileExists(t, filepath.Join(dir, columnsFileName))
	assert.FileExists(t, filepath.Join(dir, cacheFileName))

	// and the category is reloaded in memory
	require.NotNil(t, myStore.Quarter)
	require.Len(t, myStore.Quarter.Tables, 2)
	table := myStore.Quarter.Tables[1301]
	require.Equal(t, 1, table.Len())
	assert.Equal(t, "100", table.Rows[0]["net_sales"])
	assert.True(t, myStore.Quarter.Columns.Equal(quarterColumns()))
}

func TestFetchQuarterResumesFromDisk(t *testing.T) {
	root := t.TempDir()
	seedCompany(t, root, []int{1301, 1332})

	// 1301 was fetched by a previous (interrupted) run
	dir := filepath.Join(root, CategoryQuarter)
	require.NoError(t, os.MkdirAll(dir, 0755))
	table := data.NewTable([]string{data.TickerColumn, data.FiscalYearColumn, data.FiscalQuarterColumn, "net_sales"})
	table.Append(data.Row{data.TickerColumn: "1301", data.FiscalYearColumn: "2018", data.FiscalQuarterColumn: "4", "net_sales": "1"})
	require.NoError(t, writeCSV(filepath.Join(dir, "1301.csv"), table))

	myStore, err := Open(root, false, false)
	require.NoError(t, err)

	source := &scriptedSource{
		quarter: func(tickers []int, from, to data.Quarter) (*api.CategoryResult, error) {
			return quarterResponse(tickers, from.Year), nil
		},
	}
	exec := fetch.NewExecutor(source, -1, nil)

	q := data.Quarter{Year: 2018, Num: 4}
	require.NoError(t, myStore.FetchQuarter(context.Background(), exec, q, q, false, nil))

	require.Len(t, source.quarterCalls, 1)
	assert.Equal(t, []int{1332}, source.quarterCalls[0], "tickers already on disk must be skipped")
}

func TestFetchQuarterOverwriteRefetchesAll(t *testing.T) {
	root := t.TempDir()
	seedCompany(t, root, []int{1301, 1332})

	dir := filepath.Join(root, CategoryQuarter)
	require.NoError(t, os.MkdirAll(dir, 0755))
	table := data.NewTable([]string{data.TickerColumn})
	table.Append(data.Row{data.TickerColumn: "1301"})
	require.NoError(t, writeCSV(filepath.Join(dir, "1301.csv"), table))

	myStore, err := Open(root, false, false)
	require.NoError(t, err)

	source := &scriptedSource{
		quarter: func(tickers []int, from, to data.Quarter) (*api.CategoryResult, error) {
			return quarterResponse(tickers, from.Year), nil
		},
	}
	exec := fetch.NewExecutor(source, -1, nil)

	q := data.Quarter{Year: 2018, Num: 4}
	require.NoError(t, myStore.FetchQuarter(context.Background(), exec, q, q, true, nil))

	require.Len(t, source.quarterCalls, 1)
	assert.Equal(t, []int{1301, 1332}, source.quarterCalls[0])
}

func TestFetchQuarterRestrictedTickers(t *testing.T) {
	root := t.TempDir()
	seedCompany(t, root, []int{1301, 1332, 1333})

	myStore, err := Open(root, false, false)
	require.NoError(t, err)

	source := &scriptedSource{
		quarter: func(tickers []int, from, to data.Quarter) (*api.CategoryResult, error) {
			return quarterResponse(tickers, from.Year), nil
		},
	}
	exec := fetch.NewExecutor(source, -1, nil)

	q := data.Quarter{Year: 2018, Num: 4}
	require.NoError(t, myStore.FetchQuarter(context.Background(), exec, q, q, false, []int{1332}))

	require.Len(t, source.quarterCalls, 1)
	assert.Equal(t, []int{1332}, source.quarterCalls[0])
}

func TestFetchQuarterRequiresCompany(t *testing.T) {
	myStore, err := Open(t.TempDir(), false, false)
	require.NoError(t, err)
	require.Nil(t, myStore.Company)

	exec := fetch.NewExecutor(&scriptedSource{}, -1, nil)
	q := data.Quarter{Year: 2018, Num: 4}

	err = myStore.FetchQuarter(context.Background(), exec, q, q, false, nil)
	assert.ErrorIs(t, err, ErrNoCompany)
}

func TestConsolidateSkipsEmptyFiles(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, CategoryQuarter)
	require.NoError(t, os.MkdirAll(dir, 0755))

	table := data.NewTable([]string{data.TickerColumn, "net_sales"})
	table.Append(data.Row{data.TickerColumn: "1301", "net_sales": "100"})
	require.NoError(t, writeCSV(filepath.Join(dir, "1301.csv"), table))

	// empty files occasionally end up on disk; they must not fail the rebuild
	require.NoError(t, os.WriteFile(filepath.Join(dir, "5142.csv"), nil, 0644))

	myStore := &Store{root: root}
	require.NoError(t, myStore.Consolidate(CategoryQuarter))

	tables, err := readCache(filepath.Join(dir, cacheFileName))
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.Contains(t, tables, 1301)
}

func TestLoadCategoryLazyMigration(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, CategoryQuarter)
	require.NoError(t, os.MkdirAll(dir, 0755))

	table := data.NewTable([]string{data.TickerColumn, "net_sales"})
	table.Append(data.Row{data.TickerColumn: "1301", "net_sales": "100"})
	require.NoError(t, writeCSV(filepath.Join(dir, "1301.csv"), table))
	require.NoError(t, writeColumns(filepath.Join(dir, columnsFileName), quarterColumns()))

	// no cache file yet: loading must rebuild it from the per-ticker files
	myStore, err := Open(root, true, false)
	require.NoError(t, err)

	require.NotNil(t, myStore.Quarter)
	require.Len(t, myStore.Quarter.Tables, 1)
	assert.FileExists(t, filepath.Join(dir, cacheFileName))
}

func TestLoadMissingCategoryIsAbsent(t *testing.T) {
	myStore, err := Open(t.TempDir(), true, true)
	require.NoError(t, err)

	assert.Nil(t, myStore.Company)
	assert.Nil(t, myStore.Quarter)
	assert.Nil(t, myStore.Indicator)
}

func TestTickerFilesIgnoresNonNumericStems(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1332.csv"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1301.csv"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.csv"), []byte("x"), 0644))

	tickers, err := tickerFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []int{1301, 1332}, tickers)
}

func TestColumnsRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), columnsFileName)
	columns := data.ColumnDict{
		"net_sales": {Name: "Net sales", Unit: "million JPY"},
		"per":       {Name: "PER", Unit: "times"},
	}

	require.NoError(t, writeColumns(path, columns))

	got, err := readColumns(path)
	require.NoError(t, err)
	assert.True(t, got.Equal(columns))
}

func TestCompanyTickersAndNames(t *testing.T) {
	root := t.TempDir()
	seedCompany(t, root, []int{1332, 1301})

	myStore, err := Open(root, false, false)
	require.NoError(t, err)
	require.NotNil(t, myStore.Company)

	assert.Equal(t, []int{1301, 1332}, myStore.Company.Tickers())
	assert.Equal(t, "Company 1301", myStore.Company.Name(1301))
	assert.Equal(t, "", myStore.Company.Name(9999))
}

func TestCategoryAll(t *testing.T) {
	first := data.NewTable([]string{data.TickerColumn, "net_sales"})
	first.Append(data.Row{data.TickerColumn: "1301", "net_sales": "100"})

	second := data.NewTable([]string{data.TickerColumn, "net_sales"})
	second.Append(data.Row{data.TickerColumn: "1332", "net_sales": "200"})

	category := &Category{
		Name:   CategoryQuarter,
		Tables: map[int]*data.Table{1332: second, 1301: first},
	}

	all := category.All()
	require.NotNil(t, all)
	require.Equal(t, 2, all.Len())
	assert.Equal(t, "1301", all.Rows[0][data.TickerColumn], "tables concatenate in ticker order")
	assert.Equal(t, "1332", all.Rows[1][data.TickerColumn])
}
