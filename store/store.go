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
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvfunds/data"
	"github.com/rs/zerolog/log"
)

// Category directory names under the store root.
const (
	CategoryCompany   = "company"
	CategoryQuarter   = "quarter"
	CategoryIndicator = "indicator"
)

const (
	columnsFileName = "columns.json"
	cacheFileName   = "all.json.gz"
	companyFileName = "company.csv"
)

var ErrNoCompany = errors.New("company data is not loaded")

// Company holds the company profile category: one row per listed company.
// It doubles as the authoritative ticker universe for every other
// category.
type Company struct {
	Columns data.ColumnDict
	Table   *data.Table
}

// Tickers returns every known ticker in ascending order.
func (company *Company) Tickers() []int {
	tickers := make([]int, 0, company.Table.Len())
	for _, row := range company.Table.Rows {
		if ticker, ok := row.Int(data.TickerColumn); ok {
			tickers = append(tickers, ticker)
		}
	}
	sort.Ints(tickers)
	return tickers
}

// Name returns the english company name for a ticker, or the empty string
// when the ticker is unknown.
func (company *Company) Name(ticker int) string {
	key := strconv.Itoa(ticker)
	for _, row := range company.Table.Rows {
		if row[data.TickerColumn] == key {
			return row["company_name_en"]
		}
	}
	return ""
}

// Category holds one per-ticker category (quarter or indicator) loaded
// from the consolidated cache.
type Category struct {
	Name    string
	Columns data.ColumnDict
	Tables  map[int]*data.Table
}

// All concatenates every per-ticker table in ascending ticker order into
// one table for the evaluator.
func (category *Category) All() *data.Table {
	tickers := make([]int, 0, len(category.Tables))
	for ticker := range category.Tables {
		tickers = append(tickers, ticker)
	}
	sort.Ints(tickers)

	var all *data.Table
	for _, ticker := range tickers {
		table := category.Tables[ticker]
		if table == nil || table.Len() == 0 {
			continue
		}
		if all == nil {
			all = data.NewTable(append([]string{}, table.Columns...))
		}
		all.Concat(table)
	}
	return all
}

// Store owns the on-disk data directory: one sub-directory per category,
// each with per-ticker CSV files, a shared column definition file and a
// consolidated cache.
type Store struct {
	root string

	Company   *Company
	Quarter   *Category
	Indicator *Category
}

// Open loads a store rooted at root. Company data is always loaded when
// present; quarter and indicator are loaded on request. A category with no
// readable files loads as nil, which downstream code treats as "this
// source contributes nothing".
func Open(root string, loadQuarter, loadIndicator bool) (*Store, error) {
	store := &Store{root: root}

	store.LoadCompany()
	if loadQuarter {
		if err := store.LoadQuarter(); err != nil {
			return nil, err
		}
	}
	if loadIndicator {
		if err := store.LoadIndicator(); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Root returns the store's data directory.
func (store *Store) Root() string {
	return store.root
}

// LoadCompany reads the company category from disk. Missing files leave
// Company nil.
func (store *Store) LoadCompany() {
	dir := filepath.Join(store.root, CategoryCompany)
	csvPath := filepath.Join(dir, companyFileName)
	columnsPath := filepath.Join(dir, columnsFileName)

	table, err := readCSV(csvPath)
	if err != nil || table == nil {
		store.Company = nil
		log.Info().Str("Dir", dir).Msg("could not load company data")
		return
	}

	columns, err := readColumns(columnsPath)
	if err != nil {
		store.Company = nil
		log.Info().Str("Dir", dir).Msg("could not load company column definitions")
		return
	}

	store.Company = &Company{Columns: columns, Table: table}
	log.Info().Int("NumCompanies", table.Len()).Msg("loaded company data")
}

// LoadQuarter reads the quarterly category from its consolidated cache,
// rebuilding the cache from per-ticker files first when it is absent.
func (store *Store) LoadQuarter() error {
	category, err := store.loadCategory(CategoryQuarter)
	if err != nil {
		return err
	}
	store.Quarter = category
	return nil
}

// LoadIndicator reads the indicator category, rebuilding its cache when
// absent.
func (store *Store) LoadIndicator() error {
	category, err := store.loadCategory(CategoryIndicator)
	if err != nil {
		return err
	}
	store.Indicator = category
	return nil
}

func (store *Store) loadCategory(name string) (*Category, error) {
	dir := filepath.Join(store.root, name)
	columnsPath := filepath.Join(dir, columnsFileName)
	cachePath := filepath.Join(dir, cacheFileName)

	if _, err := os.Stat(columnsPath); err != nil {
		log.Info().Str("Dir", dir).Str("Category", name).Msg("could not load category data")
		return nil, nil
	}

	columns, err := readColumns(columnsPath)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cachePath); err != nil {
		// lazy migration: build the cache from whatever per-ticker files
		// exist before first use
		if err := store.Consolidate(name); err != nil {
			return nil, err
		}
	}

	tables, err := readCache(cachePath)
	if err != nil {
		return nil, err
	}

	log.Info().Str("Category", name).Int("NumTickers", len(tables)).Msg("loaded category data")
	return &Category{Name: name, Columns: columns, Tables: tables}, nil
}

// LastUpdated returns the modification time of a category's consolidated
// cache, or the zero time when the category has never been fetched.
func (store *Store) LastUpdated(category string) time.Time {
	path := filepath.Join(store.root, category, cacheFileName)
	if category == CategoryCompany {
		path = filepath.Join(store.root, category, companyFileName)
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

func readColumns(path string) (data.ColumnDict, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	columns := make(data.ColumnDict)
	if err := json.Unmarshal(raw, &columns); err != nil {
		return nil, err
	}
	return columns, nil
}

func writeColumns(path string, columns data.ColumnDict) error {
	raw, err := json.MarshalIndent(columns, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}
